package ctl

import (
	"qnos-go/drivers/ov7670"
	"qnos-go/x/mathx"
)

// Config centralises geometry, timing and limits. Zero values are replaced
// by clamped defaults.
type Config struct {
	// Sensor geometry; the frame stream is Width*Height grayscale bytes.
	Width  int
	Height int

	// TickHz is the nominal tick rate, used to convert FIRE_LASER
	// durations from milliseconds to ticks.
	TickHz int

	// TwoWireDiv is the number of ticks per quarter bit-phase on the
	// configuration bus; SynthDiv the ticks per half clock phase on the
	// synthesizer serial link.
	TwoWireDiv int
	SynthDiv   int

	// CamAddr and Table drive the startup configuration sequencer.
	CamAddr byte
	Table   []ov7670.RegInit

	// CaptureTimeoutTicks bounds a capture that never sees its frame
	// boundary; LockTimeoutTicks bounds the synthesizer lock wait.
	CaptureTimeoutTicks int
	LockTimeoutTicks    int

	// Transport ring sizes (powers of two).
	RxBuf int
	TxBuf int
}

func (c *Config) withDefaults() {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.TickHz <= 0 {
		c.TickHz = 1_000_000
	}
	c.TickHz = mathx.Max(c.TickHz, 1000) // at least one tick per ms
	c.TwoWireDiv = mathx.Clamp(orDefault(c.TwoWireDiv, 4), 2, 256)
	c.SynthDiv = mathx.Clamp(orDefault(c.SynthDiv, 2), 1, 256)
	if c.CamAddr == 0 {
		c.CamAddr = ov7670.AddressDefault
	}
	if c.Table == nil {
		c.Table = ov7670.DefaultConfig
	}
	if c.CaptureTimeoutTicks <= 0 {
		c.CaptureTimeoutTicks = 8 * c.Width * c.Height
	}
	if c.LockTimeoutTicks <= 0 {
		c.LockTimeoutTicks = 50_000
	}
	if c.RxBuf <= 0 {
		c.RxBuf = 1024
	}
	if c.TxBuf <= 0 {
		c.TxBuf = 4096
	}
}

// TicksPerMS converts milliseconds to tick units.
func (c *Config) TicksPerMS() uint32 {
	return uint32(c.TickHz / 1000)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
