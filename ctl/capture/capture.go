// Package capture implements the double-buffered frame capture controller.
// A trigger toggles the ping-pong buffer select, so the buffer being filled
// is never the one last exposed for readout; pixel-valid pulses write one
// derived grayscale sample each until the frame-boundary signal ends the
// capture.
package capture

import "qnos-go/hw"

// Pixel is the per-tick input from the image source: two raw samples reduced
// to one grayscale byte by averaging, plus the frame-boundary strobe.
type Pixel struct {
	Valid    bool
	D1, D2   byte
	FrameEnd bool
}

type trigSlot struct {
	Seq  uint32
	Dark bool
}

type doneSlot struct {
	Seq      uint32
	Buffer   int
	Pixels   int
	Dark     bool
	TimedOut bool
}

// Controller is the frame capture machine.
type Controller struct {
	w, h int

	trigger *hw.Reg[trigSlot]
	pix     *hw.Reg[Pixel]
	done    *hw.Reg[doneSlot]

	bufs [2][]byte
	sel  int // buffer currently selected for writes

	seq       uint32
	lastSeq   uint32
	capturing bool
	dark      bool
	cursor    int
	waited    int

	// TimeoutTicks bounds a capture; when exceeded the capture completes
	// with TimedOut set instead of leaving the machine stuck.
	TimeoutTicks int
}

func New(f *hw.Fabric, w, h, timeoutTicks int) *Controller {
	c := &Controller{
		w: w, h: h,
		trigger:      hw.NewReg(f, trigSlot{}),
		pix:          hw.NewReg(f, Pixel{}),
		done:         hw.NewReg(f, doneSlot{}),
		TimeoutTicks: timeoutTicks,
	}
	c.bufs[0] = make([]byte, w*h)
	c.bufs[1] = make([]byte, w*h)
	return c
}

func (c *Controller) Name() string { return "capture" }

func (c *Controller) Reset() {
	c.trigger.Force(trigSlot{})
	c.pix.Force(Pixel{})
	c.done.Force(doneSlot{})
	c.seq, c.lastSeq = 0, 0
	c.sel = 0
	c.capturing = false
	c.cursor = 0
	c.waited = 0
	for i := range c.bufs {
		for j := range c.bufs[i] {
			c.bufs[i][j] = 0
		}
	}
}

// Trigger starts a capture and returns its sequence number; completion is
// visible once Completed().Seq reaches that value.
func (c *Controller) Trigger(dark bool) uint32 {
	c.seq++
	c.trigger.Set(trigSlot{Seq: c.seq, Dark: dark})
	return c.seq
}

// Drive stages this tick's pixel input. Owned by the image source.
func (c *Controller) Drive(p Pixel) { c.pix.Set(p) }

func (c *Controller) Tick() {
	t := c.trigger.Get()
	if t.Seq != c.lastSeq {
		c.lastSeq = t.Seq
		// The write target toggles on every trigger, so the buffer being
		// filled is never the one holding the last completed frame.
		c.sel ^= 1
		c.cursor = 0
		c.waited = 0
		c.dark = t.Dark
		c.capturing = true
		return
	}
	if !c.capturing {
		return
	}

	p := c.pix.Get()
	if p.Valid && c.cursor < len(c.bufs[c.sel]) {
		c.bufs[c.sel][c.cursor] = byte((uint16(p.D1) + uint16(p.D2)) / 2)
		c.cursor++
	}
	if p.FrameEnd {
		c.complete(false)
		return
	}
	if c.TimeoutTicks > 0 {
		c.waited++
		if c.waited >= c.TimeoutTicks {
			c.complete(true)
		}
	}
}

func (c *Controller) complete(timedOut bool) {
	c.capturing = false
	c.done.Set(doneSlot{
		Seq:      c.lastSeq,
		Buffer:   c.sel,
		Pixels:   c.cursor,
		Dark:     c.dark,
		TimedOut: timedOut,
	})
}

// Completed returns the latest committed completion record.
func (c *Controller) Completed() (seq uint32, timedOut bool) {
	d := c.done.Get()
	return d.Seq, d.TimedOut
}

// LastFrame describes the last completed capture.
func (c *Controller) LastFrame() (buffer, pixels int, dark bool) {
	d := c.done.Get()
	return d.Buffer, d.Pixels, d.Dark
}

// Readout returns the buffer holding the last completed frame. The other
// buffer is the write target of any in-progress capture, so the returned
// slice is stable until the capture after next.
func (c *Controller) Readout() []byte {
	return c.bufs[c.done.Get().Buffer]
}

// Capturing reports whether a capture is in progress.
func (c *Controller) Capturing() bool { return c.capturing }

// WriteTarget returns the index of the buffer selected for writes.
func (c *Controller) WriteTarget() int { return c.sel }

func (c *Controller) Width() int  { return c.w }
func (c *Controller) Height() int { return c.h }
