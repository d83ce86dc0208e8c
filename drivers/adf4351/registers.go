// Package adf4351 encodes the six 32-bit configuration registers of the
// ADF4351 wideband frequency synthesizer. The encoding follows the part's
// programming model: an INT/FRAC/MOD fractional-N divider against a 25 MHz
// phase-frequency detector, an RF output divider to reach the requested
// frequency from the 2.2-4.4 GHz VCO, and a digital lock-detect pin.
package adf4351

import "qnos-go/x/mathx"

const (
	// Phase-frequency detector frequency in MHz (reference 25 MHz, R = 1).
	PFDMHz = 25

	// Modulus: 1 MHz channel spacing at the VCO (fPFD / MOD).
	Mod = 25

	// VCO range in MHz.
	VCOMinMHz = 2200
	VCOMaxMHz = 4400

	// Output range in MHz. Minimum is VCO min / 64.
	OutMinMHz = 35
	OutMaxMHz = 4400

	// Prescaler 8/9 is required above this VCO frequency.
	prescaler89AboveMHz = 3600

	// Band select clock divider: fPFD / 200 = 125 kHz.
	bandSelDiv = 200

	// R5 constant: digital lock detect on the LD pin, reserved bits set.
	reg5LockDetectDigital = 0x00580005

	// R3 clock divider value (150) used for band select timing.
	reg3ClockDiv = 150
)

// Params are the pulse parameters the register set is derived from.
type Params struct {
	FreqMHz uint32 // requested output frequency in MHz
	Amp     uint32 // amplitude 0..100 (%), mapped to the 4 output power codes
	Phase   uint32 // phase word source, folded modulo Mod
}

// OutputDivider returns the RF divider (1..64, power of two) placing the VCO
// in range for freqMHz, and its register select code (log2).
func OutputDivider(freqMHz uint32) (div uint32, sel uint32) {
	div, sel = 1, 0
	for div < 64 && freqMHz*div < VCOMinMHz {
		div <<= 1
		sel++
	}
	return div, sel
}

// PowerCode maps an amplitude percentage to the 2-bit output power field
// (-4, -1, +2, +5 dBm).
func PowerCode(amp uint32) uint32 {
	return mathx.Min(amp*3/100, 3)
}

// InRange reports whether freqMHz is synthesizable.
func InRange(freqMHz uint32) bool {
	return mathx.Between(freqMHz, uint32(OutMinMHz), uint32(OutMaxMHz))
}

// Registers derives the six register words for p. Index i holds register Ri;
// the device is programmed from index 5 down to 0.
func Registers(p Params) [6]uint32 {
	div, sel := OutputDivider(p.FreqMHz)
	vco := p.FreqMHz * div

	integer := vco / PFDMHz
	frac := vco % PFDMHz
	phase := p.Phase % Mod

	var prescaler uint32
	if vco > prescaler89AboveMHz {
		prescaler = 1 // 8/9
	}

	var r [6]uint32
	r[0] = (integer&0xFFFF)<<15 | (frac&0xFFF)<<3
	r[1] = prescaler<<27 | (phase&0xFFF)<<15 | (Mod&0xFFF)<<3 | 1
	// MUXOUT = digital lock detect, R counter = 1, charge pump 2.5 mA,
	// PD polarity positive.
	r[2] = 6<<26 | 1<<14 | 7<<9 | 1<<6 | 2
	r[3] = reg3ClockDiv<<3 | 3
	// Fundamental feedback, RF output enabled.
	r[4] = 1<<23 | (sel&0x7)<<20 | bandSelDiv<<12 | 1<<5 | PowerCode(p.Amp)<<3 | 4
	r[5] = reg5LockDetectDigital
	return r
}
