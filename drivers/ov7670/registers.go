// Package ov7670 provides constants for register sub-addresses and the
// startup configuration table of the OV7670 image sensor used as the
// controller's imaging peripheral.
package ov7670

const (
	// 7-bit two-wire address (SCCB write 0x42 >> 1).
	AddressDefault = 0x21

	// --- Register sub-addresses ---

	RegGain   = 0x00 // AGC gain
	RegBlue   = 0x01 // AWB blue channel gain
	RegRed    = 0x02 // AWB red channel gain
	RegCom1   = 0x04 // common control 1
	RegAech   = 0x10 // exposure value
	RegClkrc  = 0x11 // internal clock prescaler
	RegCom7   = 0x12 // common control 7 (reset, output format)
	RegCom8   = 0x13 // common control 8 (AGC/AWB/AEC enables)
	RegCom9   = 0x14 // common control 9 (gain ceiling)
	RegCom10  = 0x15 // common control 10 (sync polarity)
	RegMvfp   = 0x1E // mirror/flip
	RegCom3   = 0x0C // common control 3 (scaling)
	RegCom14  = 0x3E // common control 14 (PCLK divider)
	RegTslb   = 0x3A // line buffer / UV ordering
	RegCom15  = 0x40 // common control 15 (output range, RGB mode)
	RegCom11  = 0x3B // common control 11 (night mode, banding)
	RegScalingXsc  = 0x70
	RegScalingYsc  = 0x71
	RegScalingDcw  = 0x72
	RegScalingPclk = 0x73

	// COM7 bits
	Com7Reset = 0x80
	Com7YUV   = 0x00

	// Sentinel terminating a configuration table. 0xFF is a reserved
	// sub-address on this part.
	Sentinel = 0xFF
)

// RegInit is one (sub-address, value) pair of a configuration table.
type RegInit struct {
	Sub byte
	Val byte
}

// IsSentinel reports whether the entry terminates a table.
func (e RegInit) IsSentinel() bool { return e.Sub == Sentinel && e.Val == Sentinel }

// DefaultConfig is the startup register table the configuration sequencer
// replays once at reset: soft reset, QVGA-compatible clocking, YUV output,
// AGC/AEC/AWB on. Order matters; the table is terminated by the sentinel.
var DefaultConfig = []RegInit{
	{RegCom7, Com7Reset}, // soft reset, registers to defaults
	{RegClkrc, 0x01},     // input clock / 2
	{RegCom7, Com7YUV},   // YUV output format
	{RegCom3, 0x04},      // enable scaling
	{RegCom14, 0x19},     // manual scaling, PCLK / 2
	{RegScalingXsc, 0x3A},
	{RegScalingYsc, 0x35},
	{RegScalingDcw, 0x11},
	{RegScalingPclk, 0xF1},
	{RegTslb, 0x04},  // UYVY ordering
	{RegCom15, 0xC0}, // full 0-255 output range
	{RegCom8, 0xE7},  // fast AGC/AEC, AEC on, AGC on, AWB on
	{RegCom9, 0x18},  // gain ceiling 4x
	{RegCom11, 0x12}, // exposure timing, banding filter
	{RegMvfp, 0x00},  // no mirror, no flip
	{Sentinel, Sentinel},
}
