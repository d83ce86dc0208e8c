package sim

import (
	"qnos-go/ctl/synth"
)

// SynthModel is a shift-register model of the frequency synthesizer: 32-bit
// words clock in MSB-first while latch-enable is low and are stored (by
// their three control bits) when latch-enable rises. Once register zero has
// been written, lock detect asserts after SettleTicks.
type SynthModel struct {
	p *synth.Programmer

	// Regs holds the last word written to each register index; Words
	// counts latched words.
	Regs  [6]uint32
	Words int

	// SettleTicks is the delay from the final register write to lock
	// detect. Negative means the loop never locks.
	SettleTicks int

	prevClk  bool
	prevLE   bool
	sh       uint32
	settling bool
	settle   int
}

// NewSynthModel watches and answers the given programmer.
func NewSynthModel(p *synth.Programmer) *SynthModel {
	return &SynthModel{p: p, SettleTicks: 64, prevLE: true}
}

func (s *SynthModel) Name() string { return "synthmodel" }

func (s *SynthModel) Reset() {
	s.prevClk = false
	s.prevLE = true
	s.sh = 0
	s.Words = 0
	s.settling = false
}

func (s *SynthModel) Tick() {
	le := s.p.LE()
	clk := s.p.Clk()
	dat := s.p.Data()
	defer func() { s.prevClk, s.prevLE = clk, le }()

	if s.prevLE && !le {
		// Retune starting: lock detect drops.
		s.p.DriveLock(false)
		s.settling = false
		s.sh = 0
	}

	if !s.prevClk && clk && !le {
		s.sh <<= 1
		if dat {
			s.sh |= 1
		}
	}

	if !s.prevLE && le {
		idx := s.sh & 7
		if idx < 6 {
			s.Regs[idx] = s.sh
		}
		s.Words++
		s.sh = 0
		if idx == 0 && s.SettleTicks >= 0 {
			s.settling = true
			s.settle = s.SettleTicks
		}
	}

	if s.settling {
		if s.settle <= 0 {
			s.p.DriveLock(true)
			s.settling = false
		} else {
			s.settle--
		}
	}
}
