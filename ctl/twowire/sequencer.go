package twowire

import (
	"qnos-go/drivers/ov7670"
	"qnos-go/types"
)

type seqState uint8

const (
	seqIdle seqState = iota
	seqIssued
	seqWait
	seqDone
)

// Sequencer replays a sentinel-terminated register table through the master,
// one entry per completed transaction. It decides when to write; the master
// owns how. A missing acknowledgment is counted and the replay moves on —
// an entry is never re-issued without an explicit restart.
type Sequencer struct {
	m     *Master
	addr  byte
	table []ov7670.RegInit

	st     seqState
	idx    int
	issued int
	failed int
}

func NewSequencer(m *Master, addr byte, table []ov7670.RegInit) *Sequencer {
	return &Sequencer{m: m, addr: addr, table: table}
}

func (s *Sequencer) Name() string { return "cfgseq" }

func (s *Sequencer) Reset() {
	s.st = seqIdle
	s.idx = 0
	s.issued = 0
	s.failed = 0
}

func (s *Sequencer) Tick() {
	switch s.st {
	case seqIdle:
		if !s.m.Ready() {
			return
		}
		if s.idx >= len(s.table) || s.table[s.idx].IsSentinel() {
			s.st = seqDone
			return
		}
		e := s.table[s.idx]
		s.m.Start(Request{Addr: s.addr, Sub: e.Sub, Data: e.Val})
		s.issued++
		s.st = seqIssued

	case seqIssued:
		// Wait for the master to pick the request up.
		if !s.m.Ready() {
			s.st = seqWait
		}

	case seqWait:
		if !s.m.Ready() {
			return
		}
		if s.m.Err() {
			s.failed++
		}
		s.idx++
		s.st = seqIdle

	case seqDone:
	}
}

// Done reports whether the whole table has been replayed.
func (s *Sequencer) Done() bool { return s.st == seqDone }

// Failed returns the number of entries that saw a missing acknowledgment.
func (s *Sequencer) Failed() int { return s.failed }

// Result summarizes the replay for the status layer.
func (s *Sequencer) Result() types.ConfigResult {
	return types.ConfigResult{Entries: s.issued, Failed: s.failed}
}
