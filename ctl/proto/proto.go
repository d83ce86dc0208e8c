// Package proto implements the command protocol: line accumulation from the
// transport, tokenizing into a command name and numeric arguments, and the
// dispatch state machine that drives the excitation timer, the synthesizer
// programmer and the frame capture controller.
//
// The protocol is line-oriented text, LF terminated, space separated,
// case-sensitive. Replies are a single 'O' (ok) or 'E' (error) byte, except
// for capture commands which answer with the raw frame bytes.
package proto

import (
	"qnos-go/ctl/synth"
	"qnos-go/drivers/adf4351"
	"qnos-go/errcode"
)

// MaxLine bounds a command line, terminator excluded.
const MaxLine = 64

const (
	ReplyOK  = 'O'
	ReplyErr = 'E'
)

// RxPort delivers received transport bytes, one per call.
type RxPort interface {
	ReadByte() (byte, bool)
}

// TxPort accepts bytes to transmit; WriteByte reports false when the
// transport cannot take a byte this tick.
type TxPort interface {
	WriteByte(b byte) bool
}

// Exciter arms the excitation timer.
type Exciter interface {
	Arm(row, col uint8, ticks uint32)
}

// Pulser starts a synthesizer programming run.
type Pulser interface {
	StartPulse(p synth.Pulse) bool
}

// Capturer triggers frame captures and exposes completion and readout.
type Capturer interface {
	Trigger(dark bool) uint32
	Completed() (seq uint32, timedOut bool)
	Readout() []byte
}

// Hooks are optional event callbacks, invoked from the tick goroutine.
type Hooks struct {
	Error          func(code errcode.Code)
	Fired          func(row, col uint8, durationMS uint32)
	Pulsed         func(p synth.Pulse)
	CaptureStart   func(dark bool)
	CaptureSent    func(bytes int)
	CaptureTimeout func()
}

// Deps wires the machine to its collaborators.
type Deps struct {
	Rx      RxPort
	Tx      TxPort
	Excite  Exciter
	Synth   Pulser
	Capture Capturer
	// TicksPerMS converts FIRE_LASER durations to tick units.
	TicksPerMS uint32
	Hooks      Hooks
}

type cmdKind uint8

const (
	kindFire cmdKind = iota
	kindPulse
	kindCaptureFrame
	kindCaptureDark
)

type cmdSpec struct {
	name string
	argc int
	kind cmdKind
}

// Recognized commands: exact length-and-byte match.
var commands = []cmdSpec{
	{"FIRE_LASER", 3, kindFire},
	{"APPLY_PULSE", 5, kindPulse},
	{"CAPTURE_FRAME", 0, kindCaptureFrame},
	{"CAPTURE_DARK", 0, kindCaptureDark},
}

type pstate uint8

const (
	psAccum pstate = iota
	psParse
	psReply
	psWaitFrame
	psStream
)

// Machine is the parser/dispatch state machine.
type Machine struct {
	d Deps

	st pstate

	// Line accumulation. The buffer is owned by the accumulator until a
	// full line hands it to the parser, and is reset after dispatch.
	line     [MaxLine]byte
	n        int
	overflow bool

	// Tokenizer: one character per tick.
	pos     int
	nameEnd int
	spec    *cmdSpec
	args    [5]uint32
	argIdx  int
	num     numScan

	// Reply/stream bookkeeping.
	pending byte
	after   pstate
	waitSeq uint32
	frame   []byte
	sent    int
}

// numScan is the decimal scanner: optionally signed, at most one decimal
// point, fractional digits folded by one integer divide at the end. The
// fold truncates toward zero; precision loss is inherent to the protocol.
type numScan struct {
	started bool
	neg     bool
	point   bool
	fracs   int
	val     uint32
}

func New(d Deps) *Machine {
	return &Machine{d: d}
}

func (m *Machine) Name() string { return "proto" }

func (m *Machine) Reset() {
	m.st = psAccum
	m.n = 0
	m.overflow = false
	m.frame = nil
}

func (m *Machine) Tick() {
	switch m.st {
	case psAccum:
		m.accumulate()
	case psParse:
		m.parseChar()
	case psReply:
		if m.d.Tx.WriteByte(m.pending) {
			m.st = m.after
		}
	case psWaitFrame:
		seq, timedOut := m.d.Capture.Completed()
		if seq != m.waitSeq {
			return
		}
		if timedOut {
			m.hookError(errcode.CaptureTimeout)
			if m.d.Hooks.CaptureTimeout != nil {
				m.d.Hooks.CaptureTimeout()
			}
			m.st = psAccum
			return
		}
		m.frame = m.d.Capture.Readout()
		m.sent = 0
		m.st = psStream
	case psStream:
		if m.sent >= len(m.frame) {
			if m.d.Hooks.CaptureSent != nil {
				m.d.Hooks.CaptureSent(m.sent)
			}
			m.frame = nil
			m.st = psAccum
			return
		}
		// One buffer byte per completed transmission.
		if m.d.Tx.WriteByte(m.frame[m.sent]) {
			m.sent++
		}
	}
}

// -----------------------------------------------------------------------------
// Accumulation
// -----------------------------------------------------------------------------

func (m *Machine) accumulate() {
	b, ok := m.d.Rx.ReadByte()
	if !ok {
		return
	}
	switch b {
	case '\n':
		if m.overflow {
			m.overflow = false
			m.n = 0
			m.fail(errcode.LineOverflow)
			return
		}
		m.beginParse()
	case '\r':
		// ignored
	default:
		if m.overflow {
			return
		}
		if m.n >= MaxLine {
			// 65th byte without a terminator: drop the line, swallow
			// the rest, answer with a single error byte at the LF.
			m.overflow = true
			return
		}
		m.line[m.n] = b
		m.n++
	}
}

func (m *Machine) beginParse() {
	m.st = psParse
	m.pos = 0
	m.nameEnd = -1
	m.spec = nil
	m.argIdx = 0
	m.num = numScan{}
}

// -----------------------------------------------------------------------------
// Parsing: one character per tick
// -----------------------------------------------------------------------------

func (m *Machine) parseChar() {
	eol := m.pos >= m.n

	if m.spec == nil {
		// Scanning the command name.
		if !eol && m.line[m.pos] != ' ' {
			m.pos++
			return
		}
		m.nameEnd = m.pos
		spec := matchCommand(m.line[:m.nameEnd])
		if spec == nil {
			m.fail(errcode.UnknownCommand)
			return
		}
		m.spec = spec
		if spec.argc == 0 {
			// Full argument count consumed: dispatch without waiting
			// for the rest of the line.
			m.dispatch()
			return
		}
		if eol {
			m.fail(errcode.InvalidParams)
			return
		}
		m.pos++ // consume the delimiter
		return
	}

	// Argument scanning.
	if eol {
		if m.num.started {
			m.pushArg()
			if m.argIdx == m.spec.argc {
				m.dispatch()
				return
			}
		}
		m.fail(errcode.InvalidParams)
		return
	}

	c := m.line[m.pos]
	m.pos++
	switch {
	case c == ' ':
		if m.num.started {
			m.pushArg()
			if m.argIdx == m.spec.argc {
				m.dispatch()
			}
		}
	case c == '-' && !m.num.started:
		m.num.started = true
		m.num.neg = true
	case c == '.' && m.num.started && !m.num.point:
		m.num.point = true
	case c >= '0' && c <= '9':
		m.num.started = true
		m.num.val = m.num.val*10 + uint32(c-'0')
		if m.num.point {
			m.num.fracs++
		}
	default:
		m.fail(errcode.InvalidParams)
	}
}

func (m *Machine) pushArg() {
	v := m.num.val
	for i := 0; i < m.num.fracs; i++ {
		v /= 10
	}
	if m.num.neg {
		v = -v
	}
	m.args[m.argIdx] = v
	m.argIdx++
	m.num = numScan{}
}

func matchCommand(name []byte) *cmdSpec {
	for i := range commands {
		c := &commands[i]
		if len(name) != len(c.name) {
			continue
		}
		ok := true
		for j := range name {
			if name[j] != c.name[j] {
				ok = false
				break
			}
		}
		if ok {
			return c
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Dispatch
// -----------------------------------------------------------------------------

func (m *Machine) dispatch() {
	switch m.spec.kind {
	case kindFire:
		row, col, dur := m.args[0], m.args[1], m.args[2]
		if row > 7 || col > 7 || dur == 0 {
			m.fail(errcode.InvalidParams)
			return
		}
		m.d.Excite.Arm(uint8(row), uint8(col), dur*m.d.TicksPerMS)
		if m.d.Hooks.Fired != nil {
			m.d.Hooks.Fired(uint8(row), uint8(col), dur)
		}
		m.ok()

	case kindPulse:
		p := synth.Pulse{
			Index:    m.args[0],
			FreqMHz:  m.args[1],
			Amp:      m.args[2],
			Duration: m.args[3],
			Phase:    m.args[4],
		}
		if !adf4351.InRange(p.FreqMHz) {
			m.fail(errcode.InvalidParams)
			return
		}
		if !m.d.Synth.StartPulse(p) {
			m.fail(errcode.Busy)
			return
		}
		if m.d.Hooks.Pulsed != nil {
			m.d.Hooks.Pulsed(p)
		}
		m.ok()

	case kindCaptureFrame, kindCaptureDark:
		dark := m.spec.kind == kindCaptureDark
		m.waitSeq = m.d.Capture.Trigger(dark)
		if m.d.Hooks.CaptureStart != nil {
			m.d.Hooks.CaptureStart(dark)
		}
		m.releaseLine()
		m.st = psWaitFrame
	}
}

// ok releases the line and queues the acknowledgment byte.
func (m *Machine) ok() {
	m.releaseLine()
	m.pending = ReplyOK
	m.after = psAccum
	m.st = psReply
}

// fail discards the line, reports the code, and queues the error byte. No
// partial command is ever dispatched.
func (m *Machine) fail(code errcode.Code) {
	m.releaseLine()
	m.hookError(code)
	m.pending = ReplyErr
	m.after = psAccum
	m.st = psReply
}

func (m *Machine) releaseLine() {
	m.n = 0
}

func (m *Machine) hookError(code errcode.Code) {
	if m.d.Hooks.Error != nil {
		m.d.Hooks.Error(code)
	}
}
