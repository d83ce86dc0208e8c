// Package twowire implements the open-drain two-wire bus master and the
// peripheral configuration sequencer that replays a register table through it
// at reset.
package twowire

import "qnos-go/hw"

// Request is one bus transaction: a register write (Addr, Sub, Data) or a
// write-then-read (Addr, Sub, restart, read one byte).
type Request struct {
	Addr byte // 7-bit peripheral address
	Sub  byte
	Data byte
	Read bool
}

type state uint8

const (
	stIdle state = iota
	stStart
	stAddrWrite
	stAck1
	stSubAddr
	stAck2
	stDataWrite
	stAck3
	stRestart
	stAddrRead
	stAck4
	stDataRead
	stNack
	stStop
)

type reqSlot struct {
	Seq uint32
	Req Request
}

// Master clocks transactions onto the shared SCL/SDA wires. Both lines are
// open drain: the master only ever asserts them low or releases them.
type Master struct {
	scl, sda *hw.Driver
	sclW     *hw.Wire
	sdaW     *hw.Wire

	div int // ticks per quarter bit-phase

	req   *hw.Reg[reqSlot]
	ready *hw.Reg[bool]
	seq   uint32
	last  uint32

	st      state
	q       int // quarter within the current bit
	cnt     int // divider countdown within the quarter
	sh      byte
	bit     int
	cur     Request
	errFlag bool
	rdata   byte
}

// NewMaster attaches a master to the given wires. div is the number of ticks
// per quarter bit-phase (minimum 2, so peripherals always observe edges a
// tick before the sampling point).
func NewMaster(f *hw.Fabric, scl, sda *hw.Wire, div int) *Master {
	if div < 2 {
		div = 2
	}
	return &Master{
		scl:   scl.Attach(f),
		sda:   sda.Attach(f),
		sclW:  scl,
		sdaW:  sda,
		div:   div,
		req:   hw.NewReg(f, reqSlot{}),
		ready: hw.NewReg(f, true),
	}
}

func (m *Master) Name() string { return "twowire" }

func (m *Master) Reset() {
	m.scl.Release()
	m.sda.Release()
	m.req.Force(reqSlot{})
	m.ready.Force(true)
	m.seq, m.last = 0, 0
	m.st = stIdle
	m.errFlag = false
	m.rdata = 0
}

// Ready reports whether a new transaction may be started.
func (m *Master) Ready() bool { return m.ready.Get() }

// Err reports whether the last completed transaction saw a missing
// acknowledgment. Valid while Ready.
func (m *Master) Err() bool { return m.errFlag }

// Data returns the byte read by the last write-then-read transaction.
func (m *Master) Data() byte { return m.rdata }

// Start stages a transaction. The caller owns the request until the master
// reasserts Ready; callers must observe Ready before staging.
func (m *Master) Start(r Request) {
	m.seq++
	m.req.Set(reqSlot{Seq: m.seq, Req: r})
}

func (m *Master) Tick() {
	if m.st == stIdle {
		slot := m.req.Get()
		if slot.Seq == m.last {
			return
		}
		m.last = slot.Seq
		m.cur = slot.Req
		m.errFlag = false
		m.ready.Set(false)
		m.enter(stStart)
		return
	}

	m.cnt--
	if m.cnt > 0 {
		return
	}
	m.cnt = m.div
	m.quarter()
}

func (m *Master) enter(s state) {
	m.st = s
	m.q = 0
	m.cnt = m.div
	switch s {
	case stAddrWrite:
		m.sh = m.cur.Addr<<1 | 0
		m.bit = 7
	case stSubAddr:
		m.sh = m.cur.Sub
		m.bit = 7
	case stDataWrite:
		m.sh = m.cur.Data
		m.bit = 7
	case stAddrRead:
		m.sh = m.cur.Addr<<1 | 1
		m.bit = 7
	case stDataRead:
		m.rdata = 0
		m.bit = 7
	}
}

// quarter advances one quarter bit-phase.
func (m *Master) quarter() {
	switch m.st {
	case stStart:
		// SDA falls while SCL is high, then SCL follows.
		switch m.q {
		case 0:
			m.scl.Release()
			m.sda.Release()
		case 1:
			m.sda.AssertLow()
		case 2:
			m.scl.AssertLow()
			m.enter(stAddrWrite)
			return
		}
		m.q++

	case stAddrWrite, stSubAddr, stDataWrite, stAddrRead:
		m.shiftOut(m.nextAfterWrite())

	case stAck1, stAck2, stAck3, stAck4:
		m.ackSlot()

	case stRestart:
		switch m.q {
		case 0:
			m.sda.Release()
		case 1:
			m.scl.Release()
		case 2:
			m.sda.AssertLow()
		case 3:
			m.scl.AssertLow()
			m.enter(stAddrRead)
			return
		}
		m.q++

	case stDataRead:
		switch m.q {
		case 0:
			m.scl.AssertLow()
			m.sda.Release()
		case 1:
			m.scl.Release()
		case 2:
			if m.sdaW.High() {
				m.rdata |= 1 << m.bit
			}
		case 3:
			m.scl.AssertLow()
			m.bit--
			if m.bit < 0 {
				m.enter(stNack)
				return
			}
			m.q = 0
			return
		}
		m.q++

	case stNack:
		// Master leaves SDA released (high) through the ack slot to
		// terminate the single-byte read.
		switch m.q {
		case 0:
			m.scl.AssertLow()
			m.sda.Release()
		case 1:
			m.scl.Release()
		case 2:
			// hold
		case 3:
			m.scl.AssertLow()
			m.enter(stStop)
			return
		}
		m.q++

	case stStop:
		// SDA rises while SCL is high.
		switch m.q {
		case 0:
			m.scl.AssertLow()
			m.sda.AssertLow()
		case 1:
			m.scl.Release()
		case 2:
			m.sda.Release()
			m.ready.Set(true)
			m.st = stIdle
			return
		}
		m.q++
	}
}

// shiftOut clocks the current shift register bit; next is entered after the
// final bit's falling clock edge.
func (m *Master) shiftOut(next state) {
	switch m.q {
	case 0:
		m.scl.AssertLow()
		if m.sh&(1<<m.bit) != 0 {
			m.sda.Release()
		} else {
			m.sda.AssertLow()
		}
	case 1:
		m.scl.Release()
	case 2:
		// peripheral samples here
	case 3:
		m.scl.AssertLow()
		m.bit--
		if m.bit < 0 {
			m.enter(next)
			return
		}
		m.q = 0
		return
	}
	m.q++
}

func (m *Master) nextAfterWrite() state {
	switch m.st {
	case stAddrWrite:
		return stAck1
	case stSubAddr:
		return stAck2
	case stDataWrite:
		return stAck3
	default: // stAddrRead
		return stAck4
	}
}

// ackSlot clocks the ninth bit and samples the peripheral's acknowledgment.
// A missing ack forces Stop with the error flag set; ready is still
// reasserted afterward so the caller can retry or move on.
func (m *Master) ackSlot() {
	switch m.q {
	case 0:
		m.scl.AssertLow()
		m.sda.Release()
	case 1:
		m.scl.Release()
	case 2:
		if m.sdaW.High() { // no acknowledgment
			m.errFlag = true
		}
	case 3:
		m.scl.AssertLow()
		if m.errFlag {
			m.enter(stStop)
			return
		}
		switch m.st {
		case stAck1:
			m.enter(stSubAddr)
		case stAck2:
			if m.cur.Read {
				m.enter(stRestart)
			} else {
				m.enter(stDataWrite)
			}
		case stAck3:
			m.enter(stStop)
		case stAck4:
			m.enter(stDataRead)
		}
		return
	}
	m.q++
}
