// Package synth programs the ADF4351 frequency synthesizer: six 32-bit
// register words derived from the requested pulse are shifted out MSB-first
// on a bit-banged serial link, then the lock-detect input is polled with a
// bounded timeout.
package synth

import (
	"qnos-go/drivers/adf4351"
	"qnos-go/hw"
)

// Pulse carries the parameters of an APPLY_PULSE command.
type Pulse struct {
	Index    uint32
	FreqMHz  uint32
	Amp      uint32
	Duration uint32 // ns, recorded for the event layer
	Phase    uint32
}

type startSlot struct {
	Seq uint32
	P   Pulse
}

type doneSlot struct {
	Seq    uint32
	P      Pulse
	Locked bool
}

type pstate uint8

const (
	syIdle pstate = iota
	syShift
	syGap
	syWaitLock
)

// Programmer is the serializer machine.
type Programmer struct {
	le, clk, dat *hw.Reg[bool]
	lock         *hw.Reg[bool]

	req  *hw.Reg[startSlot]
	done *hw.Reg[doneSlot]

	div          int // ticks per half clock phase
	TimeoutTicks int // bound on the lock wait

	st      pstate
	seq     uint32
	lastSeq uint32
	cur     Pulse
	regs    [6]uint32
	regIdx  int // 5 down to 0
	bit     int // 31 down to 0
	half    int
	cnt     int
	waited  int
}

func New(f *hw.Fabric, div, timeoutTicks int) *Programmer {
	if div < 1 {
		div = 1
	}
	return &Programmer{
		le:           hw.NewReg(f, true),
		clk:          hw.NewReg(f, false),
		dat:          hw.NewReg(f, false),
		lock:         hw.NewReg(f, false),
		req:          hw.NewReg(f, startSlot{}),
		done:         hw.NewReg(f, doneSlot{}),
		div:          div,
		TimeoutTicks: timeoutTicks,
	}
}

func (p *Programmer) Name() string { return "synth" }

func (p *Programmer) Reset() {
	p.le.Force(true)
	p.clk.Force(false)
	p.dat.Force(false)
	p.lock.Force(false)
	p.req.Force(startSlot{})
	p.done.Force(doneSlot{})
	p.seq, p.lastSeq = 0, 0
	p.st = syIdle
}

// StartPulse stages a programming run; reports false while one is already in
// progress (no queuing).
func (p *Programmer) StartPulse(pl Pulse) bool {
	if p.st != syIdle {
		return false
	}
	p.seq++
	p.req.Set(startSlot{Seq: p.seq, P: pl})
	return true
}

// Busy reports whether a programming run is in progress.
func (p *Programmer) Busy() bool { return p.st != syIdle }

// DriveLock stages the lock-detect input. Owned by the synthesizer side.
func (p *Programmer) DriveLock(v bool) { p.lock.Set(v) }

// Outputs: latch enable (active low during a transfer), serial clock, data.
func (p *Programmer) LE() bool   { return p.le.Get() }
func (p *Programmer) Clk() bool  { return p.clk.Get() }
func (p *Programmer) Data() bool { return p.dat.Get() }

// Completed returns the latest committed completion record.
func (p *Programmer) Completed() (seq uint32, pl Pulse, locked bool) {
	d := p.done.Get()
	return d.Seq, d.P, d.Locked
}

func (p *Programmer) Tick() {
	switch p.st {
	case syIdle:
		slot := p.req.Get()
		if slot.Seq == p.lastSeq {
			return
		}
		p.lastSeq = slot.Seq
		p.cur = slot.P
		p.regs = adf4351.Registers(adf4351.Params{
			FreqMHz: slot.P.FreqMHz,
			Amp:     slot.P.Amp,
			Phase:   slot.P.Phase,
		})
		p.regIdx = 5
		p.enterShift()

	case syShift:
		p.cnt--
		if p.cnt > 0 {
			return
		}
		p.cnt = p.div
		if p.half == 0 {
			if p.bit < 0 {
				// Let the final rising edge stand a full half
				// phase before latch enable rises.
				p.enterGap()
				return
			}
			p.clk.Set(false)
			p.dat.Set(p.regs[p.regIdx]&(1<<p.bit) != 0)
			p.half = 1
			return
		}
		p.clk.Set(true) // rising edge latches the data bit
		p.half = 0
		p.bit--

	case syGap:
		p.cnt--
		if p.cnt > 0 {
			return
		}
		if p.regIdx == 0 {
			p.st = syWaitLock
			p.waited = 0
			return
		}
		p.regIdx--
		p.enterShift()

	case syWaitLock:
		if p.lock.Get() {
			p.finish(true)
			return
		}
		p.waited++
		if p.TimeoutTicks > 0 && p.waited >= p.TimeoutTicks {
			p.finish(false)
		}
	}
}

func (p *Programmer) enterShift() {
	p.st = syShift
	p.le.Set(false)
	p.clk.Set(false)
	p.bit = 31
	p.half = 0
	p.cnt = p.div
}

// enterGap raises latch enable between registers and after the last one.
func (p *Programmer) enterGap() {
	p.st = syGap
	p.le.Set(true)
	p.clk.Set(false)
	p.cnt = 2 * p.div
}

func (p *Programmer) finish(locked bool) {
	p.st = syIdle
	p.done.Set(doneSlot{Seq: p.lastSeq, P: p.cur, Locked: locked})
}
