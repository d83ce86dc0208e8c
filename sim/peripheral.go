// Package sim provides tick-level models of the peripherals the controller
// talks to: a two-wire register target, a pixel source that renders the
// excited element into the capture stream, and a synthesizer shift-register
// model with lock detect. They attach to the same fabric as the controller
// machines, so everything they observe is previous-tick committed state.
package sim

import (
	"qnos-go/hw"
)

type pphase uint8

const (
	phIdle pphase = iota
	phAddr
	phAckAddr
	phSub
	phAckSub
	phData
	phAckData
	phRead
	phMasterAck
)

// WriteOp records one register write seen by the peripheral.
type WriteOp struct {
	Sub byte
	Val byte
}

// Peripheral is a two-wire register target: 7-bit address, one sub-address
// byte, then data bytes written to an internal register file. A read
// transaction returns the register selected by the last sub-address.
type Peripheral struct {
	scl, sda *hw.Wire
	drv      *hw.Driver

	Addr byte
	Regs [256]byte

	// Fault injection: refuse to acknowledge the address or the
	// sub-address byte.
	NackAddr bool
	NackSub  bool

	// Writes logs every completed register write in order.
	Writes []WriteOp

	prevSCL, prevSDA bool
	ph               pphase
	sh               byte
	bits             int
	sub              byte
	read             bool
	data             byte
	acked            bool
}

// NewPeripheral attaches a target with the given 7-bit address to the bus.
func NewPeripheral(f *hw.Fabric, scl, sda *hw.Wire, addr byte) *Peripheral {
	p := &Peripheral{
		scl:     scl,
		sda:     sda,
		drv:     sda.Attach(f),
		Addr:    addr,
		prevSCL: true,
		prevSDA: true,
	}
	return p
}

func (p *Peripheral) Name() string { return "periph" }

func (p *Peripheral) Reset() {
	p.drv.Release()
	p.ph = phIdle
	p.prevSCL = true
	p.prevSDA = true
	p.bits = 0
	p.Writes = nil
}

func (p *Peripheral) Tick() {
	scl := p.scl.High()
	sda := p.sda.High()
	defer func() { p.prevSCL, p.prevSDA = scl, sda }()

	// Start and stop conditions: SDA edges while SCL is high. A start in
	// the middle of a transaction is a repeated start.
	if p.prevSCL && scl {
		switch {
		case p.prevSDA && !sda:
			p.drv.Release()
			p.ph = phAddr
			p.sh = 0
			p.bits = 0
			return
		case !p.prevSDA && sda:
			p.drv.Release()
			p.ph = phIdle
			return
		}
	}

	rising := !p.prevSCL && scl
	falling := p.prevSCL && !scl

	switch p.ph {
	case phAddr, phSub, phData:
		if rising {
			p.sh <<= 1
			if sda {
				p.sh |= 1
			}
			p.bits++
		}
		if falling && p.bits == 8 {
			p.enterAck()
		}

	case phAckAddr:
		if falling {
			p.drv.Release()
			p.bits = 0
			p.sh = 0
			if !p.acked {
				p.ph = phIdle
			} else if p.read {
				p.data = p.Regs[p.sub]
				p.ph = phRead
				p.driveReadBit()
			} else {
				p.ph = phSub
			}
		}

	case phAckSub:
		if falling {
			p.drv.Release()
			p.bits = 0
			p.sh = 0
			if p.acked {
				p.ph = phData
			} else {
				p.ph = phIdle
			}
		}

	case phAckData:
		if falling {
			p.drv.Release()
			p.bits = 0
			p.sh = 0
			p.ph = phData
		}

	case phRead:
		if falling {
			if p.bits == 8 {
				p.drv.Release()
				p.ph = phMasterAck
			} else {
				p.driveReadBit()
			}
		}

	case phMasterAck:
		if falling {
			// Master nacks the final byte; wait for the stop.
			p.ph = phIdle
		}
	}
}

// enterAck runs after the eighth data bit: decide whether to acknowledge
// and drive the line for the ack clock pulse.
func (p *Peripheral) enterAck() {
	switch p.ph {
	case phAddr:
		p.read = p.sh&1 != 0
		p.acked = p.sh>>1 == p.Addr && !p.NackAddr
		p.ph = phAckAddr
	case phSub:
		p.sub = p.sh
		p.acked = !p.NackSub
		p.ph = phAckSub
	case phData:
		p.Regs[p.sub] = p.sh
		p.Writes = append(p.Writes, WriteOp{Sub: p.sub, Val: p.sh})
		p.sub++
		p.acked = true
		p.ph = phAckData
	}
	if p.acked {
		p.drv.AssertLow()
	}
}

func (p *Peripheral) driveReadBit() {
	if p.data&(0x80>>p.bits) == 0 {
		p.drv.AssertLow()
	} else {
		p.drv.Release()
	}
	p.bits++
}
