// Package excite drives the 8x8 excitation-source array: a selected element
// is asserted for a requested number of ticks and then released. Row select
// is one-hot active-high; column sink select is one-hot active-low.
package excite

import "qnos-go/hw"

// ColIdle is the column select value with no sink enabled.
const ColIdle = 0xFF

// armReq is the single-slot mailbox the dispatcher writes. Seq changes on
// every arm so a re-arm with identical values is still observed.
type armReq struct {
	Seq   uint32
	Row   uint8
	Col   uint8
	Ticks uint32
}

// Timer is the excitation timer machine.
type Timer struct {
	req    *hw.Reg[armReq]
	rowSel *hw.Reg[uint8]
	colSel *hw.Reg[uint8]

	seq       uint32
	lastSeq   uint32
	remaining uint32
}

func New(f *hw.Fabric) *Timer {
	return &Timer{
		req:    hw.NewReg(f, armReq{}),
		rowSel: hw.NewReg[uint8](f, 0),
		colSel: hw.NewReg[uint8](f, ColIdle),
	}
}

func (t *Timer) Name() string { return "excite" }

func (t *Timer) Reset() {
	t.req.Force(armReq{})
	t.rowSel.Force(0)
	t.colSel.Force(ColIdle)
	t.seq = 0
	t.lastSeq = 0
	t.remaining = 0
}

// Arm requests row/col asserted for ticks. Re-arming while armed overwrites
// the previous mask and duration; nothing is queued.
func (t *Timer) Arm(row, col uint8, ticks uint32) {
	t.seq++
	t.req.Set(armReq{Seq: t.seq, Row: row & 7, Col: col & 7, Ticks: ticks})
}

func (t *Timer) Tick() {
	r := t.req.Get()
	if r.Seq != t.lastSeq {
		t.lastSeq = r.Seq
		t.remaining = r.Ticks
		if r.Ticks == 0 {
			t.rowSel.Set(0)
			t.colSel.Set(ColIdle)
			return
		}
		t.rowSel.Set(1 << r.Row)
		t.colSel.Set(^uint8(1 << r.Col))
		return
	}
	if t.remaining > 0 {
		t.remaining--
		if t.remaining == 0 {
			t.rowSel.Set(0)
			t.colSel.Set(ColIdle)
		}
	}
}

// RowSel returns the committed one-hot row select.
func (t *Timer) RowSel() uint8 { return t.rowSel.Get() }

// ColSel returns the committed active-low column sink select.
func (t *Timer) ColSel() uint8 { return t.colSel.Get() }

// Active reports whether any element is currently asserted.
func (t *Timer) Active() bool { return t.rowSel.Get() != 0 }

// Element returns the asserted row and column, valid only while Active.
func (t *Timer) Element() (row, col uint8) {
	for row = 0; row < 8; row++ {
		if t.rowSel.Get()&(1<<row) != 0 {
			break
		}
	}
	inv := ^t.colSel.Get()
	for col = 0; col < 8; col++ {
		if inv&(1<<col) != 0 {
			break
		}
	}
	return row, col
}
