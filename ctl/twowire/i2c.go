package twowire

import (
	"tinygo.org/x/drivers"

	"qnos-go/errcode"
)

var _ drivers.I2C = (*I2CAdapter)(nil)

// I2CAdapter exposes the tick-level master as a blocking drivers.I2C
// (tinygo.org/x/drivers) implementation: Tx steps the fabric until the
// transaction completes. Used for register read-back once the configuration
// sequencer has finished, and by tests.
type I2CAdapter struct {
	M    *Master
	Step func() // advances the whole fabric by one tick

	// Budget bounds the number of ticks a single transaction may take.
	// Zero means a generous default.
	Budget int
}

const defaultTxBudget = 100000

// Tx implements drivers.I2C for the transaction shapes the master supports:
// a two-byte write (sub-address, value) or a one-byte write followed by a
// one-byte read.
func (a *I2CAdapter) Tx(addr uint16, w, r []byte) error {
	var req Request
	req.Addr = byte(addr & 0x7F)
	switch {
	case len(w) == 2 && len(r) == 0:
		req.Sub, req.Data = w[0], w[1]
	case len(w) == 1 && len(r) == 1:
		req.Sub, req.Read = w[0], true
	default:
		return &errcode.E{C: errcode.InvalidParams, Op: "twowire.Tx",
			Msg: "unsupported transaction shape"}
	}

	budget := a.Budget
	if budget <= 0 {
		budget = defaultTxBudget
	}

	if !a.stepUntil(func() bool { return a.M.Ready() }, &budget) {
		return errcode.Busy
	}
	a.M.Start(req)
	if !a.stepUntil(func() bool { return !a.M.Ready() }, &budget) {
		return errcode.Timeout
	}
	if !a.stepUntil(func() bool { return a.M.Ready() }, &budget) {
		return errcode.Timeout
	}
	if a.M.Err() {
		return errcode.BusNack
	}
	if req.Read {
		r[0] = a.M.Data()
	}
	return nil
}

func (a *I2CAdapter) stepUntil(cond func() bool, budget *int) bool {
	for !cond() {
		if *budget <= 0 {
			return false
		}
		a.Step()
		*budget--
	}
	return true
}
