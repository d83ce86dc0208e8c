// Package hw is the tick kernel: latched registers, open-drain wires and a
// fixed-order scheduler. Every state machine in the controller advances once
// per tick and only ever observes values committed on the previous tick, so
// the outcome of a tick does not depend on the order machines are stepped in.
package hw

// Machine is one independently-advancing state machine.
type Machine interface {
	Name() string
	// Reset forces the machine to its initial state.
	Reset()
	// Tick computes the machine's next state from previous-tick inputs.
	Tick()
}

// Latcher commits a pending value at the end of a tick.
type Latcher interface {
	Latch()
}

// Fabric owns every latched element so the scheduler can commit them all
// after the machines have run.
type Fabric struct {
	latches []Latcher
}

func (f *Fabric) AddLatch(l Latcher) {
	f.latches = append(f.latches, l)
}

func (f *Fabric) LatchAll() {
	for _, l := range f.latches {
		l.Latch()
	}
}

// -----------------------------------------------------------------------------
// Registers
// -----------------------------------------------------------------------------

// Reg is a latched register. Set stages a value; Get returns the value
// committed on the previous tick.
type Reg[T any] struct {
	cur, next T
}

func NewReg[T any](f *Fabric, init T) *Reg[T] {
	r := &Reg[T]{cur: init, next: init}
	f.AddLatch(r)
	return r
}

func (r *Reg[T]) Get() T     { return r.cur }
func (r *Reg[T]) Set(v T)    { r.next = v }
func (r *Reg[T]) Latch()     { r.cur = r.next }
func (r *Reg[T]) Force(v T)  { r.cur, r.next = v, v } // reset-time only
func (r *Reg[T]) Staged() T  { return r.next }

// -----------------------------------------------------------------------------
// Open-drain wires
// -----------------------------------------------------------------------------

// Driver is one attachment to a wire. A driver only ever pulls the line low
// or releases it; the wire is never driven high directly.
type Driver struct {
	cur, next bool // true = asserting low
}

func (d *Driver) AssertLow() { d.next = true }
func (d *Driver) Release()   { d.next = false }
func (d *Driver) Latch()     { d.cur = d.next }
func (d *Driver) force(v bool) { d.cur, d.next = v, v }

// Wire is a shared open-drain line with an external pull-up: it reads low
// when any attached driver asserts low, high otherwise.
type Wire struct {
	drivers []*Driver
}

func NewWire() *Wire {
	return &Wire{}
}

// Attach adds a driver to the wire, released by default.
func (w *Wire) Attach(f *Fabric) *Driver {
	d := &Driver{}
	f.AddLatch(d)
	w.drivers = append(w.drivers, d)
	return d
}

// High reports the resolved line level as of the previous tick.
func (w *Wire) High() bool {
	for _, d := range w.drivers {
		if d.cur {
			return false
		}
	}
	return true
}

func (w *Wire) release() {
	for _, d := range w.drivers {
		d.force(false)
	}
}

// -----------------------------------------------------------------------------
// Scheduler
// -----------------------------------------------------------------------------

// Scheduler steps every registered machine once per tick in registration
// order, then commits all latched registers and drivers.
type Scheduler struct {
	Fabric
	machines []Machine
	ticks    uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Register(ms ...Machine) {
	s.machines = append(s.machines, ms...)
}

// Step advances the whole fabric by one tick.
func (s *Scheduler) Step() {
	for _, m := range s.machines {
		m.Tick()
	}
	s.LatchAll()
	s.ticks++
}

// Run advances n ticks.
func (s *Scheduler) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Reset forces every machine to its initial state and releases all wires.
// This is the global hardware reset: nothing survives it.
func (s *Scheduler) Reset() {
	for _, m := range s.machines {
		m.Reset()
	}
	s.LatchAll()
	s.ticks = 0
}

// ResetWires releases every driver on the given wires immediately.
func ResetWires(ws ...*Wire) {
	for _, w := range ws {
		w.release()
	}
}
