package hw

import "testing"

// counter increments a register by one each tick.
type counter struct {
	r *Reg[int]
}

func (c *counter) Name() string { return "counter" }
func (c *counter) Reset()       { c.r.Force(0) }
func (c *counter) Tick()        { c.r.Set(c.r.Get() + 1) }

// shadow copies the counter's committed value each tick.
type shadow struct {
	src  *Reg[int]
	seen []int
}

func (s *shadow) Name() string { return "shadow" }
func (s *shadow) Reset()       { s.seen = nil }
func (s *shadow) Tick()        { s.seen = append(s.seen, s.src.Get()) }

func TestRegLagsOneTick(t *testing.T) {
	s := NewScheduler()
	r := NewReg(&s.Fabric, 0)
	r.Set(7)
	if r.Get() != 0 {
		t.Fatal("staged value visible before latch")
	}
	s.Fabric.LatchAll()
	if r.Get() != 7 {
		t.Fatal("latched value not visible")
	}
}

func TestObservationOrderIndependence(t *testing.T) {
	// The shadow must see the same sequence whether it is stepped before
	// or after the counter.
	for _, order := range []string{"counter-first", "shadow-first"} {
		s := NewScheduler()
		c := &counter{r: NewReg(&s.Fabric, 0)}
		sh := &shadow{src: c.r}
		if order == "counter-first" {
			s.Register(c, sh)
		} else {
			s.Register(sh, c)
		}
		s.Run(4)

		want := []int{0, 1, 2, 3}
		for i, v := range want {
			if sh.seen[i] != v {
				t.Fatalf("%s: seen = %v, want %v", order, sh.seen, want)
			}
		}
	}
}

func TestOpenDrainResolution(t *testing.T) {
	s := NewScheduler()
	w := NewWire()
	a := w.Attach(&s.Fabric)
	b := w.Attach(&s.Fabric)

	if !w.High() {
		t.Fatal("idle wire not pulled high")
	}
	a.AssertLow()
	s.Fabric.LatchAll()
	if w.High() {
		t.Fatal("asserted wire reads high")
	}
	b.AssertLow()
	a.Release()
	s.Fabric.LatchAll()
	if w.High() {
		t.Fatal("wire high while any driver asserts")
	}
	b.Release()
	s.Fabric.LatchAll()
	if !w.High() {
		t.Fatal("released wire not pulled high")
	}
}

func TestSchedulerReset(t *testing.T) {
	s := NewScheduler()
	c := &counter{r: NewReg(&s.Fabric, 0)}
	s.Register(c)
	s.Run(5)
	if s.Ticks() != 5 || c.r.Get() == 0 {
		t.Fatal("scheduler did not advance")
	}
	s.Reset()
	if s.Ticks() != 0 || c.r.Get() != 0 {
		t.Fatal("reset did not restore initial state")
	}
}
