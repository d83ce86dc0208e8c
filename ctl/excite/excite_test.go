package excite

import (
	"testing"

	"qnos-go/hw"
)

func step(s *hw.Scheduler, t *Timer) {
	t.Tick()
	s.LatchAll()
}

func TestAssertExactDuration(t *testing.T) {
	s := hw.NewScheduler()
	tm := New(&s.Fabric)

	tm.Arm(3, 5, 10)
	step(s, tm) // consume the arm request

	if tm.RowSel() != 1<<3 {
		t.Fatalf("RowSel = %#02x, want %#02x", tm.RowSel(), 1<<3)
	}
	if tm.ColSel() != ^uint8(1<<5) {
		t.Fatalf("ColSel = %#02x, want %#02x", tm.ColSel(), ^uint8(1<<5))
	}
	r, c := tm.Element()
	if r != 3 || c != 5 {
		t.Fatalf("Element = %d,%d", r, c)
	}

	// Asserted for exactly 10 ticks, never deasserted early.
	for i := 0; i < 10; i++ {
		if !tm.Active() {
			t.Fatalf("deasserted early at tick %d", i)
		}
		step(s, tm)
	}
	if tm.Active() {
		t.Error("still asserted after duration elapsed")
	}
	if tm.ColSel() != ColIdle {
		t.Errorf("ColSel = %#02x after expiry, want %#02x", tm.ColSel(), ColIdle)
	}
}

func TestRearmOverwrites(t *testing.T) {
	s := hw.NewScheduler()
	tm := New(&s.Fabric)

	tm.Arm(1, 1, 100)
	step(s, tm)
	step(s, tm)

	// Re-arm long before the first duration elapses: replaces, does not add.
	tm.Arm(7, 0, 3)
	step(s, tm)

	if tm.RowSel() != 1<<7 {
		t.Fatalf("RowSel = %#02x after re-arm", tm.RowSel())
	}
	for i := 0; i < 3; i++ {
		if !tm.Active() {
			t.Fatalf("deasserted early at tick %d", i)
		}
		step(s, tm)
	}
	if tm.Active() {
		t.Error("re-armed duration did not replace the old one")
	}
}

func TestRearmSameElement(t *testing.T) {
	s := hw.NewScheduler()
	tm := New(&s.Fabric)

	tm.Arm(2, 2, 5)
	step(s, tm)
	step(s, tm)
	step(s, tm)

	// Same element, fresh duration: the request must still be observed.
	tm.Arm(2, 2, 5)
	step(s, tm)
	for i := 0; i < 5; i++ {
		if !tm.Active() {
			t.Fatalf("deasserted early at tick %d", i)
		}
		step(s, tm)
	}
	if tm.Active() {
		t.Error("still asserted after refreshed duration")
	}
}

func TestZeroDurationClears(t *testing.T) {
	s := hw.NewScheduler()
	tm := New(&s.Fabric)

	tm.Arm(4, 4, 8)
	step(s, tm)
	tm.Arm(4, 4, 0)
	step(s, tm)

	if tm.Active() {
		t.Error("zero duration should clear the mask")
	}
}

func TestReset(t *testing.T) {
	s := hw.NewScheduler()
	tm := New(&s.Fabric)

	tm.Arm(6, 1, 50)
	step(s, tm)
	tm.Reset()

	if tm.Active() {
		t.Error("active after reset")
	}
	step(s, tm)
	if tm.Active() {
		t.Error("stale arm request survived reset")
	}
}
