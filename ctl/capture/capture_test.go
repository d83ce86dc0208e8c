package capture

import (
	"testing"

	"qnos-go/hw"
)

func step(s *hw.Scheduler, c *Controller) {
	c.Tick()
	s.LatchAll()
}

// feedFrame drives w*h pixels with the given sample pair, then the frame
// boundary.
func feedFrame(s *hw.Scheduler, c *Controller, d1, d2 byte) {
	for i := 0; i < c.Width()*c.Height(); i++ {
		c.Drive(Pixel{Valid: true, D1: d1, D2: d2})
		step(s, c)
	}
	c.Drive(Pixel{FrameEnd: true})
	step(s, c)
	c.Drive(Pixel{})
	step(s, c)
}

func TestCaptureAveragesSamples(t *testing.T) {
	s := hw.NewScheduler()
	c := New(&s.Fabric, 4, 3, 0)

	seq := c.Trigger(false)
	step(s, c) // consume trigger
	feedFrame(s, c, 10, 30)

	got, timedOut := c.Completed()
	if got != seq || timedOut {
		t.Fatalf("Completed = %d,%v want %d,false", got, timedOut, seq)
	}
	buf := c.Readout()
	if len(buf) != 12 {
		t.Fatalf("Readout len = %d", len(buf))
	}
	for i, b := range buf {
		if b != 20 {
			t.Fatalf("pixel %d = %d, want 20", i, b)
		}
	}
	if _, pixels, _ := c.LastFrame(); pixels != 12 {
		t.Errorf("pixels = %d, want 12", pixels)
	}
}

func TestBufferSelectTogglesEveryTrigger(t *testing.T) {
	s := hw.NewScheduler()
	c := New(&s.Fabric, 2, 2, 0)

	c.Trigger(false)
	step(s, c)
	first := c.WriteTarget()
	feedFrame(s, c, 100, 100)

	c.Trigger(false)
	step(s, c)
	second := c.WriteTarget()
	feedFrame(s, c, 200, 200)

	if first == second {
		t.Fatalf("write target did not toggle: %d then %d", first, second)
	}

	c.Trigger(false)
	step(s, c)
	if c.WriteTarget() != first {
		t.Errorf("third trigger should return to buffer %d", first)
	}
}

func TestReadoutStableDuringNextCapture(t *testing.T) {
	s := hw.NewScheduler()
	c := New(&s.Fabric, 2, 2, 0)

	c.Trigger(false)
	step(s, c)
	feedFrame(s, c, 50, 50)
	frame := c.Readout()

	// Start the next capture and write half of it: the completed frame
	// must not change.
	c.Trigger(false)
	step(s, c)
	c.Drive(Pixel{Valid: true, D1: 255, D2: 255})
	step(s, c)
	c.Drive(Pixel{Valid: true, D1: 255, D2: 255})
	step(s, c)

	for i, b := range frame {
		if b != 50 {
			t.Fatalf("completed frame byte %d overwritten: %d", i, b)
		}
	}
}

func TestDarkFlag(t *testing.T) {
	s := hw.NewScheduler()
	c := New(&s.Fabric, 2, 1, 0)

	c.Trigger(true)
	step(s, c)
	feedFrame(s, c, 0, 0)

	if _, _, dark := c.LastFrame(); !dark {
		t.Error("dark flag lost")
	}
}

func TestTimeoutWhenFrameBoundaryNeverArrives(t *testing.T) {
	s := hw.NewScheduler()
	c := New(&s.Fabric, 2, 2, 16)

	seq := c.Trigger(false)
	step(s, c)
	for i := 0; i < 20; i++ {
		c.Drive(Pixel{}) // no pixels, no boundary
		step(s, c)
	}

	got, timedOut := c.Completed()
	if got != seq || !timedOut {
		t.Fatalf("Completed = %d,%v want %d,true", got, timedOut, seq)
	}
	if c.Capturing() {
		t.Error("still capturing after timeout")
	}

	// A later capture still works.
	seq = c.Trigger(false)
	step(s, c)
	feedFrame(s, c, 8, 8)
	if got, timedOut := c.Completed(); got != seq || timedOut {
		t.Errorf("recovery capture Completed = %d,%v", got, timedOut)
	}
}

func TestOverrunPixelsDropped(t *testing.T) {
	s := hw.NewScheduler()
	c := New(&s.Fabric, 2, 1, 0)

	c.Trigger(false)
	step(s, c)
	for i := 0; i < 5; i++ { // three more than fit
		c.Drive(Pixel{Valid: true, D1: byte(i), D2: byte(i)})
		step(s, c)
	}
	c.Drive(Pixel{FrameEnd: true})
	step(s, c)
	c.Drive(Pixel{})
	step(s, c)

	if _, pixels, _ := c.LastFrame(); pixels != 2 {
		t.Errorf("pixels = %d, want cursor capped at 2", pixels)
	}
}
