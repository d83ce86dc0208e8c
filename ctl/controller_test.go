package ctl_test

import (
	"testing"

	"qnos-go/bus"
	"qnos-go/ctl"
	"qnos-go/drivers/ov7670"
	"qnos-go/errcode"
	"qnos-go/sim"
	"qnos-go/types"
)

// system is the controller wired to a full set of simulated peripherals.
type system struct {
	c      *ctl.Controller
	periph *sim.Peripheral
	pixels *sim.PixelSource
	synth  *sim.SynthModel
	b      *bus.Bus
}

func newSystem(t *testing.T) *system {
	t.Helper()
	b := bus.NewBus(64)
	cfg := ctl.Config{
		Width:  32,
		Height: 24,
		TickHz: 1000, // one tick per millisecond
	}
	c := ctl.New(cfg, b.NewConnection("ctl"))

	scl, sda := c.Wires()
	sys := &system{
		c:      c,
		periph: sim.NewPeripheral(c.Fabric(), scl, sda, ov7670.AddressDefault),
		pixels: sim.NewPixelSource(c.Capture(), c.Excite()),
		synth:  sim.NewSynthModel(c.Synth()),
		b:      b,
	}
	c.Attach(sys.periph, sys.pixels, sys.synth)
	return sys
}

// runUntil steps until cond holds, bounded.
func (s *system) runUntil(t *testing.T, max int, cond func() bool) {
	t.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return
		}
		s.c.Step()
	}
	t.Fatalf("condition not reached after %d ticks", max)
}

// command feeds a line and collects output until n bytes arrive.
func (s *system) command(t *testing.T, line string, n, max int) []byte {
	t.Helper()
	if w := s.c.Rx().WriteFrom([]byte(line)); w != len(line) {
		t.Fatalf("rx ring refused input")
	}
	var out []byte
	for i := 0; i < max; i++ {
		s.c.Step()
		for {
			b, ok := s.c.Tx().ReadByte()
			if !ok {
				break
			}
			out = append(out, b)
		}
		if len(out) >= n {
			return out
		}
	}
	t.Fatalf("got %d output bytes after %d ticks, want %d", len(out), max, n)
	return nil
}

func configured(t *testing.T, s *system) {
	t.Helper()
	s.runUntil(t, 500_000, s.c.ConfigDone)
}

func TestStartupConfiguration(t *testing.T) {
	s := newSystem(t)
	configured(t, s)

	want := len(ov7670.DefaultConfig) - 1
	if len(s.periph.Writes) != want {
		t.Fatalf("sensor saw %d register writes, want %d", len(s.periph.Writes), want)
	}
	if _, latched, _ := s.c.Fault(); latched {
		t.Fatal("fault latched during clean configuration")
	}
}

func TestConfigurationFailureFaults(t *testing.T) {
	s := newSystem(t)
	s.periph.NackAddr = true
	configured(t, s)

	f, latched, _ := s.c.Fault()
	if !latched {
		t.Fatal("no fault latched for nacked configuration")
	}
	if f.Code != string(errcode.ConfigFailed) {
		t.Fatalf("fault code = %q, want %q", f.Code, errcode.ConfigFailed)
	}
}

func TestFireAndCapture(t *testing.T) {
	s := newSystem(t)
	configured(t, s)

	out := s.command(t, "FIRE_LASER 2 3 2000\n", 1, 2000)
	if out[0] != 'O' {
		t.Fatalf("fire reply = %q, want 'O'", out)
	}

	w, h := s.c.Capture().Width(), s.c.Capture().Height()
	frame := s.command(t, "CAPTURE_FRAME\n", w*h, 50_000)
	if len(frame) != w*h {
		t.Fatalf("frame length = %d, want %d", len(frame), w*h)
	}

	// Disc centre for element (2,3) on the 8x8 grid.
	cx := 3*(w/8) + w/16
	cy := 2*(h/8) + h/16
	if got := frame[cy*w+cx]; got != s.pixels.Bright {
		t.Errorf("centre pixel = %d, want %d", got, s.pixels.Bright)
	}
	if got := frame[0]; got != s.pixels.Background {
		t.Errorf("corner pixel = %d, want %d", got, s.pixels.Background)
	}
}

func TestDarkFrameAfterExpiry(t *testing.T) {
	s := newSystem(t)
	configured(t, s)

	out := s.command(t, "FIRE_LASER 1 1 2\n", 1, 2000)
	if out[0] != 'O' {
		t.Fatalf("fire reply = %q", out)
	}
	s.c.Run(16) // excitation lapses

	w, h := s.c.Capture().Width(), s.c.Capture().Height()
	frame := s.command(t, "CAPTURE_DARK\n", w*h, 50_000)
	for i, v := range frame {
		if v != s.pixels.Background {
			t.Fatalf("pixel %d = %d in dark frame, want %d", i, v, s.pixels.Background)
		}
	}
}

func TestApplyPulseEvent(t *testing.T) {
	s := newSystem(t)
	conn := s.b.NewConnection("test")
	sub := conn.Subscribe(bus.Topic{"ctl", "pulse", "done"})
	configured(t, s)

	out := s.command(t, "APPLY_PULSE 1 3000 50 100 0\n", 1, 2000)
	if out[0] != 'O' {
		t.Fatalf("pulse reply = %q, want 'O'", out)
	}

	s.runUntil(t, 100, s.c.Synth().Busy)
	s.runUntil(t, 20_000, func() bool { return !s.c.Synth().Busy() })
	s.c.Run(4) // monitor edge

	select {
	case msg := <-sub.Channel():
		info, ok := msg.Payload.(types.PulseInfo)
		if !ok {
			t.Fatalf("payload type %T", msg.Payload)
		}
		if info.FreqMHz != 3000 || !info.Locked {
			t.Fatalf("pulse event = %+v", info)
		}
	default:
		t.Fatal("no pulse completion event published")
	}

	if s.synth.Words != 6 {
		t.Errorf("synthesizer latched %d words, want 6", s.synth.Words)
	}
}

func TestLockTimeoutFault(t *testing.T) {
	s := newSystem(t)
	s.synth.SettleTicks = -1
	configured(t, s)

	out := s.command(t, "APPLY_PULSE 1 3000 50 100 0\n", 1, 2000)
	if out[0] != 'O' {
		t.Fatalf("pulse reply = %q", out)
	}
	s.runUntil(t, 100, s.c.Synth().Busy)
	s.runUntil(t, 200_000, func() bool { return !s.c.Synth().Busy() })
	s.c.Run(4)

	f, latched, _ := s.c.Fault()
	if !latched || f.Code != string(errcode.LockTimeout) {
		t.Fatalf("fault = %+v latched=%v, want lock timeout", f, latched)
	}
}

func TestProtocolErrorLatchesFault(t *testing.T) {
	s := newSystem(t)
	configured(t, s)

	out := s.command(t, "NOT_A_COMMAND\n", 1, 2000)
	if out[0] != 'E' {
		t.Fatalf("reply = %q, want 'E'", out)
	}
	f, latched, count := s.c.Fault()
	if !latched || f.Code != string(errcode.UnknownCommand) || count != 1 {
		t.Fatalf("fault = %+v latched=%v count=%d", f, latched, count)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := newSystem(t)
	configured(t, s)
	s.command(t, "NOT_A_COMMAND\n", 1, 2000)

	s.c.Reset()
	if _, latched, count := s.c.Fault(); latched || count != 0 {
		t.Fatal("fault survived reset")
	}
	if s.c.ConfigDone() {
		t.Fatal("config-done survived reset")
	}

	// The startup sequence replays after reset.
	s.periph.Writes = nil
	configured(t, s)
	if len(s.periph.Writes) != len(ov7670.DefaultConfig)-1 {
		t.Fatalf("configuration did not replay after reset")
	}
}

func TestStateRetained(t *testing.T) {
	s := newSystem(t)
	configured(t, s)
	s.c.Run(4)

	conn := s.b.NewConnection("late")
	sub := conn.Subscribe(bus.Topic{"ctl", "state"})
	select {
	case msg := <-sub.Channel():
		st, ok := msg.Payload.(types.ControllerState)
		if !ok {
			t.Fatalf("payload type %T", msg.Payload)
		}
		if st.Level != "ready" || !st.ConfigDone {
			t.Fatalf("retained state = %+v, want ready", st)
		}
	default:
		t.Fatal("no retained state for late subscriber")
	}
}
