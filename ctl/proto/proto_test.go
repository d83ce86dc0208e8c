package proto

import (
	"bytes"
	"strings"
	"testing"

	"qnos-go/ctl/synth"
	"qnos-go/errcode"
	"qnos-go/x/bytering"
)

type stubExcite struct {
	row, col uint8
	ticks    uint32
	calls    int
}

func (s *stubExcite) Arm(row, col uint8, ticks uint32) {
	s.row, s.col, s.ticks = row, col, ticks
	s.calls++
}

type stubSynth struct {
	last  synth.Pulse
	busy  bool
	calls int
}

func (s *stubSynth) StartPulse(p synth.Pulse) bool {
	if s.busy {
		return false
	}
	s.last = p
	s.calls++
	return true
}

type stubCapture struct {
	seq      uint32
	doneSeq  uint32
	timedOut bool
	frame    []byte
	darks    []bool
}

func (s *stubCapture) Trigger(dark bool) uint32 {
	s.seq++
	s.darks = append(s.darks, dark)
	return s.seq
}

func (s *stubCapture) Completed() (uint32, bool) { return s.doneSeq, s.timedOut }
func (s *stubCapture) Readout() []byte           { return s.frame }

type harness struct {
	m    *Machine
	rx   *bytering.Ring
	tx   *bytering.Ring
	exc  *stubExcite
	syn  *stubSynth
	cap  *stubCapture
	errs []errcode.Code
}

func newHarness() *harness {
	h := &harness{
		rx:  bytering.New(256),
		tx:  bytering.New(256),
		exc: &stubExcite{},
		syn: &stubSynth{},
		cap: &stubCapture{},
	}
	h.m = New(Deps{
		Rx:         h.rx,
		Tx:         h.tx,
		Excite:     h.exc,
		Synth:      h.syn,
		Capture:    h.cap,
		TicksPerMS: 1000,
		Hooks: Hooks{
			Error: func(c errcode.Code) { h.errs = append(h.errs, c) },
		},
	})
	h.m.Reset()
	return h
}

func (h *harness) send(line string) {
	if n := h.rx.WriteFrom([]byte(line)); n != len(line) {
		panic("rx ring too small for test input")
	}
}

// run steps the machine n ticks and returns everything transmitted.
func (h *harness) run(n int) []byte {
	var out []byte
	for i := 0; i < n; i++ {
		h.m.Tick()
		for {
			b, ok := h.tx.ReadByte()
			if !ok {
				break
			}
			out = append(out, b)
		}
	}
	return out
}

func expectReply(t *testing.T, h *harness, line string, want byte) {
	t.Helper()
	h.send(line)
	out := h.run(len(line) + MaxLine + 8)
	if len(out) != 1 || out[0] != want {
		t.Fatalf("reply to %q = %q, want %q", line, out, string(want))
	}
}

func TestFireLaser(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "FIRE_LASER 3 5 10\n", ReplyOK)
	if h.exc.calls != 1 {
		t.Fatalf("Arm calls = %d, want 1", h.exc.calls)
	}
	if h.exc.row != 3 || h.exc.col != 5 {
		t.Errorf("armed element (%d,%d), want (3,5)", h.exc.row, h.exc.col)
	}
	if h.exc.ticks != 10*1000 {
		t.Errorf("armed ticks = %d, want 10000", h.exc.ticks)
	}
}

func TestUnknownCommandThenRecovery(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "BOGUS 1 2\n", ReplyErr)
	if len(h.errs) != 1 || h.errs[0] != errcode.UnknownCommand {
		t.Fatalf("errors = %v, want [unknown_command]", h.errs)
	}
	expectReply(t, h, "FIRE_LASER 0 0 1\n", ReplyOK)
}

func TestApplyPulse(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "APPLY_PULSE 1 3000 50 100 0\n", ReplyOK)
	want := synth.Pulse{Index: 1, FreqMHz: 3000, Amp: 50, Duration: 100, Phase: 0}
	if h.syn.last != want {
		t.Errorf("pulse = %+v, want %+v", h.syn.last, want)
	}
}

func TestApplyPulseBusy(t *testing.T) {
	h := newHarness()
	h.syn.busy = true
	expectReply(t, h, "APPLY_PULSE 1 3000 50 100 0\n", ReplyErr)
	if len(h.errs) != 1 || h.errs[0] != errcode.Busy {
		t.Fatalf("errors = %v, want [busy]", h.errs)
	}
}

func TestPulseFrequencyOutOfRange(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "APPLY_PULSE 0 9000 50 100 0\n", ReplyErr)
	if h.syn.calls != 0 {
		t.Errorf("StartPulse called for out-of-range frequency")
	}
}

func TestFireValidation(t *testing.T) {
	h := newHarness()
	for _, line := range []string{
		"FIRE_LASER 8 0 10\n", // row out of range
		"FIRE_LASER 0 9 10\n", // col out of range
		"FIRE_LASER 0 0 0\n",  // zero duration
		"FIRE_LASER 1 2\n",    // missing argument
		"FIRE_LASER 1 2 x\n",  // non-numeric
	} {
		expectReply(t, h, line, ReplyErr)
	}
	if h.exc.calls != 0 {
		t.Errorf("Arm called %d times on invalid input", h.exc.calls)
	}
}

func TestFractionalArgumentsTruncate(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "FIRE_LASER 3.7 5 10\n", ReplyOK)
	if h.exc.row != 3 {
		t.Errorf("row = %d, want 3 (truncated from 3.7)", h.exc.row)
	}
	expectReply(t, h, "FIRE_LASER 2.87 0 10\n", ReplyOK)
	if h.exc.row != 2 {
		t.Errorf("row = %d, want 2 (truncated from 2.87)", h.exc.row)
	}
	// Negative values wrap far out of range and are rejected.
	expectReply(t, h, "FIRE_LASER -2.5 0 10\n", ReplyErr)
}

func TestEmptyLine(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "\n", ReplyErr)
}

func TestCarriageReturnIgnored(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "FIRE_LASER 1 1 1\r\n", ReplyOK)
}

func TestLineOverflow(t *testing.T) {
	h := newHarness()
	long := strings.Repeat("A", MaxLine+16) + "\n"
	h.send(long)
	out := h.run(len(long) + 8)
	if len(out) != 1 || out[0] != ReplyErr {
		t.Fatalf("overflow reply = %q, want single 'E'", out)
	}
	if len(h.errs) != 1 || h.errs[0] != errcode.LineOverflow {
		t.Fatalf("errors = %v, want [line_overflow]", h.errs)
	}
	// The parser must be back in sync afterwards.
	expectReply(t, h, "FIRE_LASER 0 0 1\n", ReplyOK)
}

func TestMaxLengthLineAccepted(t *testing.T) {
	h := newHarness()
	// Pad with trailing spaces up to exactly MaxLine bytes before the LF.
	line := "FIRE_LASER 1 1 1"
	line += strings.Repeat(" 1", (MaxLine-len(line))/2)
	line = line[:MaxLine] + "\n"
	h.send(line)
	out := h.run(len(line) + MaxLine + 8)
	if len(out) != 1 || out[0] != ReplyOK {
		t.Fatalf("reply = %q, want 'O'", out)
	}
}

func TestCaptureFrameStreams(t *testing.T) {
	h := newHarness()
	h.cap.frame = []byte{1, 2, 3, 4}

	h.send("CAPTURE_FRAME\n")
	out := h.run(32)
	if len(out) != 0 {
		t.Fatalf("premature output %q before frame completion", out)
	}

	h.cap.doneSeq = h.cap.seq
	out = h.run(16)
	if !bytes.Equal(out, h.cap.frame) {
		t.Fatalf("streamed %v, want %v", out, h.cap.frame)
	}
	if len(h.cap.darks) != 1 || h.cap.darks[0] {
		t.Errorf("darks = %v, want [false]", h.cap.darks)
	}
}

func TestCaptureDarkFlag(t *testing.T) {
	h := newHarness()
	h.cap.frame = []byte{9}
	h.send("CAPTURE_DARK\n")
	h.run(20)
	h.cap.doneSeq = h.cap.seq
	h.run(8)
	if len(h.cap.darks) != 1 || !h.cap.darks[0] {
		t.Fatalf("darks = %v, want [true]", h.cap.darks)
	}
}

func TestCaptureTimeout(t *testing.T) {
	h := newHarness()
	h.send("CAPTURE_FRAME\n")
	h.run(20)

	h.cap.doneSeq = h.cap.seq
	h.cap.timedOut = true
	out := h.run(16)
	if len(out) != 0 {
		t.Fatalf("timed-out capture streamed %q, want nothing", out)
	}
	if len(h.errs) != 1 || h.errs[0] != errcode.CaptureTimeout {
		t.Fatalf("errors = %v, want [capture_timeout]", h.errs)
	}

	// Controller accepts commands again afterwards.
	h.cap.timedOut = false
	expectReply(t, h, "FIRE_LASER 0 0 1\n", ReplyOK)
}

func TestTrailingTokensIgnored(t *testing.T) {
	h := newHarness()
	expectReply(t, h, "FIRE_LASER 1 2 3 99 extra\n", ReplyOK)
	if h.exc.row != 1 || h.exc.col != 2 || h.exc.ticks != 3000 {
		t.Errorf("armed (%d,%d,%d), want (1,2,3000)",
			h.exc.row, h.exc.col, h.exc.ticks)
	}
}
