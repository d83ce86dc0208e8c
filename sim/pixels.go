package sim

import (
	"qnos-go/ctl/capture"
	"qnos-go/ctl/excite"
)

// PixelSource renders the sensor's view into the capture pipeline, one pixel
// per tick while a capture is in flight. The scene is dark background with a
// bright disc at the excited element's cell, so a frame taken while the
// excitation timer is active shows the spot and a frame taken after it
// lapses does not.
type PixelSource struct {
	cap *capture.Controller
	exc *excite.Timer

	// Bright and Background are the rendered pixel levels; Radius the disc
	// radius in pixels. Zero values pick defaults scaled to the frame.
	Bright     byte
	Background byte
	Radius     int

	w, h   int
	cursor int
	active bool
}

// NewPixelSource renders into cap, lighting the element selected by exc.
func NewPixelSource(cap *capture.Controller, exc *excite.Timer) *PixelSource {
	s := &PixelSource{
		cap:        cap,
		exc:        exc,
		Bright:     200,
		Background: 12,
		w:          cap.Width(),
		h:          cap.Height(),
	}
	s.Radius = s.w / 32
	if s.Radius < 1 {
		s.Radius = 1
	}
	return s
}

func (s *PixelSource) Name() string { return "pixels" }

func (s *PixelSource) Reset() {
	s.active = false
	s.cursor = 0
}

func (s *PixelSource) Tick() {
	if !s.cap.Capturing() {
		s.active = false
		return
	}
	if !s.active {
		s.active = true
		s.cursor = 0
	}
	if s.cursor >= s.w*s.h {
		s.cap.Drive(capture.Pixel{FrameEnd: true})
		s.active = false
		return
	}

	v := s.sample(s.cursor%s.w, s.cursor/s.w)
	s.cap.Drive(capture.Pixel{Valid: true, D1: v, D2: v})
	s.cursor++
}

// sample returns the scene level at (x, y).
func (s *PixelSource) sample(x, y int) byte {
	if !s.exc.Active() {
		return s.Background
	}
	row, col := s.exc.Element()

	// 8x8 element grid mapped onto the frame, disc centred in the cell.
	px, py := s.w/8, s.h/8
	cx := int(col)*px + px/2
	cy := int(row)*py + py/2

	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy <= s.Radius*s.Radius {
		return s.Bright
	}
	return s.Background
}
