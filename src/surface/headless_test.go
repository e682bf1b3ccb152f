package surface

import (
	"io"
	"log"
	"testing"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
	"screen-region-select/src/selector"
)

func TestHeadlessRecordsLifecycle(t *testing.T) {
	h := NewHeadless(log.New(io.Discard, "", 0))
	m1 := monitor.New(1, geometry.NewRect(0, 0, 1920, 1080), geometry.NewRect(0, 0, 1920, 1040), 96, true)
	m2 := monitor.New(2, geometry.NewRect(1920, 0, 2560, 1440), geometry.NewRect(1920, 0, 2560, 1400), 120, false)

	c := coordinator.New(h)
	c.Logger = log.New(io.Discard, "", 0)
	op, err := c.Begin(monitor.GranularCopy([]monitor.Monitor{m1, m2}, false))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	surfaces := h.Surfaces()
	if len(surfaces) != 2 {
		t.Fatalf("surfaces = %d, want 2", len(surfaces))
	}
	for i, s := range surfaces {
		if !s.Shown() {
			t.Errorf("surface %d not shown", i)
		}
		if s.Bounds() != s.Monitor().NativeBounds {
			t.Errorf("surface %d bounds = %v, want %v", i, s.Bounds(), s.Monitor().NativeBounds)
		}
		if _, n := s.LastFrame(); n == 0 {
			t.Errorf("surface %d received no frame", i)
		}
	}

	ov := op.Overlays()[1]
	ov.PointerDown(selector.Primary, geometry.Point{X: 10, Y: 10})
	if !surfaces[1].Capturing() {
		t.Error("a press should capture input on the pressed surface")
	}
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 110, Y: 60}, PrimaryHeld: true})
	frame, _ := surfaces[1].LastFrame()
	if frame.State != selector.Dragging || frame.Scale != 1.25 {
		t.Errorf("frame = %+v, want a dragging frame at scale 1.25", frame)
	}

	if err := op.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	for i, s := range surfaces {
		if !s.Closed() || s.Capturing() {
			t.Errorf("surface %d should be closed without capture after abort", i)
		}
	}
}
