// Package surface provides the windowing layers the coordinator draws on.
package surface

import (
	"log"
	"sync"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
	"screen-region-select/src/selector"
)

// Headless creates surfaces that only record what they were asked to do. Input
// must come from elsewhere, e.g. a global hook or a replay script.
type Headless struct {
	Logger *log.Logger

	mu       sync.Mutex
	surfaces []*HeadlessSurface
}

func NewHeadless(logger *log.Logger) *Headless {
	return &Headless{Logger: logger}
}

func (h *Headless) NewSurface(m *monitor.Monitor) (coordinator.Surface, error) {
	s := &HeadlessSurface{monitor: m, logger: h.Logger}
	h.mu.Lock()
	h.surfaces = append(h.surfaces, s)
	h.mu.Unlock()
	return s, nil
}

// Surfaces returns every surface created so far, in creation order.
func (h *Headless) Surfaces() []*HeadlessSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*HeadlessSurface(nil), h.surfaces...)
}

// HeadlessSurface is a surface without a window.
type HeadlessSurface struct {
	monitor *monitor.Monitor
	logger  *log.Logger

	mu        sync.Mutex
	bounds    geometry.Rect
	shown     bool
	closed    bool
	capturing bool
	frames    int
	last      selector.Frame
}

func (s *HeadlessSurface) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *HeadlessSurface) Position(nativeBounds geometry.Rect) {
	s.mu.Lock()
	s.bounds = nativeBounds
	s.mu.Unlock()
	s.logf("surface %s: position %s", s.monitor.Label(), nativeBounds)
}

func (s *HeadlessSurface) Show() {
	s.mu.Lock()
	s.shown = true
	s.mu.Unlock()
	s.logf("surface %s: show", s.monitor.Label())
}

func (s *HeadlessSurface) Close() {
	s.mu.Lock()
	s.closed = true
	s.capturing = false
	s.mu.Unlock()
	s.logf("surface %s: close", s.monitor.Label())
}

func (s *HeadlessSurface) CaptureInput() {
	s.mu.Lock()
	s.capturing = true
	s.mu.Unlock()
}

func (s *HeadlessSurface) ReleaseCapture() {
	s.mu.Lock()
	s.capturing = false
	s.mu.Unlock()
}

func (s *HeadlessSurface) Present(frame selector.Frame) {
	s.mu.Lock()
	s.frames++
	s.last = frame
	s.mu.Unlock()
}

func (s *HeadlessSurface) Monitor() *monitor.Monitor { return s.monitor }

func (s *HeadlessSurface) Bounds() geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

func (s *HeadlessSurface) Shown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

func (s *HeadlessSurface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *HeadlessSurface) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// LastFrame returns the most recent frame and how many frames were presented.
func (s *HeadlessSurface) LastFrame() (selector.Frame, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.frames
}
