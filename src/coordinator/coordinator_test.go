package coordinator

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"testing"
	"time"

	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
	"screen-region-select/src/selector"
)

type fakeSurface struct {
	monitor  *monitor.Monitor
	position geometry.Rect
	shown    bool
	closed   bool
	captured bool
	frames   int
	last     selector.Frame
}

func (s *fakeSurface) Position(r geometry.Rect) { s.position = r }
func (s *fakeSurface) Show()                    { s.shown = true }
func (s *fakeSurface) Close()                   { s.closed = true }
func (s *fakeSurface) CaptureInput()            { s.captured = true }
func (s *fakeSurface) ReleaseCapture()          { s.captured = false }

func (s *fakeSurface) Present(f selector.Frame) {
	s.frames++
	s.last = f
}

type fakeWindowing struct {
	surfaces []*fakeSurface
	failAt   int
}

func (w *fakeWindowing) NewSurface(m *monitor.Monitor) (Surface, error) {
	if w.failAt > 0 && len(w.surfaces)+1 == w.failAt {
		return nil, errors.New("window class not registered")
	}
	s := &fakeSurface{monitor: m}
	w.surfaces = append(w.surfaces, s)
	return s, nil
}

type fakeBackgrounds struct{}

func (fakeBackgrounds) Capture(m *monitor.Monitor) (image.Image, error) {
	return image.NewRGBA(geometry.ToImage(geometry.NewRect(0, 0, m.NativeBounds.Width, m.NativeBounds.Height))), nil
}

type fakeNotifier struct {
	fn           func([]monitor.Monitor)
	subscribed   int
	unsubscribed int
}

func (n *fakeNotifier) Subscribe(fn func([]monitor.Monitor)) func() {
	n.subscribed++
	n.fn = fn
	return func() {
		n.unsubscribed++
		n.fn = nil
	}
}

func testMonitors() []monitor.Monitor {
	m1 := monitor.New(1, geometry.NewRect(0, 0, 1920, 1080), geometry.NewRect(0, 0, 1920, 1040), 96, true)
	m1.Name = "M1"
	m2 := monitor.New(2, geometry.NewRect(1920, 0, 2560, 1440), geometry.NewRect(1920, 0, 2560, 1400), 120, false)
	m2.Name = "M2"
	return monitor.GranularCopy([]monitor.Monitor{m1, m2}, false)
}

func newCoordinator(w Windowing) *Coordinator {
	c := New(w)
	c.Logger = log.New(io.Discard, "", 0)
	return c
}

func begin(t *testing.T, c *Coordinator) *Operation {
	t.Helper()
	op, err := c.Begin(testMonitors())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return op
}

func TestBeginRequiresMonitors(t *testing.T) {
	c := newCoordinator(&fakeWindowing{})
	if _, err := c.Begin(nil); !errors.Is(err, ErrNoMonitors) {
		t.Errorf("Begin(nil) error = %v, want ErrNoMonitors", err)
	}
}

func TestBeginOpensOneSurfacePerMonitor(t *testing.T) {
	w := &fakeWindowing{}
	op := begin(t, newCoordinator(w))

	if len(w.surfaces) != 2 || len(op.Overlays()) != 2 {
		t.Fatalf("surfaces = %d overlays = %d, want 2", len(w.surfaces), len(op.Overlays()))
	}
	for i, s := range w.surfaces {
		if !s.shown {
			t.Errorf("surface %d not shown", i)
		}
		if s.position != s.monitor.NativeBounds {
			t.Errorf("surface %d positioned at %v, want %v", i, s.position, s.monitor.NativeBounds)
		}
		if s.frames == 0 {
			t.Errorf("surface %d never received a frame", i)
		}
		if !op.Overlays()[i].Selector().Ready() {
			t.Errorf("overlay %d selector not attached", i)
		}
	}
	if _, ok := op.Outcome(); ok {
		t.Error("a fresh operation must not be resolved")
	}
}

func TestBeginSurfaceFailureTearsDown(t *testing.T) {
	w := &fakeWindowing{failAt: 2}
	n := &fakeNotifier{}
	c := newCoordinator(w)
	c.Notifier = n

	op, err := c.Begin(testMonitors())
	if err == nil || op != nil {
		t.Fatalf("Begin() = %v, %v; want an error", op, err)
	}
	if len(w.surfaces) != 1 || !w.surfaces[0].closed {
		t.Error("surfaces created before the failure must be closed")
	}
	if n.subscribed != n.unsubscribed {
		t.Errorf("subscribed %d unsubscribed %d", n.subscribed, n.unsubscribed)
	}
}

func TestEndToEndSelectionOnScaledMonitor(t *testing.T) {
	w := &fakeWindowing{}
	op := begin(t, newCoordinator(w))
	m2 := op.Overlays()[1]

	if want := geometry.NewRect(1536, 0, 2048, 1152); m2.Monitor().Bounds != want {
		t.Fatalf("M2 logical bounds = %v, want %v", m2.Monitor().Bounds, want)
	}

	m2.PointerDown(selector.Primary, geometry.Point{X: 100, Y: 100})
	if !w.surfaces[1].captured {
		t.Error("press should capture input on M2")
	}
	m2.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 399, Y: 299}, PrimaryHeld: true})
	m2.PointerUp(selector.Primary)

	outcome, ok := op.Outcome()
	if !ok {
		t.Fatal("operation should be resolved after the release")
	}
	if outcome.Aborted {
		t.Fatal("outcome aborted, want accepted")
	}
	if want := geometry.NewRect(2045, 125, 375, 250); outcome.Rect != want {
		t.Errorf("outcome rect = %v, want %v", outcome.Rect, want)
	}
	if outcome.Monitor == nil || outcome.Monitor.Name != "M2" {
		t.Errorf("outcome monitor = %v, want M2", outcome.Monitor)
	}
	if outcome.String() != "2045,125,375,250" {
		t.Errorf("String() = %q", outcome.String())
	}
	for i, s := range w.surfaces {
		if !s.closed {
			t.Errorf("surface %d still open after acceptance", i)
		}
	}
}

func TestSmallDragDoesNotResolve(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))
	ov := op.Overlays()[0]

	ov.PointerDown(selector.Primary, geometry.Point{X: 10, Y: 10})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 37, Y: 100}, PrimaryHeld: true})
	ov.PointerUp(selector.Primary)

	if _, ok := op.Outcome(); ok {
		t.Fatal("a 28 unit wide drag must not resolve the operation")
	}
	if !ov.Selector().Selected().IsEmpty() {
		t.Error("selection should be cleared for another try")
	}
}

func TestSingleResolution(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))
	ov := op.Overlays()[0]

	ov.PointerDown(selector.Primary, geometry.Point{X: 0, Y: 0})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 99, Y: 99}, PrimaryHeld: true})
	ov.PointerUp(selector.Primary)

	first, ok := op.Outcome()
	if !ok || first.Aborted {
		t.Fatalf("first outcome = %v, %v", first, ok)
	}

	if err := op.Abort(); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("Abort() after accept = %v, want ErrAlreadyResolved", err)
	}
	if err := op.resolve(Outcome{Rect: geometry.NewRect(1, 1, 1, 1)}); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second resolve = %v, want ErrAlreadyResolved", err)
	}

	second, _ := op.Outcome()
	if second != first {
		t.Errorf("outcome changed from %v to %v", first, second)
	}
}

func TestAbortThenAcceptKeepsAbort(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))
	ov := op.Overlays()[1]

	ov.PointerDown(selector.Primary, geometry.Point{X: 0, Y: 0})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 99, Y: 99}, PrimaryHeld: true})
	ov.KeyDown(KeyEscape)

	outcome, ok := op.Outcome()
	if !ok || !outcome.Aborted {
		t.Fatalf("outcome = %v, %v; want aborted", outcome, ok)
	}

	ov.PointerUp(selector.Primary)
	ov.KeyDown(KeyEnter)
	ov.Selector().Accept()
	if again, _ := op.Outcome(); !again.Aborted {
		t.Errorf("outcome changed to %v after abort", again)
	}
}

func TestSurfacesClosedBeforeResolutionObserved(t *testing.T) {
	w := &fakeWindowing{}
	op := begin(t, newCoordinator(w))

	var closedAtResolution []bool
	op.OnResolved(func(o Outcome) {
		for _, s := range w.surfaces {
			closedAtResolution = append(closedAtResolution, s.closed)
		}
	})
	op.Overlays()[0].KeyDown(KeyEscape)

	if len(closedAtResolution) != 2 {
		t.Fatalf("OnResolved ran with %d surfaces", len(closedAtResolution))
	}
	for i, closed := range closedAtResolution {
		if !closed {
			t.Errorf("surface %d open when the outcome was delivered", i)
		}
	}

	called := false
	op.OnResolved(func(Outcome) { called = true })
	if !called {
		t.Error("OnResolved after resolution should run immediately")
	}
}

func TestEnterAcceptsNonEmptySelection(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))
	ov := op.Overlays()[0]

	ov.KeyDown(KeyEnter)
	if _, ok := op.Outcome(); ok {
		t.Fatal("Enter without a selection must not resolve")
	}

	ov.PointerDown(selector.Primary, geometry.Point{X: 10, Y: 10})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 19, Y: 19}, PrimaryHeld: true})
	ov.KeyDown(KeyEnter)

	outcome, ok := op.Outcome()
	if !ok || outcome.Aborted {
		t.Fatalf("outcome = %v, %v; want accepted", outcome, ok)
	}
	if want := geometry.NewRect(10, 10, 10, 10); outcome.Rect != want {
		t.Errorf("rect = %v, want %v", outcome.Rect, want)
	}
}

func TestHoverExclusivity(t *testing.T) {
	w := &fakeWindowing{}
	c := newCoordinator(w)
	c.Backgrounds = fakeBackgrounds{}
	op := begin(t, c)
	a, b := op.Overlays()[0], op.Overlays()[1]

	a.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 300, Y: 300}})
	if !a.Selector().Magnifier().Visible {
		t.Fatal("A should show its magnifier")
	}
	if b.Selector().Magnifier().Visible {
		t.Error("B must hide its magnifier while A hovers")
	}
	if w.surfaces[1].last.Magnifier.Visible {
		t.Error("B's surface still presents a magnifier")
	}

	b.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 300, Y: 300}})
	if a.Selector().Magnifier().Visible {
		t.Error("A must hide its magnifier once B hovers")
	}
	if !b.Selector().Magnifier().Visible {
		t.Error("B should show its magnifier")
	}
}

func TestBeginShowsMagnifierOnlyUnderCursor(t *testing.T) {
	tests := []struct {
		name         string
		cursor       geometry.Point
		ok           bool
		wantA, wantB bool
	}{
		{"cursor on second monitor", geometry.Point{X: 2045, Y: 125}, true, false, true},
		{"cursor on first monitor", geometry.Point{X: 300, Y: 300}, true, true, false},
		{"cursor unknown", geometry.Point{}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoordinator(&fakeWindowing{})
			c.Backgrounds = fakeBackgrounds{}
			c.Cursor = func() (geometry.Point, bool) { return tt.cursor, tt.ok }
			op := begin(t, c)
			a, b := op.Overlays()[0], op.Overlays()[1]

			if got := a.Selector().Magnifier().Visible; got != tt.wantA {
				t.Errorf("first overlay magnifier visible = %v, want %v", got, tt.wantA)
			}
			if got := b.Selector().Magnifier().Visible; got != tt.wantB {
				t.Errorf("second overlay magnifier visible = %v, want %v", got, tt.wantB)
			}
		})
	}
}

func TestHoverDoesNotTouchSelections(t *testing.T) {
	c := newCoordinator(&fakeWindowing{})
	c.Backgrounds = fakeBackgrounds{}
	op := begin(t, c)
	a, b := op.Overlays()[0], op.Overlays()[1]

	a.PointerDown(selector.Primary, geometry.Point{X: 10, Y: 10})
	a.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 59, Y: 59}, PrimaryHeld: true})
	before := a.Selector().Selected()

	b.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 500, Y: 500}})
	if a.Selector().Selected() != before {
		t.Errorf("hover on B changed A's selection to %v", a.Selector().Selected())
	}
}

func TestDisplayChangeUpdatesScale(t *testing.T) {
	n := &fakeNotifier{}
	c := newCoordinator(&fakeWindowing{})
	c.Notifier = n
	op := begin(t, c)

	if n.subscribed != 1 {
		t.Fatalf("subscribed = %d, want 1", n.subscribed)
	}

	changed := testMonitors()
	changed[1].Scale = 1.5
	changed[1].Dpi = 144
	n.fn(changed)

	if got := op.Overlays()[1].Selector().Scale(); got != 1.5 {
		t.Errorf("M2 scale = %v, want 1.5", got)
	}
	if got := op.Overlays()[0].Selector().Scale(); got != 1 {
		t.Errorf("M1 scale = %v, want 1", got)
	}
	if op.Overlays()[1].Monitor().Scale != 1.25 {
		t.Error("the monitor snapshot must stay read-only")
	}

	_ = op.Abort()
	if n.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d after abort, want 1", n.unsubscribed)
	}
}

func TestDisplaySubscriptionReleasedOnAccept(t *testing.T) {
	n := &fakeNotifier{}
	c := newCoordinator(&fakeWindowing{})
	c.Notifier = n
	op := begin(t, c)
	ov := op.Overlays()[0]

	ov.PointerDown(selector.Primary, geometry.Point{X: 0, Y: 0})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 99, Y: 99}, PrimaryHeld: true})
	ov.PointerUp(selector.Primary)

	if n.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d, want 1", n.unsubscribed)
	}
}

func TestInputDroppedAfterTeardown(t *testing.T) {
	w := &fakeWindowing{}
	op := begin(t, newCoordinator(w))
	_ = op.Abort()

	frames := w.surfaces[0].frames
	ov := op.Overlays()[0]
	ov.PointerDown(selector.Primary, geometry.Point{X: 1, Y: 1})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 50, Y: 50}, PrimaryHeld: true})
	if w.surfaces[0].frames != frames {
		t.Error("a torn down surface received frames")
	}
	if !ov.Selector().Selected().IsEmpty() {
		t.Error("input after teardown changed the selection")
	}
}

func TestWait(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := op.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}

	_ = op.Abort()
	outcome, err := op.Wait(context.Background())
	if err != nil || !outcome.Aborted {
		t.Errorf("Wait() = %v, %v", outcome, err)
	}
}

func TestOverlayRouting(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))

	tests := []struct {
		point geometry.Point
		want  string
	}{
		{point: geometry.Point{X: 0, Y: 0}, want: "M1"},
		{point: geometry.Point{X: 1919, Y: 500}, want: "M1"},
		{point: geometry.Point{X: 1920, Y: 500}, want: "M2"},
		{point: geometry.Point{X: 4479, Y: 1439}, want: "M2"},
		{point: geometry.Point{X: 100, Y: 1200}, want: ""},
	}
	for _, tt := range tests {
		ov := op.OverlayAt(tt.point)
		got := ""
		if ov != nil {
			got = ov.Monitor().Name
		}
		if got != tt.want {
			t.Errorf("OverlayAt(%v) = %q, want %q", tt.point, got, tt.want)
		}
	}

	m2 := op.Overlays()[1]
	if got := m2.ToLocal(geometry.Point{X: 2045, Y: 125}); got != (geometry.Point{X: 100, Y: 100}) {
		t.Errorf("ToLocal() = %v, want 100,100", got)
	}
}

func TestCapturing(t *testing.T) {
	op := begin(t, newCoordinator(&fakeWindowing{}))
	if op.Capturing() != nil {
		t.Fatal("no overlay should capture before a press")
	}
	m2 := op.Overlays()[1]
	m2.PointerDown(selector.Primary, geometry.Point{X: 5, Y: 5})
	if op.Capturing() != m2 {
		t.Error("M2 should hold the capture while dragging")
	}
}

type bindingSurface struct {
	fakeSurface
	sink InputSink
}

func (s *bindingSurface) Bind(sink InputSink) { s.sink = sink }

type bindingWindowing struct {
	surfaces []*bindingSurface
}

func (w *bindingWindowing) NewSurface(m *monitor.Monitor) (Surface, error) {
	s := &bindingSurface{fakeSurface: fakeSurface{monitor: m}}
	w.surfaces = append(w.surfaces, s)
	return s, nil
}

func TestBeginBindsSelfDrivenSurfaces(t *testing.T) {
	w := &bindingWindowing{}
	op := begin(t, newCoordinator(w))

	for i, s := range w.surfaces {
		if s.sink == nil {
			t.Fatalf("surface %d was not bound", i)
		}
	}

	sink := w.surfaces[1].sink
	sink.PointerDown(selector.Primary, geometry.Point{X: 100, Y: 100})
	sink.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 399, Y: 299}, PrimaryHeld: true})
	sink.PointerUp(selector.Primary)

	o, ok := op.Outcome()
	if !ok {
		t.Fatal("input through the bound sink should resolve the operation")
	}
	if o.Monitor.Name != "M2" {
		t.Errorf("outcome monitor = %s, want M2", o.Monitor.Name)
	}
}
