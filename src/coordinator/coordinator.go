// Package coordinator runs one selection operation across every monitor.
//
// Begin opens one overlay surface per monitor, each with its own selector. The
// overlays behave as a single operation: only one shows a magnifier at a time,
// the first acceptance or abort wins, and all surfaces are closed before the
// outcome becomes observable. Everything except Wait, Done and Outcome must run
// on the event goroutine that delivers input.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
	"screen-region-select/src/selector"
)

var (
	ErrNoMonitors      = errors.New("no monitors to select on")
	ErrAlreadyResolved = errors.New("selection already resolved")
)

// Surface is one full-monitor overlay window provided by the windowing layer.
type Surface interface {
	selector.Host
	Position(nativeBounds geometry.Rect)
	Show()
	Close()
	// Present hands the latest frame to the surface for drawing.
	Present(frame selector.Frame)
}

// InputSink receives input in an overlay's local logical coordinates.
type InputSink interface {
	PointerDown(button selector.Button, p geometry.Point)
	PointerMove(ev selector.MoveEvent)
	PointerUp(button selector.Button)
	KeyDown(key Key)
}

// Binder is implemented by surfaces that receive their own input, such as native
// windows. Begin binds each one to its overlay before showing it.
type Binder interface {
	Bind(sink InputSink)
}

// Backdrop is implemented by surfaces that paint the captured monitor image
// behind the selection.
type Backdrop interface {
	SetBackground(img image.Image)
}

// Windowing creates overlay surfaces.
type Windowing interface {
	NewSurface(m *monitor.Monitor) (Surface, error)
}

// BackgroundSource captures what a monitor currently shows, for the magnifier.
type BackgroundSource interface {
	Capture(m *monitor.Monitor) (image.Image, error)
}

// Key is a keyboard key the overlays react to.
type Key int

const (
	KeyEscape Key = iota + 1
	KeyEnter
)

// Outcome is the single result of an operation: either an accepted rectangle in
// native virtual-desktop pixels plus its monitor, or an abort.
type Outcome struct {
	Monitor *monitor.Monitor
	Rect    geometry.Rect
	Aborted bool
}

func (o Outcome) String() string {
	if o.Aborted {
		return "aborted"
	}
	return o.Rect.String()
}

// Coordinator holds the collaborators shared by all operations.
type Coordinator struct {
	Windowing   Windowing
	Notifier    monitor.Notifier
	Backgrounds BackgroundSource
	Options     selector.Options
	Logger      *log.Logger

	// Cursor reports the pointer in native virtual-desktop pixels. Only the
	// overlay under it shows a magnifier before the first move.
	Cursor func() (geometry.Point, bool)
}

// New returns a coordinator creating surfaces through w.
func New(w Windowing) *Coordinator {
	return &Coordinator{Windowing: w, Logger: log.Default()}
}

func (c *Coordinator) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// Begin starts an operation over monitors, which should already be a granular
// copy so Bounds is in each monitor's logical units. The slice is copied and the
// copy is shared read-only by the overlays.
func (c *Coordinator) Begin(monitors []monitor.Monitor) (*Operation, error) {
	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}
	if c.Windowing == nil {
		return nil, errors.New("coordinator: windowing is required")
	}

	op := &Operation{
		logger:   c.logger(),
		monitors: append([]monitor.Monitor(nil), monitors...),
		done:     make(chan struct{}),
	}

	for i := range op.monitors {
		m := &op.monitors[i]
		surface, err := c.Windowing.NewSurface(m)
		if err != nil {
			op.teardown()
			return nil, fmt.Errorf("create surface for %s: %w", m.Label(), err)
		}
		opts := c.Options
		opts.Scale = m.Scale
		ov := newOverlay(op, m, surface, opts)
		op.overlays = append(op.overlays, ov)
		if b, ok := surface.(Binder); ok {
			b.Bind(ov)
		}
	}

	if c.Notifier != nil {
		op.unsubscribe = c.Notifier.Subscribe(op.displaysChanged)
	}

	var cursor geometry.Point
	haveCursor := false
	if c.Cursor != nil {
		cursor, haveCursor = c.Cursor()
	}

	for _, ov := range op.overlays {
		ov.surface.Position(ov.monitor.NativeBounds)
		if c.Backgrounds != nil {
			img, err := c.Backgrounds.Capture(ov.monitor)
			if err != nil {
				op.logger.Printf("coordinator: no magnifier background for %s: %v", ov.monitor.Label(), err)
			} else {
				ov.sel.SetBackground(img)
				if b, ok := ov.surface.(Backdrop); ok {
					b.SetBackground(img)
				}
			}
		}
		ov.surface.Show()
		var local *geometry.Point
		if haveCursor && ov.monitor.NativeBounds.Contains(cursor) {
			p := ov.ToLocal(cursor)
			local = &p
		}
		ov.sel.Attach(ov.monitor.Bounds.Size(), ov.monitor.Bounds.Location(), local)
		ov.present()
	}

	op.logger.Printf("coordinator: selection started on %d monitor(s)", len(op.overlays))
	return op, nil
}

// Operation is one running selection.
type Operation struct {
	logger      *log.Logger
	monitors    []monitor.Monitor
	overlays    []*Overlay
	unsubscribe func()
	closed      bool

	mu         sync.Mutex
	resolved   bool
	outcome    Outcome
	done       chan struct{}
	onResolved []func(Outcome)
}

// Overlays returns the overlays in monitor order.
func (op *Operation) Overlays() []*Overlay { return op.overlays }

// Closed reports whether the surfaces have been torn down.
func (op *Operation) Closed() bool { return op.closed }

// OverlayAt returns the overlay whose monitor contains the native point. Shared
// edges belong to the monitor on the right or below.
func (op *Operation) OverlayAt(p geometry.Point) *Overlay {
	for _, ov := range op.overlays {
		b := ov.monitor.NativeBounds
		if p.X >= b.X && p.X < b.Right() && p.Y >= b.Y && p.Y < b.Bottom() {
			return ov
		}
	}
	return nil
}

// Capturing returns the overlay currently holding the pointer capture, if any.
func (op *Operation) Capturing() *Overlay {
	for _, ov := range op.overlays {
		if ov.sel.State() == selector.Dragging {
			return ov
		}
	}
	return nil
}

// Abort cancels the operation. It returns ErrAlreadyResolved when an outcome
// has already been produced.
func (op *Operation) Abort() error {
	return op.resolve(Outcome{Aborted: true})
}

// Done is closed once the outcome is available.
func (op *Operation) Done() <-chan struct{} { return op.done }

// Outcome returns the result and whether it is available yet.
func (op *Operation) Outcome() (Outcome, bool) {
	select {
	case <-op.done:
		return op.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the operation resolves or ctx ends. It does not abort the
// operation on cancellation; callers post Abort to the event goroutine for that.
func (op *Operation) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-op.done:
		return op.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// OnResolved registers fn to run on the event goroutine after resolution. It runs
// immediately when the operation is already resolved.
func (op *Operation) OnResolved(fn func(Outcome)) {
	if o, ok := op.Outcome(); ok {
		fn(o)
		return
	}
	op.onResolved = append(op.onResolved, fn)
}

// resolve stores the outcome exactly once. Surfaces are closed before Done fires.
func (op *Operation) resolve(o Outcome) error {
	op.mu.Lock()
	if op.resolved {
		op.mu.Unlock()
		op.logger.Printf("coordinator: ignoring %s, operation already resolved", o)
		return ErrAlreadyResolved
	}
	op.resolved = true
	op.mu.Unlock()

	op.teardown()
	op.outcome = o
	close(op.done)

	if o.Monitor != nil {
		op.logger.Printf("coordinator: selection accepted on %s: %s", o.Monitor.Label(), o)
	} else {
		op.logger.Printf("coordinator: selection %s", o)
	}

	callbacks := op.onResolved
	op.onResolved = nil
	for _, fn := range callbacks {
		fn(o)
	}
	return nil
}

// teardown closes every surface and drops the display subscription. It is safe
// to call more than once and on partially built operations.
func (op *Operation) teardown() {
	if op.closed {
		return
	}
	op.closed = true

	if op.unsubscribe != nil {
		op.unsubscribe()
		op.unsubscribe = nil
	}
	for _, ov := range op.overlays {
		ov.close()
	}
}

func (op *Operation) hovering(from *Overlay) {
	if op.closed {
		return
	}
	for _, ov := range op.overlays {
		if ov == from {
			continue
		}
		ov.sel.HideMagnifier()
		ov.present()
	}
}

func (op *Operation) accepted(from *Overlay, selected geometry.Rect) {
	if op.closed {
		return
	}
	origin := from.monitor.NativeOrigin()
	native := geometry.Translate(geometry.ScaleRect(selected, from.sel.Scale()), origin.X, origin.Y)
	_ = op.resolve(Outcome{Monitor: from.monitor, Rect: native})
}

func (op *Operation) displaysChanged(snapshot []monitor.Monitor) {
	if op.closed {
		return
	}
	for _, ov := range op.overlays {
		fresh, ok := monitor.Find(snapshot, *ov.monitor)
		if !ok || fresh.Scale == ov.sel.Scale() {
			continue
		}
		op.logger.Printf("coordinator: scale of %s changed %g -> %g", ov.monitor.Label(), ov.sel.Scale(), fresh.Scale)
		ov.sel.SetScale(fresh.Scale)
		ov.present()
	}
}

// Overlay binds one surface to its selector.
type Overlay struct {
	op          *Operation
	monitor     *monitor.Monitor
	surface     Surface
	sel         *selector.Selector
	unsubscribe func()
	closed      bool
}

func newOverlay(op *Operation, m *monitor.Monitor, surface Surface, opts selector.Options) *Overlay {
	ov := &Overlay{op: op, monitor: m, surface: surface}
	ov.sel = selector.New(surface, opts)
	ov.unsubscribe = ov.sel.Subscribe(selector.Listener{
		Accepted: func(selected geometry.Rect) { op.accepted(ov, selected) },
		Hovering: func() { op.hovering(ov) },
	})
	return ov
}

func (ov *Overlay) Monitor() *monitor.Monitor    { return ov.monitor }
func (ov *Overlay) Selector() *selector.Selector { return ov.sel }
func (ov *Overlay) Surface() Surface             { return ov.surface }

// ToLocal converts a native virtual-desktop point into this surface's logical space.
func (ov *Overlay) ToLocal(p geometry.Point) geometry.Point {
	origin := ov.monitor.NativeOrigin()
	scale := ov.sel.Scale()
	return geometry.Point{X: (p.X - origin.X) / scale, Y: (p.Y - origin.Y) / scale}
}

// PointerDown forwards a press in local logical coordinates.
func (ov *Overlay) PointerDown(button selector.Button, p geometry.Point) {
	if ov.op.closed {
		return
	}
	ov.sel.PointerDown(button, p)
	ov.present()
}

// PointerMove forwards a move in local logical coordinates.
func (ov *Overlay) PointerMove(ev selector.MoveEvent) {
	if ov.op.closed {
		return
	}
	ov.sel.PointerMove(ev)
	ov.present()
}

// PointerUp forwards a release.
func (ov *Overlay) PointerUp(button selector.Button) {
	if ov.op.closed {
		return
	}
	ov.sel.PointerUp(button)
	ov.present()
}

// KeyDown handles the overlay keys: Escape aborts the whole operation and Enter
// accepts a non-empty selection as it is.
func (ov *Overlay) KeyDown(key Key) {
	if ov.op.closed {
		return
	}
	switch key {
	case KeyEscape:
		_ = ov.op.Abort()
	case KeyEnter:
		if !ov.sel.Selected().IsEmpty() {
			ov.sel.Accept()
		}
	}
}

func (ov *Overlay) present() {
	if ov.closed || ov.op.closed {
		return
	}
	ov.surface.Present(ov.sel.Frame())
}

func (ov *Overlay) close() {
	if ov.closed {
		return
	}
	ov.closed = true
	if ov.unsubscribe != nil {
		ov.unsubscribe()
	}
	ov.sel.Abort()
	ov.surface.Close()
}
