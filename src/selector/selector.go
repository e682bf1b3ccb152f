// Package selector is the per-surface selection state machine.
//
// One Selector runs on each monitor overlay. It turns pointer events, reported in
// the surface's logical space, into a live selection rectangle plus its derived
// views, and drives the magnifier and the info badge for presentation. All methods
// must be called from the single event goroutine that owns the surface.
package selector

import (
	"fmt"
	"image"
	"math"

	"screen-region-select/src/geometry"
	"screen-region-select/src/infobadge"
	"screen-region-select/src/magnifier"
)

// State of a selection gesture.
type State int

const (
	Idle State = iota
	Dragging
	Accepted
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Accepted:
		return "accepted"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Button identifies a pointer button.
type Button int

const (
	Primary Button = iota + 1
	Secondary
)

const (
	// MinimumSize is the smallest width and height a released drag may have;
	// anything smaller is treated as a stray click.
	MinimumSize = 30
	// expandThreshold guards the derived views against degenerate offsets.
	expandThreshold = 5
)

// Host is the part of the windowing layer a selector talks to directly.
type Host interface {
	CaptureInput()
	ReleaseCapture()
}

// Listener receives presentation notifications. Nil fields are skipped.
type Listener struct {
	Changed  func(selected geometry.Rect)
	Accepted func(selected geometry.Rect)
	Hovering func()
}

// MoveEvent is one pointer move. PrimaryHeld and MoveModifier reflect the button
// and keyboard state at the time of the move.
type MoveEvent struct {
	Point        geometry.Point
	PrimaryHeld  bool
	MoveModifier bool

	// setup marks the move Attach replays when the cursor is unknown.
	setup bool
}

// Options configures presentation sizes. Zero values get defaults.
type Options struct {
	Scale         float64
	BadgeSize     geometry.Size
	BadgeMargin   infobadge.Thickness
	MagnifierSize geometry.Size
}

var (
	DefaultBadgeSize     = geometry.Size{Width: 110, Height: 26}
	DefaultBadgeMargin   = infobadge.Uniform(5)
	DefaultMagnifierSize = geometry.Size{Width: 120, Height: 120}
)

// Frame is a read-only snapshot of everything a surface needs to draw.
type Frame struct {
	State         State
	Scale         float64
	Selected      geometry.Rect
	NonExpanded   geometry.Rect
	Native        geometry.Rect
	Magnifier     magnifier.View
	MagnifierSize geometry.Size
	Badge         infobadge.Placement
	BadgeText     string
}

type subscription struct {
	id       int
	listener Listener
}

// Selector is the state machine for one surface.
type Selector struct {
	host  Host
	scale float64

	state    State
	ready    bool
	captured bool
	anchor   geometry.Point

	selected          geometry.Rect
	nonExpanded       geometry.Rect
	nonExpandedNative geometry.Rect

	surface      geometry.Size
	parentOrigin geometry.Point
	background   image.Image
	hoverFocus   bool

	view  magnifier.View
	badge infobadge.Placement

	badgeSize     geometry.Size
	badgeMargin   infobadge.Thickness
	magnifierSize geometry.Size

	subs   []subscription
	nextID int
}

// New creates an idle selector with no selection. Moves are ignored until Attach.
func New(host Host, opts Options) *Selector {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.BadgeSize == (geometry.Size{}) {
		opts.BadgeSize = DefaultBadgeSize
	}
	if opts.BadgeMargin == (infobadge.Thickness{}) {
		opts.BadgeMargin = DefaultBadgeMargin
	}
	if opts.MagnifierSize == (geometry.Size{}) {
		opts.MagnifierSize = DefaultMagnifierSize
	}
	s := &Selector{
		host:          host,
		scale:         opts.Scale,
		badgeSize:     opts.BadgeSize,
		badgeMargin:   opts.BadgeMargin,
		magnifierSize: opts.MagnifierSize,
	}
	s.apply(geometry.Empty)
	return s
}

// Subscribe registers l and returns a func removing it again.
func (s *Selector) Subscribe(l Listener) func() {
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription{id: id, listener: l})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Selector) State() State                   { return s.state }
func (s *Selector) Ready() bool                    { return s.ready }
func (s *Selector) Scale() float64                 { return s.scale }
func (s *Selector) Selected() geometry.Rect        { return s.selected }
func (s *Selector) NonExpanded() geometry.Rect     { return s.nonExpanded }
func (s *Selector) NativeSelection() geometry.Rect { return s.nonExpandedNative }
func (s *Selector) Magnifier() magnifier.View      { return s.view }
func (s *Selector) Badge() infobadge.Placement     { return s.badge }

// Frame returns the current presentation snapshot.
func (s *Selector) Frame() Frame {
	return Frame{
		State:         s.state,
		Scale:         s.scale,
		Selected:      s.selected,
		NonExpanded:   s.nonExpanded,
		Native:        s.nonExpandedNative,
		Magnifier:     s.view,
		MagnifierSize: s.magnifierSize,
		Badge:         s.badge,
		BadgeText:     infobadge.Label(geometry.ScaleRect(s.selected, s.scale)),
	}
}

// Attach records the surface's logical size and its origin on the virtual desktop,
// then opens the readiness gate and replays one move. When the pointer is over
// this surface, cursor holds its local position and the move lands there.
// Otherwise the move runs at the origin with the magnifier kept hidden, so the
// view only appears once a real move arrives.
func (s *Selector) Attach(size geometry.Size, parentOrigin geometry.Point, cursor *geometry.Point) {
	s.ready = false
	s.surface = size
	s.parentOrigin = parentOrigin
	s.ready = true

	if cursor != nil {
		s.PointerMove(MoveEvent{Point: *cursor})
		return
	}
	s.PointerMove(MoveEvent{Point: geometry.Point{}, setup: true})
}

// SetBackground sets the image the magnifier samples, in native pixels of this
// surface. Nil disables the magnifier.
func (s *Selector) SetBackground(img image.Image) { s.background = img }

// SetScale updates the monitor scale after a display settings change. The derived
// views are recomputed so they stay consistent, without a change notification.
func (s *Selector) SetScale(scale float64) {
	if scale <= 0 || scale == s.scale {
		return
	}
	s.scale = scale
	s.apply(s.selected)
}

// PointerDown handles a button press at p.
func (s *Selector) PointerDown(button Button, p geometry.Point) {
	if s.state == Aborted {
		return
	}
	switch button {
	case Primary:
		if s.state == Dragging {
			return
		}
		s.anchor = p
		s.capture()
		s.state = Dragging
		s.setSelected(geometry.NewRect(p.X, p.Y, 0, 0))
	case Secondary:
		s.anchor = p
		s.Retry()
	}
}

// PointerMove handles a pointer move. The magnifier follows the cursor in every
// state; the selection only changes during a captured primary-button drag.
func (s *Selector) PointerMove(ev MoveEvent) {
	if !s.ready || s.state == Aborted {
		return
	}

	current := ev.Point
	if ev.setup {
		s.view = magnifier.Hidden
	} else {
		s.updateMagnifier(current)
	}

	if s.state != Dragging || !s.captured || !ev.PrimaryHeld {
		return
	}

	if ev.MoveModifier {
		s.reposition(current)
	} else {
		s.resize(current)
	}
	s.updateBadge(&current)
}

// reposition moves the whole selection with the cursor, keeping its size.
func (s *Selector) reposition(current geometry.Point) {
	sel := s.selected
	rightToLeft := s.anchor.X > sel.X
	bottomToTop := s.anchor.Y > sel.Y

	x := current.X - sel.Width
	if rightToLeft {
		x = current.X
	}
	y := current.Y - sel.Height
	if bottomToTop {
		y = current.Y
	}

	if x < -1 {
		x = -1
	}
	if y < -1 {
		y = -1
	}
	if x+sel.Width > s.surface.Width+1 {
		x = s.surface.Width + 1 - sel.Width
	}
	if y+sel.Height > s.surface.Height+1 {
		y = s.surface.Height + 1 - sel.Height
	}

	moved := geometry.NewRect(x, y, sel.Width, sel.Height)
	s.setSelected(moved)

	// Anchor on the trailing edge so a plain move resumes resizing from there.
	s.anchor = geometry.Point{X: x, Y: y}
	if rightToLeft {
		s.anchor.X = moved.Right()
	}
	if bottomToTop {
		s.anchor.Y = moved.Bottom()
	}
}

// resize spans the selection between the anchor and the cursor. The cursor is
// nudged by one unit so the edge lands under the pointer.
func (s *Selector) resize(current geometry.Point) {
	p := geometry.Point{X: current.X + 1, Y: current.Y + 1}
	p.X = clamp(p.X, -1, s.surface.Width)
	p.Y = clamp(p.Y, -1, s.surface.Height)

	s.setSelected(spanning(s.anchor, p))
}

// PointerUp handles a button release. Only a primary release ends a drag.
func (s *Selector) PointerUp(button Button) {
	if button != Primary || s.state != Dragging {
		return
	}
	s.releaseCapture()

	if s.selected.Width < MinimumSize || s.selected.Height < MinimumSize {
		s.Retry()
		return
	}
	s.state = Accepted
	s.emitAccepted()
}

// Accept force-accepts the current selection without the size check.
func (s *Selector) Accept() {
	if s.state == Aborted {
		return
	}
	s.releaseCapture()
	s.state = Accepted
	s.emitAccepted()
}

// Retry clears the selection and returns to Idle. Valid from any state.
func (s *Selector) Retry() {
	s.apply(geometry.Empty)
	s.updateBadge(nil)
	s.HideMagnifier()
	s.releaseCapture()
	s.state = Idle
	s.emitChanged()
}

// HideMagnifier hides the zoom view and clears the hover focus flag so the next
// qualifying move claims focus again. The selection is left alone.
func (s *Selector) HideMagnifier() {
	s.hoverFocus = false
	s.view = magnifier.Hidden
}

// Abort stops the machine for good. Further input is ignored.
func (s *Selector) Abort() {
	s.releaseCapture()
	s.HideMagnifier()
	s.state = Aborted
}

func (s *Selector) setSelected(r geometry.Rect) {
	s.apply(r)
	s.emitChanged()
}

// apply stores r and both derived views in one step.
func (s *Selector) apply(r geometry.Rect) {
	s.selected = r
	switch {
	case r.IsEmpty():
		s.nonExpanded = r
		s.nonExpandedNative = r
	case r.Width < expandThreshold || r.Height < expandThreshold:
		s.nonExpanded = r
		s.nonExpandedNative = r
	default:
		s.nonExpanded = geometry.Offset(r, 1)
		s.nonExpandedNative = geometry.Offset(geometry.ScaleRect(r, s.scale), geometry.RoundUp(s.scale, 0))
	}
}

func (s *Selector) updateMagnifier(p geometry.Point) {
	view := magnifier.Compute(magnifier.Input{
		Cursor:       p,
		Selected:     s.selected,
		Scale:        s.scale,
		Surface:      s.surface,
		ParentOrigin: s.parentOrigin,
		Background:   s.background,
		ViewSize:     s.magnifierSize,
	})
	s.view = view
	if view.Hovering && !s.hoverFocus {
		s.hoverFocus = true
		s.emitHovering()
	}
}

func (s *Selector) updateBadge(cursor *geometry.Point) {
	s.badge = infobadge.Place(s.selected, cursor, s.badgeSize, s.badgeMargin)
}

func (s *Selector) capture() {
	if s.captured {
		return
	}
	s.captured = true
	if s.host != nil {
		s.host.CaptureInput()
	}
}

func (s *Selector) releaseCapture() {
	if !s.captured {
		return
	}
	s.captured = false
	if s.host != nil {
		s.host.ReleaseCapture()
	}
}

func (s *Selector) listeners() []Listener {
	out := make([]Listener, len(s.subs))
	for i, sub := range s.subs {
		out[i] = sub.listener
	}
	return out
}

func (s *Selector) emitChanged() {
	for _, l := range s.listeners() {
		if l.Changed != nil {
			l.Changed(s.selected)
		}
	}
}

func (s *Selector) emitAccepted() {
	for _, l := range s.listeners() {
		if l.Accepted != nil {
			l.Accepted(s.selected)
		}
	}
}

func (s *Selector) emitHovering() {
	for _, l := range s.listeners() {
		if l.Hovering != nil {
			l.Hovering()
		}
	}
}

func spanning(a, b geometry.Point) geometry.Rect {
	return geometry.NewRect(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Abs(a.X-b.X), math.Abs(a.Y-b.Y))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
