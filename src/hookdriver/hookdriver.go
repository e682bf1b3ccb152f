// Package hookdriver feeds global mouse and keyboard hook events into a running
// selection operation, for surfaces that do not receive input themselves.
package hookdriver

import (
	"context"
	"errors"
	"log"
	"sync"

	gohook "github.com/robotn/gohook"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
	"screen-region-select/src/hotkey"
	"screen-region-select/src/selector"
)

var ErrRunning = errors.New("hook driver already running")

// Source delivers raw hook events. hotkey.Hub implements it.
type Source interface {
	Subscribe(fn func(gohook.Event)) (unsubscribe func())
}

// Poster runs work on the event goroutine. PostWait blocks until fn is queued
// and reports false only when the event goroutine has stopped.
type Poster interface {
	PostWait(ctx context.Context, fn func()) bool
}

// Kind classifies a translated hook event.
type Kind int

const (
	Press Kind = iota + 1
	Release
	Move
	KeyPress
	ModifierDown
	ModifierUp
)

// Input is a hook event reduced to what the overlays need. Point is in native
// virtual-desktop pixels.
type Input struct {
	Kind   Kind
	Button selector.Button
	Point  geometry.Point
	Key    coordinator.Key
}

// Driver routes hook input to the overlays of one operation at a time.
type Driver struct {
	Source   Source
	Events   Poster
	Modifier string
	Logger   *log.Logger

	mu          sync.Mutex
	op          *coordinator.Operation
	unsubscribe func()

	// Touched only on the event goroutine.
	primaryHeld  bool
	modifierHeld bool
	last         geometry.Point
}

// New returns a driver reading from source. modifier names the key that moves
// the selection while held.
func New(source Source, events Poster, modifier string) *Driver {
	if modifier == "" {
		modifier = "space"
	}
	return &Driver{Source: source, Events: events, Modifier: modifier, Logger: log.Default()}
}

// Start begins routing events to op.
func (d *Driver) Start(op *coordinator.Operation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsubscribe != nil {
		return ErrRunning
	}
	d.op = op
	d.unsubscribe = d.Source.Subscribe(d.onEvent)
	return nil
}

// Stop detaches from the source. Events already posted still run but find the
// operation closed.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.op = nil
}

func (d *Driver) onEvent(ev gohook.Event) {
	in, ok := Translate(ev, d.Modifier)
	if !ok {
		return
	}
	d.mu.Lock()
	op := d.op
	d.mu.Unlock()
	if op == nil {
		return
	}
	// Input is never dropped or coalesced; the hook goroutine waits for room.
	if !d.Events.PostWait(context.Background(), func() { d.Apply(op, in) }) && d.Logger != nil {
		d.Logger.Printf("hookdriver: event loop stopped, %v not delivered", in.Kind)
	}
}

// Translate maps a gohook event to overlay input. gohook names the press of a
// mouse button MouseHold and the release MouseDown; clicks are ignored.
func Translate(ev gohook.Event, modifier string) (Input, bool) {
	p := geometry.Point{X: float64(ev.X), Y: float64(ev.Y)}
	switch ev.Kind {
	case gohook.MouseHold, gohook.MouseDown:
		button, ok := mouseButton(ev.Button)
		if !ok {
			return Input{}, false
		}
		kind := Press
		if ev.Kind == gohook.MouseDown {
			kind = Release
		}
		return Input{Kind: kind, Button: button, Point: p}, true
	case gohook.MouseMove, gohook.MouseDrag:
		return Input{Kind: Move, Point: p}, true
	}

	switch {
	case hotkey.Pressed(ev):
		switch {
		case isKey(ev, modifier):
			return Input{Kind: ModifierDown}, true
		case isKey(ev, "esc"):
			return Input{Kind: KeyPress, Key: coordinator.KeyEscape}, true
		case isKey(ev, "enter"):
			return Input{Kind: KeyPress, Key: coordinator.KeyEnter}, true
		}
	case hotkey.Released(ev):
		if isKey(ev, modifier) {
			return Input{Kind: ModifierUp}, true
		}
	}
	return Input{}, false
}

func isKey(ev gohook.Event, name string) bool {
	return hotkey.Matches(ev, name, hotkey.Rawcodes(name))
}

func mouseButton(b uint16) (selector.Button, bool) {
	switch b {
	case 1:
		return selector.Primary, true
	case 2:
		return selector.Secondary, true
	}
	return 0, false
}

// Route picks the overlay that receives a native point: the one holding the
// capture, else the one under the point. It also returns the point in that
// overlay's local logical coordinates.
func Route(op *coordinator.Operation, p geometry.Point) (*coordinator.Overlay, geometry.Point, bool) {
	ov := op.Capturing()
	if ov == nil {
		ov = op.OverlayAt(p)
	}
	if ov == nil {
		return nil, geometry.Point{}, false
	}
	return ov, ov.ToLocal(p), true
}

// Apply delivers one input to op. It must run on the event goroutine.
func (d *Driver) Apply(op *coordinator.Operation, in Input) {
	switch in.Kind {
	case ModifierDown:
		d.modifierHeld = true
		return
	case ModifierUp:
		d.modifierHeld = false
		return
	case Press, Move:
		d.last = in.Point
	}

	if op.Closed() {
		return
	}

	switch in.Kind {
	case Press:
		if in.Button == selector.Primary {
			d.primaryHeld = true
		}
		if ov, local, ok := Route(op, in.Point); ok {
			ov.PointerDown(in.Button, local)
		}
	case Move:
		if ov, local, ok := Route(op, in.Point); ok {
			ov.PointerMove(selector.MoveEvent{Point: local, PrimaryHeld: d.primaryHeld, MoveModifier: d.modifierHeld})
		}
	case Release:
		if in.Button == selector.Primary {
			d.primaryHeld = false
		}
		if ov, _, ok := Route(op, in.Point); ok {
			ov.PointerUp(in.Button)
		}
	case KeyPress:
		if ov, _, ok := Route(op, d.last); ok {
			ov.KeyDown(in.Key)
		} else if in.Key == coordinator.KeyEscape {
			_ = op.Abort()
		}
	}
}
