// Package monitor models the displays that take part in one selection operation.
//
// A snapshot is taken once per operation and treated as read only afterwards.
// NativeBounds is always in raw device pixels on the virtual desktop; Bounds and
// WorkingArea are rescaled into logical units by the copy helpers.
package monitor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"screen-region-select/src/geometry"
)

// DefaultDpi is used whenever the platform cannot report a monitor's DPI.
const DefaultDpi = 96

var ErrNoDisplays = errors.New("no active displays found")

// Monitor describes one display. Handle is borrowed from the platform and is only
// ever used as an identity key; nothing in this module releases it.
type Monitor struct {
	Handle       uintptr
	Name         string
	FriendlyName string
	AdapterName  string

	NativeBounds geometry.Rect
	Bounds       geometry.Rect
	WorkingArea  geometry.Rect

	Dpi       int
	Scale     float64
	IsPrimary bool
}

// Enumerator returns a fresh snapshot of the active displays.
type Enumerator interface {
	Enumerate() ([]Monitor, error)
}

// Notifier reports display setting changes with a fresh snapshot.
// The returned func unsubscribes and is safe to call more than once.
type Notifier interface {
	Subscribe(fn func([]Monitor)) (unsubscribe func())
}

// New builds a monitor whose Bounds still equal its native bounds.
func New(handle uintptr, nativeBounds, workingArea geometry.Rect, dpi int, primary bool) Monitor {
	if dpi <= 0 {
		dpi = DefaultDpi
	}
	return Monitor{
		Handle:       handle,
		NativeBounds: nativeBounds,
		Bounds:       nativeBounds,
		WorkingArea:  workingArea,
		Dpi:          dpi,
		Scale:        float64(dpi) / DefaultDpi,
		IsPrimary:    primary,
	}
}

// NativeOrigin is the top-left corner of the monitor on the virtual desktop, in native pixels.
func (m Monitor) NativeOrigin() geometry.Point {
	return m.NativeBounds.Location()
}

// Label is the human friendly name, falling back to the device name.
func (m Monitor) Label() string {
	if m.FriendlyName != "" {
		return m.FriendlyName
	}
	return m.Name
}

// SameDisplay reports whether both records describe the same physical display.
func (m Monitor) SameDisplay(other Monitor) bool {
	if m.Handle != 0 || other.Handle != 0 {
		return m.Handle == other.Handle
	}
	return m.Name == other.Name
}

func (m Monitor) String() string {
	primary := ""
	if m.IsPrimary {
		primary = " primary"
	}
	return fmt.Sprintf("%s [%s] native=%s bounds=%s scale=%g%s", m.Name, m.Label(), m.NativeBounds, m.Bounds, m.Scale, primary)
}

// VirtualOrigin is the top-left corner of the virtual desktop: the leftmost and
// topmost native coordinate over all monitors.
func VirtualOrigin(monitors []Monitor) geometry.Point {
	if len(monitors) == 0 {
		return geometry.Point{}
	}
	origin := geometry.Point{X: math.Inf(1), Y: math.Inf(1)}
	for _, m := range monitors {
		origin.X = math.Min(origin.X, m.NativeBounds.X)
		origin.Y = math.Min(origin.Y, m.NativeBounds.Y)
	}
	return origin
}

// ScaledCopy divides Bounds and WorkingArea of every monitor by one shared factor.
// With applyVirtualOffset the results are made relative to the virtual desktop origin.
func ScaledCopy(monitors []Monitor, factor float64, applyVirtualOffset bool) []Monitor {
	if factor <= 0 {
		factor = 1
	}
	origin := VirtualOrigin(monitors)
	out := make([]Monitor, len(monitors))
	for i, m := range monitors {
		m.Bounds = geometry.Divide(m.Bounds, factor)
		m.WorkingArea = geometry.Divide(m.WorkingArea, factor)
		if applyVirtualOffset {
			m.Bounds = geometry.Translate(m.Bounds, -origin.X, -origin.Y)
			m.WorkingArea = geometry.Translate(m.WorkingArea, -origin.X, -origin.Y)
		}
		out[i] = m
	}
	return out
}

// GranularCopy is ScaledCopy with each monitor divided by its own Scale, since
// monitors can run at different DPI. With applyVirtualOffset NativeBounds is made
// relative to the virtual desktop origin as well.
func GranularCopy(monitors []Monitor, applyVirtualOffset bool) []Monitor {
	origin := VirtualOrigin(monitors)
	out := make([]Monitor, len(monitors))
	for i, m := range monitors {
		scale := m.Scale
		if scale <= 0 {
			scale = 1
		}
		if applyVirtualOffset {
			m.NativeBounds = geometry.Translate(m.NativeBounds, -origin.X, -origin.Y)
		}
		m.Bounds = geometry.Divide(m.Bounds, scale)
		m.WorkingArea = geometry.Divide(m.WorkingArea, scale)
		if applyVirtualOffset {
			m.Bounds = geometry.Translate(m.Bounds, -origin.X, -origin.Y)
			m.WorkingArea = geometry.Translate(m.WorkingArea, -origin.X, -origin.Y)
		}
		out[i] = m
	}
	return out
}

// MostIntersected returns the monitor whose native bounds overlap region the most.
// Equal areas are ordered by the primary flag ascending, so a non-primary monitor
// wins a tie. When nothing overlaps the first candidate is returned.
func MostIntersected(monitors []Monitor, region geometry.Rect) (Monitor, bool) {
	if len(monitors) == 0 {
		return Monitor{}, false
	}

	type candidate struct {
		monitor Monitor
		area    float64
	}
	candidates := make([]candidate, len(monitors))
	for i, m := range monitors {
		candidates[i] = candidate{monitor: m, area: geometry.IntersectionArea(region, m.NativeBounds)}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].area != candidates[j].area {
			return candidates[i].area > candidates[j].area
		}
		return !candidates[i].monitor.IsPrimary && candidates[j].monitor.IsPrimary
	})
	return candidates[0].monitor, true
}

// Find returns the entry of monitors describing the same display as m.
func Find(monitors []Monitor, m Monitor) (Monitor, bool) {
	for _, candidate := range monitors {
		if candidate.SameDisplay(m) {
			return candidate, true
		}
	}
	return Monitor{}, false
}

// friendlyLabel maps the device string reported for a display to a readable label.
func friendlyLabel(deviceString string) string {
	deviceString = strings.TrimSpace(deviceString)
	switch {
	case deviceString == "":
		return "Internal Display"
	case deviceString == "Generic PnP Monitor":
		return "Generic Display"
	default:
		return deviceString
	}
}
