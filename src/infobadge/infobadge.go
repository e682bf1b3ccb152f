// Package infobadge decides where the size label of a selection goes.
package infobadge

import (
	"fmt"
	"math"

	"screen-region-select/src/geometry"
)

// Corner names a corner of the selection.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// Thickness is a margin on four sides.
type Thickness struct {
	Left, Top, Right, Bottom float64
}

// Uniform returns a thickness with the same value on every side.
func Uniform(v float64) Thickness {
	return Thickness{Left: v, Top: v, Right: v, Bottom: v}
}

// Placement is where the badge is drawn. Position is only meaningful when Visible.
type Placement struct {
	Visible  bool
	Corner   Corner
	Position geometry.Point
}

// Hidden is the zero placement.
var Hidden = Placement{}

// Place anchors a badge of the given size to the selection corner farthest from
// the cursor, so the label never sits under the pointer doing the drawing.
func Place(selected geometry.Rect, cursor *geometry.Point, badge geometry.Size, margin Thickness) Placement {
	if cursor == nil || selected.IsEmpty() || selected.Width < badge.Width || selected.Height < badge.Height {
		return Hidden
	}

	corners := [...]geometry.Point{
		selected.TopLeft(),
		selected.TopRight(),
		selected.BottomLeft(),
		selected.BottomRight(),
	}
	best, bestDistance := TopLeft, math.Inf(-1)
	for i, c := range corners {
		if d := geometry.Distance(c, *cursor); d > bestDistance {
			best, bestDistance = Corner(i), d
		}
	}

	left := selected.X
	top := selected.Y
	if best == TopRight || best == BottomRight {
		left = selected.Right() - badge.Width - margin.Left - margin.Right
	}
	if best == BottomLeft || best == BottomRight {
		top = selected.Bottom() - badge.Height - margin.Top - margin.Bottom
	}
	return Placement{Visible: true, Corner: best, Position: geometry.Point{X: left, Y: top}}
}

// Label is the text shown in the badge: the native size of the selection.
func Label(native geometry.Rect) string {
	if native.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("%g × %g", geometry.Round(native.Width, 0), geometry.Round(native.Height, 0))
}
