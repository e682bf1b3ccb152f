// Package geometry holds the rectangle and point math shared by the selection engine.
// Coordinates are float64 so the same types carry logical (DPI independent) units
// and native pixels; functions never mutate their inputs.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Point is a position in either logical units or native pixels.
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair.
type Size struct {
	Width  float64
	Height float64
}

// Rect is a top-left anchored rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Empty denotes "no rectangle". A zero sized rectangle at a point is not empty.
var Empty = Rect{X: math.Inf(1), Y: math.Inf(1), Width: math.Inf(-1), Height: math.Inf(-1)}

// NewRect builds a rectangle from its origin and size.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// FromImage converts an integer pixel rectangle.
func FromImage(r image.Rectangle) Rect {
	return Rect{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
}

func (r Rect) IsEmpty() bool { return r.Width < 0 }

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

func (r Rect) Location() Point { return Point{X: r.X, Y: r.Y} }
func (r Rect) Size() Size      { return Size{Width: r.Width, Height: r.Height} }

func (r Rect) TopLeft() Point     { return Point{X: r.X, Y: r.Y} }
func (r Rect) TopRight() Point    { return Point{X: r.Right(), Y: r.Y} }
func (r Rect) BottomLeft() Point  { return Point{X: r.X, Y: r.Bottom()} }
func (r Rect) BottomRight() Point { return Point{X: r.Right(), Y: r.Bottom()} }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	if r.IsEmpty() {
		return false
	}
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

func (r Rect) String() string {
	if r.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("%s,%s,%s,%s", formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Width), formatFloat(r.Height))
}

func (p Point) String() string {
	return fmt.Sprintf("%s,%s", formatFloat(p.X), formatFloat(p.Y))
}

// Round rounds v to the given number of decimals, half away from zero.
func Round(v float64, decimals int) float64 {
	if decimals == 0 {
		return math.Round(v)
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// RoundUp is a ceiling at arbitrary precision: the result is never less than v.
func RoundUp(v float64, decimals int) float64 {
	result := Round(v, decimals)
	if result < v {
		result += math.Pow(10, -float64(decimals))
	}
	return result
}

// ScalePoint multiplies both axes by factor and rounds each to the nearest integer.
func ScalePoint(p Point, factor float64) Point {
	return Point{X: math.Round(p.X * factor), Y: math.Round(p.Y * factor)}
}

// ScaleRect applies ScalePoint rounding to the origin and the size.
func ScaleRect(r Rect, factor float64) Rect {
	if r.IsEmpty() {
		return r
	}
	return Rect{
		X:      math.Round(r.X * factor),
		Y:      math.Round(r.Y * factor),
		Width:  math.Round(r.Width * factor),
		Height: math.Round(r.Height * factor),
	}
}

// Offset grows r by amount on all four sides; a negative amount shrinks it.
// Callers must make sure the result does not end up with a negative size.
func Offset(r Rect, amount float64) Rect {
	if r.IsEmpty() {
		return r
	}
	return Rect{
		X:      r.X - amount,
		Y:      r.Y - amount,
		Width:  r.Width + amount*2,
		Height: r.Height + amount*2,
	}
}

// Translate moves the origin of r by (dx, dy).
func Translate(r Rect, dx, dy float64) Rect {
	if r.IsEmpty() {
		return r
	}
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Divide maps r into a space that is factor times smaller, without rounding.
func Divide(r Rect, factor float64) Rect {
	if r.IsEmpty() || factor == 0 {
		return r
	}
	return Rect{X: r.X / factor, Y: r.Y / factor, Width: r.Width / factor, Height: r.Height / factor}
}

// IntersectionArea returns the overlapping area of a and b, or 0 when they are disjoint.
func IntersectionArea(a, b Rect) float64 {
	if a.IsEmpty() || b.IsEmpty() {
		return 0
	}
	left := math.Max(a.X, b.X)
	right := math.Min(a.Right(), b.Right())
	top := math.Max(a.Y, b.Y)
	bottom := math.Min(a.Bottom(), b.Bottom())
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ToImage converts r to an integer pixel rectangle.
func ToImage(r Rect) image.Rectangle {
	if r.IsEmpty() {
		return image.Rectangle{}
	}
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))
	return image.Rect(x, y, x+int(math.Round(r.Width)), y+int(math.Round(r.Height)))
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", Round(v, 2))
}
