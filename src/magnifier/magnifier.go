// Package magnifier computes the zoom preview shown next to the cursor while a
// region is being chosen: which native pixels to crop, where to place the view on
// the surface and what caption to print under it.
package magnifier

import (
	"fmt"
	"image"
	"math"
	"strconv"

	"golang.org/x/image/draw"

	"screen-region-select/src/geometry"
)

const (
	// CropSide is the side of the cropped square in logical units, before scaling.
	CropSide = 15
	// Gap separates the view from the cursor on both axes.
	Gap = 20

	interiorPadding = 5
	minSelection    = 10
)

// Input is everything the calculator needs for one cursor position.
// Cursor and Selected are in the surface's logical space.
type Input struct {
	Cursor       geometry.Point
	Selected     geometry.Rect
	Scale        float64
	Surface      geometry.Size
	ParentOrigin geometry.Point
	Background   image.Image
	ViewSize     geometry.Size
}

// View is the computed magnifier state. Hovering reports that the cursor is in a
// spot where this surface wants the magnifier, even when the crop itself had to be
// dropped because it fell outside the background.
type View struct {
	Visible  bool
	Hovering bool
	Crop     image.Rectangle
	Position geometry.Point
	Caption  string
}

// Hidden is the zero view.
var Hidden = View{}

// Suppressed reports whether the magnifier must stay out of the way: there is no
// background to sample, or the cursor is inside a selection big enough to see.
func Suppressed(background image.Image, selected geometry.Rect, cursor geometry.Point) bool {
	if background == nil {
		return true
	}
	if selected.IsEmpty() {
		return false
	}
	return selected.Width > minSelection && selected.Height > minSelection &&
		geometry.Offset(selected, -interiorPadding).Contains(cursor)
}

// CropSize is the side of the native crop for a monitor scale.
func CropSize(scale float64) int {
	return int(math.Round(CropSide * scale))
}

// Compute returns the magnifier view for in.
func Compute(in Input) View {
	if Suppressed(in.Background, in.Selected, in.Cursor) {
		return Hidden
	}
	view := View{Hovering: true}

	scale := in.Scale
	if scale <= 0 {
		scale = 1
	}
	native := geometry.ScalePoint(in.Cursor, scale)
	size := CropSize(scale)

	// The cursor may have spilled over onto a neighbouring monitor.
	bounds := in.Background.Bounds()
	x := bounds.Min.X + int(native.X)
	y := bounds.Min.Y + int(native.Y)
	crop := image.Rect(x, y, x+size, y+size)
	if native.X < 0 || native.Y < 0 || !crop.In(bounds) {
		return view
	}

	view.Visible = true
	view.Crop = crop
	view.Position = Place(in.Cursor, in.Surface, in.ViewSize)
	view.Caption = Caption(in.Cursor, in.ParentOrigin)
	return view
}

// Place anchors the view Gap units right of and above the cursor, flipping to the
// left on right overflow and below on top overflow. The two checks are independent.
func Place(cursor geometry.Point, surface, view geometry.Size) geometry.Point {
	left := cursor.X + Gap
	top := cursor.Y - view.Height - Gap

	if surface.Width-cursor.X < view.Width+Gap {
		left = cursor.X - view.Width - Gap
	}
	if cursor.Y-view.Height-Gap < 0 {
		top = cursor.Y + Gap
	}
	return geometry.Point{X: left, Y: top}
}

// Caption reports the cursor on the virtual desktop, rounded to two decimals.
func Caption(cursor, parentOrigin geometry.Point) string {
	return fmt.Sprintf("X: %s ◇ Y: %s", formatCoord(cursor.X+parentOrigin.X), formatCoord(cursor.Y+parentOrigin.Y))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(geometry.Round(v, 2), 'f', -1, 64)
}

// Render zooms the crop of background into a size x size image with nearest
// neighbour sampling so individual pixels stay visible.
func Render(background image.Image, crop image.Rectangle, size int) *image.RGBA {
	if size <= 0 {
		size = crop.Dx()
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if background == nil || crop.Empty() {
		return dst
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), background, crop, draw.Src, nil)
	return dst
}
