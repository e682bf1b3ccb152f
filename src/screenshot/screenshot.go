package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/kbinani/screenshot"

	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
)

// Backgrounds captures what each monitor shows right before the overlays open,
// so the magnifier has pixels to zoom into.
type Backgrounds struct{}

// Capture grabs the monitor's native bounds. The returned image is anchored at
// (0,0) so it lines up with the surface's native local coordinates.
func (Backgrounds) Capture(m *monitor.Monitor) (image.Image, error) {
	bounds := geometry.ToImage(m.NativeBounds)
	if bounds.Empty() {
		return nil, fmt.Errorf("monitor %s has no area", m.Label())
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", m.Label(), err)
	}
	if img.Bounds().Min != (image.Point{}) {
		img = rebase(img)
	}
	return img, nil
}

// Blank stands in for a capture when the screen cannot or should not be read,
// e.g. in replays and tests.
type Blank struct {
	Fill color.Color
}

// Capture returns a uniformly filled image with the monitor's native size.
func (b Blank) Capture(m *monitor.Monitor) (image.Image, error) {
	w := int(m.NativeBounds.Width)
	h := int(m.NativeBounds.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("monitor %s has no area", m.Label())
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := b.Fill
	if fill == nil {
		fill = color.Black
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	return img, nil
}

// CaptureRegion captures an accepted selection, given in native virtual-desktop
// pixels, and returns it PNG encoded.
func CaptureRegion(region geometry.Rect) ([]byte, error) {
	bounds := geometry.ToImage(region)
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", bounds.Dx(), bounds.Dy())
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return EncodePNG(img)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func rebase(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
