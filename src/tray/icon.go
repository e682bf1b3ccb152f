package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconPNG  []byte
)

// IconPNG returns the tray icon: a dashed selection rectangle with corner handles.
func IconPNG() []byte {
	iconOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, drawIcon()); err == nil {
			iconPNG = buf.Bytes()
		}
	})
	return iconPNG
}

// IconICO wraps the PNG in an ICO container, which the Windows tray requires.
func IconICO() []byte {
	data := IconPNG()
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{iconSize, iconSize, 0, 0, 1, 32, uint32(len(data)), 6 + 16})
	buf.Write(data)
	return buf.Bytes()
}

// Icon returns the icon bytes in the format the current platform's tray expects.
func Icon() []byte {
	if runtime.GOOS == "windows" {
		return IconICO()
	}
	return IconPNG()
}

func drawIcon() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	handle := color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}

	const lo, hi = 4, iconSize - 5
	for i := lo; i <= hi; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		img.SetNRGBA(i, lo, frame)
		img.SetNRGBA(i, hi, frame)
		img.SetNRGBA(lo, i, frame)
		img.SetNRGBA(hi, i, frame)
	}
	for _, c := range [][2]int{{lo, lo}, {hi, lo}, {lo, hi}, {hi, hi}} {
		for dx := -2; dx <= 2; dx++ {
			for dy := -2; dy <= 2; dy++ {
				img.SetNRGBA(c[0]+dx, c[1]+dy, handle)
			}
		}
	}
	return img
}
