package monitor

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/kbinani/screenshot"

	"screen-region-select/src/geometry"
)

var errUnsupported = errors.New("display query not supported on this platform")

// displayInfo is what the platform layer adds on top of the raw display bounds.
type displayInfo struct {
	handle      uintptr
	workingArea image.Rectangle
	dpi         int
	primary     bool
	name        string
	adapter     string
	device      string
}

// Platform enumerates the active displays through kbinani/screenshot and enriches
// each one with DPI, work area and names where the OS can report them.
type Platform struct {
	Logger *log.Logger
}

// NewPlatform returns an enumerator logging to the standard logger.
func NewPlatform() *Platform {
	return &Platform{Logger: log.Default()}
}

func (p *Platform) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// Enumerate returns one Monitor per active display. Failed platform queries degrade
// the affected monitor to fallback values instead of failing the snapshot.
func (p *Platform) Enumerate() ([]Monitor, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplays
	}

	monitors := make([]Monitor, 0, n)
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		info, err := queryDisplay(bounds)
		if err != nil {
			if err != errUnsupported {
				p.logger().Printf("monitor: display %d query failed, using fallbacks: %v", i, err)
			}
			info = fallbackInfo(i, bounds)
		}
		monitors = append(monitors, fromInfo(i, bounds, info))
	}

	p.logger().Printf("monitor: enumerated %d display(s)", len(monitors))
	return monitors, nil
}

func fallbackInfo(index int, bounds image.Rectangle) displayInfo {
	return displayInfo{
		workingArea: bounds,
		dpi:         DefaultDpi,
		primary:     bounds.Min == image.Point{},
		name:        fmt.Sprintf("Display %d", index+1),
	}
}

func fromInfo(index int, bounds image.Rectangle, info displayInfo) Monitor {
	work := info.workingArea
	if work.Empty() {
		work = bounds
	}
	m := New(info.handle, geometry.FromImage(bounds), geometry.FromImage(work), info.dpi, info.primary)
	m.Name = info.name
	if m.Name == "" {
		m.Name = fmt.Sprintf("Display %d", index+1)
	}
	m.AdapterName = info.adapter
	if info.device != "" || info.handle != 0 {
		m.FriendlyName = friendlyLabel(info.device)
	} else {
		m.FriendlyName = m.Name
	}
	return m
}
