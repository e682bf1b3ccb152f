//go:build windows

package monitor

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	shcore                  = windows.NewLazySystemDLL("shcore.dll")
	gdi32                   = windows.NewLazySystemDLL("gdi32.dll")
	procMonitorFromRect     = user32.NewProc("MonitorFromRect")
	procGetMonitorInfoW     = user32.NewProc("GetMonitorInfoW")
	procEnumDisplayDevicesW = user32.NewProc("EnumDisplayDevicesW")
	procGetDpiForMonitor    = shcore.NewProc("GetDpiForMonitor")
	procCreateCompatibleDC  = gdi32.NewProc("CreateCompatibleDC")
	procGetDeviceCaps       = gdi32.NewProc("GetDeviceCaps")
	procDeleteDC            = gdi32.NewProc("DeleteDC")
)

const (
	monitorDefaultToNearest = 2
	monitorInfoPrimary      = 1
	mdtEffectiveDpi         = 0
	logPixelsX              = 88
)

type monitorInfoEx struct {
	Size    uint32
	Monitor windows.Rect
	Work    windows.Rect
	Flags   uint32
	Device  [32]uint16
}

type displayDevice struct {
	Size         uint32
	DeviceName   [32]uint16
	DeviceString [128]uint16
	StateFlags   uint32
	DeviceID     [128]uint16
	DeviceKey    [128]uint16
}

func queryDisplay(bounds image.Rectangle) (displayInfo, error) {
	rect := windows.Rect{
		Left:   int32(bounds.Min.X),
		Top:    int32(bounds.Min.Y),
		Right:  int32(bounds.Max.X),
		Bottom: int32(bounds.Max.Y),
	}
	handle, _, _ := procMonitorFromRect.Call(uintptr(unsafe.Pointer(&rect)), monitorDefaultToNearest)
	if handle == 0 {
		return displayInfo{}, fmt.Errorf("MonitorFromRect returned no monitor")
	}

	var mi monitorInfoEx
	mi.Size = uint32(unsafe.Sizeof(mi))
	if ret, _, err := procGetMonitorInfoW.Call(handle, uintptr(unsafe.Pointer(&mi))); ret == 0 {
		return displayInfo{}, fmt.Errorf("GetMonitorInfoW failed: %w", err)
	}

	info := displayInfo{
		handle: handle,
		workingArea: image.Rect(
			int(mi.Work.Left), int(mi.Work.Top),
			int(mi.Work.Right), int(mi.Work.Bottom),
		),
		primary: mi.Flags&monitorInfoPrimary != 0,
		name:    windows.UTF16ToString(mi.Device[:]),
		dpi:     monitorDpi(handle),
	}
	info.adapter, info.device = deviceStrings(info.name)
	return info, nil
}

// monitorDpi asks shcore for the effective DPI, then the GDI device caps, then gives up with 96.
func monitorDpi(handle uintptr) int {
	if procGetDpiForMonitor.Find() == nil {
		var dpiX, dpiY uint32
		hr, _, _ := procGetDpiForMonitor.Call(handle, mdtEffectiveDpi, uintptr(unsafe.Pointer(&dpiX)), uintptr(unsafe.Pointer(&dpiY)))
		if hr == 0 && dpiX > 0 {
			return int(dpiX)
		}
	}

	if procCreateCompatibleDC.Find() == nil && procGetDeviceCaps.Find() == nil {
		dc, _, _ := procCreateCompatibleDC.Call(0)
		if dc != 0 {
			defer procDeleteDC.Call(dc)
			d, _, _ := procGetDeviceCaps.Call(dc, logPixelsX)
			if d > 0 {
				return int(d)
			}
		}
	}

	return DefaultDpi
}

// deviceStrings walks the display adapters looking for the one driving deviceName
// and returns the adapter description and the attached monitor description.
func deviceStrings(deviceName string) (adapter, device string) {
	if deviceName == "" || procEnumDisplayDevicesW.Find() != nil {
		return "", ""
	}

	for id := uint32(0); ; id++ {
		var dd displayDevice
		dd.Size = uint32(unsafe.Sizeof(dd))
		if ret, _, _ := procEnumDisplayDevicesW.Call(0, uintptr(id), uintptr(unsafe.Pointer(&dd)), 0); ret == 0 {
			return "", ""
		}
		if windows.UTF16ToString(dd.DeviceName[:]) != deviceName {
			continue
		}
		adapter = windows.UTF16ToString(dd.DeviceString[:])

		var child displayDevice
		child.Size = uint32(unsafe.Sizeof(child))
		if ret, _, _ := procEnumDisplayDevicesW.Call(uintptr(unsafe.Pointer(&dd.DeviceName[0])), 0, uintptr(unsafe.Pointer(&child)), 0); ret != 0 {
			device = windows.UTF16ToString(child.DeviceString[:])
		}
		return adapter, device
	}
}
