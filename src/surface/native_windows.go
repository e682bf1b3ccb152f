//go:build windows

package surface

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"math"
	"syscall"
	"unsafe"

	"github.com/lxn/win"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
	"screen-region-select/src/hotkey"
	"screen-region-select/src/magnifier"
	"screen-region-select/src/monitor"
	"screen-region-select/src/selector"
)

const (
	overlayClassName = "RegionSelectOverlay"
	mkLButton        = 0x0001
)

var (
	user32DLL            = syscall.NewLazyDLL("user32.dll")
	procGetAsyncKeyState = user32DLL.NewProc("GetAsyncKeyState")
	procFillRect         = user32DLL.NewProc("FillRect")

	gdi32DLL      = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen = gdi32DLL.NewProc("CreatePen")
	procRectangle = gdi32DLL.NewProc("Rectangle")
)

// windows maps live overlay windows to their surfaces. Only the event goroutine,
// which owns the windows' thread, touches it.
var windows = map[win.HWND]*NativeSurface{}

// Native creates one topmost popup window per monitor. Windows must be created
// and pumped on the same locked OS thread.
type Native struct {
	Logger *log.Logger

	modifier   int32
	className  *uint16
	registered bool
	cursor     win.HCURSOR
}

// NewNative returns the native windowing layer. modifier names the key that
// moves the selection while held, e.g. "space".
func NewNative(logger *log.Logger, modifier string) (coordinator.Windowing, error) {
	n := &Native{Logger: logger, modifier: win.VK_SPACE}
	if codes := hotkey.Rawcodes(modifier); len(codes) > 0 {
		n.modifier = int32(codes[0])
	}
	return n, nil
}

func (n *Native) logf(format string, args ...interface{}) {
	if n.Logger != nil {
		n.Logger.Printf(format, args...)
	}
}

func (n *Native) register() error {
	if n.registered {
		return nil
	}
	n.cursor = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))
	n.className = syscall.StringToUTF16Ptr(overlayClassName)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       n.cursor,
		LpszClassName: n.className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return fmt.Errorf("failed to register window class")
	}
	n.registered = true
	return nil
}

func (n *Native) NewSurface(m *monitor.Monitor) (coordinator.Surface, error) {
	if err := n.register(); err != nil {
		return nil, err
	}
	b := geometry.ToImage(m.NativeBounds)
	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW,
		n.className,
		syscall.StringToUTF16Ptr("Select Region"),
		win.WS_POPUP,
		int32(b.Min.X), int32(b.Min.Y), int32(b.Dx()), int32(b.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("failed to create overlay window")
	}
	s := &NativeSurface{native: n, hwnd: hwnd, monitor: m}
	windows[hwnd] = s
	n.logf("surface %s: window %v created", m.Label(), hwnd)
	return s, nil
}

// NativeSurface is one overlay window.
type NativeSurface struct {
	native  *Native
	hwnd    win.HWND
	monitor *monitor.Monitor
	sink    coordinator.InputSink

	background image.Image
	bgDC       win.HDC
	bgBitmap   win.HBITMAP
	frame      selector.Frame
}

func (s *NativeSurface) Bind(sink coordinator.InputSink) { s.sink = sink }

func (s *NativeSurface) SetBackground(img image.Image) {
	s.background = img
	s.releaseBackground()

	screen := win.GetDC(0)
	defer win.ReleaseDC(0, screen)
	dc, bmp := newBitmapDC(screen, toRGBA(img))
	s.bgDC, s.bgBitmap = dc, bmp
}

func (s *NativeSurface) Position(nativeBounds geometry.Rect) {
	b := geometry.ToImage(nativeBounds)
	win.SetWindowPos(s.hwnd, win.HWND_TOPMOST, int32(b.Min.X), int32(b.Min.Y), int32(b.Dx()), int32(b.Dy()), win.SWP_NOACTIVATE)
}

func (s *NativeSurface) Show() {
	win.ShowWindow(s.hwnd, win.SW_SHOW)
	win.SetForegroundWindow(s.hwnd)
	win.UpdateWindow(s.hwnd)
}

func (s *NativeSurface) Close() {
	delete(windows, s.hwnd)
	s.releaseBackground()
	win.DestroyWindow(s.hwnd)
	s.native.logf("surface %s: window %v closed", s.monitor.Label(), s.hwnd)
}

func (s *NativeSurface) CaptureInput()   { win.SetCapture(s.hwnd) }
func (s *NativeSurface) ReleaseCapture() { win.ReleaseCapture() }

func (s *NativeSurface) Present(frame selector.Frame) {
	s.frame = frame
	win.InvalidateRect(s.hwnd, nil, false)
}

func (s *NativeSurface) releaseBackground() {
	if s.bgBitmap != 0 {
		win.DeleteObject(win.HGDIOBJ(s.bgBitmap))
		s.bgBitmap = 0
	}
	if s.bgDC != 0 {
		win.DeleteDC(s.bgDC)
		s.bgDC = 0
	}
}

// local converts client pixels from lParam into logical units.
func (s *NativeSurface) local(lParam uintptr) geometry.Point {
	x := float64(int16(win.LOWORD(uint32(lParam))))
	y := float64(int16(win.HIWORD(uint32(lParam))))
	scale := s.frame.Scale
	if scale <= 0 {
		scale = s.monitor.Scale
	}
	return geometry.Point{X: x / scale, Y: y / scale}
}

func (s *NativeSurface) paint(hdc win.HDC) {
	rc := win.RECT{Right: int32(s.monitor.NativeBounds.Width), Bottom: int32(s.monitor.NativeBounds.Height)}
	if s.bgDC != 0 {
		win.BitBlt(hdc, 0, 0, rc.Right, rc.Bottom, s.bgDC, 0, 0, win.SRCCOPY)
	} else {
		procFillRect.Call(uintptr(hdc), uintptr(unsafe.Pointer(&rc)), uintptr(win.GetStockObject(win.BLACK_BRUSH)))
	}

	f := s.frame
	if !f.Native.IsEmpty() {
		drawRectangle(hdc, geometry.ToImage(f.Native))
	}

	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFF))
	if f.Badge.Visible {
		p := geometry.ScalePoint(f.Badge.Position, f.Scale)
		textOut(hdc, int32(p.X), int32(p.Y), f.BadgeText)
	}

	if f.Magnifier.Visible && s.background != nil {
		side := int(math.Round(f.MagnifierSize.Width * f.Scale))
		p := geometry.ScalePoint(f.Magnifier.Position, f.Scale)
		zoom := magnifier.Render(s.background, f.Magnifier.Crop, side)
		dc, bmp := newBitmapDC(hdc, zoom)
		if dc != 0 {
			win.BitBlt(hdc, int32(p.X), int32(p.Y), int32(side), int32(side), dc, 0, 0, win.SRCCOPY)
			win.DeleteObject(win.HGDIOBJ(bmp))
			win.DeleteDC(dc)
		}
		drawRectangle(hdc, image.Rect(int(p.X), int(p.Y), int(p.X)+side, int(p.Y)+side))
		textOut(hdc, int32(p.X), int32(p.Y)+int32(side)+4, f.Magnifier.Caption)
	}
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	s := windows[hwnd]
	if s == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN, win.WM_RBUTTONDOWN:
		if s.sink != nil {
			button := selector.Primary
			if msg == win.WM_RBUTTONDOWN {
				button = selector.Secondary
			}
			s.sink.PointerDown(button, s.local(lParam))
		}
		return 0

	case win.WM_MOUSEMOVE:
		if s.sink != nil {
			s.sink.PointerMove(selector.MoveEvent{
				Point:        s.local(lParam),
				PrimaryHeld:  wParam&mkLButton != 0,
				MoveModifier: keyDown(s.native.modifier),
			})
		}
		return 0

	case win.WM_LBUTTONUP, win.WM_RBUTTONUP:
		if s.sink != nil {
			button := selector.Primary
			if msg == win.WM_RBUTTONUP {
				button = selector.Secondary
			}
			s.sink.PointerUp(button)
		}
		return 0

	case win.WM_KEYDOWN:
		if s.sink != nil {
			switch wParam {
			case win.VK_ESCAPE:
				s.sink.KeyDown(coordinator.KeyEscape)
			case win.VK_RETURN:
				s.sink.KeyDown(coordinator.KeyEnter)
			}
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		s.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_ERASEBKGND:
		return 1

	case win.WM_SETCURSOR:
		win.SetCursor(s.native.cursor)
		return 1

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// PumpMessages dispatches every pending message of the calling thread.
func PumpMessages() {
	var msg win.MSG
	for win.PeekMessage(&msg, 0, 0, 0, win.PM_REMOVE) {
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

// CursorPos returns the pointer in native virtual-desktop pixels.
func CursorPos() (geometry.Point, bool) {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return geometry.Point{}, false
	}
	return geometry.Point{X: float64(pt.X), Y: float64(pt.Y)}, true
}

func keyDown(vk int32) bool {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return state&0x8000 != 0
}

func textOut(hdc win.HDC, x, y int32, text string) {
	if text == "" {
		return
	}
	utf16, err := syscall.UTF16FromString(text)
	if err != nil {
		return
	}
	win.TextOut(hdc, x, y, &utf16[0], int32(len(utf16)-1))
}

func drawRectangle(hdc win.HDC, r image.Rectangle) {
	pen, _, _ := procCreatePen.Call(0, 2, 0x0000FF)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))
	procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))
	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// newBitmapDC copies img into a top-down 32-bit DIB selected into a memory DC
// compatible with hdc. The caller deletes both.
func newBitmapDC(hdc win.HDC, img *image.RGBA) (win.HDC, win.HBITMAP) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width == 0 || height == 0 {
		return 0, 0
	}

	memDC := win.CreateCompatibleDC(hdc)
	bitmapInfo := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var pBits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bitmapInfo.BmiHeader, win.DIB_RGB_COLORS, &pBits, 0, 0)
	if hBitmap == 0 {
		win.DeleteDC(memDC)
		return 0, 0
	}
	win.SelectObject(memDC, win.HGDIOBJ(hBitmap))

	// 32-bit rows are already DWORD aligned.
	dst := unsafe.Slice((*byte)(pBits), width*height*4)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		row := dst[y*width*4 : (y+1)*width*4]
		for x := 0; x < width*4; x += 4 {
			row[x] = src[x+2]
			row[x+1] = src[x+1]
			row[x+2] = src[x]
			row[x+3] = src[x+3]
		}
	}
	return memDC, hBitmap
}
