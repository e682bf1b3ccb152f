//go:build !windows

package surface

import (
	"log"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
)

// NewNative is only available on Windows; elsewhere the overlays are headless
// and input comes from the global hook.
func NewNative(logger *log.Logger, modifier string) (coordinator.Windowing, error) {
	return nil, ErrNativeUnsupported
}

// PumpMessages has nothing to pump without native windows.
func PumpMessages() {}

// CursorPos is unknown until the global hook reports a move.
func CursorPos() (geometry.Point, bool) { return geometry.Point{}, false }
