//go:build !windows

package monitor

import "image"

// queryDisplay has no per-display metadata source outside Windows; callers use fallbacks.
func queryDisplay(bounds image.Rectangle) (displayInfo, error) {
	return displayInfo{}, errUnsupported
}
