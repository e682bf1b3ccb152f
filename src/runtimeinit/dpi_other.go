//go:build !windows

package runtimeinit

// EnableDPIAwareness is a no-op; other platforms report native pixels already.
func EnableDPIAwareness() {}
