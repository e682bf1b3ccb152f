//go:build !windows

package surface

import (
	"errors"
	"testing"
)

func TestNewNativeUnsupported(t *testing.T) {
	if _, err := NewNative(nil, "space"); !errors.Is(err, ErrNativeUnsupported) {
		t.Errorf("NewNative() error = %v, want ErrNativeUnsupported", err)
	}
	PumpMessages()
}

func TestCursorPosUnknown(t *testing.T) {
	if _, ok := CursorPos(); ok {
		t.Error("CursorPos() should report no position without native windows")
	}
}
