package runtimeinit

import (
	"io"
	"log"
	"runtime"
	"testing"
	"time"

	"screen-region-select/src/config"
	"screen-region-select/src/screenshot"
)

func TestNewEngineHookMode(t *testing.T) {
	cfg := &config.Config{
		Windowing:           config.WindowingHook,
		MoveModifier:        "shift",
		DisplayPollInterval: time.Second,
		MagnifierSize:       90,
		CaptureBackground:   true,
	}
	e, err := NewEngine(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if e.Windowing != config.WindowingHook {
		t.Errorf("Windowing = %q", e.Windowing)
	}
	if e.Requester.Input == nil {
		t.Error("hook mode needs an input source")
	}
	if e.Dispatcher.Pump != nil {
		t.Error("headless overlays have nothing to pump")
	}
	if got := e.Coordinator.Options.MagnifierSize; got.Width != 90 || got.Height != 90 {
		t.Errorf("MagnifierSize = %v", got)
	}
	if _, ok := e.Coordinator.Backgrounds.(screenshot.Backgrounds); !ok {
		t.Errorf("Backgrounds = %T", e.Coordinator.Backgrounds)
	}
}

func TestNewEngineFallsBackWithoutNativeWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("native overlays are available on Windows")
	}
	cfg := &config.Config{Windowing: config.WindowingNative, DisplayPollInterval: time.Second, MagnifierSize: 120}
	e, err := NewEngine(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if e.Windowing != config.WindowingHook || e.Requester.Input == nil {
		t.Errorf("expected the hook fallback, got %q", e.Windowing)
	}
	if e.Coordinator.Backgrounds != nil {
		t.Error("backgrounds should stay off unless configured")
	}
}
