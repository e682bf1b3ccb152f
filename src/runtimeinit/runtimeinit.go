// Package runtimeinit wires configuration, logging and the selection engine for
// the binaries.
package runtimeinit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"screen-region-select/src/clipboard"
	"screen-region-select/src/config"
	"screen-region-select/src/coordinator"
	"screen-region-select/src/eventloop"
	"screen-region-select/src/geometry"
	"screen-region-select/src/hookdriver"
	"screen-region-select/src/hotkey"
	"screen-region-select/src/monitor"
	"screen-region-select/src/screenshot"
	"screen-region-select/src/session"
	"screen-region-select/src/surface"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// RequireClipboard fails Bootstrap when the clipboard cannot be opened.
	RequireClipboard bool
}

// Bootstrap loads the configuration and prepares process-wide state.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	// Must run before any window is created or any metric queried.
	EnableDPIAwareness()

	if err := clipboard.Init(); err != nil {
		if opts.RequireClipboard || cfg.OutputMode == config.OutputClipboard {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		log.Printf("Clipboard unavailable, continuing in %s mode: %v", cfg.OutputMode, err)
	}

	return cfg, nil
}

// Engine is the assembled selection engine: one event goroutine owning the
// overlays, and a requester usable from any other goroutine.
type Engine struct {
	Dispatcher  *eventloop.Dispatcher
	Coordinator *coordinator.Coordinator
	Requester   *session.Requester
	Windowing   string

	platform *monitor.Platform
}

// NewEngine builds the engine described by cfg. Native windowing falls back to
// hook-driven headless overlays where native windows are unsupported.
func NewEngine(cfg *config.Config, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{
		Dispatcher: eventloop.NewDispatcher(0),
		platform:   monitor.NewPlatform(),
	}
	e.platform.Logger = logger

	windowing, mode, err := newWindowing(cfg, logger)
	if err != nil {
		return nil, err
	}
	e.Windowing = mode
	if mode == config.WindowingNative {
		e.Dispatcher.Pump = surface.PumpMessages
	}

	c := coordinator.New(windowing)
	c.Logger = logger
	c.Cursor = surface.CursorPos
	c.Notifier = monitor.NewPollingNotifier(e.platform, cfg.DisplayPollInterval, func(fn func()) {
		if !e.Dispatcher.Post(fn) {
			logger.Printf("runtimeinit: dropped display change, event queue full")
		}
	})
	if cfg.CaptureBackground {
		c.Backgrounds = screenshot.Backgrounds{}
	}
	size := float64(cfg.MagnifierSize)
	c.Options.MagnifierSize = geometry.Size{Width: size, Height: size}
	e.Coordinator = c

	e.Requester = &session.Requester{
		Enumerator:  e.platform,
		Coordinator: c,
		Events:      e.Dispatcher,
		Logger:      logger,
	}
	if mode == config.WindowingHook {
		driver := hookdriver.New(hotkey.Default(), e.Dispatcher, cfg.MoveModifier)
		driver.Logger = logger
		e.Requester.Input = driver
	}
	return e, nil
}

func newWindowing(cfg *config.Config, logger *log.Logger) (coordinator.Windowing, string, error) {
	if cfg.Windowing == config.WindowingNative {
		w, err := surface.NewNative(logger, cfg.MoveModifier)
		if err == nil {
			return w, config.WindowingNative, nil
		}
		if !errors.Is(err, surface.ErrNativeUnsupported) {
			return nil, "", fmt.Errorf("failed to create overlay windows: %w", err)
		}
		logger.Printf("runtimeinit: %v, using hook-driven overlays", err)
	}
	return surface.NewHeadless(logger), config.WindowingHook, nil
}

// Start runs the event goroutine until ctx ends.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		if err := e.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("runtimeinit: dispatcher stopped: %v", err)
		}
	}()
}

// LogMonitors writes the current display layout to the log.
func (e *Engine) LogMonitors() {
	monitors, err := e.platform.Enumerate()
	if err != nil {
		log.Printf("MONITOR: enumeration failed: %v", err)
		return
	}
	log.Printf("MONITOR: Detected %d monitors", len(monitors))
	for _, m := range monitor.GranularCopy(monitors, false) {
		log.Printf("MONITOR: %s", m)
	}
}
