// Package replay drives a selection from a YAML script instead of live input.
// Scripts describe the monitor layout and a sequence of pointer and keyboard
// events in native virtual-desktop pixels; they make whole selections
// reproducible without a display.
package replay

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
	"screen-region-select/src/hookdriver"
	"screen-region-select/src/monitor"
	"screen-region-select/src/screenshot"
	"screen-region-select/src/selector"
	"screen-region-select/src/surface"
)

// ErrUnresolved is returned when the script ends before the selection resolves.
var ErrUnresolved = errors.New("script ended without accepting or aborting")

type Script struct {
	Monitors []MonitorSpec `yaml:"monitors"`
	Events   []Event       `yaml:"events"`
}

type MonitorSpec struct {
	Name     string    `yaml:"name"`
	Handle   uintptr   `yaml:"handle"`
	Bounds   []float64 `yaml:"bounds"`
	WorkArea []float64 `yaml:"work_area"`
	Dpi      int       `yaml:"dpi"`
	Primary  bool      `yaml:"primary"`
}

// Event is one scripted input. Kind is one of down, move, up, key, modifier or
// dpi. X and Y are native virtual-desktop pixels.
type Event struct {
	Kind    string  `yaml:"kind"`
	Button  string  `yaml:"button"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Key     string  `yaml:"key"`
	Held    bool    `yaml:"held"`
	Monitor string  `yaml:"monitor"`
	Dpi     int     `yaml:"dpi"`
}

// Load decodes a script, rejecting unknown fields.
func Load(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("failed to decode replay script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// LoadFile reads a script from path.
func LoadFile(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to open replay script: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (s Script) Validate() error {
	if len(s.Monitors) == 0 {
		return errors.New("replay script has no monitors")
	}
	for i, m := range s.Monitors {
		if _, err := rect(m.Bounds); err != nil {
			return fmt.Errorf("monitor %d bounds: %w", i, err)
		}
		if len(m.WorkArea) > 0 {
			if _, err := rect(m.WorkArea); err != nil {
				return fmt.Errorf("monitor %d work_area: %w", i, err)
			}
		}
	}
	for i, ev := range s.Events {
		if _, err := ev.input(); err != nil && ev.Kind != "dpi" {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if ev.Kind == "dpi" && (ev.Monitor == "" || ev.Dpi <= 0) {
			return fmt.Errorf("event %d: dpi events need a monitor and a positive dpi", i)
		}
	}
	return nil
}

// Snapshot builds the native monitor records the script describes.
func (s Script) Snapshot() []monitor.Monitor {
	out := make([]monitor.Monitor, 0, len(s.Monitors))
	for i, ms := range s.Monitors {
		bounds, _ := rect(ms.Bounds)
		work := bounds
		if len(ms.WorkArea) > 0 {
			work, _ = rect(ms.WorkArea)
		}
		handle := ms.Handle
		if handle == 0 {
			handle = uintptr(i + 1)
		}
		m := monitor.New(handle, bounds, work, ms.Dpi, ms.Primary)
		m.Name = ms.Name
		if m.Name == "" {
			m.Name = fmt.Sprintf("Display %d", i+1)
		}
		out = append(out, m)
	}
	return out
}

func rect(v []float64) (geometry.Rect, error) {
	if len(v) != 4 {
		return geometry.Rect{}, fmt.Errorf("want [x, y, width, height], got %d values", len(v))
	}
	if v[2] <= 0 || v[3] <= 0 {
		return geometry.Rect{}, fmt.Errorf("width and height must be positive")
	}
	return geometry.NewRect(v[0], v[1], v[2], v[3]), nil
}

func (ev Event) input() (hookdriver.Input, error) {
	p := geometry.Point{X: ev.X, Y: ev.Y}
	switch strings.ToLower(ev.Kind) {
	case "down", "up":
		button := selector.Primary
		switch strings.ToLower(ev.Button) {
		case "", "primary", "left":
		case "secondary", "right":
			button = selector.Secondary
		default:
			return hookdriver.Input{}, fmt.Errorf("unknown button %q", ev.Button)
		}
		kind := hookdriver.Press
		if strings.ToLower(ev.Kind) == "up" {
			kind = hookdriver.Release
		}
		return hookdriver.Input{Kind: kind, Button: button, Point: p}, nil
	case "move":
		return hookdriver.Input{Kind: hookdriver.Move, Point: p}, nil
	case "key":
		switch strings.ToLower(ev.Key) {
		case "esc", "escape":
			return hookdriver.Input{Kind: hookdriver.KeyPress, Key: coordinator.KeyEscape}, nil
		case "enter", "return":
			return hookdriver.Input{Kind: hookdriver.KeyPress, Key: coordinator.KeyEnter}, nil
		}
		return hookdriver.Input{}, fmt.Errorf("unknown key %q", ev.Key)
	case "modifier":
		if ev.Held {
			return hookdriver.Input{Kind: hookdriver.ModifierDown}, nil
		}
		return hookdriver.Input{Kind: hookdriver.ModifierUp}, nil
	}
	return hookdriver.Input{}, fmt.Errorf("unknown event kind %q", ev.Kind)
}

// Result is what a replay produced.
type Result struct {
	Outcome  coordinator.Outcome
	Surfaces []*surface.HeadlessSurface
}

// Run replays s against headless surfaces and blank backgrounds. When the
// events run out first the operation is aborted and ErrUnresolved returned.
func Run(s Script, logger *log.Logger) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = log.Default()
	}

	snapshot := s.Snapshot()
	notifier := &scriptNotifier{}
	windowing := surface.NewHeadless(logger)
	c := coordinator.New(windowing)
	c.Logger = logger
	c.Notifier = notifier
	c.Backgrounds = screenshot.Blank{}

	op, err := c.Begin(monitor.GranularCopy(snapshot, false))
	if err != nil {
		return Result{}, err
	}

	driver := hookdriver.New(nil, nil, "")
	driver.Logger = logger
	for i, ev := range s.Events {
		if op.Closed() {
			logger.Printf("replay: operation resolved, skipping %d remaining event(s)", len(s.Events)-i)
			break
		}
		if ev.Kind == "dpi" {
			snapshot = withDpi(snapshot, ev.Monitor, ev.Dpi)
			notifier.publish(monitor.GranularCopy(snapshot, false))
			continue
		}
		in, _ := ev.input()
		driver.Apply(op, in)
	}

	res := Result{Surfaces: windowing.Surfaces()}
	o, ok := op.Outcome()
	if !ok {
		_ = op.Abort()
		res.Outcome, _ = op.Outcome()
		return res, ErrUnresolved
	}
	res.Outcome = o
	return res, nil
}

func withDpi(monitors []monitor.Monitor, name string, dpi int) []monitor.Monitor {
	out := append([]monitor.Monitor(nil), monitors...)
	for i := range out {
		if out[i].Name == name {
			out[i].Dpi = dpi
			out[i].Scale = float64(dpi) / monitor.DefaultDpi
		}
	}
	return out
}

// scriptNotifier delivers scripted display changes synchronously.
type scriptNotifier struct {
	subs []func([]monitor.Monitor)
}

func (n *scriptNotifier) Subscribe(fn func([]monitor.Monitor)) func() {
	idx := len(n.subs)
	n.subs = append(n.subs, fn)
	return func() { n.subs[idx] = nil }
}

func (n *scriptNotifier) publish(snapshot []monitor.Monitor) {
	for _, fn := range n.subs {
		if fn != nil {
			fn(snapshot)
		}
	}
}
