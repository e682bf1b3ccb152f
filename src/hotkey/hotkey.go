package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Hub owns the process-wide gohook event channel and fans events out to
// subscribers. gohook supports a single hook per process, so the hotkey listener
// and the overlay input driver share one.
type Hub struct {
	start func() chan gohook.Event

	mu      sync.Mutex
	subs    map[int]func(gohook.Event)
	nextID  int
	started bool
}

var defaultHub = newHub(gohook.Start)

func newHub(start func() chan gohook.Event) *Hub {
	return &Hub{start: start, subs: make(map[int]func(gohook.Event))}
}

// Default returns the hub backed by the real global hook.
func Default() *Hub { return defaultHub }

// Subscribe registers fn for every hook event, starting the hook on first use.
// fn runs on the hook goroutine. The returned func unsubscribes.
func (h *Hub) Subscribe(fn func(gohook.Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	if !h.started {
		h.started = true
		log.Printf("Starting gohook event loop...")
		ch := h.start()
		if ch == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
		} else {
			go h.run(ch)
		}
	}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) run(ch chan gohook.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in hotkey goroutine: %v", r)
		}
	}()
	for ev := range ch {
		h.dispatch(ev)
	}
	log.Printf("Event channel closed")
}

func (h *Hub) dispatch(ev gohook.Event) {
	h.mu.Lock()
	fns := make([]func(gohook.Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Listen registers a global hotkey on the default hub and calls callback each time
// the whole combination is held. The returned func stops listening.
func Listen(hotkeyConfig string, callback func()) (func(), error) {
	combo, err := ParseCombo(hotkeyConfig)
	if err != nil {
		return nil, err
	}
	log.Printf("Hotkey listener configured for: %s", hotkeyConfig)
	return Default().Subscribe(func(ev gohook.Event) {
		if combo.Feed(ev) {
			log.Printf("Hotkey activated: %s", hotkeyConfig)
			if callback != nil {
				callback()
			}
		}
	}), nil
}

// Combo tracks the pressed state of the keys of one hotkey combination. It is
// fed from a single goroutine.
type Combo struct {
	config string
	keys   []keyState
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// ParseCombo parses a configuration like "Ctrl+Alt+R".
func ParseCombo(hotkeyConfig string) (*Combo, error) {
	c := &Combo{config: hotkeyConfig}
	for _, name := range parseHotkey(hotkeyConfig) {
		rawcodes := Rawcodes(name)
		if len(rawcodes) == 0 {
			log.Printf("ERROR: Cannot map key '%s' to rawcodes, hotkey may not work correctly", name)
			continue
		}
		c.keys = append(c.keys, keyState{name: name, rawcodes: rawcodes})
	}
	if len(c.keys) == 0 {
		return nil, fmt.Errorf("no valid keys in hotkey configuration %q", hotkeyConfig)
	}
	return c, nil
}

// Feed updates the key states and reports whether ev completed the combination.
func (c *Combo) Feed(ev gohook.Event) bool {
	switch {
	case Pressed(ev):
		for i := range c.keys {
			if Matches(ev, c.keys[i].name, c.keys[i].rawcodes) {
				c.keys[i].pressed = true
			}
		}
		for i := range c.keys {
			if !c.keys[i].pressed {
				return false
			}
		}
		for i := range c.keys {
			c.keys[i].pressed = false
		}
		return true
	case Released(ev):
		for i := range c.keys {
			if Matches(ev, c.keys[i].name, c.keys[i].rawcodes) {
				c.keys[i].pressed = false
			}
		}
	}
	return false
}

// Pressed reports a key press. gohook reports typed keys as KeyDown and held keys
// as KeyHold; both count.
func Pressed(ev gohook.Event) bool {
	return ev.Kind == gohook.KeyDown || ev.Kind == gohook.KeyHold
}

func Released(ev gohook.Event) bool {
	return ev.Kind == gohook.KeyUp
}

// Matches reports whether ev is the named key, by Windows rawcode or by the
// hook's portable keycode.
func Matches(ev gohook.Event, name string, rawcodes []uint16) bool {
	for _, rawcode := range rawcodes {
		if ev.Rawcode == rawcode {
			return true
		}
	}
	if code, ok := gohook.Keycode[name]; ok && ev.Keycode != 0 {
		return ev.Keycode == code
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		case "control":
			keys = append(keys, "ctrl")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

// Rawcodes maps a key name to its Windows virtual key codes, e.g. both the left
// and right variants of a modifier.
func Rawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)} // VK_F1 is 112
	}

	switch keyName {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "win", "cmd", "super":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	case "space":
		return []uint16{32}
	case "enter", "return":
		return []uint16{13}
	case "esc", "escape":
		return []uint16{27}
	case "tab":
		return []uint16{9}
	case "backspace":
		return []uint16{8}
	case "delete", "del":
		return []uint16{46}
	case "insert", "ins":
		return []uint16{45}
	case "home":
		return []uint16{36}
	case "end":
		return []uint16{35}
	case "pageup", "pgup":
		return []uint16{33}
	case "pagedown", "pgdn":
		return []uint16{34}
	case "left":
		return []uint16{37}
	case "up":
		return []uint16{38}
	case "right":
		return []uint16{39}
	case "down":
		return []uint16{40}
	default:
		log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
		return nil
	}
}
