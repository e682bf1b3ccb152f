package monitor

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// PollingNotifier re-enumerates the displays on an interval and notifies subscribers
// when any monitor's bounds or DPI changed. Callbacks are handed to Post so they run
// on the caller's event goroutine; with a nil Post they run on the polling goroutine.
type PollingNotifier struct {
	Enumerator Enumerator
	Interval   time.Duration
	Post       func(func())
	Logger     *log.Logger

	mu     sync.Mutex
	subs   map[int]func([]Monitor)
	nextID int
	stop   chan struct{}
	last   string
}

// NewPollingNotifier creates a notifier polling e every interval.
func NewPollingNotifier(e Enumerator, interval time.Duration, post func(func())) *PollingNotifier {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollingNotifier{Enumerator: e, Interval: interval, Post: post, Logger: log.Default()}
}

// Subscribe registers fn; polling runs only while at least one subscriber exists.
func (n *PollingNotifier) Subscribe(fn func([]Monitor)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[int]func([]Monitor))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	if n.stop == nil {
		n.stop = make(chan struct{})
		n.last = ""
		if snapshot, err := n.Enumerator.Enumerate(); err == nil {
			n.last = signature(snapshot)
		}
		go n.poll(n.stop)
	}

	var once sync.Once
	return func() {
		once.Do(func() { n.unsubscribe(id) })
	}
}

func (n *PollingNotifier) unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.subs, id)
	if len(n.subs) == 0 && n.stop != nil {
		close(n.stop)
		n.stop = nil
	}
}

func (n *PollingNotifier) poll(stop chan struct{}) {
	ticker := time.NewTicker(n.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.check()
		}
	}
}

// check compares a fresh snapshot against the previous one and fans out on change.
func (n *PollingNotifier) check() {
	snapshot, err := n.Enumerator.Enumerate()
	if err != nil {
		n.logf("monitor: display poll failed: %v", err)
		return
	}

	n.mu.Lock()
	sig := signature(snapshot)
	if sig == n.last {
		n.mu.Unlock()
		return
	}
	n.last = sig
	subs := make([]func([]Monitor), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	n.logf("monitor: display settings changed (%d display(s))", len(snapshot))
	for _, fn := range subs {
		fn := fn
		deliver := func() { fn(snapshot) }
		if n.Post != nil {
			n.Post(deliver)
		} else {
			deliver()
		}
	}
}

func (n *PollingNotifier) logf(format string, args ...interface{}) {
	if n.Logger != nil {
		n.Logger.Printf(format, args...)
	}
}

func signature(monitors []Monitor) string {
	var b strings.Builder
	for _, m := range monitors {
		fmt.Fprintf(&b, "%s|%s|%d;", m.Name, m.NativeBounds, m.Dpi)
	}
	return b.String()
}
