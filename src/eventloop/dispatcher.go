package eventloop

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrStopped is returned by Call once the dispatcher no longer runs work.
var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher runs posted functions one at a time on a single goroutine. Overlay
// surfaces, selectors and the coordinator are only touched from that goroutine.
type Dispatcher struct {
	queue chan func()
	stop  chan struct{}
	once  sync.Once

	// Pump, when set, is called between queued functions and at least every
	// PumpInterval. Native windowing uses it to drain the thread's message queue.
	Pump         func()
	PumpInterval time.Duration
}

// NewDispatcher returns a dispatcher with a queue of the given depth.
func NewDispatcher(depth int) *Dispatcher {
	if depth <= 0 {
		depth = 64
	}
	return &Dispatcher{
		queue:        make(chan func(), depth),
		stop:         make(chan struct{}),
		PumpInterval: 10 * time.Millisecond,
	}
}

// Post queues fn. It returns false when the dispatcher is stopped or the queue is full.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.stop:
		return false
	default:
	}
	select {
	case d.queue <- fn:
		return true
	case <-d.stop:
		return false
	default:
		return false
	}
}

// Call runs fn on the dispatcher goroutine and waits for it to return.
func (d *Dispatcher) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !d.PostWait(ctx, func() {
		defer close(done)
		fn()
	}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrStopped
	}
}

// PostWait blocks until fn is queued instead of dropping it on a full queue. It
// returns false when ctx ends or the dispatcher stops first.
func (d *Dispatcher) PostWait(ctx context.Context, fn func()) bool {
	select {
	case d.queue <- fn:
		return true
	case <-ctx.Done():
		return false
	case <-d.stop:
		return false
	}
}

// Run processes queued functions until ctx is cancelled or Stop is called. The
// goroutine is locked to its OS thread because native windows are thread bound.
func (d *Dispatcher) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var tick <-chan time.Time
	if d.Pump != nil {
		t := time.NewTicker(d.PumpInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return ctx.Err()
		case <-d.stop:
			return nil
		case fn := <-d.queue:
			fn()
			if d.Pump != nil {
				d.Pump()
			}
		case <-tick:
			d.Pump()
		}
	}
}

// Stop ends Run. Functions still queued are dropped.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
}
