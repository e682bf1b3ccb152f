package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"

	"screen-region-select/src/config"
	"screen-region-select/src/coordinator"
	"screen-region-select/src/hotkey"
	"screen-region-select/src/notification"
	"screen-region-select/src/session"
	"screen-region-select/src/singleinstance"
	"screen-region-select/src/worker"
)

// Selector runs one blocking selection. session.Requester implements it.
type Selector interface {
	RequestSelection(ctx context.Context) (coordinator.Outcome, error)
}

// Loop is the single-threaded coordinator for hotkey, tray and delegated
// run-once requests. Selections run on the worker pool, one at a time.
type Loop struct {
	selector       Selector
	pool           *worker.Pool
	srv            singleinstance.Server
	busy           bool
	results        chan result
	triggers       chan struct{}
	stopped        chan struct{}
	defaultTooltip string

	// NewTarget returns where hotkey and tray selections are delivered.
	NewTarget func() session.ResultTarget
	// Tooltip shows the busy state and About the resident's port. Both are optional.
	Tooltip func(string)
	About   func(string)
	// Notify announces selections delivered to the clipboard. Nil disables it.
	Notify func(title, message string)
	Logger *log.Logger
}

type result struct {
	outcome coordinator.Outcome
	err     error
	target  resultTarget
	cancel  context.CancelFunc
}

type resultTarget interface {
	session.ResultTarget
	Close()
}

type localTarget struct{ session.ResultTarget }

func (localTarget) Close() {}

type delegatedResultTarget struct {
	session.DelegatedTarget
}

func newDelegatedResultTarget(conn singleinstance.Conn) delegatedResultTarget {
	return delegatedResultTarget{session.DelegatedTarget{Conn: conn, OutputToStdout: conn.Request().OutputToStdout}}
}

func (t delegatedResultTarget) Close() {
	if t.Conn != nil {
		_ = t.Conn.Close()
	}
}

// New creates a loop running selections through sel. Results of local requests
// go to the output mode configured in cfg.
func New(sel Selector, cfg *config.Config) *Loop {
	mode := config.OutputClipboard
	if cfg != nil && cfg.OutputMode != "" {
		mode = cfg.OutputMode
	}
	var notify func(string, string)
	if mode == config.OutputClipboard && (cfg == nil || cfg.NotifyOnCopy) {
		notify = notification.Show
	}
	return &Loop{
		selector:       sel,
		pool:           worker.New(1),
		results:        make(chan result, 1),
		triggers:       make(chan struct{}, 4),
		stopped:        make(chan struct{}),
		defaultTooltip: "Region Select",
		NewTarget:      func() session.ResultTarget { return session.NewTarget(mode, nil) },
		Notify:         notify,
		Logger:         log.Default(),
	}
}

// SetDefaultTooltip sets the tooltip shown while idle.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// Serve makes Run answer delegated run-once requests from srv.
func (l *Loop) Serve(srv singleinstance.Server) { l.srv = srv }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.Tooltip == nil {
		return
	}
	if b {
		l.Tooltip("Region Select: selecting...")
	} else {
		l.Tooltip(l.defaultTooltip)
	}
}

// Trigger requests a selection. It never blocks; extra triggers are dropped.
func (l *Loop) Trigger() bool {
	select {
	case l.triggers <- struct{}{}:
		return true
	default:
		return false
	}
}

// StartHotkey registers a global hotkey that triggers a selection.
func (l *Loop) StartHotkey(combo string) (func(), error) {
	if combo == "" {
		return func() {}, nil
	}
	return hotkey.Listen(combo, func() { l.Trigger() })
}

// Run processes requests until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()
	defer close(l.stopped)

	var reqCh chan singleinstance.Conn
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return err
		}
		defer l.srv.Close()
		if p := l.srv.Port(); p > 0 {
			l.Logger.Printf("Resident listening on 127.0.0.1:%d", p)
			if l.About != nil {
				l.About(fmt.Sprintf("Resident TCP port: %d", p))
			}
		}
		reqCh = make(chan singleinstance.Conn, 4)
		go l.accept(ctx, reqCh)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.triggers:
			l.handleTrigger(ctx)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) accept(ctx context.Context, reqCh chan<- singleinstance.Conn) {
	defer close(reqCh)
	for {
		conn, err := l.srv.Next(ctx)
		if err != nil {
			return
		}
		select {
		case reqCh <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (l *Loop) handleTrigger(ctx context.Context) {
	l.Logger.Printf("handleTrigger: selection requested")
	l.startRequest(ctx, localTarget{l.NewTarget()}, func() {
		l.Logger.Printf("handleTrigger: busy, skipping")
	})
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	target := newDelegatedResultTarget(conn)
	l.startRequest(ctx, target, func() {
		_ = target.OnFailure(errors.New("busy, please retry"))
		target.Close()
	})
}

func (l *Loop) startRequest(ctx context.Context, target resultTarget, onBusy func()) {
	if l.busy {
		onBusy()
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	l.setBusy(true)
	submitted := l.pool.Submit(jobCtx, l.selector.RequestSelection, func(outcome coordinator.Outcome, err error) {
		select {
		case l.results <- result{outcome: outcome, err: err, target: target, cancel: cancel}:
		case <-l.stopped:
			cancel()
			target.Close()
		}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		onBusy()
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()
	if res.target == nil {
		l.Logger.Printf("handleResult: missing target")
		return
	}
	defer res.target.Close()

	if res.err != nil {
		if errors.Is(res.err, session.ErrSelectionCancelled) {
			l.Logger.Printf("handleResult: selection cancelled")
		} else {
			l.Logger.Printf("handleResult: selection failed: %v", res.err)
		}
		_ = res.target.OnFailure(res.err)
		return
	}

	if err := session.Deliver(res.target, res.outcome); err != nil {
		l.Logger.Printf("handleResult: delivery error: %v", err)
		return
	}
	l.Logger.Printf("handleResult: delivered %s", res.outcome)
	if _, local := res.target.(localTarget); local && l.Notify != nil {
		l.Notify("Region copied", res.outcome.String())
	}
}
