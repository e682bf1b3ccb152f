package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"screen-region-select/src/clipboard"
	"screen-region-select/src/coordinator"
	"screen-region-select/src/monitor"
	"screen-region-select/src/singleinstance"
)

var ErrSelectionCancelled = errors.New("selection cancelled")

// SelectFunc runs one selection and blocks until it resolves.
type SelectFunc func(ctx context.Context) (coordinator.Outcome, error)

type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

// Events runs work on the event goroutine.
type Events interface {
	Post(fn func()) bool
	Call(ctx context.Context, fn func()) error
}

// InputSource feeds pointer and keyboard input into a running operation. It is
// not needed when the surfaces receive their own input.
type InputSource interface {
	Start(op *coordinator.Operation) error
	Stop()
}

// Requester starts selection operations from any goroutine.
type Requester struct {
	Enumerator  monitor.Enumerator
	Coordinator *coordinator.Coordinator
	Events      Events
	Input       InputSource
	Logger      *log.Logger
}

func (r *Requester) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// RequestSelection enumerates the displays, opens the overlays on the event
// goroutine and waits for the outcome. An abort is reported as
// ErrSelectionCancelled. When ctx ends first the operation is aborted and
// ctx.Err() is returned.
func (r *Requester) RequestSelection(ctx context.Context) (coordinator.Outcome, error) {
	if r.Enumerator == nil || r.Coordinator == nil || r.Events == nil {
		return coordinator.Outcome{}, errors.New("session: enumerator, coordinator and events are required")
	}

	monitors, err := r.Enumerator.Enumerate()
	if err != nil {
		return coordinator.Outcome{}, fmt.Errorf("failed to enumerate displays: %w", err)
	}
	granular := monitor.GranularCopy(monitors, false)
	for _, m := range granular {
		r.logger().Printf("session: %s", m)
	}

	var (
		op       *coordinator.Operation
		beginErr error
	)
	if err := r.Events.Call(ctx, func() { op, beginErr = r.Coordinator.Begin(granular) }); err != nil {
		return coordinator.Outcome{}, err
	}
	if beginErr != nil {
		return coordinator.Outcome{}, fmt.Errorf("failed to open overlays: %w", beginErr)
	}

	if r.Input != nil {
		if err := r.Input.Start(op); err != nil {
			r.abort(op)
			return coordinator.Outcome{}, fmt.Errorf("failed to start input: %w", err)
		}
		defer r.Input.Stop()
	}

	outcome, err := op.Wait(ctx)
	if err != nil {
		r.abort(op)
		return coordinator.Outcome{}, err
	}
	if outcome.Aborted {
		return outcome, ErrSelectionCancelled
	}
	return outcome, nil
}

func (r *Requester) abort(op *coordinator.Operation) {
	if !r.Events.Post(func() { _ = op.Abort() }) {
		r.logger().Printf("session: could not post abort, event loop is gone")
	}
}

type Options struct {
	Select SelectFunc
	Target ResultTarget
}

// Execute performs one selection and hands the accepted rectangle to the target.
func Execute(ctx context.Context, opts Options) (coordinator.Outcome, error) {
	if opts.Select == nil {
		return coordinator.Outcome{}, errors.New("Select is required")
	}
	if opts.Target == nil {
		return coordinator.Outcome{}, errors.New("Target is required")
	}

	outcome, err := opts.Select(ctx)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return outcome, err
	}
	if err := Deliver(opts.Target, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Deliver writes an accepted outcome to target, reporting delivery errors back to it.
func Deliver(target ResultTarget, outcome coordinator.Outcome) error {
	if outcome.Aborted {
		_ = target.OnFailure(ErrSelectionCancelled)
		return ErrSelectionCancelled
	}
	if err := target.OnSuccess(outcome.String()); err != nil {
		_ = target.OnFailure(err)
		return err
	}
	return nil
}

type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(text string) error {
	return clipboard.Write(text)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(text string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a run-once client that handed its request to this
// resident. In clipboard mode the resident writes the clipboard itself.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
}

func (t DelegatedTarget) OnSuccess(text string) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(text)
	}
	if err := clipboard.Write(text); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}

// NewTarget maps an OUTPUT_MODE value to its target.
func NewTarget(mode string, stdout io.Writer) ResultTarget {
	if mode == "stdout" {
		return StdoutTarget{Writer: stdout}
	}
	return ClipboardTarget{}
}
