package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"screen-region-select/src/coordinator"
	"screen-region-select/src/geometry"
	"screen-region-select/src/monitor"
	"screen-region-select/src/selector"
	"screen-region-select/src/singleinstance"
	"screen-region-select/src/surface"
)

type inlineEvents struct{}

func (inlineEvents) Post(fn func()) bool {
	fn()
	return true
}

func (inlineEvents) Call(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

type staticEnumerator struct {
	monitors []monitor.Monitor
	err      error
}

func (e staticEnumerator) Enumerate() ([]monitor.Monitor, error) { return e.monitors, e.err }

type scriptedInput struct {
	drive   func(op *coordinator.Operation)
	op      *coordinator.Operation
	stopped int
}

func (s *scriptedInput) Start(op *coordinator.Operation) error {
	s.op = op
	if s.drive != nil {
		s.drive(op)
	}
	return nil
}

func (s *scriptedInput) Stop() { s.stopped++ }

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func newRequester(input InputSource) *Requester {
	m := monitor.New(1, geometry.NewRect(0, 0, 1920, 1080), geometry.NewRect(0, 0, 1920, 1040), 96, true)
	c := coordinator.New(surface.NewHeadless(discard()))
	c.Logger = discard()
	return &Requester{
		Enumerator:  staticEnumerator{monitors: []monitor.Monitor{m}},
		Coordinator: c,
		Events:      inlineEvents{},
		Input:       input,
		Logger:      discard(),
	}
}

func drag(op *coordinator.Operation) {
	ov := op.Overlays()[0]
	ov.PointerDown(selector.Primary, geometry.Point{X: 10, Y: 10})
	ov.PointerMove(selector.MoveEvent{Point: geometry.Point{X: 109, Y: 59}, PrimaryHeld: true})
	ov.PointerUp(selector.Primary)
}

func TestRequestSelectionAccepts(t *testing.T) {
	input := &scriptedInput{drive: drag}
	r := newRequester(input)

	o, err := r.RequestSelection(context.Background())
	if err != nil {
		t.Fatalf("RequestSelection() error = %v", err)
	}
	if o.Rect != geometry.NewRect(10, 10, 100, 50) {
		t.Errorf("rect = %v, want 10,10,100,50", o.Rect)
	}
	if input.stopped != 1 {
		t.Errorf("input stopped %d times, want 1", input.stopped)
	}
}

func TestRequestSelectionCancelled(t *testing.T) {
	r := newRequester(&scriptedInput{drive: func(op *coordinator.Operation) { _ = op.Abort() }})

	o, err := r.RequestSelection(context.Background())
	if !errors.Is(err, ErrSelectionCancelled) {
		t.Fatalf("err = %v, want ErrSelectionCancelled", err)
	}
	if !o.Aborted {
		t.Errorf("outcome = %v, want aborted", o)
	}
}

func TestRequestSelectionContextAborts(t *testing.T) {
	input := &scriptedInput{}
	r := newRequester(input)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.RequestSelection(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	o, ok := input.op.Outcome()
	if !ok || !o.Aborted {
		t.Errorf("operation outcome = %v, %v; want aborted", o, ok)
	}
}

func TestRequestSelectionEnumerateError(t *testing.T) {
	r := newRequester(nil)
	r.Enumerator = staticEnumerator{err: errors.New("no displays")}
	if _, err := r.RequestSelection(context.Background()); err == nil {
		t.Fatal("expected an enumeration error")
	}
}

type recordingTarget struct {
	success    []string
	failures   []error
	successErr error
}

func (t *recordingTarget) OnSuccess(text string) error {
	t.success = append(t.success, text)
	return t.successErr
}

func (t *recordingTarget) OnFailure(err error) error {
	t.failures = append(t.failures, err)
	return nil
}

func TestExecute(t *testing.T) {
	accepted := coordinator.Outcome{Rect: geometry.NewRect(1, 2, 30, 40)}
	tests := []struct {
		name         string
		outcome      coordinator.Outcome
		selectErr    error
		successErr   error
		wantErr      error
		wantSuccess  int
		wantFailures int
	}{
		{"accepted", accepted, nil, nil, nil, 1, 0},
		{"aborted", coordinator.Outcome{Aborted: true}, nil, nil, ErrSelectionCancelled, 0, 1},
		{"select error", coordinator.Outcome{}, ErrSelectionCancelled, nil, ErrSelectionCancelled, 0, 1},
		{"delivery error", accepted, nil, errors.New("clipboard busy"), nil, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{successErr: tt.successErr}
			_, err := Execute(context.Background(), Options{
				Select: func(context.Context) (coordinator.Outcome, error) { return tt.outcome, tt.selectErr },
				Target: target,
			})
			switch {
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			case tt.successErr != nil && err != tt.successErr:
				t.Errorf("err = %v, want %v", err, tt.successErr)
			case tt.wantErr == nil && tt.successErr == nil && err != nil:
				t.Errorf("unexpected err %v", err)
			}
			if len(target.success) != tt.wantSuccess || len(target.failures) != tt.wantFailures {
				t.Errorf("success=%v failures=%v", target.success, target.failures)
			}
			if tt.wantSuccess == 1 && target.success[0] != "1,2,30,40" {
				t.Errorf("delivered %q", target.success[0])
			}
		})
	}
}

func TestExecuteRequiresOptions(t *testing.T) {
	if _, err := Execute(context.Background(), Options{Target: &recordingTarget{}}); err == nil {
		t.Error("missing Select should fail")
	}
	sel := func(context.Context) (coordinator.Outcome, error) { return coordinator.Outcome{}, nil }
	if _, err := Execute(context.Background(), Options{Select: sel}); err == nil {
		t.Error("missing Target should fail")
	}
}

func TestStdoutTarget(t *testing.T) {
	var buf bytes.Buffer
	target := NewTarget("stdout", &buf)
	if _, ok := target.(StdoutTarget); !ok {
		t.Fatalf("NewTarget(stdout) = %T", target)
	}
	if err := target.OnSuccess("5,6,70,80"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "5,6,70,80\n" {
		t.Errorf("wrote %q", buf.String())
	}
	if _, ok := NewTarget("clipboard", nil).(ClipboardTarget); !ok {
		t.Error("clipboard mode should map to ClipboardTarget")
	}
}

type fakeConn struct {
	success []string
	errors  []string
}

func (c *fakeConn) Request() singleinstance.Request { return singleinstance.Request{OutputToStdout: true} }

func (c *fakeConn) RespondSuccess(text string) error {
	c.success = append(c.success, text)
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.errors = append(c.errors, msg)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func TestDelegatedTargetStdout(t *testing.T) {
	conn := &fakeConn{}
	target := DelegatedTarget{Conn: conn, OutputToStdout: true}
	if err := Deliver(target, coordinator.Outcome{Rect: geometry.NewRect(0, 0, 40, 40)}); err != nil {
		t.Fatal(err)
	}
	if err := Deliver(target, coordinator.Outcome{Aborted: true}); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("err = %v", err)
	}
	if len(conn.success) != 1 || conn.success[0] != "0,0,40,40" {
		t.Errorf("success = %v", conn.success)
	}
	if len(conn.errors) != 1 || conn.errors[0] != ErrSelectionCancelled.Error() {
		t.Errorf("errors = %v", conn.errors)
	}
}

func TestDelegatedTargetWithoutConn(t *testing.T) {
	if err := (DelegatedTarget{}).OnSuccess("x"); err == nil {
		t.Error("expected an error without a connection")
	}
}
