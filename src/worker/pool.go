package worker

import (
	"context"
	"log"
	"runtime"
	"sync"

	"screen-region-select/src/coordinator"
)

// Job runs one selection request to completion. It blocks until the operation
// resolves, so it must never run on the event goroutine.
type Job func(ctx context.Context) (coordinator.Outcome, error)

// ResultCallback is invoked on job completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(outcome coordinator.Outcome, err error)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx context.Context
	run Job
	cb  ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				outcome, err := runJob(j)
				log.Printf("Worker: selection finished, outcome=%s, err=%v", outcome, err)
				j.cb(outcome, err)
			}
		}()
	}
}

func runJob(j job) (coordinator.Outcome, error) {
	if err := j.ctx.Err(); err != nil {
		return coordinator.Outcome{}, err
	}
	return j.run(j.ctx)
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, run Job, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, run: run, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
