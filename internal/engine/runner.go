package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/imagebatch/internal/logger"
)

// ErrRunActive is returned by Start while another run is still active.
var ErrRunActive = errors.New("a run is already active")

// Work is the body of a run. It executes on the run's goroutine and should
// poll ctx for cancellation between items.
type Work func(ctx context.Context, scope *Scope, sink Sink) RunResult

// Scope collects resources acquired during a run. They are released in
// reverse order when the run ends, including when the work panics.
type Scope struct {
	mu  sync.Mutex
	fns []func()
}

// Defer registers fn to run when the scope is released.
func (s *Scope) Defer(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

// Track closes c when the scope is released.
func (s *Scope) Track(c io.Closer) {
	if c == nil {
		return
	}
	s.Defer(func() { _ = c.Close() })
}

// release runs every registered function in LIFO order. A panicking
// release function does not stop the others.
func (s *Scope) release(log *logger.Logger) {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Resource release panicked: %v", r)
				}
			}()
			fns[i]()
		}()
	}
}

// Task is a handle on a started run.
type Task struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	result RunResult
}

// ID returns the run id.
func (t *Task) ID() string {
	return t.id
}

// Done is closed once the run has finished and its resources are released.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run finishes and returns its result.
func (t *Task) Wait() RunResult {
	<-t.done
	return t.result
}

// Result returns the result if the run has finished.
func (t *Task) Result() (RunResult, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return RunResult{}, false
	}
}

// Cancel requests cooperative cancellation. It is idempotent and cannot be
// undone.
func (t *Task) Cancel() {
	t.cancel()
}

// Runner hosts at most one run at a time on a background goroutine.
type Runner struct {
	mu     sync.Mutex
	active *Task
	logger *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Runner{logger: log}
}

// Active reports whether a run is in progress.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start launches work on its own goroutine. The run's context derives from
// parent, so cancelling parent also cancels the run.
func (r *Runner) Start(parent context.Context, sink Sink, work Work) (*Task, error) {
	if work == nil {
		return nil, fmt.Errorf("work is nil")
	}
	if sink == nil {
		sink = nopSink{}
	}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return nil, ErrRunActive
	}
	ctx, cancel := context.WithCancel(parent)
	task := &Task{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = task
	r.mu.Unlock()

	log := r.logger.WithRun(task.id)
	log.Debug("Run started")

	go func() {
		start := time.Now()
		scope := &Scope{}

		result := r.execute(ctx, scope, sink, work, log)
		scope.release(log)
		cancel()

		result.RunID = task.id
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		task.result = result

		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()

		log.Debugw("Run finished", "outcome", string(result.Outcome()), "duration", result.Duration)
		close(task.done)
	}()

	return task, nil
}

func (r *Runner) execute(ctx context.Context, scope *Scope, sink Sink, work Work, log *logger.Logger) (result RunResult) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Run panicked: %v", p)
			result.Err = fmt.Errorf("run panicked: %v", p)
			result.Committed = false
		}
	}()
	return work(ctx, scope, sink)
}
