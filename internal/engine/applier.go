package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// ErrSkipped marks an item that needed no change. Skipped items count as
// succeeded.
var ErrSkipped = errors.New("skipped")

// Operation is the per-item half of a batch mutation.
type Operation interface {
	// Name identifies the operation in logs and results.
	Name() string

	// Policy decides what a cancelled run commits.
	Policy() Policy

	// Stage performs the item's side effects and stages its store
	// mutations into batch. A plain error fails only this item; an error
	// wrapped with Fatal fails the run. Returning the context's error means
	// the item was left untouched: it is not counted and the run stops as
	// cancelled.
	Stage(ctx context.Context, c Candidate, batch *types.Batch) error
}

// Preparer is implemented by operations that need to refresh state before
// the first item, e.g. reloading records.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Store is the persistence used by the second pass.
type Store interface {
	CommitBatch(ctx context.Context, batch *types.Batch) (int, error)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as systemic: the run stops and nothing is committed.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Applier runs the two passes of a batch mutation. Pass 1 visits every
// candidate of the apply-set, polling for cancellation before each one.
// Pass 2 writes everything staged in a single store commit.
type Applier struct {
	store    Store
	progress ProgressOptions
	logger   *logger.Logger
}

// NewApplier creates an applier committing to store.
func NewApplier(store Store, opts ProgressOptions, log *logger.Logger) *Applier {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Applier{
		store:    store,
		progress: opts,
		logger:   log,
	}
}

// Work adapts Apply to the runner.
func (a *Applier) Work(op Operation, applySet []Candidate) Work {
	return func(ctx context.Context, _ *Scope, sink Sink) RunResult {
		return a.Apply(ctx, sink, op, applySet)
	}
}

// Apply runs op over applySet and reports progress to sink. It always ends
// with a final {100, IsFinal} report.
func (a *Applier) Apply(ctx context.Context, sink Sink, op Operation, applySet []Candidate) (res RunResult) {
	startTime := time.Now()
	total := len(applySet)
	log := a.logger.WithOperation(op.Name())
	progress := NewProgress(sink, total, a.progress)

	res = RunResult{
		Operation: op.Name(),
		Policy:    op.Policy(),
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%s panicked: %v", op.Name(), r)
			res.Committed = false
			log.Errorf("Run panicked: %v", r)
		}
		res.Duration = time.Since(startTime)
		progress.Final(res.Message(total))
	}()

	if total == 0 {
		log.Info("Nothing selected; no changes made")
		return res
	}

	if p, ok := op.(Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			res.Err = fmt.Errorf("prepare %s: %w", op.Name(), err)
			log.Errorf("Prepare failed: %v", err)
			return res
		}
	}

	log.Infof("Applying %d items (policy %s)", total, op.Policy())
	batch := types.NewBatch()

items:
	for i, c := range applySet {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		res.ItemsAttempted++
		err := op.Stage(ctx, c, batch)
		switch {
		case err == nil:
			res.ItemsSucceeded++
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			res.ItemsAttempted--
			res.Cancelled = true
			break items
		case IsFatal(err):
			res.Err = fmt.Errorf("%s: %w", c.Label, err)
			log.Errorf("Run aborted on item %d: %v", c.ID, err)
			return res
		case errors.Is(err, ErrSkipped):
			res.ItemsSucceeded++
			res.Feedback = append(res.Feedback, feedback(c, FeedbackSkipped, err))
		default:
			res.ItemsFailed++
			res.Feedback = append(res.Feedback, feedback(c, FeedbackFailed, err))
			log.Warnw("Item failed", "candidate", c.ID, "label", c.Label, "error", err)
		}

		progress.Step(ctx, i+1, fmt.Sprintf("Processing %d of %d: %s", i+1, total, c.Label))
	}

	// a cancel landing after the last item still stops a discarding policy
	if !res.Cancelled && ctx.Err() != nil && !op.Policy().CommitOnCancel() {
		res.Cancelled = true
	}

	if res.Cancelled {
		log.Infof("Cancellation requested after %d of %d items", res.ItemsAttempted, total)
		if !op.Policy().CommitOnCancel() {
			log.Infof("Discarding %d staged mutations (policy %s)", batch.Len(), op.Policy())
			return res
		}
	}

	if batch.Empty() {
		return res
	}

	progress.Indeterminate("Updating database...")

	// The second pass is not cancellable.
	n, err := a.store.CommitBatch(context.WithoutCancel(ctx), batch)
	if err != nil {
		res.Err = fmt.Errorf("commit %s: %w", op.Name(), err)
		log.Errorf("Commit failed: %v", err)
		return res
	}
	res.MutationsCommitted = n
	res.Committed = true
	return res
}

func feedback(c Candidate, status string, err error) ItemFeedback {
	return ItemFeedback{
		CandidateID: c.ID,
		RecordIDs:   append([]int64(nil), c.RecordIDs...),
		Status:      status,
		Message:     err.Error(),
	}
}
