// Package session ties one image set to one operation: scan it into
// candidates, let the caller edit the selection, then apply the selection
// on a background run.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/imagebatch/internal/ambiguous"
	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/darkness"
	"github.com/dbsmedya/imagebatch/internal/deletion"
	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/lock"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/populate"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// Kind names a batch operation.
type Kind string

const (
	KindDates    Kind = "dates"
	KindDark     Kind = "dark"
	KindGUID     Kind = "guid"
	KindEpisodes Kind = "episodes"
	KindDelete   Kind = "delete"
)

// Kinds lists every operation in display order.
var Kinds = []Kind{KindDates, KindDark, KindGUID, KindEpisodes, KindDelete}

var (
	// ErrNotScanned is returned by Apply before a successful Scan.
	ErrNotScanned = errors.New("image set has not been scanned")

	// ErrUnknownKind is returned by New for an unsupported operation.
	ErrUnknownKind = errors.New("unknown operation")

	// ErrNothingToDo is returned by Apply when the last Scan found no
	// candidates. No lock is taken and no run is started.
	ErrNothingToDo = errors.New("nothing to do")
)

// Store is the slice of the record store a session needs.
type Store interface {
	LoadRecords(ctx context.Context) ([]types.Record, error)
	EnsureColumn(ctx context.Context, name string) error
	CommitBatch(ctx context.Context, batch *types.Batch) (int, error)
}

// Options configure a session. Settings is copied; later changes by the
// caller do not affect the session.
type Options struct {
	ImageRoot string
	Settings  config.OperationSettings
	Progress  engine.ProgressOptions

	// Locker, when set, is held for the duration of each run.
	Locker      lock.Locker
	LockTimeout time.Duration

	// Classifier overrides the dark classifier built from Settings.Dark.
	Classifier darkness.Classifier

	// Cache holds decoded images for the life of the session, so applying
	// again after a cancelled dark run does not decode the same files.
	// Sessions over one image set may share it; deletions invalidate their
	// records. When nil a cache of CacheSize entries is created.
	Cache     *darkness.Cache
	CacheSize int
}

// Session scans and applies one operation against one store.
type Session struct {
	kind      Kind
	store     Store
	opts      Options
	runner    *engine.Runner
	applier   *engine.Applier
	cache     *darkness.Cache
	records   []types.Record
	ranges    []ambiguous.Range
	selection *engine.Selection
	logger    *logger.Logger
}

// New creates a session for kind.
func New(kind Kind, st Store, opts Options, log *logger.Logger) (*Session, error) {
	if st == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithOperation(string(kind))

	if opts.Classifier == nil {
		opts.Classifier = darkness.NewGreyClassifier(opts.Settings.Dark)
	}
	if opts.Cache == nil {
		if opts.CacheSize <= 0 {
			opts.CacheSize = darkness.DefaultCacheSize
		}
		opts.Cache = darkness.NewCache(opts.CacheSize)
	}

	return &Session{
		kind:    kind,
		store:   st,
		opts:    opts,
		runner:  engine.NewRunner(log),
		applier: engine.NewApplier(st, opts.Progress, log),
		cache:   opts.Cache,
		logger:  log,
	}, nil
}

// Valid reports whether k names a supported operation.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Kind returns the session's operation.
func (s *Session) Kind() Kind {
	return s.kind
}

// Scan loads the records and builds a fresh selection with nothing
// selected. It fails while a run is active.
func (s *Session) Scan(ctx context.Context) (*engine.Selection, error) {
	if s.runner.Active() {
		return nil, engine.ErrRunActive
	}

	records, err := s.store.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	b := s.builder()
	candidates, err := b.Build(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidates: %w", err)
	}
	if ab, ok := b.(*ambiguous.Builder); ok {
		s.ranges = ab.Ranges()
	}

	s.records = records
	s.selection = engine.NewSelection(candidates)
	s.logger.Infow("Scan complete", "records", len(records), "candidates", len(candidates))
	return s.selection, nil
}

// Selection returns the selection from the last Scan, or nil.
func (s *Session) Selection() *engine.Selection {
	return s.selection
}

// Records returns the records from the last Scan.
func (s *Session) Records() []types.Record {
	return s.records
}

// Apply starts a run over the current apply-set and returns its task. The
// selection is frozen until the run ends. A scan without candidates is a
// terminal state: Apply returns ErrNothingToDo.
func (s *Session) Apply(ctx context.Context, sink engine.Sink) (*engine.Task, error) {
	if s.selection == nil {
		return nil, ErrNotScanned
	}
	if s.runner.Active() {
		return nil, engine.ErrRunActive
	}
	if s.selection.Len() == 0 {
		return nil, ErrNothingToDo
	}

	applySet := s.selection.ApplySet()
	op := s.operation(applySet)

	if s.opts.Locker != nil {
		if err := s.opts.Locker.Acquire(ctx, s.opts.LockTimeout); err != nil {
			return nil, err
		}
	}
	s.selection.Freeze()

	sel := s.selection
	work := func(ctx context.Context, scope *engine.Scope, sink engine.Sink) engine.RunResult {
		scope.Defer(sel.Thaw)
		scope.Defer(s.releaseLock)
		return s.applier.Apply(ctx, sink, op, applySet)
	}

	task, err := s.runner.Start(ctx, sink, work)
	if err != nil {
		sel.Thaw()
		s.releaseLock()
		return nil, err
	}
	s.logger.WithRun(task.ID()).Infow("Run started", "items", len(applySet), "policy", op.Policy().String())
	return task, nil
}

// Active reports whether a run is in progress.
func (s *Session) Active() bool {
	return s.runner.Active()
}

func (s *Session) releaseLock() {
	if s.opts.Locker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.Locker.Release(ctx); err != nil {
		s.logger.Warnf("failed to release lock %s: %v", s.opts.Locker.Name(), err)
	}
}

func (s *Session) builder() engine.Builder {
	set := s.opts.Settings
	switch s.kind {
	case KindDark:
		return darkness.NewBuilder(set.Dark.Field)
	case KindGUID:
		return populate.NewGUIDBuilder(set.GUID.Field)
	case KindEpisodes:
		return populate.NewEpisodeBuilder(set.Episodes)
	case KindDelete:
		return deletion.NewBuilder()
	default:
		return ambiguous.NewBuilder()
	}
}

func (s *Session) operation(applySet []engine.Candidate) engine.Operation {
	set := s.opts.Settings
	switch s.kind {
	case KindDark:
		return darkness.NewOperation(set.Dark.Field, s.opts.ImageRoot, s.records, s.store,
			s.opts.Classifier, s.cache, s.logger)
	case KindGUID:
		return populate.NewGUIDOperation(set.GUID.Field, s.store)
	case KindEpisodes:
		return populate.NewEpisodeOperation(set.Episodes, s.records, s.store)
	case KindDelete:
		return deletion.NewOperation(s.opts.ImageRoot, set.Delete, s.records, s.cache, s.logger)
	default:
		return ambiguous.NewOperation(s.store, ambiguous.WithSelection(s.ranges, applySet), s.logger)
	}
}
