// Package deletion removes the files and rows of records flagged for
// deletion.
package deletion

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/fsops"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// Invalidator drops any cached state for a record.
type Invalidator interface {
	Invalidate(id int64)
}

// Builder proposes one candidate per record whose delete flag is set.
type Builder struct{}

// NewBuilder creates a deletion builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Build(ctx context.Context, records []types.Record) ([]engine.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var candidates []engine.Candidate
	for _, r := range records {
		if !r.DeleteFlag {
			continue
		}
		candidates = append(candidates, engine.Candidate{
			ID:        len(candidates) + 1,
			RecordIDs: []int64{r.ID},
			Label:     r.DisplayPath(),
			Field:     types.ColumnDeleteFlag,
			OldValue:  types.FlagTrue,
			NewValue:  "deleted",
		})
	}
	return candidates, nil
}

// Operation moves files out of the image tree and stages the matching row
// changes. Moved files cannot be put back, so a cancelled run still commits
// the rows of the files it already handled.
type Operation struct {
	root     string
	settings config.DeleteSettings
	records  map[int64]types.Record
	cache    Invalidator
	logger   *logger.Logger
}

// NewOperation creates the deletion operation. cache may be nil.
func NewOperation(root string, settings config.DeleteSettings, records []types.Record,
	cache Invalidator, log *logger.Logger) *Operation {
	if log == nil {
		log = logger.NewDefault()
	}
	byID := make(map[int64]types.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	return &Operation{
		root:     root,
		settings: settings,
		records:  byID,
		cache:    cache,
		logger:   log,
	}
}

func (o *Operation) Name() string { return "delete" }

func (o *Operation) Policy() engine.Policy { return engine.CommitWhatRan }

// Stage deletes the files of one candidate. A file that is already gone
// fails the item but its row change is still staged. Any other file error
// leaves the row untouched. A cancel seen before the first record returns
// the context's error; one seen later stops the candidate part way.
func (o *Operation) Stage(ctx context.Context, c engine.Candidate, batch *types.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error
	for i, id := range c.RecordIDs {
		if i > 0 && ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("cancelled before record %d", id))
			break
		}
		r, ok := o.records[id]
		if !ok {
			errs = append(errs, fmt.Errorf("record %d is unknown", id))
			continue
		}

		if o.settings.DeleteFiles {
			err := fsops.MoveToBackup(o.root, r.RelativePath, r.File, o.settings.BackupFiles)
			switch {
			case errors.Is(err, fsops.ErrFileMissing):
				o.logger.WithRecord(id).Warnf("file already missing: %v", err)
				errs = append(errs, err)
			case err != nil:
				errs = append(errs, err)
				continue
			}
		}

		if o.cache != nil {
			o.cache.Invalidate(id)
		}
		o.stage(batch, id)
	}
	return errors.Join(errs...)
}

func (o *Operation) stage(batch *types.Batch, id int64) {
	if o.settings.DeleteData {
		batch.Delete(id)
		batch.Vacuum = true
		return
	}
	batch.Update(id, types.ColumnDeleteFlag, types.FlagFalse)
}
