package ambiguous

import (
	"context"
	"fmt"

	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// Loader supplies the current records.
type Loader interface {
	LoadRecords(ctx context.Context) ([]types.Record, error)
}

// Operation swaps day and month for every record of a range marked with
// SwapDates. A cancelled run commits nothing.
type Operation struct {
	loader  Loader
	ranges  []Range
	records map[int64]types.Record
	logger  *logger.Logger
}

// NewOperation creates the swap operation. ranges are indexed by candidate
// ID minus one, as produced by Builder and marked by WithSelection.
func NewOperation(loader Loader, ranges []Range, log *logger.Logger) *Operation {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Operation{
		loader: loader,
		ranges: ranges,
		logger: log,
	}
}

func (o *Operation) Name() string { return "dates" }

func (o *Operation) Policy() engine.Policy { return engine.AbortNoCommit }

// Prepare reloads the records so swaps are computed from current values.
func (o *Operation) Prepare(ctx context.Context) error {
	records, err := o.loader.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("reload records: %w", err)
	}
	o.records = make(map[int64]types.Record, len(records))
	for _, r := range records {
		o.records[r.ID] = r
	}
	return nil
}

// Stage swaps every record of the candidate's range. Records whose current date can no
// longer be swapped are left alone; a record that has disappeared fails the
// whole range.
func (o *Operation) Stage(ctx context.Context, c engine.Candidate, batch *types.Batch) error {
	if o.records == nil {
		return engine.Fatal(fmt.Errorf("records not loaded"))
	}
	if c.ID < 1 || c.ID > len(o.ranges) {
		return fmt.Errorf("candidate %d has no date range", c.ID)
	}
	if !o.ranges[c.ID-1].SwapDates {
		return fmt.Errorf("%w: range %d is not marked for swapping", engine.ErrSkipped, c.ID)
	}

	current := make([]types.Record, 0, len(c.RecordIDs))
	for _, id := range c.RecordIDs {
		r, ok := o.records[id]
		if !ok {
			return fmt.Errorf("record %d no longer exists", id)
		}
		current = append(current, r)
	}

	staged := 0
	for _, r := range current {
		if !r.DateValid {
			continue
		}
		swapped, ok := SwapDayMonth(r.Time)
		if !ok {
			o.logger.WithRecord(r.ID).Debugf("Date %s is no longer ambiguous; skipping", r.DateTime)
			continue
		}
		batch.Update(r.ID, types.ColumnDateTime, types.FormatDateTime(swapped))
		staged++
	}

	if staged == 0 {
		return fmt.Errorf("%w: no record in range can be swapped", engine.ErrSkipped)
	}
	return nil
}
