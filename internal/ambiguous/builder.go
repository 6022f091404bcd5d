package ambiguous

import (
	"context"

	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// Builder proposes one candidate per ambiguous range. A candidate's ID is
// its range's position plus one.
type Builder struct {
	ranges []Range
}

// NewBuilder returns an ambiguous-date builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build scans records. The preview value is the swapped date of the range's
// first record; the value written is recomputed when the swap is applied.
func (b *Builder) Build(ctx context.Context, records []types.Record) ([]engine.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranges := FindRanges(records)
	b.ranges = ranges
	candidates := make([]engine.Candidate, 0, len(ranges))
	for i, rg := range ranges {
		first := records[rg.StartIndex]
		swapped, _ := SwapDayMonth(first.Time)

		ids := make([]int64, 0, rg.Count)
		for j := rg.StartIndex; j <= rg.EndIndex; j++ {
			ids = append(ids, records[j].ID)
		}

		candidates = append(candidates, engine.Candidate{
			ID:        i + 1,
			RecordIDs: ids,
			Label:     first.DisplayPath(),
			Field:     types.ColumnDateTime,
			OldValue:  first.Time.Format(DatePortionLayout),
			NewValue:  swapped.Format(DatePortionLayout),
		})
	}
	return candidates, nil
}

// Ranges returns the ranges found by the last Build.
func (b *Builder) Ranges() []Range {
	return b.ranges
}

// WithSelection returns a copy of ranges with SwapDates set for every range
// whose candidate is in applySet.
func WithSelection(ranges []Range, applySet []engine.Candidate) []Range {
	chosen := make(map[int]bool, len(applySet))
	for _, c := range applySet {
		chosen[c.ID] = true
	}
	out := make([]Range, len(ranges))
	for i, rg := range ranges {
		rg.SwapDates = chosen[i+1]
		out[i] = rg
	}
	return out
}
