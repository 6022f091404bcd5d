package populate

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// FindEpisodes groups consecutive records whose neighbouring timestamps are
// at most threshold apart. Records with unparsable dates are singletons.
// Each group holds record indices in order.
func FindEpisodes(records []types.Record, threshold time.Duration) [][]int {
	var episodes [][]int
	for i, r := range records {
		if i > 0 {
			prev := records[i-1]
			if prev.DateValid && r.DateValid && absDuration(r.Time.Sub(prev.Time)) <= threshold {
				last := len(episodes) - 1
				episodes[last] = append(episodes[last], i)
				continue
			}
		}
		episodes = append(episodes, []int{i})
	}
	return episodes
}

// FormatEpisode renders one record's value. Singletons are episodes of one.
func FormatEpisode(s config.EpisodeSettings, episode, seq, count int) string {
	switch {
	case s.IncludeEpisodeID && s.IncludeSequence:
		return fmt.Sprintf("%d:%d|%d", episode, seq, count)
	case s.IncludeEpisodeID:
		return fmt.Sprintf("%d", episode)
	default:
		return fmt.Sprintf("%d|%d", seq, count)
	}
}

// EpisodeBuilder proposes one candidate per episode. The candidate ID is
// the episode number.
type EpisodeBuilder struct {
	settings config.EpisodeSettings
}

// NewEpisodeBuilder creates an episode builder.
func NewEpisodeBuilder(s config.EpisodeSettings) *EpisodeBuilder {
	return &EpisodeBuilder{settings: s}
}

func (b *EpisodeBuilder) Build(ctx context.Context, records []types.Record) ([]engine.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	episodes := FindEpisodes(records, b.settings.Threshold())
	candidates := make([]engine.Candidate, 0, len(episodes))
	for n, idx := range episodes {
		first := records[idx[0]]
		ids := make([]int64, len(idx))
		for i, j := range idx {
			ids[i] = records[j].ID
		}
		candidates = append(candidates, engine.Candidate{
			ID:        n + 1,
			RecordIDs: ids,
			Label:     first.DisplayPath(),
			Field:     b.settings.Field,
			OldValue:  first.Field(b.settings.Field),
			NewValue:  FormatEpisode(b.settings, n+1, 1, len(idx)),
		})
	}
	return candidates, nil
}

// EpisodeOperation writes episode values for every record of a selected
// episode, skipping records that already hold the right value.
type EpisodeOperation struct {
	settings config.EpisodeSettings
	records  map[int64]types.Record
	columns  ColumnEnsurer
}

// NewEpisodeOperation creates the episode operation. records supplies the
// current field values.
func NewEpisodeOperation(s config.EpisodeSettings, records []types.Record, columns ColumnEnsurer) *EpisodeOperation {
	return &EpisodeOperation{
		settings: s,
		records:  indexByID(records),
		columns:  columns,
	}
}

func (o *EpisodeOperation) Name() string { return "episodes" }

func (o *EpisodeOperation) Policy() engine.Policy { return engine.DiscardOnCancel }

func (o *EpisodeOperation) Prepare(ctx context.Context) error {
	return ensureField(ctx, o.columns, o.settings.Field)
}

func (o *EpisodeOperation) Stage(ctx context.Context, c engine.Candidate, batch *types.Batch) error {
	count := len(c.RecordIDs)
	for i, id := range c.RecordIDs {
		value := FormatEpisode(o.settings, c.ID, i+1, count)
		if r, ok := o.records[id]; ok && r.Field(o.settings.Field) == value {
			continue
		}
		batch.Update(id, o.settings.Field, value)
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
