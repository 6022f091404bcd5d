package darkness

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// ColumnEnsurer adds a missing column to the file table.
type ColumnEnsurer interface {
	EnsureColumn(ctx context.Context, name string) error
}

// Builder proposes one candidate per record. The new value is only known
// once the image has been classified.
type Builder struct {
	field string
}

// NewBuilder creates a builder for the given dark field.
func NewBuilder(field string) *Builder {
	return &Builder{field: field}
}

// Build lists every record with its current classification.
func (b *Builder) Build(ctx context.Context, records []types.Record) ([]engine.Candidate, error) {
	candidates := make([]engine.Candidate, 0, len(records))
	for i, r := range records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, engine.Candidate{
			ID:        i + 1,
			RecordIDs: []int64{r.ID},
			Label:     r.DisplayPath(),
			Field:     b.field,
			OldValue:  normalizeFlag(r.Field(b.field)),
		})
	}
	return candidates, nil
}

// Target locates a record's file.
type Target struct {
	Path    string
	IsVideo bool
}

// Operation classifies each selected image and stages the dark field when
// the classification changed. Cancelled runs commit nothing.
type Operation struct {
	field      string
	targets    map[int64]Target
	columns    ColumnEnsurer
	classifier Classifier
	cache      *Cache
	logger     *logger.Logger
}

// NewOperation creates the dark classification operation. records supplies
// file locations; cache may be nil.
func NewOperation(field, root string, records []types.Record, columns ColumnEnsurer,
	classifier Classifier, cache *Cache, log *logger.Logger) *Operation {
	if log == nil {
		log = logger.NewDefault()
	}
	targets := make(map[int64]Target, len(records))
	for _, r := range records {
		targets[r.ID] = Target{Path: r.Path(root), IsVideo: r.IsVideo()}
	}
	return &Operation{
		field:      field,
		targets:    targets,
		columns:    columns,
		classifier: classifier,
		cache:      cache,
		logger:     log,
	}
}

func (o *Operation) Name() string { return "dark" }

func (o *Operation) Policy() engine.Policy { return engine.DiscardOnCancel }

// Prepare makes sure the dark field exists.
func (o *Operation) Prepare(ctx context.Context) error {
	if o.columns == nil {
		return nil
	}
	return o.columns.EnsureColumn(ctx, o.field)
}

// Stage classifies one image. An unreadable image is classified as not
// dark and reported as a failed item.
func (o *Operation) Stage(ctx context.Context, c engine.Candidate, batch *types.Batch) error {
	if len(c.RecordIDs) == 0 {
		return fmt.Errorf("candidate %d has no record", c.ID)
	}
	id := c.RecordIDs[0]
	target, ok := o.targets[id]
	if !ok {
		return fmt.Errorf("record %d is unknown", id)
	}

	if target.IsVideo {
		o.stage(batch, id, c.OldValue, false)
		return nil
	}

	dark, err := o.classify(ctx, id, target.Path)
	if err != nil {
		o.stage(batch, id, c.OldValue, false)
		return err
	}
	o.stage(batch, id, c.OldValue, dark)
	return nil
}

func (o *Operation) classify(ctx context.Context, id int64, path string) (bool, error) {
	if o.cache != nil {
		if img, ok := o.cache.Get(id); ok {
			return o.classifier.ClassifyImage(img).Dark, nil
		}
	}

	img, err := Decode(ctx, path)
	if err != nil {
		return false, err
	}
	if o.cache != nil {
		o.cache.Put(id, img)
	}

	cls := o.classifier.ClassifyImage(img)
	o.logger.WithRecord(id).Debugw("Classified image", "dark", cls.Dark, "color", cls.IsColor, "fraction", cls.DarkFraction)
	return cls.Dark, nil
}

func (o *Operation) stage(batch *types.Batch, id int64, old string, dark bool) {
	value := types.FlagFalse
	if dark {
		value = types.FlagTrue
	}
	if value != old {
		batch.Update(id, o.field, value)
	}
}

func normalizeFlag(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return types.FlagTrue
	case "false", "0":
		return types.FlagFalse
	}
	return ""
}
