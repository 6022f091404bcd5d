package populate

import (
	"context"

	"github.com/google/uuid"

	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// GUIDBuilder proposes a candidate for every record whose GUID field is
// blank.
type GUIDBuilder struct {
	field string
}

// NewGUIDBuilder creates a builder for the given field.
func NewGUIDBuilder(field string) *GUIDBuilder {
	return &GUIDBuilder{field: field}
}

func (b *GUIDBuilder) Build(ctx context.Context, records []types.Record) ([]engine.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var candidates []engine.Candidate
	for _, r := range records {
		if !isBlank(r, b.field) {
			continue
		}
		candidates = append(candidates, engine.Candidate{
			ID:        len(candidates) + 1,
			RecordIDs: []int64{r.ID},
			Label:     r.DisplayPath(),
			Field:     b.field,
			OldValue:  r.Field(b.field),
		})
	}
	return candidates, nil
}

// GUIDOperation writes a new random GUID into the field.
type GUIDOperation struct {
	field   string
	columns ColumnEnsurer
	newID   func() string
}

// NewGUIDOperation creates the GUID operation.
func NewGUIDOperation(field string, columns ColumnEnsurer) *GUIDOperation {
	return &GUIDOperation{
		field:   field,
		columns: columns,
		newID:   uuid.NewString,
	}
}

func (o *GUIDOperation) Name() string { return "guid" }

func (o *GUIDOperation) Policy() engine.Policy { return engine.DiscardOnCancel }

func (o *GUIDOperation) Prepare(ctx context.Context) error {
	return ensureField(ctx, o.columns, o.field)
}

func (o *GUIDOperation) Stage(ctx context.Context, c engine.Candidate, batch *types.Batch) error {
	for _, id := range c.RecordIDs {
		batch.Update(id, o.field, o.newID())
	}
	return nil
}
