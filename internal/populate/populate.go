// Package populate fills a data field of every selected record with
// generated values: fresh GUIDs or episode/sequence numbers.
package populate

import (
	"context"
	"strings"

	"github.com/dbsmedya/imagebatch/internal/types"
)

// ColumnEnsurer adds a missing column to the file table.
type ColumnEnsurer interface {
	EnsureColumn(ctx context.Context, name string) error
}

func ensureField(ctx context.Context, columns ColumnEnsurer, field string) error {
	if columns == nil {
		return nil
	}
	return columns.EnsureColumn(ctx, field)
}

func isBlank(r types.Record, field string) bool {
	return strings.TrimSpace(r.Field(field)) == ""
}

func indexByID(records []types.Record) map[int64]types.Record {
	m := make(map[int64]types.Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}
