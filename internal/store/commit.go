package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/imagebatch/internal/sqlutil"
	"github.com/dbsmedya/imagebatch/internal/types"
)

// CommitBatch writes every staged update and deletion in one transaction and
// returns the number of mutations committed. Nothing is written when the
// transaction fails. A requested vacuum runs after the commit; its failure is
// logged and does not undo the commit.
func (s *Store) CommitBatch(ctx context.Context, batch *types.Batch) (int, error) {
	if batch == nil || batch.Empty() {
		return 0, nil
	}

	startTime := time.Now()
	updates := batch.Updates()
	deletes := batch.Deletes()

	err := retryOnBusy(ctx, func() error {
		return s.commit(ctx, updates, deletes)
	})
	if err != nil {
		return 0, err
	}

	committed := batch.Len()
	s.logger.Infof("Committed %d mutations (%d updated records, %d deleted records) in %s",
		committed, len(updates), len(deletes), time.Since(startTime))

	if batch.Vacuum {
		if err := s.Vacuum(ctx); err != nil {
			s.logger.Warnf("Vacuum after commit failed: %v", err)
		}
	}

	return committed, nil
}

func (s *Store) commit(ctx context.Context, updates []types.RecordUpdate, deletes []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Errorf("Failed to rollback transaction: %v", rbErr)
			}
		}
	}()

	for _, u := range updates {
		if err := s.updateRecord(ctx, tx, u); err != nil {
			return err
		}
	}

	for start := 0; start < len(deletes); start += s.batchDeleteSize {
		end := start + s.batchDeleteSize
		if end > len(deletes) {
			end = len(deletes)
		}
		if err := s.deleteRecords(ctx, tx, deletes[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

func (s *Store) updateRecord(ctx context.Context, tx *sql.Tx, u types.RecordUpdate) error {
	if len(u.Columns) == 0 {
		return nil
	}

	sets := make([]string, len(u.Columns))
	args := make([]interface{}, 0, len(u.Columns)+1)
	for i, c := range u.Columns {
		quoted, err := sqlutil.QuoteIdentifierSafe(c.Column)
		if err != nil {
			return err
		}
		sets[i] = quoted + " = ?"
		args = append(args, c.Value)
	}
	args = append(args, u.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		s.quotedTable(), strings.Join(sets, ", "), sqlutil.QuoteIdentifier(types.ColumnID))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update record %d: %w", u.ID, err)
	}
	return nil
}

func (s *Store) deleteRecords(ctx context.Context, tx *sql.Tx, ids []int64) error {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		s.quotedTable(), sqlutil.QuoteIdentifier(types.ColumnID), sqlutil.Placeholders(len(ids)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %d records: %w", len(ids), err)
	}
	return nil
}

// Vacuum reclaims space after rows were deleted.
func (s *Store) Vacuum(ctx context.Context) error {
	stmt := "VACUUM"
	if s.driver == DriverMySQL {
		stmt = "OPTIMIZE TABLE " + s.quotedTable()
	}
	if err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, stmt)
		return err
	}); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	s.logger.Debugf("Vacuumed %s store", s.driver)
	return nil
}
