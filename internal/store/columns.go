package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/imagebatch/internal/sqlutil"
)

// Columns lists the columns of the file table in declaration order.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	if s.driver == DriverMySQL {
		return s.mysqlColumns(ctx)
	}
	return s.sqliteColumns(ctx)
}

func (s *Store) sqliteColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(`+s.quotedTable()+`)`)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *Store) mysqlColumns(ctx context.Context) ([]string, error) {
	query := `
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := s.db.QueryContext(ctx, query, s.table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// HasColumn reports whether the file table has the named column
// (case-insensitive).
func (s *Store) HasColumn(ctx context.Context, name string) (bool, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if strings.EqualFold(c, name) {
			return true, nil
		}
	}
	return false, nil
}

// EnsureColumn adds a TEXT column to the file table if it is missing.
func (s *Store) EnsureColumn(ctx context.Context, name string) error {
	quoted, err := sqlutil.QuoteIdentifierSafe(name)
	if err != nil {
		return err
	}

	exists, err := s.HasColumn(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ddl := `ALTER TABLE ` + s.quotedTable() + ` ADD COLUMN ` + quoted + ` TEXT`
	if s.driver != DriverMySQL {
		ddl += ` NOT NULL DEFAULT ''`
	}
	if err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, ddl)
		return err
	}); err != nil {
		return fmt.Errorf("add column %s: %w", name, err)
	}

	s.logger.Infof("Added column %q to %q", name, s.table)
	return nil
}
