package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/imagebatch/internal/types"
)

// EnsureSchema creates the file table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case DriverMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS ` + s.quotedTable() + ` (
            id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
            relative_path TEXT NOT NULL,
            file TEXT NOT NULL,
            date_time VARCHAR(32) NOT NULL DEFAULT '',
            delete_flag VARCHAR(8) NOT NULL DEFAULT 'false'
        )`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS ` + s.quotedTable() + ` (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            relative_path TEXT NOT NULL DEFAULT '',
            file TEXT NOT NULL,
            date_time TEXT NOT NULL DEFAULT '',
            delete_flag TEXT NOT NULL DEFAULT 'false'
        )`
	}
	if err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, ddl)
		return err
	}); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// InsertRecord adds a file row and returns its id.
func (s *Store) InsertRecord(ctx context.Context, relativePath, file, dateTime string) (int64, error) {
	query := `INSERT INTO ` + s.quotedTable() +
		` (relative_path, file, date_time, delete_flag) VALUES (?, ?, ?, ?)`

	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, relativePath, file, dateTime, types.FlagFalse)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func (s *Store) orderClause() string {
	switch s.orderBy {
	case "date_time":
		return " ORDER BY date_time, id"
	case "path":
		return " ORDER BY relative_path, file, id"
	default:
		return " ORDER BY id"
	}
}

// LoadRecords returns a snapshot of every row in the configured order, with
// Index set to each record's position. Columns beyond the core set are
// exposed through Record.Fields.
func (s *Store) LoadRecords(ctx context.Context) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+s.quotedTable()+s.orderClause())
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var records []types.Record
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, recordFromRow(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	types.Reindex(records)
	s.logger.Debugf("Loaded %d records from %q", len(records), s.table)
	return records, nil
}

func recordFromRow(cols []string, values []interface{}) types.Record {
	var id int64
	var relPath, file, dateTime, deleteFlag string
	fields := make(map[string]string)

	for i, col := range cols {
		switch strings.ToLower(col) {
		case types.ColumnID:
			id = types.ToInt64(values[i])
		case types.ColumnRelativePath:
			relPath = types.ToString(values[i])
		case types.ColumnFile:
			file = types.ToString(values[i])
		case types.ColumnDateTime:
			dateTime = types.ToString(values[i])
		case types.ColumnDeleteFlag:
			deleteFlag = types.ToString(values[i])
		default:
			fields[col] = types.ToString(values[i])
		}
	}

	r := types.NewRecord(id, relPath, file, dateTime)
	r.DeleteFlag = parseFlag(deleteFlag)
	r.Fields = fields
	return r
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
