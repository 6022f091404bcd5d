package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/types"
)

func newMockStore(t *testing.T, batchDeleteSize int) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Options{Table: "file_data", BatchDeleteSize: batchDeleteSize}, logger.NewNop()), mock
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "images.db")

	s, err := Open(context.Background(), &cfg.Store, "id", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.StoreConfig
		expected string
	}{
		{
			name: "basic DSN",
			cfg: &config.StoreConfig{
				Host: "localhost", Port: 3306, User: "root", Password: "secret",
				Database: "images", TLS: "preferred",
			},
			expected: "root:secret@tcp(localhost:3306)/images?parseTime=false&tls=preferred",
		},
		{
			name: "without database",
			cfg: &config.StoreConfig{
				Host: "localhost", Port: 3306, User: "root", Password: "secret",
			},
			expected: "root:secret@tcp(localhost:3306)/?parseTime=false&tls=preferred",
		},
		{
			name: "tls disabled",
			cfg: &config.StoreConfig{
				Host: "db", Port: 3307, User: "u", Password: "p", Database: "d", TLS: "disable",
			},
			expected: "u:p@tcp(db:3307)/d?parseTime=false&tls=false",
		},
		{
			name: "tls required",
			cfg: &config.StoreConfig{
				Host: "db", Port: 3306, User: "u", Password: "", Database: "d", TLS: "required",
			},
			expected: "u:@tcp(db:3306)/d?parseTime=false&tls=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildDSN(tt.cfg))
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, nil, "", nil)
	assert.Error(t, err)

	_, err = Open(ctx, &config.StoreConfig{Driver: "postgres", Table: "file_data"}, "", logger.NewNop())
	assert.ErrorContains(t, err, "unsupported store driver")

	_, err = Open(ctx, &config.StoreConfig{Driver: "sqlite", Table: "bad;table"}, "", logger.NewNop())
	assert.ErrorContains(t, err, "invalid identifier")

	_, err = Open(ctx, &config.StoreConfig{Driver: "sqlite", Table: "file_data"}, "", logger.NewNop())
	assert.ErrorContains(t, err, "sqlite path is empty")
}

func TestCommitBatch_EmptyBatchTouchesNothing(t *testing.T) {
	s, mock := newMockStore(t, 10)

	n, err := s.CommitBatch(context.Background(), types.NewBatch())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.CommitBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_SingleTransaction(t *testing.T) {
	s, mock := newMockStore(t, 2)

	batch := types.NewBatch()
	batch.Update(1, "date_time", "2023-05-03 10:00:00")
	batch.Update(2, "dark", "true")
	batch.Update(2, "guid", "abc")
	batch.Delete(7)
	batch.Delete(8)
	batch.Delete(9)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `file_data` SET `date_time` = ? WHERE `id` = ?")).
		WithArgs("2023-05-03 10:00:00", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `file_data` SET `dark` = ?, `guid` = ? WHERE `id` = ?")).
		WithArgs("true", "abc", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `file_data` WHERE `id` IN (?,?)")).
		WithArgs(int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `file_data` WHERE `id` IN (?)")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.CommitBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_RollbackOnFailure(t *testing.T) {
	s, mock := newMockStore(t, 10)

	batch := types.NewBatch()
	batch.Update(1, "dark", "true")
	batch.Update(2, "dark", "false")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `file_data`").
		WithArgs("true", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `file_data`").
		WithArgs("false", int64(2)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	n, err := s.CommitBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update record 2")
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_RejectsBadColumn(t *testing.T) {
	s, mock := newMockStore(t, 10)

	batch := types.NewBatch()
	batch.Update(1, "dark; DROP TABLE x", "true")

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.CommitBatch(context.Background(), batch)
	assert.ErrorContains(t, err, "invalid identifier")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_VacuumAfterCommit(t *testing.T) {
	s, mock := newMockStore(t, 10)

	batch := types.NewBatch()
	batch.Delete(3)
	batch.Vacuum = true

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `file_data`").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("VACUUM").WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := s.CommitBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRecords_MapsColumns(t *testing.T) {
	s, mock := newMockStore(t, 10)

	rows := sqlmock.NewRows([]string{"id", "relative_path", "file", "date_time", "delete_flag", "dark"}).
		AddRow(int64(4), "cam1", "a.jpg", "2023-03-05 10:00:00", "true", "false").
		AddRow(int64(9), "cam1", "b.jpg", "garbage", "false", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `file_data` ORDER BY id")).WillReturnRows(rows)

	records, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(4), records[0].ID)
	assert.Equal(t, 0, records[0].Index)
	assert.True(t, records[0].DateValid)
	assert.True(t, records[0].DeleteFlag)
	assert.Equal(t, "false", records[0].Field("dark"))

	assert.Equal(t, 1, records[1].Index)
	assert.False(t, records[1].DateValid)
	assert.False(t, records[1].DeleteFlag)
	assert.Equal(t, "", records[1].Field("dark"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRecords_OrderBy(t *testing.T) {
	tests := map[string]string{
		"":          "ORDER BY id",
		"id":        "ORDER BY id",
		"date_time": "ORDER BY date_time, id",
		"path":      "ORDER BY relative_path, file, id",
	}
	for order, clause := range tests {
		t.Run(order, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			s := New(db, Options{OrderBy: order}, nil)
			mock.ExpectQuery(regexp.QuoteMeta(clause)).
				WillReturnRows(sqlmock.NewRows([]string{"id"}))

			records, err := s.LoadRecords(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoadRecords_QueryError(t *testing.T) {
	s, mock := newMockStore(t, 10)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	_, err := s.LoadRecords(context.Background())
	assert.ErrorContains(t, err, "query records")
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnBusy(context.Background(), func() error {
		calls++
		return errors.New("no such table")
	})
	assert.EqualError(t, err, "no such table")
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retryOnBusy(ctx, func() error { return errors.New("SQLITE_BUSY") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.InsertRecord(ctx, "cam1", "a.jpg", "2023-03-05 10:00:00")
	require.NoError(t, err)
	id2, err := s.InsertRecord(ctx, "cam1", "b.jpg", "2023-03-05 11:00:00")
	require.NoError(t, err)
	_, err = s.InsertRecord(ctx, "cam2", "c.mp4", "2023-04-20 09:00:00")
	require.NoError(t, err)

	require.NoError(t, s.EnsureColumn(ctx, "dark"))
	require.NoError(t, s.EnsureColumn(ctx, "dark"))
	has, err := s.HasColumn(ctx, "DARK")
	require.NoError(t, err)
	assert.True(t, has)

	batch := types.NewBatch()
	batch.Update(id1, "dark", "true")
	batch.Update(id1, types.ColumnDateTime, "2023-05-03 10:00:00")
	batch.Delete(id2)
	batch.Vacuum = true

	n, err := s.CommitBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, id1, records[0].ID)
	assert.Equal(t, "true", records[0].Field("dark"))
	assert.Equal(t, "2023-05-03 10:00:00", records[0].DateTime)
	assert.Equal(t, time.May, records[0].Time.Month())
	assert.Equal(t, "", records[1].Field("dark"))
	assert.True(t, records[1].IsVideo())
}

func TestSQLiteStore_Columns(t *testing.T) {
	s := openTestStore(t)

	cols, err := s.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "relative_path", "file", "date_time", "delete_flag"}, cols)

	assert.Error(t, s.EnsureColumn(context.Background(), "bad name"))
}

func TestConfigurePool_LeavesRoomForLockConnection(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{name: "unlimited", max: 0, want: 0},
		{name: "single raised", max: 1, want: 2},
		{name: "kept", max: 4, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			configurePool(db, &config.StoreConfig{MaxConnections: tt.max})
			assert.Equal(t, tt.want, db.Stats().MaxOpenConnections)
		})
	}
}
