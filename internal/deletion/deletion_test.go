package deletion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/fsops"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/store"
	"github.com/dbsmedya/imagebatch/internal/types"
)

type recordingCache struct {
	invalidated []int64
}

func (c *recordingCache) Invalidate(id int64) {
	c.invalidated = append(c.invalidated, id)
}

func writeFile(t *testing.T, root, rel, file string) {
	t.Helper()
	dir := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("jpeg"), 0o644))
}

func flagged(id int64, rel, file string) types.Record {
	r := types.NewRecord(id, rel, file, "2023-01-01 10:00:00")
	r.DeleteFlag = true
	return r
}

func TestBuilder_OnlyFlaggedRecords(t *testing.T) {
	records := []types.Record{
		flagged(1, "a", "1.jpg"),
		types.NewRecord(2, "a", "2.jpg", ""),
		flagged(3, "b", "3.jpg"),
	}

	cands, err := NewBuilder().Build(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, []int64{1}, cands[0].RecordIDs)
	assert.Equal(t, []int64{3}, cands[1].RecordIDs)
	assert.Equal(t, 2, cands[1].ID)
	assert.Equal(t, types.ColumnDeleteFlag, cands[0].Field)
}

func TestOperation_BacksUpFileAndClearsFlag(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "1.jpg")

	cache := &recordingCache{}
	settings := config.DeleteSettings{DeleteFiles: true, BackupFiles: true}
	op := NewOperation(root, settings, []types.Record{flagged(1, "a", "1.jpg")}, cache, logger.NewNop())
	assert.Equal(t, engine.CommitWhatRan, op.Policy())

	batch := types.NewBatch()
	require.NoError(t, op.Stage(context.Background(), engine.Candidate{ID: 1, RecordIDs: []int64{1}}, batch))

	assert.NoFileExists(t, filepath.Join(root, "a", "1.jpg"))
	assert.FileExists(t, fsops.BackupPath(root, "a", "1.jpg"))
	assert.Equal(t, []int64{1}, cache.invalidated)

	updates := batch.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, types.ColumnValue{Column: types.ColumnDeleteFlag, Value: types.FlagFalse}, updates[0].Columns[0])
	assert.False(t, batch.Vacuum)
}

func TestOperation_DeleteDataStagesRowDeletion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "1.jpg")

	settings := config.DeleteSettings{DeleteFiles: true, DeleteData: true}
	op := NewOperation(root, settings, []types.Record{flagged(1, "a", "1.jpg")}, nil, logger.NewNop())

	batch := types.NewBatch()
	require.NoError(t, op.Stage(context.Background(), engine.Candidate{ID: 1, RecordIDs: []int64{1}}, batch))

	assert.NoFileExists(t, filepath.Join(root, "a", "1.jpg"))
	assert.NoFileExists(t, fsops.BackupPath(root, "a", "1.jpg"))
	assert.Equal(t, []int64{1}, batch.Deletes())
	assert.True(t, batch.Vacuum)
}

func TestOperation_MissingFileStillStagesRow(t *testing.T) {
	settings := config.DeleteSettings{DeleteFiles: true, DeleteData: true, BackupFiles: true}
	op := NewOperation(t.TempDir(), settings, []types.Record{flagged(1, "a", "gone.jpg")}, nil, logger.NewNop())

	batch := types.NewBatch()
	err := op.Stage(context.Background(), engine.Candidate{ID: 1, RecordIDs: []int64{1}}, batch)
	assert.ErrorIs(t, err, fsops.ErrFileMissing)
	assert.Equal(t, []int64{1}, batch.Deletes())
}

func TestOperation_UnknownRecord(t *testing.T) {
	op := NewOperation(t.TempDir(), config.DeleteSettings{DeleteData: true}, nil, nil, logger.NewNop())

	batch := types.NewBatch()
	err := op.Stage(context.Background(), engine.Candidate{ID: 1, RecordIDs: []int64{7}}, batch)
	assert.ErrorContains(t, err, "record 7 is unknown")
	assert.True(t, batch.Empty())
}

func TestOperation_CancelledBeforeStageTouchesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cam", "a.jpg")
	settings := config.DeleteSettings{DeleteFiles: true, DeleteData: true, BackupFiles: true}
	cache := &recordingCache{}
	op := NewOperation(root, settings, []types.Record{flagged(1, "cam", "a.jpg")}, cache, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := types.NewBatch()
	err := op.Stage(ctx, engine.Candidate{ID: 1, RecordIDs: []int64{1}}, batch)
	assert.Equal(t, context.Canceled, err)
	assert.True(t, batch.Empty())
	assert.Empty(t, cache.invalidated)
	assert.FileExists(t, filepath.Join(root, "cam", "a.jpg"))
}

func TestOperation_CommitWhatRanOnCancel(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "images.db")
	s, err := store.Open(ctx, &cfg.Store, "id", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	const n = 10
	for i := 0; i < n; i++ {
		name := filepathName(i)
		writeFile(t, root, "cam", name)
		_, err := s.InsertRecord(ctx, "cam", name, "2023-01-01 10:00:00")
		require.NoError(t, err)
	}
	records, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	for i := range records {
		records[i].DeleteFlag = true
	}

	cands, err := NewBuilder().Build(ctx, records)
	require.NoError(t, err)
	sel := engine.NewSelection(cands)
	require.NoError(t, sel.SelectAll(true))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	settings := config.DeleteSettings{DeleteFiles: true, DeleteData: true, BackupFiles: true}
	op := NewOperation(root, settings, records, nil, logger.NewNop())
	applier := engine.NewApplier(s, engine.ProgressOptions{}, logger.NewNop())

	steps := 0
	res := applier.Apply(runCtx, engine.SinkFunc(func(r engine.Report) {
		if r.IsFinal || r.Indeterminate {
			return
		}
		steps++
		if steps == 4 {
			cancel()
		}
	}), op, sel.ApplySet())

	require.NoError(t, res.Err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 4, res.ItemsAttempted)
	assert.True(t, res.Committed)
	assert.Equal(t, 4, res.MutationsCommitted)

	left, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, left, n-4)
	for i := 0; i < n; i++ {
		moved := i < 4
		_, statErr := os.Stat(fsops.BackupPath(root, "cam", filepathName(i)))
		assert.Equal(t, moved, statErr == nil, "file %d", i)
	}
}

func filepathName(i int) string {
	return "img" + string(rune('a'+i)) + ".jpg"
}
