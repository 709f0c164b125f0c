package source

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/colindex/internal/collection"
	ierrors "github.com/arkilian/colindex/internal/errors"
)

func createTestDB(t *testing.T) (string, uuid.UUID) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.sqlite")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE tasks (id TEXT, status TEXT, priority INTEGER, payload BLOB)`)
	require.NoError(t, err)

	known := uuid.New()
	rows := []struct {
		id       string
		status   string
		priority int
	}{
		{known.String(), "open", 1},
		{"not-a-uuid", "done", 2},
		{uuid.NewString(), "open", 3},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO tasks (id, status, priority, payload) VALUES (?, ?, ?, ?)`,
			r.id, r.status, r.priority, []byte("raw"))
		require.NoError(t, err)
	}
	return path, known
}

func TestLoadSQLite(t *testing.T) {
	path, known := createTestDB(t)

	records, err := LoadSQLite(context.Background(), path, "tasks", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, known, records[0].ID)
	assert.NotContains(t, records[0].Fields, IDColumn)
	assert.Equal(t, "open", records[0].Get("status"))
	assert.Equal(t, int64(1), records[0].Get("priority"))
	assert.Equal(t, "raw", records[0].Get("payload"))

	assert.NotEqual(t, uuid.Nil, records[1].ID)
	assert.Equal(t, "not-a-uuid", records[1].Get(IDColumn))
}

func TestLoadSQLite_Limit(t *testing.T) {
	path, _ := createTestDB(t)

	records, err := LoadSQLite(context.Background(), path, "tasks", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLoadSQLite_IntoRecordSet(t *testing.T) {
	path, known := createTestDB(t)

	records, err := LoadSQLite(context.Background(), path, "tasks", 0)
	require.NoError(t, err)
	rs := collection.New(records, collection.WithVerifyOnMutate(true))

	positions, err := rs.IndicesOf("status", "open")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, positions)

	at, err := rs.IndexOfID(known)
	require.NoError(t, err)
	assert.Equal(t, 0, at)
}

func TestLoadSQLite_Errors(t *testing.T) {
	ctx := context.Background()
	path, _ := createTestDB(t)

	_, err := LoadSQLite(ctx, path, "tasks; DROP TABLE tasks", 0)
	assert.Equal(t, ierrors.ErrCategoryValidation, ierrors.GetCategory(err))

	_, err = LoadSQLite(ctx, path, "missing", 0)
	assert.Equal(t, ierrors.CodeNotFound, ierrors.GetCode(err))
	assert.Equal(t, ierrors.ErrCategorySource, ierrors.GetCategory(err))

	_, err = LoadSQLite(ctx, filepath.Join(t.TempDir(), "absent.sqlite"), "tasks", 0)
	assert.Equal(t, ierrors.CodeOpenFailed, ierrors.GetCode(err))
	assert.False(t, ierrors.IsRetryable(err))
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	busy := ierrors.NewSourceError(ierrors.CodeSourceBusy, "database is locked", nil)

	t.Run("succeeds after busy attempts", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the last retry", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 2, time.Millisecond, func() error {
			calls++
			return busy
		})
		assert.Equal(t, ierrors.CodeSourceBusy, ierrors.GetCode(err))
		assert.True(t, ierrors.IsRetryable(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on errors that are not retryable", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 3, time.Millisecond, func() error {
			calls++
			return ierrors.NewSourceError(ierrors.CodeQueryFailed, "syntax error", nil)
		})
		assert.Equal(t, ierrors.CodeQueryFailed, ierrors.GetCode(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := retryWithBackoff(cctx, 3, time.Hour, func() error {
			calls++
			cancel()
			return busy
		})
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	})
}
