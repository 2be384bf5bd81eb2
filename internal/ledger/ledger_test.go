package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bobarin/stillcast/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, err)
	return l
}

func statusPtr(s models.TaskStatus) *models.TaskStatus { return &s }
func strPtr(s string) *string                          { return &s }

func TestCreateAndGet(t *testing.T) {
	l := openTestLedger(t)
	id := uuid.New()

	created := l.Create(id, "medium")
	assert.Equal(t, models.TaskStatusQueued, created.Status)
	assert.Equal(t, "medium", created.Quality)

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.TaskStatusQueued, got.Status)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.ArtifactPath)
}

func TestGetUnknownID(t *testing.T) {
	l := openTestLedger(t)

	_, ok := l.Get(uuid.New())
	assert.False(t, ok)
}

func TestUpsertMergesOnlyProvidedFields(t *testing.T) {
	l := openTestLedger(t)
	id := uuid.New()
	l.Create(id, "test")

	l.Upsert(id, models.TaskUpdate{Status: statusPtr(models.TaskStatusInProgress)})

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusInProgress, got.Status)
	assert.Equal(t, "test", got.Quality)
	assert.Nil(t, got.Error)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestUpsertUnknownIDCreatesRecord(t *testing.T) {
	l := openTestLedger(t)
	id := uuid.New()

	l.Upsert(id, models.TaskUpdate{Status: statusPtr(models.TaskStatusInProgress)})

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusInProgress, got.Status)
}

func TestTerminalRecordIsFrozen(t *testing.T) {
	l := openTestLedger(t)
	id := uuid.New()
	l.Create(id, "test")
	l.Upsert(id, models.TaskUpdate{
		Status:       statusPtr(models.TaskStatusCompleted),
		ArtifactPath: strPtr("/data/artifacts/out.mp4"),
	})

	// Late writes against a terminal record must be dropped entirely,
	// including ones that touch only error or artifact fields.
	l.Upsert(id, models.TaskUpdate{
		Status: statusPtr(models.TaskStatusFailed),
		Error:  strPtr("late failure"),
	})
	l.Upsert(id, models.TaskUpdate{Error: strPtr("sneaky error-only write")})

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.ArtifactPath)
	assert.Equal(t, "/data/artifacts/out.mp4", *got.ArtifactPath)
	assert.Nil(t, got.Error)
}

func TestErrorAndArtifactAreMutuallyExclusive(t *testing.T) {
	l := openTestLedger(t)
	id := uuid.New()
	l.Create(id, "test")

	l.Upsert(id, models.TaskUpdate{Error: strPtr("transient diagnostic")})
	got, _ := l.Get(id)
	require.NotNil(t, got.Error)
	assert.Nil(t, got.ArtifactPath)

	l.Upsert(id, models.TaskUpdate{ArtifactPath: strPtr("/data/artifacts/out.mp4")})
	got, _ = l.Get(id)
	require.NotNil(t, got.ArtifactPath)
	assert.Nil(t, got.Error, "setting an artifact must clear a previously recorded error")
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	l, err := Open(path)
	require.NoError(t, err)

	id := uuid.New()
	l.Create(id, "best")
	msg := "render exploded"
	l.Upsert(id, models.TaskUpdate{
		Status: statusPtr(models.TaskStatusFailed),
		Error:  &msg,
	})

	reloaded, err := Open(path)
	require.NoError(t, err)
	got, ok := reloaded.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "render exploded", *got.Error)
	assert.Equal(t, "best", got.Quality)
	assert.Zero(t, reloaded.WriteFailures())
}

func TestOpenFailsInterruptedTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	l, err := Open(path)
	require.NoError(t, err)

	queued := uuid.New()
	l.Create(queued, "test")

	inProgress := uuid.New()
	l.Create(inProgress, "test")
	l.Upsert(inProgress, models.TaskUpdate{Status: statusPtr(models.TaskStatusInProgress)})

	done := uuid.New()
	l.Create(done, "test")
	l.Upsert(done, models.TaskUpdate{
		Status:       statusPtr(models.TaskStatusCompleted),
		ArtifactPath: strPtr("/data/artifacts/out.mp4"),
	})

	// A reopen stands in for a process restart: no worker owns the queued and
	// in_progress records anymore.
	reloaded, err := Open(path)
	require.NoError(t, err)

	for _, id := range []uuid.UUID{queued, inProgress} {
		got, ok := reloaded.Get(id)
		require.True(t, ok)
		assert.Equal(t, models.TaskStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Contains(t, *got.Error, "interrupted by restart")
		assert.Nil(t, got.ArtifactPath)
	}

	got, ok := reloaded.Get(done)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.ArtifactPath)

	// The freeze is persisted, not just in memory.
	third, err := Open(path)
	require.NoError(t, err)
	got, ok = third.Get(queued)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
}

func TestBackingFileIsAlwaysValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	l, err := Open(path)
	require.NoError(t, err)

	id := uuid.New()
	l.Create(id, "test")
	l.Upsert(id, models.TaskUpdate{Status: statusPtr(models.TaskStatusInProgress)})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk map[uuid.UUID]models.Task
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, models.TaskStatusInProgress, onDisk[id].Status)

	// The temp file from the atomic rewrite never lingers.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentTasksStayIsolated(t *testing.T) {
	l := openTestLedger(t)

	const n = 32
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		l.Create(ids[i], "test")
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			l.Upsert(id, models.TaskUpdate{Status: statusPtr(models.TaskStatusInProgress)})
			if i%2 == 0 {
				artifact := fmt.Sprintf("/data/artifacts/%s.mp4", id)
				l.Upsert(id, models.TaskUpdate{
					Status:       statusPtr(models.TaskStatusCompleted),
					ArtifactPath: &artifact,
				})
			} else {
				msg := fmt.Sprintf("task %d failed", i)
				l.Upsert(id, models.TaskUpdate{
					Status: statusPtr(models.TaskStatusFailed),
					Error:  &msg,
				})
			}
		}(i, id)
	}
	wg.Wait()

	assert.Equal(t, n, l.Len())
	for i, id := range ids {
		got, ok := l.Get(id)
		require.True(t, ok)
		if i%2 == 0 {
			assert.Equal(t, models.TaskStatusCompleted, got.Status)
			require.NotNil(t, got.ArtifactPath)
			assert.Contains(t, *got.ArtifactPath, id.String())
			assert.Nil(t, got.Error)
		} else {
			assert.Equal(t, models.TaskStatusFailed, got.Status)
			require.NotNil(t, got.Error)
			assert.Equal(t, fmt.Sprintf("task %d failed", i), *got.Error)
			assert.Nil(t, got.ArtifactPath)
		}
	}
}
