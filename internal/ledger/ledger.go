package ledger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobarin/stillcast/internal/models"
	"github.com/google/uuid"
)

// Ledger is the sole source of truth for task status. All reads and writes
// take a single lock for the whole load-modify-store cycle, so near-
// simultaneous job completions can never lose updates. Callers must not hold
// the lock across external calls; nothing here blocks on anything but disk.
//
// Every Upsert rewrites the whole backing file via temp-write + rename, so a
// reader of the file never observes a half-written ledger. Persistence is
// best-effort: write failures are logged and counted, never propagated,
// because losing a status flush must not fail an otherwise-successful job.
type Ledger struct {
	mu    sync.Mutex
	path  string
	tasks map[uuid.UUID]*models.Task

	writeFailures atomic.Int64
}

// Open loads the ledger file at path, creating an empty ledger (and the
// parent directory) when the file does not exist yet.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		path:  path,
		tasks: make(map[uuid.UUID]*models.Task),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	if err := json.Unmarshal(data, &l.tasks); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file %s: %w", path, err)
	}

	// A non-terminal record can only belong to a previous process. No worker
	// owns it anymore, so left alone it would poll as queued forever; freeze
	// it as failed instead.
	interrupted := 0
	now := time.Now().UTC()
	for _, task := range l.tasks {
		if task.Status.Terminal() {
			continue
		}
		msg := "interrupted by restart"
		task.Status = models.TaskStatusFailed
		task.Error = &msg
		task.ArtifactPath = nil
		task.UpdatedAt = now
		interrupted++
	}
	if interrupted > 0 {
		l.mu.Lock()
		l.persistLocked()
		l.mu.Unlock()
	}

	log.Printf("[Ledger] Loaded %d task(s) from %s", len(l.tasks), path)
	if interrupted > 0 {
		log.Printf("[Ledger] Failed %d task(s) interrupted by an earlier shutdown", interrupted)
	}
	return l, nil
}

// Get returns a copy of the task record, or false when the id is unknown.
func (l *Ledger) Get(id uuid.UUID) (models.Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *task, true
}

// Create inserts a fresh record with status queued and persists the ledger.
func (l *Ledger) Create(id uuid.UUID, quality string) models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	task := &models.Task{
		ID:        id,
		Status:    models.TaskStatusQueued,
		Quality:   quality,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.tasks[id] = task
	l.persistLocked()
	return *task
}

// Upsert merges the non-nil fields of update into the record (creating one
// with defaults when absent), bumps UpdatedAt unconditionally, and rewrites
// the backing store. A record already in a terminal state is never moved to
// another status; late writes against a terminal record are dropped so that
// the queued → in_progress → {completed, failed} sequence is the only one
// ever observable.
func (l *Ledger) Upsert(id uuid.UUID, update models.TaskUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	task, ok := l.tasks[id]
	if !ok {
		task = &models.Task{
			ID:        id,
			Status:    models.TaskStatusQueued,
			CreatedAt: now,
		}
		l.tasks[id] = task
	} else if task.Status.Terminal() {
		// Terminal records are frozen: a late write can never turn a failed
		// task into one carrying an artifact, or vice versa.
		log.Printf("[Ledger] Dropping update for terminal task %s (status=%s)", id, task.Status)
		return
	}

	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Error != nil {
		task.Error = update.Error
		task.ArtifactPath = nil
	}
	if update.ArtifactPath != nil {
		task.ArtifactPath = update.ArtifactPath
		task.Error = nil
	}
	task.UpdatedAt = now

	l.persistLocked()
}

// Len returns the number of tracked tasks.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// WriteFailures reports how many persistence attempts have failed since
// startup. Surfaced on /health as a degraded-mode signal.
func (l *Ledger) WriteFailures() int64 {
	return l.writeFailures.Load()
}

// persistLocked rewrites the entire ledger file. Write amplification is
// intentional: a handful of transitions per task keeps update frequency low,
// and full rewrite keeps the store trivially crash-consistent.
// Callers must hold l.mu.
func (l *Ledger) persistLocked() {
	data, err := json.MarshalIndent(l.tasks, "", "  ")
	if err != nil {
		l.writeFailures.Add(1)
		log.Printf("[Ledger] WARNING: failed to marshal ledger: %v", err)
		return
	}

	// Temp file + rename keeps the rewrite atomic on POSIX filesystems.
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		l.writeFailures.Add(1)
		log.Printf("[Ledger] WARNING: failed to write ledger: %v", err)
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		l.writeFailures.Add(1)
		log.Printf("[Ledger] WARNING: failed to replace ledger file: %v", err)
		os.Remove(tmp)
	}
}
