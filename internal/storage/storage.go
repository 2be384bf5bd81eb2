package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage owns the on-disk layout: a temp directory for transient per-task
// inputs and intermediates, and an artifact directory for completed videos.
// Temp files embed the task id, so concurrent jobs never collide and no
// cross-job locking is needed.
type Storage struct {
	ArtifactDir string
	TempDir     string
}

func New(dataDir, tempDir string) (*Storage, error) {
	artifactDir := filepath.Join(dataDir, "artifacts")
	for _, dir := range []string{artifactDir, tempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return &Storage{
		ArtifactDir: artifactDir,
		TempDir:     tempDir,
	}, nil
}

// TempPath returns the path for a task-scoped transient file.
func (s *Storage) TempPath(taskID uuid.UUID, filename string) string {
	return filepath.Join(s.TempDir, fmt.Sprintf("%s_%s", taskID, filename))
}

// SaveUpload persists an uploaded input buffer as a transient file and
// returns its path. The base name is flattened to its final path element so
// a crafted filename can't escape the temp directory.
func (s *Storage) SaveUpload(taskID uuid.UUID, name string, data []byte) (string, error) {
	path := s.TempPath(taskID, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}

// ArtifactPath returns the final resting place of a task's rendered video.
func (s *Storage) ArtifactPath(taskID uuid.UUID) string {
	return filepath.Join(s.ArtifactDir, taskID.String()+".mp4")
}

// PromoteArtifact moves a rendered temp file into the artifact directory and
// returns the artifact path. Falls back to copy+remove when temp and data
// dirs sit on different filesystems.
func (s *Storage) PromoteArtifact(taskID uuid.UUID, renderedPath string) (string, error) {
	dest := s.ArtifactPath(taskID)

	if err := os.Rename(renderedPath, dest); err != nil {
		if err := copyFile(renderedPath, dest); err != nil {
			return "", fmt.Errorf("failed to promote artifact: %w", err)
		}
		os.Remove(renderedPath)
	}

	return dest, nil
}

// Cleanup removes transient files. Failures are logged and swallowed; a
// cleanup error must never mask the task outcome already written to the
// ledger.
func (s *Storage) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[Storage] WARNING: failed to remove %s: %v", path, err)
		}
	}
}

// SweepExpired deletes artifact files older than ttl and returns how many
// were removed. Ledger records are left alone: retention applies to bytes on
// disk, not task history.
func (s *Storage) SweepExpired(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.ArtifactDir)
	if err != nil {
		log.Printf("[Storage] WARNING: retention sweep failed to list artifacts: %v", err)
		return 0
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.ArtifactDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("[Storage] WARNING: retention sweep failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("[Storage] Retention sweep removed %d artifact(s) older than %v", removed, ttl)
	}
	return removed
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
