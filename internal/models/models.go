package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a video task.
// Valid transitions: queued → in_progress → {completed, failed}.
// completed and failed are terminal.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether a status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is a single ledger record. Error and ArtifactPath are mutually
// exclusive for the lifetime of the record: a failed task never carries an
// artifact path and a completed task never carries an error.
type Task struct {
	ID           uuid.UUID  `json:"task_id"`
	Status       TaskStatus `json:"status"`
	Quality      string     `json:"quality"`
	Error        *string    `json:"error,omitempty"`
	ArtifactPath *string    `json:"artifact_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TaskUpdate is a partial update applied by Ledger.Upsert. Nil fields are
// left untouched; the record's UpdatedAt is bumped unconditionally.
type TaskUpdate struct {
	Status       *TaskStatus
	Error        *string
	ArtifactPath *string
}

// ---------------------------------------------------------------------------
// Quality profiles: fixed encoding parameter bundles, selected once per task
// at submission time. The tuples are deterministic: nothing here varies by
// environment.
// ---------------------------------------------------------------------------

type QualityProfile struct {
	Name           string
	Preset         string // libx264 -preset
	CRF            int    // libx264 -crf (lower = better quality)
	AudioBitrate   string // aac -b:a
	ScaleHeight    int    // scale=-2:<height>
	FPS            int
	TuneStillImage bool // -tune stillimage
}

var qualityProfiles = map[string]QualityProfile{
	"test": {
		Name:         "test",
		Preset:       "ultrafast",
		CRF:          28,
		AudioBitrate: "128k",
		ScaleHeight:  480,
		FPS:          15,
	},
	"medium": {
		Name:           "medium",
		Preset:         "medium",
		CRF:            23,
		AudioBitrate:   "192k",
		ScaleHeight:    720,
		FPS:            30,
		TuneStillImage: true,
	},
	"best": {
		Name:           "best",
		Preset:         "slow",
		CRF:            18,
		AudioBitrate:   "320k",
		ScaleHeight:    1080,
		FPS:            60,
		TuneStillImage: true,
	},
}

// DefaultQuality is used when a submission omits the quality field.
const DefaultQuality = "test"

// ProfileByName resolves a quality profile name. Unknown names are a
// validation error surfaced synchronously at submission time.
func ProfileByName(name string) (QualityProfile, error) {
	if name == "" {
		name = DefaultQuality
	}
	p, ok := qualityProfiles[name]
	if !ok {
		return QualityProfile{}, fmt.Errorf("unknown quality profile %q (allowed: test, medium, best)", name)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// DTOs for API responses
// ---------------------------------------------------------------------------

type SubmitResponse struct {
	TaskID      uuid.UUID  `json:"task_id"`
	Status      TaskStatus `json:"status"`
	Quality     string     `json:"quality"`
	CheckURL    string     `json:"check_url"`
	DownloadURL string     `json:"download_url"`
}

type StatusResponse struct {
	TaskID       uuid.UUID  `json:"task_id"`
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Error        *string    `json:"error,omitempty"`
	ArtifactPath *string    `json:"artifact_path,omitempty"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	QueueDepth          int    `json:"queue_depth"`
	PersistenceWarnings int64  `json:"persistence_warnings"`
}
