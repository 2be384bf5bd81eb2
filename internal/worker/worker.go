package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/stillcast/internal/ledger"
	"github.com/bobarin/stillcast/internal/models"
	"github.com/bobarin/stillcast/internal/script"
	"github.com/bobarin/stillcast/internal/services"
	"github.com/bobarin/stillcast/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// retentionSweepInterval is how often the janitor checks for expired
// artifacts.
const retentionSweepInterval = time.Hour

// ErrQueueFull is returned by Submit when the bounded job queue has no room.
var ErrQueueFull = errors.New("job queue is full, try again later")

// Job is one unit of work: turn a still image plus narration into a video.
// Exactly one of AudioPath (direct submission) or Script (script submission)
// is set.
type Job struct {
	TaskID  uuid.UUID
	Profile models.QualityProfile

	ImagePath string
	AudioPath string // pre-recorded narration, already on disk
	Script    string // narration text to synthesize
	SynthKey  string // per-request synthesis credential ("" = server default)
}

// TTSFactory builds a synthesis adapter for a job. apiKey is the per-request
// credential when the caller supplied one, empty otherwise.
type TTSFactory func(apiKey string) services.TTSService

// Config bounds the worker pool and the per-job pipeline.
type Config struct {
	QueueSize     int
	MaxChunkChars int           // script chunker budget
	JobTimeout    time.Duration // ceiling over synthesis + merge + render, 0 = no ceiling
	ArtifactTTL   time.Duration // 0 disables the retention sweep
}

// Worker owns the bounded job queue and drives each task through
// queued → in_progress → {completed, failed}. Pipeline stages within a job
// are strictly sequential; jobs for different tasks run concurrently up to
// the pool size.
type Worker struct {
	ledger  *ledger.Ledger
	storage *storage.Storage
	encoder services.Encoder
	newTTS  TTSFactory
	cfg     Config
	jobs    chan Job
}

func New(led *ledger.Ledger, stor *storage.Storage, enc services.Encoder, newTTS TTSFactory, cfg Config) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Worker{
		ledger:  led,
		storage: stor,
		encoder: enc,
		newTTS:  newTTS,
		cfg:     cfg,
		jobs:    make(chan Job, cfg.QueueSize),
	}
}

// Submit creates the queued ledger entry and hands the job to the pool,
// returning immediately. When the queue is full the entry is marked failed
// before ErrQueueFull is returned, so pollers never see a queued task that
// no worker owns.
func (w *Worker) Submit(job Job) (models.Task, error) {
	task := w.ledger.Create(job.TaskID, job.Profile.Name)

	select {
	case w.jobs <- job:
		return task, nil
	default:
		w.fail(job.TaskID, ErrQueueFull)
		return task, ErrQueueFull
	}
}

// QueueDepth reports how many submitted jobs are waiting for a worker.
func (w *Worker) QueueDepth() int {
	return len(w.jobs)
}

// Start runs the pool until ctx is cancelled. A job in flight at shutdown
// has its external calls interrupted and fails through the normal failed
// transition, never a crash or a half-written terminal state.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		w.retentionSweep(gctx)
		return nil
	})

	g.Wait()
	log.Println("Worker shut down")
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

// retentionSweep periodically removes artifact files older than the TTL.
// Ledger records are never touched.
func (w *Worker) retentionSweep(ctx context.Context) {
	if w.cfg.ArtifactTTL <= 0 {
		return
	}

	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.storage.SweepExpired(w.cfg.ArtifactTTL)
		}
	}
}

// process drives one task through the pipeline. Every exit path (success,
// stage failure, timeout, panic) removes the transient inputs and writes
// exactly one terminal status to the ledger.
func (w *Worker) process(parent context.Context, job Job) {
	ctx := parent
	cancel := context.CancelFunc(func() {})
	if w.cfg.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, w.cfg.JobTimeout)
	}
	defer cancel()

	log.Printf("Processing task %s (quality=%s, script=%v)", job.TaskID, job.Profile.Name, job.Script != "")
	w.ledger.Upsert(job.TaskID, models.TaskUpdate{Status: statusPtr(models.TaskStatusInProgress)})

	transient := []string{job.ImagePath, job.AudioPath}
	defer func() {
		w.storage.Cleanup(transient...)
	}()

	terminal := false
	defer func() {
		// A stage must never escape as a panic; convert an unexpected fault
		// into the normal failed transition. The cleanup defer above still
		// runs afterwards.
		if r := recover(); r != nil {
			log.Printf("Task %s panicked: %v", job.TaskID, r)
			if !terminal {
				w.fail(job.TaskID, fmt.Errorf("unexpected fault: %v", r))
			}
		}
	}()

	audioPath := job.AudioPath

	// Script path: chunk → synthesize (in order) → merge.
	if job.Script != "" {
		chunks := script.Chunk(job.Script, w.cfg.MaxChunkChars)
		if len(chunks) == 0 {
			terminal = true
			w.fail(job.TaskID, fmt.Errorf("script contains no narratable text"))
			return
		}
		log.Printf("Task %s: script split into %d chunk(s)", job.TaskID, len(chunks))

		tts := w.newTTS(job.SynthKey)
		segments := make([][]byte, 0, len(chunks))
		sampleRate := 0
		for i, chunk := range chunks {
			resp, err := tts.Synthesize(ctx, chunk)
			if err != nil {
				terminal = true
				w.fail(job.TaskID, &services.SynthesisError{Chunk: i + 1, Total: len(chunks), Diagnostic: err.Error()})
				return
			}
			segments = append(segments, resp.Samples)
			if sampleRate == 0 {
				sampleRate = resp.SampleRate
			}
		}

		merged := w.storage.TempPath(job.TaskID, "narration.wav")
		transient = append(transient, merged)
		if err := services.MergeSegments(segments, sampleRate, merged); err != nil {
			terminal = true
			w.fail(job.TaskID, err)
			return
		}
		segments = nil // per-segment buffers are done once the file exists
		audioPath = merged
	}

	// Render. The temp output is registered for cleanup too: after a
	// successful promote the rename leaves nothing behind, after a failed
	// one the partial file goes with the rest.
	rendered := w.storage.TempPath(job.TaskID, "output.mp4")
	transient = append(transient, rendered)
	if err := w.encoder.Render(ctx, job.ImagePath, audioPath, rendered, job.Profile); err != nil {
		terminal = true
		w.fail(job.TaskID, err)
		return
	}

	artifact, err := w.storage.PromoteArtifact(job.TaskID, rendered)
	if err != nil {
		terminal = true
		w.fail(job.TaskID, err)
		return
	}

	terminal = true
	w.ledger.Upsert(job.TaskID, models.TaskUpdate{
		Status:       statusPtr(models.TaskStatusCompleted),
		ArtifactPath: &artifact,
	})
	log.Printf("Task %s completed: %s", job.TaskID, artifact)
}

func (w *Worker) fail(taskID uuid.UUID, err error) {
	log.Printf("Task %s failed: %v", taskID, err)
	msg := err.Error()
	w.ledger.Upsert(taskID, models.TaskUpdate{
		Status: statusPtr(models.TaskStatusFailed),
		Error:  &msg,
	})
}

func statusPtr(s models.TaskStatus) *models.TaskStatus {
	return &s
}
