package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/bobarin/stillcast/internal/ledger"
	"github.com/bobarin/stillcast/internal/models"
	"github.com/bobarin/stillcast/internal/storage"
	"github.com/bobarin/stillcast/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxUploadBytes caps a whole multipart submission (image + audio).
var maxUploadBytes int64 = 256 << 20

// multipartMemory is the in-memory threshold for parsed parts; anything
// larger spills to disk.
const multipartMemory = 32 << 20

type Handler struct {
	ledger  *ledger.Ledger
	storage *storage.Storage
	worker  *worker.Worker

	// hasDefaultTTS reports whether the process environment carries a
	// synthesis credential. When false, script submissions must supply one.
	hasDefaultTTS bool
}

func NewHandler(led *ledger.Ledger, stor *storage.Storage, w *worker.Worker, hasDefaultTTS bool) *Handler {
	return &Handler{
		ledger:        led,
		storage:       stor,
		worker:        w,
		hasDefaultTTS: hasDefaultTTS,
	}
}

// parseUploadForm bounds the request body at maxUploadBytes and parses the
// multipart form, writing the error response itself when either step fails.
func parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	if r.ContentLength > maxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart request")
		return false
	}
	return true
}

// SubmitVideo handles POST /v1/videos: direct image + audio submission.
func (h *Handler) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}

	profile, err := models.ProfileByName(r.FormValue("quality"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	imageData, imageName, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Image file is required")
		return
	}

	audioData, audioName, err := readUpload(r, "audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Audio file is required")
		return
	}

	taskID := uuid.New()

	imagePath, err := h.storage.SaveUpload(taskID, imageName, imageData)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store image upload")
		return
	}

	audioPath, err := h.storage.SaveUpload(taskID, audioName, audioData)
	if err != nil {
		h.storage.Cleanup(imagePath)
		respondError(w, http.StatusInternalServerError, "Failed to store audio upload")
		return
	}

	h.submitJob(w, r, worker.Job{
		TaskID:    taskID,
		Profile:   profile,
		ImagePath: imagePath,
		AudioPath: audioPath,
	})
}

// SubmitScriptVideo handles POST /v1/videos/script: image + narration
// script, synthesized server-side.
func (h *Handler) SubmitScriptVideo(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}

	profile, err := models.ProfileByName(r.FormValue("quality"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	scriptText := r.FormValue("script")
	if scriptText == "" {
		respondError(w, http.StatusBadRequest, "Script is required")
		return
	}

	// A synthesis credential must come from the request or the process
	// environment; absence is the caller's error, not a silent fallback.
	synthKey := r.FormValue("api_key")
	if synthKey == "" && !h.hasDefaultTTS {
		respondError(w, http.StatusBadRequest, "No synthesis credential: provide api_key or configure one on the server")
		return
	}

	imageData, imageName, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Image file is required")
		return
	}

	taskID := uuid.New()

	imagePath, err := h.storage.SaveUpload(taskID, imageName, imageData)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store image upload")
		return
	}

	h.submitJob(w, r, worker.Job{
		TaskID:    taskID,
		Profile:   profile,
		ImagePath: imagePath,
		Script:    scriptText,
		SynthKey:  synthKey,
	})
}

// submitJob hands a validated job to the pool and writes the 201 response.
func (h *Handler) submitJob(w http.ResponseWriter, r *http.Request, job worker.Job) {
	task, err := h.worker.Submit(job)
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			// The ledger entry is already marked failed; the inputs will
			// never be consumed, so drop them here.
			h.storage.Cleanup(job.ImagePath, job.AudioPath)
			respondError(w, http.StatusServiceUnavailable, "Server is busy, try again later")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusCreated, models.SubmitResponse{
		TaskID:      task.ID,
		Status:      task.Status,
		Quality:     task.Quality,
		CheckURL:    fmt.Sprintf("/v1/videos/%s", task.ID),
		DownloadURL: fmt.Sprintf("/v1/videos/%s/download", task.ID),
	})
}

// GetTaskStatus handles GET /v1/videos/{id}, the polling endpoint.
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, ok := h.ledger.Get(taskID)
	if !ok {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	respondJSON(w, http.StatusOK, models.StatusResponse{
		TaskID:       task.ID,
		Status:       task.Status,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		Error:        task.Error,
		ArtifactPath: task.ArtifactPath,
	})
}

// DownloadArtifact handles GET /v1/videos/{id}/download. Only valid once the
// task is completed; before that the answer is a Conflict, not a NotFound:
// the task exists, the artifact doesn't yet.
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, ok := h.ledger.Get(taskID)
	if !ok {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	if task.Status != models.TaskStatusCompleted || task.ArtifactPath == nil {
		respondError(w, http.StatusConflict, fmt.Sprintf("Video not ready (status: %s)", task.Status))
		return
	}

	if _, err := os.Stat(*task.ArtifactPath); err != nil {
		// Completed but swept by the retention policy.
		respondError(w, http.StatusNotFound, "Artifact no longer available")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.mp4"`, task.ID))
	http.ServeFile(w, r, *task.ArtifactPath)
}

// Health check reports queue depth and the persistence degraded-mode
// counter alongside the usual ok.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:              "ok",
		QueueDepth:          h.worker.QueueDepth(),
		PersistenceWarnings: h.ledger.WriteFailures(),
	})
}

// readUpload pulls one file part out of the parsed multipart form.
func readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty %s upload", field)
	}

	return data, uploadName(header, field), nil
}

// uploadName falls back to the field name when the client sent no filename.
func uploadName(header *multipart.FileHeader, field string) string {
	if header != nil && header.Filename != "" {
		return header.Filename
	}
	return field
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
