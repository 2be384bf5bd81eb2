package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobarin/stillcast/internal/api"
	"github.com/bobarin/stillcast/internal/config"
	"github.com/bobarin/stillcast/internal/ledger"
	"github.com/bobarin/stillcast/internal/services"
	"github.com/bobarin/stillcast/internal/storage"
	"github.com/bobarin/stillcast/internal/worker"
)

func main() {
	log.Println("Starting Stillcast API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open the task ledger
	led, err := ledger.Open(filepath.Join(cfg.DataDir, "tasks.json"))
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	log.Println("Ledger ready")

	// Initialize storage
	stor, err := storage.New(cfg.DataDir, cfg.TempDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage ready (artifacts: %s, temp: %s)", stor.ArtifactDir, stor.TempDir)

	// External encoder
	encoder := services.NewFFmpegService()

	// TTS provider selection: Gemini preferred (and the provider behind
	// per-request credentials), OpenAI as fallback when only that key is set.
	newTTS := func(apiKey string) services.TTSService {
		if apiKey != "" {
			return services.NewGeminiTTS(apiKey, cfg.TTSVoice)
		}
		if cfg.GeminiKey != "" {
			return services.NewGeminiTTS(cfg.GeminiKey, cfg.TTSVoice)
		}
		return services.NewOpenAITTS(cfg.OpenAIKey, cfg.TTSVoice)
	}

	switch {
	case cfg.GeminiKey != "":
		log.Println("TTS provider: Gemini")
	case cfg.OpenAIKey != "":
		log.Println("TTS provider: OpenAI (fallback)")
	default:
		log.Println("WARNING: No TTS key configured, script submissions must supply api_key")
	}

	// Create worker pool
	w := worker.New(led, stor, encoder, newTTS, worker.Config{
		QueueSize:     cfg.QueueSize,
		MaxChunkChars: cfg.MaxChunkChars,
		JobTimeout:    cfg.JobTimeout,
		ArtifactTTL:   cfg.ArtifactTTL,
	})

	// Create API handler
	handler := api.NewHandler(led, stor, w, cfg.GeminiKey != "" || cfg.OpenAIKey != "")
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go func() {
			w.Start(workerCtx, cfg.MaxConcurrentJobs)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown HTTP server first so no new jobs arrive while draining
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Shutdown worker and wait for in-flight jobs to finish
	if workerCancel != nil {
		workerCancel()
	}
	<-workerDone

	log.Println("Server exited")
}
