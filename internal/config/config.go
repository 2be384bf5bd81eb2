package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Paths
	DataDir string // Ledger file + completed artifacts live here
	TempDir string // Per-task transient files (uploads, segments, merged audio)

	// Gemini (primary TTS provider; same key the script endpoint accepts per request)
	GeminiKey string

	// OpenAI (fallback TTS provider, used when no Gemini key is available)
	OpenAIKey string

	// TTSVoice is the prebuilt voice name passed to whichever provider is active.
	TTSVoice string

	// Pipeline
	MaxChunkChars int           // Script chunker character budget per chunk
	JobTimeout    time.Duration // Per-job ceiling covering TTS + merge + render (0 = no ceiling)
	ArtifactTTL   time.Duration // Retention for completed artifact files (0 = keep forever)

	// Worker
	MaxConcurrentJobs int
	QueueSize         int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DataDir:            getEnv("DATA_DIR", "data"),
		TempDir:            getEnv("TEMP_DIR", "/tmp/stillcast"),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		TTSVoice:           getEnv("TTS_VOICE", ""),
		MaxChunkChars:      getEnvInt("MAX_CHUNK_CHARS", 4000),
		JobTimeout:         getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
		ArtifactTTL:        getEnvDuration("ARTIFACT_TTL", 24*time.Hour),
		MaxConcurrentJobs:  getEnvInt("MAX_CONCURRENT_JOBS", 4),
		QueueSize:          getEnvInt("JOB_QUEUE_SIZE", 64),
	}

	// Validate required fields
	if cfg.MaxChunkChars <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_CHARS must be positive")
	}

	if cfg.MaxConcurrentJobs <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be positive")
	}

	// No TTS key is not fatal at startup: direct image+audio submissions work
	// without one, and script submissions may carry their own credential.

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
