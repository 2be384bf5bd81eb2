package services

import "context"

// ---------------------------------------------------------------------------
// TTSService: common interface for text-to-speech providers
// Gemini and OpenAI both implement this interface so the worker can use
// whichever credential is available without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider: raw decoded
// samples, 16-bit little-endian linear PCM, mono.
type TTSResponse struct {
	Samples    []byte
	SampleRate int
}

// TTSService converts one script chunk into raw audio samples. Calls for the
// chunks of a single task are made strictly in order, so concatenation order
// matches chunk order, and a failure on any chunk aborts the whole task.
type TTSService interface {
	Synthesize(ctx context.Context, text string) (*TTSResponse, error)
}
