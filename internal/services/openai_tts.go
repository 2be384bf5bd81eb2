package services

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Text-to-Speech Service
// Fallback provider for deployments without a Gemini key. The pcm response
// format yields 24kHz 16-bit mono samples, matching what the merger expects.
// ---------------------------------------------------------------------------

const (
	openaiTTSDefaultVoice = openai.VoiceAlloy
	openaiTTSSampleRate   = 24000
)

type OpenAITTS struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// Ensure OpenAITTS implements TTSService at compile time.
var _ TTSService = (*OpenAITTS)(nil)

// NewOpenAITTS creates an OpenAI TTS service. voice overrides the default
// when non-empty.
func NewOpenAITTS(apiKey, voice string) *OpenAITTS {
	v := openaiTTSDefaultVoice
	if voice != "" {
		v = openai.SpeechVoice(voice)
	}
	return &OpenAITTS{
		client: openai.NewClient(apiKey),
		voice:  v,
	}
}

// Synthesize converts text to raw PCM samples.
// Implements the TTSService interface.
func (s *OpenAITTS) Synthesize(ctx context.Context, text string) (*TTSResponse, error) {
	log.Printf("[OpenAITTS] Synthesizing (voice=%s, textLen=%d)", s.voice, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts request failed: %w", err)
	}
	defer resp.Close()

	samples, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai tts audio: %w", err)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("openai tts returned empty audio")
	}

	log.Printf("[OpenAITTS] Received %d bytes of PCM", len(samples))

	return &TTSResponse{
		Samples:    samples,
		SampleRate: openaiTTSSampleRate,
	}, nil
}
