package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini Text-to-Speech Service
// Uses the Google Gen AI SDK to convert narration text into speech. The
// response is inline PCM data (16-bit linear, mono, 24kHz), exactly what
// the merger wants, no container to strip.
// ---------------------------------------------------------------------------

const (
	geminiTTSModel        = "gemini-2.5-flash-preview-tts"
	geminiTTSDefaultVoice = "Kore"

	// Gemini TTS returns audio/L16;codec=pcm;rate=24000. Fall back to this
	// rate when the MIME type omits it.
	geminiTTSSampleRate = 24000
)

// GeminiTTS handles text-to-speech via Gemini. A client is created per call,
// so a per-request API key costs nothing extra.
type GeminiTTS struct {
	apiKey string
	voice  string
}

// Ensure GeminiTTS implements TTSService at compile time.
var _ TTSService = (*GeminiTTS)(nil)

// NewGeminiTTS creates a Gemini TTS service. voice is the prebuilt voice
// name (empty string defaults to Kore).
func NewGeminiTTS(apiKey, voice string) *GeminiTTS {
	if voice == "" {
		voice = geminiTTSDefaultVoice
	}
	return &GeminiTTS{
		apiKey: apiKey,
		voice:  voice,
	}
}

// Synthesize converts text to raw PCM samples.
// Implements the TTSService interface.
func (s *GeminiTTS) Synthesize(ctx context.Context, text string) (*TTSResponse, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: s.voice,
				},
			},
		},
	}

	log.Printf("[GeminiTTS] Synthesizing (voice=%s, textLen=%d)", s.voice, len(text))

	resp, err := client.Models.GenerateContent(ctx, geminiTTSModel, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("gemini tts request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in gemini tts response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}

		rate := parsePCMRate(part.InlineData.MIMEType)
		log.Printf("[GeminiTTS] Received %d bytes of PCM (%s)", len(part.InlineData.Data), part.InlineData.MIMEType)

		return &TTSResponse{
			Samples:    part.InlineData.Data,
			SampleRate: rate,
		}, nil
	}

	return nil, fmt.Errorf("no audio data found in gemini tts response")
}

// parsePCMRate extracts the sample rate from a MIME type such as
// "audio/L16;codec=pcm;rate=24000".
func parsePCMRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		param = strings.TrimSpace(param)
		if v, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return geminiTTSSampleRate
}
