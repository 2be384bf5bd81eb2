package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/stillcast/internal/models"
)

// ---------------------------------------------------------------------------
// Render stage: delegates entirely to ffmpeg. Parameters are derived solely
// from the quality profile, so two renders with the same inputs and profile
// are identical invocations regardless of environment.
// ---------------------------------------------------------------------------

// Encoder is the capability interface for the external encoding engine.
// The orchestrator is tested against a fake implementation.
type Encoder interface {
	// Render produces outputPath from a still image looped over the audio
	// track. A failure is a *RenderError carrying the encoder's diagnostic
	// stream verbatim.
	Render(ctx context.Context, imagePath, audioPath, outputPath string, profile models.QualityProfile) error
}

type FFmpegService struct{}

// Ensure FFmpegService implements Encoder at compile time.
var _ Encoder = (*FFmpegService)(nil)

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

// buildRenderArgs maps a quality profile onto the ffmpeg argument list.
// Split out from Render so the derivation is testable without an encoder.
func buildRenderArgs(imagePath, audioPath, outputPath string, profile models.QualityProfile) []string {
	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
	}

	if profile.TuneStillImage {
		args = append(args, "-tune", "stillimage")
	}

	args = append(args,
		"-preset", profile.Preset,
		"-crf", strconv.Itoa(profile.CRF),
		"-c:a", "aac",
		"-b:a", profile.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest", // End when the shorter stream (audio) ends
		"-vf", fmt.Sprintf("scale=-2:%d,fps=%d", profile.ScaleHeight, profile.FPS),
		outputPath,
	)

	return args
}

// Render loops the still image over the audio track and encodes the result.
// Implements the Encoder interface.
func (s *FFmpegService) Render(ctx context.Context, imagePath, audioPath, outputPath string, profile models.QualityProfile) error {
	args := buildRenderArgs(imagePath, audioPath, outputPath, profile)

	log.Printf("[FFmpeg] Rendering %s (profile=%s, preset=%s, crf=%d, %dp/%dfps)",
		filepath.Base(outputPath), profile.Name, profile.Preset, profile.CRF, profile.ScaleHeight, profile.FPS)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// The diagnostic stream goes into the ledger verbatim; keep the exec
		// error too in case ffmpeg died before writing anything.
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return &RenderError{Diagnostic: diag}
	}

	return nil
}
