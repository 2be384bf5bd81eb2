package services

import "fmt"

// Stage errors carry the external collaborator's diagnostic verbatim. The
// orchestrator records Error() output as the task's failure reason; none of
// these ever escape it as a panic.

// SynthesisError is a failed TTS call for one chunk. Chunk and Total are
// 1-based so the ledger message reads naturally ("chunk 2/3").
type SynthesisError struct {
	Chunk      int
	Total      int
	Diagnostic string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed on chunk %d/%d: %s", e.Chunk, e.Total, e.Diagnostic)
}

// MergeError is a failure to materialize the combined audio file.
type MergeError struct {
	Diagnostic string
}

func (e *MergeError) Error() string {
	return "audio merge failed: " + e.Diagnostic
}

// RenderError is a failed encoder invocation. Diagnostic is the encoder's
// stderr, captured verbatim and not interpreted.
type RenderError struct {
	Diagnostic string
}

func (e *RenderError) Error() string {
	return "video render failed: " + e.Diagnostic
}
