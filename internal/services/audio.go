package services

import (
	"bufio"
	"encoding/binary"
	"log"
	"os"
)

// ---------------------------------------------------------------------------
// Audio merger: concatenates the per-chunk PCM segments, in order, and
// materializes the combined stream as a WAV file: the one container the
// encoder requires as audio input. Segments are owned by the caller and
// should be released after the merge.
// ---------------------------------------------------------------------------

const (
	wavNumChannels   = 1  // mono
	wavBitsPerSample = 16 // 16-bit linear PCM
)

// MergeSegments writes the ordered PCM segments as a single WAV file at
// outputPath. Ordering is the caller's responsibility and must match chunk
// order. Any failure is a *MergeError and fatal to the task.
func MergeSegments(segments [][]byte, sampleRate int, outputPath string) error {
	var total int
	for _, seg := range segments {
		total += len(seg)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return &MergeError{Diagnostic: err.Error()}
	}

	w := bufio.NewWriter(f)
	if err := writeWAVHeader(w, total, sampleRate); err != nil {
		f.Close()
		os.Remove(outputPath)
		return &MergeError{Diagnostic: err.Error()}
	}

	for _, seg := range segments {
		if _, err := w.Write(seg); err != nil {
			f.Close()
			os.Remove(outputPath)
			return &MergeError{Diagnostic: err.Error()}
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(outputPath)
		return &MergeError{Diagnostic: err.Error()}
	}
	if err := f.Close(); err != nil {
		os.Remove(outputPath)
		return &MergeError{Diagnostic: err.Error()}
	}

	log.Printf("[Audio] Merged %d segment(s) into %s (%d PCM bytes at %dHz)", len(segments), outputPath, total, sampleRate)
	return nil
}

// writeWAVHeader emits the 44-byte RIFF/WAVE header for a PCM data chunk of
// dataLen bytes.
func writeWAVHeader(w *bufio.Writer, dataLen, sampleRate int) error {
	byteRate := sampleRate * wavNumChannels * wavBitsPerSample / 8
	blockAlign := wavNumChannels * wavBitsPerSample / 8

	// RIFF chunk
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36+dataLen)); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt subchunk
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	for _, v := range []interface{}{
		uint32(16), // subchunk size
		uint16(1),  // PCM format
		uint16(wavNumChannels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(wavBitsPerSample),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// data subchunk
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(dataLen))
}
