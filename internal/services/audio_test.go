package services

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSegmentsWritesValidWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "narration.wav")
	segments := [][]byte{
		{0x01, 0x02, 0x03, 0x04},
		{0x05, 0x06},
	}

	require.NoError(t, MergeSegments(segments, 24000, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, data, 44+6)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(36+6), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(24000*2), binary.LittleEndian.Uint32(data[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]), "bits per sample")
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(data[40:44]))
}

func TestMergeSegmentsPreservesOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "narration.wav")
	segments := [][]byte{
		[]byte("first-"),
		[]byte("second-"),
		[]byte("third"),
	}

	require.NoError(t, MergeSegments(segments, 24000, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "first-second-third", string(data[44:]))
}

func TestMergeSegmentsEmptyInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "narration.wav")

	require.NoError(t, MergeSegments(nil, 24000, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, data, 44, "header only")
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[40:44]))
}

func TestMergeSegmentsBadPathReturnsMergeError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "narration.wav")

	err := MergeSegments([][]byte{{0x00}}, 24000, out)

	require.Error(t, err)
	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.NotEmpty(t, mergeErr.Diagnostic)
}
