package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name        string
		wantPreset  string
		wantCRF     int
		wantBitrate string
		wantHeight  int
		wantFPS     int
		wantTune    bool
	}{
		{"test", "ultrafast", 28, "128k", 480, 15, false},
		{"medium", "medium", 23, "192k", 720, 30, true},
		{"best", "slow", 18, "320k", 1080, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProfileByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.wantPreset, p.Preset)
			assert.Equal(t, tt.wantCRF, p.CRF)
			assert.Equal(t, tt.wantBitrate, p.AudioBitrate)
			assert.Equal(t, tt.wantHeight, p.ScaleHeight)
			assert.Equal(t, tt.wantFPS, p.FPS)
			assert.Equal(t, tt.wantTune, p.TuneStillImage)
		})
	}
}

func TestProfileByNameEmptyUsesDefault(t *testing.T) {
	p, err := ProfileByName("")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuality, p.Name)
}

func TestProfileByNameUnknown(t *testing.T) {
	_, err := ProfileByName("4k-hdr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4k-hdr")
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskStatusQueued.Terminal())
	assert.False(t, TaskStatusInProgress.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
}
