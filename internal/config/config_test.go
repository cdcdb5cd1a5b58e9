package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", c.FFmpeg)
	assert.Equal(t, 4.0, c.BufferSeconds)
	assert.Equal(t, 0, c.QueueCapacity)
	assert.Equal(t, "ffmpeg", c.Writer)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAMREC_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("CAMREC_QUEUE_CAPACITY", "120")
	t.Setenv("CAMREC_WRITER", "opencv")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", c.FFmpeg)
	assert.Equal(t, 120, c.QueueCapacity)
	assert.Equal(t, "opencv", c.Writer)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CAMREC_WRITER", "gif")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CAMREC_WRITER", "ffmpeg")
	t.Setenv("CAMREC_BUFFER_SECONDS", "0")
	_, err = Load()
	assert.Error(t, err)
}
