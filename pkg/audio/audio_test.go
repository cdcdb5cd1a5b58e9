package audio_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expkit/camrec/pkg/audio"
	"github.com/expkit/camrec/pkg/audio/audiotest"
)

func TestWAVRoundTrip(t *testing.T) {
	track := &audio.Track{
		SampleRate: 8000,
		Channels:   2,
		Samples:    []int16{0, 1, -1, 32767, -32768, 42},
	}

	var buf bytes.Buffer
	require.NoError(t, audio.WriteWAV(&buf, track))
	assert.Equal(t, 44+len(track.Samples)*2, buf.Len())
	assert.Equal(t, "RIFF", buf.String()[:4])
	assert.Equal(t, "WAVE", buf.String()[8:12])

	decoded, err := audio.ReadWAV(&buf)
	require.NoError(t, err)
	assert.Equal(t, track, decoded)
}

func TestWAVRejectsEmptyFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, audio.WriteWAV(&buf, &audio.Track{}))
}

func TestTrackDuration(t *testing.T) {
	track := &audio.Track{SampleRate: 48000, Channels: 2, Samples: make([]int16, 48000)}
	assert.Equal(t, 24000, track.Frames())
	assert.Equal(t, 500*time.Millisecond, track.Duration())
	assert.Zero(t, (&audio.Track{}).Duration())
}

func TestTrackSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	track := &audio.Track{SampleRate: 16000, Channels: 1, Samples: []int16{1, 2, 3}}

	require.NoError(t, track.Save(fs, "/tmp/clip.wav"))
	f, err := fs.Open("/tmp/clip.wav")
	require.NoError(t, err)
	defer f.Close()

	decoded, err := audio.ReadWAV(f)
	require.NoError(t, err)
	assert.Equal(t, track.Samples, decoded.Samples)

	assert.ErrorIs(t, track.Save(fs, "/tmp/clip.mp3"), audio.ErrUnsupportedFormat)
}

func TestToneMicrophone(t *testing.T) {
	var mic audio.Microphone = audiotest.NewTone()

	assert.ErrorIs(t, mic.Stop(), audio.ErrNotStarted)
	require.NoError(t, mic.Start())
	assert.True(t, mic.IsStarted())
	assert.ErrorIs(t, mic.Start(), audio.ErrAlreadyStarted)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, mic.Stop())
	assert.False(t, mic.IsStarted())

	track, err := mic.Recording()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, track.Duration(), 20*time.Millisecond)
	assert.Equal(t, 1, track.Channels)
}
