// Package audio holds the audio side of a recording: the microphone contract and
// the captured track.
package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrNotStarted is returned when stopping a microphone that is not recording.
	ErrNotStarted = errors.New("microphone is not recording")
	// ErrAlreadyStarted is returned when starting a microphone twice.
	ErrAlreadyStarted = errors.New("microphone is already recording")
	// ErrUnsupportedFormat is returned for audio file formats that can't be written.
	ErrUnsupportedFormat = errors.New("unsupported audio file format")
)

// Microphone records audio alongside a camera. Implementations must be safe for
// use from several goroutines.
type Microphone interface {
	Start() error
	Stop() error
	IsStarted() bool
	// Recording returns what was captured between the last Start and Stop.
	Recording() (*Track, error)
}

// Track is interleaved signed 16 bit PCM.
type Track struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames, one sample per channel each.
func (t *Track) Frames() int {
	if t.Channels <= 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

// Duration returns the playback length of the track.
func (t *Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(t.Frames()) * time.Second / time.Duration(t.SampleRate)
}

// Save writes the track to path. The format is taken from the file extension;
// only ".wav" is supported.
func (t *Track) Save(fs afero.Fs, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
