// Package audiotest provides a fake microphone for testing.
package audiotest

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/expkit/camrec/pkg/audio"
)

// Tone is an audio.Microphone that records a 480 Hz sine wave for as long as it
// is started.
type Tone struct {
	SampleRate int
	Channels   int
	// StartErr makes Start fail.
	StartErr error

	mu      sync.Mutex
	started bool
	begin   time.Time
	track   *audio.Track
	starts  int
}

// NewTone creates a mono 48 kHz tone.
func NewTone() *Tone {
	return &Tone{SampleRate: 48000, Channels: 1}
}

func (t *Tone) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.StartErr != nil {
		return t.StartErr
	}
	if t.started {
		return audio.ErrAlreadyStarted
	}
	t.started = true
	t.begin = time.Now()
	t.track = nil
	t.starts++
	return nil
}

func (t *Tone) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return audio.ErrNotStarted
	}
	t.started = false
	t.track = t.render(time.Since(t.begin))
	return nil
}

func (t *Tone) IsStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *Tone) Recording() (*audio.Track, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.track == nil {
		return nil, errors.New("nothing recorded")
	}
	return t.track, nil
}

// Starts returns how many times Start succeeded.
func (t *Tone) Starts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starts
}

func (t *Tone) render(d time.Duration) *audio.Track {
	var sin [100]int16
	for i := range sin {
		sin[i] = int16(math.Sin(2*math.Pi*float64(i)/100) * 0.25 * math.MaxInt16)
	}

	n := int(int64(t.SampleRate) * int64(d) / int64(time.Second))
	samples := make([]int16, n*t.Channels)
	for i := 0; i < n; i++ {
		for ch := 0; ch < t.Channels; ch++ {
			samples[i*t.Channels+ch] = sin[i%len(sin)]
		}
	}
	return &audio.Track{SampleRate: t.SampleRate, Channels: t.Channels, Samples: samples}
}
