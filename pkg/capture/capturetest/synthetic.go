// Package capturetest provides a synthetic capture backend for testing.
package capturetest

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
)

// Name is the backend name the synthetic source registers under.
const Name = device.LibrarySynthetic

// Options shapes the frames a synthetic source produces.
type Options struct {
	// Frames ends the stream with io.EOF after that many frames. Zero means endless.
	Frames int
	// FailAfter ends the stream with Err after that many frames. Zero disables it.
	FailAfter int
	Err       error
	// RepeatEvery makes every n-th frame reuse the previous timestamp.
	RepeatEvery int
	// OpenErr makes Open fail.
	OpenErr error
}

// Descriptors returns the devices exposed by the synthetic backend.
func Descriptors() []device.Descriptor {
	return []device.Descriptor{
		{
			Index:       0,
			Name:        "Synthetic Camera",
			Path:        "synthetic:0",
			Width:       640,
			Height:      480,
			FrameRate:   30,
			PixelFormat: frame.FormatRGB24,
			API:         device.APISynthetic,
			Library:     device.LibrarySynthetic,
		},
		{
			Index:       0,
			Name:        "Synthetic Camera",
			Path:        "synthetic:0",
			Width:       320,
			Height:      240,
			FrameRate:   60,
			PixelFormat: frame.FormatRGB24,
			API:         device.APISynthetic,
			Library:     device.LibrarySynthetic,
		},
	}
}

// Query is a device.Query listing Descriptors.
func Query(context.Context) ([]device.Descriptor, error) {
	return Descriptors(), nil
}

// Register adds the synthetic backend to m.
func Register(m *capture.Manager) error {
	return m.Register(Name, New)
}

// New is a capture.Factory producing endless colour bars.
func New(desc device.Descriptor, _ capture.Config) (capture.Source, error) {
	return NewSource(desc, Options{}), nil
}

// Factory returns a capture.Factory producing sources configured by opts.
func Factory(opts Options) capture.Factory {
	return func(desc device.Descriptor, _ capture.Config) (capture.Source, error) {
		return NewSource(desc, opts), nil
	}
}

// Source is a synthetic capture.Source. It is exported so tests can inspect it.
type Source struct {
	desc device.Descriptor
	opts Options

	tick   *time.Ticker
	start  time.Time
	base   []byte
	random *rand.Rand
	count  int
	last   time.Duration
	opened atomic.Bool
	closed atomic.Bool
}

// NewSource creates a synthetic source for desc.
func NewSource(desc device.Descriptor, opts Options) *Source {
	return &Source{desc: desc, opts: opts}
}

// Opened reports whether Open succeeded.
func (s *Source) Opened() bool {
	return s.opened.Load()
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	return s.closed.Load()
}

func (s *Source) Open(ctx context.Context) (capture.Metadata, error) {
	if s.opts.OpenErr != nil {
		return capture.Metadata{}, s.opts.OpenErr
	}
	if s.desc.Width <= 0 || s.desc.Height <= 0 {
		return capture.Metadata{}, fmt.Errorf("invalid frame size %dx%d", s.desc.Width, s.desc.Height)
	}

	rate := s.desc.FrameRate
	if rate <= 0 {
		rate = 30
	}
	s.base = colorBars(s.desc.Width, s.desc.Height)
	s.random = rand.New(rand.NewSource(0))
	s.tick = time.NewTicker(time.Duration(float64(time.Second) / rate))
	s.start = time.Now()
	s.opened.Store(true)

	return capture.Metadata{
		Width:     s.desc.Width,
		Height:    s.desc.Height,
		FrameRate: rate,
		Start:     s.start,
		Extra:     map[string]any{"format": frame.FormatRGB24.String()},
	}, nil
}

func (s *Source) Read(ctx context.Context) (capture.Raw, error) {
	if s.opts.Frames > 0 && s.count >= s.opts.Frames {
		return capture.Raw{}, io.EOF
	}
	if s.opts.FailAfter > 0 && s.count >= s.opts.FailAfter {
		return capture.Raw{}, s.opts.Err
	}

	// The first frame is available immediately, later ones follow the frame rate.
	if s.count > 0 {
		select {
		case <-ctx.Done():
			return capture.Raw{}, ctx.Err()
		case <-s.tick.C:
		}
	}

	pts := time.Since(s.start)
	if s.opts.RepeatEvery > 0 && s.count > 0 && s.count%s.opts.RepeatEvery == 0 {
		pts = s.last
	}
	s.last = pts
	s.count++

	return capture.Raw{
		Pix:    s.render(),
		Width:  s.desc.Width,
		Height: s.desc.Height,
		PTS:    pts,
	}, nil
}

func (s *Source) Close() error {
	if s.tick != nil {
		s.tick.Stop()
	}
	s.closed.Store(true)
	return nil
}

func (s *Source) render() []byte {
	w, h := s.desc.Width, s.desc.Height
	pix := make([]byte, len(s.base))
	copy(pix, s.base)

	hColorBarEnd := h * 3 / 4
	wGradationEnd := w * 5 / 7
	for y := hColorBarEnd; y < h; y++ {
		for x := wGradationEnd; x < w; x++ {
			// Noise
			v := uint8(s.random.Int31n(2) * 255)
			i := (y*w + x) * 3
			pix[i], pix[i+1], pix[i+2] = v, v, v
		}
	}
	return pix
}

var barColors = [][3]byte{
	{235, 128, 128},
	{210, 16, 146},
	{170, 166, 16},
	{145, 54, 34},
	{107, 202, 222},
	{82, 90, 240},
	{41, 240, 110},
}

// colorBars renders the static part of the test pattern in RGB24.
func colorBars(w, h int) []byte {
	pix := make([]byte, w*h*3)
	hColorBarEnd := h * 3 / 4
	wGradationEnd := w * 5 / 7

	set := func(x, y int, yy, cb, cr uint8) {
		r, g, b := color.YCbCrToRGB(yy, cb, cr)
		i := (y*w + x) * 3
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}

	for y := 0; y < hColorBarEnd; y++ {
		// Color bar
		for x := 0; x < w; x++ {
			c := barColors[x*7/w]
			set(x, y, uint8(uint16(c[0])*75/100), c[1], c[2])
		}
	}
	for y := hColorBarEnd; y < h; y++ {
		// Gray gradation
		for x := 0; x < wGradationEnd; x++ {
			set(x, y, uint8(x*255/wGradationEnd), 128, 128)
		}
	}
	return pix
}
