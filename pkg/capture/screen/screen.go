// Package screen captures the contents of a display as if it were a camera.
package screen

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
)

// Name is the backend name the screen source registers under.
const Name = device.LibraryScreen

// DefaultFrameRate is the rate advertised for every display.
const DefaultFrameRate = 10

// Register adds the screen backend to m.
func Register(m *capture.Manager) error {
	return m.Register(Name, New)
}

// Query is a device.Query listing the active displays.
func Query(ctx context.Context) ([]device.Descriptor, error) {
	n := screenshot.NumActiveDisplays()
	descs := make([]device.Descriptor, 0, n)
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		descs = append(descs, device.Descriptor{
			Index:       i,
			Name:        fmt.Sprintf("Display %d", i),
			Path:        fmt.Sprint(i),
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			FrameRate:   DefaultFrameRate,
			PixelFormat: frame.FormatRGB24,
			API:         device.APIScreen,
			Library:     device.LibraryScreen,
		})
	}
	return descs, nil
}

type screen struct {
	desc  device.Descriptor
	grab  func(displayIndex int) (*image.RGBA, error)
	tick  *time.Ticker
	start time.Time
	first bool
}

// New is a capture.Factory.
func New(desc device.Descriptor, _ capture.Config) (capture.Source, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", desc.Width, desc.Height)
	}
	return &screen{desc: desc, grab: screenshot.CaptureDisplay}, nil
}

func (s *screen) Open(ctx context.Context) (capture.Metadata, error) {
	if s.desc.Index >= screenshot.NumActiveDisplays() {
		return capture.Metadata{}, fmt.Errorf("display %d is not active", s.desc.Index)
	}

	rate := s.desc.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	s.tick = time.NewTicker(time.Duration(float64(time.Second) / rate))
	s.start = time.Now()
	s.first = true

	return capture.Metadata{
		Width:     s.desc.Width,
		Height:    s.desc.Height,
		FrameRate: rate,
		Start:     s.start,
	}, nil
}

func (s *screen) Read(ctx context.Context) (capture.Raw, error) {
	if !s.first {
		select {
		case <-ctx.Done():
			return capture.Raw{}, ctx.Err()
		case <-s.tick.C:
		}
	}
	s.first = false

	img, err := s.grab(s.desc.Index)
	if err != nil {
		return capture.Raw{}, err
	}
	pts := time.Since(s.start)

	return capture.Raw{
		Pix:    frame.Scale(img, s.desc.Width, s.desc.Height, nil).Pix,
		Width:  s.desc.Width,
		Height: s.desc.Height,
		PTS:    pts,
	}, nil
}

func (s *screen) Close() error {
	if s.tick != nil {
		s.tick.Stop()
	}
	return nil
}
