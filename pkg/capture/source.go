/*
Package capture turns a camera backend into a stream of frames.

A Source wraps one native capture API. A Stream owns exactly one Source and one
acquisition goroutine that pulls frames from it, enforces strictly increasing
timestamps and hands frames to the consumer through a queue. Stream.Open blocks
until the goroutine has produced the first frame and the stream metadata.
*/
package capture

import (
	"context"
	"time"

	"github.com/expkit/camrec/pkg/device"
)

// Raw is a frame as read from a Source, before the stream assigns its index.
type Raw struct {
	// Pix holds RGB24 pixels. The Source must not reuse the slice.
	Pix    []byte
	Width  int
	Height int
	// PTS is the presentation time relative to Metadata.Start.
	PTS      time.Duration
	Metadata map[string]any
}

// Metadata describes an opened Source.
type Metadata struct {
	Width     int
	Height    int
	FrameRate float64
	// Start is the wall clock time of PTS zero.
	Start time.Time
	// Extra carries backend specific information such as the negotiated format.
	Extra map[string]any
}

// Source is implemented by every capture backend. All methods are called from the
// acquisition goroutine of a single Stream.
type Source interface {
	// Open acquires the native device and reports the stream metadata. ctx is
	// cancelled when the stream closes.
	Open(ctx context.Context) (Metadata, error)
	// Read blocks until the next frame. io.EOF reports the end of the stream.
	Read(ctx context.Context) (Raw, error)
	// Close releases the native device.
	Close() error
}

// Config carries the settings backends need to build a Source.
type Config struct {
	// FFmpeg is the ffmpeg executable path.
	FFmpeg string
	// BufferSeconds sizes real-time input buffers.
	BufferSeconds float64
}

// Factory builds a Source for a descriptor. Factories are registered on a Manager
// under a backend name.
type Factory func(desc device.Descriptor, cfg Config) (Source, error)
