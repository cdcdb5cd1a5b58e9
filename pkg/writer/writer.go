/*
Package writer encodes frames into a video file.

A Writer hands frames to an Encoder running on its own goroutine, so adding a
frame never waits for the encoder. Open blocks until the encoder has started.
*/
package writer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/frame"
)

var logger = logging.NewLogger("camrec/writer")

var (
	// ErrNotOpen is returned when frames are added to a writer that is not open.
	ErrNotOpen = errors.New("writer is not open")
	// ErrAlreadyOpen is returned when a writer is opened twice.
	ErrAlreadyOpen = errors.New("writer is already open")
)

// DefaultBuffer is the number of frames a Writer queues for its encoder.
const DefaultBuffer = 64

// Params describes the video being written.
type Params struct {
	Width     int
	Height    int
	FrameRate float64
	// Codec is interpreted by the encoder, e.g. "libx264" for ffmpeg or "mp4v" for OpenCV.
	Codec string
}

// Validate checks that the output size and rate are usable.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", p.Width, p.Height)
	}
	if !(p.FrameRate > 0) {
		return fmt.Errorf("invalid frame rate %v", p.FrameRate)
	}
	return nil
}

// FrameSize is the number of RGB24 bytes per frame.
func (p Params) FrameSize() int {
	return p.Width * p.Height * 3
}

// Writer is a video file being written.
type Writer interface {
	// Open starts the encoder and waits until it accepts frames.
	Open() error
	// AddFrame queues f for encoding. It reports the first encoder failure.
	AddFrame(f *frame.Frame) error
	// Close flushes every queued frame and finalizes the file.
	Close() error
	// Path is the file being written.
	Path() string
}

// Factory creates a Writer for path.
type Factory func(path string, p Params) (Writer, error)

// Encoder does the blocking work behind a Writer. Its methods are called from a
// single goroutine.
type Encoder interface {
	Start() error
	Encode(f *frame.Frame) error
	Finish() error
}

type asyncWriter struct {
	path   string
	enc    Encoder
	buffer int

	// mu serializes sends on frames with closing it.
	mu     sync.Mutex
	frames chan *frame.Frame
	done   chan struct{}
	opened bool
	closed bool

	errMu sync.Mutex
	err   error
}

// New wraps enc into a Writer queueing up to buffer frames. buffer <= 0 uses
// DefaultBuffer.
func New(path string, enc Encoder, buffer int) Writer {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &asyncWriter{path: path, enc: enc, buffer: buffer}
}

func (w *asyncWriter) Path() string {
	return w.path
}

func (w *asyncWriter) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.opened {
		return ErrAlreadyOpen
	}

	ready := make(chan error, 1)
	w.frames = make(chan *frame.Frame, w.buffer)
	w.done = make(chan struct{})
	go w.run(ready)

	if err := <-ready; err != nil {
		return fmt.Errorf("failed to start writer for %s: %w", w.path, err)
	}
	w.opened = true
	return nil
}

func (w *asyncWriter) run(ready chan<- error) {
	defer close(w.done)

	if err := w.enc.Start(); err != nil {
		ready <- err
		return
	}
	ready <- nil

	for f := range w.frames {
		if w.failure() != nil {
			continue
		}
		if err := w.enc.Encode(f); err != nil {
			logger.Errorf("failed to encode frame %d into %s: %v", f.Index, w.path, err)
			w.fail(err)
		}
	}

	if err := w.enc.Finish(); err != nil {
		w.fail(err)
	}
}

func (w *asyncWriter) AddFrame(f *frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.opened || w.closed {
		return ErrNotOpen
	}
	if err := w.failure(); err != nil {
		return err
	}
	w.frames <- f
	return nil
}

func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.opened || w.closed {
		w.mu.Unlock()
		return ErrNotOpen
	}
	w.closed = true
	close(w.frames)
	w.mu.Unlock()

	<-w.done
	return w.failure()
}

func (w *asyncWriter) failure() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
