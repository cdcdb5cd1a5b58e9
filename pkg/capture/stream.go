package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
)

var logger = logging.NewLogger("camrec/capture")

// StreamOptions tunes a Stream.
type StreamOptions struct {
	// QueueCapacity bounds the frame queue. Zero keeps every frame until it is
	// drained; a positive value drops the oldest frame when the queue is full.
	QueueCapacity int
	// PollInterval overrides the pause between two reads. Zero means half the
	// frame period reported by the source.
	PollInterval time.Duration
}

// PollInterval returns half the frame period for rate, or DefaultPollInterval
// when rate is unknown.
func PollInterval(rate float64) time.Duration {
	if rate <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(float64(time.Second) / rate / 2)
}

// DefaultPollInterval is used for sources that don't report a frame rate.
const DefaultPollInterval = 10 * time.Millisecond

// Stream is the capture interface of one device. It is opened once, polled for
// frames by a single consumer and closed once.
type Stream struct {
	id    string
	desc  device.Descriptor
	src   Source
	opts  StreamOptions
	queue *queue

	mu       sync.Mutex
	state    State
	meta     Metadata
	cancel   context.CancelFunc
	done     chan struct{}
	closeErr error

	skipped atomic.Uint64
	onOpen  func(*Stream)
	onClose func(*Stream)
}

// NewStream wraps src. The stream does not touch the device until Open.
func NewStream(src Source, desc device.Descriptor, opts StreamOptions) *Stream {
	return &Stream{
		desc:  desc,
		src:   src,
		opts:  opts,
		queue: newQueue(opts.QueueCapacity),
		state: StateIdle,
	}
}

// ID returns the identifier assigned by the Manager, or "" for streams built directly.
func (s *Stream) ID() string {
	return s.id
}

// Descriptor returns the descriptor the stream was built for.
func (s *Stream) Descriptor() device.Descriptor {
	return s.desc
}

// Open starts the acquisition goroutine and blocks until the first frame and the
// stream metadata are available. It fails with ErrAlreadyOpen when called twice.
func (s *Stream) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.state.Update(StateOpened, func() error {
		ctx, cancel := context.WithCancel(context.Background())
		ready := make(chan error, 1)
		done := make(chan struct{})

		go s.acquire(ctx, ready, done)

		if err := <-ready; err != nil {
			cancel()
			<-done
			return err
		}
		s.cancel = cancel
		s.done = done
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debugf("opened %s (%dx%d@%vfps)", s.desc.Name, s.meta.Width, s.meta.Height, s.meta.FrameRate)
	if s.onOpen != nil {
		s.onOpen(s)
	}
	return nil
}

// IsOpen reports whether Open has completed and Close has not been called.
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpened
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metadata returns the metadata reported by the source when the stream opened.
func (s *Stream) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Time returns the time elapsed since the start of the stream, or 0 when the
// stream has not been opened.
func (s *Stream) Time() time.Duration {
	s.mu.Lock()
	start := s.meta.Start
	s.mu.Unlock()

	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// Frames drains every queued frame in acquisition order. When the acquisition
// goroutine has stopped, the error that stopped it is returned along with the
// remaining frames; io.EOF means the source reached its end.
func (s *Stream) Frames() ([]*frame.Frame, error) {
	if !s.IsOpen() {
		return nil, ErrNotOpen
	}
	return s.queue.drain()
}

// RecentFrame drains the queue and returns only the newest frame. It returns
// nil when no frame arrived since the last call.
func (s *Stream) RecentFrame() (*frame.Frame, error) {
	frames, err := s.Frames()
	if len(frames) == 0 {
		return nil, err
	}
	return frames[len(frames)-1], err
}

// Buffered returns the number of frames waiting in the queue.
func (s *Stream) Buffered() int {
	return s.queue.len()
}

// Dropped returns the number of frames discarded because the queue was full.
func (s *Stream) Dropped() uint64 {
	return s.queue.droppedCount()
}

// Skipped returns the number of frames discarded for a non increasing timestamp.
func (s *Stream) Skipped() uint64 {
	return s.skipped.Load()
}

// Close stops the acquisition goroutine, waits for it to exit and releases the
// device. It fails with ErrNotOpen unless the stream is open.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.state.Update(StateClosed, func() error {
		s.cancel()
		<-s.done
		return nil
	})
	if err != nil {
		return err
	}

	if s.onClose != nil {
		s.onClose(s)
	}
	return s.closeErr
}

func (s *Stream) acquire(ctx context.Context, ready chan<- error, done chan<- struct{}) {
	defer close(done)

	meta, err := s.src.Open(ctx)
	if err != nil {
		ready <- fmt.Errorf("failed to open %s: %w", s.desc.Name, err)
		return
	}
	defer func() {
		if err := s.src.Close(); err != nil {
			logger.Warnf("failed to release %s: %v", s.desc.Name, err)
			s.closeErr = err
		}
	}()

	if meta.Start.IsZero() {
		meta.Start = time.Now()
	}
	// Open holds s.mu until ready is signalled, so meta is published by the send.
	s.meta = meta

	interval := s.opts.PollInterval
	if interval <= 0 {
		interval = PollInterval(meta.FrameRate)
	}

	var (
		index int
		last  time.Duration
	)
	accept := func(raw Raw) {
		last = raw.PTS
		f := &frame.Frame{
			Index:    index,
			AbsTime:  raw.PTS,
			Width:    raw.Width,
			Height:   raw.Height,
			Pix:      raw.Pix,
			Metadata: raw.Metadata,
			Library:  s.desc.Library,
		}
		index++
		if s.queue.push(f) {
			logger.Debugf("queue full, dropped oldest frame of %s", s.desc.Name)
		}
	}

	first, err := s.src.Read(ctx)
	if err != nil {
		ready <- fmt.Errorf("failed to read first frame from %s: %w", s.desc.Name, err)
		return
	}
	accept(first)
	ready <- nil

	for {
		if !sleep(ctx, interval) {
			return
		}

		raw, err := s.src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Infof("%s reached end of stream", s.desc.Name)
			} else {
				logger.Errorf("failed to read from %s: %v", s.desc.Name, err)
			}
			s.queue.fail(err)
			return
		}

		if raw.PTS <= last {
			s.skipped.Add(1)
			logger.Tracef("skipped frame with timestamp %v <= %v", raw.PTS, last)
			continue
		}
		accept(raw)
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
