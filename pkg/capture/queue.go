package capture

import (
	"sync"

	"github.com/expkit/camrec/pkg/frame"
)

// queue hands frames from the acquisition goroutine to the consumer. A terminal
// error travels through the same queue and is reported, after every frame that
// preceded it, on each drain.
type queue struct {
	mu       sync.Mutex
	frames   []*frame.Frame
	err      error
	capacity int
	dropped  uint64
}

// newQueue creates a queue. capacity <= 0 means unbounded; otherwise the oldest
// frame is dropped to make room for a new one.
func newQueue(capacity int) *queue {
	return &queue{capacity: capacity}
}

// push appends f and reports whether an older frame had to be dropped.
func (q *queue) push(f *frame.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dropped bool
	if q.capacity > 0 && len(q.frames) >= q.capacity {
		n := copy(q.frames, q.frames[1:])
		q.frames[n] = nil
		q.frames = q.frames[:n]
		q.dropped++
		dropped = true
	}
	q.frames = append(q.frames, f)
	return dropped
}

// fail records the terminal error. Only the first error is kept.
func (q *queue) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err == nil {
		q.err = err
	}
}

// drain removes and returns every queued frame in arrival order, together with
// the terminal error if the producer has stopped.
func (q *queue) drain() ([]*frame.Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	frames := q.frames
	q.frames = nil
	return frames, q.err
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *queue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
