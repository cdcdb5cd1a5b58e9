package capture

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/expkit/camrec/pkg/frame"
)

func TestQueueUnbounded(t *testing.T) {
	q := newQueue(0)
	for i := 0; i < 100; i++ {
		if q.push(&frame.Frame{Index: i}) {
			t.Fatalf("expected unbounded queue to keep frame %d", i)
		}
	}

	frames, err := q.drain()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(frames) != 100 {
		t.Fatalf("expected 100 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("expected frame %d at position %d, got %d", i, i, f.Index)
		}
	}

	if n := q.len(); n != 0 {
		t.Errorf("expected empty queue after drain, got %d", n)
	}
}

func TestQueueDropsOldest(t *testing.T) {
	q := newQueue(3)
	for i := 0; i < 5; i++ {
		q.push(&frame.Frame{Index: i})
	}

	if d := q.droppedCount(); d != 2 {
		t.Errorf("expected 2 dropped frames, got %d", d)
	}

	frames, _ := q.drain()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i+2 {
			t.Errorf("expected frame %d, got %d", i+2, f.Index)
		}
	}
}

func TestQueueErrorIsSticky(t *testing.T) {
	q := newQueue(0)
	q.push(&frame.Frame{Index: 0})
	q.fail(io.EOF)
	q.fail(errors.New("later"))

	frames, err := q.drain()
	if len(frames) != 1 {
		t.Errorf("expected the frame queued before the error, got %d frames", len(frames))
	}
	if err != io.EOF {
		t.Errorf("expected %v, got %v", io.EOF, err)
	}

	frames, err = q.drain()
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
	if err != io.EOF {
		t.Errorf("expected error to be reported again, got %v", err)
	}
}

func TestPollInterval(t *testing.T) {
	cases := map[string]struct {
		rate     float64
		expected time.Duration
	}{
		"30fps":   {30, time.Second / 60},
		"25fps":   {25, 20 * time.Millisecond},
		"Unknown": {0, DefaultPollInterval},
	}
	for name, c := range cases {
		c := c
		t.Run(name, func(t *testing.T) {
			got := PollInterval(c.rate)
			if diff := got - c.expected; diff > time.Microsecond || diff < -time.Microsecond {
				t.Errorf("expected %v, got %v", c.expected, got)
			}
		})
	}
}

func TestStateUpdate(t *testing.T) {
	s := StateIdle
	if err := s.Update(StateClosed, func() error { return nil }); err != ErrNotOpen {
		t.Errorf("expected %v, got %v", ErrNotOpen, err)
	}

	failure := errors.New("failed")
	if err := s.Update(StateOpened, func() error { return failure }); err != failure {
		t.Errorf("expected %v, got %v", failure, err)
	}
	if s != StateIdle {
		t.Errorf("expected state to stay %s, got %s", StateIdle, s)
	}

	if err := s.Update(StateOpened, func() error { return nil }); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.Update(StateOpened, func() error { return nil }); err != ErrAlreadyOpen {
		t.Errorf("expected %v, got %v", ErrAlreadyOpen, err)
	}
	if err := s.Update(StateClosed, func() error { return nil }); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.Update(StateOpened, func() error { return nil }); err != ErrAlreadyOpen {
		t.Errorf("expected closed stream to stay closed, got %v", err)
	}
	if err := s.Update(StateIdle, func() error { return nil }); err != ErrInvalidTransition {
		t.Errorf("expected %v, got %v", ErrInvalidTransition, err)
	}
}
