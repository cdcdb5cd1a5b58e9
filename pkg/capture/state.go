package capture

// State represents a stream's lifecycle state
type State string

const (
	// StateIdle means that the stream has not been opened yet.
	StateIdle State = "idle"
	// StateOpened means that the acquisition goroutine is running and has
	// produced the first frame.
	StateOpened State = "opened"
	// StateClosed means that the acquisition goroutine has exited. A closed
	// stream can't be opened again.
	StateClosed State = "closed"
)

// Update updates current state, s, to next. If f fails to execute,
// s will stay unchanged. Otherwise, s will be updated to next
func (s *State) Update(next State, f func() error) error {
	type checkFunc func() error
	m := map[State]checkFunc{
		StateOpened: s.toOpened,
		StateClosed: s.toClosed,
	}

	check, ok := m[next]
	if !ok {
		return ErrInvalidTransition
	}
	if err := check(); err != nil {
		return err
	}

	err := f()
	if err == nil {
		*s = next
	}
	return err
}

func (s *State) toOpened() error {
	if *s != StateIdle {
		return ErrAlreadyOpen
	}
	return nil
}

func (s *State) toClosed() error {
	if *s != StateOpened {
		return ErrNotOpen
	}
	return nil
}
