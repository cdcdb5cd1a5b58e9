package capture

import "errors"

var (
	// ErrAlreadyOpen is returned by Stream.Open on a stream that was opened before.
	ErrAlreadyOpen = errors.New("invalid state: stream has already been opened")
	// ErrNotOpen is returned when a stream that is not open is read or closed.
	ErrNotOpen = errors.New("invalid state: stream is not open")
	// ErrInvalidTransition is returned for state changes the lifecycle doesn't allow.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUnknownBackend is returned when no factory is registered under a name.
	ErrUnknownBackend = errors.New("unknown capture backend")
	// ErrBackendExists is returned when registering a backend name twice.
	ErrBackendExists = errors.New("capture backend already registered")
)
