package device

import (
	"errors"
)

var (
	// ErrUnsupportedPlatform is returned when no query routine exists for the host OS.
	ErrUnsupportedPlatform = NewError("device enumeration is not supported on this platform")
)

type errorString struct {
	s string
}

// NewError creates an enumeration error. Errors created this way are recognized by IsError.
func NewError(text string) error {
	return &errorString{text}
}

// IsError reports whether err, or an error it wraps, was created by NewError.
func IsError(err error) bool {
	var target *errorString
	return errors.As(err, &target)
}

func (e *errorString) Error() string {
	return e.s
}
