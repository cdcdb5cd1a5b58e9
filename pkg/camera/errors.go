package camera

import "errors"

var (
	// ErrCameraNotFound is returned by Open when no descriptor matches the selection.
	ErrCameraNotFound = NewError("camera not found")
	// ErrFormatNotSupported is returned by Open when the descriptor can't be opened
	// on this platform or by the selected backend.
	ErrFormatNotSupported = NewError("camera format not supported")
	// ErrNotReady is returned by operations that need an open stream.
	ErrNotReady = NewError("stream is not open")
	// ErrNotRecording is returned by Stop when the camera is not recording.
	ErrNotRecording = NewError("camera is not recording")
	// ErrNothingToSave is returned by Save when there is no recording.
	ErrNothingToSave = NewError("no recording to save")
)

type errorString struct {
	s string
}

// NewError creates a camera error. Errors created this way are recognized by IsError.
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
