package frame

import (
	"image"
	"time"
)

// Frame is one decoded image produced by a capture stream. Frames are built by the
// acquisition goroutine and must not be modified afterwards.
type Frame struct {
	// Index counts accepted frames per stream, starting at 0.
	Index int
	// AbsTime is the presentation time relative to the start of the stream. It is
	// strictly increasing within a stream.
	AbsTime time.Duration
	Width   int
	Height  int
	// Pix holds the pixels in FormatRGB24.
	Pix []byte
	// AudioChannels is always 0 for video frames.
	AudioChannels int
	Metadata      map[string]any
	// Library names the backend that produced the frame.
	Library string
}

// Len returns the number of bytes held by the frame.
func (f *Frame) Len() int {
	return len(f.Pix)
}

// Image exposes the frame as an image without copying the pixels.
func (f *Frame) Image() *RGB24Img {
	return &RGB24Img{
		Pix:    f.Pix,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
		Stride: f.Width * 3,
	}
}
