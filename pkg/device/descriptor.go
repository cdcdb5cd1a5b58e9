/*
Package device describes cameras and their capture modes and enumerates them per platform.

A Descriptor is one camera combined with one supported capture mode. Platform routines
query the operating system's media framework (AVFoundation on macOS, DirectShow on
Windows, Video4Linux2 on Linux) and normalize what they find into Descriptors that
share the FourCC vocabulary of package frame.
*/
package device

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/expkit/camrec/pkg/frame"
)

// API identifies the framework that produced a Descriptor.
type API string

const (
	APIAVFoundation API = "AVFoundation"
	APIDirectShow   API = "DirectShow"
	APIVideo4Linux2 API = "Video4Linux2"
	// APIScreen and APISynthetic are not tied to an operating system.
	APIScreen    API = "Screen"
	APISynthetic API = "Synthetic"
)

var platformAPIs = map[API]string{
	APIAVFoundation: "darwin",
	APIDirectShow:   "windows",
	APIVideo4Linux2: "linux",
}

// CompatibleWith reports whether descriptors of this API can be opened on goos.
func (a API) CompatibleWith(goos string) bool {
	os, native := platformAPIs[a]
	return !native || os == goos
}

// Library tags name the capture backend that opens a descriptor.
const (
	LibraryFFmpeg    = "ffmpeg"
	LibraryOpenCV    = "opencv"
	LibraryScreen    = "screen"
	LibrarySynthetic = "synthetic"
)

// Descriptor describes one camera together with one capture mode. Descriptors are
// values and are safe to copy.
type Descriptor struct {
	// Index is the position of the physical device in the enumeration.
	Index int
	Name  string
	// Path is the native identifier used to open the device, for example a
	// DirectShow moniker, an AVFoundation index or /dev/video0.
	Path      string
	Width     int
	Height    int
	FrameRate float64
	// Exactly one of PixelFormat and CodecFormat is set.
	PixelFormat frame.FourCC
	CodecFormat frame.FourCC
	API         API
	Library     string
}

// Equal reports whether d and o refer to the same device. Capture modes are not compared.
func (d Descriptor) Equal(o Descriptor) bool {
	return d.Index == o.Index && d.Name == o.Name
}

// FrameSize returns width and height.
func (d Descriptor) FrameSize() (int, int) {
	return d.Width, d.Height
}

// Format returns the authoritative format of the mode.
func (d Descriptor) Format() frame.FourCC {
	if d.CodecFormat != "" {
		return d.CodecFormat
	}
	return d.PixelFormat
}

// Validate checks the frame size and frame rate invariants.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid descriptor %q: frame size %dx%d", d.Name, d.Width, d.Height)
	}
	if !(d.FrameRate > 0) {
		return fmt.Errorf("invalid descriptor %q: frame rate %v", d.Name, d.FrameRate)
	}
	if (d.PixelFormat == "") == (d.CodecFormat == "") {
		return fmt.Errorf("invalid descriptor %q: exactly one of pixel and codec format must be set", d.Name)
	}
	return nil
}

// Description renders the descriptor for display, e.g. "[FaceTime HD Camera] 1280x720@30fps, UYVY".
func (d Descriptor) Description() string {
	return fmt.Sprintf("[%s] %dx%d@%sfps, %s",
		d.Name, d.Width, d.Height, strconv.FormatFloat(d.FrameRate, 'f', -1, 64), d.Format())
}

func (d Descriptor) String() string {
	return d.Description()
}

// NormalizeFrameRate rounds a measured rate to two decimals so that broadcast
// rates such as 30000/1001 read as 29.97 and 30.000030 reads as 30.
func NormalizeFrameRate(rate float64) float64 {
	return math.Round(rate*100) / 100
}

// Rank sorts descs in place by descending pixel count, then descending frame rate.
// The sort is stable so ties keep their enumeration order.
func Rank(descs []Descriptor) {
	slices.SortStableFunc(descs, func(a, b Descriptor) int {
		if pa, pb := a.Width*a.Height, b.Width*b.Height; pa != pb {
			return pb - pa
		}
		switch {
		case a.FrameRate > b.FrameRate:
			return -1
		case a.FrameRate < b.FrameRate:
			return 1
		}
		return 0
	})
}

// Preference is a caller's requested capture mode. Zero fields are unconstrained.
type Preference struct {
	Width     int
	Height    int
	FrameRate float64
	Format    frame.FourCC
}

// Match reports whether d satisfies every field set in p.
func (p Preference) Match(d Descriptor) bool {
	if p.Width != 0 && p.Width != d.Width {
		return false
	}
	if p.Height != 0 && p.Height != d.Height {
		return false
	}
	if p.FrameRate != 0 && math.Abs(p.FrameRate-d.FrameRate) > 0.01 {
		return false
	}
	if p.Format != "" && p.Format != d.Format() {
		return false
	}
	return true
}

// SelectBest picks the highest ranked descriptor matching p. When nothing matches,
// or p is empty, the highest ranked descriptor overall is returned. ok is false
// only when descs is empty.
func SelectBest(descs []Descriptor, p Preference) (best Descriptor, ok bool) {
	if len(descs) == 0 {
		return Descriptor{}, false
	}

	ranked := slices.Clone(descs)
	Rank(ranked)
	for _, d := range ranked {
		if p.Match(d) {
			return d, true
		}
	}
	return ranked[0], true
}
