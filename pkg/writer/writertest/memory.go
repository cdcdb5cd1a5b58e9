// Package writertest provides a writer that stores raw frames for testing.
package writertest

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/expkit/camrec/pkg/frame"
	"github.com/expkit/camrec/pkg/writer"
)

// Recorder creates writers that dump raw RGB24 frames to a file system and
// remembers every frame they received.
type Recorder struct {
	Fs afero.Fs
	// StartErr makes Open fail on every writer.
	StartErr error

	mu      sync.Mutex
	writers []*Encoder
}

// NewRecorder creates a Recorder on fs.
func NewRecorder(fs afero.Fs) *Recorder {
	return &Recorder{Fs: fs}
}

// Factory is a writer.Factory.
func (r *Recorder) Factory(path string, p writer.Params) (writer.Writer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	enc := &Encoder{fs: r.Fs, path: path, Params: p, startErr: r.StartErr}
	r.mu.Lock()
	r.writers = append(r.writers, enc)
	r.mu.Unlock()
	return writer.New(path, enc, 0), nil
}

// Encoders returns the encoders created so far.
func (r *Recorder) Encoders() []*Encoder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Encoder(nil), r.writers...)
}

// Last returns the most recently created encoder, or nil.
func (r *Recorder) Last() *Encoder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writers) == 0 {
		return nil
	}
	return r.writers[len(r.writers)-1]
}

// Encoder is the writer.Encoder behind a Recorder writer.
type Encoder struct {
	Params writer.Params

	fs       afero.Fs
	path     string
	startErr error
	file     afero.File

	mu       sync.Mutex
	frames   []*frame.Frame
	finished bool
}

// Path returns the file the encoder writes.
func (e *Encoder) Path() string {
	return e.path
}

// Frames returns the frames encoded so far.
func (e *Encoder) Frames() []*frame.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*frame.Frame(nil), e.frames...)
}

// Finished reports whether the writer was closed.
func (e *Encoder) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

func (e *Encoder) Start() error {
	if e.startErr != nil {
		return e.startErr
	}
	f, err := e.fs.Create(e.path)
	if err != nil {
		return err
	}
	e.file = f
	return nil
}

func (e *Encoder) Encode(f *frame.Frame) error {
	if f.Width != e.Params.Width || f.Height != e.Params.Height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d",
			f.Index, f.Width, f.Height, e.Params.Width, e.Params.Height)
	}
	if _, err := e.file.Write(f.Pix); err != nil {
		return err
	}
	e.mu.Lock()
	e.frames = append(e.frames, f)
	e.mu.Unlock()
	return nil
}

func (e *Encoder) Finish() error {
	err := e.file.Close()
	e.mu.Lock()
	e.finished = true
	e.mu.Unlock()
	return err
}
