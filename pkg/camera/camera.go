/*
Package camera records video, and optionally audio, from a capture device.

A Camera follows the lifecycle

	Open -> Record -> Update ... -> Stop -> Save -> Close

Open blocks until the device delivers its first frame. Record starts a file
writer and the microphone, after which every frame the stream produces is kept
in a buffer until Save writes it out. Starting a new recording discards a buffer
that was not saved. Close may be called at any time and stops a running
recording first.

A Camera is not safe for concurrent use; the capture stream, the writer and the
microphone run on their own goroutines.
*/
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/audio"
	"github.com/expkit/camrec/pkg/capture"
	capffmpeg "github.com/expkit/camrec/pkg/capture/ffmpeg"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
	"github.com/expkit/camrec/pkg/writer"
)

var logger = logging.NewLogger("camrec/camera")

const (
	// DefaultVideoExt is the extension of the temporary video file.
	DefaultVideoExt = ".mp4"
	tempPattern     = "camrec-"
)

// Options configures a Camera. Zero values select the defaults documented per field.
type Options struct {
	// Descriptor opens this capture mode directly, bypassing enumeration.
	Descriptor *device.Descriptor
	// Device restricts enumerated descriptors, e.g. device.FilterByIndex(1).
	// Nil accepts every device.
	Device device.Filter
	// Preference picks the capture mode among the matching descriptors.
	Preference device.Preference
	// Enumerator lists descriptors. Nil uses device.NewEnumerator.
	Enumerator *device.Enumerator
	// Manager provides capture backends. Nil uses a manager with the ffmpeg backend.
	Manager *capture.Manager
	// Backend overrides the backend named by the descriptor's Library.
	Backend string
	// QueueCapacity bounds the stream's frame queue. Zero means unbounded.
	QueueCapacity int
	// PollInterval overrides the stream's poll interval.
	PollInterval time.Duration

	// Writers creates the video writer. Nil uses writer.FFmpeg.
	Writers writer.Factory
	// Codec is passed to the writer.
	Codec string
	// VideoExt is the extension of the recorded file. Empty uses DefaultVideoExt.
	VideoExt string

	// Microphone records audio alongside video when set.
	Microphone audio.Microphone

	// Fs holds temporary files and saved clips. Nil uses the OS file system.
	Fs afero.Fs
	// TempDir is the parent of the session's temporary directory. Empty uses the
	// OS default.
	TempDir string
	// GOOS is checked against the descriptor's API. Empty uses runtime.GOOS.
	GOOS string
}

// Camera is the recording orchestrator for one capture device.
type Camera struct {
	opts Options
	fs   afero.Fs

	desc   device.Descriptor
	stream *capture.Stream
	status Status

	buffer   []*frame.Frame
	recent   *frame.Frame
	writer   writer.Writer
	recStart time.Duration
	recTime  time.Duration
	recBytes int64

	tempDir   string
	lastClip  string
	audioPath string
}

// New creates a closed Camera.
func New(opts Options) *Camera {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.VideoExt == "" {
		opts.VideoExt = DefaultVideoExt
	}
	return &Camera{opts: opts, fs: opts.Fs, status: StatusNotStarted}
}

// Open resolves the capture mode, starts the capture stream and blocks until it
// has produced its first frame.
func (c *Camera) Open(ctx context.Context) error {
	if c.stream != nil {
		return capture.ErrAlreadyOpen
	}

	desc, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	if !desc.API.CompatibleWith(c.opts.GOOS) {
		return fmt.Errorf("%w: %s devices can't be opened on %s", ErrFormatNotSupported, desc.API, c.opts.GOOS)
	}

	m := c.opts.Manager
	if m == nil {
		m = capture.NewManager(capture.Config{})
		if err := capffmpeg.Register(m); err != nil {
			return err
		}
		c.opts.Manager = m
	}

	stream, err := m.NewStream(desc, c.opts.Backend, capture.StreamOptions{
		QueueCapacity: c.opts.QueueCapacity,
		PollInterval:  c.opts.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormatNotSupported, err)
	}
	if err := stream.Open(); err != nil {
		return err
	}

	c.desc = desc
	c.stream = stream
	c.status = StatusNotStarted
	logger.Infof("opened %s", desc.Description())
	return nil
}

func (c *Camera) resolve(ctx context.Context) (device.Descriptor, error) {
	if c.opts.Descriptor != nil {
		if err := c.opts.Descriptor.Validate(); err != nil {
			return device.Descriptor{}, fmt.Errorf("%w: %w", ErrFormatNotSupported, err)
		}
		return *c.opts.Descriptor, nil
	}

	e := c.opts.Enumerator
	if e == nil {
		e = device.NewEnumerator("")
	}
	descs, err := e.Descriptors(ctx)
	if err != nil {
		return device.Descriptor{}, err
	}

	desc, ok := device.SelectBest(c.opts.Device.Apply(descs), c.opts.Preference)
	if !ok {
		return device.Descriptor{}, ErrCameraNotFound
	}
	return desc, nil
}

// IsReady reports whether the capture stream is open.
func (c *Camera) IsReady() bool {
	return c.stream != nil && c.stream.IsOpen()
}

// Record starts a new recording. Frames buffered by a previous recording that was
// not saved are discarded.
func (c *Camera) Record() error {
	if !c.IsReady() {
		return ErrNotReady
	}

	if c.status == StatusRecording && c.opts.Microphone != nil && c.opts.Microphone.IsStarted() {
		if err := c.opts.Microphone.Stop(); err != nil {
			logger.Warnf("failed to stop microphone: %v", err)
		}
	}
	c.discard()
	c.status = StatusNotStarted

	// Frames produced before this call don't belong to the recording.
	if _, err := c.poll(); err != nil {
		return err
	}

	dir, err := c.sessionDir()
	if err != nil {
		return err
	}

	meta := c.stream.Metadata()
	params := writer.Params{
		Width:     meta.Width,
		Height:    meta.Height,
		FrameRate: meta.FrameRate,
		Codec:     c.opts.Codec,
	}
	if params.Width == 0 || params.Height == 0 {
		params.Width, params.Height = c.desc.FrameSize()
	}
	if params.FrameRate <= 0 {
		params.FrameRate = c.desc.FrameRate
	}

	factory := c.opts.Writers
	if factory == nil {
		factory = writer.FFmpeg("")
	}
	path := filepath.Join(dir, "video-"+uuid.NewString()+c.opts.VideoExt)
	w, err := factory(path, params)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(w.Open)
	if mic := c.opts.Microphone; mic != nil {
		g.Go(mic.Start)
	}
	if err := g.Wait(); err != nil {
		if closeErr := w.Close(); closeErr == nil {
			c.remove(path)
		}
		if mic := c.opts.Microphone; mic != nil && mic.IsStarted() {
			_ = mic.Stop()
		}
		return fmt.Errorf("failed to start recording: %w", err)
	}

	c.writer = w
	c.recStart = c.stream.Time()
	c.recTime = 0
	c.recBytes = 0
	c.audioPath = ""
	c.status = StatusRecording
	logger.Infof("recording %s to %s", c.desc.Name, path)
	return nil
}

// discard drops the buffer and the writer of a recording that was not saved.
func (c *Camera) discard() {
	if n := len(c.buffer); n > 0 {
		logger.Warnf("discarding %d unsaved frames", n)
	}
	c.buffer = nil

	if c.writer != nil {
		path := c.writer.Path()
		if err := c.writer.Close(); err != nil {
			logger.Warnf("failed to close unsaved recording %s: %v", path, err)
		}
		c.remove(path)
		c.writer = nil
	}
}

// Update moves every frame the stream produced since the last call into the
// recording buffer and returns the newest one. The returned frame is nil when no
// frame is available yet. A stream failure is reported together with the frame.
func (c *Camera) Update() (*frame.Frame, error) {
	if !c.IsReady() {
		return nil, ErrNotReady
	}
	_, err := c.poll()
	return c.recent, err
}

// VideoFrame is Update for callers that only display frames.
func (c *Camera) VideoFrame() (*frame.Frame, error) {
	return c.Update()
}

// poll drains the stream. Frames are kept only while recording.
func (c *Camera) poll() (int, error) {
	frames, err := c.stream.Frames()
	if len(frames) > 0 {
		c.recent = frames[len(frames)-1]
	}

	if c.status == StatusRecording {
		for _, f := range frames {
			c.buffer = append(c.buffer, f)
			c.recBytes += int64(f.Len())
		}
		c.recTime = c.stream.Time() - c.recStart
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return len(frames), fmt.Errorf("capture stream failed: %w", err)
	}
	return len(frames), err
}

// Stop ends the recording. Audio is stopped and saved to a temporary file whose
// path is returned by AudioPath.
func (c *Camera) Stop() error {
	if c.status != StatusRecording {
		return ErrNotRecording
	}

	// The last drain still belongs to the recording.
	var errs []error
	if _, err := c.poll(); err != nil && !errors.Is(err, io.EOF) {
		errs = append(errs, err)
	}
	c.status = StatusStopping
	c.recTime = c.stream.Time() - c.recStart

	if err := c.stopAudio(); err != nil {
		errs = append(errs, err)
	}

	c.status = StatusStopped
	logger.Infof("stopped after %v with %d frames", c.recTime, len(c.buffer))
	return errors.Join(errs...)
}

func (c *Camera) stopAudio() error {
	mic := c.opts.Microphone
	if mic == nil || !mic.IsStarted() {
		return nil
	}
	if err := mic.Stop(); err != nil {
		return fmt.Errorf("failed to stop microphone: %w", err)
	}
	track, err := mic.Recording()
	if err != nil {
		return err
	}

	dir, err := c.sessionDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "audio-"+uuid.NewString()+".wav")
	if err := track.Save(c.fs, path); err != nil {
		return err
	}
	c.audioPath = path
	return nil
}

// Save writes the recording to path. A running recording is stopped first. The
// audio track, if any, stays at AudioPath until Close; combining both is left
// to the caller.
func (c *Camera) Save(path string) error {
	if c.writer == nil {
		return ErrNothingToSave
	}
	if c.status == StatusRecording {
		if err := c.Stop(); err != nil {
			logger.Warnf("stopping before save: %v", err)
		}
	}
	if c.IsReady() {
		// Keeps the queue short; frames after Stop are not recorded.
		if _, err := c.poll(); err != nil && !errors.Is(err, io.EOF) {
			logger.Warnf("%v", err)
		}
	}

	w := c.writer
	c.writer = nil
	for _, f := range c.buffer {
		if err := w.AddFrame(f); err != nil {
			_ = w.Close()
			c.remove(w.Path())
			return fmt.Errorf("failed to write frame %d: %w", f.Index, err)
		}
	}
	if err := w.Close(); err != nil {
		c.remove(w.Path())
		return fmt.Errorf("failed to finalize %s: %w", w.Path(), err)
	}

	if err := c.move(w.Path(), path); err != nil {
		return err
	}
	logger.Infof("saved %d frames to %s", len(c.buffer), path)
	c.buffer = nil
	c.lastClip = path
	return nil
}

// move renames src to dst, copying when the rename crosses file systems.
func (c *Camera) move(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "" {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := c.fs.Rename(src, dst); err == nil {
		return nil
	}

	in, err := c.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := c.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	c.remove(src)
	return nil
}

// Close stops a running recording, drops anything unsaved, closes the stream and
// removes the session's temporary files. Errors stopping the recording are
// logged, not returned.
func (c *Camera) Close() error {
	if c.status == StatusRecording {
		if err := c.Stop(); err != nil {
			logger.Warnf("implicit stop: %v", err)
		}
	}
	c.discard()

	var err error
	if c.stream != nil {
		if closeErr := c.stream.Close(); closeErr != nil && !errors.Is(closeErr, capture.ErrNotOpen) {
			err = closeErr
		}
		c.stream = nil
	}
	c.recent = nil
	c.status = StatusNotStarted

	if c.tempDir != "" {
		if rmErr := c.fs.RemoveAll(c.tempDir); rmErr != nil {
			logger.Warnf("failed to remove %s: %v", c.tempDir, rmErr)
		}
		c.tempDir = ""
	}
	return err
}

func (c *Camera) sessionDir() (string, error) {
	if c.tempDir != "" {
		return c.tempDir, nil
	}
	dir, err := afero.TempDir(c.fs, c.opts.TempDir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	c.tempDir = dir
	return dir, nil
}

func (c *Camera) remove(path string) {
	if err := c.fs.Remove(path); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		logger.Debugf("failed to remove %s: %v", path, err)
	}
}

// Status returns the recording status.
func (c *Camera) Status() Status {
	return c.status
}

func (c *Camera) IsRecording() bool {
	return c.status == StatusRecording
}

func (c *Camera) IsNotStarted() bool {
	return c.status == StatusNotStarted
}

func (c *Camera) IsStopped() bool {
	return c.status == StatusStopped
}

// RecordingTime returns the stream time covered by the current or last recording.
func (c *Camera) RecordingTime() time.Duration {
	if c.status == StatusRecording && c.stream != nil {
		return c.stream.Time() - c.recStart
	}
	return c.recTime
}

// RecordingBytes returns the size of the buffered frames.
func (c *Camera) RecordingBytes() int64 {
	return c.recBytes
}

// BufferLen returns the number of frames waiting to be saved.
func (c *Camera) BufferLen() int {
	return len(c.buffer)
}

// Frames returns a copy of the recording buffer.
func (c *Camera) Frames() []*frame.Frame {
	return append([]*frame.Frame(nil), c.buffer...)
}

// LastClip returns the path of the last saved recording, or "".
func (c *Camera) LastClip() string {
	return c.lastClip
}

// AudioPath returns the temporary audio file of the last recording, or "".
func (c *Camera) AudioPath() string {
	return c.audioPath
}

// Descriptor returns the capture mode the camera was opened with.
func (c *Camera) Descriptor() device.Descriptor {
	return c.desc
}

// FrameSize returns the stream's frame width and height.
func (c *Camera) FrameSize() (int, int) {
	if c.stream != nil {
		if meta := c.stream.Metadata(); meta.Width > 0 {
			return meta.Width, meta.Height
		}
	}
	return c.desc.FrameSize()
}

// FrameRate returns the stream's frame rate.
func (c *Camera) FrameRate() float64 {
	if c.stream != nil {
		if meta := c.stream.Metadata(); meta.FrameRate > 0 {
			return meta.FrameRate
		}
	}
	return c.desc.FrameRate
}

// StreamTime returns the time since the stream started, or 0 when closed.
func (c *Camera) StreamTime() time.Duration {
	if c.stream == nil {
		return 0
	}
	return c.stream.Time()
}

// Metadata returns the stream metadata, or the zero value when closed.
func (c *Camera) Metadata() capture.Metadata {
	if c.stream == nil {
		return capture.Metadata{}
	}
	return c.stream.Metadata()
}
