// Package ffmpeg captures frames by running the ffmpeg executable against the
// platform capture API and reading raw RGB24 frames from its standard output.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	ffbin "github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
)

// Name is the backend name the ffmpeg source registers under.
const Name = device.LibraryFFmpeg

const stderrTail = 8

var logger = logging.NewLogger("camrec/capture/ffmpeg")

// ErrUnsupportedAPI is returned for descriptors ffmpeg has no input device for.
var ErrUnsupportedAPI = errors.New("ffmpeg can't capture from this API")

// Register adds the ffmpeg backend to m.
func Register(m *capture.Manager) error {
	return m.Register(Name, New)
}

type source struct {
	desc      device.Descriptor
	bin       string
	args      []string
	frameSize int
	command   func(ctx context.Context, name string, args ...string) *exec.Cmd

	cmd    *exec.Cmd
	stdout io.ReadCloser
	start  time.Time
	wg     sync.WaitGroup

	mu   sync.Mutex
	tail []string
}

// New is a capture.Factory.
func New(desc device.Descriptor, cfg capture.Config) (capture.Source, error) {
	args, err := Args(desc, cfg.BufferSeconds)
	if err != nil {
		return nil, err
	}
	size, _ := frame.FrameSize(frame.FormatRGB24, desc.Width, desc.Height)
	return &source{
		desc:      desc,
		bin:       ffbin.Binary(cfg.FFmpeg),
		args:      args,
		frameSize: size,
		command:   exec.CommandContext,
	}, nil
}

// Args builds the ffmpeg command line capturing desc to raw RGB24 on stdout.
// bufferSeconds sizes the real-time input buffer.
func Args(desc device.Descriptor, bufferSeconds float64) ([]string, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	size := fmt.Sprintf("%dx%d", desc.Width, desc.Height)
	rate := strconv.FormatFloat(desc.FrameRate, 'f', -1, 64)
	args := []string{"-hide_banner", "-nostats", "-loglevel", "warning"}

	if bufferSeconds > 0 {
		rtbuf := int64(float64(desc.Width*desc.Height*3) * bufferSeconds)
		args = append(args, "-rtbufsize", strconv.FormatInt(rtbuf, 10))
	}

	var input string
	switch desc.API {
	case device.APIAVFoundation:
		args = append(args, "-f", "avfoundation", "-framerate", rate, "-video_size", size)
		if desc.PixelFormat != "" {
			name, err := frame.PixelFormatName(desc.PixelFormat)
			if err != nil {
				return nil, err
			}
			args = append(args, "-pixel_format", name)
		}
		input = desc.Path + ":none"
	case device.APIDirectShow:
		args = append(args, "-f", "dshow", "-video_size", size, "-framerate", rate)
		switch {
		case desc.CodecFormat != "":
			name, err := frame.CodecName(desc.CodecFormat)
			if err != nil {
				return nil, err
			}
			args = append(args, "-vcodec", name)
		case desc.PixelFormat != "":
			name, err := frame.PixelFormatName(desc.PixelFormat)
			if err != nil {
				return nil, err
			}
			args = append(args, "-pixel_format", name)
		}
		input = "video=" + desc.Path
	case device.APIVideo4Linux2:
		args = append(args, "-f", "v4l2", "-framerate", rate, "-video_size", size)
		var (
			name string
			err  error
		)
		if desc.CodecFormat != "" {
			name, err = frame.CodecName(desc.CodecFormat)
		} else {
			name, err = frame.PixelFormatName(desc.PixelFormat)
		}
		if err != nil {
			return nil, err
		}
		args = append(args, "-input_format", name)
		input = desc.Path
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAPI, desc.API)
	}

	args = append(args,
		"-i", input,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", size,
		"-",
	)
	return args, nil
}

func (s *source) Open(ctx context.Context) (capture.Metadata, error) {
	cmd := s.command(ctx, s.bin, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return capture.Metadata{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return capture.Metadata{}, err
	}

	logger.Debugf("running %s %s", s.bin, strings.Join(s.args, " "))
	if err := cmd.Start(); err != nil {
		return capture.Metadata{}, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.cmd = cmd
	s.stdout = stdout
	s.start = time.Now()

	s.wg.Add(1)
	go s.watch(stderr)

	return capture.Metadata{
		Width:     s.desc.Width,
		Height:    s.desc.Height,
		FrameRate: s.desc.FrameRate,
		Start:     s.start,
		Extra: map[string]any{
			"api":    string(s.desc.API),
			"format": s.desc.Format().String(),
		},
	}, nil
}

func (s *source) Read(ctx context.Context) (capture.Raw, error) {
	pix := make([]byte, s.frameSize)
	if _, err := io.ReadFull(s.stdout, pix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if tail := s.stderr(); tail != "" && ctx.Err() == nil {
				return capture.Raw{}, fmt.Errorf("ffmpeg exited: %s", tail)
			}
			return capture.Raw{}, io.EOF
		}
		return capture.Raw{}, err
	}

	return capture.Raw{
		Pix:    pix,
		Width:  s.desc.Width,
		Height: s.desc.Height,
		PTS:    time.Since(s.start),
	}, nil
}

func (s *source) Close() error {
	if s.cmd == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	s.wg.Wait()
	err := s.cmd.Wait()
	s.cmd = nil

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watch logs ffmpeg's stderr and keeps the last lines for error reports.
func (s *source) watch(r io.Reader) {
	defer s.wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := ffbin.StripPrefix(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debugf("%s: %s", s.desc.Name, line)

		s.mu.Lock()
		s.tail = append(s.tail, line)
		if len(s.tail) > stderrTail {
			s.tail = s.tail[1:]
		}
		s.mu.Unlock()
	}
}

// stderr waits for ffmpeg to close its stderr and returns the last lines.
func (s *source) stderr() string {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.tail, "; ")
}
