package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	ffbin "github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/pkg/frame"
)

// DefaultCodec is the ffmpeg encoder used when Params.Codec is empty.
const DefaultCodec = "libx264"

// FFmpeg returns a Factory encoding with the ffmpeg executable at bin.
func FFmpeg(bin string) Factory {
	return func(path string, p Params) (Writer, error) {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		enc := &ffmpegEncoder{
			bin:     ffbin.Binary(bin),
			args:    FFmpegArgs(path, p),
			params:  p,
			command: exec.CommandContext,
		}
		return New(path, enc, 0), nil
	}
}

// FFmpegArgs builds the command line encoding raw RGB24 frames read from stdin
// into path.
func FFmpegArgs(path string, p Params) []string {
	codec := p.Codec
	if codec == "" {
		codec = DefaultCodec
	}
	return []string{
		"-hide_banner", "-nostats", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", strconv.FormatFloat(p.FrameRate, 'f', -1, 64),
		"-i", "-",
		"-an",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		path,
	}
}

type ffmpegEncoder struct {
	bin     string
	args    []string
	params  Params
	command func(ctx context.Context, name string, args ...string) *exec.Cmd

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

func (e *ffmpegEncoder) Start() error {
	cmd := e.command(context.Background(), e.bin, e.args...)
	cmd.Stderr = &e.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	logger.Debugf("running %s %s", e.bin, strings.Join(e.args, " "))
	if err := cmd.Start(); err != nil {
		return err
	}
	e.cmd = cmd
	e.stdin = stdin
	return nil
}

func (e *ffmpegEncoder) Encode(f *frame.Frame) error {
	if f.Width != e.params.Width || f.Height != e.params.Height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d",
			f.Index, f.Width, f.Height, e.params.Width, e.params.Height)
	}
	if len(f.Pix) != e.params.FrameSize() {
		return fmt.Errorf("frame %d has %d bytes, expected %d", f.Index, len(f.Pix), e.params.FrameSize())
	}
	_, err := e.stdin.Write(f.Pix)
	return err
}

func (e *ffmpegEncoder) Finish() error {
	closeErr := e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(e.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return closeErr
}
