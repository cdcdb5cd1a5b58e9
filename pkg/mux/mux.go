// Package mux combines a recorded video file and an optional audio file into one
// container with ffmpeg.
package mux

import (
	"context"
	"fmt"
	"os"
	"strings"

	ffbin "github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/internal/logging"
)

var logger = logging.NewLogger("camrec/mux")

// Muxer runs ffmpeg to render the final file.
type Muxer struct {
	// FFmpeg is the executable path. Empty means ffmpeg from PATH.
	FFmpeg string
	// Run executes ffmpeg. Nil uses ffmpeg.Run.
	Run ffbin.Runner
	// Stat reports the size of the rendered file. Nil uses os.Stat.
	Stat func(path string) (int64, error)
}

// New creates a Muxer for the ffmpeg executable at bin.
func New(bin string) *Muxer {
	return &Muxer{FFmpeg: bin}
}

// Args builds the command line. Without audio the video stream is copied as is.
func Args(out, video, audio string) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-y", "-i", video}
	if audio != "" {
		args = append(args, "-i", audio,
			"-map", "0:v:0", "-map", "1:a:0",
			"-c:v", "copy", "-c:a", "aac", "-shortest")
	} else {
		args = append(args, "-c", "copy")
	}
	return append(args, out)
}

// RenderVideo writes video, and audio when given, into out and returns the size
// of the resulting file.
func (m *Muxer) RenderVideo(ctx context.Context, out, video, audio string) (int64, error) {
	if out == "" || video == "" {
		return 0, fmt.Errorf("output and video paths are required")
	}
	if out == video || (audio != "" && out == audio) {
		return 0, fmt.Errorf("output %s would overwrite an input", out)
	}

	run := m.Run
	if run == nil {
		run = ffbin.Run
	}
	args := Args(out, video, audio)
	logger.Debugf("muxing %s", strings.Join(args, " "))
	if output, err := run(ctx, ffbin.Binary(m.FFmpeg), args...); err != nil {
		return 0, fmt.Errorf("failed to mux %s: %w: %s", out, err, strings.TrimSpace(string(output)))
	}

	stat := m.Stat
	if stat == nil {
		stat = fileSize
	}
	return stat(out)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
