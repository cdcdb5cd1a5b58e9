package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
)

func TestArgs(t *testing.T) {
	cases := map[string]struct {
		desc     device.Descriptor
		buffer   float64
		contains []string
	}{
		"AVFoundation": {
			desc: device.Descriptor{
				Index: 0, Name: "FaceTime HD Camera", Path: "0",
				Width: 1280, Height: 720, FrameRate: 30,
				PixelFormat: frame.FormatUYVY, API: device.APIAVFoundation,
			},
			contains: []string{
				"-f avfoundation -framerate 30 -video_size 1280x720 -pixel_format uyvy422 -i 0:none",
			},
		},
		"DirectShowCodec": {
			desc: device.Descriptor{
				Index: 0, Name: "Integrated Camera", Path: "@device_pnp_x",
				Width: 640, Height: 480, FrameRate: 29.97,
				CodecFormat: frame.FormatMJPEG, API: device.APIDirectShow,
			},
			buffer: 2,
			contains: []string{
				"-rtbufsize 1843200",
				"-f dshow -video_size 640x480 -framerate 29.97 -vcodec mjpeg -i video=@device_pnp_x",
			},
		},
		"DirectShowPixelFormat": {
			desc: device.Descriptor{
				Index: 0, Name: "Integrated Camera", Path: "Integrated Camera",
				Width: 640, Height: 480, FrameRate: 30,
				PixelFormat: frame.FormatYUY2, API: device.APIDirectShow,
			},
			contains: []string{"-pixel_format yuyv422 -i video=Integrated Camera"},
		},
		"V4L2": {
			desc: device.Descriptor{
				Index: 2, Name: "video2", Path: "/dev/video2",
				Width: 320, Height: 240, FrameRate: 15,
				CodecFormat: frame.FormatMJPEG, API: device.APIVideo4Linux2,
			},
			contains: []string{"-f v4l2 -framerate 15 -video_size 320x240 -input_format mjpeg -i /dev/video2"},
		},
	}

	for name, c := range cases {
		c := c
		t.Run(name, func(t *testing.T) {
			args, err := Args(c.desc, c.buffer)
			require.NoError(t, err)

			joined := strings.Join(args, " ")
			for _, want := range c.contains {
				assert.Contains(t, joined, want)
			}
			size := fmt.Sprintf("%dx%d", c.desc.Width, c.desc.Height)
			assert.True(t, strings.HasSuffix(joined, "-an -f rawvideo -pix_fmt rgb24 -s "+size+" -"), joined)
			if c.buffer == 0 {
				assert.NotContains(t, joined, "-rtbufsize")
			}
		})
	}
}

func TestArgsRejectsUnsupportedAPI(t *testing.T) {
	desc := device.Descriptor{
		Name: "Display 0", Width: 640, Height: 480, FrameRate: 10,
		PixelFormat: frame.FormatRGB24, API: device.APIScreen,
	}
	_, err := Args(desc, 0)
	assert.ErrorIs(t, err, ErrUnsupportedAPI)

	_, err = New(desc, capture.Config{})
	assert.ErrorIs(t, err, ErrUnsupportedAPI)
}

func TestArgsRejectsInvalidDescriptor(t *testing.T) {
	_, err := Args(device.Descriptor{Name: "broken", API: device.APIVideo4Linux2}, 0)
	assert.Error(t, err)
}

// TestHelperProcess stands in for ffmpeg: it writes raw frames to stdout.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("CAMREC_WANT_HELPER_PROCESS") != "1" {
		return
	}
	size, _ := strconv.Atoi(os.Getenv("CAMREC_HELPER_FRAME_SIZE"))
	count, _ := strconv.Atoi(os.Getenv("CAMREC_HELPER_FRAMES"))
	fmt.Fprintln(os.Stderr, "[v4l2 @ 0x1] helper started")
	for i := 0; i < count; i++ {
		pix := make([]byte, size)
		for j := range pix {
			pix[j] = byte(i)
		}
		os.Stdout.Write(pix)
		time.Sleep(time.Millisecond)
	}
	if os.Getenv("CAMREC_HELPER_FAIL") == "1" {
		fmt.Fprintln(os.Stderr, "[v4l2 @ 0x1] Device or resource busy")
	}
	os.Exit(0)
}

func helperSource(t *testing.T, frames int, fail bool) *source {
	t.Helper()

	desc := device.Descriptor{
		Index: 0, Name: "video0", Path: "/dev/video0",
		Width: 4, Height: 2, FrameRate: 30,
		PixelFormat: frame.FormatYUY2, API: device.APIVideo4Linux2,
		Library: device.LibraryFFmpeg,
	}
	src, err := New(desc, capture.Config{FFmpeg: "ffmpeg"})
	require.NoError(t, err)

	s := src.(*source)
	s.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		assert.Equal(t, "ffmpeg", name)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(),
			"CAMREC_WANT_HELPER_PROCESS=1",
			"CAMREC_HELPER_FRAME_SIZE="+strconv.Itoa(s.frameSize),
			"CAMREC_HELPER_FRAMES="+strconv.Itoa(frames),
		)
		if fail {
			cmd.Env = append(cmd.Env, "CAMREC_HELPER_FAIL=1")
		}
		return cmd
	}
	return s
}

func TestSourceReadsRawFrames(t *testing.T) {
	s := helperSource(t, 3, false)
	ctx := context.Background()

	meta, err := s.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 2, meta.Height)
	assert.Equal(t, "YUY2", meta.Extra["format"])

	var last time.Duration
	for i := 0; i < 3; i++ {
		raw, err := s.Read(ctx)
		require.NoError(t, err)
		require.Len(t, raw.Pix, 4*2*3)
		assert.Equal(t, byte(i), raw.Pix[0])
		assert.Greater(t, raw.PTS, last)
		last = raw.PTS
	}

	_, err = s.Read(ctx)
	assert.ErrorContains(t, err, "helper started")
	require.NoError(t, s.Close())
}

func TestSourceReportsFFmpegError(t *testing.T) {
	s := helperSource(t, 0, true)
	ctx := context.Background()

	_, err := s.Open(ctx)
	require.NoError(t, err)

	_, err = s.Read(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "Device or resource busy")
	require.NoError(t, s.Close())
}
