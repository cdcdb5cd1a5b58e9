package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expkit/camrec/internal/config"
	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/capture/capturetest"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
)

func TestPrintDescriptions(t *testing.T) {
	var buf bytes.Buffer
	printDescriptions(&buf, device.Descriptions{
		ByDevice: map[string][]string{
			"b": {"[b] 640x480@30fps, YUY2"},
			"a": {"[a] 1280x720@30fps, MJPG", "[a] 640x480@30fps, MJPG"},
		},
	})
	assert.Equal(t, "a\n  [a] 1280x720@30fps, MJPG\n  [a] 640x480@30fps, MJPG\nb\n  [b] 640x480@30fps, YUY2\n", buf.String())

	buf.Reset()
	printDescriptions(&buf, device.Descriptions{Flat: []string{"x", "y"}})
	assert.Equal(t, "x\ny\n", buf.String())
}

func TestRecordFilter(t *testing.T) {
	descs := append(capturetest.Descriptors(), device.Descriptor{
		Index: 0, Name: "Display 0", Width: 1920, Height: 1080, FrameRate: 10,
		PixelFormat: frame.FormatRGB24, API: device.APIScreen, Library: device.LibraryScreen,
	})

	f := recordFlags{index: -1}
	assert.Len(t, f.filter().Apply(descs), 2, "displays are excluded by default")

	f = recordFlags{index: -1, screen: true}
	assert.Len(t, f.filter().Apply(descs), 1)

	f = recordFlags{index: 0, name: "Synthetic Camera", synthetic: true}
	assert.Len(t, f.filter().Apply(descs), 2)

	f = recordFlags{index: 3}
	assert.Empty(t, f.filter().Apply(descs))
}

func TestCapturePollInterval(t *testing.T) {
	assert.Equal(t, int64(40e6), capturePollInterval(25).Nanoseconds())
	assert.Equal(t, int64(100e6), capturePollInterval(0).Nanoseconds())
}

func TestNewManager(t *testing.T) {
	m, err := newManager(&config.Config{FFmpeg: "ffmpeg"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		device.LibraryFFmpeg, device.LibraryOpenCV, device.LibraryScreen, device.LibrarySynthetic,
	}, m.Backends())

	s, err := m.NewStream(capturetest.Descriptors()[0], "", capture.StreamOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Open())
	assert.Len(t, m.Streams(), 1)

	require.NoError(t, m.CloseAll())
	assert.Empty(t, m.Streams())
	assert.False(t, s.IsOpen())
}
