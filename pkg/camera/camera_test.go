package camera_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expkit/camrec/pkg/audio"
	"github.com/expkit/camrec/pkg/audio/audiotest"
	"github.com/expkit/camrec/pkg/camera"
	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/capture/capturetest"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/frame"
	"github.com/expkit/camrec/pkg/writer/writertest"
)

const (
	testWidth  = 32
	testHeight = 24
	testRate   = 50
)

type fixture struct {
	cam     *camera.Camera
	fs      afero.Fs
	writers *writertest.Recorder
	mic     *audiotest.Tone
	manager *capture.Manager
}

func testDescriptor() device.Descriptor {
	desc := capturetest.Descriptors()[0]
	desc.Width, desc.Height, desc.FrameRate = testWidth, testHeight, testRate
	return desc
}

func newFixture(t *testing.T, configure ...func(*camera.Options)) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tmp", 0o755))

	m := capture.NewManager(capture.Config{})
	require.NoError(t, capturetest.Register(m))

	f := &fixture{
		fs:      fs,
		writers: writertest.NewRecorder(fs),
		mic:     audiotest.NewTone(),
		manager: m,
	}

	desc := testDescriptor()
	opts := camera.Options{
		Descriptor:   &desc,
		Manager:      m,
		Writers:      f.writers.Factory,
		Microphone:   f.mic,
		Fs:           fs,
		TempDir:      "/tmp",
		GOOS:         "linux",
		PollInterval: 2 * time.Millisecond,
	}
	for _, c := range configure {
		c(&opts)
	}
	f.cam = camera.New(opts)
	t.Cleanup(func() {
		f.cam.Close()
	})
	return f
}

// waitForFrames polls the camera until at least n frames are buffered.
func waitForFrames(t *testing.T, cam *camera.Camera, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := cam.Update()
		return err == nil && cam.BufferLen() >= n
	}, 5*time.Second, 5*time.Millisecond)
}

func assertMonotonic(t *testing.T, frames []*frame.Frame) {
	t.Helper()
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].AbsTime, frames[i-1].AbsTime, "frame %d", i)
		assert.Greater(t, frames[i].Index, frames[i-1].Index, "frame %d", i)
	}
}

func tempEntries(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, "/tmp")
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	cam := f.cam

	require.NoError(t, cam.Open(context.Background()))
	assert.True(t, cam.IsReady())
	assert.True(t, cam.IsNotStarted())
	assert.Equal(t, testDescriptor(), cam.Descriptor())
	w, h := cam.FrameSize()
	assert.Equal(t, testWidth, w)
	assert.Equal(t, testHeight, h)
	assert.Equal(t, float64(testRate), cam.FrameRate())

	require.NoError(t, cam.Record())
	assert.True(t, cam.IsRecording())
	assert.True(t, f.mic.IsStarted())

	waitForFrames(t, cam, 5)
	recent, err := cam.VideoFrame()
	require.NoError(t, err)
	require.NotNil(t, recent)

	require.NoError(t, cam.Stop())
	assert.True(t, cam.IsStopped())
	assert.False(t, f.mic.IsStarted())
	assert.Greater(t, cam.RecordingTime(), time.Duration(0))

	frames := cam.Frames()
	assertMonotonic(t, frames)
	assert.Equal(t, int64(len(frames)*testWidth*testHeight*3), cam.RecordingBytes())

	audioPath := cam.AudioPath()
	require.NotEmpty(t, audioPath)
	af, err := f.fs.Open(audioPath)
	require.NoError(t, err)
	track, err := audio.ReadWAV(af)
	af.Close()
	require.NoError(t, err)
	assert.Equal(t, 48000, track.SampleRate)

	require.NoError(t, cam.Save("/out/clip.mp4"))
	assert.Equal(t, "/out/clip.mp4", cam.LastClip())
	assert.Zero(t, cam.BufferLen())

	enc := f.writers.Last()
	require.NotNil(t, enc)
	assert.True(t, enc.Finished())
	written := enc.Frames()
	require.Len(t, written, len(frames))
	for i := range frames {
		assert.Same(t, frames[i], written[i])
	}

	info, err := f.fs.Stat("/out/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(len(frames)*testWidth*testHeight*3), info.Size())
	exists, err := afero.Exists(f.fs, enc.Path())
	require.NoError(t, err)
	assert.False(t, exists, "temporary video must be moved")

	require.NoError(t, cam.Close())
	assert.True(t, cam.IsNotStarted())
	assert.False(t, cam.IsReady())
	assert.Empty(t, tempEntries(t, f.fs))
	assert.Empty(t, f.manager.Streams())

	exists, err = afero.Exists(f.fs, "/out/clip.mp4")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordDiscardsUnsavedFrames(t *testing.T) {
	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))

	require.NoError(t, cam.Record())
	waitForFrames(t, cam, 3)
	first := f.writers.Last()

	require.NoError(t, cam.Record())
	assert.Zero(t, cam.BufferLen())
	assert.True(t, cam.IsRecording())
	assert.Len(t, f.writers.Encoders(), 2)
	assert.Equal(t, 2, f.mic.Starts())

	assert.True(t, first.Finished())
	exists, err := afero.Exists(f.fs, first.Path())
	require.NoError(t, err)
	assert.False(t, exists, "discarded recording must be removed")

	waitForFrames(t, cam, 1)
	frames := cam.Frames()
	assertMonotonic(t, frames)
	for _, fr := range frames {
		assert.NotContains(t, first.Frames(), fr)
	}
}

func TestCloseStopsRecording(t *testing.T) {
	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())
	waitForFrames(t, cam, 2)

	require.NoError(t, cam.Close())
	assert.True(t, cam.IsNotStarted())
	assert.False(t, f.mic.IsStarted())

	track, err := f.mic.Recording()
	require.NoError(t, err)
	assert.Greater(t, track.Duration(), time.Duration(0))
	assert.NotEmpty(t, cam.AudioPath())
	assert.True(t, f.writers.Last().Finished())
	assert.Empty(t, tempEntries(t, f.fs))
}

func TestCloseWithoutOpen(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.cam.Close())
	assert.True(t, f.cam.IsNotStarted())
}

func TestNotReady(t *testing.T) {
	f := newFixture(t)
	cam := f.cam

	_, err := cam.VideoFrame()
	assert.ErrorIs(t, err, camera.ErrNotReady)

	err = cam.Record()
	assert.ErrorIs(t, err, camera.ErrNotReady)
	assert.EqualError(t, err, "stream is not open")
	assert.True(t, camera.IsError(err))

	assert.ErrorIs(t, cam.Stop(), camera.ErrNotRecording)
	assert.ErrorIs(t, cam.Save("/out.mp4"), camera.ErrNothingToSave)
	assert.Zero(t, cam.StreamTime())
}

func TestOpenTwice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cam.Open(context.Background()))
	assert.ErrorIs(t, f.cam.Open(context.Background()), capture.ErrAlreadyOpen)
}

func TestOpenErrors(t *testing.T) {
	linuxOnly := &device.Enumerator{
		GOOS:      "linux",
		Platforms: map[string]device.Query{"linux": capturetest.Query},
	}

	cases := map[string]struct {
		configure func(*camera.Options)
		expected  error
	}{
		"WrongPlatform": {
			configure: func(o *camera.Options) {
				desc := testDescriptor()
				desc.API = device.APIAVFoundation
				o.Descriptor = &desc
			},
			expected: camera.ErrFormatNotSupported,
		},
		"UnknownBackend": {
			configure: func(o *camera.Options) {
				o.Backend = "nope"
			},
			expected: capture.ErrUnknownBackend,
		},
		"InvalidDescriptor": {
			configure: func(o *camera.Options) {
				o.Descriptor = &device.Descriptor{Name: "broken"}
			},
			expected: camera.ErrFormatNotSupported,
		},
		"NoMatchingDevice": {
			configure: func(o *camera.Options) {
				o.Descriptor = nil
				o.Enumerator = linuxOnly
				o.Device = device.FilterByName("Missing Camera")
			},
			expected: camera.ErrCameraNotFound,
		},
		"UnsupportedPlatform": {
			configure: func(o *camera.Options) {
				o.Descriptor = nil
				o.Enumerator = &device.Enumerator{GOOS: "plan9", Platforms: linuxOnly.Platforms}
			},
			expected: device.ErrUnsupportedPlatform,
		},
		"SourceFailsToOpen": {
			configure: func(o *camera.Options) {
				require.NoError(t, o.Manager.Register("broken", capturetest.Factory(capturetest.Options{
					OpenErr: errors.New("device busy"),
				})))
				o.Backend = "broken"
			},
		},
	}

	for name, c := range cases {
		c := c
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, c.configure)
			err := f.cam.Open(context.Background())
			require.Error(t, err)
			if c.expected != nil {
				assert.ErrorIs(t, err, c.expected)
			}
			assert.False(t, f.cam.IsReady())
		})
	}
}

func TestUnknownBackendIsFormatError(t *testing.T) {
	f := newFixture(t, func(o *camera.Options) { o.Backend = "nope" })
	err := f.cam.Open(context.Background())
	assert.ErrorIs(t, err, camera.ErrFormatNotSupported)
}

func TestOpenSelectsPreferredMode(t *testing.T) {
	f := newFixture(t, func(o *camera.Options) {
		o.Descriptor = nil
		o.Enumerator = &device.Enumerator{
			GOOS:      "linux",
			Platforms: map[string]device.Query{"linux": capturetest.Query},
		}
		o.Device = device.FilterByName("Synthetic Camera")
		o.Preference = device.Preference{Width: 320, Height: 240}
	})

	require.NoError(t, f.cam.Open(context.Background()))
	desc := f.cam.Descriptor()
	assert.Equal(t, 320, desc.Width)
	assert.Equal(t, 60.0, desc.FrameRate)
}

func TestOpenDefaultsToBestMode(t *testing.T) {
	f := newFixture(t, func(o *camera.Options) {
		o.Descriptor = nil
		o.Enumerator = &device.Enumerator{
			GOOS:      "linux",
			Platforms: map[string]device.Query{"linux": capturetest.Query},
		}
	})

	require.NoError(t, f.cam.Open(context.Background()))
	assert.Equal(t, 640, f.cam.Descriptor().Width)
}

func TestRecordFailsWhenWriterFails(t *testing.T) {
	f := newFixture(t)
	f.writers.StartErr = errors.New("no space left")
	require.NoError(t, f.cam.Open(context.Background()))

	err := f.cam.Record()
	assert.ErrorContains(t, err, "no space left")
	assert.False(t, f.cam.IsRecording())
	assert.False(t, f.mic.IsStarted())
}

func TestRecordFailsWhenMicrophoneFails(t *testing.T) {
	f := newFixture(t)
	f.mic.StartErr = errors.New("no microphone")
	require.NoError(t, f.cam.Open(context.Background()))

	err := f.cam.Record()
	assert.ErrorContains(t, err, "no microphone")
	assert.False(t, f.cam.IsRecording())
	assert.True(t, f.writers.Last().Finished())
}

func TestRecordWithoutMicrophone(t *testing.T) {
	f := newFixture(t, func(o *camera.Options) { o.Microphone = nil })
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())
	waitForFrames(t, cam, 2)
	require.NoError(t, cam.Stop())
	assert.Empty(t, cam.AudioPath())
	require.NoError(t, cam.Save("/clip.mp4"))
}

func TestSaveStopsRecording(t *testing.T) {
	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())
	waitForFrames(t, cam, 2)

	require.NoError(t, cam.Save("/clips/a.mp4"))
	assert.True(t, cam.IsStopped())
	assert.NotEmpty(t, cam.AudioPath())
	assert.ErrorIs(t, cam.Save("/clips/b.mp4"), camera.ErrNothingToSave)
}

func TestStopKeepsUndrainedFrames(t *testing.T) {
	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, cam.Stop())

	n := cam.BufferLen()
	assert.GreaterOrEqual(t, n, 5)
	assertMonotonic(t, cam.Frames())

	require.NoError(t, cam.Save("/clips/a.mp4"))
	assert.Len(t, f.writers.Last().Frames(), n)
}

func TestSaveKeepsUndrainedFrames(t *testing.T) {
	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, cam.Save("/clips/a.mp4"))

	assert.GreaterOrEqual(t, len(f.writers.Last().Frames()), 5)
	info, err := f.fs.Stat("/clips/a.mp4")
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestStreamFailureSurfaces(t *testing.T) {
	boom := errors.New("usb disconnected")
	f := newFixture(t, func(o *camera.Options) {
		require.NoError(t, o.Manager.Register("flaky", capturetest.Factory(capturetest.Options{
			FailAfter: 3,
			Err:       boom,
		})))
		o.Backend = "flaky"
	})
	require.NoError(t, f.cam.Open(context.Background()))

	require.Eventually(t, func() bool {
		_, err := f.cam.Update()
		return errors.Is(err, boom)
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRecordingTime(t *testing.T) {
	if testing.Short() {
		t.Skip("records for one second")
	}

	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())

	start := time.Now()
	for time.Since(start) < time.Second {
		_, err := cam.Update()
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, cam.Stop())

	assert.InDelta(t, 1.0, cam.RecordingTime().Seconds(), 0.1)
	assert.InDelta(t, testRate, cam.BufferLen(), 8)
	assertMonotonic(t, cam.Frames())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "recording", camera.StatusRecording.String())
	assert.Equal(t, "not started", camera.StatusNotStarted.String())
	assert.Equal(t, "invalid", camera.Status(42).String())
}

func TestTempDirIsPerSession(t *testing.T) {
	f := newFixture(t)
	cam := f.cam
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Record())

	entries := tempEntries(t, f.fs)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0], "camrec-"))
	assert.Equal(t, filepath.Join("/tmp", entries[0]), filepath.Dir(f.writers.Last().Path()))

	require.NoError(t, cam.Close())
	assert.Empty(t, tempEntries(t, f.fs))
}
