// Command camrec lists capture devices and records clips from them.
//
//	camrec list [-collapse] [-screen]
//	camrec record -o clip.mp4 [-d 5s] [-device 0] [-name "FaceTime HD Camera"]
//	              [-width 1280 -height 720 -fps 30] [-audio] [-screen]
//
// Settings shared by both commands are read from CAMREC_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/expkit/camrec/internal/config"
	ffbin "github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/audio"
	"github.com/expkit/camrec/pkg/audio/microphone"
	"github.com/expkit/camrec/pkg/camera"
	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/capture/capturetest"
	capffmpeg "github.com/expkit/camrec/pkg/capture/ffmpeg"
	capopencv "github.com/expkit/camrec/pkg/capture/opencv"
	"github.com/expkit/camrec/pkg/capture/screen"
	"github.com/expkit/camrec/pkg/device"
	"github.com/expkit/camrec/pkg/mux"
	"github.com/expkit/camrec/pkg/writer"
	wopencv "github.com/expkit/camrec/pkg/writer/opencv"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	closeLog := setupLogging(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "list":
		err = list(ctx, cfg, os.Args[2:])
	case "record":
		err = record(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "camrec:", err)
		closeLog()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: camrec list|record [flags]")
}

// setupLogging routes every logger to stderr or, when configured, to a rotating file.
func setupLogging(cfg *config.Config) func() {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		logging.Configure(os.Stderr, level)
		return func() {}
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
	logging.Configure(lj, level)
	return func() {
		logging.Configure(os.Stderr, level)
		lj.Close()
	}
}

func enumerator(cfg *config.Config, withScreens, synthetic bool) *device.Enumerator {
	var extra []device.Query
	if withScreens {
		extra = append(extra, screen.Query)
	}
	if synthetic {
		extra = append(extra, capturetest.Query)
	}
	return device.NewEnumerator(cfg.FFmpeg, extra...)
}

func list(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	collapse := fs.Bool("collapse", false, "print every mode once without grouping by device")
	withScreens := fs.Bool("screen", false, "include displays")
	synthetic := fs.Bool("synthetic", false, "include the synthetic test camera")
	if err := fs.Parse(args); err != nil {
		return err
	}

	descs, err := enumerator(cfg, *withScreens, *synthetic).ListDescriptions(ctx, *collapse)
	if err != nil {
		return err
	}
	printDescriptions(os.Stdout, descs)
	return nil
}

func printDescriptions(w io.Writer, descs device.Descriptions) {
	if descs.ByDevice == nil {
		for _, d := range descs.Flat {
			fmt.Fprintln(w, d)
		}
		return
	}

	names := make([]string, 0, len(descs.ByDevice))
	for name := range descs.ByDevice {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, name)
		for _, d := range descs.ByDevice[name] {
			fmt.Fprintln(w, "  "+d)
		}
	}
}

type recordFlags struct {
	out       string
	duration  time.Duration
	index     int
	name      string
	width     int
	height    int
	fps       float64
	audio     bool
	screen    bool
	synthetic bool
}

func (f *recordFlags) filter() device.Filter {
	var filters []device.Filter
	if f.index >= 0 {
		filters = append(filters, device.FilterByIndex(f.index))
	}
	if f.name != "" {
		filters = append(filters, device.FilterByName(f.name))
	}
	switch {
	case f.screen:
		filters = append(filters, device.FilterByAPI(device.APIScreen))
	case f.synthetic:
		filters = append(filters, device.FilterByAPI(device.APISynthetic))
	default:
		filters = append(filters, device.FilterNot(device.FilterByAPI(device.APIScreen)))
	}
	return device.FilterAnd(filters...)
}

func record(ctx context.Context, cfg *config.Config, args []string) error {
	var f recordFlags
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	fs.StringVar(&f.out, "o", "", "output file (required)")
	fs.DurationVar(&f.duration, "d", 5*time.Second, "recording duration")
	fs.IntVar(&f.index, "device", -1, "device index, -1 for any")
	fs.StringVar(&f.name, "name", "", "device name or native path")
	fs.IntVar(&f.width, "width", 0, "preferred frame width")
	fs.IntVar(&f.height, "height", 0, "preferred frame height")
	fs.Float64Var(&f.fps, "fps", 0, "preferred frame rate")
	fs.BoolVar(&f.audio, "audio", false, "record the default microphone")
	fs.BoolVar(&f.screen, "screen", false, "record a display instead of a camera")
	fs.BoolVar(&f.synthetic, "synthetic", false, "record the synthetic test camera")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.out == "" {
		return errors.New("record: -o is required")
	}
	if cfg.Writer == "ffmpeg" || f.audio || !(f.screen || f.synthetic) {
		bin, err := ffbin.Lookup(cfg.FFmpeg)
		if err != nil {
			return err
		}
		cfg.FFmpeg = bin
	}

	m, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.CloseAll(); err != nil {
			fmt.Fprintln(os.Stderr, "camrec:", err)
		}
	}()

	opts := camera.Options{
		Device:        f.filter(),
		Preference:    device.Preference{Width: f.width, Height: f.height, FrameRate: f.fps},
		Enumerator:    enumerator(cfg, f.screen, f.synthetic),
		Manager:       m,
		Backend:       cfg.Backend,
		QueueCapacity: cfg.QueueCapacity,
		Writers:       writers(cfg),
		Codec:         cfg.Codec,
		VideoExt:      filepath.Ext(f.out),
		TempDir:       cfg.TempDir,
	}
	if cfg.Writer == "opencv" && len(cfg.Codec) != 4 {
		opts.Codec = wopencv.DefaultCodec
	}
	if f.audio {
		opts.Microphone = microphone.New(microphone.DefaultConfig())
	}

	cam := camera.New(opts)
	if err := cam.Open(ctx); err != nil {
		return err
	}
	defer cam.Close()
	fmt.Fprintf(os.Stderr, "recording %s for %v\n", cam.Descriptor().Description(), f.duration)

	if err := cam.Record(); err != nil {
		return err
	}
	if err := poll(ctx, cam, f.duration); err != nil {
		return err
	}
	if err := cam.Stop(); err != nil {
		return err
	}

	size, err := save(ctx, cfg, cam, f.out)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved %v (%d bytes) to %s\n", cam.RecordingTime().Round(time.Millisecond), size, f.out)
	return nil
}

// newManager returns a registry holding every capture backend.
func newManager(cfg *config.Config) (*capture.Manager, error) {
	m := capture.NewManager(capture.Config{FFmpeg: cfg.FFmpeg, BufferSeconds: cfg.BufferSeconds})
	for _, register := range []func(*capture.Manager) error{
		capffmpeg.Register, capopencv.Register, screen.Register, capturetest.Register,
	} {
		if err := register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func writers(cfg *config.Config) writer.Factory {
	if cfg.Writer == "opencv" {
		return wopencv.Factory
	}
	return writer.FFmpeg(cfg.FFmpeg)
}

// poll updates the camera until d of stream time is recorded, the context is
// cancelled or the stream ends.
func poll(ctx context.Context, cam *camera.Camera, d time.Duration) error {
	tick := time.NewTicker(capturePollInterval(cam.FrameRate()))
	defer tick.Stop()

	for cam.RecordingTime() < d {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		if _, err := cam.Update(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func capturePollInterval(rate float64) time.Duration {
	if rate <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / rate)
}

// save writes the clip to out, muxing the audio track in when one was recorded.
func save(ctx context.Context, cfg *config.Config, cam *camera.Camera, out string) (int64, error) {
	if cam.AudioPath() == "" {
		if err := cam.Save(out); err != nil {
			return 0, err
		}
		info, err := os.Stat(out)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}

	ext := filepath.Ext(out)
	video := strings.TrimSuffix(out, ext) + ".video" + ext
	if err := cam.Save(video); err != nil {
		return 0, err
	}
	defer os.Remove(video)

	track, err := readTrack(cam.AudioPath())
	if err == nil {
		fmt.Fprintf(os.Stderr, "audio: %v at %d Hz\n", track.Duration().Round(time.Millisecond), track.SampleRate)
	}
	return mux.New(cfg.FFmpeg).RenderVideo(ctx, out, video, cam.AudioPath())
}

func readTrack(path string) (*audio.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return audio.ReadWAV(f)
}
