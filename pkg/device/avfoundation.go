package device

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/pkg/frame"
)

var (
	avfDeviceRe = regexp.MustCompile(`^\[(\d+)\] (.+)$`)
	avfModeRe   = regexp.MustCompile(`^\s*(\d+)x(\d+)@\[([\d.]+)\s+([\d.]+)\]fps`)
	avfFormatRe = regexp.MustCompile(`^\s+([0-9a-z_]+)\s*$`)
)

type avfDevice struct {
	index int
	name  string
}

type avfMode struct {
	width, height int
	rate          float64
}

// AVFoundationQuery enumerates macOS cameras through ffmpeg's avfoundation input
// device. Each device is probed twice: once with an impossible frame size so that
// the supported modes are listed, and once with an unknown pixel format so that
// the supported pixel formats are listed.
func AVFoundationQuery(bin string, run ffmpeg.Runner) Query {
	return func(ctx context.Context) ([]Descriptor, error) {
		out, err := run(ctx, bin, "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
		if err != nil {
			return nil, err
		}

		var descs []Descriptor
		for _, dev := range parseAVFoundationDevices(out) {
			input := strconv.Itoa(dev.index) + ":none"

			out, err := run(ctx, bin, "-hide_banner", "-f", "avfoundation",
				"-video_size", "1x1", "-i", input)
			if err != nil {
				return nil, err
			}
			modes := parseAVFoundationModes(out)
			if len(modes) == 0 {
				logger.Warnf("avfoundation device %q reported no capture modes", dev.name)
				continue
			}

			out, err = run(ctx, bin, "-hide_banner", "-f", "avfoundation",
				"-video_size", fmt.Sprintf("%dx%d", modes[0].width, modes[0].height),
				"-framerate", strconv.FormatFloat(modes[0].rate, 'f', -1, 64),
				"-pixel_format", "none", "-i", input, "-frames:v", "1", "-f", "null", "-")
			if err != nil {
				return nil, err
			}
			formats, err := parseAVFoundationPixelFormats(out)
			if err != nil {
				return nil, err
			}

			for _, m := range modes {
				for _, f := range formats {
					descs = append(descs, Descriptor{
						Index:       dev.index,
						Name:        dev.name,
						Path:        strconv.Itoa(dev.index),
						Width:       m.width,
						Height:      m.height,
						FrameRate:   m.rate,
						PixelFormat: f,
						API:         APIAVFoundation,
						Library:     LibraryFFmpeg,
					})
				}
			}
		}
		return descs, nil
	}
}

// parseAVFoundationDevices reads the video section of -list_devices output.
// Screen capture pseudo devices are skipped.
func parseAVFoundationDevices(out []byte) []avfDevice {
	var (
		devices []avfDevice
		inVideo bool
	)
	for _, line := range ffmpeg.Lines(out) {
		switch {
		case strings.Contains(line, "AVFoundation video devices:"):
			inVideo = true
			continue
		case strings.Contains(line, "AVFoundation audio devices:"):
			inVideo = false
			continue
		}
		if !inVideo {
			continue
		}

		m := avfDeviceRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || strings.HasPrefix(m[2], "Capture screen") {
			continue
		}
		index, _ := strconv.Atoi(m[1])
		devices = append(devices, avfDevice{index: index, name: m[2]})
	}
	return devices
}

// parseAVFoundationModes reads the "Supported modes:" listing. The maximum rate of
// each range is used.
func parseAVFoundationModes(out []byte) []avfMode {
	var modes []avfMode
	seen := make(map[avfMode]struct{})
	for _, line := range ffmpeg.Lines(out) {
		m := avfModeRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		rate, err := strconv.ParseFloat(m[4], 64)
		if err != nil || w <= 0 || h <= 0 || rate <= 0 {
			continue
		}

		mode := avfMode{width: w, height: h, rate: NormalizeFrameRate(rate)}
		if _, ok := seen[mode]; ok {
			continue
		}
		seen[mode] = struct{}{}
		modes = append(modes, mode)
	}
	return modes
}

// parseAVFoundationPixelFormats reads the "Supported pixel formats:" listing and maps
// every entry to a FourCC.
func parseAVFoundationPixelFormats(out []byte) ([]frame.FourCC, error) {
	var (
		formats []frame.FourCC
		inList  bool
	)
	for _, line := range ffmpeg.Lines(out) {
		if strings.Contains(line, "Supported pixel formats:") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		m := avfFormatRe.FindStringSubmatch(line)
		if m == nil {
			break
		}
		f, err := frame.FromPixelFormat(m[1])
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		// Devices that accept any pixel format do not print the list.
		formats = append(formats, frame.FormatUYVY)
	}
	return formats, nil
}
