package device

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/expkit/camrec/internal/ffmpeg"
	"github.com/expkit/camrec/pkg/frame"
)

var (
	// ffmpeg >= 4.4: "Integrated Camera" (video)
	dshowDeviceRe = regexp.MustCompile(`^\s*"(.+)" \((video|audio|none|audio, video|video, audio)\)\s*$`)
	// ffmpeg < 4.4 lists names in sections.
	dshowLegacyDeviceRe = regexp.MustCompile(`^\s*"(.+)"\s*$`)
	dshowAltNameRe      = regexp.MustCompile(`^\s*Alternative name "(.+)"\s*$`)
	dshowOptionRe       = regexp.MustCompile(
		`^\s*(pixel_format|vcodec)=(\S+)\s+min s=(\d+)x(\d+) fps=([\d.]+)\s+max s=(\d+)x(\d+) fps=([\d.]+)`)
)

type dshowDevice struct {
	name    string
	altName string
}

// dshowOption is one line of -list_options output.
type dshowOption struct {
	kind   string // pixel_format or vcodec
	format string
	width  int
	height int
	rate   float64
}

// DirectShowQuery enumerates Windows cameras through ffmpeg's dshow input device.
func DirectShowQuery(bin string, run ffmpeg.Runner) Query {
	return func(ctx context.Context) ([]Descriptor, error) {
		out, err := run(ctx, bin, "-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		if err != nil {
			return nil, err
		}

		var descs []Descriptor
		for i, dev := range parseDirectShowDevices(out) {
			out, err := run(ctx, bin, "-hide_banner", "-f", "dshow",
				"-list_options", "true", "-i", "video="+dev.name)
			if err != nil {
				return nil, err
			}

			opts := parseDirectShowOptions(out)
			if len(opts) == 0 {
				logger.Warnf("dshow device %q reported no capture options", dev.name)
				continue
			}

			path := dev.altName
			if path == "" {
				path = dev.name
			}
			for _, o := range opts {
				d := Descriptor{
					Index:     i,
					Name:      dev.name,
					Path:      path,
					Width:     o.width,
					Height:    o.height,
					FrameRate: o.rate,
					API:       APIDirectShow,
					Library:   LibraryFFmpeg,
				}
				if o.kind == "vcodec" {
					d.CodecFormat, err = frame.FromCodec(o.format)
				} else {
					d.PixelFormat, err = frame.FromPixelFormat(o.format)
				}
				if err != nil {
					return nil, err
				}
				descs = append(descs, d)
			}
		}
		return descs, nil
	}
}

// parseDirectShowDevices returns the video devices in listing order.
func parseDirectShowDevices(out []byte) []dshowDevice {
	var (
		devices []dshowDevice
		section string
		last    = -1
	)
	for _, line := range ffmpeg.Lines(out) {
		switch {
		case strings.Contains(line, "DirectShow video devices"):
			section = "video"
			continue
		case strings.Contains(line, "DirectShow audio devices"):
			section = "audio"
			continue
		}

		if m := dshowAltNameRe.FindStringSubmatch(line); m != nil {
			if last >= 0 {
				devices[last].altName = m[1]
			}
			continue
		}

		if m := dshowDeviceRe.FindStringSubmatch(line); m != nil {
			last = -1
			if strings.Contains(m[2], "video") {
				devices = append(devices, dshowDevice{name: m[1]})
				last = len(devices) - 1
			}
			continue
		}

		if m := dshowLegacyDeviceRe.FindStringSubmatch(line); m != nil {
			last = -1
			if section == "video" {
				devices = append(devices, dshowDevice{name: m[1]})
				last = len(devices) - 1
			}
		}
	}
	return devices
}

// parseDirectShowOptions reads -list_options output. The maximum size and rate of
// each line describe the mode; duplicate modes are dropped.
func parseDirectShowOptions(out []byte) []dshowOption {
	var opts []dshowOption
	seen := make(map[dshowOption]struct{})
	for _, line := range ffmpeg.Lines(out) {
		m := dshowOptionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[6])
		h, _ := strconv.Atoi(m[7])
		rate, err := strconv.ParseFloat(m[8], 64)
		if err != nil || w <= 0 || h <= 0 || rate <= 0 {
			continue
		}

		o := dshowOption{
			kind:   m[1],
			format: m[2],
			width:  w,
			height: h,
			rate:   NormalizeFrameRate(rate),
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		opts = append(opts, o)
	}
	return opts
}
