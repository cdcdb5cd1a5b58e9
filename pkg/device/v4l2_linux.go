package device

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/blackjack/webcam"

	"github.com/expkit/camrec/pkg/frame"
)

// v4l2Formats maps native V4L2 pixel formats to the FourCCs used in this module.
// Formats missing from the map are skipped.
var v4l2Formats = map[frame.FourCC]frame.FourCC{
	"YUYV": frame.FormatYUY2,
	"UYVY": frame.FormatUYVY,
	"NV12": frame.FormatNV12,
	"NV21": frame.FormatNV21,
	"YU12": frame.FormatI420,
	"RGB3": frame.FormatRGB24,
	"BGR3": frame.FormatBGR24,
	"GREY": frame.FormatGray,
	"MJPG": frame.FormatMJPEG,
	"H264": frame.FormatH264,
}

// V4L2Query enumerates Video4Linux2 capture nodes matching pattern.
func V4L2Query(pattern string) Query {
	return func(ctx context.Context) ([]Descriptor, error) {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(paths)

		var descs []Descriptor
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			cam, err := webcam.Open(path)
			if err != nil {
				// Metadata nodes and busy devices can't be opened.
				logger.Debugf("skipping %s: %v", path, err)
				continue
			}
			descs = append(descs, v4l2Modes(cam, i, path)...)
			cam.Close()
		}
		return descs, nil
	}
}

func v4l2Modes(cam *webcam.Webcam, index int, path string) []Descriptor {
	var descs []Descriptor
	name := filepath.Base(path)
	for pf := range cam.GetSupportedFormats() {
		native := frame.FourCCFromUint32(uint32(pf))
		f, ok := v4l2Formats[native]
		if !ok {
			logger.Debugf("%s: skipping unmapped pixel format %s", path, native)
			continue
		}

		for _, size := range cam.GetSupportedFrameSizes(pf) {
			w, h := size.MaxWidth, size.MaxHeight
			for _, r := range cam.GetSupportedFramerates(pf, w, h) {
				// Frame intervals are reported as numerator/denominator seconds.
				if r.MinNumerator == 0 {
					continue
				}
				d := Descriptor{
					Index:     index,
					Name:      name,
					Path:      path,
					Width:     int(w),
					Height:    int(h),
					FrameRate: NormalizeFrameRate(float64(r.MaxDenominator) / float64(r.MinNumerator)),
					API:       APIVideo4Linux2,
					Library:   LibraryFFmpeg,
				}
				if f.IsCompressed() {
					d.CodecFormat = f
				} else {
					d.PixelFormat = f
				}
				descs = append(descs, d)
			}
		}
	}
	return descs
}
