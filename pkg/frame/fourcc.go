package frame

import "fmt"

// FormatNotFoundError is returned when a native pixel or codec format has no
// FourCC mapping, or a FourCC has no decoder-side name.
type FormatNotFoundError struct {
	Name string
}

func (e *FormatNotFoundError) Error() string {
	return fmt.Sprintf("no format mapping for %q", e.Name)
}

var pixelFormats = map[string]FourCC{
	"yuv420p": FormatI420,
	"nv12":    FormatNV12,
	"nv21":    FormatNV21,
	"yuyv422": FormatYUY2,
	"uyvy422": FormatUYVY,
	"rgb24":   FormatRGB24,
	"bgr24":   FormatBGR24,
	"bgr0":    FormatBGRX,
	"0rgb":    FormatXRGB,
	"gray":    FormatGray,
}

var codecFormats = map[string]FourCC{
	"mjpeg": FormatMJPEG,
	"h264":  FormatH264,
	"hevc":  FormatHEVC,
}

var (
	reversedPixelFormats = reverse(pixelFormats)
	reversedCodecFormats = reverse(codecFormats)
)

func reverse(m map[string]FourCC) map[FourCC]string {
	r := make(map[FourCC]string, len(m))
	for k, v := range m {
		r[v] = k
	}
	return r
}

// FromPixelFormat maps an ffmpeg pixel format name (pix_fmt) to its FourCC.
func FromPixelFormat(name string) (FourCC, error) {
	if f, ok := pixelFormats[name]; ok {
		return f, nil
	}
	return "", &FormatNotFoundError{Name: name}
}

// FromCodec maps an ffmpeg codec name to its FourCC.
func FromCodec(name string) (FourCC, error) {
	if f, ok := codecFormats[name]; ok {
		return f, nil
	}
	return "", &FormatNotFoundError{Name: name}
}

// PixelFormatName is the inverse of FromPixelFormat.
func PixelFormatName(f FourCC) (string, error) {
	if name, ok := reversedPixelFormats[f]; ok {
		return name, nil
	}
	return "", &FormatNotFoundError{Name: string(f)}
}

// CodecName is the inverse of FromCodec.
func CodecName(f FourCC) (string, error) {
	if name, ok := reversedCodecFormats[f]; ok {
		return name, nil
	}
	return "", &FormatNotFoundError{Name: string(f)}
}
