package frame

// FourCC is a four-character code identifying a pixel layout or a compression format.
type FourCC string

const (
	// YUV Formats

	// FormatI420 https://www.fourcc.org/pixel-format/yuv-i420/
	FormatI420 FourCC = "I420"
	// FormatNV12 https://www.fourcc.org/pixel-format/yuv-nv12/
	FormatNV12 FourCC = "NV12"
	// FormatNV21 https://www.fourcc.org/pixel-format/yuv-nv21/
	FormatNV21 FourCC = "NV21"
	// FormatYUY2 https://www.fourcc.org/pixel-format/yuv-yuy2/
	FormatYUY2 FourCC = "YUY2"
	// FormatUYVY https://www.fourcc.org/pixel-format/yuv-uyvy/
	FormatUYVY FourCC = "UYVY"

	// RGB Formats

	// FormatRGB24 is packed R, G, B with 8 bits per channel. Every frame leaving a
	// capture stream uses this layout.
	FormatRGB24 FourCC = "RGB3"
	// FormatBGR24 is packed B, G, R with 8 bits per channel.
	FormatBGR24 FourCC = "BGR3"
	// FormatBGRX is 32 bit B, G, R, X in memory order (DRM XRGB8888).
	FormatBGRX FourCC = "XR24"
	// FormatXRGB is 32 bit X, R, G, B in memory order (DRM BGRX8888).
	FormatXRGB FourCC = "BX24"
	// FormatGray is 8 bit luminance only.
	FormatGray FourCC = "GREY"

	// Compressed Formats

	// FormatMJPEG https://www.fourcc.org/mjpg/
	FormatMJPEG FourCC = "MJPG"
	// FormatH264 is an H.264 elementary stream
	FormatH264 FourCC = "H264"
	// FormatHEVC is an H.265 elementary stream
	FormatHEVC FourCC = "HEVC"
)

// YUV aliases

// FormatYUYV is an alias of FormatYUY2
const FormatYUYV = FormatYUY2

// IsCompressed reports whether f is a codec format rather than a raw pixel layout.
func (f FourCC) IsCompressed() bool {
	switch f {
	case FormatMJPEG, FormatH264, FormatHEVC:
		return true
	}
	return false
}

func (f FourCC) String() string {
	return string(f)
}

// FourCCFromUint32 converts a little-endian packed code, as used by V4L2 and
// DirectShow, into a FourCC.
func FourCCFromUint32(v uint32) FourCC {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return FourCC(b)
}

// Uint32 packs f little-endian. Codes shorter than four characters are padded with spaces.
func (f FourCC) Uint32() uint32 {
	b := [4]byte{' ', ' ', ' ', ' '}
	copy(b[:], f)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
