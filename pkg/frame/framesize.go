package frame

// FrameSizeMap returns a function to get the number of bytes a frame will occupy in the given format
var FrameSizeMap = map[FourCC]frameSizeFunc{
	FormatI420:  frameSizeI420,
	FormatNV21:  frameSizeNV21,
	FormatNV12:  frameSizeNV21, // NV12 and NV21 have the same frame size
	FormatYUY2:  frameSizeYUY2,
	FormatUYVY:  frameSizeYUY2, // UYVY and YUY2 have the same frame size
	FormatRGB24: frameSizeRGB24,
	FormatBGR24: frameSizeRGB24,
	FormatXRGB:  frameSizeRGB32,
	FormatBGRX:  frameSizeRGB32,
	FormatGray:  frameSizeGray,
}

type frameSizeFunc func(width, height int) int

// FrameSize returns the byte size of a raw frame. ok is false for compressed or
// unknown formats, whose frame size is not fixed.
func FrameSize(f FourCC, width, height int) (size int, ok bool) {
	fn, ok := FrameSizeMap[f]
	if !ok {
		return 0, false
	}
	return fn(width, height), true
}

func frameSizeYUY2(width, height int) int {
	return 2 * width * height
}

func frameSizeI420(width, height int) int {
	yi := width * height
	return yi + 2*(yi/4)
}

func frameSizeNV21(width, height int) int {
	yi := width * height
	return yi + yi/2
}

func frameSizeRGB24(width, height int) int {
	return 3 * width * height
}

func frameSizeRGB32(width, height int) int {
	return 4 * width * height
}

func frameSizeGray(width, height int) int {
	return width * height
}
