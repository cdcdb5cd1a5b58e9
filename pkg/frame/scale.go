package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// Scaler represents scaling algorithm
type Scaler draw.Scaler

// List of scaling algorithms
var (
	ScalerNearestNeighbor = Scaler(draw.NearestNeighbor)
	ScalerApproxBiLinear  = Scaler(draw.ApproxBiLinear)
	ScalerBiLinear        = Scaler(draw.BiLinear)
	ScalerCatmullRom      = Scaler(draw.CatmullRom)
)

// Scale resizes src to width x height and returns the result as RGB24.
// Setting scaler=nil uses ScalerApproxBiLinear. When src already has the
// requested size it is only converted.
func Scale(src image.Image, width, height int, scaler Scaler) *RGB24Img {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return ToRGB24(src)
	}
	if scaler == nil {
		scaler = ScalerApproxBiLinear
	}

	dst := NewRGB24(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Rect, src, b, draw.Src, nil)
	return dst
}
