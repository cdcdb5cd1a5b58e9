package frame

import (
	"image"
	"image/color"
)

// ToI420 converts an RGB24 frame into a 4:2:0 image. Each chroma sample averages
// the pixels of its 2x2 block.
func (f *Frame) ToI420() *image.YCbCr {
	dst := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio420)
	stride := f.Width * 3

	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*stride:]
		for x := 0; x < f.Width; x++ {
			yy, _, _ := color.RGBToYCbCr(row[x*3], row[x*3+1], row[x*3+2])
			dst.Y[dst.YOffset(x, y)] = yy
		}
	}

	for cy := 0; cy < (f.Height+1)/2; cy++ {
		for cx := 0; cx < (f.Width+1)/2; cx++ {
			var r, g, b, n int
			for y := cy * 2; y < cy*2+2 && y < f.Height; y++ {
				for x := cx * 2; x < cx*2+2 && x < f.Width; x++ {
					i := y*stride + x*3
					r += int(f.Pix[i])
					g += int(f.Pix[i+1])
					b += int(f.Pix[i+2])
					n++
				}
			}
			_, cb, cr := color.RGBToYCbCr(uint8(r/n), uint8(g/n), uint8(b/n))
			i := cy*dst.CStride + cx
			dst.Cb[i] = cb
			dst.Cr[i] = cr
		}
	}
	return dst
}
