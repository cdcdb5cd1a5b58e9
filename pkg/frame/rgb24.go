package frame

import (
	"image"
	"image/color"
)

type RGB24Img struct {
	// Pix holds the image's pixels, in R, G, B order. The pixel at
	// (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix    []uint8
	Rect   image.Rectangle
	Stride int
}

// NewRGB24 allocates a black image covering r.
func NewRGB24(r image.Rectangle) *RGB24Img {
	return &RGB24Img{
		Pix:    make([]uint8, 3*r.Dx()*r.Dy()),
		Rect:   r,
		Stride: 3 * r.Dx(),
	}
}

func (p *RGB24Img) ColorModel() color.Model {
	return color.RGBAModel
}

func (p *RGB24Img) Bounds() image.Rectangle {
	return p.Rect
}

func (p *RGB24Img) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

func (p *RGB24Img) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3] // Small capacity improves performance, see https://golang.org/issue/27857
	return color.RGBA{s[0], s[1], s[2], 0xff}
}

// Set lets RGB24Img act as a draw.Image destination.
func (p *RGB24Img) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	r, g, b, _ := c.RGBA()
	p.Pix[i] = uint8(r >> 8)
	p.Pix[i+1] = uint8(g >> 8)
	p.Pix[i+2] = uint8(b >> 8)
}

// ToRGB24 converts src into a tightly packed RGB24 image. Alpha is dropped.
// Note: conversion from YCbCr is lossy
func ToRGB24(src image.Image) *RGB24Img {
	if img, ok := src.(*RGB24Img); ok && img.Stride == 3*img.Rect.Dx() {
		return img
	}

	bounds := src.Bounds()
	dx, dy := bounds.Dx(), bounds.Dy()
	dst := NewRGB24(image.Rect(0, 0, dx, dy))

	switch s := src.(type) {
	case *image.RGBA:
		for y := 0; y < dy; y++ {
			si := s.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < dx; x++ {
				dst.Pix[di] = s.Pix[si]
				dst.Pix[di+1] = s.Pix[si+1]
				dst.Pix[di+2] = s.Pix[si+2]
				si += 4
				di += 3
			}
		}
	case *image.YCbCr:
		i := 0
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				yi := s.YOffset(bounds.Min.X+x, bounds.Min.Y+y)
				ci := s.COffset(bounds.Min.X+x, bounds.Min.Y+y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = color.YCbCrToRGB(s.Y[yi], s.Cb[ci], s.Cr[ci])
				i += 3
			}
		}
	default:
		i := 0
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				dst.Pix[i] = uint8(r >> 8)
				dst.Pix[i+1] = uint8(g >> 8)
				dst.Pix[i+2] = uint8(b >> 8)
				i += 3
			}
		}
	}
	return dst
}

// SwapRB converts between RGB24 and BGR24 in place.
func SwapRB(pix []byte) {
	for i := 0; i+2 < len(pix); i += 3 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
