package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestFourCCMapping(t *testing.T) {
	cases := []struct {
		name     string
		codec    bool
		expected FourCC
	}{
		{"yuyv422", false, FormatYUY2},
		{"nv12", false, FormatNV12},
		{"uyvy422", false, FormatUYVY},
		{"bgr0", false, FormatBGRX},
		{"0rgb", false, FormatXRGB},
		{"mjpeg", true, FormatMJPEG},
		{"h264", true, FormatH264},
	}

	for _, c := range cases {
		var (
			got  FourCC
			back string
			err  error
		)
		if c.codec {
			got, err = FromCodec(c.name)
		} else {
			got, err = FromPixelFormat(c.name)
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if got != c.expected {
			t.Errorf("%s: expected %s, got %s", c.name, c.expected, got)
		}

		if c.codec {
			back, err = CodecName(got)
		} else {
			back, err = PixelFormatName(got)
		}
		if err != nil || back != c.name {
			t.Errorf("%s: reverse mapping returned %q, %v", c.name, back, err)
		}
	}
}

func TestFourCCUnmappable(t *testing.T) {
	_, err := FromCodec("cinepak")

	var notFound *FormatNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected FormatNotFoundError, got %v", err)
	}
	if notFound.Name != "cinepak" {
		t.Errorf("expected name cinepak, got %s", notFound.Name)
	}

	if _, err := PixelFormatName(FormatMJPEG); err == nil {
		t.Error("MJPG must not map to a pixel format name")
	}
}

func TestFourCCUint32(t *testing.T) {
	// V4L2_PIX_FMT_YUYV
	const yuyv = 0x56595559
	if f := FourCCFromUint32(yuyv); f != "YUYV" {
		t.Errorf("expected YUYV, got %s", f)
	}
	if v := FourCC("YUYV").Uint32(); v != yuyv {
		t.Errorf("expected %x, got %x", yuyv, v)
	}
	if !FormatMJPEG.IsCompressed() || FormatYUY2.IsCompressed() {
		t.Error("unexpected IsCompressed result")
	}
}

func TestFrameSize(t *testing.T) {
	if n, ok := FrameSize(FormatRGB24, 640, 480); !ok || n != 640*480*3 {
		t.Errorf("unexpected RGB24 size %d", n)
	}
	if n, ok := FrameSize(FormatI420, 4, 4); !ok || n != 24 {
		t.Errorf("unexpected I420 size %d", n)
	}
	if _, ok := FrameSize(FormatMJPEG, 640, 480); ok {
		t.Error("compressed formats have no fixed size")
	}
}

func TestToRGB24(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.RGBA{1, 2, 3, 255})
	src.Set(1, 1, color.RGBA{4, 5, 6, 255})

	dst := ToRGB24(src)
	expected := []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 4, 5, 6}
	if string(dst.Pix) != string(expected) {
		t.Errorf("expected %v, got %v", expected, dst.Pix)
	}
	if c := dst.At(1, 1).(color.RGBA); c.R != 4 || c.A != 0xff {
		t.Errorf("unexpected color %v", c)
	}
}

func TestScale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	dst := Scale(src, 4, 2, nil)
	if dst.Rect.Dx() != 4 || dst.Rect.Dy() != 2 {
		t.Fatalf("unexpected bounds %v", dst.Rect)
	}
	if len(dst.Pix) != 4*2*3 {
		t.Fatalf("unexpected buffer length %d", len(dst.Pix))
	}
	for i, v := range dst.Pix {
		if v != 200 {
			t.Fatalf("pixel %d: expected 200, got %d", i, v)
		}
	}
}

func TestSwapRB(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6}
	SwapRB(pix)
	if string(pix) != string([]byte{3, 2, 1, 6, 5, 4}) {
		t.Errorf("unexpected result %v", pix)
	}
}

func TestFrameImage(t *testing.T) {
	f := &Frame{Width: 2, Height: 1, Pix: []byte{9, 8, 7, 6, 5, 4}}
	if f.Len() != 6 {
		t.Errorf("expected 6 bytes, got %d", f.Len())
	}
	if c := f.Image().At(1, 0).(color.RGBA); c.R != 6 || c.G != 5 || c.B != 4 {
		t.Errorf("unexpected color %v", c)
	}
}

func TestToI420(t *testing.T) {
	// 3x3 with odd edges: two red columns, one blue.
	f := &Frame{Width: 3, Height: 3, Pix: make([]byte, 27)}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			i := y*9 + x*3
			if x < 2 {
				f.Pix[i] = 255
			} else {
				f.Pix[i+2] = 255
			}
		}
	}

	img := f.ToI420()
	if img.Rect.Dx() != 3 || img.Rect.Dy() != 3 {
		t.Fatalf("unexpected bounds %v", img.Rect)
	}
	redY, redCb, redCr := color.RGBToYCbCr(255, 0, 0)
	blueY, blueCb, blueCr := color.RGBToYCbCr(0, 0, 255)

	if got := img.Y[img.YOffset(1, 2)]; got != redY {
		t.Errorf("expected red luma %d, got %d", redY, got)
	}
	if got := img.Y[img.YOffset(2, 2)]; got != blueY {
		t.Errorf("expected blue luma %d, got %d", blueY, got)
	}
	if i := img.COffset(0, 0); img.Cb[i] != redCb || img.Cr[i] != redCr {
		t.Errorf("expected red chroma, got %d %d", img.Cb[i], img.Cr[i])
	}
	if i := img.COffset(2, 2); img.Cb[i] != blueCb || img.Cr[i] != blueCr {
		t.Errorf("expected blue chroma, got %d %d", img.Cb[i], img.Cr[i])
	}
}
