// Package opencv writes video files with OpenCV's VideoWriter.
package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/expkit/camrec/pkg/frame"
	"github.com/expkit/camrec/pkg/writer"
)

// DefaultCodec is the FourCC used when Params.Codec is empty.
const DefaultCodec = "mp4v"

// Factory is a writer.Factory.
func Factory(path string, p writer.Params) (writer.Writer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Codec == "" {
		p.Codec = DefaultCodec
	}
	if len(p.Codec) != 4 {
		return nil, fmt.Errorf("OpenCV needs a FourCC codec, got %q", p.Codec)
	}
	return writer.New(path, &encoder{path: path, params: p}, 0), nil
}

type encoder struct {
	path   string
	params writer.Params
	vw     *gocv.VideoWriter
}

func (e *encoder) Start() error {
	vw, err := gocv.VideoWriterFile(e.path, e.params.Codec, e.params.FrameRate, e.params.Width, e.params.Height, true)
	if err != nil {
		return err
	}
	if !vw.IsOpened() {
		vw.Close()
		return fmt.Errorf("failed to open %s for writing", e.path)
	}
	e.vw = vw
	return nil
}

func (e *encoder) Encode(f *frame.Frame) error {
	if f.Width != e.params.Width || f.Height != e.params.Height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d",
			f.Index, f.Width, f.Height, e.params.Width, e.params.Height)
	}

	// OpenCV expects BGR; the frame is shared, so convert a copy.
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	frame.SwapRB(pix)

	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return err
	}
	defer img.Close()
	return e.vw.Write(img)
}

func (e *encoder) Finish() error {
	if e.vw == nil {
		return nil
	}
	err := e.vw.Close()
	e.vw = nil
	return err
}
