// Package opencv captures frames through OpenCV's VideoCapture.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/expkit/camrec/internal/logging"
	"github.com/expkit/camrec/pkg/capture"
	"github.com/expkit/camrec/pkg/device"
)

// Name is the backend name the OpenCV source registers under.
const Name = device.LibraryOpenCV

// Camera can occasionally produce empty frames. Consider it as error
// when empty frame is returned repeatedly.
const maxEmptyFrameCount = 5

var (
	logger = logging.NewLogger("camrec/capture/opencv")

	errEmptyFrame = errors.New("received empty frame repeatedly")
)

// Register adds the OpenCV backend to m.
func Register(m *capture.Manager) error {
	return m.Register(Name, New)
}

type source struct {
	desc  device.Descriptor
	input any

	cap      *gocv.VideoCapture
	img      gocv.Mat
	rgb      gocv.Mat
	start    time.Time
	posMsec  bool
	width    int
	height   int
	hasMats  bool
	readOnce bool
}

// New is a capture.Factory. Descriptors with a numeric path or no path open the
// camera by index; any other path is handed to OpenCV as a device or file name.
func New(desc device.Descriptor, _ capture.Config) (capture.Source, error) {
	var input any = desc.Index
	if desc.Path != "" {
		if i, err := strconv.Atoi(desc.Path); err == nil {
			input = i
		} else {
			input = desc.Path
		}
	}
	return &source{desc: desc, input: input}, nil
}

func (s *source) Open(ctx context.Context) (capture.Metadata, error) {
	vc, err := gocv.OpenVideoCapture(s.input)
	if err != nil {
		return capture.Metadata{}, fmt.Errorf("failed to open %v: %w", s.input, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return capture.Metadata{}, fmt.Errorf("failed to open %v", s.input)
	}

	if s.desc.Width > 0 && s.desc.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.desc.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.desc.Height))
	}
	if s.desc.FrameRate > 0 {
		vc.Set(gocv.VideoCaptureFPS, s.desc.FrameRate)
	}

	s.cap = vc
	s.img = gocv.NewMat()
	s.rgb = gocv.NewMat()
	s.hasMats = true
	s.width = int(vc.Get(gocv.VideoCaptureFrameWidth))
	s.height = int(vc.Get(gocv.VideoCaptureFrameHeight))

	rate := vc.Get(gocv.VideoCaptureFPS)
	if rate <= 0 {
		rate = s.desc.FrameRate
	}
	s.start = time.Now()

	logger.Debugf("opened %v: %dx%d@%vfps", s.input, s.width, s.height, rate)
	return capture.Metadata{
		Width:     s.width,
		Height:    s.height,
		FrameRate: device.NormalizeFrameRate(rate),
		Start:     s.start,
		Extra: map[string]any{
			"fourcc": vc.CodecString(),
		},
	}, nil
}

func (s *source) Read(ctx context.Context) (capture.Raw, error) {
	var empty int
	for {
		if err := ctx.Err(); err != nil {
			return capture.Raw{}, err
		}
		if !s.cap.Read(&s.img) {
			return capture.Raw{}, io.EOF
		}
		if !s.img.Empty() {
			break
		}
		empty++
		if empty > maxEmptyFrameCount {
			return capture.Raw{}, errEmptyFrame
		}
	}

	pts := time.Since(s.start)
	if !s.readOnce {
		// Files and devices that report positions keep doing so; decide once.
		// A file reports 0 for its first frame but has a frame count.
		s.posMsec = s.cap.Get(gocv.VideoCaptureFrameCount) > 0 ||
			s.cap.Get(gocv.VideoCapturePosMsec) > 0
		s.readOnce = true
	}
	if s.posMsec {
		pts = time.Duration(s.cap.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	}

	gocv.CvtColor(s.img, &s.rgb, gocv.ColorBGRToRGB)
	return capture.Raw{
		Pix:    s.rgb.ToBytes(),
		Width:  s.rgb.Cols(),
		Height: s.rgb.Rows(),
		PTS:    pts,
	}, nil
}

func (s *source) Close() error {
	if s.hasMats {
		s.img.Close()
		s.rgb.Close()
		s.hasMats = false
	}
	if s.cap == nil {
		return nil
	}
	err := s.cap.Close()
	s.cap = nil
	return err
}
