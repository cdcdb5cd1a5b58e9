// Package libav writes video files through libavcodec and libavformat.
// This package requires ffmpeg headers and libraries to be built.
// For more information, see https://github.com/asticode/go-astiav?tab=readme-ov-file#install-ffmpeg-from-source.
//
// Unlike writer.FFmpeg, frames are encoded in process and no ffmpeg executable is
// needed. The container is taken from the file extension.
package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/expkit/camrec/pkg/frame"
	"github.com/expkit/camrec/pkg/writer"
)

// DefaultCodec is the encoder used when Params.Codec is empty.
const DefaultCodec = "libx264"

// Timestamps are carried in milliseconds so variable frame rate capture keeps
// its timing.
var timeBase = astiav.NewRational(1, 1000)

// Factory is a writer.Factory.
func Factory(path string, p writer.Params) (writer.Writer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Codec == "" {
		p.Codec = DefaultCodec
	}
	return writer.New(path, &encoder{path: path, params: p}, 0), nil
}

type encoder struct {
	path   string
	params writer.Params

	formatCtx *astiav.FormatContext
	ioCtx     *astiav.IOContext
	codecCtx  *astiav.CodecContext
	stream    *astiav.Stream
	frame     *astiav.Frame
	packet    *astiav.Packet

	first   int64
	lastPTS int64
	started bool
}

func (e *encoder) Start() error {
	astiav.SetLogLevel(astiav.LogLevel(astiav.LogLevelWarning))

	codec := astiav.FindEncoderByName(e.params.Codec)
	if codec == nil {
		return fmt.Errorf("%w: %s", errCodecNotFound, e.params.Codec)
	}

	formatCtx, err := astiav.AllocOutputFormatContext(nil, "", e.path)
	if err != nil {
		return fmt.Errorf("libav: no container for %s: %w", e.path, err)
	}
	e.formatCtx = formatCtx

	codecCtx := astiav.AllocCodecContext(codec)
	if codecCtx == nil {
		e.free()
		return errFailedToCreateCodecCtx
	}
	e.codecCtx = codecCtx

	codecCtx.SetWidth(e.params.Width)
	codecCtx.SetHeight(e.params.Height)
	codecCtx.SetTimeBase(timeBase)
	codecCtx.SetFramerate(astiav.NewRational(int(e.params.FrameRate*1000), 1000))
	codecCtx.SetPixelFormat(astiav.PixelFormat(astiav.PixelFormatYuv420P))
	codecCtx.SetMaxBFrames(0)
	if e.params.Codec == "libx264" {
		codecOptions := codecCtx.PrivateData().Options()
		codecOptions.Set("preset", "ultrafast", 0)
	}
	if formatCtx.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		codecCtx.SetFlags(codecCtx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	if err := codecCtx.Open(codec, nil); err != nil {
		e.free()
		return fmt.Errorf("%w: %v", errFailedToOpenCodecCtx, err)
	}

	stream := formatCtx.NewStream(codec)
	if stream == nil {
		e.free()
		return errFailedToCreateStream
	}
	if err := stream.CodecParameters().FromCodecContext(codecCtx); err != nil {
		e.free()
		return err
	}
	stream.SetTimeBase(codecCtx.TimeBase())
	e.stream = stream

	e.frame = astiav.AllocFrame()
	if e.frame == nil {
		e.free()
		return errFailedToAllocFrame
	}
	e.frame.SetWidth(e.params.Width)
	e.frame.SetHeight(e.params.Height)
	e.frame.SetPixelFormat(astiav.PixelFormat(astiav.PixelFormatYuv420P))
	if err := e.frame.AllocBuffer(0); err != nil {
		e.free()
		return errFailedToAllocSwBuf
	}

	e.packet = astiav.AllocPacket()
	if e.packet == nil {
		e.free()
		return errFailedToAllocPacket
	}

	if !formatCtx.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioCtx, err := astiav.OpenIOContext(e.path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			e.free()
			return fmt.Errorf("libav: failed to open %s: %w", e.path, err)
		}
		e.ioCtx = ioCtx
		formatCtx.SetPb(ioCtx)
	}

	if err := formatCtx.WriteHeader(nil); err != nil {
		e.free()
		return fmt.Errorf("libav: failed to write header: %w", err)
	}
	return nil
}

func (e *encoder) Encode(f *frame.Frame) error {
	if f.Width != e.params.Width || f.Height != e.params.Height {
		return fmt.Errorf("frame %d is %dx%d, writer expects %dx%d",
			f.Index, f.Width, f.Height, e.params.Width, e.params.Height)
	}

	if err := e.frame.MakeWritable(); err != nil {
		return err
	}
	if err := e.frame.Data().FromImage(f.ToI420()); err != nil {
		return err
	}

	// Presentation times start at zero and must grow even when two frames fall
	// into the same millisecond.
	pts := f.AbsTime.Milliseconds()
	if !e.started {
		e.first = pts
		e.started = true
		e.lastPTS = -1
	}
	pts -= e.first
	if pts <= e.lastPTS {
		pts = e.lastPTS + 1
	}
	e.lastPTS = pts
	e.frame.SetPts(pts)

	if err := e.codecCtx.SendFrame(e.frame); err != nil {
		return err
	}
	return e.drain()
}

// drain writes every packet the encoder has ready.
func (e *encoder) drain() error {
	for {
		if err := e.codecCtx.ReceivePacket(e.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
				return nil
			}
			return err
		}

		e.packet.RescaleTs(e.codecCtx.TimeBase(), e.stream.TimeBase())
		e.packet.SetStreamIndex(e.stream.Index())
		err := e.formatCtx.WriteInterleavedFrame(e.packet)
		e.packet.Unref()
		if err != nil {
			return fmt.Errorf("libav: failed to write packet: %w", err)
		}
	}
}

func (e *encoder) Finish() error {
	if e.formatCtx == nil {
		return nil
	}
	defer e.free()

	var errs []error
	if err := e.codecCtx.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		errs = append(errs, err)
	} else if err := e.drain(); err != nil {
		errs = append(errs, err)
	}
	if err := e.formatCtx.WriteTrailer(); err != nil {
		errs = append(errs, fmt.Errorf("libav: failed to write trailer: %w", err))
	}
	return errors.Join(errs...)
}

func (e *encoder) free() {
	if e.packet != nil {
		e.packet.Free()
		e.packet = nil
	}
	if e.frame != nil {
		e.frame.Free()
		e.frame = nil
	}
	if e.codecCtx != nil {
		e.codecCtx.Free()
		e.codecCtx = nil
	}
	if e.ioCtx != nil {
		e.ioCtx.Close()
		e.ioCtx = nil
	}
	if e.formatCtx != nil {
		e.formatCtx.Free()
		e.formatCtx = nil
	}
}
