package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// WriteWAV encodes t as a canonical PCM RIFF/WAVE stream.
func WriteWAV(w io.Writer, t *Track) error {
	if t.SampleRate <= 0 || t.Channels <= 0 {
		return errors.New("track needs a sample rate and a channel count")
	}

	dataSize := uint32(len(t.Samples) * bitsPerSample / 8)
	blockAlign := uint16(t.Channels * bitsPerSample / 8)
	byteRate := uint32(t.SampleRate) * uint32(blockAlign)

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(wavHeaderSize - 8 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(t.Channels),
		uint32(t.SampleRate),
		byteRate,
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, t.Samples); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadWAV decodes a stream written by WriteWAV.
func ReadWAV(r io.Reader) (*Track, error) {
	var h struct {
		RIFF          [4]byte
		Size          uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.RIFF[:]) != "RIFF" || string(h.WAVE[:]) != "WAVE" || string(h.Data[:]) != "data" {
		return nil, errors.New("not a canonical WAVE stream")
	}
	if h.AudioFormat != 1 || h.BitsPerSample != bitsPerSample {
		return nil, errors.New("only 16 bit PCM is supported")
	}

	samples := make([]int16, h.DataSize/2)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, err
	}
	return &Track{
		SampleRate: int(h.SampleRate),
		Channels:   int(h.Channels),
		Samples:    samples,
	}, nil
}
