package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

type rawSource struct {
	r        *bufio.Reader
	rate     float64
	channels int
	width    int
	decode   func([]byte) float64
	frame    []byte
}

func newRawSource(r *bufio.Reader, format Format, rate float64, channels int) (*rawSource, error) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: sample rate must be positive: %v", ErrRawParams, rate)
	}

	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count must be at least 1: %d", ErrRawParams, channels)
	}

	s := &rawSource{r: r, rate: rate, channels: channels}

	switch format {
	case FormatF32LE:
		s.width = 4
		s.decode = decodeF32LE
	case FormatS16LE:
		s.width = 2
		s.decode = decodeS16LE
	default:
		return nil, fmt.Errorf("%w: %q is not a raw format", ErrUnknownFormat, string(format))
	}

	s.frame = make([]byte, s.width*channels)

	return s, nil
}

func (s *rawSource) SampleRate() float64 { return s.rate }

func (s *rawSource) Channels() int { return s.channels }

// Read decodes whole frames. A truncated final frame is discarded.
func (s *rawSource) Read(dst []float64) (int, error) {
	for n := range dst {
		if _, err := io.ReadFull(s.r, s.frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
			return n, fmt.Errorf("audio: read frame: %w", err)
		}

		dst[n] = s.decode(s.frame[:s.width])
	}

	return len(dst), nil
}

func decodeF32LE(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

func decodeS16LE(b []byte) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
}
