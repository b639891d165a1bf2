package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/mjibson/go-dsp/wav"
)

// wavChunk is the number of interleaved values requested per decoder call.
const wavChunk = 4096

type wavSource struct {
	w         *wav.Wav
	channels  int
	remaining int

	// phase is the channel index of the next decoded value.
	phase   int
	pending []float64
	off     int
}

func newWAVSource(r io.Reader) (*wavSource, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read WAV header: %w", err)
	}

	if w.Header.NumChannels == 0 || w.Header.SampleRate == 0 {
		return nil, fmt.Errorf("audio: WAV header has %d channels at %d Hz",
			w.Header.NumChannels, w.Header.SampleRate)
	}

	return &wavSource{
		w:         w,
		channels:  int(w.Header.NumChannels),
		remaining: w.Samples,
		pending:   make([]float64, 0, wavChunk),
	}, nil
}

func (s *wavSource) SampleRate() float64 { return float64(s.w.Header.SampleRate) }

func (s *wavSource) Channels() int { return s.channels }

func (s *wavSource) Read(dst []float64) (int, error) {
	n := 0

	for n < len(dst) {
		if s.off == len(s.pending) {
			if err := s.fill(); err != nil {
				if errors.Is(err, io.EOF) && n > 0 {
					return n, nil
				}
				return n, err
			}
		}

		c := copy(dst[n:], s.pending[s.off:])
		s.off += c
		n += c
	}

	return n, nil
}

// fill decodes the next chunk and keeps its channel-0 values.
func (s *wavSource) fill() error {
	s.pending = s.pending[:0]
	s.off = 0

	for len(s.pending) == 0 {
		if s.remaining <= 0 {
			return io.EOF
		}

		want := min(wavChunk, s.remaining)

		data, err := s.w.ReadSamples(want)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.remaining = 0
				return io.EOF
			}
			return fmt.Errorf("audio: decode WAV data: %w", err)
		}

		got, err := s.keepChannelZero(data)
		if err != nil {
			return err
		}

		if got == 0 {
			s.remaining = 0
			return io.EOF
		}

		s.remaining -= got
	}

	return nil
}

// keepChannelZero appends the channel-0 values of an interleaved chunk to
// pending and returns the number of values in the chunk.
func (s *wavSource) keepChannelZero(data any) (int, error) {
	switch d := data.(type) {
	case []uint8:
		for _, v := range d {
			s.push((float64(v) - 128) / 128)
		}
		return len(d), nil
	case []int16:
		for _, v := range d {
			s.push(float64(v) / 32768)
		}
		return len(d), nil
	case []float32:
		for _, v := range d {
			s.push(float64(v))
		}
		return len(d), nil
	default:
		return 0, fmt.Errorf("audio: unsupported WAV sample type %T", data)
	}
}

func (s *wavSource) push(v float64) {
	if s.phase == 0 {
		s.pending = append(s.pending, v)
	}

	s.phase++
	if s.phase == s.channels {
		s.phase = 0
	}
}
