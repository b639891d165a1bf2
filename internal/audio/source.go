// Package audio reads mono analysis input from WAV files and raw PCM streams.
//
// Every Source yields channel 0 only, as float64 samples in [-1, 1].
package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format identifies an input encoding.
type Format string

const (
	// FormatAuto detects WAV by its RIFF magic. Raw PCM cannot be detected.
	FormatAuto Format = "auto"
	// FormatWAV is a RIFF/WAVE file with 8 or 16-bit PCM or 32-bit float data.
	FormatWAV Format = "wav"
	// FormatF32LE is headerless interleaved little-endian float32 PCM.
	FormatF32LE Format = "f32le"
	// FormatS16LE is headerless interleaved little-endian int16 PCM.
	FormatS16LE Format = "s16le"
)

var (
	// ErrUnknownFormat reports an unsupported or undetectable input format.
	ErrUnknownFormat = errors.New("audio: unknown format")
	// ErrRawParams reports a missing or invalid sample rate or channel count
	// for headerless input.
	ErrRawParams = errors.New("audio: invalid raw stream parameters")
)

// Source delivers channel-0 samples of a stream.
type Source interface {
	// SampleRate returns the stream sample rate in Hz.
	SampleRate() float64
	// Channels returns the channel count of the underlying stream.
	Channels() int
	// Read fills dst with up to len(dst) samples and returns how many were
	// written. It returns io.EOF once the stream is exhausted.
	Read(dst []float64) (int, error)
}

// ParseFormat parses a format name. The empty string selects FormatAuto.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatWAV, FormatF32LE, FormatS16LE:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Open wraps r in a Source. rawRate and rawChannels describe headerless
// formats and are ignored for WAV input.
func Open(r io.Reader, format Format, rawRate float64, rawChannels int) (Source, error) {
	br := bufio.NewReader(r)

	if format == FormatAuto {
		magic, err := br.Peek(4)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("audio: detect format: %w", err)
		}

		if !bytes.Equal(magic, []byte("RIFF")) {
			return nil, fmt.Errorf("%w: input is not a WAV file; name a raw format explicitly",
				ErrUnknownFormat)
		}

		format = FormatWAV
	}

	switch format {
	case FormatWAV:
		return newWAVSource(br)
	case FormatF32LE, FormatS16LE:
		return newRawSource(br, format, rawRate, rawChannels)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// FromSamples returns a Source over an in-memory mono signal.
func FromSamples(samples []float64, sampleRate float64) Source {
	return &sliceSource{samples: samples, rate: sampleRate}
}

type sliceSource struct {
	samples []float64
	rate    float64
	pos     int
}

func (s *sliceSource) SampleRate() float64 { return s.rate }

func (s *sliceSource) Channels() int { return 1 }

func (s *sliceSource) Read(dst []float64) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}

	n := copy(dst, s.samples[s.pos:])
	s.pos += n

	return n, nil
}
