// Package track runs a pitch.Tuner over a finite audio source the way a host
// would: block by block through OnBlock, with a display poller reading the
// latest estimate at a fixed cadence of stream time.
package track

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cwbudde/algo-tuner/internal/audio"
	"github.com/cwbudde/algo-tuner/internal/observe"
	"github.com/cwbudde/algo-tuner/measure/pitch"
)

// Config controls a Run.
type Config struct {
	// BlockSize is the maximum host block length in samples.
	BlockSize int
	// Interval is the polling cadence in stream time.
	Interval time.Duration
	// Options configure the tuner. The sample rate is taken from the source.
	Options []pitch.TunerOption
	// Metrics, when set, receives per-block counters and timings.
	Metrics *observe.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Reading is one poll of the tuner state.
type Reading struct {
	// Time is the stream position of the poll.
	Time       time.Duration
	Frequency  float64
	Lag        int
	Clarity    float64
	LoudnessDB float64
	Valid      bool
}

// Result is the outcome of a Run.
type Result struct {
	SampleRate float64
	Samples    int
	Readings   []Reading
	Stats      pitch.Stats
}

// Run feeds src through a new tuner until the source is exhausted or ctx is
// cancelled.
func Run(ctx context.Context, src audio.Source, cfg Config) (*Result, error) {
	if cfg.BlockSize < 1 {
		return nil, fmt.Errorf("track: block size must be at least 1: %d", cfg.BlockSize)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("track: poll interval must be positive: %v", cfg.Interval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rate := src.SampleRate()

	opts := append([]pitch.TunerOption{pitch.WithSampleRate(rate)}, cfg.Options...)
	tuner, err := pitch.NewTuner(opts...)
	if err != nil {
		return nil, fmt.Errorf("track: %w", err)
	}

	logger.Debug("tracking started",
		"sample_rate", rate,
		"channels", src.Channels(),
		"window_size", tuner.WindowSize(),
		"hop_size", tuner.HopSize(),
		"block_size", cfg.BlockSize,
	)

	res := &Result{SampleRate: rate}
	block := make([]float64, cfg.BlockSize)
	next := cfg.Interval

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := src.Read(block)
		if n > 0 {
			before := tuner.Stats()
			start := time.Now()

			tuner.OnBlock(block[:n], rate)

			if cfg.Metrics != nil {
				cfg.Metrics.RecordBlock(ctx, before, tuner.Stats(), time.Since(start))
			}

			res.Samples += n

			elapsed := streamTime(res.Samples, rate)
			for ; next <= elapsed; next += cfg.Interval {
				res.Readings = append(res.Readings, poll(tuner, next))
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("track: read input: %w", err)
		}
	}

	res.Stats = tuner.Stats()

	logger.Debug("tracking finished",
		"samples", res.Samples,
		"readings", len(res.Readings),
		"analyses", res.Stats.Analyses,
		"gated_blocks", res.Stats.GatedBlocks,
	)

	return res, nil
}

func poll(tuner *pitch.Tuner, at time.Duration) Reading {
	est := tuner.Estimate()
	return Reading{
		Time:       at,
		Frequency:  est.Frequency,
		Lag:        est.Lag,
		Clarity:    est.Clarity,
		LoudnessDB: tuner.LoudnessDB(),
		Valid:      est.Valid,
	}
}

func streamTime(samples int, rate float64) time.Duration {
	return time.Duration(float64(samples) / rate * float64(time.Second))
}
