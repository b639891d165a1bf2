package pitch

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

const (
	DefaultSampleRate       = 44100.0
	DefaultWindowSize       = 1024
	DefaultNoiseThresholdDB = -60.0
	DefaultPeakProportion   = 0.8

	minWindowSize = 32
	maxWindowSize = 1 << 16
)

var (
	// ErrWindowSize reports an analysis window that is not a supported power of two.
	ErrWindowSize = errors.New("pitch: invalid window size")
	// ErrHopSize reports a hop outside [1, window size].
	ErrHopSize = errors.New("pitch: invalid hop size")
	// ErrLength reports a buffer whose length does not match the configured window.
	ErrLength = errors.New("pitch: buffer length mismatch")
)

// TunerConfig holds construction-time settings for a [Tuner].
type TunerConfig struct {
	SampleRate float64

	// WindowSize is the analysis window length N in samples (power of two).
	WindowSize int
	// HopSize is the number of samples between successive analyses.
	// Zero selects WindowSize/4.
	HopSize int

	// NoiseThresholdDB is the block RMS level (dBFS) a block must exceed to
	// be analyzed.
	NoiseThresholdDB float64
	// PeakProportion is the fraction k of the highest key maximum a
	// candidate must reach to be selected.
	PeakProportion float64

	// Interpolate refines the selected lag with parabolic interpolation.
	Interpolate bool
	// Normalize divides the autocorrelation by the windowed energy term,
	// producing the NSDF in [-1, 1].
	Normalize bool
}

// TunerOption mutates a TunerConfig.
type TunerOption func(*TunerConfig)

// DefaultTunerConfig returns the reference tuner settings: 44.1 kHz, a
// 1024-sample window with hop 256, a -60 dBFS gate, k = 0.8, and neither
// interpolation nor energy normalization.
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		SampleRate:       DefaultSampleRate,
		WindowSize:       DefaultWindowSize,
		NoiseThresholdDB: DefaultNoiseThresholdDB,
		PeakProportion:   DefaultPeakProportion,
	}
}

// WithSampleRate sets the initial sample rate in Hz.
func WithSampleRate(sampleRate float64) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.SampleRate = sampleRate
	}
}

// WithWindowSize sets the analysis window length.
func WithWindowSize(size int) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.WindowSize = size
	}
}

// WithHopSize sets the hop between analyses. Zero restores WindowSize/4.
func WithHopSize(hop int) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.HopSize = hop
	}
}

// WithNoiseThreshold sets the gate threshold in dBFS.
func WithNoiseThreshold(db float64) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.NoiseThresholdDB = db
	}
}

// WithPeakProportion sets the relative peak threshold k.
func WithPeakProportion(k float64) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.PeakProportion = k
	}
}

// WithInterpolation enables parabolic sub-sample refinement of the period.
func WithInterpolation(enabled bool) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.Interpolate = enabled
	}
}

// WithNormalization enables NSDF energy normalization.
func WithNormalization(enabled bool) TunerOption {
	return func(cfg *TunerConfig) {
		cfg.Normalize = enabled
	}
}

// ApplyTunerOptions applies zero or more options to the default config.
func ApplyTunerOptions(opts ...TunerOption) TunerConfig {
	cfg := DefaultTunerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Hop returns the effective hop size.
func (cfg TunerConfig) Hop() int {
	if cfg.HopSize == 0 {
		return cfg.WindowSize / 4
	}
	return cfg.HopSize
}

// Validate reports the first invalid setting.
func (cfg TunerConfig) Validate() error {
	if !core.IsFinitePositive(cfg.SampleRate) {
		return fmt.Errorf("pitch: sample rate must be positive and finite: %f", cfg.SampleRate)
	}

	if err := validateWindow(cfg.WindowSize, cfg.Hop()); err != nil {
		return err
	}

	if math.IsNaN(cfg.NoiseThresholdDB) {
		return fmt.Errorf("pitch: noise threshold must not be NaN")
	}

	// Silent blocks measure exactly MinLevelDB, so a lower threshold would
	// let them through.
	if cfg.NoiseThresholdDB < core.MinLevelDB {
		return fmt.Errorf("pitch: noise threshold must be at least %v dBFS: %f",
			core.MinLevelDB, cfg.NoiseThresholdDB)
	}

	if !core.IsFinitePositive(cfg.PeakProportion) || cfg.PeakProportion > 1 {
		return fmt.Errorf("pitch: peak proportion must be in (0, 1]: %f", cfg.PeakProportion)
	}

	return nil
}

func validateWindow(size, hop int) error {
	if size < minWindowSize || size > maxWindowSize || !core.IsPowerOfTwo(size) {
		return fmt.Errorf("%w: must be a power of two in [%d, %d]: %d",
			ErrWindowSize, minWindowSize, maxWindowSize, size)
	}

	if hop < 1 || hop > size {
		return fmt.Errorf("%w: must be in [1, %d]: %d", ErrHopSize, size, hop)
	}

	return nil
}
