// Package config defines the tuner CLI configuration and its YAML loader.
package config

import (
	"log/slog"
	"time"

	"github.com/cwbudde/algo-tuner/measure/pitch"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration.
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Tuner   TunerConfig   `yaml:"tuner"`
	Input   InputConfig   `yaml:"input"`
	Display DisplayConfig `yaml:"display"`
}

// TunerConfig mirrors the construction settings of a pitch.Tuner. The sample
// rate is not listed because it comes from the input stream.
type TunerConfig struct {
	WindowSize       int     `yaml:"window_size"`
	HopSize          int     `yaml:"hop_size"`
	NoiseThresholdDB float64 `yaml:"noise_threshold_db"`
	PeakProportion   float64 `yaml:"peak_proportion"`
	Interpolate      bool    `yaml:"interpolate"`
	Normalize        bool    `yaml:"normalize"`
}

// InputConfig describes how input streams are decoded and delivered.
type InputConfig struct {
	// Format is one of auto, wav, f32le, s16le.
	Format string `yaml:"format"`
	// SampleRate and Channels describe raw PCM input.
	SampleRate float64 `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	// BlockSize is the host block length in samples.
	BlockSize int `yaml:"block_size"`
}

// DisplayConfig controls how often the estimate is read back, in stream time.
type DisplayConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Tuner: TunerConfig{
			WindowSize:       pitch.DefaultWindowSize,
			NoiseThresholdDB: pitch.DefaultNoiseThresholdDB,
			PeakProportion:   pitch.DefaultPeakProportion,
			Interpolate:      true,
			Normalize:        true,
		},
		Input: InputConfig{
			Format:     "auto",
			SampleRate: pitch.DefaultSampleRate,
			Channels:   1,
			BlockSize:  512,
		},
		Display: DisplayConfig{
			Interval: 10 * time.Millisecond,
		},
	}
}

// TunerOptions converts the tuner section into pitch options.
func (c *Config) TunerOptions() []pitch.TunerOption {
	return []pitch.TunerOption{
		pitch.WithWindowSize(c.Tuner.WindowSize),
		pitch.WithHopSize(c.Tuner.HopSize),
		pitch.WithNoiseThreshold(c.Tuner.NoiseThresholdDB),
		pitch.WithPeakProportion(c.Tuner.PeakProportion),
		pitch.WithInterpolation(c.Tuner.Interpolate),
		pitch.WithNormalization(c.Tuner.Normalize),
	}
}
