package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-tuner/internal/audio"
	"github.com/cwbudde/algo-tuner/measure/pitch"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Fields missing from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if err := pitch.ApplyTunerOptions(cfg.TunerOptions()...).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tuner: %w", err))
	}

	format, err := audio.ParseFormat(cfg.Input.Format)
	if err != nil {
		errs = append(errs, fmt.Errorf("input.format: %w", err))
	}

	if format == audio.FormatF32LE || format == audio.FormatS16LE {
		if !(cfg.Input.SampleRate > 0) {
			errs = append(errs, fmt.Errorf("input.sample_rate %v must be positive for raw input", cfg.Input.SampleRate))
		}
		if cfg.Input.Channels < 1 {
			errs = append(errs, fmt.Errorf("input.channels %d must be at least 1 for raw input", cfg.Input.Channels))
		}
	}

	if cfg.Input.BlockSize < 1 {
		errs = append(errs, fmt.Errorf("input.block_size %d must be at least 1", cfg.Input.BlockSize))
	}

	if cfg.Display.Interval <= 0 {
		errs = append(errs, fmt.Errorf("display.interval %v must be positive", cfg.Display.Interval))
	}

	return errors.Join(errs...)
}
