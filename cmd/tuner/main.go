// Command tuner tracks the fundamental frequency of monophonic recordings.
//
// Usage:
//
//	tuner [flags] file ...
//
// Each input is fed to the pitch detector in host-sized blocks and the
// detected frequency is read back at a fixed display interval of stream time.
// Use "-" to read from standard input.
//
// Examples:
//
//	tuner guitar.wav
//	tuner -summary -window 2048 bass.wav cello.wav
//	ffmpeg -i take.flac -f f32le -ac 1 -ar 48000 - | tuner -format f32le -rate 48000 -
//	tuner -config tuner.yaml -metrics -jobs 4 *.wav
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"text/tabwriter"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-tuner/internal/audio"
	"github.com/cwbudde/algo-tuner/internal/config"
	"github.com/cwbudde/algo-tuner/internal/observe"
	"github.com/cwbudde/algo-tuner/internal/track"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// report is the outcome of one input.
type report struct {
	name     string
	channels int
	result   *track.Result
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	def := config.Default()

	fs := flag.NewFlagSet("tuner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file; flags override its values")
	window := fs.Int("window", def.Tuner.WindowSize, "analysis window size in samples (power of two)")
	hop := fs.Int("hop", def.Tuner.HopSize, "hop between analyses in samples (0 = window/4)")
	threshold := fs.Float64("threshold", def.Tuner.NoiseThresholdDB, "noise gate threshold in dBFS")
	k := fs.Float64("k", def.Tuner.PeakProportion, "fraction of the highest key maximum a candidate must reach")
	interpolate := fs.Bool("interpolate", def.Tuner.Interpolate, "refine the period with parabolic interpolation")
	normalize := fs.Bool("normalize", def.Tuner.Normalize, "normalize the autocorrelation by window energy (NSDF)")
	block := fs.Int("block", def.Input.BlockSize, "host block size in samples")
	interval := fs.Duration("interval", def.Display.Interval, "display poll interval in stream time")
	format := fs.String("format", def.Input.Format, "input format: auto, wav, f32le, s16le")
	rate := fs.Float64("rate", def.Input.SampleRate, "sample rate of raw input in Hz")
	channels := fs.Int("channels", def.Input.Channels, "channel count of raw input")
	logLevel := fs.String("log-level", string(def.LogLevel), "log level: debug, info, warn, error")
	jobs := fs.Int("jobs", runtime.NumCPU(), "maximum number of inputs analyzed concurrently")
	summaryOnly := fs.Bool("summary", false, "print only the per-input summary")
	withMetrics := fs.Bool("metrics", false, "log processing metrics after the run")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tuner [flags] file ...\n\n")
		fmt.Fprintf(stderr, "Tracks the fundamental frequency of monophonic recordings.\n")
		fmt.Fprintf(stderr, "Use - to read from standard input.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := def
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "window":
			cfg.Tuner.WindowSize = *window
		case "hop":
			cfg.Tuner.HopSize = *hop
		case "threshold":
			cfg.Tuner.NoiseThresholdDB = *threshold
		case "k":
			cfg.Tuner.PeakProportion = *k
		case "interpolate":
			cfg.Tuner.Interpolate = *interpolate
		case "normalize":
			cfg.Tuner.Normalize = *normalize
		case "block":
			cfg.Input.BlockSize = *block
		case "interval":
			cfg.Display.Interval = *interval
		case "format":
			cfg.Input.Format = *format
		case "rate":
			cfg.Input.SampleRate = *rate
		case "channels":
			cfg.Input.Channels = *channels
		case "log-level":
			cfg.LogLevel = config.LogLevel(*logLevel)
		}
	})

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		fs.Usage()
		return 2
	}

	stdinUses := 0
	for _, name := range inputs {
		if name == "-" {
			stdinUses++
		}
	}
	if stdinUses > 1 {
		fmt.Fprintf(stderr, "error: standard input can be named only once\n")
		return 2
	}

	logger := newLogger(stderr, cfg.LogLevel)

	var (
		metrics *observe.Metrics
		reader  *sdkmetric.ManualReader
	)
	if *withMetrics {
		reader = sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		var err error
		if metrics, err = observe.NewMetrics(mp); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	reports := make([]*report, len(inputs))

	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))

	for i, name := range inputs {
		g.Go(func() error {
			rep, err := analyze(ctx, name, cfg, stdin, metrics, logger)
			if err != nil {
				logger.Error("analysis failed", "file", name, "err", err)
				return err
			}
			reports[i] = rep
			return nil
		})
	}

	failed := g.Wait() != nil

	for _, rep := range reports {
		if rep == nil {
			continue
		}
		if err := writeReport(stdout, rep, *summaryOnly); err != nil {
			fmt.Fprintf(stderr, "error: failed to write output: %v\n", err)
			return 1
		}
	}

	if reader != nil {
		if err := logMetrics(ctx, logger, reader); err != nil {
			logger.Error("collect metrics", "err", err)
			failed = true
		}
	}

	if failed {
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.Level()}))
}

func analyze(ctx context.Context, name string, cfg *config.Config, stdin io.Reader,
	metrics *observe.Metrics, logger *slog.Logger,
) (*report, error) {
	var r io.Reader = stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	format, err := audio.ParseFormat(cfg.Input.Format)
	if err != nil {
		return nil, err
	}

	src, err := audio.Open(r, format, cfg.Input.SampleRate, cfg.Input.Channels)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	res, err := track.Run(ctx, src, track.Config{
		BlockSize: cfg.Input.BlockSize,
		Interval:  cfg.Display.Interval,
		Options:   cfg.TunerOptions(),
		Metrics:   metrics,
		Logger:    logger.With("file", name),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("analyzed",
		"file", name,
		"sample_rate", res.SampleRate,
		"samples", res.Samples,
		"analyses", res.Stats.Analyses,
		"elapsed", time.Since(start),
	)

	return &report{name: name, channels: src.Channels(), result: res}, nil
}

func writeReport(w io.Writer, rep *report, summaryOnly bool) error {
	res := rep.result

	if _, err := fmt.Fprintf(w, "# %s (%.0f Hz, %d ch, %.3f s)\n",
		rep.name, res.SampleRate, rep.channels, float64(res.Samples)/res.SampleRate); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !summaryOnly {
		if _, err := fmt.Fprintf(tw, "Time [s]\tFrequency [Hz]\tLag\tClarity\tLevel [dBFS]\n"); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(tw, "--------\t--------------\t---\t-------\t------------\n"); err != nil {
			return err
		}

		for _, r := range res.Readings {
			freq := "-"
			if r.Valid {
				freq = fmt.Sprintf("%.2f", r.Frequency)
			}
			if _, err := fmt.Fprintf(tw, "%.3f\t%s\t%d\t%.3f\t%.1f\n",
				r.Time.Seconds(), freq, r.Lag, r.Clarity, r.LoudnessDB); err != nil {
				return err
			}
		}

		if err := tw.Flush(); err != nil {
			return err
		}
	}

	s := track.Summarize(res.Readings)

	if _, err := fmt.Fprintf(tw, "readings\t%d\n", s.Readings); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "voiced\t%d (%.1f%%)\n", s.Voiced, 100*s.VoicedRatio); err != nil {
		return err
	}
	if s.Voiced > 0 {
		if _, err := fmt.Fprintf(tw, "median\t%.2f Hz\nmean\t%.2f Hz\nstddev\t%.2f Hz\nrange\t%.2f - %.2f Hz\n",
			s.MedianHz, s.MeanHz, s.StdDevHz, s.MinHz, s.MaxHz); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(tw, "blocks\t%d (%d gated, %d dropped)\nanalyses\t%d (%d without pitch)\n\n",
		res.Stats.Blocks, res.Stats.GatedBlocks, res.Stats.DroppedBlocks,
		res.Stats.Analyses, res.Stats.NoPitch); err != nil {
		return err
	}

	return tw.Flush()
}

func logMetrics(ctx context.Context, logger *slog.Logger, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					attrs := []any{"metric", m.Name, "value", dp.Value}
					for _, kv := range dp.Attributes.ToSlice() {
						attrs = append(attrs, string(kv.Key), kv.Value.Emit())
					}
					logger.Info("metric", attrs...)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					mean := 0.0
					if dp.Count > 0 {
						mean = dp.Sum / float64(dp.Count)
					}
					logger.Info("metric", "metric", m.Name, "count", dp.Count, "mean", mean, "unit", m.Unit)
				}
			}
		}
	}

	return nil
}
