package pitch

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-tuner/internal/testutil"
)

const testRate = 44100.0

func newTestTuner(t *testing.T, opts ...TunerOption) *Tuner {
	t.Helper()
	tuner, err := NewTuner(opts...)
	if err != nil {
		t.Fatalf("NewTuner() error = %v", err)
	}
	return tuner
}

func feed(tuner *Tuner, signal []float64, blockSize int, sampleRate float64) {
	for _, block := range testutil.Blocks(signal, blockSize) {
		tuner.OnBlock(block, sampleRate)
	}
}

func TestNewTunerValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []TunerOption
		wantErr error
	}{
		{name: "defaults"},
		{name: "window not power of two", opts: []TunerOption{WithWindowSize(1000)}, wantErr: ErrWindowSize},
		{name: "window too small", opts: []TunerOption{WithWindowSize(16)}, wantErr: ErrWindowSize},
		{name: "hop larger than window", opts: []TunerOption{WithHopSize(2048)}, wantErr: ErrHopSize},
		{name: "negative hop", opts: []TunerOption{WithHopSize(-1)}, wantErr: ErrHopSize},
		{name: "zero sample rate", opts: []TunerOption{WithSampleRate(0)}, wantErr: errAny},
		{name: "NaN threshold", opts: []TunerOption{WithNoiseThreshold(math.NaN())}, wantErr: errAny},
		{name: "threshold below level floor", opts: []TunerOption{WithNoiseThreshold(-120)}, wantErr: errAny},
		{name: "threshold at level floor", opts: []TunerOption{WithNoiseThreshold(core.MinLevelDB)}},
		{name: "zero proportion", opts: []TunerOption{WithPeakProportion(0)}, wantErr: errAny},
		{name: "proportion above one", opts: []TunerOption{WithPeakProportion(1.5)}, wantErr: errAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTuner(tt.opts...)
			switch {
			case tt.wantErr == nil && err != nil:
				t.Fatalf("NewTuner() error = %v", err)
			case tt.wantErr == nil:
			case err == nil:
				t.Fatal("NewTuner() succeeded, want error")
			case tt.wantErr != errAny && !errors.Is(err, tt.wantErr):
				t.Fatalf("NewTuner() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

var errAny = errors.New("any error")

func TestTunerDefaults(t *testing.T) {
	tuner := newTestTuner(t)

	if got := tuner.WindowSize(); got != 1024 {
		t.Fatalf("WindowSize() = %d, want 1024", got)
	}
	if got := tuner.HopSize(); got != 256 {
		t.Fatalf("HopSize() = %d, want 256", got)
	}
	if got := tuner.SampleRate(); got != testRate {
		t.Fatalf("SampleRate() = %v, want %v", got, testRate)
	}
	if got := tuner.Frequency(); got != NoPitch {
		t.Fatalf("Frequency() = %v, want %v", got, NoPitch)
	}
	if got := tuner.LoudnessDB(); got != core.MinLevelDB {
		t.Fatalf("LoudnessDB() = %v, want %v", got, core.MinLevelDB)
	}
	if est := tuner.Estimate(); est.Valid {
		t.Fatalf("Estimate() = %+v, want invalid", est)
	}
}

func TestTunerDetectsSine(t *testing.T) {
	tuner := newTestTuner(t)
	feed(tuner, testutil.DeterministicSine(440, testRate, 0.5, 8192), 256, testRate)

	est := tuner.Estimate()
	if !est.Valid {
		t.Fatalf("Estimate() = %+v, want valid", est)
	}
	if est.Lag < 99 || est.Lag > 101 {
		t.Fatalf("Lag = %d, want 100 ± 1", est.Lag)
	}

	binWidth := testRate / float64(tuner.WindowSize())
	testutil.RequireWithin(t, "Frequency", tuner.Frequency(), 440, binWidth)

	if est.Clarity <= 0 || est.Clarity > 1 {
		t.Fatalf("Clarity = %v, want in (0, 1]", est.Clarity)
	}

	testutil.RequireWithin(t, "LoudnessDB", tuner.LoudnessDB(), -9.03, 0.5)
}

func TestTunerConvergesAcrossRange(t *testing.T) {
	for _, freq := range []float64{220, 330, 440, 660, 880} {
		t.Run(fmt.Sprintf("%.0fHz", freq), func(t *testing.T) {
			tuner := newTestTuner(t)
			feed(tuner, testutil.DeterministicSine(freq, testRate, 0.3, 8192), 512, testRate)

			binWidth := testRate / float64(tuner.WindowSize())
			testutil.RequireWithin(t, "Frequency", tuner.Frequency(), freq, binWidth)
		})
	}
}

func TestTunerRefinedHarmonicTone(t *testing.T) {
	// The second partial dominates, so the strongest short-lag peak sits at
	// half the period.
	tuner := newTestTuner(t,
		WithWindowSize(2048),
		WithNormalization(true),
		WithInterpolation(true),
	)

	signal := testutil.HarmonicTone(110, testRate, []float64{0.3, 1, 0.6, 0.4}, 16384)
	feed(tuner, signal, 512, testRate)

	est := tuner.Estimate()
	if est.Lag < 400 || est.Lag > 402 {
		t.Fatalf("Lag = %d, want about 401", est.Lag)
	}
	testutil.RequireWithin(t, "Frequency", est.Frequency, 110, 0.5)
	if est.Clarity < 0.9 {
		t.Fatalf("Clarity = %v, want close to 1 for a periodic tone", est.Clarity)
	}
}

func TestTunerRefinedSine(t *testing.T) {
	tuner := newTestTuner(t, WithNormalization(true), WithInterpolation(true))
	feed(tuner, testutil.DeterministicSine(440, testRate, 0.5, 8192), 256, testRate)

	testutil.RequireWithin(t, "Frequency", tuner.Frequency(), 440, 2)
}

func TestTunerSilenceNeverAnalyzes(t *testing.T) {
	tuner := newTestTuner(t)
	silence := testutil.Silence(256)

	for range 200 {
		tuner.OnBlock(silence, testRate)

		if got := tuner.Frequency(); got != NoPitch {
			t.Fatalf("Frequency() = %v, want %v", got, NoPitch)
		}
		if got := tuner.LoudnessDB(); got != core.MinLevelDB {
			t.Fatalf("LoudnessDB() = %v, want %v", got, core.MinLevelDB)
		}
	}

	stats := tuner.Stats()
	if stats.Blocks != 200 || stats.GatedBlocks != 200 || stats.Analyses != 0 {
		t.Fatalf("Stats() = %+v", stats)
	}
}

func TestTunerSilenceKeepsEstimateAtLowestThreshold(t *testing.T) {
	tuner := newTestTuner(t, WithNoiseThreshold(core.MinLevelDB))
	feed(tuner, testutil.DeterministicSine(440, testRate, 0.5, 4096), 256, testRate)

	before := tuner.Estimate()
	if !before.Valid {
		t.Fatalf("Estimate() = %+v, want valid", before)
	}

	feed(tuner, testutil.Silence(8*256), 256, testRate)

	if after := tuner.Estimate(); after != before {
		t.Fatalf("Estimate() after silence = %+v, want %+v", after, before)
	}
	if got := tuner.LoudnessDB(); got != core.MinLevelDB {
		t.Fatalf("LoudnessDB() = %v, want %v", got, core.MinLevelDB)
	}
}

func TestTunerQuietBlockKeepsEstimate(t *testing.T) {
	tuner := newTestTuner(t)
	feed(tuner, testutil.DeterministicSine(440, testRate, 0.5, 4096), 256, testRate)

	before := tuner.Estimate()
	if !before.Valid {
		t.Fatalf("Estimate() = %+v, want valid", before)
	}

	analyses := tuner.Stats().Analyses
	fill := tuner.acc.Fill()

	tuner.OnBlock(testutil.DeterministicSine(440, testRate, 1e-4, 256), testRate)

	if after := tuner.Estimate(); after != before {
		t.Fatalf("Estimate() changed from %+v to %+v", before, after)
	}
	if got := tuner.Stats().Analyses; got != analyses {
		t.Fatalf("Analyses = %d, want %d", got, analyses)
	}
	if got := tuner.acc.Fill(); got != fill {
		t.Fatalf("gated block reached the accumulator: fill %d, want %d", got, fill)
	}
	testutil.RequireWithin(t, "LoudnessDB", tuner.LoudnessDB(), -83, 0.5)
}

func TestTunerAnalysisCadence(t *testing.T) {
	signal := testutil.DeterministicSine(440, testRate, 0.5, 4096)

	tests := []struct {
		name      string
		window    int
		hop       int
		blockSize int
		want      uint64
	}{
		{name: "block equals hop", window: 1024, hop: 256, blockSize: 256, want: 13},
		{name: "block not a divisor", window: 1024, hop: 256, blockSize: 100, want: 13},
		{name: "block larger than window", window: 1024, hop: 256, blockSize: 2048, want: 13},
		{name: "hop equals window", window: 1024, hop: 1024, blockSize: 512, want: 4},
		{name: "hop of one sample", window: 1024, hop: 1, blockSize: 512, want: 3073},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuner := newTestTuner(t, WithWindowSize(tt.window), WithHopSize(tt.hop))
			feed(tuner, signal, tt.blockSize, testRate)

			if got := tuner.Stats().Analyses; got != tt.want {
				t.Fatalf("Analyses = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTunerSampleRateChange(t *testing.T) {
	tuner := newTestTuner(t)
	feed(tuner, testutil.DeterministicSine(441, testRate, 0.5, 2048), 256, testRate)

	analyses := tuner.Stats().Analyses

	// 480 Hz at 48 kHz has the same 100-sample period.
	signal := testutil.DeterministicSine(480, 48000, 0.5, 1024)
	blocks := testutil.Blocks(signal, 256)

	tuner.OnBlock(blocks[0], 48000)
	if got := tuner.SampleRate(); got != 48000 {
		t.Fatalf("SampleRate() = %v, want 48000", got)
	}
	if got := tuner.acc.Fill(); got != 256 {
		t.Fatalf("Fill() = %d after rate change, want 256", got)
	}

	for _, block := range blocks[1:3] {
		tuner.OnBlock(block, 48000)
	}
	if got := tuner.Stats().Analyses; got != analyses {
		t.Fatalf("analyzed a window mixing sample rates: %d analyses, want %d", got, analyses)
	}

	tuner.OnBlock(blocks[3], 48000)
	est := tuner.Estimate()
	if est.Lag != 100 {
		t.Fatalf("Lag = %d, want 100", est.Lag)
	}
	testutil.RequireWithin(t, "Frequency", est.Frequency, 480, 1e-9)
}

func TestTunerDropsInvalidSampleRate(t *testing.T) {
	tuner := newTestTuner(t)
	block := testutil.DeterministicSine(440, testRate, 0.5, 256)

	for _, sr := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		tuner.OnBlock(block, sr)
	}

	stats := tuner.Stats()
	if stats.Blocks != 4 || stats.DroppedBlocks != 4 {
		t.Fatalf("Stats() = %+v, want 4 dropped blocks", stats)
	}
	if got := tuner.SampleRate(); got != testRate {
		t.Fatalf("SampleRate() = %v, want %v", got, testRate)
	}
	if got := tuner.acc.Fill(); got != 0 {
		t.Fatalf("Fill() = %d, want 0", got)
	}
}

func TestTunerNoiseStaysFinite(t *testing.T) {
	tuner := newTestTuner(t)
	feed(tuner, testutil.DeterministicNoise(7, 0.5, 16384), 256, testRate)

	stats := tuner.Stats()
	if stats.Analyses == 0 {
		t.Fatal("noise above the gate was never analyzed")
	}

	f := tuner.Frequency()
	if f != NoPitch && !core.IsFinitePositive(f) {
		t.Fatalf("Frequency() = %v, want NoPitch or a positive frequency", f)
	}
	testutil.RequireFinite(t, []float64{tuner.LoudnessDB()})
}

func TestTunerReset(t *testing.T) {
	tuner := newTestTuner(t)
	feed(tuner, testutil.DeterministicSine(440, 48000, 0.5, 4096), 256, 48000)

	tuner.Reset()

	if got := tuner.Frequency(); got != NoPitch {
		t.Fatalf("Frequency() = %v, want %v", got, NoPitch)
	}
	if got := tuner.LoudnessDB(); got != core.MinLevelDB {
		t.Fatalf("LoudnessDB() = %v, want %v", got, core.MinLevelDB)
	}
	if got := tuner.Stats(); got != (Stats{}) {
		t.Fatalf("Stats() = %+v, want zero", got)
	}
	if got := tuner.SampleRate(); got != 48000 {
		t.Fatalf("SampleRate() = %v, want 48000", got)
	}
	if got := tuner.acc.Fill(); got != 0 {
		t.Fatalf("Fill() = %d, want 0", got)
	}
}

func TestTunerGatedBlockDoesNotAllocate(t *testing.T) {
	tuner := newTestTuner(t)
	silence := testutil.Silence(256)

	allocs := testing.AllocsPerRun(200, func() {
		tuner.OnBlock(silence, testRate)
	})
	if allocs != 0 {
		t.Fatalf("OnBlock allocated %.1f times per gated block", allocs)
	}
}

func TestTunerAnalysisDoesNotAllocate(t *testing.T) {
	tuner := newTestTuner(t)
	signal := testutil.DeterministicSine(440, testRate, 0.5, tuner.WindowSize()+tuner.HopSize())
	feed(tuner, signal[:tuner.WindowSize()], tuner.HopSize(), testRate)
	block := signal[tuner.WindowSize():]

	analyses := tuner.Stats().Analyses
	allocs := testing.AllocsPerRun(100, func() {
		tuner.OnBlock(block, testRate)
	})
	if allocs != 0 {
		t.Fatalf("OnBlock allocated %.1f times per analyzed block", allocs)
	}

	// AllocsPerRun adds one warm-up call to the measured runs.
	if got := tuner.Stats().Analyses - analyses; got != 101 {
		t.Fatalf("analyses = %d, want one per block", got)
	}
}

func TestTunerConcurrentReaders(t *testing.T) {
	tuner := newTestTuner(t)

	low := testutil.DeterministicSine(441, testRate, 0.5, 2048)
	high := testutil.DeterministicSine(882, testRate, 0.5, 2048)

	var (
		stop atomic.Bool
		wg   sync.WaitGroup
	)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				est := tuner.Estimate()
				if !est.Valid {
					if est.Lag != 0 || est.Frequency != NoPitch {
						t.Errorf("torn invalid estimate %+v", est)
						return
					}
					continue
				}
				if est.Period != float64(est.Lag) || est.Frequency != testRate/est.Period {
					t.Errorf("torn estimate %+v", est)
					return
				}
				_ = tuner.Frequency()
				_ = tuner.LoudnessDB()
				_ = tuner.Stats()
			}
		}()
	}

	for i := range 40 {
		signal := low
		if i%2 == 1 {
			signal = high
		}
		feed(tuner, signal, 256, testRate)
	}

	stop.Store(true)
	wg.Wait()
}
