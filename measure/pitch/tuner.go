package pitch

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

// Stats counts what the tuner has done since construction or the last Reset.
type Stats struct {
	// Blocks is the number of blocks delivered, including dropped ones.
	Blocks uint64
	// GatedBlocks is the number of blocks at or below the noise threshold.
	GatedBlocks uint64
	// DroppedBlocks is the number of blocks discarded for an invalid sample rate.
	DroppedBlocks uint64
	// Analyses is the number of completed analysis windows.
	Analyses uint64
	// NoPitch is the number of analyses that found no periodicity.
	NoPitch uint64
}

// Tuner is a streaming monophonic pitch detector.
//
// A single producer delivers blocks through ProcessBlock or OnBlock; analysis
// runs synchronously inside those calls whenever a window completes. Any
// number of readers may poll Frequency, LoudnessDB, Estimate, SampleRate and
// Stats concurrently with the producer. Reset and the producer calls must not
// run concurrently with each other.
type Tuner struct {
	cfg TunerConfig

	gate     *Gate
	acc      *Accumulator
	ac       *Autocorrelator
	selector Selector

	sim        []float64
	candidates []int

	sampleRate atomic.Uint64

	// seq is odd while an estimate is being written.
	seq       atomic.Uint64
	lag       atomic.Int64
	period    atomic.Uint64
	frequency atomic.Uint64
	clarity   atomic.Uint64
	loudness  atomic.Uint64

	blocks   atomic.Uint64
	gated    atomic.Uint64
	dropped  atomic.Uint64
	analyses atomic.Uint64
	noPitch  atomic.Uint64
}

// NewTuner creates a tuner with the given options applied to
// [DefaultTunerConfig].
func NewTuner(opts ...TunerOption) (*Tuner, error) {
	cfg := ApplyTunerOptions(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gate, err := NewGate(cfg.NoiseThresholdDB)
	if err != nil {
		return nil, err
	}

	acc, err := NewAccumulator(cfg.WindowSize, cfg.Hop())
	if err != nil {
		return nil, err
	}

	ac, err := NewAutocorrelator(cfg.WindowSize, WithEnergyNormalization(cfg.Normalize))
	if err != nil {
		return nil, err
	}

	t := &Tuner{
		cfg:  cfg,
		gate: gate,
		acc:  acc,
		ac:   ac,
		selector: Selector{
			Proportion:  cfg.PeakProportion,
			Interpolate: cfg.Interpolate,
		},
		sim:        make([]float64, cfg.WindowSize),
		candidates: make([]int, 0, cfg.WindowSize/2+1),
	}

	storeFloat(&t.sampleRate, cfg.SampleRate)
	t.clear()

	return t, nil
}

// Config returns the construction-time configuration.
func (t *Tuner) Config() TunerConfig { return t.cfg }

// WindowSize returns the analysis window length N.
func (t *Tuner) WindowSize() int { return t.cfg.WindowSize }

// HopSize returns the number of samples between analyses.
func (t *Tuner) HopSize() int { return t.acc.Hop() }

// SampleRate returns the current sample rate in Hz.
func (t *Tuner) SampleRate() float64 { return loadFloat(&t.sampleRate) }

// OnBlock is the host-facing entry point: it adopts sampleRate when it
// differs from the current rate and then processes the block. A change of
// rate discards buffered samples, since a window must not mix rates. Blocks
// with an invalid rate are dropped.
func (t *Tuner) OnBlock(block []float64, sampleRate float64) {
	if sampleRate != t.SampleRate() {
		if !core.IsFinitePositive(sampleRate) {
			t.blocks.Add(1)
			t.dropped.Add(1)
			return
		}

		storeFloat(&t.sampleRate, sampleRate)
		t.acc.Reset()
	}

	t.ProcessBlock(block)
}

// ProcessBlock gates one block of channel-0 samples and feeds it into the
// analysis window, running an analysis for every window that completes.
func (t *Tuner) ProcessBlock(block []float64) {
	t.blocks.Add(1)

	level, passed := t.gate.Process(block)
	storeFloat(&t.loudness, level)

	if !passed {
		t.gated.Add(1)
		return
	}

	for _, x := range block {
		if t.acc.Push(x) {
			t.analyze()
		}
	}
}

func (t *Tuner) analyze() {
	est := InvalidEstimate()

	// Compute only fails on a length mismatch, which the constructor rules out.
	if err := t.ac.Compute(t.sim, t.acc.Window()); err == nil {
		t.candidates = PickPeaks(t.candidates, t.sim)
		est = t.selector.Select(t.sim, t.candidates, t.SampleRate())
	}

	t.analyses.Add(1)
	if !est.Valid {
		t.noPitch.Add(1)
	}

	t.publish(est)
}

func (t *Tuner) publish(est Estimate) {
	t.seq.Add(1)
	t.lag.Store(int64(est.Lag))
	storeFloat(&t.period, est.Period)
	storeFloat(&t.frequency, est.Frequency)
	storeFloat(&t.clarity, est.Clarity)
	t.seq.Add(1)
}

// Frequency returns the latest fundamental frequency in Hz, or NoPitch.
func (t *Tuner) Frequency() float64 { return loadFloat(&t.frequency) }

// LoudnessDB returns the level of the latest block in dBFS.
func (t *Tuner) LoudnessDB() float64 { return loadFloat(&t.loudness) }

// Estimate returns a consistent snapshot of the latest estimate. It never
// observes a partially written estimate.
func (t *Tuner) Estimate() Estimate {
	for {
		before := t.seq.Load()
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}

		est := Estimate{
			Lag:       int(t.lag.Load()),
			Period:    loadFloat(&t.period),
			Frequency: loadFloat(&t.frequency),
			Clarity:   loadFloat(&t.clarity),
		}

		if t.seq.Load() == before {
			est.Valid = est.Lag > 0
			return est
		}
	}
}

// Stats returns the processing counters.
func (t *Tuner) Stats() Stats {
	return Stats{
		Blocks:        t.blocks.Load(),
		GatedBlocks:   t.gated.Load(),
		DroppedBlocks: t.dropped.Load(),
		Analyses:      t.analyses.Load(),
		NoPitch:       t.noPitch.Load(),
	}
}

// Reset clears buffered audio, the published estimate and loudness, and the
// counters. The sample rate is kept.
func (t *Tuner) Reset() {
	t.acc.Reset()
	core.Zero(t.sim)
	t.candidates = t.candidates[:0]
	t.clear()
}

func (t *Tuner) clear() {
	t.publish(InvalidEstimate())
	storeFloat(&t.loudness, core.MinLevelDB)

	t.blocks.Store(0)
	t.gated.Store(0)
	t.dropped.Store(0)
	t.analyses.Store(0)
	t.noPitch.Store(0)
}

func storeFloat(dst *atomic.Uint64, v float64) {
	dst.Store(math.Float64bits(v))
}

func loadFloat(src *atomic.Uint64) float64 {
	return math.Float64frombits(src.Load())
}
