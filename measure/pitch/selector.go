package pitch

import (
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

// NoPitch is the frequency reported when no periodicity was found.
const NoPitch = -1.0

// Estimate is the outcome of one analysis pass.
type Estimate struct {
	// Lag is the selected key maximum in samples; 0 when invalid.
	Lag int
	// Period is the period in samples, refined below one sample when
	// interpolation is enabled; 0 when invalid.
	Period float64
	// Frequency is sampleRate/Period in Hz, or NoPitch.
	Frequency float64
	// Clarity is sim[Lag]/sim[0], the strength of the periodicity in [0, 1]
	// for a well-formed similarity function.
	Clarity float64
	// Valid is false when no candidate was selected.
	Valid bool
}

// InvalidEstimate returns the "no pitch detected" estimate.
func InvalidEstimate() Estimate {
	return Estimate{Frequency: NoPitch}
}

// Selector chooses the best period among key maxima.
//
// The zero value uses DefaultPeakProportion without interpolation.
type Selector struct {
	// Proportion is k in threshold = k * max(sim[candidates]). Values
	// outside (0, 1] fall back to DefaultPeakProportion.
	Proportion float64
	// Interpolate refines the winning lag with a parabola through its
	// neighbours.
	Interpolate bool
}

// Threshold returns the candidate threshold for the given highest key
// maximum.
func (s Selector) Threshold(peak float64) float64 {
	return s.proportion() * peak
}

func (s Selector) proportion() float64 {
	if !core.IsFinitePositive(s.Proportion) || s.Proportion > 1 {
		return DefaultPeakProportion
	}
	return s.Proportion
}

// Select picks the first (lowest-lag) candidate whose similarity is within
// the configured proportion of the highest candidate and converts it to a
// frequency. Preferring the shortest qualifying period keeps octave errors
// from subharmonic peaks at integer multiples of the true period out of the
// result.
//
// Candidates outside (0, len(sim)) are ignored, so lag 0 is never selected.
// An empty candidate list, an unusable sample rate, or a degenerate period
// yields [InvalidEstimate].
func (s Selector) Select(sim []float64, candidates []int, sampleRate float64) Estimate {
	if len(candidates) == 0 || !core.IsFinitePositive(sampleRate) {
		return InvalidEstimate()
	}

	peak := math.Inf(-1)
	for _, c := range candidates {
		if c > 0 && c < len(sim) && sim[c] > peak {
			peak = sim[c]
		}
	}

	if math.IsInf(peak, -1) {
		return InvalidEstimate()
	}

	threshold := s.Threshold(peak)

	lag := 0
	for _, c := range candidates {
		if c > 0 && c < len(sim) && sim[c] >= threshold {
			lag = c
			break
		}
	}

	if lag == 0 {
		return InvalidEstimate()
	}

	period := float64(lag)
	if s.Interpolate {
		period += parabolicOffset(sim, lag)
	}

	freq := sampleRate / period
	if !core.IsFinitePositive(freq) {
		return InvalidEstimate()
	}

	est := Estimate{
		Lag:       lag,
		Period:    period,
		Frequency: freq,
		Valid:     true,
	}

	if sim[0] > 0 {
		est.Clarity = sim[lag] / sim[0]
	}

	return est
}

// parabolicOffset returns the vertex offset in (-0.5, 0.5) of the parabola
// through sim[i-1], sim[i], sim[i+1], or 0 when i has no neighbours or the
// three points do not form a maximum.
func parabolicOffset(sim []float64, i int) float64 {
	if i <= 0 || i >= len(sim)-1 {
		return 0
	}

	left, center, right := sim[i-1], sim[i], sim[i+1]

	curvature := left - 2*center + right
	if !(curvature < 0) {
		return 0
	}

	offset := 0.5 * (left - right) / curvature

	return core.Clamp(offset, -0.5, 0.5)
}
