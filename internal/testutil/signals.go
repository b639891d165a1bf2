// Package testutil holds deterministic test signals and tolerance helpers
// shared by the tuner packages.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// HarmonicTone generates a tone at freqHz whose k-th harmonic (1-based) has
// amplitude weights[k-1]. It approximates a plucked-string spectrum where the
// fundamental is not necessarily the strongest partial.
func HarmonicTone(freqHz, sampleRate float64, weights []float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		var v float64
		for k, w := range weights {
			v += w * math.Sin(step*float64(k+1)*float64(i))
		}
		out[i] = v
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Silence returns length zero samples.
func Silence(length int) []float64 {
	return make([]float64, length)
}

// Blocks splits signal into consecutive host-sized blocks. The last block is
// shorter when len(signal) is not a multiple of size. The blocks alias signal.
func Blocks(signal []float64, size int) [][]float64 {
	if size <= 0 {
		return nil
	}
	out := make([][]float64, 0, (len(signal)+size-1)/size)
	for start := 0; start < len(signal); start += size {
		end := min(start+size, len(signal))
		out = append(out, signal[start:end])
	}
	return out
}
