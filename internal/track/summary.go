package track

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the voiced readings of a track. Frequency fields are 0
// when no reading is voiced.
type Summary struct {
	Readings    int
	Voiced      int
	VoicedRatio float64

	MeanHz   float64
	MedianHz float64
	StdDevHz float64
	MinHz    float64
	MaxHz    float64
}

// Summarize computes frequency statistics over the valid readings.
func Summarize(readings []Reading) Summary {
	s := Summary{Readings: len(readings)}

	freqs := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Valid {
			freqs = append(freqs, r.Frequency)
		}
	}

	s.Voiced = len(freqs)
	if s.Voiced == 0 {
		return s
	}

	s.VoicedRatio = float64(s.Voiced) / float64(s.Readings)

	sort.Float64s(freqs)

	s.MeanHz = stat.Mean(freqs, nil)
	s.MedianHz = stat.Quantile(0.5, stat.Empirical, freqs, nil)
	s.MinHz = floats.Min(freqs)
	s.MaxHz = floats.Max(freqs)

	if s.Voiced > 1 {
		s.StdDevHz = stat.StdDev(freqs, nil)
	}

	return s
}
