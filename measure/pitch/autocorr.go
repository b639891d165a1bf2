package pitch

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// energyFloor is the smallest remaining energy fraction m(tau)/m(0) for which
// the normalized similarity is still computed. Below it the overlap is too
// short to be meaningful and the value is forced to zero.
const energyFloor = 1e-9

// Autocorrelator computes the autocorrelation of fixed-size windows through
// the Wiener-Khinchin identity: the window is zero-extended to 2N, its power
// spectrum scaled by 1/(2N) is inverse transformed, and the real part of the
// first N lags is returned.
//
// The zero extension makes the result a linear (not circular) correlation.
// Compute is a pure function of its input; the Autocorrelator only owns
// scratch buffers and is not safe for concurrent use.
type Autocorrelator struct {
	size      int
	fftSize   int
	scale     float64
	normalize bool

	plan *algofft.Plan[complex128]

	timeBuf []complex128
	freqBuf []complex128
	re      []float64
	im      []float64
	power   []float64
}

// AutocorrelatorOption configures an Autocorrelator.
type AutocorrelatorOption func(*Autocorrelator)

// WithEnergyNormalization divides each lag by the energy of the overlapping
// parts of the window, turning the output into the McLeod NSDF with
// sim[0] == 1. Without it the raw scaled autocorrelation is returned.
func WithEnergyNormalization(enabled bool) AutocorrelatorOption {
	return func(a *Autocorrelator) {
		a.normalize = enabled
	}
}

// NewAutocorrelator creates an autocorrelator for windows of size samples.
// size must be a power of two.
func NewAutocorrelator(size int, opts ...AutocorrelatorOption) (*Autocorrelator, error) {
	if err := validateWindow(size, size); err != nil {
		return nil, err
	}

	fftSize := 2 * size

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("pitch: failed to create FFT plan: %w", err)
	}

	a := &Autocorrelator{
		size:    size,
		fftSize: fftSize,
		scale:   1 / float64(fftSize),
		plan:    plan,
		timeBuf: make([]complex128, fftSize),
		freqBuf: make([]complex128, fftSize),
		re:      make([]float64, fftSize),
		im:      make([]float64, fftSize),
		power:   make([]float64, fftSize),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a, nil
}

// Size returns the window length N.
func (a *Autocorrelator) Size() int { return a.size }

// Normalized reports whether energy normalization is enabled.
func (a *Autocorrelator) Normalized() bool { return a.normalize }

// Compute writes the similarity function of window into dst[:N].
// window must have exactly N samples and dst at least N.
func (a *Autocorrelator) Compute(dst, window []float64) error {
	if len(window) != a.size || len(dst) < a.size {
		return fmt.Errorf("%w: want %d samples, got window=%d dst=%d",
			ErrLength, a.size, len(window), len(dst))
	}

	for i, x := range window {
		a.timeBuf[i] = complex(x, 0)
	}

	for i := a.size; i < a.fftSize; i++ {
		a.timeBuf[i] = 0
	}

	if err := a.plan.Forward(a.freqBuf, a.timeBuf); err != nil {
		return fmt.Errorf("pitch: forward FFT failed: %w", err)
	}

	for i, c := range a.freqBuf {
		a.re[i] = real(c)
		a.im[i] = imag(c)
	}

	vecmath.Power(a.power, a.re, a.im)

	for i, p := range a.power {
		a.freqBuf[i] = complex(p*a.scale, 0)
	}

	if err := a.plan.Inverse(a.timeBuf, a.freqBuf); err != nil {
		return fmt.Errorf("pitch: inverse FFT failed: %w", err)
	}

	sim := dst[:a.size]
	for i := range sim {
		sim[i] = real(a.timeBuf[i])
	}

	if a.normalize {
		normalizeEnergy(sim, window)
	}

	return nil
}

// normalizeEnergy rescales sim in place to 2*r(tau)/m(tau) where
// m(tau) = sum over the overlap of x[j]^2 + x[j+tau]^2.
//
// sim holds c*r(tau) for an unknown transform scale c. Since m(0) = 2*r(0),
// the ratio sim[tau]*m(0) / (sim[0]*m(tau)) equals the NSDF for any c.
func normalizeEnergy(sim, window []float64) {
	n := len(window)
	m0 := 2 * floats.Dot(window, window)
	zero := sim[0]

	if m0 <= 0 || zero <= 0 {
		for i := range sim {
			sim[i] = 0
		}
		return
	}

	m := m0
	for tau := range sim {
		if m > energyFloor*m0 {
			sim[tau] = sim[tau] * m0 / (zero * m)
		} else {
			sim[tau] = 0
		}

		head := window[tau]
		tail := window[n-1-tau]
		m -= head*head + tail*tail
	}
}
