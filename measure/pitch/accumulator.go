package pitch

import "github.com/cwbudde/algo-tuner/dsp/core"

// Accumulator collects mono samples into overlapping analysis windows.
//
// After the first N pushes a window completes, and afterwards one completes
// every hop pushes. On completion the oldest hop samples are discarded and
// the write cursor is rehomed to N-hop, so consecutive windows share N-hop
// samples.
type Accumulator struct {
	fifo   []float64
	window []float64
	index  int
	hop    int
}

// NewAccumulator allocates an accumulator for windows of size samples
// advancing by hop samples.
func NewAccumulator(size, hop int) (*Accumulator, error) {
	if err := validateWindow(size, hop); err != nil {
		return nil, err
	}

	return &Accumulator{
		fifo:   make([]float64, size),
		window: make([]float64, size),
		hop:    hop,
	}, nil
}

// Push appends one sample and reports whether a window just completed.
// The completed window is available from [Accumulator.Window] until the next
// completion.
func (a *Accumulator) Push(sample float64) bool {
	a.fifo[a.index] = sample
	a.index++

	if a.index < len(a.fifo) {
		return false
	}

	copy(a.window, a.fifo)
	a.index = core.ShiftLeft(a.fifo, a.hop)

	return true
}

// Window returns the most recently completed window. The slice is owned by
// the accumulator and is overwritten by the next completion.
func (a *Accumulator) Window() []float64 { return a.window }

// Fill returns the number of buffered samples toward the next window.
func (a *Accumulator) Fill() int { return a.index }

// Size returns the window length N.
func (a *Accumulator) Size() int { return len(a.fifo) }

// Hop returns the hop size.
func (a *Accumulator) Hop() int { return a.hop }

// Reset discards buffered samples and the last window.
func (a *Accumulator) Reset() {
	core.Zero(a.fifo)
	core.Zero(a.window)
	a.index = 0
}
