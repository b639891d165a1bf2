package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

// Gate measures the RMS level of each block in dBFS and decides whether the
// block carries enough signal to be analyzed.
type Gate struct {
	thresholdDB float64
}

// NewGate creates a gate passing blocks louder than thresholdDB. The
// threshold may not lie below [core.MinLevelDB].
func NewGate(thresholdDB float64) (*Gate, error) {
	if math.IsNaN(thresholdDB) {
		return nil, fmt.Errorf("pitch: gate threshold must not be NaN")
	}

	if thresholdDB < core.MinLevelDB {
		return nil, fmt.Errorf("pitch: gate threshold must be at least %v dBFS: %f",
			core.MinLevelDB, thresholdDB)
	}

	return &Gate{thresholdDB: thresholdDB}, nil
}

// ThresholdDB returns the gate threshold in dBFS.
func (g *Gate) ThresholdDB() float64 { return g.thresholdDB }

// Process returns the block level in dBFS, floored at [core.MinLevelDB], and
// whether it exceeds the threshold. Empty blocks and blocks with a
// non-finite level never pass.
func (g *Gate) Process(block []float64) (loudnessDB float64, passed bool) {
	if len(block) == 0 {
		return core.MinLevelDB, false
	}

	level := blockLevelDB(block)
	if math.IsInf(level, 0) {
		return level, false
	}

	return level, level > g.thresholdDB
}
