//go:build !fastmath

package pitch

import (
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
	"gonum.org/v1/gonum/floats"
)

// blockLevelDB returns 20*log10(rms(block)) floored at core.MinLevelDB.
// block must not be empty.
func blockLevelDB(block []float64) float64 {
	meanSquare := floats.Dot(block, block) / float64(len(block))

	return core.FloorDB(core.LinearToDB(math.Sqrt(meanSquare)))
}
