//go:build fastmath

package pitch

import (
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/meko-christian/algo-approx"
	"gonum.org/v1/gonum/floats"
)

// ln10 is the natural logarithm of 10, used for log base conversions.
const ln10 = 2.302585092994045684017991454684

// blockLevelDB returns 10*log10(meanSquare) floored at core.MinLevelDB,
// using a fast natural-log approximation.
func blockLevelDB(block []float64) float64 {
	meanSquare := floats.Dot(block, block) / float64(len(block))

	switch {
	case math.IsNaN(meanSquare) || meanSquare <= 0:
		return core.MinLevelDB
	case math.IsInf(meanSquare, 1):
		return meanSquare
	}

	return core.FloorDB(10 * approx.FastLog(meanSquare) / ln10)
}
