package core

import "math"

// MinLevelDB is the floor used when converting silent levels to decibels.
// It matches the -100 dB "minus infinity" convention of common plugin hosts
// so that meters never have to render -Inf.
const MinLevelDB = -100.0

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// IsFinitePositive reports whether x is > 0 and neither NaN nor Inf.
func IsFinitePositive(x float64) bool {
	return x > 0 && !math.IsNaN(x) && !math.IsInf(x, 0)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// FloorDB clamps db to [MinLevelDB, +Inf). NaN maps to MinLevelDB.
func FloorDB(db float64) float64 {
	if math.IsNaN(db) || db < MinLevelDB {
		return MinLevelDB
	}

	return db
}
