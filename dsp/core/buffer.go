package core

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// ShiftLeft moves buf[n:] to the front of buf and zeroes the vacated tail.
// It returns the number of retained samples. n <= 0 is a no-op; n >= len(buf)
// clears the whole buffer.
func ShiftLeft(buf []float64, n int) int {
	if n <= 0 {
		return len(buf)
	}

	if n >= len(buf) {
		Zero(buf)
		return 0
	}

	kept := copy(buf, buf[n:])
	Zero(buf[kept:])

	return kept
}
