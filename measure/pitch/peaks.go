package pitch

// PickPeaks returns the key maxima of sim in increasing lag order, reusing
// the storage of dst.
//
// The scan starts at lag 1 and skips the leading non-positive region. Inside
// every positive run it keeps the highest strict local maximum
// (sim[i] > sim[i-1] && sim[i] >= sim[i+1]); the run's maximum is emitted
// when the function drops to zero or below, and once more for a run still
// open at the end. Lag 0 is never emitted, and a function that is nowhere
// positive yields no candidates.
//
// dst needs capacity len(sim)/2+1 for the call to be allocation free.
func PickPeaks(dst []int, sim []float64) []int {
	dst = dst[:0]

	n := len(sim)
	if n < 3 {
		return dst
	}

	pos := 1
	for pos < n-1 && sim[pos] <= 0 {
		pos++
	}

	runMax := 0

	for pos < n-1 {
		if sim[pos] > sim[pos-1] && sim[pos] >= sim[pos+1] &&
			(runMax == 0 || sim[pos] > sim[runMax]) {
			runMax = pos
		}

		pos++

		if pos < n-1 && sim[pos] <= 0 {
			if runMax > 0 {
				dst = append(dst, runMax)
				runMax = 0
			}

			for pos < n-1 && sim[pos] <= 0 {
				pos++
			}
		}
	}

	if runMax > 0 {
		dst = append(dst, runMax)
	}

	return dst
}
