package feed

// Normalize scales z so its maximum is 1. All-zero (or empty) input is
// returned as zeros.
func Normalize(z []float64) []float64 {
	out := make([]float64, len(z))
	top := 0.0
	for _, v := range z {
		if v > top {
			top = v
		}
	}
	if top == 0 {
		return out
	}
	for i, v := range z {
		out[i] = v / top
	}
	return out
}

// Smooth applies a centred moving average. window is forced odd; near the
// edges the average covers only the samples that exist.
func Smooth(z []float64, window int) []float64 {
	out := make([]float64, len(z))
	if window <= 1 {
		copy(out, z)
		return out
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2

	// prefix sums
	sums := make([]float64, len(z)+1)
	for i, v := range z {
		sums[i+1] = sums[i] + v
	}
	for i := range z {
		lo := max(0, i-half)
		hi := min(len(z), i+half+1)
		out[i] = (sums[hi] - sums[lo]) / float64(hi-lo)
	}
	return out
}

// FindPeaks returns indices strictly greater than every neighbour within
// order samples on each side. Neighbours past the ends are clipped to the
// end sample, so the first and last samples never count as peaks.
func FindPeaks(z []float64, order int) []int {
	if order < 1 {
		order = 1
	}
	var peaks []int
	for i := range z {
		peak := true
		for k := 1; k <= order && peak; k++ {
			left := max(0, i-k)
			right := min(len(z)-1, i+k)
			if !(z[i] > z[left]) || !(z[i] > z[right]) {
				peak = false
			}
		}
		if peak {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// DerivePeaks runs Smooth then FindPeaks, the fallback for data frames
// without a peak list
func DerivePeaks(amps []float64, window, order int) []int {
	return FindPeaks(Smooth(amps, window), order)
}
