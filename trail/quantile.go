package trail

import "math"

// Quantile returns the order statistic of values at index
// ceil(fraction*N), clamped to [0, N-1], without modifying values.
// fraction 0 gives the minimum and 1 the maximum. Returns 0 for no values.
func Quantile(values []float32, fraction float32) float32 {
	n := len(values)
	if n == 0 {
		return 0
	}
	k := int(math.Ceil(float64(fraction) * float64(n)))
	k = max(0, min(k, n-1))

	tmp := make([]float32, n)
	copy(tmp, values)
	return selectKth(tmp, k)
}

// selectKth partially orders a so a[k] holds the k-th smallest element and
// returns it. Expected linear time.
func selectKth(a []float32, k int) float32 {
	lo, hi := 0, len(a)-1
	for lo < hi {
		// Median of three as pivot, moved to hi.
		mid := lo + (hi-lo)/2
		if a[mid] < a[lo] {
			a[mid], a[lo] = a[lo], a[mid]
		}
		if a[hi] < a[lo] {
			a[hi], a[lo] = a[lo], a[hi]
		}
		if a[mid] < a[hi] {
			a[mid], a[hi] = a[hi], a[mid]
		}
		pivot := a[hi]

		// Three-way partition: [lo,lt) < pivot, [lt,gt] == pivot, (gt,hi] > pivot.
		lt, i, gt := lo, lo, hi
		for i <= gt {
			switch {
			case a[i] < pivot:
				a[lt], a[i] = a[i], a[lt]
				lt++
				i++
			case a[i] > pivot:
				a[i], a[gt] = a[gt], a[i]
				gt--
			default:
				i++
			}
		}

		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return a[k]
		}
	}
	return a[k]
}
