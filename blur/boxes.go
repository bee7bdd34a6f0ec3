// Package blur implements an approximate Gaussian blur on toroidal grids as
// repeated separable box filters.
package blur

import (
	"fmt"
	"math"
)

// BoxesForGaussian returns the radii of k box filter passes whose composition
// approximates a 1D Gaussian of standard deviation sigma.
//
// The ideal box width sqrt(12σ²/k + 1) is floored and forced odd (w). The
// first m passes use radius (w-1)/2 and the rest (w+1)/2, with
// m = round(k(w+3)/4 - 3σ²/(w+1)) chosen so the summed variance is closest
// to σ².
func BoxesForGaussian(sigma float32, k int) []int {
	if sigma <= 0 {
		panic(fmt.Sprintf("blur: sigma must be positive, got %g", sigma))
	}
	if k < 1 {
		panic(fmt.Sprintf("blur: pass count must be positive, got %d", k))
	}

	s2 := float64(sigma) * float64(sigma)
	w := int(math.Sqrt(12*s2/float64(k) + 1))
	if w%2 == 0 {
		w--
	}

	m := int(math.Round(float64(k)*float64(w+3)/4 - 3*s2/float64(w+1)))
	m = max(0, min(m, k))

	radii := make([]int, k)
	for i := range radii {
		if i < m {
			radii[i] = (w - 1) / 2
		} else {
			radii[i] = (w + 1) / 2
		}
	}
	return radii
}
