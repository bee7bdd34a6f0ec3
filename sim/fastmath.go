package sim

import "math"

// Fast trig for the agent hot path. These avoid the float32->float64
// round trip and are accurate to about 0.002 for any finite x.

// fastCos approximates cos(x) with a parabola plus correction term.
func fastCos(x float32) float32 {
	const alpha = 0.5 / math.Pi
	x *= alpha
	x -= 0.25 + floorf(x+0.25)
	x *= 16 * (absf(x) - 0.5)
	x += 0.225 * x * (absf(x) - 1)
	return x
}

// fastSin approximates sin(x) using fastCos.
func fastSin(x float32) float32 {
	return fastCos(x - math.Pi/2)
}

func floorf(x float32) float32 {
	t := float32(int32(x))
	if x < t {
		t--
	}
	return t
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
