package trail

import (
	"math/rand/v2"

	"github.com/ojrac/opensimplex-go"
)

// FieldInit fills a freshly allocated field of the given size.
type FieldInit func(field []float32, width, height int)

// UniformInit fills the field with independent uniform [0,1) samples.
func UniformInit(rng *rand.Rand) FieldInit {
	return func(field []float32, _, _ int) {
		for i := range field {
			field[i] = rng.Float32()
		}
	}
}

// SimplexInit fills the field with normalized [0,1) simplex noise sampled
// at scale noise units per cell.
func SimplexInit(seed int64, scale float64) FieldInit {
	return func(field []float32, width, height int) {
		noise := opensimplex.NewNormalized(seed)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				field[y*width+x] = float32(noise.Eval2(float64(x)*scale, float64(y)*scale))
			}
		}
	}
}
