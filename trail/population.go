package trail

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/slime/config"
)

// PopulationConfig holds one population's movement and trail parameters.
// Angles are in radians.
type PopulationConfig struct {
	SensorDistance   float32
	SensorAngle      float32
	RotationAngle    float32
	StepDistance     float32
	DecayFactor      float32
	DepositionAmount float32
}

// SampleConfig draws a config uniformly from the bounds table. Angle bounds
// are in degrees.
func SampleConfig(rng *rand.Rand, b config.PopulationBounds) PopulationConfig {
	draw := func(r config.Range) float32 {
		if r.Min == r.Max {
			return float32(r.Min)
		}
		u := distuv.Uniform{Min: r.Min, Max: r.Max, Src: rng}
		return float32(u.Rand())
	}
	return PopulationConfig{
		SensorDistance:   draw(b.SensorDistance),
		StepDistance:     draw(b.StepDistance),
		DecayFactor:      draw(b.DecayFactor),
		SensorAngle:      draw(b.SensorAngle) * math.Pi / 180,
		RotationAngle:    draw(b.RotationAngle) * math.Pi / 180,
		DepositionAmount: draw(b.DepositionAmount),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (c PopulationConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("sensor_distance", float64(c.SensorDistance)),
		slog.Float64("step_distance", float64(c.StepDistance)),
		slog.Float64("sensor_angle_deg", float64(c.SensorAngle)*180/math.Pi),
		slog.Float64("rotation_angle_deg", float64(c.RotationAngle)*180/math.Pi),
		slog.Float64("decay_factor", float64(c.DecayFactor)),
		slog.Float64("deposition_amount", float64(c.DepositionAmount)),
	)
}
