package telemetry

import (
	"log/slog"
	"math"
	"sort"
)

// FieldStats summarises one population's trail field at an iteration.
type FieldStats struct {
	Iteration  int     `csv:"iteration"`
	Population int     `csv:"population"`
	Total      float64 `csv:"total"`
	Mean       float64 `csv:"mean"`
	Std        float64 `csv:"std"`
	Min        float64 `csv:"min"`
	Max        float64 `csv:"max"`
	P10        float64 `csv:"p10"`
	P50        float64 `csv:"p50"`
	P90        float64 `csv:"p90"`

	// Fraction of cells holding at least half the maximum. Tracks how much
	// of the grid the network covers.
	Coverage float64 `csv:"coverage"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFieldStats calculates distribution statistics for a field.
func ComputeFieldStats(iteration, population int, field []float32) FieldStats {
	s := FieldStats{Iteration: iteration, Population: population}
	n := len(field)
	if n == 0 {
		return s
	}

	sorted := make([]float64, n)
	for i, v := range field {
		sorted[i] = float64(v)
		s.Total += float64(v)
	}
	s.Mean = s.Total / float64(n)

	var sqDiffSum float64
	for _, v := range sorted {
		d := v - s.Mean
		sqDiffSum += d * d
	}
	s.Std = math.Sqrt(sqDiffSum / float64(n))

	sort.Float64s(sorted)
	s.Min = sorted[0]
	s.Max = sorted[n-1]
	s.P10 = Percentile(sorted, 0.10)
	s.P50 = Percentile(sorted, 0.50)
	s.P90 = Percentile(sorted, 0.90)

	if s.Max > 0 {
		half := s.Max / 2
		idx := sort.SearchFloat64s(sorted, half)
		s.Coverage = float64(n-idx) / float64(n)
	}

	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("iteration", s.Iteration),
		slog.Int("population", s.Population),
		slog.Float64("total", s.Total),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("min", s.Min),
		slog.Float64("max", s.Max),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Float64("coverage", s.Coverage),
	)
}

// LogStats logs the field stats using slog.
func (s FieldStats) LogStats() {
	slog.Info("field",
		"iteration", s.Iteration,
		"population", s.Population,
		"total", s.Total,
		"mean", s.Mean,
		"max", s.Max,
		"p90", s.P90,
		"coverage", s.Coverage,
	)
}
