package telemetry

import (
	"fmt"
	"math"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// seriesColors cycles per population.
var seriesColors = []drawing.Color{
	{R: 230, G: 57, B: 70, A: 255},
	{R: 42, G: 157, B: 143, A: 255},
	{R: 233, G: 196, B: 106, A: 255},
	{R: 69, G: 123, B: 157, A: 255},
	{R: 155, G: 93, B: 229, A: 255},
}

// WriteChart plots trail mass per population on the left axis and
// coverage (dashed) on the right axis, writing a PNG to path.
func WriteChart(path string, iterations []float64, totals, coverage [][]float64) error {
	var series []chart.Series
	for i := range totals {
		color := seriesColors[i%len(seriesColors)]
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("population %d mass", i),
			XValues: iterations,
			YValues: totals[i],
			Style:   chart.Style{StrokeColor: color, StrokeWidth: 3},
		})
		if i < len(coverage) {
			series = append(series, chart.ContinuousSeries{
				Name:    fmt.Sprintf("population %d coverage", i),
				XValues: iterations,
				YValues: coverage[i],
				YAxis:   chart.YAxisSecondary,
				Style:   chart.Style{StrokeColor: color, StrokeWidth: 1.5, StrokeDashArray: []float64{5, 3}},
			})
		}
	}

	graph := chart.Chart{
		Width:  960,
		Height: 480,
		XAxis: chart.XAxis{
			Name:  "iteration",
			Style: chart.Style{FontSize: 10},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "trail mass",
			Style: chart.Style{FontSize: 10},
			Range: massRange(totals),
		},
		YAxisSecondary: chart.YAxis{
			Name:  "coverage",
			Style: chart.Style{FontSize: 10},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart: %w", err)
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	return f.Close()
}

// massRange pads a flat series so the axis never has a zero span, which
// the chart renderer rejects. Returns nil to let the axis auto-scale.
func massRange(totals [][]float64) chart.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, ys := range totals {
		for _, y := range ys {
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
	}
	if lo < hi || math.IsInf(lo, 0) {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.05, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
