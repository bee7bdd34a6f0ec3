package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeFieldStats(t *testing.T) {
	field := []float32{0, 0, 1, 2, 3, 4, 4, 4}
	s := ComputeFieldStats(7, 1, field)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"total", s.Total, 18},
		{"mean", s.Mean, 2.25},
		{"min", s.Min, 0},
		{"max", s.Max, 4},
		{"p50", s.P50, 2.5},
		{"coverage", s.Coverage, 5.0 / 8}, // cells >= 2
		{"std", s.Std, math.Sqrt(2.6875)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
	if s.Iteration != 7 || s.Population != 1 {
		t.Errorf("labels = (%d, %d), want (7, 1)", s.Iteration, s.Population)
	}
}

func TestComputeFieldStatsEmpty(t *testing.T) {
	s := ComputeFieldStats(3, 0, nil)
	if s.Total != 0 || s.Max != 0 || s.Coverage != 0 {
		t.Errorf("expected zero stats for empty field, got %+v", s)
	}
}

func TestRecorderWritesCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	if om.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", om.Dir(), dir)
	}

	rec := NewRecorder(om, false)
	fields := [][]float32{{1, 2, 3, 4}, {0, 0, 0, 8}}
	for _, it := range []int{10, 20} {
		if _, err := rec.Record(it, fields); err != nil {
			t.Fatalf("Record(%d): %v", it, err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatalf("reading stats.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("stats.csv has %d lines, want header + 4 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "iteration,population,total") {
		t.Errorf("unexpected header %q", lines[0])
	}

	iterations, totals := rec.History()
	if len(iterations) != 2 || totals[1][1] != 8 {
		t.Errorf("history = %v %v", iterations, totals)
	}
}

func TestRecorderRejectsPopulationChange(t *testing.T) {
	rec := NewRecorder(nil, false)
	if _, err := rec.Record(1, [][]float32{{1}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := rec.Record(2, [][]float32{{1}, {2}}); err == nil {
		t.Error("expected error when the number of fields changes")
	}
}

func TestRecorderWriteChart(t *testing.T) {
	rec := NewRecorder(nil, false)
	for it := 1; it <= 5; it++ {
		v := float32(it)
		if _, err := rec.Record(it, [][]float32{{v, 2 * v}, {1, v}}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "chart.png")
	if err := rec.WriteChart(path); err != nil {
		t.Fatalf("WriteChart: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("chart file is empty")
	}
}

func TestNilOutputManager(t *testing.T) {
	var om *OutputManager
	if err := om.WriteStats([]FieldStats{{}}); err != nil {
		t.Errorf("WriteStats on nil manager: %v", err)
	}
	if err := om.WritePerf(PerfStats{}, 1); err != nil {
		t.Errorf("WritePerf on nil manager: %v", err)
	}
	if om.Dir() != "" || om.Path("stats.csv") != "" {
		t.Errorf("nil manager reports dir %q, path %q", om.Dir(), om.Path("stats.csv"))
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager: %v", err)
	}
}
