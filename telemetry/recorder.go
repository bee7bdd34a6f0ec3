package telemetry

import "fmt"

// Recorder turns field snapshots into statistics: it logs them, appends them
// to stats.csv and keeps per-population history for the chart.
type Recorder struct {
	out *OutputManager
	log bool

	iterations []float64
	totals     [][]float64 // per population
	coverage   [][]float64
}

// NewRecorder creates a recorder writing to out (may be nil). When log is
// set every record is also logged through slog.
func NewRecorder(out *OutputManager, log bool) *Recorder {
	return &Recorder{out: out, log: log}
}

// Record computes and stores stats for every population's field.
func (r *Recorder) Record(iteration int, fields [][]float32) ([]FieldStats, error) {
	if r.totals == nil {
		r.totals = make([][]float64, len(fields))
		r.coverage = make([][]float64, len(fields))
	}
	if len(fields) != len(r.totals) {
		return nil, fmt.Errorf("record iteration %d: got %d fields, want %d", iteration, len(fields), len(r.totals))
	}

	records := make([]FieldStats, len(fields))
	for i, field := range fields {
		s := ComputeFieldStats(iteration, i, field)
		records[i] = s
		r.totals[i] = append(r.totals[i], s.Total)
		r.coverage[i] = append(r.coverage[i], s.Coverage)
		if r.log {
			s.LogStats()
		}
	}
	r.iterations = append(r.iterations, float64(iteration))

	if err := r.out.WriteStats(records); err != nil {
		return records, err
	}
	return records, nil
}

// History returns recorded iterations and per-population trail totals.
func (r *Recorder) History() (iterations []float64, totals [][]float64) {
	return r.iterations, r.totals
}

// WriteChart renders the recorded history to path as PNG.
func (r *Recorder) WriteChart(path string) error {
	if len(r.iterations) < 2 {
		return nil
	}
	return WriteChart(path, r.iterations, r.totals, r.coverage)
}
