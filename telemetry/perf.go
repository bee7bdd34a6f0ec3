package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseCombine = "combine"
	PhaseAgents  = "agents"
	PhaseDeposit = "deposit"
	PhaseDiffuse = "diffuse"
	PhaseSinks   = "sinks"
)

// Phases lists every phase in pipeline order.
var Phases = []string{PhaseCombine, PhaseAgents, PhaseDeposit, PhaseDiffuse, PhaseSinks}

// perfSample holds timing data for a single iteration. phases is indexed
// by the collector's phase slots.
type perfSample struct {
	total  time.Duration
	phases []time.Duration
}

// PerfCollector tracks per-phase iteration timing over a rolling window.
// Not safe for concurrent use.
type PerfCollector struct {
	samples []perfSample
	next    int
	count   int

	// Phase names are assigned slots on first use so samples avoid maps.
	names []string
	slots map[string]int

	current    []time.Duration
	tickStart  time.Time
	phaseStart time.Time
	phase      int // slot of the running phase, -1 if none

	lastFrame     time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize iterations.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	p := &PerfCollector{
		samples: make([]perfSample, windowSize),
		slots:   make(map[string]int),
		phase:   -1,
	}
	for _, name := range Phases {
		p.slot(name)
	}
	return p
}

func (p *PerfCollector) slot(name string) int {
	if i, ok := p.slots[name]; ok {
		return i
	}
	i := len(p.names)
	p.names = append(p.names, name)
	p.slots[name] = i
	p.current = append(p.current, 0)
	return i
}

// StartTick begins timing a new iteration.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.current)
	p.phase = -1
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.phase >= 0 {
		p.current[p.phase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.phase = p.slot(phase)
}

// EndTick finishes the iteration and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	if p.phase >= 0 {
		p.current[p.phase] += now.Sub(p.phaseStart)
		p.phase = -1
	}

	s := &p.samples[p.next]
	s.total = now.Sub(p.tickStart)
	s.phases = append(s.phases[:0], p.current...)

	p.next = (p.next + 1) % len(p.samples)
	if p.count < len(p.samples) {
		p.count++
	}
}

// RecordFrame records frame timing for the viewer.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frameDuration = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Average duration and share of iteration time per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64

	// Viewer only
	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDuration,
	}
	if p.frameDuration > 0 {
		s.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.count == 0 {
		return s
	}

	var total time.Duration
	phaseSum := make([]time.Duration, len(p.names))
	for i := 0; i < p.count; i++ {
		sample := &p.samples[i]
		total += sample.total
		if i == 0 || sample.total < s.MinTickDuration {
			s.MinTickDuration = sample.total
		}
		s.MaxTickDuration = max(s.MaxTickDuration, sample.total)
		for slot, d := range sample.phases {
			phaseSum[slot] += d
		}
	}

	s.AvgTickDuration = total / time.Duration(p.count)
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}

	for slot, sum := range phaseSum {
		if sum == 0 {
			continue
		}
		name := p.names[slot]
		avg := sum / time.Duration(p.count)
		s.PhaseAvg[name] = avg
		if s.AvgTickDuration > 0 {
			s.PhasePct[name] = float64(avg) / float64(s.AvgTickDuration) * 100
		}
	}

	return s
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Iteration   int     `csv:"iteration"`
	AvgTickUS   int64   `csv:"avg_tick_us"`
	MinTickUS   int64   `csv:"min_tick_us"`
	MaxTickUS   int64   `csv:"max_tick_us"`
	TicksPerSec float64 `csv:"ticks_per_sec"`
	CombinePct  float64 `csv:"combine_pct"`
	AgentsPct   float64 `csv:"agents_pct"`
	DepositPct  float64 `csv:"deposit_pct"`
	DiffusePct  float64 `csv:"diffuse_pct"`
	SinksPct    float64 `csv:"sinks_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(iteration int) PerfStatsCSV {
	return PerfStatsCSV{
		Iteration:   iteration,
		AvgTickUS:   s.AvgTickDuration.Microseconds(),
		MinTickUS:   s.MinTickDuration.Microseconds(),
		MaxTickUS:   s.MaxTickDuration.Microseconds(),
		TicksPerSec: s.TicksPerSecond,
		CombinePct:  s.PhasePct[PhaseCombine],
		AgentsPct:   s.PhasePct[PhaseAgents],
		DepositPct:  s.PhasePct[PhaseDeposit],
		DiffusePct:  s.PhasePct[PhaseDiffuse],
		SinksPct:    s.PhasePct[PhaseSinks],
	}
}
