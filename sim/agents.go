package sim

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slime/components"
)

// agentSnapshot captures one agent's state for the parallel phase. Each
// worker task owns its snapshots exclusively, including the random stream.
type agentSnapshot struct {
	Entity  ecs.Entity
	Pos     components.Position
	Heading components.Heading
	Species uint8
	Stream  components.Stream
}

// agentIntent holds the computed state applied after the parallel phase.
type agentIntent struct {
	Pos     components.Position
	Heading components.Heading
	Stream  components.Stream
}

// updateAgents runs sense/turn/move for every agent.
func (s *Simulation) updateAgents() {
	// Phase A: build snapshots (single-threaded)
	s.snapshots = s.snapshots[:0]
	query := s.agentFilter.Query()
	for query.Next() {
		pos, heading, species, stream := query.Get()
		s.snapshots = append(s.snapshots, agentSnapshot{
			Entity:  query.Entity(),
			Pos:     *pos,
			Heading: *heading,
			Species: species.ID,
			Stream:  *stream,
		})
	}

	n := len(s.snapshots)
	if n == 0 {
		return
	}
	if cap(s.intents) < n {
		s.intents = make([]agentIntent, n)
	}
	s.intents = s.intents[:n]

	// Phase B: compute (pool runs small counts inline)
	s.pool.For(n, s.computeChunk)

	// Phase C: apply intents (single-threaded)
	s.applyIntents()
}

// computeChunk updates snapshots [i0, i1). Grids are only read.
func (s *Simulation) computeChunk(i0, i1 int) {
	cos, sin := cos32, sin32
	if s.fastTrig {
		cos, sin = fastCos, fastSin
	}

	for i := i0; i < i1; i++ {
		snap := &s.snapshots[i]
		intent := &s.intents[i]
		grid := s.grids[snap.Species]
		cfg := &s.configs[snap.Species]

		x, y, angle := snap.Pos.X, snap.Pos.Y, snap.Heading.Angle
		sd := cfg.SensorDistance

		center := grid.SampleMix(x+sd*cos(angle), y+sd*sin(angle))
		la := angle - cfg.SensorAngle
		left := grid.SampleMix(x+sd*cos(la), y+sd*sin(la))
		ra := angle + cfg.SensorAngle
		right := grid.SampleMix(x+sd*cos(ra), y+sd*sin(ra))

		intent.Stream = snap.Stream
		d := direction(center, left, right, &intent.Stream)

		angle = wrap(angle+cfg.RotationAngle*d, twoPi)
		x = wrap(x+cfg.StepDistance*cos(angle), s.width)
		y = wrap(y+cfg.StepDistance*sin(angle), s.height)

		intent.Pos = components.Position{X: x, Y: y}
		intent.Heading = components.Heading{Angle: angle}
	}
}

// applyIntents writes computed state back to ECS components.
func (s *Simulation) applyIntents() {
	for i := range s.snapshots {
		e := s.snapshots[i].Entity
		intent := &s.intents[i]

		*s.posMap.Get(e) = intent.Pos
		*s.headingMap.Get(e) = intent.Heading
		*s.streamMap.Get(e) = intent.Stream
	}
}

// direction picks the turn from the center, left and right sensor readings:
// 0 keeps going straight, -1 turns left, +1 turns right. When both sides beat
// the center the agent flips a coin from its own stream.
func direction(c, l, r float32, stream *components.Stream) float32 {
	switch {
	case c >= l && c >= r && (c > l || c > r):
		return 0
	case c < l && c < r:
		return stream.Coin()
	case l < r:
		return 1
	case r < l:
		return -1
	default:
		return 0
	}
}

// wrap folds v into [0, period) for v within one period of that range. The
// second check also catches v+period rounding up to exactly period.
func wrap(v, period float32) float32 {
	if v < 0 {
		v += period
	}
	if v >= period {
		v -= period
	}
	return v
}

func cos32(x float32) float32 {
	return float32(math.Cos(float64(x)))
}

func sin32(x float32) float32 {
	return float32(math.Sin(float64(x)))
}
