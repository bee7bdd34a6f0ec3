// Package components defines ECS components for agents.
package components

import "math/rand/v2"

// Position is an agent's location on the torus, in cells.
type Position struct {
	X, Y float32
}

// Heading is an agent's direction of travel in radians, kept in [0, 2*pi).
type Heading struct {
	Angle float32
}

// Species identifies the population, and so the trail grid, an agent belongs to.
type Species struct {
	ID uint8
}

// Stream is an agent's private random stream. Each agent draws only from its
// own stream, so results do not depend on how agents are scheduled.
type Stream struct {
	PCG rand.PCG
}

// NewStream seeds a stream from the run seed and the agent's index.
func NewStream(seed uint64, index int) Stream {
	var s Stream
	s.PCG.Seed(seed, uint64(index))
	return s
}

// Coin returns -1 or +1 with equal probability.
func (s *Stream) Coin() float32 {
	if s.PCG.Uint64()>>63 == 0 {
		return -1
	}
	return 1
}
