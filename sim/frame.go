package sim

import (
	"fmt"

	"github.com/pthm-cable/slime/trail"
)

// Frame is a copy of the trail fields after an iteration. Sinks may keep it.
type Frame struct {
	Iteration     int
	Width, Height int
	Fields        [][]float32 // one per population
	Populations   []trail.PopulationConfig
}

// FrameSink consumes frames, e.g. to render images or record statistics.
type FrameSink interface {
	WriteFrame(f *Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(f *Frame) error

// WriteFrame calls fn(f).
func (fn FrameSinkFunc) WriteFrame(f *Frame) error {
	return fn(f)
}

type sinkEntry struct {
	sink     FrameSink
	interval int
}

// AddSink registers sink to receive a frame every interval iterations.
// Intervals below one are treated as one.
func (s *Simulation) AddSink(sink FrameSink, interval int) {
	s.sinks = append(s.sinks, sinkEntry{sink: sink, interval: max(interval, 1)})
}

// Snapshot copies the current fields into a frame.
func (s *Simulation) Snapshot() *Frame {
	f := &Frame{
		Iteration:   s.iteration,
		Width:       s.grids[0].Width,
		Height:      s.grids[0].Height,
		Fields:      make([][]float32, len(s.grids)),
		Populations: s.configs,
	}
	for i, g := range s.grids {
		f.Fields[i] = append([]float32(nil), g.Field()...)
	}
	return f
}

// emitFrames builds at most one frame per iteration and shares it among
// every sink that is due.
func (s *Simulation) emitFrames() error {
	var frame *Frame
	for _, e := range s.sinks {
		if s.iteration%e.interval != 0 {
			continue
		}
		if frame == nil {
			frame = s.Snapshot()
		}
		if err := e.sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("frame sink: %w", err)
		}
	}
	return nil
}
