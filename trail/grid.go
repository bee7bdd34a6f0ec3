// Package trail holds the per-population trail fields agents deposit into and
// sense, and the mixing step that lets populations attract or repel each other.
package trail

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/slime/blur"
	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/parallel"
)

// ErrNotPowerOfTwo is returned when grid dimensions are not powers of two.
var ErrNotPowerOfTwo = errors.New("grid dimensions must be powers of two")

// Grid is a toroidal trail field for one population. Each grid is occupied
// by a single population, so it owns that population's config.
//
// The mix buffer doubles as blur scratch: it is only meaningful between
// Combine and the next Diffuse.
type Grid struct {
	Width, Height int

	wmask, hmask int
	w32, h32     float32

	// Live pheromone concentration.
	field []float32
	// Attraction-weighted combination of all fields, used for sensing.
	mix []float32

	blur   *blur.Blur
	config PopulationConfig
}

// New creates a grid of the given size. init fills the field; nil leaves it
// zeroed. Returns an error wrapping ErrNotPowerOfTwo for other sizes.
func New(width, height int, cfg PopulationConfig, init FieldInit) (*Grid, error) {
	if !config.IsPowerOfTwo(width) || !config.IsPowerOfTwo(height) {
		return nil, fmt.Errorf("new grid %dx%d: %w", width, height, ErrNotPowerOfTwo)
	}

	g := &Grid{
		Width:  width,
		Height: height,
		wmask:  width - 1,
		hmask:  height - 1,
		w32:    float32(width),
		h32:    float32(height),
		field:  make([]float32, width*height),
		mix:    make([]float32, width*height),
		blur:   blur.New(width, blur.DefaultPasses, nil),
		config: cfg,
	}
	if init != nil {
		init(g.field, width, height)
	}
	return g, nil
}

// SetBlur configures the number of box passes and the pool rows are
// filtered on.
func (g *Grid) SetBlur(passes int, pool *parallel.Pool) {
	g.blur = blur.New(g.Width, passes, pool)
}

// Config returns the population config.
func (g *Grid) Config() PopulationConfig {
	return g.config
}

// Field returns the live trail field. Callers must not retain it across
// iterations if they need a stable copy.
func (g *Grid) Field() []float32 {
	return g.field
}

// Mix returns the mixing buffer.
func (g *Grid) Mix() []float32 {
	return g.mix
}

// index truncates x and y to a cell and returns its offset into the field.
// Positions can come in negative (sensors look behind the origin), so they
// are shifted by one period first; inputs must not be more than one period
// below zero.
func (g *Grid) index(x, y float32) int {
	i := int(x+g.w32) & g.wmask
	j := int(y+g.h32) & g.hmask
	return j*g.Width + i
}

// SampleMix returns the mix buffer value at a position. Any finite position
// within one period of the grid produces a value.
func (g *Grid) SampleMix(x, y float32) float32 {
	return g.mix[g.index(x, y)]
}

// SampleField returns the trail value at a position.
func (g *Grid) SampleField(x, y float32) float32 {
	return g.field[g.index(x, y)]
}

// Deposit adds the population's deposition amount at a position.
// Not safe for concurrent use.
func (g *Grid) Deposit(x, y float32) {
	g.field[g.index(x, y)] += g.config.DepositionAmount
}

// DepositAmount adds an explicit amount at a position.
// Not safe for concurrent use.
func (g *Grid) DepositAmount(x, y, amount float32) {
	g.field[g.index(x, y)] += amount
}

// Diffuse blurs the field with the given radius as standard deviation and
// applies the population's decay factor.
func (g *Grid) Diffuse(radius float32) {
	g.blur.Run(g.field, g.mix, g.Width, g.Height, radius, g.config.DecayFactor)
}

// Quantile returns the nearest-rank order statistic of the field.
func (g *Grid) Quantile(fraction float32) float32 {
	return Quantile(g.field, fraction)
}

// Total returns the summed trail mass. The field is non-negative.
func (g *Grid) Total() float32 {
	return blas32.Asum(blas32.Vector{N: len(g.field), Inc: 1, Data: g.field})
}

// Max returns the largest trail value.
func (g *Grid) Max() float32 {
	return Max(g.field)
}

// Max returns the largest of values, or 0 when values is empty.
func Max(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values)
}
