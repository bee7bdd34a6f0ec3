// Package sim runs the multi-population trail simulation: agents sense the
// mixed trail fields, turn, move and deposit, then every field diffuses.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/slime/blur"
	"github.com/pthm-cable/slime/components"
	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/parallel"
	"github.com/pthm-cable/slime/telemetry"
	"github.com/pthm-cable/slime/trail"
)

const twoPi = 2 * math.Pi

// placementStream separates the agent placement stream from the config
// sampling stream drawn from the same seed.
const placementStream = 0x9e3779b97f4a7c15

// Field initialisers.
const (
	FieldInitUniform = "uniform"
	FieldInitSimplex = "simplex"
)

// Options holds everything needed to build a simulation. Population configs
// and the attraction table are sampled by the caller (see FromConfig).
type Options struct {
	Width, Height   int
	Particles       int
	Populations     []trail.PopulationConfig
	Attraction      *trail.AttractionTable // nil = identity
	DiffusionRadius float32
	Seed            uint64
	FieldInit       string // "" or "uniform", "simplex"
	SimplexScale    float64
	BlurPasses      int // 0 = blur.DefaultPasses
	FastTrig        bool

	// Pool runs the parallel phases. Nil creates one from Workers and
	// Threshold that the simulation stops on Close.
	Pool      *parallel.Pool
	Workers   int
	Threshold int

	// Perf, when set, times each phase of Step.
	Perf *telemetry.PerfCollector
}

// Simulation holds agents, trail grids and the attraction table.
type Simulation struct {
	world *ecs.World

	agentMapper *ecs.Map4[
		components.Position,
		components.Heading,
		components.Species,
		components.Stream,
	]
	agentFilter *ecs.Filter4[
		components.Position,
		components.Heading,
		components.Species,
		components.Stream,
	]

	posMap     *ecs.Map1[components.Position]
	headingMap *ecs.Map1[components.Heading]
	streamMap  *ecs.Map1[components.Stream]

	grids   []*trail.Grid
	configs []trail.PopulationConfig
	table   *trail.AttractionTable
	radius  float32

	width, height float32
	fastTrig      bool

	pool     *parallel.Pool
	ownsPool bool
	perf     *telemetry.PerfCollector

	snapshots []agentSnapshot
	intents   []agentIntent

	sinks []sinkEntry

	iteration int
	agents    int
}

// New builds a simulation from explicit options. Grid dimensions that are
// not powers of two yield an error wrapping trail.ErrNotPowerOfTwo.
func New(opts Options) (*Simulation, error) {
	n := len(opts.Populations)
	if n == 0 {
		return nil, errors.New("new simulation: no populations")
	}
	if n > math.MaxUint8+1 {
		return nil, fmt.Errorf("new simulation: %d populations, at most %d supported", n, math.MaxUint8+1)
	}
	if opts.Particles < 0 {
		return nil, fmt.Errorf("new simulation: negative particle count %d", opts.Particles)
	}
	if opts.DiffusionRadius <= 0 {
		return nil, fmt.Errorf("new simulation: diffusion radius %v must be positive", opts.DiffusionRadius)
	}

	switch opts.FieldInit {
	case "", FieldInitUniform, FieldInitSimplex:
	default:
		return nil, fmt.Errorf("new simulation: unknown field init %q", opts.FieldInit)
	}

	passes := opts.BlurPasses
	if passes <= 0 {
		passes = blur.DefaultPasses
	}
	// Every box window must fit inside one period of the grid.
	widest := slices.Max(blur.BoxesForGaussian(opts.DiffusionRadius, passes))
	if widest >= min(opts.Width, opts.Height) {
		return nil, fmt.Errorf("new simulation: diffusion radius %v needs box radius %d, grid is %dx%d",
			opts.DiffusionRadius, widest, opts.Width, opts.Height)
	}

	table := opts.Attraction
	if table == nil {
		table = identityTable(n)
	}
	if table.Size() != n {
		return nil, fmt.Errorf("new simulation: attraction table is %dx%d for %d populations", table.Size(), table.Size(), n)
	}

	pool := opts.Pool
	ownsPool := false
	if pool == nil {
		pool = parallel.NewPool(opts.Workers, opts.Threshold)
		ownsPool = true
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^placementStream))

	grids := make([]*trail.Grid, n)
	for i, cfg := range opts.Populations {
		init := trail.UniformInit(rng)
		if opts.FieldInit == FieldInitSimplex {
			init = trail.SimplexInit(int64(opts.Seed)+int64(i), opts.SimplexScale)
		}

		g, err := trail.New(opts.Width, opts.Height, cfg, init)
		if err != nil {
			if ownsPool {
				pool.Stop()
			}
			return nil, fmt.Errorf("creating grid %d: %w", i, err)
		}
		g.SetBlur(passes, pool)
		grids[i] = g
	}

	world := ecs.NewWorld()
	s := &Simulation{
		world: world,
		agentMapper: ecs.NewMap4[
			components.Position,
			components.Heading,
			components.Species,
			components.Stream,
		](world),
		agentFilter: ecs.NewFilter4[
			components.Position,
			components.Heading,
			components.Species,
			components.Stream,
		](world),
		posMap:     ecs.NewMap1[components.Position](world),
		headingMap: ecs.NewMap1[components.Heading](world),
		streamMap:  ecs.NewMap1[components.Stream](world),
		grids:      grids,
		configs:    append([]trail.PopulationConfig(nil), opts.Populations...),
		table:      table,
		radius:     opts.DiffusionRadius,
		width:      float32(opts.Width),
		height:     float32(opts.Height),
		fastTrig:   opts.FastTrig,
		pool:       pool,
		ownsPool:   ownsPool,
		perf:       opts.Perf,
		snapshots:  make([]agentSnapshot, 0, opts.Particles),
		intents:    make([]agentIntent, 0, opts.Particles),
	}

	s.spawnAgents(rng, opts.Particles, opts.Seed)

	slog.Debug("simulation created",
		"width", opts.Width,
		"height", opts.Height,
		"agents", s.agents,
		"populations", n,
		"blur_passes", passes,
		"workers", pool.Workers(),
	)
	return s, nil
}

// spawnAgents places agents uniformly with uniform headings. Populations
// take contiguous blocks of agent indices.
func (s *Simulation) spawnAgents(rng *rand.Rand, count int, seed uint64) {
	n := len(s.grids)
	for i := 0; i < count; i++ {
		pos := components.Position{
			X: wrap(rng.Float32()*s.width, s.width),
			Y: wrap(rng.Float32()*s.height, s.height),
		}
		heading := components.Heading{Angle: wrap(rng.Float32()*twoPi, twoPi)}
		species := components.Species{ID: uint8(i * n / count)}
		stream := components.NewStream(seed, i)

		s.agentMapper.NewEntity(&pos, &heading, &species, &stream)
	}
	s.agents = count
}

// FromConfig samples population configs and the attraction table from cfg
// and builds a simulation. pool may be nil.
func FromConfig(cfg *config.Config, pool *parallel.Pool, perf *telemetry.PerfCollector) (*Simulation, error) {
	seed := cfg.Simulation.Seed
	rng := rand.New(rand.NewPCG(seed, seed))

	populations := make([]trail.PopulationConfig, cfg.Simulation.Populations)
	for i := range populations {
		populations[i] = trail.SampleConfig(rng, cfg.Population)
	}

	attract := distuv.Normal{Mu: cfg.Attraction.Attraction.Mean, Sigma: cfg.Attraction.Attraction.StdDev, Src: rng}
	repel := distuv.Normal{Mu: cfg.Attraction.Repulsion.Mean, Sigma: cfg.Attraction.Repulsion.StdDev, Src: rng}
	table := trail.SampleAttractionTable(len(populations), attract, repel)

	return New(Options{
		Width:           cfg.Grid.Width,
		Height:          cfg.Grid.Height,
		Particles:       cfg.Simulation.Particles,
		Populations:     populations,
		Attraction:      table,
		DiffusionRadius: cfg.Derived.Sigma,
		Seed:            seed,
		FieldInit:       cfg.Simulation.FieldInit,
		SimplexScale:    cfg.Simulation.SimplexScale,
		BlurPasses:      cfg.Blur.Passes,
		FastTrig:        cfg.Simulation.FastTrig,
		Pool:            pool,
		Workers:         cfg.Parallel.Workers,
		Threshold:       cfg.Parallel.Threshold,
		Perf:            perf,
	})
}

func identityTable(n int) *trail.AttractionTable {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		rows[i][i] = 1
	}
	t, _ := trail.NewAttractionTable(rows)
	return t
}

// Step advances the simulation by one iteration and hands a frame to every
// sink that is due. Only sink errors are returned.
func (s *Simulation) Step() error {
	if s.perf != nil {
		s.perf.StartTick()
		defer s.perf.EndTick()
	}

	// 1. Rebuild every mix buffer from all fields
	s.startPhase(telemetry.PhaseCombine)
	trail.Combine(s.grids, s.table, s.pool)

	// 2. Sense, turn and move (parallel)
	s.startPhase(telemetry.PhaseAgents)
	s.updateAgents()

	// 3. Deposit into home grids (sequential)
	s.startPhase(telemetry.PhaseDeposit)
	s.deposit()

	// 4. Diffuse and decay every grid
	s.startPhase(telemetry.PhaseDiffuse)
	s.diffuse()

	s.iteration++

	s.startPhase(telemetry.PhaseSinks)
	return s.emitFrames()
}

// Run steps n times, checking ctx between iterations.
func (s *Simulation) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return fmt.Errorf("iteration %d: %w", s.iteration, err)
		}
	}
	return nil
}

func (s *Simulation) startPhase(phase string) {
	if s.perf != nil {
		s.perf.StartPhase(phase)
	}
}

// deposit walks agents in ECS order, so repeated runs deposit identically.
func (s *Simulation) deposit() {
	query := s.agentFilter.Query()
	for query.Next() {
		pos, _, species, _ := query.Get()
		s.grids[species.ID].Deposit(pos.X, pos.Y)
	}
}

// diffuse blurs every grid concurrently. Each grid owns its blur scratch;
// the pool is shared.
func (s *Simulation) diffuse() {
	var g errgroup.Group
	for _, grid := range s.grids {
		g.Go(func() error {
			grid.Diffuse(s.radius)
			return nil
		})
	}
	_ = g.Wait()
}

// Close releases the worker pool if the simulation created it.
func (s *Simulation) Close() {
	if s.ownsPool {
		s.pool.Stop()
	}
}

// Iteration returns the number of completed iterations.
func (s *Simulation) Iteration() int {
	return s.iteration
}

// Grids returns the trail grids, indexed by population.
func (s *Simulation) Grids() []*trail.Grid {
	return s.grids
}

// Populations returns the population configs.
func (s *Simulation) Populations() []trail.PopulationConfig {
	return s.configs
}

// Attraction returns the attraction table.
func (s *Simulation) Attraction() *trail.AttractionTable {
	return s.table
}

// NumAgents returns the number of agents.
func (s *Simulation) NumAgents() int {
	return s.agents
}

// AgentState is a copy of one agent's state.
type AgentState struct {
	X, Y    float32
	Angle   float32
	Species uint8
}

// Agents returns a copy of every agent's state in ECS order.
func (s *Simulation) Agents() []AgentState {
	out := make([]AgentState, 0, s.agents)
	query := s.agentFilter.Query()
	for query.Next() {
		pos, heading, species, _ := query.Get()
		out = append(out, AgentState{X: pos.X, Y: pos.Y, Angle: heading.Angle, Species: species.ID})
	}
	return out
}

// LogConfigurations logs every population's config and the attraction table.
func (s *Simulation) LogConfigurations() {
	counts := make([]int, len(s.grids))
	query := s.agentFilter.Query()
	for query.Next() {
		_, _, species, _ := query.Get()
		counts[species.ID]++
	}

	for i, cfg := range s.configs {
		slog.Info("population",
			"id", i,
			"agents", counts[i],
			"config", cfg,
			"weights", s.table.Row(i),
		)
	}
	slog.Info("attraction table", "table", s.table.String())
}
