// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Grid       GridConfig       `yaml:"grid"`
	Simulation SimulationConfig `yaml:"simulation"`
	Population PopulationBounds `yaml:"population"`
	Attraction AttractionConfig `yaml:"attraction"`
	Blur       BlurConfig       `yaml:"blur"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Render     RenderConfig     `yaml:"render"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds trail grid dimensions. Both must be powers of two.
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SimulationConfig holds run-level parameters.
type SimulationConfig struct {
	Particles       int     `yaml:"particles"`
	Populations     int     `yaml:"populations"`
	DiffusionRadius int     `yaml:"diffusion_radius"`
	Iterations      int     `yaml:"iterations"`
	Seed            uint64  `yaml:"seed"`          // 0 = time-based
	FastTrig        bool    `yaml:"fast_trig"`     // polynomial sin/cos in the agent update
	FieldInit       string  `yaml:"field_init"`    // "uniform" or "simplex"
	SimplexScale    float64 `yaml:"simplex_scale"` // noise frequency per cell for simplex init
}

// Range is a closed interval sampled uniformly. Min == Max yields a constant.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PopulationBounds is the table population configs are sampled from.
// Angles are in degrees here and converted to radians when sampled.
type PopulationBounds struct {
	SensorDistance   Range `yaml:"sensor_distance"`
	SensorAngle      Range `yaml:"sensor_angle"`
	RotationAngle    Range `yaml:"rotation_angle"`
	StepDistance     Range `yaml:"step_distance"`
	DecayFactor      Range `yaml:"decay_factor"`
	DepositionAmount Range `yaml:"deposition_amount"`
}

// Distribution describes a normal distribution.
type Distribution struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

// AttractionConfig holds the distributions for the attraction table.
// Diagonal entries use Attraction, off-diagonal entries use Repulsion.
type AttractionConfig struct {
	Attraction Distribution `yaml:"attraction"`
	Repulsion  Distribution `yaml:"repulsion"`
}

// BlurConfig holds diffusion kernel parameters.
type BlurConfig struct {
	Passes int `yaml:"passes"` // box passes per Gaussian (2 or 3)
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold"` // below this many items, run inline
}

// RenderConfig holds image output parameters.
type RenderConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Interval int     `yaml:"interval"` // render every N iterations
	Quantile float64 `yaml:"quantile"` // field value mapped to full brightness
	Gamma    float64 `yaml:"gamma"`
	Deferred bool    `yaml:"deferred"` // buffer frames, encode on close
	Video    bool    `yaml:"video"`    // also write an MJPEG AVI
	FPS      int     `yaml:"fps"`
	Quality  int     `yaml:"quality"` // JPEG quality for video frames
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsInterval       int  `yaml:"stats_interval"` // iterations between field stats records
	PerfCollectorWindow int  `yaml:"perf_collector_window"`
	Chart               bool `yaml:"chart"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Sigma float32 // diffusion radius as blur standard deviation
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Validate checks the invariants the simulation relies on.
func (c *Config) Validate() error {
	if !IsPowerOfTwo(c.Grid.Width) || !IsPowerOfTwo(c.Grid.Height) {
		return fmt.Errorf("%w: grid %dx%d must be powers of two", ErrInvalid, c.Grid.Width, c.Grid.Height)
	}
	if c.Simulation.Particles < 0 {
		return fmt.Errorf("%w: particles must be non-negative, got %d", ErrInvalid, c.Simulation.Particles)
	}
	if c.Simulation.Populations < 1 {
		return fmt.Errorf("%w: need at least one population, got %d", ErrInvalid, c.Simulation.Populations)
	}
	if c.Simulation.DiffusionRadius < 1 {
		return fmt.Errorf("%w: diffusion_radius must be positive, got %d", ErrInvalid, c.Simulation.DiffusionRadius)
	}
	if c.Blur.Passes < 1 {
		return fmt.Errorf("%w: blur.passes must be positive, got %d", ErrInvalid, c.Blur.Passes)
	}
	switch c.Simulation.FieldInit {
	case "", "uniform", "simplex":
	default:
		return fmt.Errorf("%w: unknown field_init %q", ErrInvalid, c.Simulation.FieldInit)
	}

	b := c.Population
	for name, r := range map[string]Range{
		"sensor_distance":   b.SensorDistance,
		"sensor_angle":      b.SensorAngle,
		"rotation_angle":    b.RotationAngle,
		"step_distance":     b.StepDistance,
		"decay_factor":      b.DecayFactor,
		"deposition_amount": b.DepositionAmount,
	} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%w: population.%s range [%g, %g]", ErrInvalid, name, r.Min, r.Max)
		}
	}
	// A step may cross at most one period, and sensors may look at most one period back.
	minDim := float64(min(c.Grid.Width, c.Grid.Height))
	if b.StepDistance.Max >= minDim || b.SensorDistance.Max >= minDim {
		return fmt.Errorf("%w: step and sensor distances must be below grid size %g", ErrInvalid, minDim)
	}
	if b.DecayFactor.Max > 1 {
		return fmt.Errorf("%w: decay_factor must not exceed 1, got %g", ErrInvalid, b.DecayFactor.Max)
	}
	return nil
}

// ComputeDerived calculates values derived from loaded config.
// Call again after mutating Simulation fields.
func (c *Config) ComputeDerived() {
	c.Derived.Sigma = float32(c.Simulation.DiffusionRadius)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// IsPowerOfTwo reports whether x is a positive power of two.
func IsPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}
