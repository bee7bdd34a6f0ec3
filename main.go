package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/parallel"
	"github.com/pthm-cable/slime/render"
	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config snapshot and chart")
	renderDir := flag.String("render-dir", "", "Directory for rendered frames (empty = output dir, or cwd)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = config value, or time-based)")
	iterations := flag.Int("iterations", 0, "Iterations to run (0 = use config)")
	logStats := flag.Bool("log-stats", false, "Output field stats via slog")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	noRender := flag.Bool("no-render", false, "Disable image output")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = uint64(time.Now().UnixNano())
	}
	if *iterations > 0 {
		cfg.Simulation.Iterations = *iterations
	}
	if *noRender {
		cfg.Render.Enabled = false
	}

	if err := run(cfg, *outputDir, *renderDir, *logStats); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, outputDir, renderDir string, logStats bool) error {
	pool := parallel.NewPool(cfg.Parallel.Workers, cfg.Parallel.Threshold)
	defer pool.Stop()

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)

	s, err := sim.FromConfig(cfg, pool, perf)
	if err != nil {
		return err
	}
	defer s.Close()
	s.LogConfigurations()

	out, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}
	if out != nil {
		slog.Info("writing telemetry", "dir", out.Dir())
	}

	recorder := telemetry.NewRecorder(out, logStats)
	s.AddSink(sim.FrameSinkFunc(func(f *sim.Frame) error {
		_, err := recorder.Record(f.Iteration, f.Fields)
		return err
	}), cfg.Telemetry.StatsInterval)

	s.AddSink(sim.FrameSinkFunc(func(f *sim.Frame) error {
		stats := perf.Stats()
		stats.LogStats()
		return out.WritePerf(stats, f.Iteration)
	}), cfg.Telemetry.PerfCollectorWindow)

	var renderer *render.Renderer
	if cfg.Render.Enabled {
		if renderDir == "" {
			renderDir = outputDir
		}
		if renderDir == "" {
			renderDir = "."
		}
		rng := rand.New(rand.NewPCG(cfg.Simulation.Seed, cfg.Simulation.Seed^0xa5a5a5a5))
		palette := render.RandomPalette(rng)
		slog.Info("palette", "name", palette.Name)

		renderer, err = render.New(renderDir, cfg.Render, palette, pool)
		if err != nil {
			return err
		}
		s.AddSink(renderer, cfg.Render.Interval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"seed", cfg.Simulation.Seed,
		"iterations", cfg.Simulation.Iterations,
		"agents", s.NumAgents(),
		"grid", cfg.Grid,
		"workers", pool.Workers(),
	)

	start := time.Now()
	runErr := s.Run(ctx, cfg.Simulation.Iterations)
	slog.Info("simulation finished",
		"iterations", s.Iteration(),
		"elapsed", time.Since(start),
		"cancelled", ctx.Err() != nil,
	)

	if renderer != nil {
		if err := renderer.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if cfg.Telemetry.Chart && out != nil {
		if err := recorder.WriteChart(out.Path("trails.png")); err != nil && runErr == nil {
			runErr = err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
