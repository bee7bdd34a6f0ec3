// Trail preview tool - runs the simulation live with sliders for the
// sampling bounds and render settings.
//
// Usage: go run ./cmd/trailpreview
package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/parallel"
	"github.com/pthm-cable/slime/render"
	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/telemetry"
	"github.com/pthm-cable/slime/trail"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
	gridSize     = 256
)

// PreviewParams holds the values the sliders edit.
type PreviewParams struct {
	Populations     int
	Particles       int
	DiffusionRadius int
	SensorMax       float32
	StepMax         float32
	StepsPerFrame   int
	Quantile        float32
	Gamma           float32
	Seed            uint64
	FastTrig        bool
}

func defaultParams() PreviewParams {
	return PreviewParams{
		Populations:     3,
		Particles:       65536,
		DiffusionRadius: 1,
		SensorMax:       24,
		StepMax:         2,
		StepsPerFrame:   1,
		Quantile:        0.999,
		Gamma:           2.2,
		Seed:            12345,
	}
}

// preview owns the running simulation and its GPU texture.
type preview struct {
	params   PreviewParams
	pool     *parallel.Pool
	perf     *telemetry.PerfCollector
	sim      *sim.Simulation
	renderer *render.Renderer
	palette  render.Palette
	pixels   []color.RGBA
	texture  rl.Texture2D
}

func (p *preview) buildConfig() *config.Config {
	cfg := config.Default()
	cfg.Grid = config.GridConfig{Width: gridSize, Height: gridSize}
	cfg.Simulation.Populations = p.params.Populations
	cfg.Simulation.Particles = p.params.Particles
	cfg.Simulation.DiffusionRadius = p.params.DiffusionRadius
	cfg.Simulation.Seed = p.params.Seed
	cfg.Simulation.FastTrig = p.params.FastTrig
	cfg.Population.SensorDistance.Max = float64(p.params.SensorMax)
	cfg.Population.StepDistance.Max = float64(p.params.StepMax)
	cfg.Render.Quantile = float64(p.params.Quantile)
	cfg.Render.Gamma = float64(p.params.Gamma)
	cfg.Render.Video = false
	cfg.Render.Deferred = false
	cfg.ComputeDerived()
	return cfg
}

// rebuild samples a fresh simulation from the current params.
func (p *preview) rebuild() error {
	cfg := p.buildConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s, err := sim.FromConfig(cfg, p.pool, p.perf)
	if err != nil {
		return err
	}
	if p.sim != nil {
		p.sim.Close()
	}
	p.sim = s
	s.LogConfigurations()
	return p.restyle()
}

// restyle rebuilds the renderer after a quantile or gamma change.
func (p *preview) restyle() error {
	r, err := render.New(os.TempDir(), p.buildConfig().Render, p.palette, p.pool)
	if err != nil {
		return err
	}
	p.renderer = r
	return nil
}

// mixFrame recombines the fields so every grid's mix buffer holds what its
// agents sense on the next step, and returns copies of those buffers.
func (p *preview) mixFrame() *sim.Frame {
	grids := p.sim.Grids()
	trail.Combine(grids, p.sim.Attraction(), p.pool)

	f := &sim.Frame{Iteration: p.sim.Iteration(), Width: grids[0].Width, Height: grids[0].Height}
	for _, g := range grids {
		f.Fields = append(f.Fields, append([]float32(nil), g.Mix()...))
	}
	return f
}

func (p *preview) updateTexture(showMix bool) {
	f := p.sim.Snapshot()
	if showMix {
		f = p.mixFrame()
	}
	img := p.renderer.Image(f)
	for i := range p.pixels {
		px := img.Pix[4*i : 4*i+4]
		p.pixels[i] = color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
	}
	rl.UpdateTexture(p.texture, p.pixels)
}

func main() {
	rl.InitWindow(windowWidth, windowHeight, "Trail Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	pool := parallel.NewPool(0, 0)
	defer pool.Stop()

	p := &preview{
		params:  defaultParams(),
		pool:    pool,
		perf:    telemetry.NewPerfCollector(60),
		palette: render.Palettes[0],
		pixels:  make([]color.RGBA, gridSize*gridSize),
	}
	if err := p.rebuild(); err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	defer func() { p.sim.Close() }()

	img := rl.GenImageColor(gridSize, gridSize, rl.Black)
	p.texture = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(p.texture)

	running := true
	showMix := false
	needsRebuild := false
	var lastErr error

	for !rl.WindowShouldClose() {
		if needsRebuild {
			if err := p.rebuild(); err != nil {
				lastErr = err
			} else {
				lastErr = nil
			}
			needsRebuild = false
		}

		if running {
			for i := 0; i < p.params.StepsPerFrame; i++ {
				if err := p.sim.Step(); err != nil {
					lastErr = err
					running = false
					break
				}
			}
		}
		p.updateTexture(showMix)
		p.perf.RecordFrame()

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			p.texture,
			rl.Rectangle{X: 0, Y: 0, Width: gridSize, Height: gridSize},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		stats := p.perf.Stats()
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Iteration: %d  Agents: %d", p.sim.Iteration(), p.sim.NumAgents()), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Tick: %s  TPS: %.1f  FPS: %.1f", stats.AvgTickDuration, stats.TicksPerSecond, stats.FPS), 15, statsY+20, 16, rl.DarkGray)
		phaseY := statsY + 40
		for _, phase := range telemetry.Phases {
			rl.DrawText(fmt.Sprintf("%-8s %5.1f%%", phase, stats.PhasePct[phase]), 15, phaseY, 14, rl.Gray)
			phaseY += 16
		}
		if cell, ok := hoveredCell(); ok {
			line := "Trail under cursor:"
			for i, g := range p.sim.Grids() {
				line += fmt.Sprintf(" %d=%.2f", i, g.SampleField(cell.X, cell.Y))
			}
			rl.DrawText(line, 15, phaseY+4, 14, rl.DarkGray)
		}
		if lastErr != nil {
			rl.DrawText(lastErr.Error(), 15, windowHeight-30, 12, rl.Red)
		}

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Simulation (applied on rebuild)", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		if v := intSlider(&panelX, &panelY, "Populations", p.params.Populations, 1, 8); v != p.params.Populations {
			p.params.Populations = v
		}
		if v := intSlider(&panelX, &panelY, "Particles", p.params.Particles, 0, 262144); v != p.params.Particles {
			p.params.Particles = v
		}
		if v := intSlider(&panelX, &panelY, "Diffusion radius", p.params.DiffusionRadius, 1, 8); v != p.params.DiffusionRadius {
			p.params.DiffusionRadius = v
		}
		p.params.SensorMax = floatSlider(&panelX, &panelY, "Max sensor distance", p.params.SensorMax, 1, 64)
		p.params.StepMax = floatSlider(&panelX, &panelY, "Max step distance", p.params.StepMax, 0.2, 8)

		rl.DrawLine(int32(panelX), int32(panelY), int32(panelX)+int32(panelWidth)-20, int32(panelY), rl.LightGray)
		panelY += 15

		rl.DrawText("Playback", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		p.params.StepsPerFrame = intSlider(&panelX, &panelY, "Steps per frame", p.params.StepsPerFrame, 1, 10)

		q := floatSlider(&panelX, &panelY, "Brightness quantile", p.params.Quantile, 0.5, 1)
		g := floatSlider(&panelX, &panelY, "Gamma", p.params.Gamma, 0.5, 4)
		if q != p.params.Quantile || g != p.params.Gamma {
			p.params.Quantile, p.params.Gamma = q, g
			if err := p.restyle(); err != nil {
				lastErr = err
			}
		}
		panelY += 10

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(running, "Pause", "Run")) {
			running = !running
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Rebuild") {
			needsRebuild = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			p.params.Seed = uint64(rl.GetRandomValue(1, 99999))
			needsRebuild = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, toggleText(p.params.FastTrig, "Exact Trig", "Fast Trig")) {
			p.params.FastTrig = !p.params.FastTrig
			needsRebuild = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Next Palette") {
			p.palette = nextPalette(p.palette)
			if err := p.restyle(); err != nil {
				lastErr = err
			}
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			p.params = defaultParams()
			needsRebuild = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 250, Height: 30}, toggleText(showMix, "Show Trails", "Show Sensed Mix")) {
			showMix = !showMix
		}
		panelY += 45

		rl.DrawText(fmt.Sprintf("Seed: %d  Palette: %s", p.params.Seed, p.palette.Name), int32(panelX), int32(panelY), 14, rl.Gray)

		rl.DrawText("Press S to log field stats", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyS) {
			f := p.sim.Snapshot()
			for i, field := range f.Fields {
				telemetry.ComputeFieldStats(f.Iteration, i, field).LogStats()
			}
		}

		rl.EndDrawing()
	}
}

// hoveredCell maps the mouse position over the preview to grid coordinates.
func hoveredCell() (rl.Vector2, bool) {
	m := rl.GetMousePosition()
	x, y := m.X-10, m.Y-10
	if x < 0 || y < 0 || x >= previewSize || y >= previewSize {
		return rl.Vector2{}, false
	}
	scale := float32(gridSize) / previewSize
	return rl.Vector2{X: x * scale, Y: y * scale}, true
}

func intSlider(x, y *float32, label string, value, lo, hi int) int {
	rl.DrawText(label, int32(*x), int32(*y), 14, rl.Gray)
	*y += 18
	v := gui.SliderBar(
		rl.Rectangle{X: *x, Y: *y, Width: float32(panelWidth - 80), Height: 20},
		fmt.Sprint(lo), fmt.Sprint(hi),
		float32(value), float32(lo), float32(hi),
	)
	rl.DrawText(fmt.Sprintf("%d", value), int32(*x+float32(panelWidth-70)), int32(*y+2), 16, rl.DarkGray)
	*y += 35
	return int(v)
}

func floatSlider(x, y *float32, label string, value, lo, hi float32) float32 {
	rl.DrawText(label, int32(*x), int32(*y), 14, rl.Gray)
	*y += 18
	v := gui.SliderBar(
		rl.Rectangle{X: *x, Y: *y, Width: float32(panelWidth - 80), Height: 20},
		fmt.Sprintf("%.1f", lo), fmt.Sprintf("%.1f", hi),
		value, lo, hi,
	)
	rl.DrawText(fmt.Sprintf("%.2f", value), int32(*x+float32(panelWidth-70)), int32(*y+2), 16, rl.DarkGray)
	*y += 35
	return v
}

func nextPalette(cur render.Palette) render.Palette {
	for i, p := range render.Palettes {
		if p.Name == cur.Name {
			return render.Palettes[(i+1)%len(render.Palettes)]
		}
	}
	return render.Palettes[0]
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
