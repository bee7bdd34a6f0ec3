package render

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/parallel"
	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/trail"
)

// Renderer writes frames as PNG images, and optionally as MJPEG video.
// In deferred mode frames are buffered and encoded on Close.
type Renderer struct {
	dir      string
	palette  Palette
	quantile float32
	invGamma float64
	deferred bool
	pool     *parallel.Pool

	pending []*sim.Frame

	videoEnabled bool
	fps, quality int
	video        *VideoWriter
}

// New creates a renderer writing into dir.
func New(dir string, cfg config.RenderConfig, palette Palette, pool *parallel.Pool) (*Renderer, error) {
	if len(palette.Colors) == 0 {
		return nil, fmt.Errorf("new renderer: palette %q has no colours", palette.Name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating render directory: %w", err)
	}

	gamma := cfg.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	return &Renderer{
		dir:          dir,
		palette:      palette,
		quantile:     float32(cfg.Quantile),
		invGamma:     1 / gamma,
		deferred:     cfg.Deferred,
		pool:         pool,
		videoEnabled: cfg.Video,
		fps:          cfg.FPS,
		quality:      cfg.Quality,
	}, nil
}

// WriteFrame implements sim.FrameSink.
func (r *Renderer) WriteFrame(f *sim.Frame) error {
	if r.deferred {
		r.pending = append(r.pending, f)
		return nil
	}

	img := r.Image(f)
	if err := r.writePNG(f.Iteration, img); err != nil {
		return err
	}
	return r.addVideoFrame(img)
}

// Image blends every population's normalised field into one image.
// Each field is scaled so its quantile value maps to full brightness, then
// gamma corrected and tinted with the population's colour. Colours add.
func (r *Renderer) Image(f *sim.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))

	scales := make([]float32, len(f.Fields))
	for i, field := range f.Fields {
		q := trail.Quantile(field, r.quantile)
		if q <= 0 {
			q = trail.Max(field)
		}
		if q > 0 {
			scales[i] = 1 / q
		}
	}

	r.pool.For(f.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+4*f.Width]
			for x := 0; x < f.Width; x++ {
				var cr, cg, cb float64
				for i, field := range f.Fields {
					v := float64(field[y*f.Width+x] * scales[i])
					if v <= 0 {
						continue
					}
					if v > 1 {
						v = 1
					}
					v = math.Pow(v, r.invGamma)
					c := r.palette.Color(i)
					cr += v * float64(c.R)
					cg += v * float64(c.G)
					cb += v * float64(c.B)
				}
				px := row[4*x : 4*x+4]
				px[0] = clamp8(cr)
				px[1] = clamp8(cg)
				px[2] = clamp8(cb)
				px[3] = 255
			}
		}
	})

	return img
}

func clamp8(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// FramePath returns the PNG path for an iteration.
func (r *Renderer) FramePath(iteration int) string {
	return filepath.Join(r.dir, fmt.Sprintf("out_%06d.png", iteration))
}

func (r *Renderer) writePNG(iteration int, img image.Image) error {
	path := r.FramePath(iteration)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	slog.Debug("frame written", "iteration", iteration, "path", path)
	return nil
}

func (r *Renderer) addVideoFrame(img *image.RGBA) error {
	if !r.videoEnabled {
		return nil
	}
	if r.video == nil {
		b := img.Bounds()
		v, err := NewVideoWriter(filepath.Join(r.dir, "trails.avi"), b.Dx(), b.Dy(), r.fps, r.quality)
		if err != nil {
			return err
		}
		r.video = v
	}
	return r.video.Add(img)
}

// Pending returns the number of buffered frames in deferred mode.
func (r *Renderer) Pending() int {
	return len(r.pending)
}

// Close renders any buffered frames and finalises the video.
func (r *Renderer) Close() error {
	if err := r.flush(); err != nil {
		if r.video != nil {
			r.video.Close()
		}
		return err
	}
	if r.video != nil {
		return r.video.Close()
	}
	return nil
}

// flush encodes buffered frames concurrently, then appends them to the
// video in iteration order.
func (r *Renderer) flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	slog.Info("rendering buffered frames", "frames", len(r.pending))

	images := make([]*image.RGBA, len(r.pending))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range r.pending {
		g.Go(func() error {
			images[i] = r.Image(f)
			return r.writePNG(f.Iteration, images[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, img := range images {
		if err := r.addVideoFrame(img); err != nil {
			return err
		}
	}
	r.pending = nil
	return nil
}
