package blur

import (
	"fmt"

	"github.com/pthm-cable/slime/parallel"
)

// DefaultPasses is the number of box passes per Gaussian.
const DefaultPasses = 3

// Blur holds the scratch state for box filtering one grid. Grid dimensions
// must be powers of two; wraparound uses bit masks.
// A Blur must not be shared between grids that diffuse concurrently.
type Blur struct {
	passes int
	pool   *parallel.Pool

	// Running per-column sums for the vertical pass.
	row []float32

	// Cached radii for the last sigma.
	sigma float32
	radii []int
}

// New creates a blur for grids of the given width. passes <= 0 uses
// DefaultPasses. A nil pool runs the horizontal pass on the caller.
func New(width, passes int, pool *parallel.Pool) *Blur {
	if passes <= 0 {
		passes = DefaultPasses
	}
	return &Blur{
		passes: passes,
		pool:   pool,
		row:    make([]float32, width),
	}
}

// Run blurs field in place with a Gaussian of standard deviation sigma,
// using scratch as the intermediate buffer. Every pass but the last uses
// decay 1; the last vertical pass multiplies its output by decay.
func (b *Blur) Run(field, scratch []float32, width, height int, sigma, decay float32) {
	if sigma != b.sigma || b.radii == nil {
		b.radii = BoxesForGaussian(sigma, b.passes)
		b.sigma = sigma
	}

	last := len(b.radii) - 1
	for i, r := range b.radii {
		d := float32(1)
		if i == last {
			d = decay
		}
		b.BoxPass(field, scratch, width, height, r, d)
	}
}

// BoxPass performs one 2D box filter pass of the given radius. The result is
// written back to src; buf is scratch. decay scales the vertical output.
func (b *Blur) BoxPass(src, buf []float32, width, height, radius int, decay float32) {
	b.Horizontal(src, buf, width, height, radius, 1)
	b.Vertical(buf, src, width, height, radius, decay)
}

// Horizontal filters each row of src into dst with a periodic sliding
// window of the given radius. Rows are independent and run on the pool.
func (b *Blur) Horizontal(src, dst []float32, width, height, radius int, decay float32) {
	checkShape(src, dst, width, height)
	if radius < 0 || radius >= width {
		panic(fmt.Sprintf("blur: radius %d does not fit grid width %d", radius, width))
	}
	weight := decay / float32(2*radius+1)
	mask := width - 1

	b.pool.For(height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := src[y*width : (y+1)*width]
			out := dst[y*width : (y+1)*width]

			// Sum of the window ending just before x=0, wrapped to the right edge.
			value := row[width-radius-1]
			for j := 0; j < radius; j++ {
				value += row[width-radius+j] + row[j]
			}

			for x := 0; x < width; x++ {
				value += row[(x+radius)&mask] - row[(x+width-radius-1)&mask]
				out[x] = value * weight
			}
		}
	})
}

// Vertical filters each column of src into dst with a periodic sliding
// window of the given radius. Columns are walked row by row with one row of
// running sums so memory is read sequentially.
func (b *Blur) Vertical(src, dst []float32, width, height, radius int, decay float32) {
	checkShape(src, dst, width, height)
	if radius < 0 || radius >= height {
		panic(fmt.Sprintf("blur: radius %d does not fit grid height %d", radius, height))
	}
	weight := decay / float32(2*radius+1)
	mask := height - 1

	if cap(b.row) < width {
		b.row = make([]float32, width)
	}
	sums := b.row[:width]

	// Sums of the window ending just before y=0, wrapped to the bottom edge.
	copy(sums, src[(height-radius-1)*width:(height-radius)*width])
	for j := 0; j < radius; j++ {
		top := src[(height-radius+j)*width : (height-radius+j+1)*width]
		bottom := src[j*width : (j+1)*width]
		for x := range sums {
			sums[x] += top[x] + bottom[x]
		}
	}

	for y := 0; y < height; y++ {
		enter := (y + radius) & mask
		leave := (y + height - radius - 1) & mask
		entering := src[enter*width : (enter+1)*width]
		leaving := src[leave*width : (leave+1)*width]
		out := dst[y*width : (y+1)*width]
		for x := range sums {
			sums[x] += entering[x] - leaving[x]
			out[x] = sums[x] * weight
		}
	}
}

func checkShape(src, dst []float32, width, height int) {
	if len(src) != width*height || len(dst) != width*height {
		panic(fmt.Sprintf("blur: buffers of %d and %d cells for a %dx%d grid", len(src), len(dst), width, height))
	}
}
