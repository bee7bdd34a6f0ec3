package trail

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/slime/parallel"
)

// Combine rebuilds every grid's mix buffer as
//
//	mix_i = sum_j table[i][j] * field_j
//
// Fields are only read and mix buffers are fully overwritten, so calling it
// twice in a row gives identical results. Cells are split across the pool.
// All grids must share dimensions and the table must cover len(grids).
func Combine(grids []*Grid, table *AttractionTable, pool *parallel.Pool) {
	if len(grids) == 0 {
		return
	}
	if table.Size() != len(grids) {
		panic("trail: attraction table does not match population count")
	}
	cells := len(grids[0].field)
	for _, g := range grids {
		if len(g.field) != cells {
			panic("trail: combining grids of different sizes")
		}
	}

	weights := make([][]float32, len(grids))
	for i := range grids {
		weights[i] = make([]float32, len(grids))
		for j := range grids {
			weights[i][j] = table.At(i, j)
		}
	}

	pool.For(cells, func(start, end int) {
		n := end - start
		for i, gi := range grids {
			dst := blas32.Vector{N: n, Inc: 1, Data: gi.mix[start:end]}
			clear(dst.Data)
			for j, gj := range grids {
				src := blas32.Vector{N: n, Inc: 1, Data: gj.field[start:end]}
				blas32.Axpy(weights[i][j], src, dst)
			}
		}
	})
}
