package trail

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// AttractionTable holds the weight each population gives every field when
// building its mix buffer. Row i belongs to population i.
type AttractionTable struct {
	m *mat.Dense
}

// NewAttractionTable builds a table from rows. Rows must form a square matrix.
func NewAttractionTable(rows [][]float64) (*AttractionTable, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("attraction table: no rows")
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("attraction table: row %d has %d entries, want %d", i, len(row), n)
		}
		data = append(data, row...)
	}
	return &AttractionTable{m: mat.NewDense(n, n, data)}, nil
}

// SampleAttractionTable draws an n x n table. Diagonal entries come from
// attract, off-diagonal entries from repel.
func SampleAttractionTable(n int, attract, repel distuv.Rander) *AttractionTable {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m.Set(i, j, attract.Rand())
			} else {
				m.Set(i, j, repel.Rand())
			}
		}
	}
	return &AttractionTable{m: m}
}

// Size returns the number of populations the table covers.
func (t *AttractionTable) Size() int {
	r, _ := t.m.Dims()
	return r
}

// At returns the weight population i gives field j.
func (t *AttractionTable) At(i, j int) float32 {
	return float32(t.m.At(i, j))
}

// Row returns a copy of population i's weights.
func (t *AttractionTable) Row(i int) []float64 {
	return mat.Row(nil, i, t.m)
}

func (t *AttractionTable) String() string {
	return fmt.Sprintf("%.3f", mat.Formatted(t.m, mat.Squeeze()))
}
