package trail

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/parallel"
)

func testConfig() PopulationConfig {
	return PopulationConfig{
		SensorDistance:   2,
		SensorAngle:      math.Pi / 4,
		RotationAngle:    math.Pi / 8,
		StepDistance:     1,
		DecayFactor:      1,
		DepositionAmount: 5,
	}
}

func mustGrid(t testing.TB, w, h int, cfg PopulationConfig, init FieldInit) *Grid {
	t.Helper()
	g, err := New(w, h, cfg, init)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", w, h, err)
	}
	return g
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"width", 6, 8},
		{"height", 8, 12},
		{"zero", 0, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, testConfig(), nil)
			if !errors.Is(err, ErrNotPowerOfTwo) {
				t.Errorf("New(%d, %d) error = %v, want ErrNotPowerOfTwo", tt.w, tt.h, err)
			}
		})
	}
}

func TestIndexWrapsToTorus(t *testing.T) {
	g := mustGrid(t, 8, 8, testConfig(), nil)

	tests := []struct {
		name   string
		x, y   float32
		cx, cy int
	}{
		{"origin", 0, 0, 0, 0},
		{"truncates", 3.9, 2.1, 3, 2},
		{"negative both", -0.5, -0.6, 7, 7},
		{"negative x", -3.2, 1, 4, 1},
		{"past width", 8.5, 0, 0, 0},
		{"past both", 15.9, 9, 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.index(tt.x, tt.y)
			want := tt.cy*8 + tt.cx
			if got != want {
				t.Errorf("index(%v, %v) = %d, want %d", tt.x, tt.y, got, want)
			}
		})
	}
}

func TestSampleMixReadsWrappedCell(t *testing.T) {
	g := mustGrid(t, 8, 8, testConfig(), nil)
	g.mix[63] = 7

	if got := g.SampleMix(-0.5, -0.6); got != 7 {
		t.Errorf("SampleMix(-0.5, -0.6) = %v, want 7", got)
	}
}

func TestDeposit(t *testing.T) {
	g := mustGrid(t, 8, 8, testConfig(), nil)

	g.Deposit(-0.5, 3.2)
	g.Deposit(7.9, 3.0)
	g.DepositAmount(1, 1, 0.25)

	if got := g.field[3*8+7]; got != 10 {
		t.Errorf("field(7,3) = %v, want 10", got)
	}
	if got := g.field[1*8+1]; got != 0.25 {
		t.Errorf("field(1,1) = %v, want 0.25", got)
	}
	if got := g.Total(); got != 10.25 {
		t.Errorf("Total() = %v, want 10.25", got)
	}
	if got := g.SampleField(-0.5, 3.9); got != 10 {
		t.Errorf("SampleField(-0.5, 3.9) = %v, want 10", got)
	}
	if got := g.SampleField(9.1, 17.5); got != 0.25 {
		t.Errorf("SampleField(9.1, 17.5) = %v, want 0.25", got)
	}
}

func TestQuantile(t *testing.T) {
	values := []float32{4, 1, 3, 2}

	tests := []struct {
		fraction float32
		want     float32
	}{
		{0, 1},
		{0.25, 2},
		{0.5, 3},
		{0.99, 4},
		{1, 4},
	}
	for _, tt := range tests {
		if got := Quantile(values, tt.fraction); got != tt.want {
			t.Errorf("Quantile(%v) = %v, want %v", tt.fraction, got, tt.want)
		}
	}
	if !slices.Equal(values, []float32{4, 1, 3, 2}) {
		t.Errorf("Quantile modified its input: %v", values)
	}
	if got := Quantile(nil, 0.5); got != 0 {
		t.Errorf("Quantile(nil) = %v, want 0", got)
	}
}

func TestQuantileMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	values := make([]float32, 1000)
	for i := range values {
		// Coarse values so duplicates exercise the equal partition.
		values[i] = float32(rng.IntN(50))
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	for _, fraction := range []float32{0, 0.1, 0.5, 0.9, 0.999, 1} {
		k := int(math.Ceil(float64(fraction) * float64(len(values))))
		k = min(k, len(values)-1)
		if got := Quantile(values, fraction); got != sorted[k] {
			t.Errorf("Quantile(%v) = %v, want %v", fraction, got, sorted[k])
		}
	}
}

func TestGridQuantileExtremes(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	g := mustGrid(t, 16, 16, testConfig(), UniformInit(rng))

	if got, lo := g.Quantile(0), slices.Min(g.Field()); got != lo {
		t.Errorf("Quantile(0) = %v, want min %v", got, lo)
	}
	if got := g.Quantile(1); got != g.Max() {
		t.Errorf("Quantile(1) = %v, want max %v", got, g.Max())
	}
}

func TestUniformInitRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(15, 16))
	g := mustGrid(t, 32, 32, testConfig(), UniformInit(rng))

	if lo, hi := slices.Min(g.Field()), g.Max(); lo < 0 || hi >= 1 {
		t.Errorf("uniform init out of [0,1): min %v, max %v", lo, hi)
	}
	if mean := g.Total() / float32(len(g.Field())); mean < 0.4 || mean > 0.6 {
		t.Errorf("uniform init mean %v, want about 0.5", mean)
	}
}

func TestSimplexInitDeterministic(t *testing.T) {
	a := mustGrid(t, 32, 32, testConfig(), SimplexInit(42, 0.1))
	b := mustGrid(t, 32, 32, testConfig(), SimplexInit(42, 0.1))

	if !slices.Equal(a.field, b.field) {
		t.Error("simplex init differs for the same seed")
	}
	lo, hi := slices.Min(a.Field()), a.Max()
	if lo < 0 || hi > 1 {
		t.Errorf("simplex init out of [0,1]: min %v, max %v", lo, hi)
	}
	if lo == hi {
		t.Error("simplex init produced a constant field")
	}
}

func TestDiffusePreservesMassWithoutDecay(t *testing.T) {
	rng := rand.New(rand.NewPCG(17, 18))
	g := mustGrid(t, 32, 32, testConfig(), UniformInit(rng))
	before := g.Total()

	g.Diffuse(1.5)

	after := g.Total()
	if math.Abs(float64(after-before))/float64(before) > 1e-4 {
		t.Errorf("mass changed from %v to %v", before, after)
	}
}

func TestDiffuseAppliesDecay(t *testing.T) {
	cfg := testConfig()
	cfg.DecayFactor = 0.5
	rng := rand.New(rand.NewPCG(19, 20))
	g := mustGrid(t, 32, 32, cfg, UniformInit(rng))
	pool := parallel.NewPool(2, 1)
	defer pool.Stop()
	g.SetBlur(2, pool)
	before := g.Total()

	g.Diffuse(1)

	after := g.Total()
	if math.Abs(float64(after-0.5*before))/float64(before) > 1e-4 {
		t.Errorf("expected mass to halve: before=%v after=%v", before, after)
	}
}

func TestNewAttractionTableRejectsNonSquare(t *testing.T) {
	if _, err := NewAttractionTable([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged rows")
	}
	if _, err := NewAttractionTable(nil); err == nil {
		t.Error("expected error for empty table")
	}
}

func TestSampleAttractionTable(t *testing.T) {
	src := rand.NewPCG(21, 22)
	attract := distuv.Normal{Mu: 1, Sigma: 0, Src: src}
	repel := distuv.Normal{Mu: -1, Sigma: 0, Src: src}

	table := SampleAttractionTable(3, attract, repel)

	if table.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", table.Size())
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := float32(-1)
			if i == j {
				want = 1
			}
			if got := table.At(i, j); got != want {
				t.Errorf("At(%d, %d) = %v, want %v", i, j, got, want)
			}
		}
	}
	if got := table.Row(1); !slices.Equal(got, []float64{-1, 1, -1}) {
		t.Errorf("Row(1) = %v, want [-1 1 -1]", got)
	}
	row := table.Row(0)
	row[0] = 42
	if table.At(0, 0) != 1 {
		t.Error("Row returned a view into the table, want a copy")
	}
}

func gridsWithFields(t *testing.T, n, w, h int, seed uint64) []*Grid {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	grids := make([]*Grid, n)
	for i := range grids {
		grids[i] = mustGrid(t, w, h, testConfig(), UniformInit(rng))
	}
	return grids
}

func TestCombineIdentityCopiesField(t *testing.T) {
	grids := gridsWithFields(t, 2, 8, 8, 23)
	table, err := NewAttractionTable([][]float64{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	grids[0].mix[5] = 99

	Combine(grids, table, nil)

	for i, g := range grids {
		if !slices.Equal(g.Mix(), g.Field()) {
			t.Errorf("grid %d: mix does not equal field under identity table", i)
		}
	}
}

func TestCombineWeightedSum(t *testing.T) {
	a := mustGrid(t, 4, 4, testConfig(), nil)
	b := mustGrid(t, 4, 4, testConfig(), nil)
	a.field[0], b.field[0] = 2, 3
	a.field[1], b.field[1] = 1, 0
	table, err := NewAttractionTable([][]float64{{1, -1}, {0.5, 2}})
	if err != nil {
		t.Fatal(err)
	}

	Combine([]*Grid{a, b}, table, nil)

	tests := []struct {
		name string
		got  float32
		want float32
	}{
		{"a cell 0", a.mix[0], 2 - 3},
		{"b cell 0", b.mix[0], 0.5*2 + 2*3},
		{"a cell 1", a.mix[1], 1},
		{"b cell 1", b.mix[1], 0.5},
		{"a cell 2", a.mix[2], 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func combineScalar(grids []*Grid, table *AttractionTable) [][]float32 {
	out := make([][]float32, len(grids))
	for i, gi := range grids {
		out[i] = make([]float32, len(gi.field))
		for c := range out[i] {
			var v float32
			for j, gj := range grids {
				v += table.At(i, j) * gj.field[c]
			}
			out[i][c] = v
		}
	}
	return out
}

func TestCombineParallelMatchesScalar(t *testing.T) {
	grids := gridsWithFields(t, 3, 32, 32, 25)
	src := rand.NewPCG(27, 28)
	table := SampleAttractionTable(3,
		distuv.Normal{Mu: 1, Sigma: 0.1, Src: src},
		distuv.Normal{Mu: -1, Sigma: 0.1, Src: src})
	pool := parallel.NewPool(4, 16)
	defer pool.Stop()

	Combine(grids, table, pool)
	want := combineScalar(grids, table)

	for i, g := range grids {
		for c := range g.mix {
			if math.Abs(float64(g.mix[c]-want[i][c])) > 1e-5 {
				t.Fatalf("grid %d cell %d: got %v, want %v", i, c, g.mix[c], want[i][c])
			}
		}
	}
}

func TestCombineIsPure(t *testing.T) {
	grids := gridsWithFields(t, 2, 16, 16, 29)
	src := rand.NewPCG(31, 32)
	table := SampleAttractionTable(2,
		distuv.Normal{Mu: 1, Sigma: 0.1, Src: src},
		distuv.Normal{Mu: -1, Sigma: 0.1, Src: src})
	fields := [][]float32{slices.Clone(grids[0].field), slices.Clone(grids[1].field)}

	Combine(grids, table, nil)
	first := [][]float32{slices.Clone(grids[0].mix), slices.Clone(grids[1].mix)}
	Combine(grids, table, nil)

	for i, g := range grids {
		if !slices.Equal(g.mix, first[i]) {
			t.Errorf("grid %d: second combine differs from first", i)
		}
		if !slices.Equal(g.field, fields[i]) {
			t.Errorf("grid %d: combine modified the field", i)
		}
	}
}

func TestSampleConfigWithinBounds(t *testing.T) {
	b := config.PopulationBounds{
		SensorDistance:   config.Range{Min: 0, Max: 64},
		SensorAngle:      config.Range{Min: 0, Max: 120},
		RotationAngle:    config.Range{Min: 90, Max: 90},
		StepDistance:     config.Range{Min: 0.2, Max: 2},
		DecayFactor:      config.Range{Min: 0.1, Max: 0.1},
		DepositionAmount: config.Range{Min: 5, Max: 5},
	}
	rng := rand.New(rand.NewPCG(33, 34))

	for n := 0; n < 100; n++ {
		c := SampleConfig(rng, b)
		if c.SensorDistance < 0 || c.SensorDistance > 64 {
			t.Fatalf("sensor distance %v out of range", c.SensorDistance)
		}
		if c.SensorAngle < 0 || c.SensorAngle > 120*math.Pi/180+1e-6 {
			t.Fatalf("sensor angle %v out of range", c.SensorAngle)
		}
		if math.Abs(float64(c.RotationAngle)-math.Pi/2) > 1e-6 {
			t.Fatalf("rotation angle %v, want pi/2", c.RotationAngle)
		}
		if c.StepDistance < 0.2 || c.StepDistance > 2 {
			t.Fatalf("step distance %v out of range", c.StepDistance)
		}
		if c.DecayFactor != 0.1 || c.DepositionAmount != 5 {
			t.Fatalf("constant ranges not honoured: %+v", c)
		}
	}
}

func TestMax(t *testing.T) {
	tests := []struct {
		name   string
		values []float32
		want   float32
	}{
		{"empty", nil, 0},
		{"single", []float32{2.5}, 2.5},
		{"mixed", []float32{1, 5, 3, -1}, 5},
		{"all negative", []float32{-3, -1, -2}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Max(tt.values); got != tt.want {
				t.Errorf("Max(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func BenchmarkCombine(b *testing.B) {
	rng := rand.New(rand.NewPCG(35, 36))
	grids := make([]*Grid, 3)
	for i := range grids {
		grids[i] = mustGrid(b, 256, 256, testConfig(), UniformInit(rng))
	}
	table := SampleAttractionTable(3,
		distuv.Normal{Mu: 1, Sigma: 0.1, Src: rng},
		distuv.Normal{Mu: -1, Sigma: 0.1, Src: rng})
	pool := parallel.NewPool(0, 0)
	defer pool.Stop()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		Combine(grids, table, pool)
	}
}

func BenchmarkCombineScalar(b *testing.B) {
	rng := rand.New(rand.NewPCG(35, 36))
	grids := make([]*Grid, 3)
	for i := range grids {
		grids[i] = mustGrid(b, 256, 256, testConfig(), UniformInit(rng))
	}
	table := SampleAttractionTable(3,
		distuv.Normal{Mu: 1, Sigma: 0.1, Src: rng},
		distuv.Normal{Mu: -1, Sigma: 0.1, Src: rng})

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		combineScalar(grids, table)
	}
}
