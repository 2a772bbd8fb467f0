package grid_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/testutil"
)

// ---------------------------------------------------------------------------
// Construction and access
// ---------------------------------------------------------------------------

func TestNew_ZeroFilled(t *testing.T) {
	s := grid.Shape{Batch: 2, Height: 3, Width: 4, Channels: 1}
	g := grid.New(s)
	assert.Equal(t, 24, g.Len())
	assert.Equal(t, s, g.Shape())
	for _, v := range g.Flat() {
		assert.Zero(t, v)
	}
}

func TestFromValues_LengthMismatch(t *testing.T) {
	_, err := grid.FromValues(grid.Plane(2, 2), []float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, grid.ErrShapeMismatch))

	var se *grid.ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 4, se.Want)
	assert.Equal(t, 3, se.Got)
}

func TestFromRows_RoundTrip(t *testing.T) {
	rows := [][]float64{{1, 2, 3}, {4, 5, 6}}
	g := testutil.MustRows(t, rows)

	assert.Equal(t, grid.Plane(3, 2), g.Shape())
	assert.Equal(t, 6.0, g.Pixel(2, 1))
	assert.Equal(t, rows, g.Rows())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, g.Flat())
}

func TestFromRows_Ragged(t *testing.T) {
	_, err := grid.FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestPopulated(t *testing.T) {
	g := grid.Populated(0.25, 3, 2)
	assert.Equal(t, grid.Plane(3, 2), g.Shape())
	for _, v := range g.Flat() {
		assert.Equal(t, 0.25, v)
	}
}

func TestFlat_IsACopy(t *testing.T) {
	g := grid.Populated(1, 2, 2)
	flat := g.Flat()
	flat[0] = 99
	assert.Equal(t, 1.0, g.Pixel(0, 0))
}

func TestRelease(t *testing.T) {
	g := grid.Populated(1, 2, 2)
	assert.False(t, g.Released())
	g.Release()
	assert.True(t, g.Released())
	assert.Equal(t, 0, g.Len())

	var nilGrid *grid.Grid
	nilGrid.Release() // must not panic
}

func TestReleased_OperandsRejected(t *testing.T) {
	live := grid.Populated(1, 2, 2)
	gone := grid.Populated(1, 2, 2)
	gone.Release()
	rates := grid.Populated(1, 1, 1)

	_, err := grid.Add(live, gone)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.Sub(gone, live)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.Dot(gone, gone)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.ScaleBatches(gone, rates, false)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.Mirror(gone, true, true)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.Window(gone, 0, 0, 1, 1)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.Paste(live, gone, 0, 0)
	assert.ErrorIs(t, err, grid.ErrReleased)
	_, err = grid.Concat(live, gone)
	assert.ErrorIs(t, err, grid.ErrReleased)
	assert.False(t, errors.Is(err, grid.ErrShapeMismatch))
}

func TestReleased_PropagatesThroughUncheckedOps(t *testing.T) {
	gone := grid.Populated(1, 3, 2)
	gone.Release()

	for name, out := range map[string]*grid.Grid{
		"scale":     grid.Scale(gone, 2),
		"pow":       grid.Pow(gone, 2),
		"normalize": grid.Normalize(gone),
		"offset":    grid.Offset(gone, 1),
		"clone":     gone.Clone(),
	} {
		assert.True(t, out.Released(), name)
		assert.Equal(t, grid.Plane(3, 2), out.Shape(), name)
	}
}

func TestReshape(t *testing.T) {
	g := testutil.SequentialGrid(t, grid.Plane(4, 2))
	r, err := g.Reshape(grid.Shape{Batch: 2, Height: 2, Width: 2, Channels: 1})
	require.NoError(t, err)
	assert.Equal(t, 5.0, r.At(1, 0, 1, 0))

	_, err = g.Reshape(grid.Plane(3, 3))
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

// ---------------------------------------------------------------------------
// Elementwise arithmetic
// ---------------------------------------------------------------------------

func TestBinaryOps(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := testutil.MustRows(t, [][]float64{{5, 6}, {7, 8}})

	tests := []struct {
		name string
		op   func(a, b *grid.Grid) (*grid.Grid, error)
		want []float64
	}{
		{"add", grid.Add, []float64{6, 8, 10, 12}},
		{"sub", grid.Sub, []float64{-4, -4, -4, -4}},
		{"mul", grid.Mul, []float64{5, 12, 21, 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(a, b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Flat())
			// operands untouched
			assert.Equal(t, []float64{1, 2, 3, 4}, a.Flat())
		})
	}
}

func TestBinaryOps_ShapeMismatch(t *testing.T) {
	a := grid.Populated(1, 2, 2)
	b := grid.Populated(1, 3, 2)

	ops := map[string]func(a, b *grid.Grid) (*grid.Grid, error){
		"add": grid.Add,
		"sub": grid.Sub,
		"mul": grid.Mul,
		"lerp": func(a, b *grid.Grid) (*grid.Grid, error) {
			return grid.Lerp(a, b, 0.5)
		},
		"slerp": func(a, b *grid.Grid) (*grid.Grid, error) {
			return grid.Slerp(a, b, 0.5)
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			got, err := op(a, b)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, grid.ErrShapeMismatch)
		})
	}

	_, err := grid.Dot(a, b)
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestScale(t *testing.T) {
	g := testutil.MustRows(t, [][]float64{{1, -2}})
	assert.Equal(t, []float64{3, -6}, grid.Scale(g, 3).Flat())
}

func TestScaleBatches(t *testing.T) {
	g := grid.Populated(2, 2, 2)
	g, err := g.Reshape(grid.Shape{Batch: 2, Height: 1, Width: 2, Channels: 1})
	require.NoError(t, err)

	scalars, err := grid.FromValues(grid.Shape{Batch: 2, Height: 1, Width: 1, Channels: 1}, []float64{0.5, 4})
	require.NoError(t, err)

	out, err := grid.ScaleBatches(g, scalars, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 8, 8}, out.Flat())

	inv, err := grid.ScaleBatches(g, scalars, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 0.5, 0.5}, inv.Flat())
}

func TestScaleBatches_CountMismatch(t *testing.T) {
	g := grid.Populated(1, 2, 2)
	scalars := grid.Populated(1, 2, 1)
	_, err := grid.ScaleBatches(g, scalars, false)
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestPow(t *testing.T) {
	g := testutil.MustRows(t, [][]float64{{-2, 3}})
	assert.Equal(t, []float64{4, 9}, grid.Pow(g, 2).Flat())
	assert.Equal(t, []float64{-8, 27}, grid.Pow(g, 3).Flat())
}

func TestNormalize(t *testing.T) {
	g := testutil.MustRows(t, [][]float64{{3, 4}})
	n := grid.Normalize(g)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, n.Flat(), 1e-12)

	zero := grid.Populated(0, 2, 1)
	assert.Equal(t, []float64{0, 0}, grid.Normalize(zero).Flat())
}

func TestDot(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{1, 2, 3}})
	b := testutil.MustRows(t, [][]float64{{4, 5, 6}})
	d, err := grid.Dot(a, b)
	require.NoError(t, err)
	assert.Equal(t, 32.0, d)
}

func TestOffset(t *testing.T) {
	g := testutil.MustRows(t, [][]float64{{1, 2}})
	assert.Equal(t, []float64{0.5, 1.5}, grid.Offset(g, -0.5).Flat())
}

// ---------------------------------------------------------------------------
// Interpolation
// ---------------------------------------------------------------------------

func TestLerp(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{0, 10}})
	b := testutil.MustRows(t, [][]float64{{10, 20}})
	got, err := grid.Lerp(a, b, 0.25)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.5, 12.5}, got.Flat(), 1e-12)
}

func TestSlerp_NearParallelFallsBackToLinear(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{1, 2, 3}})
	b := testutil.MustRows(t, [][]float64{{2, 3, 4}})
	got, err := grid.Slerp(a, b, 0.5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 3.5}, got.Flat(), 1e-12)
}

func TestSlerp_Orthogonal(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{0.6, 0}})
	b := testutil.MustRows(t, [][]float64{{0, 0.6}})
	got, err := grid.Slerp(a, b, 0.5)
	require.NoError(t, err)

	w := math.Sin(math.Pi / 4)
	assert.InDeltaSlice(t, []float64{0.6 * w, 0.6 * w}, got.Flat(), 1e-12)
}

func TestSlerp_Endpoints(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{0.5, 0}})
	b := testutil.MustRows(t, [][]float64{{0.1, 0.5}})

	start, err := grid.Slerp(a, b, 0)
	require.NoError(t, err)
	testutil.AssertGridsClose(t, start, a, 1e-12)

	end, err := grid.Slerp(a, b, 1)
	require.NoError(t, err)
	testutil.AssertGridsClose(t, end, b, 1e-12)
}

func TestSlerp_ObtuseAngleNegatesSecond(t *testing.T) {
	a := testutil.MustRows(t, [][]float64{{0.5, 0}})
	b := testutil.MustRows(t, [][]float64{{-0.5, 0.1}})

	end, err := grid.Slerp(a, b, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, -0.1}, end.Flat(), 1e-12)
	// input untouched
	assert.Equal(t, []float64{-0.5, 0.1}, b.Flat())
}

// ---------------------------------------------------------------------------
// Geometry
// ---------------------------------------------------------------------------

func mirror(t *testing.T, g *grid.Grid, alongWidth, alongHeight bool) *grid.Grid {
	t.Helper()
	out, err := grid.Mirror(g, alongWidth, alongHeight)
	require.NoError(t, err)
	return out
}

func TestMirror(t *testing.T) {
	g := testutil.MustRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}})

	assert.Equal(t, [][]float64{{3, 2, 1}, {6, 5, 4}}, mirror(t, g, true, false).Rows())
	assert.Equal(t, [][]float64{{4, 5, 6}, {1, 2, 3}}, mirror(t, g, false, true).Rows())
	assert.Equal(t, [][]float64{{6, 5, 4}, {3, 2, 1}}, mirror(t, g, true, true).Rows())
	assert.Equal(t, g.Rows(), mirror(t, g, false, false).Rows())
}

func TestMirror_Involution(t *testing.T) {
	shapes := []grid.Shape{
		grid.Plane(5, 3),
		grid.Plane(4, 4),
		{Batch: 2, Height: 3, Width: 2, Channels: 2},
	}
	flags := [][2]bool{{true, false}, {false, true}, {true, true}}

	for _, s := range shapes {
		g := testutil.SequentialGrid(t, s)
		for _, f := range flags {
			twice := mirror(t, mirror(t, g, f[0], f[1]), f[0], f[1])
			assert.True(t, twice.Equal(g), "shape %s flags %v", s, f)
		}
	}
}

func TestWindowAndPaste(t *testing.T) {
	g := testutil.SequentialGrid(t, grid.Plane(4, 4))

	w, err := grid.Window(g, 1, 2, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{9, 10}, {13, 14}}, w.Rows())

	_, err = grid.Window(g, 3, 0, 2, 1)
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)

	blank := grid.New(grid.Plane(4, 4))
	pasted, err := grid.Paste(blank, w, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, pasted.Pixel(0, 0))
	assert.Equal(t, 14.0, pasted.Pixel(1, 1))
	assert.Equal(t, 0.0, pasted.Pixel(2, 2))
	assert.Equal(t, 0.0, blank.Pixel(0, 0))

	_, err = grid.Paste(blank, w, 3, 3)
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
}

func TestConcatSplit(t *testing.T) {
	left := testutil.MustRows(t, [][]float64{{1, 2}, {3, 4}})
	right := testutil.MustRows(t, [][]float64{{5, 6}, {7, 8}})

	joined, err := grid.Concat(left, right)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 5, 6}, {3, 4, 7, 8}}, joined.Rows())

	l, r, err := grid.Split(joined)
	require.NoError(t, err)
	assert.True(t, l.Equal(left))
	assert.True(t, r.Equal(right))

	odd := grid.Populated(0, 3, 1)
	_, _, err = grid.Split(odd)
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)

	_, err = grid.Concat(left, grid.Populated(0, 2, 3))
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestGradient(t *testing.T) {
	g := grid.Gradient(0, 1, 1, 0, 3, 3)
	// top-left: left edge, top row
	assert.InDelta(t, 1.0, g.Pixel(0, 0), 1e-12)
	// bottom-left is the origin of both ramps
	assert.InDelta(t, 0.0, g.Pixel(0, 2), 1e-12)
	assert.InDelta(t, 2.0, g.Pixel(2, 0), 1e-12)
	assert.InDelta(t, 1.0, g.Pixel(1, 1), 1e-12)
}

// ---------------------------------------------------------------------------
// Random fields and statistics
// ---------------------------------------------------------------------------

func TestRandomField_SeededIsReproducible(t *testing.T) {
	s := grid.Shape{Batch: 2, Height: 8, Width: 8, Channels: 1}
	a := grid.NewRandomField(42)
	b := grid.NewRandomField(42)

	first, second := a.Normal(s), b.Normal(s)
	assert.True(t, first.Equal(second))

	// the call sequence continues identically
	assert.True(t, a.Normal(s).Equal(b.Normal(s)))

	other := grid.NewRandomField(43).Normal(s)
	assert.False(t, first.Equal(other))
}

func TestRandomField_StandardNormal(t *testing.T) {
	g := grid.NewRandomField(7).Normal(grid.Plane(200, 200))
	st := g.Stats()
	assert.InDelta(t, 0.0, st.Mean, 0.03)
	assert.InDelta(t, 1.0, st.StdDev, 0.03)
	for _, v := range g.Flat() {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestRandomField_Unseeded(t *testing.T) {
	s := grid.Plane(16, 16)
	a := grid.NewUnseededRandomField().Normal(s)
	b := grid.NewUnseededRandomField().Normal(s)
	assert.False(t, a.Equal(b))
}

func TestRandomSeed_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := grid.RandomSeed()
		require.GreaterOrEqual(t, s, int64(0))
		require.Less(t, s, int64(grid.MaxSeed))
	}
}

func TestStats(t *testing.T) {
	g := testutil.MustRows(t, [][]float64{{1, 2}, {3, 6}})
	st := g.Stats()
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 6.0, st.Max)
	assert.Equal(t, 3.0, st.Mean)
	assert.Greater(t, st.StdDev, 0.0)

	single := grid.Populated(5, 1, 1).Stats()
	assert.Equal(t, grid.Stats{Min: 5, Max: 5, Mean: 5}, single)

	assert.Equal(t, grid.Stats{}, grid.New(grid.Plane(0, 0)).Stats())
}
