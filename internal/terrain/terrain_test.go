package terrain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/terrain"
	"github.com/banshee-data/terrain.diffusion/internal/testutil"
)

// ----- Direction -----

func TestDirection_Opposite(t *testing.T) {
	t.Parallel()
	all := append(append([]terrain.Direction{}, terrain.Orthogonal...), terrain.Diagonal...)
	for _, d := range all {
		assert.Equal(t, d, d.Opposite().Opposite(), d.String())
		dc, dr := d.Offset()
		oc, or := d.Opposite().Offset()
		assert.Equal(t, [2]int{-dc, -dr}, [2]int{oc, or}, d.String())
	}
	assert.Equal(t, "top-left", terrain.TopLeft.String())
	assert.Equal(t, "Direction(42)", terrain.Direction(42).String())
}

// ----- Tile -----

func TestTile_DiagonalsResolveThroughHorizontalNeighbors(t *testing.T) {
	t.Parallel()
	l, err := terrain.NewLattice(3, 3, 2, 2)
	require.NoError(t, err)
	center := l.Tile(1, 1)

	for _, d := range append(append([]terrain.Direction{}, terrain.Orthogonal...), terrain.Diagonal...) {
		dc, dr := d.Offset()
		assert.Same(t, l.Tile(1+dc, 1+dr), center.Neighbor(d), d.String())
	}
}

func TestTile_MissingHorizontalHidesDiagonal(t *testing.T) {
	t.Parallel()
	center := terrain.NewTile(grid.New(grid.Plane(2, 2)))
	top := terrain.NewTile(grid.New(grid.Plane(2, 2)))
	topLeft := terrain.NewTile(grid.New(grid.Plane(2, 2)))
	require.NoError(t, terrain.Link(center, terrain.Top, top))
	require.NoError(t, terrain.Link(top, terrain.Left, topLeft))

	// only reachable through top, which is not how diagonals resolve
	assert.Nil(t, center.Neighbor(terrain.TopLeft))
	assert.Same(t, center, top.Neighbor(terrain.Bottom))
}

func TestLink_RejectsDiagonal(t *testing.T) {
	t.Parallel()
	a := terrain.NewTile(grid.New(grid.Plane(1, 1)))
	b := terrain.NewTile(grid.New(grid.Plane(1, 1)))
	assert.Error(t, terrain.Link(a, terrain.BottomRight, b))
}

func TestTile_SetHeights(t *testing.T) {
	t.Parallel()
	tile := terrain.NewTile(grid.New(grid.Plane(2, 2)))
	require.NoError(t, tile.SetHeights(grid.Populated(3, 2, 2)))
	assert.Equal(t, 3.0, tile.Heights().Pixel(1, 1))

	err := tile.SetHeights(grid.Populated(3, 3, 2))
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)

	h := tile.Heights()
	h.SetPixel(0, 0, 99)
	assert.Equal(t, 3.0, tile.Heights().Pixel(0, 0), "Heights must return a copy")
}

// ----- Writer -----

func TestTerrainHeights_PadsAndNormalizes(t *testing.T) {
	t.Parallel()
	g := testutil.MustRows(t, [][]float64{
		{1, 2},
		{3, 4},
	})
	got := terrain.TerrainHeights(g, 2, true)
	assert.Equal(t, []float64{
		0.5, 1, 1,
		1.5, 2, 2,
		1.5, 2, 2,
	}, got)
}

func TestTerrainHeights_NoPositiveMaximum(t *testing.T) {
	t.Parallel()
	g := testutil.MustRows(t, [][]float64{{-1, -2}})
	got := terrain.TerrainHeights(g, 3, true)
	assert.Equal(t, []float64{-3, -6, -6, -3, -6, -6}, got)
}

func TestTerrainHeights_WithoutNormalize(t *testing.T) {
	t.Parallel()
	g := testutil.MustRows(t, [][]float64{{0.25}})
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, terrain.TerrainHeights(g, 1, false))
	assert.Nil(t, terrain.TerrainHeights(grid.New(grid.Plane(0, 0)), 1, true))
}

func TestTile_Export(t *testing.T) {
	t.Parallel()
	tile := terrain.NewTile(grid.Populated(0.5, 2, 3))
	out := tile.Export(10)
	require.Len(t, out, 3*4)
	for _, v := range out {
		assert.InDelta(t, 10, v, 1e-12)
	}
}

func TestNormalizeExisting(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   [][]float64
		want [][]float64
	}{
		{"positive max", [][]float64{{0, 2}, {-1, 4}}, [][]float64{{0, 0.5}, {-0.25, 1}}},
		{"all negative", [][]float64{{-2, -4}}, [][]float64{{-0.5, -1}}},
		{"non-positive with zero max", [][]float64{{0, -4}}, [][]float64{{0, -1}}},
		{"all zero", [][]float64{{0, 0}}, [][]float64{{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := terrain.NormalizeExisting(testutil.MustRows(t, tt.in))
			testutil.AssertGridsClose(t, got, testutil.MustRows(t, tt.want), 1e-12)
		})
	}
}

// ----- Lattice -----

func TestNewLattice_Errors(t *testing.T) {
	t.Parallel()
	_, err := terrain.NewLattice(0, 1, 4, 4)
	assert.Error(t, err)
	_, err = terrain.NewLattice(1, 1, 0, 4)
	assert.Error(t, err)
}

func TestLattice_EdgesHaveNoNeighbors(t *testing.T) {
	t.Parallel()
	l, err := terrain.NewLattice(2, 2, 1, 1)
	require.NoError(t, err)
	corner := l.Tile(0, 0)
	assert.Nil(t, corner.Neighbor(terrain.Left))
	assert.Nil(t, corner.Neighbor(terrain.Top))
	assert.Nil(t, corner.Neighbor(terrain.TopRight))
	assert.Same(t, l.Tile(1, 1), corner.Neighbor(terrain.BottomRight))
	assert.Nil(t, l.Tile(2, 0))
	assert.Len(t, l.Tiles(), 4)
}

func TestLattice_Mosaic(t *testing.T) {
	t.Parallel()
	l, err := terrain.NewLattice(2, 1, 2, 2)
	require.NoError(t, err)
	require.NoError(t, l.Tile(0, 0).SetHeights(grid.Populated(1, 2, 2)))
	require.NoError(t, l.Tile(1, 0).SetHeights(grid.Populated(2, 2, 2)))

	m, err := l.Mosaic()
	require.NoError(t, err)
	testutil.AssertGridsClose(t, m, testutil.MustRows(t, [][]float64{
		{1, 1, 2, 2},
		{1, 1, 2, 2},
	}), 0)
}
