package terrain

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// TerrainHeights converts a W×H height field into the row-major (W+1)×(H+1)
// layout of terrain consumers. With normalize set the field is divided by its
// maximum before scaling, unless that maximum is not positive. The extra row
// and column duplicate the last real ones to avoid falloff at the edge.
func TerrainHeights(g *grid.Grid, multiplier float64, normalize bool) []float64 {
	w, h := g.Width(), g.Height()
	if w == 0 || h == 0 {
		return nil
	}
	values := g.Flat()[:w*h]

	scale := multiplier
	if normalize {
		if m := floats.Max(values); m > 0 {
			scale = multiplier / m
		}
	}

	out := make([]float64, (w+1)*(h+1))
	for y := 0; y <= h; y++ {
		sy := min(y, h-1)
		for x := 0; x <= w; x++ {
			out[y*(w+1)+x] = values[sy*w+min(x, w-1)] * scale
		}
	}
	return out
}

// NormalizeExisting brings an existing height field into [-1, 1] before it is
// mixed with noise. Positive fields are divided by their maximum; fields with
// no positive sample are divided by the magnitude of their minimum; an
// all-zero field is returned as zeros.
func NormalizeExisting(g *grid.Grid) *grid.Grid {
	if g.Len() == 0 {
		return g.Clone()
	}
	st := g.Stats()
	switch {
	case st.Max > 0:
		return grid.Scale(g, 1/st.Max)
	case st.Min < 0:
		return grid.Scale(g, -1/st.Min)
	default:
		return grid.New(g.Shape())
	}
}
