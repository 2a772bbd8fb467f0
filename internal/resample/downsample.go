package resample

import (
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// DownSample keeps every factor-th sample along width and height, starting
// at the origin. Trailing samples that do not fill a whole stride are dropped.
func DownSample(g *grid.Grid, factor int) (*grid.Grid, error) {
	if factor < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidFactor, factor)
	}
	s := g.Shape()
	out := s
	out.Height /= factor
	out.Width /= factor

	dst := grid.New(out)
	for b := 0; b < out.Batch; b++ {
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				for c := 0; c < out.Channels; c++ {
					dst.Set(b, y, x, c, g.At(b, y*factor, x*factor, c))
				}
			}
		}
	}
	return dst, nil
}
