package blend

import (
	"fmt"
	"math"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// MaskParams shapes the radial mask. Within Radius1 of the center the mask
// is 1; beyond it the value falls as BValue - distance/Radius1, capped at 1
// but not floored, so far samples go negative.
type MaskParams struct {
	Radius1 float64
	Radius2 float64
	BValue  float64
}

// DefaultMaskParams returns the radii used for tiles width samples wide.
func DefaultMaskParams(width int) MaskParams {
	return MaskParams{Radius1: float64(width) / 2, Radius2: float64(width), BValue: 2.5}
}

// Validate requires a positive Radius1.
func (p MaskParams) Validate() error {
	if !(p.Radius1 > 0) {
		return fmt.Errorf("blend radius1 must be positive, got %g", p.Radius1)
	}
	if p.Radius2 < 0 {
		return fmt.Errorf("blend radius2 must not be negative, got %g", p.Radius2)
	}
	return nil
}

// Center is the mask center on both axes.
func (p MaskParams) Center() float64 { return p.Radius1 + p.Radius2 }

// At evaluates the mask at sample (x, y).
func (p MaskParams) At(x, y float64) float64 {
	c := p.Center()
	d := math.Hypot(x-c, y-c)
	if d < p.Radius1 {
		return 1
	}
	return math.Min(1, -d/p.Radius1+p.BValue)
}

// RadialMask builds the (3·width)×(3·height) mask covering a tile and its
// eight neighbors.
func RadialMask(width, height int, p MaskParams) *grid.Grid {
	mask := grid.New(grid.Plane(3*width, 3*height))
	for y := 0; y < 3*height; y++ {
		for x := 0; x < 3*width; x++ {
			mask.SetPixel(x, y, p.At(float64(x), float64(y)))
		}
	}
	return mask
}
