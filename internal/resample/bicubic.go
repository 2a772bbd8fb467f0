package resample

import (
	"errors"
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// ErrInvalidFactor is returned for resampling factors below 1.
var ErrInvalidFactor = errors.New("resample factor must be at least 1")

// cubic is f(x) = ax³ + bx² + cx + d on x in [0, 1].
type cubic struct{ a, b, c, d float64 }

// fitCubic solves f(0) = p1, f(1) = p2, f'(0) = p0-p1, f'(1) = p2-p3.
func fitCubic(p0, p1, p2, p3 float64) cubic {
	tangentStart := p0 - p1
	tangentEnd := p2 - p3
	a := (tangentEnd - tangentStart) - 2*(p2-p1-tangentStart)
	b := p2 - p1 - tangentStart - a
	return cubic{a: a, b: b, c: tangentStart, d: p1}
}

func (f cubic) at(x float64) float64 {
	return ((f.a*x+f.b)*x+f.c)*x + f.d
}

// Bicubic upsamples g by factor along width and then height. Original samples
// land unchanged at multiples of factor; the factor-1 positions after each
// one are filled from the cubic through it and its neighbors. Taps past the
// edge replicate the edge sample.
func Bicubic(g *grid.Grid, factor int) (*grid.Grid, error) {
	if factor < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidFactor, factor)
	}
	if factor == 1 {
		return g.Clone(), nil
	}

	s := g.Shape()
	wide := s
	wide.Width *= factor
	pass := upsampleLines(g.Flat(), widthAxis(s), factor)

	out := wide
	out.Height *= factor
	return grid.FromValues(out, upsampleLines(pass, heightAxis(wide), factor))
}

func upsampleLines(src []float64, ax axis, factor int) []float64 {
	up := axis{outer: ax.outer, n: ax.n * factor, inner: ax.inner}
	dst := make([]float64, ax.outer*up.n*ax.inner)
	step := 1 / float64(factor)

	for o := 0; o < ax.outer; o++ {
		for i := 0; i < ax.inner; i++ {
			tap := func(k int) float64 { return src[ax.index(o, clampIndex(k, ax.n), i)] }
			for k := 0; k < ax.n; k++ {
				f := fitCubic(tap(k-1), tap(k), tap(k+1), tap(k+2))
				base := k * factor
				dst[up.index(o, base, i)] = tap(k)
				for j := 1; j < factor; j++ {
					dst[up.index(o, base+j, i)] = f.at(float64(j) * step)
				}
			}
		}
	}
	return dst
}
