package resample

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// GaussianSmoother blurs height fields with a normalized, centered Gaussian
// kernel applied separably. Edges are reflect-padded so the output keeps the
// input shape.
type GaussianSmoother struct {
	KernelSize int
	Sigma      float64
	kernel     []float64
}

// NewGaussianSmoother builds the 1-D kernel. size must be odd and positive.
func NewGaussianSmoother(size int, sigma float64) (*GaussianSmoother, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("gaussian kernel size must be odd and positive, got %d", size)
	}
	if !(sigma > 0) {
		return nil, fmt.Errorf("gaussian sigma must be positive, got %g", sigma)
	}

	kernel := make([]float64, size)
	center := size / 2
	for i := range kernel {
		d := float64(i - center)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)

	return &GaussianSmoother{KernelSize: size, Sigma: sigma, kernel: kernel}, nil
}

// Kernel returns a copy of the normalized 1-D kernel.
func (s *GaussianSmoother) Kernel() []float64 {
	return append([]float64(nil), s.kernel...)
}

// Smooth returns a blurred copy of g. A released g yields a released copy.
func (s *GaussianSmoother) Smooth(g *grid.Grid) *grid.Grid {
	if g.Released() {
		return g.Clone()
	}
	shape := g.Shape()
	pass := convolveLines(g.Flat(), widthAxis(shape), s.kernel)
	blurred := convolveLines(pass, heightAxis(shape), s.kernel)

	out := grid.New(shape)
	i := 0
	for b := 0; b < shape.Batch; b++ {
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				for c := 0; c < shape.Channels; c++ {
					out.Set(b, y, x, c, blurred[i])
					i++
				}
			}
		}
	}
	return out
}

func convolveLines(src []float64, ax axis, kernel []float64) []float64 {
	dst := make([]float64, len(src))
	window := make([]float64, len(kernel))
	center := len(kernel) / 2

	for o := 0; o < ax.outer; o++ {
		for i := 0; i < ax.inner; i++ {
			for k := 0; k < ax.n; k++ {
				for j := range window {
					window[j] = src[ax.index(o, reflectIndex(k+j-center, ax.n), i)]
				}
				dst[ax.index(o, k, i)] = floats.Dot(kernel, window)
			}
		}
	}
	return dst
}
