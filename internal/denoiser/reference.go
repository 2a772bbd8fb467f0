package denoiser

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// Reference is an analytic denoiser that knows the clean target. For a noisy
// input x = s*target + n*eps it returns eps exactly, so the sampler's clean
// estimate equals the target at every step.
//
// The target is either one plane shared by every batch element or a grid
// whose batch matches the input.
type Reference struct {
	Target *grid.Grid
}

var _ diffusion.Denoiser = (*Reference)(nil)

// NewReference copies target.
func NewReference(target *grid.Grid) *Reference {
	return &Reference{Target: target.Clone()}
}

func (r *Reference) Denoise(noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error) {
	plane := noisy.Height() * noisy.Width() * noisy.Channels()
	if r.Target.Height()*r.Target.Width()*r.Target.Channels() != plane {
		return nil, &grid.ShapeError{Op: "reference denoise", Want: plane, Got: r.Target.Len() / max(r.Target.Batch(), 1)}
	}
	if r.Target.Batch() != 1 && r.Target.Batch() != noisy.Batch() {
		return nil, fmt.Errorf("reference denoise: target batch %d for input batch %d: %w",
			r.Target.Batch(), noisy.Batch(), grid.ErrShapeMismatch)
	}
	if noiseRatesSquared.Len() != noisy.Batch() {
		return nil, &grid.ShapeError{Op: "reference denoise rates", Want: noisy.Batch(), Got: noiseRatesSquared.Len()}
	}

	in := noisy.Flat()
	target := r.Target.Flat()
	rates := noiseRatesSquared.Flat()
	out := make([]float64, len(in))
	for b := 0; b < noisy.Batch(); b++ {
		nr := math.Sqrt(rates[b])
		if nr == 0 {
			continue
		}
		sr := math.Sqrt(1 - rates[b])
		tb := 0
		if r.Target.Batch() > 1 {
			tb = b * plane
		}
		for i := 0; i < plane; i++ {
			out[b*plane+i] = (in[b*plane+i] - sr*target[tb+i]) / nr
		}
	}
	return grid.FromValues(noisy.Shape(), out)
}

// Counter counts calls to the wrapped Denoiser. It is safe for concurrent
// use when the wrapped Denoiser is.
type Counter struct {
	Denoiser diffusion.Denoiser
	calls    atomic.Int64
}

var _ diffusion.Denoiser = (*Counter)(nil)

func (c *Counter) Denoise(noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error) {
	c.calls.Add(1)
	return c.Denoiser.Denoise(noisy, noiseRatesSquared)
}

// Calls returns the number of Denoise calls so far.
func (c *Counter) Calls() int { return int(c.calls.Load()) }

// Reset zeroes the call count.
func (c *Counter) Reset() { c.calls.Store(0) }

// SyntheticTarget is a corner-to-corner slope with seeded bumps, a stand-in
// target for Reference when no trained model is available.
func SyntheticTarget(width, height int, seed int64) *grid.Grid {
	out := grid.Gradient(0, 1, 0, 0.5, width, height)
	bumps := grid.NewRandomField(seed).Normal(grid.Plane(width, height))
	defer bumps.Release()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.SetPixel(x, y, out.Pixel(x, y)+0.05*bumps.Pixel(x, y))
		}
	}
	return out
}
