package resample

import "github.com/banshee-data/terrain.diffusion/internal/grid"

// axis describes a grid buffer as outer × n × inner, where n is the length of
// the lines being processed and inner is the stride between their samples.
type axis struct {
	outer, n, inner int
}

func widthAxis(s grid.Shape) axis {
	return axis{outer: s.Batch * s.Height, n: s.Width, inner: s.Channels}
}

func heightAxis(s grid.Shape) axis {
	return axis{outer: s.Batch, n: s.Height, inner: s.Width * s.Channels}
}

func (a axis) index(o, k, i int) int { return (o*a.n+k)*a.inner + i }

// clampIndex replicates the edge sample for taps outside [0, n).
func clampIndex(k, n int) int {
	return min(max(k, 0), n-1)
}

// reflectIndex mirrors taps outside [0, n) about the edge sample without
// repeating it: -1 maps to 1, n maps to n-2.
func reflectIndex(k, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	k %= period
	if k < 0 {
		k += period
	}
	if k >= n {
		k = period - k
	}
	return k
}
