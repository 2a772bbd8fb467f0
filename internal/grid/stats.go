package grid

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises the samples of a grid.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Stats returns the summary of every sample. An empty grid yields zeros.
func (g *Grid) Stats() Stats {
	if len(g.data) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(g.data, nil)
	if len(g.data) == 1 {
		std = 0
	}
	return Stats{
		Min:    floats.Min(g.data),
		Max:    floats.Max(g.data),
		Mean:   mean,
		StdDev: std,
	}
}

// Offset returns g with c added to every sample.
func Offset(g *Grid, c float64) *Grid {
	out := g.Clone()
	floats.AddConst(c, out.data)
	return out
}
