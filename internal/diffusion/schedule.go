package diffusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// ErrZeroSignalRate is returned for schedules whose minimum signal rate would
// make the clean-estimate division blow up.
var ErrZeroSignalRate = errors.New("min signal rate must be greater than zero")

// Schedule is the cosine noise schedule. Time 0 is the cleanest point
// (signal = MaxSignalRate) and time 1 the noisiest (signal = MinSignalRate).
type Schedule struct {
	MinSignalRate float64 // typically 0.02-0.1
	MaxSignalRate float64 // typically 0.9-0.98
}

// DefaultSchedule returns the rates the terrain models were trained with.
func DefaultSchedule() Schedule {
	return Schedule{MinSignalRate: 0.02, MaxSignalRate: 0.9}
}

// Validate checks 0 < MinSignalRate < MaxSignalRate < 1.
func (s Schedule) Validate() error {
	if s.MinSignalRate <= 0 {
		return fmt.Errorf("%w, got %g", ErrZeroSignalRate, s.MinSignalRate)
	}
	if s.MaxSignalRate >= 1 {
		return fmt.Errorf("max signal rate must be below 1, got %g", s.MaxSignalRate)
	}
	if s.MinSignalRate >= s.MaxSignalRate {
		return fmt.Errorf("min signal rate %g must be below max signal rate %g", s.MinSignalRate, s.MaxSignalRate)
	}
	return nil
}

// Rates returns (noise rate, signal rate) at time t in [0, 1]. The pair always
// satisfies noise² + signal² = 1.
func (s Schedule) Rates(t float64) (noise, signal float64) {
	start := math.Acos(s.MaxSignalRate)
	end := math.Acos(s.MinSignalRate)
	angle := start + t*(end-start)
	return math.Sin(angle), math.Cos(angle)
}

// BatchRates evaluates the schedule once per batch element. Both grids have
// shape (len(times), 1, 1, 1).
func (s Schedule) BatchRates(times []float64) (noise, signal *grid.Grid) {
	shape := grid.Shape{Batch: len(times), Height: 1, Width: 1, Channels: 1}
	noise, signal = grid.New(shape), grid.New(shape)
	for b, t := range times {
		n, sg := s.Rates(t)
		noise.Set(b, 0, 0, 0, n)
		signal.Set(b, 0, 0, 0, sg)
	}
	return noise, signal
}
