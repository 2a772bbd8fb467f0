package diffusion

import (
	"errors"
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// ErrInvalidSteps is returned when the step count or starting step is out of
// range.
var ErrInvalidSteps = errors.New("invalid diffusion steps")

// Denoiser predicts the noise component of a batch of noisy height fields.
// noisy has shape (batch, H, W, 1) and noiseRatesSquared (batch, 1, 1, 1);
// the result must have the same shape as noisy. Implementations are treated
// as pure functions and keep ownership of the grid they return; the sampler
// never releases it.
type Denoiser interface {
	Denoise(noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error)
}

// DenoiserFunc adapts a function to the Denoiser interface.
type DenoiserFunc func(noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error)

func (f DenoiserFunc) Denoise(noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error) {
	return f(noisy, noiseRatesSquared)
}

// Sampler holds the fixed parameters of one reverse-diffusion run.
type Sampler struct {
	Schedule Schedule
	// Steps is the total number of diffusion steps.
	Steps int
	// StartingStep skips the noisiest steps so that partially noised terrain
	// can be completed rather than generated from scratch.
	StartingStep int
	// Progress, when set, is called after every completed step.
	Progress func(step, total int)
}

// Validate checks the step range and the schedule.
func (s *Sampler) Validate() error {
	if s.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidSteps, s.Steps)
	}
	if s.StartingStep < 0 || s.StartingStep >= s.Steps {
		return fmt.Errorf("%w: starting step %d outside [0, %d)", ErrInvalidSteps, s.StartingStep, s.Steps)
	}
	return s.Schedule.Validate()
}

// Start returns a State positioned at StartingStep. initial is borrowed, not
// consumed: the State never modifies or releases it.
func (s *Sampler) Start(initial *grid.Grid) (*State, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if initial == nil || initial.Len() == 0 {
		return nil, fmt.Errorf("diffusion: empty initial grid")
	}
	return &State{
		schedule: s.Schedule,
		step:     s.StartingStep,
		total:    s.Steps,
		stepSize: 1 / float64(s.Steps),
		noisy:    initial,
		progress: s.Progress,
	}, nil
}

// Run drives a fresh State to completion and returns the final clean
// estimate. It performs exactly Steps-StartingStep denoiser calls.
func (s *Sampler) Run(d Denoiser, initial *grid.Grid) (*grid.Grid, error) {
	st, err := s.Start(initial)
	if err != nil {
		return nil, err
	}
	for !st.Done() {
		if err := st.Advance(d); err != nil {
			st.discard()
			return nil, err
		}
	}
	return st.Result()
}

// State is one in-flight sampler run. It is advanced one step at a time and
// must not be shared between goroutines.
type State struct {
	schedule Schedule
	step     int
	total    int
	stepSize float64
	progress func(step, total int)

	noisy     *grid.Grid
	ownsNoisy bool
	predicted *grid.Grid
	calls     int
}

// Step is the index of the next step to run.
func (st *State) Step() int { return st.step }

// Total is the configured number of steps.
func (st *State) Total() int { return st.total }

// Calls is the number of denoiser calls made so far.
func (st *State) Calls() int { return st.calls }

// Done reports whether every step has run.
func (st *State) Done() bool { return st.step >= st.total }

// Time is the diffusion time of the next step.
func (st *State) Time() float64 { return 1 - float64(st.step)*st.stepSize }

func (st *State) times(t float64) []float64 {
	times := make([]float64, st.noisy.Batch())
	for i := range times {
		times[i] = t
	}
	return times
}

// Advance runs one step: predict the noise, rebuild the clean estimate and
// re-noise it toward the next time. Every intermediate is released before
// returning.
func (st *State) Advance(d Denoiser) error {
	if st.Done() {
		return fmt.Errorf("diffusion: advance past final step %d", st.total)
	}

	t := st.Time()
	noiseRates, signalRates := st.schedule.BatchRates(st.times(t))
	defer noiseRates.Release()
	defer signalRates.Release()

	ratesSquared := grid.Pow(noiseRates, 2)
	output, err := d.Denoise(st.noisy, ratesSquared)
	ratesSquared.Release()
	st.calls++
	if err != nil {
		return fmt.Errorf("diffusion step %d: denoise: %w", st.step, err)
	}
	if output == nil || output.Shape() != st.noisy.Shape() {
		got := 0
		if output != nil {
			got = output.Len()
		}
		return fmt.Errorf("diffusion step %d: denoiser output: %w",
			st.step, &grid.ShapeError{Op: "denoise", Want: st.noisy.Len(), Got: got})
	}
	if output.Released() {
		return fmt.Errorf("diffusion step %d: denoiser output: %w", st.step, grid.ErrReleased)
	}
	// The denoiser may hand back a cached grid or its own input, so work on
	// a private copy and leave the returned grid alone.
	predictedNoise := output.Clone()
	defer predictedNoise.Release()

	clean, err := reconstruct(st.noisy, predictedNoise, noiseRates, signalRates)
	if err != nil {
		return fmt.Errorf("diffusion step %d: %w", st.step, err)
	}

	nextNoise, nextSignal := st.schedule.BatchRates(st.times(t - st.stepSize))
	next, err := renoise(clean, predictedNoise, nextNoise, nextSignal)
	nextNoise.Release()
	nextSignal.Release()
	if err != nil {
		clean.Release()
		return fmt.Errorf("diffusion step %d: %w", st.step, err)
	}

	if st.ownsNoisy {
		st.noisy.Release()
	}
	st.predicted.Release()
	st.noisy, st.ownsNoisy = next, true
	st.predicted = clean
	st.step++

	if st.progress != nil {
		st.progress(st.step, st.total)
	}
	if st.Done() {
		// the final re-noised grid has no consumer
		st.noisy.Release()
	}
	return nil
}

// Result returns the clean estimate of the last executed step.
func (st *State) Result() (*grid.Grid, error) {
	if !st.Done() || st.predicted == nil {
		return nil, fmt.Errorf("diffusion: result requested at step %d of %d", st.step, st.total)
	}
	return st.predicted, nil
}

func (st *State) discard() {
	if st.ownsNoisy {
		st.noisy.Release()
	}
	st.predicted.Release()
}

// reconstruct computes (noisy - noiseRate*noise) / signalRate per batch.
func reconstruct(noisy, noise, noiseRates, signalRates *grid.Grid) (*grid.Grid, error) {
	scaled, err := grid.ScaleBatches(noise, noiseRates, false)
	if err != nil {
		return nil, err
	}
	defer scaled.Release()

	diff, err := grid.Sub(noisy, scaled)
	if err != nil {
		return nil, err
	}
	defer diff.Release()

	return grid.ScaleBatches(diff, signalRates, true)
}

// renoise computes signalRate*clean + noiseRate*noise per batch.
func renoise(clean, noise, noiseRates, signalRates *grid.Grid) (*grid.Grid, error) {
	a, err := grid.ScaleBatches(clean, signalRates, false)
	if err != nil {
		return nil, err
	}
	defer a.Release()

	b, err := grid.ScaleBatches(noise, noiseRates, false)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	return grid.Add(a, b)
}
