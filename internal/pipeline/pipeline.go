package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/terrain.diffusion/internal/blend"
	"github.com/banshee-data/terrain.diffusion/internal/denoiser"
	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/monitoring"
	"github.com/banshee-data/terrain.diffusion/internal/resample"
	"github.com/banshee-data/terrain.diffusion/internal/runlog"
	"github.com/banshee-data/terrain.diffusion/internal/terrain"
)

// Recorder persists finished runs. *runlog.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run runlog.Run, heights *grid.Grid) (string, error)
}

// Result is one generated height field and how it was made.
type Result struct {
	// Heights is the upsampled (and possibly smoothed) field of shape
	// (1, OutputHeight, OutputWidth, 1). The caller owns it.
	Heights      *grid.Grid
	Kind         string
	Seed         int64
	Steps        int
	StartingStep int
	Calls        int
	Duration     time.Duration
	// RunID is set when the run was recorded.
	RunID string
}

// Pipeline generates and blends terrain tiles. It is not safe for
// concurrent use.
type Pipeline struct {
	opts     Options
	open     SessionFactory
	smoother *resample.GaussianSmoother
	blender  *blend.Blender
	// lattice always keeps neighbor heights so a whole-lattice pass does not
	// overwrite generated tiles with mirrors of their neighbors.
	lattice  *blend.Blender
	recorder Recorder
}

// New validates opts and returns a Pipeline that opens one denoiser session
// per call through open.
func New(opts Options, open SessionFactory) (*Pipeline, error) {
	if open == nil {
		return nil, errors.New("pipeline: nil session factory")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline options: %w", err)
	}
	p := &Pipeline{
		opts:    opts,
		open:    open,
		blender: &blend.Blender{Params: opts.Blend, KeepNeighborHeights: opts.KeepNeighborHeights},
		lattice: &blend.Blender{Params: opts.Blend, KeepNeighborHeights: true},
	}
	if opts.Smoothing {
		s, err := resample.NewGaussianSmoother(opts.SmoothingKernelSize, opts.SmoothingSigma)
		if err != nil {
			return nil, err
		}
		p.smoother = s
	}
	return p, nil
}

// Options returns the options the pipeline was built with.
func (p *Pipeline) Options() Options { return p.opts }

// SetRecorder records every later successful run to r. nil stops recording.
func (p *Pipeline) SetRecorder(r Recorder) { p.recorder = r }

func (p *Pipeline) modelShape() grid.Shape {
	return grid.Plane(p.opts.ModelWidth, p.opts.ModelHeight)
}

// withSession opens a session, runs fn against a call-counting wrapper and
// closes the session however fn returns.
func (p *Pipeline) withSession(fn func(d *denoiser.Counter) error) (err error) {
	sess, err := p.open()
	if err != nil {
		return fmt.Errorf("failed to open denoiser session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close denoiser session: %w", cerr)
		}
	}()
	return fn(&denoiser.Counter{Denoiser: sess})
}

// sample runs the sampler from initial, which stays owned by the caller.
func (p *Pipeline) sample(d diffusion.Denoiser, initial *grid.Grid, steps, start int) (*grid.Grid, error) {
	s := diffusion.Sampler{Schedule: p.opts.Schedule, Steps: steps, StartingStep: start}
	if p.opts.Verbose {
		s.Progress = monitoring.StepLogger("[pipeline]")
	}
	return s.Run(d, initial)
}

// finish upsamples and smooths base, releasing it.
func (p *Pipeline) finish(base *grid.Grid) (*grid.Grid, error) {
	up, err := resample.Bicubic(base, p.opts.UpsampleFactor)
	base.Release()
	if err != nil {
		return nil, err
	}
	if p.smoother == nil {
		return up, nil
	}
	smoothed := p.smoother.Smooth(up)
	up.Release()
	return smoothed, nil
}

// generate samples from initial and finishes the result. initial stays
// owned by the caller.
func (p *Pipeline) generate(d diffusion.Denoiser, initial *grid.Grid) (*grid.Grid, error) {
	base, err := p.sample(d, initial, p.opts.Steps, 0)
	if err != nil {
		return nil, err
	}
	return p.finish(base)
}

// Generate produces one tile from the noise of seed.
func (p *Pipeline) Generate(ctx context.Context, seed int64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := monitoring.Timed("[pipeline] generate seed=%d", seed)
	noise := grid.NewRandomField(seed).Normal(p.modelShape())
	defer noise.Release()

	res := &Result{Kind: runlog.KindGenerate, Seed: seed, Steps: p.opts.Steps}
	err := p.withSession(func(d *denoiser.Counter) error {
		heights, err := p.generate(d, noise)
		res.Heights, res.Calls = heights, d.Calls()
		return err
	})
	res.Duration = done()
	if err != nil {
		res.Heights.Release()
		return nil, fmt.Errorf("generate seed %d: %w", seed, err)
	}
	return p.record(ctx, res)
}

// Interpolate generates from the spherical interpolation of the noise of
// seedA and seedB at t in [0, 1].
func (p *Pipeline) Interpolate(ctx context.Context, seedA, seedB int64, t float64) (*Result, error) {
	if t < 0 || t > 1 {
		return nil, fmt.Errorf("interpolation parameter must be in [0, 1], got %g", t)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := monitoring.Timed("[pipeline] interpolate seeds=%d,%d t=%.3f", seedA, seedB, t)
	a := grid.NewRandomField(seedA).Normal(p.modelShape())
	defer a.Release()
	b := grid.NewRandomField(seedB).Normal(p.modelShape())
	defer b.Release()
	unitA, unitB := grid.Normalize(a), grid.Normalize(b)
	noise, err := grid.Slerp(unitA, unitB, t)
	unitA.Release()
	unitB.Release()
	if err != nil {
		return nil, err
	}
	defer noise.Release()
	rescaled, err := rescaleLike(noise, a, b, t)
	if err != nil {
		return nil, err
	}
	defer rescaled.Release()

	res := &Result{Kind: runlog.KindInterpolate, Seed: seedA, Steps: p.opts.Steps}
	err = p.withSession(func(d *denoiser.Counter) error {
		heights, err := p.generate(d, rescaled)
		res.Heights, res.Calls = heights, d.Calls()
		return err
	})
	res.Duration = done()
	if err != nil {
		res.Heights.Release()
		return nil, fmt.Errorf("interpolate seeds %d,%d: %w", seedA, seedB, err)
	}
	return p.record(ctx, res)
}

// rescaleLike gives the unit-length slerp output the norm interpolated
// between the norms of a and b, so it keeps the variance of standard noise.
func rescaleLike(unit, a, b *grid.Grid, t float64) (*grid.Grid, error) {
	na, err := grid.Dot(a, a)
	if err != nil {
		return nil, fmt.Errorf("rescale interpolated noise: %w", err)
	}
	nb, err := grid.Dot(b, b)
	if err != nil {
		return nil, fmt.Errorf("rescale interpolated noise: %w", err)
	}
	n, err := grid.Dot(unit, unit)
	if err != nil {
		return nil, fmt.Errorf("rescale interpolated noise: %w", err)
	}
	target := (1-t)*math.Sqrt(na) + t*math.Sqrt(nb)
	if n == 0 {
		return unit.Clone(), nil
	}
	return grid.Scale(unit, target/math.Sqrt(n)), nil
}

// GenerateFromExisting resumes the sampler from StartingStep on a mix of
// existing terrain and the noise of seed, then shifts the result so its
// lowest sample is 0. existing may be at model or output resolution.
func (p *Pipeline) GenerateFromExisting(ctx context.Context, existing *grid.Grid, seed int64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := p.toModelSize(existing)
	if err != nil {
		return nil, err
	}
	defer base.Release()

	done := monitoring.Timed("[pipeline] existing seed=%d weight=%.2f", seed, p.opts.ExistingWeight)
	normalized := terrain.NormalizeExisting(base)
	defer normalized.Release()
	noise := grid.NewRandomField(seed).Normal(p.modelShape())
	defer noise.Release()
	mixed, err := grid.Lerp(noise, normalized, p.opts.ExistingWeight)
	if err != nil {
		return nil, err
	}
	defer mixed.Release()

	res := &Result{
		Kind:         runlog.KindExisting,
		Seed:         seed,
		Steps:        p.opts.ExistingSteps,
		StartingStep: p.opts.StartingStep,
	}
	err = p.withSession(func(d *denoiser.Counter) error {
		clean, err := p.sample(d, mixed, p.opts.ExistingSteps, p.opts.StartingStep)
		res.Calls = d.Calls()
		if err != nil {
			return err
		}
		shifted := grid.Offset(clean, -clean.Stats().Min)
		clean.Release()
		res.Heights, err = p.finish(shifted)
		return err
	})
	res.Duration = done()
	if err != nil {
		res.Heights.Release()
		return nil, fmt.Errorf("generate from existing seed %d: %w", seed, err)
	}
	return p.record(ctx, res)
}

// toModelSize returns a copy of g at model resolution, decimating fields
// given at output resolution.
func (p *Pipeline) toModelSize(g *grid.Grid) (*grid.Grid, error) {
	model := p.modelShape()
	switch g.Shape() {
	case model:
		return g.Clone(), nil
	case grid.Plane(p.opts.OutputWidth(), p.opts.OutputHeight()):
		return resample.DownSample(g, p.opts.UpsampleFactor)
	default:
		return nil, fmt.Errorf("existing terrain %s: %w", g.Shape(),
			&grid.ShapeError{Op: "existing terrain", Want: model.Len(), Got: g.Len()})
	}
}

// GenerateTile generates heights for tile from seed and stores them in it.
func (p *Pipeline) GenerateTile(ctx context.Context, tile *terrain.Tile, seed int64) (*Result, error) {
	if tile.Width() != p.opts.OutputWidth() || tile.Height() != p.opts.OutputHeight() {
		return nil, fmt.Errorf("tile (%d,%d) is %dx%d, pipeline output is %dx%d", tile.Col, tile.Row,
			tile.Width(), tile.Height(), p.opts.OutputWidth(), p.opts.OutputHeight())
	}
	res, err := p.Generate(ctx, seed)
	if err != nil {
		return nil, err
	}
	if err := tile.SetHeights(res.Heights.Clone()); err != nil {
		return nil, err
	}
	return res, nil
}

// NewLattice allocates an empty lattice of pipeline-sized tiles.
func (p *Pipeline) NewLattice(cols, rows int) (*terrain.Lattice, error) {
	return terrain.NewLattice(cols, rows, p.opts.OutputWidth(), p.opts.OutputHeight())
}

// GenerateLattice fills every tile of l in row-major order, tile i from
// seeds[i], with one denoiser session for the whole lattice. ctx is checked
// before each tile; tiles already generated keep their heights on failure.
func (p *Pipeline) GenerateLattice(ctx context.Context, l *terrain.Lattice, seeds []int64) (*Result, error) {
	tiles := l.Tiles()
	if len(seeds) != len(tiles) {
		return nil, fmt.Errorf("lattice has %d tiles but %d seeds were given", len(tiles), len(seeds))
	}
	if l.Width != p.opts.OutputWidth() || l.Height != p.opts.OutputHeight() {
		return nil, fmt.Errorf("lattice tiles are %dx%d, pipeline output is %dx%d",
			l.Width, l.Height, p.opts.OutputWidth(), p.opts.OutputHeight())
	}

	done := monitoring.Timed("[pipeline] lattice %dx%d", l.Cols, l.Rows)
	res := &Result{Kind: runlog.KindLattice, Seed: seeds[0], Steps: p.opts.Steps}
	err := p.withSession(func(d *denoiser.Counter) error {
		defer func() { res.Calls = d.Calls() }()
		for i, t := range tiles {
			if err := ctx.Err(); err != nil {
				return err
			}
			noise := grid.NewRandomField(seeds[i]).Normal(p.modelShape())
			heights, err := p.generate(d, noise)
			noise.Release()
			if err != nil {
				return fmt.Errorf("tile (%d,%d): %w", t.Col, t.Row, err)
			}
			if err := t.SetHeights(heights); err != nil {
				return err
			}
		}
		return nil
	})
	res.Duration = done()
	if err != nil {
		return nil, fmt.Errorf("generate lattice: %w", err)
	}
	if res.Heights, err = l.Mosaic(); err != nil {
		return nil, err
	}
	return p.record(ctx, res)
}

// BlendTile writes the mirrored heights of tile into each of its neighbors.
func (p *Pipeline) BlendTile(tile *terrain.Tile) ([]terrain.Direction, error) {
	return p.blender.BlendNeighbors(tile)
}

// BlendLattice blends every tile of l into its neighbors in row-major order.
// Neighbor heights are always kept where the mask falls below 1, whatever
// KeepNeighborHeights says, so every tile's own terrain survives the pass.
// Later tiles still own the seams they share with earlier ones.
func (p *Pipeline) BlendLattice(ctx context.Context, l *terrain.Lattice) error {
	for _, t := range l.Tiles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.lattice.BlendNeighbors(t); err != nil {
			return fmt.Errorf("blend tile (%d,%d): %w", t.Col, t.Row, err)
		}
	}
	return nil
}

// TerrainHeights converts a result into the (W+1)×(H+1) array terrain
// writers consume, scaled by the configured height multiplier.
func (p *Pipeline) TerrainHeights(res *Result) []float64 {
	return terrain.TerrainHeights(res.Heights, p.opts.HeightMultiplier, true)
}

func (p *Pipeline) record(ctx context.Context, res *Result) (*Result, error) {
	if p.recorder == nil {
		return res, nil
	}
	cfg, err := json.Marshal(p.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	id, err := p.recorder.Record(ctx, runlog.Run{
		Kind:          res.Kind,
		Seed:          res.Seed,
		Steps:         res.Steps,
		StartingStep:  res.StartingStep,
		ConfigJSON:    string(cfg),
		DenoiserCalls: res.Calls,
		Duration:      res.Duration,
	}, res.Heights)
	if err != nil {
		res.Heights.Release()
		return nil, err
	}
	res.RunID = id
	return res, nil
}
