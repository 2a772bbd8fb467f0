package pipeline

import (
	"fmt"

	"github.com/banshee-data/terrain.diffusion/internal/blend"
	"github.com/banshee-data/terrain.diffusion/internal/config"
	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
)

// Options is the explicit configuration a Pipeline runs with.
type Options struct {
	ModelWidth  int `json:"model_width"`
	ModelHeight int `json:"model_height"`

	Schedule     diffusion.Schedule `json:"schedule"`
	Steps        int                `json:"diffusion_steps"`
	StartingStep int                `json:"starting_step"`

	UpsampleFactor      int     `json:"upsample_factor"`
	Smoothing           bool    `json:"smoothing_enabled"`
	SmoothingKernelSize int     `json:"smoothing_kernel_size"`
	SmoothingSigma      float64 `json:"smoothing_sigma"`

	Blend               blend.MaskParams `json:"blend"`
	KeepNeighborHeights bool             `json:"keep_neighbor_heights"`

	HeightMultiplier float64 `json:"height_multiplier"`
	// ExistingWeight is the share of existing terrain mixed into the initial
	// noise by GenerateFromExisting.
	ExistingWeight float64 `json:"existing_heightmap_weight"`
	ExistingSteps  int     `json:"existing_diffusion_steps"`

	// Verbose logs every sampler step.
	Verbose bool `json:"verbose"`
}

// DefaultOptions matches the shipped defaults config.
func DefaultOptions() Options {
	return OptionsFromConfig(config.EmptyPipelineConfig())
}

// OptionsFromConfig resolves every config value, applying defaults for
// unset keys.
func OptionsFromConfig(cfg *config.PipelineConfig) Options {
	return Options{
		ModelWidth:   cfg.GetModelWidth(),
		ModelHeight:  cfg.GetModelHeight(),
		Schedule:     diffusion.Schedule{MinSignalRate: cfg.GetMinSignalRate(), MaxSignalRate: cfg.GetMaxSignalRate()},
		Steps:        cfg.GetDiffusionSteps(),
		StartingStep: cfg.GetStartingStep(),

		UpsampleFactor:      cfg.GetUpsampleFactor(),
		Smoothing:           cfg.GetSmoothingEnabled(),
		SmoothingKernelSize: cfg.GetSmoothingKernelSize(),
		SmoothingSigma:      cfg.GetSmoothingSigma(),

		Blend: blend.MaskParams{
			Radius1: cfg.GetBlendRadius1(),
			Radius2: cfg.GetBlendRadius2(),
			BValue:  cfg.GetBlendBValue(),
		},
		KeepNeighborHeights: cfg.GetKeepNeighborHeights(),

		HeightMultiplier: cfg.GetHeightMultiplier(),
		ExistingWeight:   cfg.GetExistingHeightmapWeight(),
		ExistingSteps:    cfg.GetExistingDiffusionSteps(),
		Verbose:          cfg.GetVerbose(),
	}
}

// OutputWidth is the tile width after upsampling.
func (o Options) OutputWidth() int { return o.ModelWidth * o.UpsampleFactor }

// OutputHeight is the tile height after upsampling.
func (o Options) OutputHeight() int { return o.ModelHeight * o.UpsampleFactor }

// Validate checks everything a run depends on before any denoiser call.
func (o Options) Validate() error {
	if o.ModelWidth <= 0 || o.ModelHeight <= 0 {
		return fmt.Errorf("model size must be positive, got %dx%d", o.ModelWidth, o.ModelHeight)
	}
	if o.UpsampleFactor < 1 {
		return fmt.Errorf("upsample factor must be at least 1, got %d", o.UpsampleFactor)
	}
	scratch := diffusion.Sampler{Schedule: o.Schedule, Steps: o.Steps}
	if err := scratch.Validate(); err != nil {
		return err
	}
	existing := diffusion.Sampler{Schedule: o.Schedule, Steps: o.ExistingSteps, StartingStep: o.StartingStep}
	if err := existing.Validate(); err != nil {
		return fmt.Errorf("existing terrain: %w", err)
	}
	if o.ExistingWeight < 0 || o.ExistingWeight > 1 {
		return fmt.Errorf("existing heightmap weight must be in [0, 1], got %g", o.ExistingWeight)
	}
	if o.Smoothing {
		if o.SmoothingKernelSize <= 0 || o.SmoothingKernelSize%2 == 0 {
			return fmt.Errorf("smoothing kernel size must be odd and positive, got %d", o.SmoothingKernelSize)
		}
		if !(o.SmoothingSigma > 0) {
			return fmt.Errorf("smoothing sigma must be positive, got %g", o.SmoothingSigma)
		}
	}
	return o.Blend.Validate()
}
