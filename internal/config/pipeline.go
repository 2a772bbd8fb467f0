package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

//go:embed pipeline.schema.json
var schemaSource string

var schema = jsonschema.MustCompileString("pipeline.schema.json", schemaSource)

// PipelineConfig is the on-disk form of the pipeline settings.
type PipelineConfig struct {
	// Model
	ModelWidth  *int    `json:"model_width,omitempty" yaml:"model_width,omitempty"`
	ModelHeight *int    `json:"model_height,omitempty" yaml:"model_height,omitempty"`
	ModelName   *string `json:"model_name,omitempty" yaml:"model_name,omitempty"`

	// Sampler
	DiffusionSteps *int     `json:"diffusion_steps,omitempty" yaml:"diffusion_steps,omitempty"`
	StartingStep   *int     `json:"starting_step,omitempty" yaml:"starting_step,omitempty"`
	MinSignalRate  *float64 `json:"min_signal_rate,omitempty" yaml:"min_signal_rate,omitempty"`
	MaxSignalRate  *float64 `json:"max_signal_rate,omitempty" yaml:"max_signal_rate,omitempty"`

	// Resampling
	UpsampleFactor      *int     `json:"upsample_factor,omitempty" yaml:"upsample_factor,omitempty"`
	SmoothingEnabled    *bool    `json:"smoothing_enabled,omitempty" yaml:"smoothing_enabled,omitempty"`
	SmoothingKernelSize *int     `json:"smoothing_kernel_size,omitempty" yaml:"smoothing_kernel_size,omitempty"`
	SmoothingSigma      *float64 `json:"smoothing_sigma,omitempty" yaml:"smoothing_sigma,omitempty"`

	// Seam blending; radii default to half and all of the output width
	BlendRadius1        *float64 `json:"blend_radius1,omitempty" yaml:"blend_radius1,omitempty"`
	BlendRadius2        *float64 `json:"blend_radius2,omitempty" yaml:"blend_radius2,omitempty"`
	BlendBValue         *float64 `json:"blend_b_value,omitempty" yaml:"blend_b_value,omitempty"`
	KeepNeighborHeights *bool    `json:"keep_neighbor_heights,omitempty" yaml:"keep_neighbor_heights,omitempty"`

	// Output and existing-terrain mixing
	HeightMultiplier        *float64 `json:"height_multiplier,omitempty" yaml:"height_multiplier,omitempty"`
	ExistingHeightmapWeight *float64 `json:"existing_heightmap_weight,omitempty" yaml:"existing_heightmap_weight,omitempty"`
	ExistingDiffusionSteps  *int     `json:"existing_diffusion_steps,omitempty" yaml:"existing_diffusion_steps,omitempty"`

	Seed            *int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	DenoiserTimeout *string `json:"denoiser_timeout,omitempty" yaml:"denoiser_timeout,omitempty"` // duration string like "30s"
	Verbose         *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyPipelineConfig returns a config with every field unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadConfig reads a .json, .yaml or .yml file of at most 1MB. Omitted
// fields keep their defaults, so partial files are fine.
func LoadConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if ext != ".json" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}
	return ParseJSON(data)
}

// ParseJSON checks data against the schema, decodes it and validates it.
func ParseJSON(data []byte) (*PipelineConfig, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config YAML: %w", err)
	}
	return out, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. It panics when the file cannot be found, and is meant
// for tests and tools run from inside the repository.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks cross-field constraints the schema cannot express.
func (c *PipelineConfig) Validate() error {
	if c.GetMinSignalRate() >= c.GetMaxSignalRate() {
		return fmt.Errorf("min_signal_rate %g must be below max_signal_rate %g", c.GetMinSignalRate(), c.GetMaxSignalRate())
	}
	if c.GetStartingStep() >= c.GetDiffusionSteps() {
		return fmt.Errorf("starting_step %d must be below diffusion_steps %d", c.GetStartingStep(), c.GetDiffusionSteps())
	}
	if c.GetStartingStep() >= c.GetExistingDiffusionSteps() {
		return fmt.Errorf("starting_step %d must be below existing_diffusion_steps %d", c.GetStartingStep(), c.GetExistingDiffusionSteps())
	}
	if c.GetSmoothingKernelSize()%2 == 0 {
		return fmt.Errorf("smoothing_kernel_size must be odd, got %d", c.GetSmoothingKernelSize())
	}
	if c.DenoiserTimeout != nil && *c.DenoiserTimeout != "" {
		if _, err := time.ParseDuration(*c.DenoiserTimeout); err != nil {
			return fmt.Errorf("invalid denoiser_timeout '%s': %w", *c.DenoiserTimeout, err)
		}
	}
	return nil
}

// GetModelWidth returns the model_width value or the default.
func (c *PipelineConfig) GetModelWidth() int {
	if c.ModelWidth == nil {
		return 256
	}
	return *c.ModelWidth
}

// GetModelHeight returns the model_height value or the default.
func (c *PipelineConfig) GetModelHeight() int {
	if c.ModelHeight == nil {
		return 256
	}
	return *c.ModelHeight
}

func (c *PipelineConfig) GetModelName() string {
	if c.ModelName == nil {
		return ""
	}
	return *c.ModelName
}

// GetDiffusionSteps returns the diffusion_steps value or the default.
func (c *PipelineConfig) GetDiffusionSteps() int {
	if c.DiffusionSteps == nil {
		return 10
	}
	return *c.DiffusionSteps
}

func (c *PipelineConfig) GetStartingStep() int {
	if c.StartingStep == nil {
		return 0
	}
	return *c.StartingStep
}

func (c *PipelineConfig) GetMinSignalRate() float64 {
	if c.MinSignalRate == nil {
		return 0.02
	}
	return *c.MinSignalRate
}

func (c *PipelineConfig) GetMaxSignalRate() float64 {
	if c.MaxSignalRate == nil {
		return 0.9
	}
	return *c.MaxSignalRate
}

// GetUpsampleFactor returns the upsample_factor value or the default.
func (c *PipelineConfig) GetUpsampleFactor() int {
	if c.UpsampleFactor == nil {
		return 2
	}
	return *c.UpsampleFactor
}

func (c *PipelineConfig) GetSmoothingEnabled() bool {
	if c.SmoothingEnabled == nil {
		return true
	}
	return *c.SmoothingEnabled
}

func (c *PipelineConfig) GetSmoothingKernelSize() int {
	if c.SmoothingKernelSize == nil {
		return 13
	}
	return *c.SmoothingKernelSize
}

func (c *PipelineConfig) GetSmoothingSigma() float64 {
	if c.SmoothingSigma == nil {
		return 6.0
	}
	return *c.SmoothingSigma
}

// OutputWidth is the tile width after upsampling.
func (c *PipelineConfig) OutputWidth() int {
	return c.GetModelWidth() * c.GetUpsampleFactor()
}

// GetBlendRadius1 returns blend_radius1, defaulting to half the output width.
func (c *PipelineConfig) GetBlendRadius1() float64 {
	if c.BlendRadius1 == nil {
		return float64(c.OutputWidth()) / 2
	}
	return *c.BlendRadius1
}

// GetBlendRadius2 returns blend_radius2, defaulting to the output width.
func (c *PipelineConfig) GetBlendRadius2() float64 {
	if c.BlendRadius2 == nil {
		return float64(c.OutputWidth())
	}
	return *c.BlendRadius2
}

func (c *PipelineConfig) GetBlendBValue() float64 {
	if c.BlendBValue == nil {
		return 2.5
	}
	return *c.BlendBValue
}

func (c *PipelineConfig) GetKeepNeighborHeights() bool {
	if c.KeepNeighborHeights == nil {
		return false
	}
	return *c.KeepNeighborHeights
}

// GetHeightMultiplier returns the height_multiplier value or the default.
func (c *PipelineConfig) GetHeightMultiplier() float64 {
	if c.HeightMultiplier == nil {
		return 0.5
	}
	return *c.HeightMultiplier
}

func (c *PipelineConfig) GetExistingHeightmapWeight() float64 {
	if c.ExistingHeightmapWeight == nil {
		return 0.5
	}
	return *c.ExistingHeightmapWeight
}

func (c *PipelineConfig) GetExistingDiffusionSteps() int {
	if c.ExistingDiffusionSteps == nil {
		return 20
	}
	return *c.ExistingDiffusionSteps
}

// GetSeed returns the seed and whether one was configured.
func (c *PipelineConfig) GetSeed() (int64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

// GetDenoiserTimeout parses denoiser_timeout. Zero means no timeout.
func (c *PipelineConfig) GetDenoiserTimeout() time.Duration {
	if c.DenoiserTimeout == nil || *c.DenoiserTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.DenoiserTimeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *PipelineConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}
