// Package config holds PipelineConfig, the explicit configuration struct
// that replaces the source system's implicit process-wide globals and
// environment-driven overrides (spec §9 "Implicit global state"). All
// environment reads happen once, in ApplyEnv, at Job start.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Env names the three environment knobs the core recognizes (spec §6).
const (
	EnvMCStepSize     = "MC_STEP_SIZE"
	EnvForce25D       = "FORCE_25D"
	EnvForceSeriesUID = "FORCE_SERIES_UID"
)

// PipelineConfig is threaded explicitly through the orchestrator instead of
// being read ad hoc from the environment by each stage.
type PipelineConfig struct {
	// Tissues lists the requested segmentation targets (§4.5).
	Tissues []string `yaml:"tissues"`

	// MemoryGuardMaxSlices and MemoryGuardMaxSeries implement the §4.2
	// edge-case policy that disables multi-plane fusion for large inputs.
	MemoryGuardMaxSlices int `yaml:"memory_guard_max_slices"`
	MemoryGuardMaxSeries int `yaml:"memory_guard_max_series"`

	// MCStepSize is the requested marching-cubes step size; marching cubes
	// always runs at step 1, and the orchestrator logs a warning when a
	// different value was requested (§4.7, §6).
	MCStepSize int `yaml:"mc_step_size"`

	// Force25D disables the 2.5D bone branch when false (§6 FORCE_25D).
	Force25D bool `yaml:"force_25d"`

	// ForceSeriesUID is the documented series-selection escape hatch (§4.2).
	ForceSeriesUID string `yaml:"force_series_uid"`

	// CompressorPath is the external Draco geometry compressor binary; empty
	// disables compression (§4.8).
	CompressorPath string `yaml:"compressor_path"`
	// CompressorTimeout bounds the subprocess call (§5, default 300s).
	CompressorTimeout time.Duration `yaml:"compressor_timeout"`

	// DecimationMaxFaces triggers quadric decimation above this face count
	// (§4.7, default ~150000).
	DecimationMaxFaces int `yaml:"decimation_max_faces"`
}

// Default returns the documented defaults.
func Default() PipelineConfig {
	return PipelineConfig{
		Tissues:              []string{"body"},
		MemoryGuardMaxSlices: 200,
		MemoryGuardMaxSeries: 3,
		MCStepSize:           1,
		Force25D:             true,
		CompressorTimeout:    300 * time.Second,
		DecimationMaxFaces:   150_000,
	}
}

// FromYAML loads a PipelineConfig from a YAML document, starting from
// Default() so unset fields keep their defaults.
func FromYAML(data []byte) (PipelineConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// LoadYAMLFile reads and parses a YAML config file.
func LoadYAMLFile(path string) (PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PipelineConfig{}, err
	}
	return FromYAML(data)
}

// ToYAML serializes cfg back to YAML, used by the CLI's --save-config path.
func (c PipelineConfig) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ApplyEnv applies the three documented environment overrides on top of cfg,
// mirroring §6. It is the single place the process environment is read.
func (c PipelineConfig) ApplyEnv() PipelineConfig {
	out := c
	if v, ok := os.LookupEnv(EnvMCStepSize); ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.MCStepSize = n
		}
	}
	// Overridden to 1 regardless, with a warning logged by the orchestrator
	// at the surface stage — see internal/pipeline. The requested value is
	// still recorded here so the warning can report what was asked for.
	if v, ok := os.LookupEnv(EnvForce25D); ok {
		out.Force25D = v != "0"
	}
	if v, ok := os.LookupEnv(EnvForceSeriesUID); ok && v != "" {
		out.ForceSeriesUID = v
	}
	return out
}
