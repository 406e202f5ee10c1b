package wizard

import (
	"os"

	"github.com/mrsinham/reconmesh/internal/config"
	"gopkg.in/yaml.v3"
)

// ToFileConfig captures a JobState for --save-config.
func ToFileConfig(s JobState) FileConfig {
	return FileConfig{
		Source:             s.Source,
		OutputPrefix:       s.OutputPrefix,
		Tissues:            s.Tissues,
		ForceSeriesUID:     s.ForceSeriesUID,
		Force25D:           s.Force25D,
		DecimationMaxFaces: s.DecimationMaxFaces,
		CompressorPath:     s.CompressorPath,
	}
}

// FromFileConfig builds a JobState from a loaded FileConfig.
func FromFileConfig(c FileConfig) JobState {
	return JobState{
		Source:             c.Source,
		OutputPrefix:       c.OutputPrefix,
		Tissues:            c.Tissues,
		ForceSeriesUID:     c.ForceSeriesUID,
		Force25D:           c.Force25D,
		DecimationMaxFaces: c.DecimationMaxFaces,
		CompressorPath:     c.CompressorPath,
	}
}

// LoadFromYAML reads a FileConfig previously written by SaveToYAML.
func LoadFromYAML(path string) (JobState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JobState{}, err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return JobState{}, err
	}
	return FromFileConfig(fc), nil
}

// SaveToYAML persists s for later --config reuse.
func SaveToYAML(s JobState, path string) error {
	data, err := yaml.Marshal(ToFileConfig(s))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ToPipelineConfig maps the wizard's job fields onto the orchestrator's
// PipelineConfig, starting from config.Default so unedited fields (memory
// guard thresholds, compressor timeout) keep their defaults.
func ToPipelineConfig(s JobState) config.PipelineConfig {
	cfg := config.Default()
	cfg.Tissues = s.Tissues
	cfg.ForceSeriesUID = s.ForceSeriesUID
	cfg.Force25D = s.Force25D
	cfg.DecimationMaxFaces = s.DecimationMaxFaces
	cfg.CompressorPath = s.CompressorPath
	return cfg
}
