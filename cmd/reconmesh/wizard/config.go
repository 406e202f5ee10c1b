package wizard

// FileConfig is the wizard's own save/load format: the job fields the
// screens collect, layered on top of the PipelineConfig YAML the
// orchestrator reads (spec §4.9's config.PipelineConfig).
type FileConfig struct {
	Source             string   `yaml:"source"`
	OutputPrefix       string   `yaml:"output_prefix"`
	Tissues            []string `yaml:"tissues"`
	ForceSeriesUID     string   `yaml:"force_series_uid,omitempty"`
	Force25D           bool     `yaml:"force_25d"`
	DecimationMaxFaces int      `yaml:"decimation_max_faces"`
	CompressorPath     string   `yaml:"compressor_path,omitempty"`
}
