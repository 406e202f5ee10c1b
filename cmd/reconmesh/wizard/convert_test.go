package wizard

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestToFileConfigRoundTrip(t *testing.T) {
	state := JobState{
		Source:             "s3://bucket/series",
		OutputPrefix:       "out/patient42",
		Tissues:            []string{"body", "bone"},
		ForceSeriesUID:     "1.2.3.4",
		Force25D:           true,
		DecimationMaxFaces: 50_000,
		CompressorPath:     "/usr/local/bin/draco_encoder",
	}

	got := FromFileConfig(ToFileConfig(state))
	if !reflect.DeepEqual(got, state) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, state)
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	state := DefaultJobState()
	state.Source = "/data/series1"
	state.OutputPrefix = "out/series1"

	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := SaveToYAML(state, path); err != nil {
		t.Fatalf("SaveToYAML: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	loaded, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}
	if !reflect.DeepEqual(loaded, state) {
		t.Errorf("loaded state mismatch:\n got  %+v\n want %+v", loaded, state)
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	if _, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error loading a missing config file")
	}
}

func TestToPipelineConfig_AppliesOverrides(t *testing.T) {
	state := JobState{
		Tissues:            []string{"bone"},
		ForceSeriesUID:     "1.2.3",
		Force25D:           false,
		DecimationMaxFaces: 10_000,
		CompressorPath:     "/bin/draco",
	}

	cfg := ToPipelineConfig(state)
	if !reflect.DeepEqual(cfg.Tissues, state.Tissues) {
		t.Errorf("Tissues = %v, want %v", cfg.Tissues, state.Tissues)
	}
	if cfg.ForceSeriesUID != state.ForceSeriesUID {
		t.Errorf("ForceSeriesUID = %q, want %q", cfg.ForceSeriesUID, state.ForceSeriesUID)
	}
	if cfg.Force25D != state.Force25D {
		t.Errorf("Force25D = %v, want %v", cfg.Force25D, state.Force25D)
	}
	if cfg.DecimationMaxFaces != state.DecimationMaxFaces {
		t.Errorf("DecimationMaxFaces = %d, want %d", cfg.DecimationMaxFaces, state.DecimationMaxFaces)
	}
	if cfg.CompressorPath != state.CompressorPath {
		t.Errorf("CompressorPath = %q, want %q", cfg.CompressorPath, state.CompressorPath)
	}
	// Untouched fields keep config.Default's values.
	if cfg.MemoryGuardMaxSlices != 200 {
		t.Errorf("MemoryGuardMaxSlices = %d, want default 200", cfg.MemoryGuardMaxSlices)
	}
}

func TestDefaultJobState(t *testing.T) {
	state := DefaultJobState()
	if len(state.Tissues) != 1 || state.Tissues[0] != "body" {
		t.Errorf("default Tissues = %v, want [body]", state.Tissues)
	}
	if state.DecimationMaxFaces != 150_000 {
		t.Errorf("default DecimationMaxFaces = %d, want 150000", state.DecimationMaxFaces)
	}
}
