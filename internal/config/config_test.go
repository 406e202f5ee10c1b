package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if len(cfg.Tissues) != 1 || cfg.Tissues[0] != "body" {
		t.Errorf("Tissues = %v, want [body]", cfg.Tissues)
	}
	if cfg.MCStepSize != 1 {
		t.Errorf("MCStepSize = %d, want 1", cfg.MCStepSize)
	}
	if cfg.CompressorTimeout != 300*time.Second {
		t.Errorf("CompressorTimeout = %v, want 300s", cfg.CompressorTimeout)
	}
}

func TestFromYAML_UnsetFieldsKeepDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("force_25d: false\n"))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Force25D {
		t.Error("Force25D = true, want false (overridden)")
	}
	if cfg.MemoryGuardMaxSlices != 200 {
		t.Errorf("MemoryGuardMaxSlices = %d, want default 200 (untouched)", cfg.MemoryGuardMaxSlices)
	}
}

func TestFromYAML_InvalidDocumentErrors(t *testing.T) {
	if _, err := FromYAML([]byte("not: [valid yaml")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestToYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.ForceSeriesUID = "1.2.3"
	cfg.Tissues = []string{"bone", "muscle"}

	data, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}

	got, err := FromYAML(data)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if got.ForceSeriesUID != cfg.ForceSeriesUID {
		t.Errorf("ForceSeriesUID = %q, want %q", got.ForceSeriesUID, cfg.ForceSeriesUID)
	}
	if len(got.Tissues) != 2 || got.Tissues[0] != "bone" || got.Tissues[1] != "muscle" {
		t.Errorf("Tissues = %v, want [bone muscle]", got.Tissues)
	}
}

func TestLoadYAMLFile_MissingFileErrors(t *testing.T) {
	if _, err := LoadYAMLFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error loading a missing config file")
	}
}

func TestApplyEnv_OverridesFromEnvironment(t *testing.T) {
	t.Setenv(EnvMCStepSize, "2")
	t.Setenv(EnvForce25D, "0")
	t.Setenv(EnvForceSeriesUID, "9.9.9")

	cfg := Default().ApplyEnv()
	if cfg.MCStepSize != 2 {
		t.Errorf("MCStepSize = %d, want 2", cfg.MCStepSize)
	}
	if cfg.Force25D {
		t.Error("Force25D = true, want false (FORCE_25D=0)")
	}
	if cfg.ForceSeriesUID != "9.9.9" {
		t.Errorf("ForceSeriesUID = %q, want 9.9.9", cfg.ForceSeriesUID)
	}
}

func TestApplyEnv_EmptyForceSeriesUIDIgnored(t *testing.T) {
	t.Setenv(EnvForceSeriesUID, "")

	cfg := Default()
	cfg.ForceSeriesUID = "keep-me"
	cfg = cfg.ApplyEnv()
	if cfg.ForceSeriesUID != "keep-me" {
		t.Errorf("ForceSeriesUID = %q, want keep-me (empty env ignored)", cfg.ForceSeriesUID)
	}
}
