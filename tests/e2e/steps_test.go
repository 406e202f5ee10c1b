package e2e

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
)

var binaryPath string

type testContext struct {
	tmpDir   string
	exitCode int
	output   string
}

func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "reconmesh-e2e-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), "./cmd/reconmesh")
	cmd.Dir = projectRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}
	return tmpFile.Name(), nil
}

func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build binary: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(binaryPath)
	os.Exit(m.Run())
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "reconmesh-e2e-scenario-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})
	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	sc.Step(`^reconmesh is built$`, tc.reconmeshIsBuilt)
	sc.Step(`^an MR series "([^"]*)" with (\d+) slices of (\d+)x(\d+) at ([\d.]+)x[\d.]+mm spacing and ([\d.]+)mm thickness in "([^"]*)"$`, tc.anMRSeries)
	sc.Step(`^an MR series "([^"]*)" named "([^"]*)" with (\d+) slices of (\d+)x(\d+) at ([\d.]+)x[\d.]+mm spacing and ([\d.]+)mm thickness in "([^"]*)"$`, tc.aNamedMRSeries)
	sc.Step(`^a localizer series "([^"]*)" with (\d+) slices of (\d+)x(\d+) in "([^"]*)"$`, tc.aLocalizerSeries)
	sc.Step(`^a compressor script that sleeps (\d+) seconds at "([^"]*)"$`, tc.aSlowCompressorScript)
	sc.Step(`^a pipeline config with compressor path "([^"]*)" and compressor timeout "([^"]*)" at "([^"]*)"$`, tc.aPipelineConfig)
	sc.Step(`^I run reconmesh with "([^"]*)"$`, tc.iRunReconmeshWith)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^"([^"]*)" should exist$`, tc.pathShouldExist)
	sc.Step(`^the audit log at "([^"]*)" should contain "([^"]*)"$`, tc.auditLogShouldContain)
}

func (tc *testContext) reconmeshIsBuilt() error {
	if binaryPath == "" {
		return fmt.Errorf("binary not built")
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		return fmt.Errorf("binary does not exist at %s", binaryPath)
	}
	return nil
}

func (tc *testContext) resolve(path string) string {
	return strings.ReplaceAll(path, "{tmpdir}", tc.tmpDir)
}

func (tc *testContext) anMRSeries(seriesUID string, count, rows, cols int, spacing, thickness float64, dir string) error {
	return buildSeries(tc.resolve(dir), seriesUID, "axial MR", "FSPGR", count, rows, cols, spacing, thickness)
}

func (tc *testContext) aNamedMRSeries(seriesUID, sequenceName string, count, rows, cols int, spacing, thickness float64, dir string) error {
	return buildSeries(tc.resolve(dir), seriesUID, sequenceName+" axial", sequenceName, count, rows, cols, spacing, thickness)
}

func (tc *testContext) aLocalizerSeries(seriesUID string, count, rows, cols int, dir string) error {
	return buildLocalizerSeries(tc.resolve(dir), seriesUID, count, rows, cols)
}

func (tc *testContext) aSlowCompressorScript(seconds int, path string) error {
	path = tc.resolve(path)
	script := fmt.Sprintf("#!/bin/sh\nsleep %d\n", seconds)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return err
	}
	return nil
}

func (tc *testContext) aPipelineConfig(compressorPath, timeout, configPath string) error {
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return fmt.Errorf("parse compressor timeout %q: %w", timeout, err)
	}
	// PipelineConfig.CompressorTimeout is a plain time.Duration field with no
	// custom YAML marshaling, so yaml.v3 (de)serializes it as a nanosecond
	// integer rather than a duration string like "1s".
	yaml := fmt.Sprintf("compressor_path: %q\ncompressor_timeout: %d\ntissues:\n  - body\n", tc.resolve(compressorPath), d.Nanoseconds())
	return os.WriteFile(tc.resolve(configPath), []byte(yaml), 0o644)
}

func (tc *testContext) iRunReconmeshWith(args string) error {
	args = tc.resolve(args)
	argList := splitArgs(args)

	cmd := exec.Command(binaryPath, argList...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	tc.output = output.String()

	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Errorf("failed to run reconmesh: %w", err)
	} else {
		tc.exitCode = 0
	}
	return nil
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\noutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\noutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) pathShouldExist(path string) error {
	path = tc.resolve(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

func (tc *testContext) auditLogShouldContain(path, expected string) error {
	path = tc.resolve(path)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip reader for %s: %w", path, err)
	}
	defer gz.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		return fmt.Errorf("read audit log %s: %w", path, err)
	}
	if !strings.Contains(buf.String(), expected) {
		return fmt.Errorf("audit log %s does not contain %q\ncontent:\n%s", path, expected, buf.String())
	}
	return nil
}

// splitArgs splits a command line string into arguments, respecting double
// quotes around individual values (e.g. paths containing spaces).
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
