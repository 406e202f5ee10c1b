// Command reconmesh turns a DICOM MR series into a watertight STL/GLB mesh
// pair: point it at a local directory and an output prefix, and it drives
// the C1-C9 pipeline end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrsinham/reconmesh/cmd/reconmesh/wizard"
	"github.com/mrsinham/reconmesh/internal/blobstore"
	"github.com/mrsinham/reconmesh/internal/config"
	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/pipeline"
	"github.com/mrsinham/reconmesh/internal/reconerr"
	"github.com/mrsinham/reconmesh/internal/reconlog"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "wizard" {
		var fromConfig string
		fs := flag.NewFlagSet("wizard", flag.ExitOnError)
		fs.StringVar(&fromConfig, "from", "", "Load a saved job config instead of prompting")
		fs.Parse(os.Args[2:])

		if err := wizard.Run(fromConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	source := flag.String("source", "", "Input directory of .dcm files (required, unless --config is given)")
	outputPrefix := flag.String("output-prefix", "", "Blob key prefix for mesh.stl/mesh.glb (required, unless --config is given)")
	tissues := flag.String("tissues", "", "Comma-separated tissue classes to segment: body,bone,muscle (default: body)")
	forceSeriesUID := flag.String("force-series", "", "Pin a specific SeriesInstanceUID instead of letting the selector choose")
	force25D := flag.Bool("force-25d", true, "Allow the 2.5D bone segmentation branch")
	decimationMaxFaces := flag.Int("decimation-max-faces", 0, "Override the decimation face-count threshold (0 keeps the default)")
	compressorPath := flag.String("compressor-path", "", "External Draco compressor binary (empty exports uncompressed GLB)")
	configFile := flag.String("config", "", "Load a PipelineConfig from a YAML file")
	saveConfig := flag.String("save-config", "", "Save the resolved PipelineConfig to a YAML file and exit")
	auditLog := flag.String("audit-log", "reconmesh-audit.log.gz", "Path to the gzip-compressed structured audit log")
	quiet := flag.Bool("quiet", false, "Suppress stage-by-stage progress on stderr")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reconmesh %s\n", version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadYAMLFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg = cfg.ApplyEnv()

	if *tissues != "" {
		cfg.Tissues = strings.Split(*tissues, ",")
		for i := range cfg.Tissues {
			cfg.Tissues[i] = strings.TrimSpace(cfg.Tissues[i])
		}
	}
	if *forceSeriesUID != "" {
		cfg.ForceSeriesUID = *forceSeriesUID
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force-25d" {
			cfg.Force25D = *force25D
		}
	})
	if *decimationMaxFaces > 0 {
		cfg.DecimationMaxFaces = *decimationMaxFaces
	}
	if *compressorPath != "" {
		cfg.CompressorPath = *compressorPath
	}

	if *saveConfig != "" {
		data, err := cfg.ToYAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error serializing config: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*saveConfig, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration saved to %s\n", *saveConfig)
		os.Exit(0)
	}

	if *source == "" {
		fmt.Fprintln(os.Stderr, "Error: --source is required")
		flag.Usage()
		os.Exit(1)
	}
	if *outputPrefix == "" {
		fmt.Fprintln(os.Stderr, "Error: --output-prefix is required")
		flag.Usage()
		os.Exit(1)
	}

	store := blobstore.NewFSStore(*source)
	keys, err := discoverSlices(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", *source, err)
		os.Exit(1)
	}
	if len(keys) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no .dcm files found under %s\n", *source)
		os.Exit(1)
	}

	logger, err := reconlog.Open(*auditLog, !*quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audit log: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	job := model.Job{
		ID:            fmt.Sprintf("reconmesh-%d", time.Now().UnixNano()),
		InputBlobKeys: keys,
		OutputPrefix:  *outputPrefix,
	}

	orch := &pipeline.Orchestrator{Store: store, Logger: logger}
	if !*quiet {
		orch.OnStage = func(name string, elapsed time.Duration) {
			fmt.Fprintf(os.Stderr, "  %-18s %s\n", name, elapsed.Round(time.Millisecond))
		}
	}

	status := orch.Run(context.Background(), job, cfg)
	switch status.Kind {
	case reconerr.StatusCompleted:
		fmt.Printf("✓ reconstructed %s and %s\n", status.OutputSTL, status.OutputGLB)
	case reconerr.StatusFailed:
		fmt.Fprintf(os.Stderr, "✗ %s: %s\n", status.Error.Stage, status.Error.Message)
		os.Exit(1)
	}
}

// discoverSlices walks dir for .dcm files and returns their blob keys
// relative to dir, as required by the FSStore rooted there.
func discoverSlices(dir string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".dcm" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	return keys, err
}
