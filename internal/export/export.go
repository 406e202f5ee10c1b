// Package export implements C8: binary STL and binary glTF (GLB) writers,
// plus an optional external Draco compression pass over the GLB (spec
// §4.8).
package export

import (
	"bytes"
	"context"
	"time"

	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

// Result is the C8 output: the two blobs the orchestrator uploads
// atomically (spec §5 "no partial-output commit").
type Result struct {
	STL      []byte
	GLB      []byte
	Warnings []*reconerr.Error
}

// Config controls the optional external Draco pass.
type Config struct {
	CompressorPath    string
	CompressorTimeout time.Duration
	Draco             DracoParams
}

// Run produces STL and GLB bytes for mesh, attempting Draco compression of
// the GLB when a compressor is configured; a compressor failure is logged
// as a warning and the uncompressed GLB is kept (spec §4.8).
func Run(ctx context.Context, mesh *model.Mesh, cfg Config) (*Result, error) {
	var stlBuf bytes.Buffer
	if err := WriteSTL(&stlBuf, mesh); err != nil {
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "failed to encode STL")
	}

	var glbBuf bytes.Buffer
	if err := WriteGLB(&glbBuf, mesh); err != nil {
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "failed to encode GLB")
	}

	res := &Result{STL: stlBuf.Bytes(), GLB: glbBuf.Bytes()}

	if cfg.CompressorPath != "" {
		timeout := cfg.CompressorTimeout
		if timeout <= 0 {
			timeout = 300 * time.Second
		}
		compressed, warn := CompressGLB(ctx, cfg.CompressorPath, timeout, res.GLB, cfg.Draco)
		if warn != nil {
			res.Warnings = append(res.Warnings, warn)
		} else {
			res.GLB = compressed
		}
	}

	return res, nil
}
