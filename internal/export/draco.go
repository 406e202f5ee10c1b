package export

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/mrsinham/reconmesh/internal/reconerr"
)

const stage = "exporter"

// DracoParams are the geometry compression quantization bits and
// compression level passed to the external compressor (spec §4.8).
type DracoParams struct {
	PositionBits int
	NormalBits   int
	ColorBits    int
	TexCoordBits int
	Level        int
}

// DefaultDracoParams matches the spec's named defaults.
func DefaultDracoParams() DracoParams {
	return DracoParams{PositionBits: 14, NormalBits: 10, ColorBits: 8, TexCoordBits: 12, Level: 10}
}

// CompressGLB runs the configured external Draco compressor over an
// uncompressed GLB file, returning the compressed bytes. Failure (missing
// binary, non-zero exit, or timeout) is reported as a StageRecoverable
// warning, never fatal: callers fall back to the uncompressed GLB (spec
// §4.8).
func CompressGLB(ctx context.Context, compressorPath string, timeout time.Duration, uncompressed []byte, params DracoParams) ([]byte, *reconerr.Error) {
	if compressorPath == "" {
		return nil, reconerr.New(reconerr.KindStageRecoverable, stage, "no external compressor configured, falling back to uncompressed GLB")
	}

	tmpIn, err := os.CreateTemp("", "reconmesh-in-*.glb")
	if err != nil {
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "failed to create compressor input temp file")
	}
	defer os.Remove(tmpIn.Name())
	if _, err := tmpIn.Write(uncompressed); err != nil {
		tmpIn.Close()
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "failed to write compressor input")
	}
	tmpIn.Close()

	tmpOut, err := os.CreateTemp("", "reconmesh-out-*.glb")
	if err != nil {
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "failed to create compressor output temp file")
	}
	tmpOut.Close()
	defer os.Remove(tmpOut.Name())

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-i", tmpIn.Name(),
		"-o", tmpOut.Name(),
		"-qp", strconv.Itoa(params.PositionBits),
		"-qn", strconv.Itoa(params.NormalBits),
		"-qc", strconv.Itoa(params.ColorBits),
		"-qt", strconv.Itoa(params.TexCoordBits),
		"-cl", strconv.Itoa(params.Level),
	}
	cmd := exec.CommandContext(timeoutCtx, compressorPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, reconerr.New(reconerr.KindStageRecoverable, stage, "external compressor timed out after %s", timeout)
		}
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "external compressor failed: %s", stderr.String())
	}

	compressed, err := os.ReadFile(tmpOut.Name())
	if err != nil {
		return nil, reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "failed to read compressor output")
	}
	return compressed, nil
}
