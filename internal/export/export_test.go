package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/mrsinham/reconmesh/internal/model"
)

func triangleMesh() *model.Mesh {
	return &model.Mesh{
		Vertices:  []model.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Triangles: [][3]int{{0, 1, 2}},
	}
}

func TestWriteSTLHeaderAndCount(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSTL(&buf, triangleMesh()); err != nil {
		t.Fatalf("WriteSTL: %v", err)
	}
	if buf.Len() != 80+4+50 {
		t.Fatalf("expected 80+4+50 bytes for one triangle, got %d", buf.Len())
	}
}

func TestWriteGLBMagicAndVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGLB(&buf, triangleMesh()); err != nil {
		t.Fatalf("WriteGLB: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 12 {
		t.Fatal("GLB too short for header")
	}
	magic := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	if magic != glbMagic {
		t.Fatalf("expected glTF magic, got %x", magic)
	}
}

func TestRunFallsBackWithoutCompressor(t *testing.T) {
	res, err := Run(context.Background(), triangleMesh(), Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.GLB) == 0 || len(res.STL) == 0 {
		t.Fatal("expected both GLB and STL bytes")
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings when no compressor is configured, got %v", res.Warnings)
	}
}

func TestCompressGLBNoCompressorConfigured(t *testing.T) {
	_, warn := CompressGLB(context.Background(), "", 0, []byte("glb"), DefaultDracoParams())
	if warn == nil {
		t.Fatal("expected a warning when no compressor path is configured")
	}
}
