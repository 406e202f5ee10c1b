package surface

import (
	"testing"

	"github.com/mrsinham/reconmesh/internal/model"
)

func sphereMask(n int) *model.Mask {
	g := model.Geometry{NX: n, NY: n, NZ: n, Spacing: model.Vec3{1, 1, 1}, Orientation: model.Identity3()}
	m := model.NewMask(g)
	c := float64(n) / 2
	r := float64(n) / 3
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				dx, dy, dz := float64(i)-c, float64(j)-c, float64(k)-c
				if dx*dx+dy*dy+dz*dz <= r*r {
					m.Set(i, j, k, 1)
				}
			}
		}
	}
	return m
}

func TestExtractProducesNonEmptyMesh(t *testing.T) {
	m := sphereMask(20)
	mesh, err := Extract(m, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if mesh.NumTriangles() == 0 {
		t.Fatal("expected a non-empty mesh for a spherical mask")
	}
	if len(mesh.Vertices) == 0 {
		t.Fatal("expected vertices")
	}
}

func TestExtractEmptyMaskErrors(t *testing.T) {
	m := sphereMask(8)
	for i := range m.Data {
		m.Data[i] = 0
	}
	_, err := Extract(m, Options{})
	if err == nil {
		t.Fatal("expected an error for an empty mask")
	}
}

func TestMarchingCubesMidpointRetry(t *testing.T) {
	sdf := make([]float64, 4*4*4)
	for i := range sdf {
		sdf[i] = 5 // uniformly outside level 0
	}
	_, _, err := marchingCubes(sdf, 4, 4, 4, model.Vec3{1, 1, 1})
	if err == nil {
		t.Fatal("expected an error when even the midpoint retry finds no surface")
	}
}

func TestRemoveDegenerateDropsZeroAreaTriangles(t *testing.T) {
	mesh := &model.Mesh{
		Vertices:  []model.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Triangles: [][3]int{{0, 1, 2}, {0, 1, 3}},
	}
	out := removeDegenerate(mesh)
	if out.NumTriangles() != 1 {
		t.Fatalf("expected 1 surviving triangle, got %d", out.NumTriangles())
	}
}
