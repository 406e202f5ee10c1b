package fuse

import (
	"testing"

	"github.com/mrsinham/reconmesh/internal/model"
)

func blockVolume(n int, offset model.Vec3) *model.Volume {
	v := &model.Volume{
		NX: n, NY: n, NZ: n,
		Spacing:     model.Vec3{1, 1, 1},
		Origin:      offset,
		Orientation: model.Identity3(),
		Data:        make([]float64, n*n*n),
	}
	lo, hi := n/3, 2*n/3
	for k := lo; k < hi; k++ {
		for j := lo; j < hi; j++ {
			for i := lo; i < hi; i++ {
				v.Set(i, j, k, 1)
			}
		}
	}
	return v
}

func TestFuseMaxCombinesVoxels(t *testing.T) {
	fixed := blockVolume(12, model.Vec3{})
	moving := blockVolume(12, model.Vec3{})
	res := Fuse(fixed, []*model.Volume{moving})
	if res.Fused.NumVoxels() != fixed.NumVoxels() {
		t.Fatalf("fused volume grid mismatch")
	}
	if len(res.Transforms) != 1 {
		t.Fatalf("expected one transform, got %d", len(res.Transforms))
	}
}

func TestCenteredInitMapsFixedCenterOntoMovingCenter(t *testing.T) {
	fixed := blockVolume(10, model.Vec3{})
	moving := blockVolume(10, model.Vec3{5, 0, 0})
	xform := centeredInit(fixed, moving)
	if xform.Translation[0] <= 0 {
		t.Fatalf("expected a positive x translation mapping the fixed center onto the moving center, got %v", xform.Translation[0])
	}
}

func TestMattesMIIdenticalVolumesIsHigh(t *testing.T) {
	v := blockVolume(10, model.Vec3{})
	mi := mattesMI(v, v, Identity())
	if mi <= 0 {
		t.Fatalf("expected positive mutual information for identical volumes, got %v", mi)
	}
}

func TestSampleTrilinearOutOfBounds(t *testing.T) {
	v := blockVolume(8, model.Vec3{})
	_, ok := sampleTrilinear(v, model.Vec3{1000, 1000, 1000})
	if ok {
		t.Fatal("expected out-of-bounds sample to report ok=false")
	}
}
