package segment

import (
	"testing"

	"github.com/mrsinham/reconmesh/internal/model"
)

func sphereVolume(n int) *model.Volume {
	v := &model.Volume{
		NX: n, NY: n, NZ: n,
		Spacing:     model.Vec3{1, 1, 1},
		Orientation: model.Identity3(),
		Data:        make([]float64, n*n*n),
	}
	c := float64(n) / 2
	r := float64(n) / 3
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				dx, dy, dz := float64(i)-c, float64(j)-c, float64(k)-c
				d := dx*dx + dy*dy + dz*dz
				val := 0.1
				if d <= r*r {
					val = 0.9
				}
				v.Set(i, j, k, val)
			}
		}
	}
	return v
}

func TestBodyMaskKeepsLargestComponent(t *testing.T) {
	v := sphereVolume(24)
	m, err := bodyMask(v)
	if err != nil {
		t.Fatalf("bodyMask: %v", err)
	}
	if m.Count() == 0 {
		t.Fatal("expected non-empty body mask")
	}
	comps := label3D(m)
	if len(comps) != 1 {
		t.Fatalf("expected a single connected component after top-1 filtering, got %d", len(comps))
	}
}

func TestBodyMaskEmptyVolumeErrors(t *testing.T) {
	v := &model.Volume{NX: 4, NY: 4, NZ: 4, Spacing: model.Vec3{1, 1, 1}, Data: make([]float64, 64)}
	_, err := bodyMask(v)
	if err == nil {
		t.Fatal("expected an error for a uniform-intensity volume")
	}
}

func TestRunSegmentsAllRequestedTissues(t *testing.T) {
	v := sphereVolume(20)
	res, err := Run(v, []model.TissueClass{model.TissueBody, model.TissueBone, model.TissueMuscle}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, tc := range []model.TissueClass{model.TissueBody, model.TissueBone, model.TissueMuscle} {
		if _, ok := res.Masks[tc]; !ok {
			t.Errorf("missing mask for tissue %s", tc)
		}
	}
}

func TestBoneMask25DReturnsMask(t *testing.T) {
	v := sphereVolume(16)
	body, err := bodyMask(v)
	if err != nil {
		t.Fatalf("bodyMask: %v", err)
	}
	bone, _ := boneMask25D(v, body)
	if bone == nil {
		t.Fatal("expected a non-nil bone mask")
	}
}

func TestMuscleMaskReturnsMask(t *testing.T) {
	v := sphereVolume(16)
	body, _ := bodyMask(v)
	m := muscleMask(v, body)
	if m == nil {
		t.Fatal("expected a non-nil muscle mask")
	}
}

func TestOverlapFractionNoPredecessor(t *testing.T) {
	a := []byte{1, 1, 0}
	if f := overlapFraction(a, nil, 2, 0); f != 1 {
		t.Fatalf("expected 1 with no predecessor area, got %v", f)
	}
}

func TestOtsuSeparatesTwoModes(t *testing.T) {
	data := make([]float64, 0, 200)
	for i := 0; i < 100; i++ {
		data = append(data, 0.1)
	}
	for i := 0; i < 100; i++ {
		data = append(data, 0.9)
	}
	th := otsu(data)
	if th <= 0.1 || th >= 0.9 {
		t.Fatalf("expected threshold strictly between the two modes, got %v", th)
	}
}
