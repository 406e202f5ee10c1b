package volumeassembler

import (
	"testing"

	"github.com/mrsinham/reconmesh/internal/model"
)

// makeSeries builds a synthetic oriented, positioned series of n slices,
// each rows x cols, in-plane spacing ps (mm), spaced dz mm apart along Z.
func makeSeries(n, rows, cols int, ps, dz float64) *model.Series {
	slices := make([]model.Slice, n)
	for k := 0; k < n; k++ {
		pixels := make([]uint16, rows*cols)
		for i := range pixels {
			pixels[i] = 100
		}
		slices[k] = model.Slice{
			SeriesUID:        "1.2.3",
			SOPInstanceUID:   "1.2.3.4",
			InstanceIndex:    k,
			Rows:             rows,
			Columns:          cols,
			PixelSpacing:     [2]float64{ps, ps},
			HasPosition:      true,
			Position:         model.Vec3{0, 0, float64(k) * dz},
			HasOrientation:   true,
			RowAxis:          model.Vec3{1, 0, 0},
			ColAxis:          model.Vec3{0, 1, 0},
			SliceThickness:   dz,
			Pixels:           pixels,
			RescaleSlope:     1,
			RescaleIntercept: 0,
		}
	}
	return &model.Series{SeriesUID: "1.2.3", Modality: "MR", Slices: slices}
}

func TestAssemble_IsotropicSeriesNoResampling(t *testing.T) {
	s := makeSeries(160, 32, 32, 1.0, 1.0)
	res, err := Assemble(s)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Use25D {
		t.Error("expected the 3D branch for an isotropic series")
	}
	if res.Anisotropy < 0.9 || res.Anisotropy > 1.1 {
		t.Errorf("anisotropy = %.2f, want ~1.0", res.Anisotropy)
	}
	if res.Volume.NZ != 160 {
		t.Errorf("NZ = %d, want 160 (no resampling)", res.Volume.NZ)
	}
}

func TestAssemble_ThickStackUses25D(t *testing.T) {
	s := makeSeries(30, 64, 64, 0.5, 5.0)
	res, err := Assemble(s)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !res.Use25D {
		t.Error("expected the 2.5D branch for a thick-stack series")
	}
	if res.Anisotropy < 9 || res.Anisotropy > 11 {
		t.Errorf("anisotropy = %.2f, want ~10", res.Anisotropy)
	}
	if res.Volume.NZ != 30 {
		t.Errorf("NZ = %d, want 30 (2.5D branch skips resampling)", res.Volume.NZ)
	}
}

func TestAssemble_TooFewSlicesErrors(t *testing.T) {
	s := makeSeries(1, 16, 16, 1.0, 1.0)
	if _, err := Assemble(s); err == nil {
		t.Error("expected an error for a single-slice series")
	}
}

func TestAssemble_OutlierSliceDropped(t *testing.T) {
	s := makeSeries(20, 32, 32, 1.0, 1.0)
	// Push one interior slice far out of the regular spacing.
	s.Slices[10].Position = model.Vec3{0, 0, 50}

	res, err := Assemble(s)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Volume.NZ >= 20 {
		t.Errorf("NZ = %d, expected the outlier slice to be dropped", res.Volume.NZ)
	}
}

func TestAssemble_FallsBackToInstanceOrderWithoutOrientation(t *testing.T) {
	s := makeSeries(5, 16, 16, 1.0, 1.0)
	for i := range s.Slices {
		s.Slices[i].HasOrientation = false
	}
	res, err := Assemble(s)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Volume.NZ != 5 {
		t.Errorf("NZ = %d, want 5", res.Volume.NZ)
	}
}
