package seriesselector

import (
	"testing"

	"github.com/mrsinham/reconmesh/internal/model"
)

// makeSeries builds a synthetic series of n slices, each with thickness mm
// slice thickness and ps mm in-plane spacing, tagged with seq as its
// SequenceName (so volumetric-keyword scoring can be exercised).
func makeSeries(n int, thickness, ps float64, seq string) *model.Series {
	slices := make([]model.Slice, n)
	for k := 0; k < n; k++ {
		slices[k] = model.Slice{
			InstanceIndex:    k,
			Rows:             32,
			Columns:          32,
			PixelSpacing:     [2]float64{ps, ps},
			SliceThickness:   thickness,
			HasPosition:      true,
			Position:         model.Vec3{0, 0, float64(k) * thickness},
			HasOrientation:   true,
			RowAxis:          model.Vec3{1, 0, 0},
			ColAxis:          model.Vec3{0, 1, 0},
			RescaleSlope:     1,
			RescaleIntercept: 0,
		}
	}
	return &model.Series{SequenceName: seq, Slices: slices}
}

func TestSelect_PrefersVolumetricThinSliceSeries(t *testing.T) {
	series := map[string]*model.Series{
		"thick-2d":  makeSeries(20, 5.0, 0.8, "T2"),
		"thin-3d":   makeSeries(160, 1.0, 0.8, "MPRAGE"),
	}

	sel := Select(series, "", 200, 3)
	if sel.Primary.SeriesUID != "thin-3d" {
		t.Errorf("Primary = %q, want thin-3d", sel.Primary.SeriesUID)
	}
	if len(sel.Alternates) != 1 || sel.Alternates[0].SeriesUID != "thick-2d" {
		t.Errorf("Alternates = %+v, want [thick-2d]", sel.Alternates)
	}
}

func TestSelect_ForceSeriesUIDOverridesScore(t *testing.T) {
	series := map[string]*model.Series{
		"thick-2d": makeSeries(20, 5.0, 0.8, "T2"),
		"thin-3d":  makeSeries(160, 1.0, 0.8, "MPRAGE"),
	}

	sel := Select(series, "thick-2d", 200, 3)
	if sel.Primary.SeriesUID != "thick-2d" {
		t.Errorf("Primary = %q, want thick-2d (forced)", sel.Primary.SeriesUID)
	}

	var sawOverride bool
	for _, r := range sel.Primary.Rationale {
		if r == "selected via FORCE_SERIES_UID override" {
			sawOverride = true
		}
	}
	if !sawOverride {
		t.Error("expected the forced candidate's rationale to record the override")
	}
}

func TestSelect_SingleSeriesDisablesFusion(t *testing.T) {
	series := map[string]*model.Series{
		"only": makeSeries(100, 1.0, 0.8, "MPRAGE"),
	}

	sel := Select(series, "", 200, 3)
	if sel.FusionUsable {
		t.Error("expected FusionUsable = false with a single series")
	}
}

func TestSelect_MemoryGuardDisablesFusionOnTooManySlices(t *testing.T) {
	series := map[string]*model.Series{
		"a": makeSeries(150, 1.0, 0.8, "MPRAGE"),
		"b": makeSeries(150, 1.0, 0.8, "T2"),
	}

	sel := Select(series, "", 200, 10)
	if sel.FusionUsable {
		t.Error("expected FusionUsable = false when total slices exceed the memory guard")
	}
}

func TestSelect_MemoryGuardDisablesFusionOnTooManySeries(t *testing.T) {
	series := map[string]*model.Series{
		"a": makeSeries(10, 1.0, 0.8, "MPRAGE"),
		"b": makeSeries(10, 1.0, 0.8, "T2"),
		"c": makeSeries(10, 1.0, 0.8, "T1"),
	}

	sel := Select(series, "", 200, 3)
	if sel.FusionUsable {
		t.Error("expected FusionUsable = false when series count meets the memory guard's series cap")
	}
}

func TestSelect_EmptySeriesMapReturnsZeroValue(t *testing.T) {
	sel := Select(map[string]*model.Series{}, "", 200, 3)
	if sel.Primary.SeriesUID != "" {
		t.Errorf("Primary.SeriesUID = %q, want empty for no candidates", sel.Primary.SeriesUID)
	}
	if len(sel.Alternates) != 0 {
		t.Errorf("Alternates = %+v, want empty", sel.Alternates)
	}
}
