// Package seriesselector implements C2: scoring candidate series for
// 3D-reconstruction suitability, picking a primary series, and applying the
// memory-guard heuristic that disables multi-plane fusion for large inputs
// (spec §4.2).
package seriesselector

import (
	"sort"
	"strings"

	"github.com/mrsinham/reconmesh/internal/model"
)

// Candidate is one scored series plus the rationale recorded for it.
type Candidate struct {
	SeriesUID string
	Score     int
	Rationale []string
	NumSlices int
	// ThroughPlaneSpacing is an estimate (median instance-index-adjacent
	// SliceThickness) used only for tie-breaking before assembly computes
	// the true spacing.
	ThroughPlaneSpacing float64
}

// Selection is the C2 output: the primary series plus ranked alternates.
type Selection struct {
	Primary     Candidate
	Alternates  []Candidate
	FusionUsable bool // false when the §4.2 memory guard disables C6 or there is only one series
}

var volumetricKeywords = []string{"MPRAGE", "SPGR", "VIBE", "THRIVE", "BRAVO", "3D", "FSPGR"}

// Select scores every series and returns the primary plus alternates.
// forceSeriesUID, when non-empty, wins unconditionally (spec §4.2 override).
func Select(series map[string]*model.Series, forceSeriesUID string, memoryGuardMaxSlices, memoryGuardMaxSeries int) Selection {
	candidates := make([]Candidate, 0, len(series))
	totalSlices := 0
	for uid, s := range series {
		c := score(uid, s)
		candidates = append(candidates, c)
		totalSlices += c.NumSlices
	}

	sort.Slice(candidates, func(i, j int) bool {
		return less(candidates[j], candidates[i]) // descending: candidates[i] should sort before j when i "wins"
	})

	sel := Selection{FusionUsable: true}

	if forceSeriesUID != "" {
		for i, c := range candidates {
			if c.SeriesUID == forceSeriesUID {
				sel.Primary = c
				sel.Alternates = append(append([]Candidate{}, candidates[:i]...), candidates[i+1:]...)
				sel.Primary.Rationale = append(sel.Primary.Rationale, "selected via FORCE_SERIES_UID override")
				sel.FusionUsable = fusionUsable(totalSlices, len(candidates), memoryGuardMaxSlices, memoryGuardMaxSeries)
				return sel
			}
		}
	}

	if len(candidates) > 0 {
		sel.Primary = candidates[0]
		sel.Alternates = candidates[1:]
	}
	sel.FusionUsable = fusionUsable(totalSlices, len(candidates), memoryGuardMaxSlices, memoryGuardMaxSeries)
	return sel
}

// fusionUsable implements the §4.2 edge-case policy: more than
// memoryGuardMaxSlices slices total, or at least memoryGuardMaxSeries
// series, disables multi-plane fusion.
func fusionUsable(totalSlices, numSeries, maxSlices, maxSeries int) bool {
	if numSeries < 2 {
		return false // nothing to fuse
	}
	if totalSlices > maxSlices {
		return false
	}
	if numSeries >= maxSeries {
		return false
	}
	return true
}

// less reports whether a should be ranked ahead of b: higher score first,
// then more slices, then smaller through-plane spacing (spec §4.2 tie-break,
// §8 "Two series of identical score").
func less(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.NumSlices != b.NumSlices {
		return a.NumSlices < b.NumSlices
	}
	return a.ThroughPlaneSpacing > b.ThroughPlaneSpacing
}

func score(uid string, s *model.Series) Candidate {
	c := Candidate{SeriesUID: uid, NumSlices: len(s.Slices)}
	if len(s.Slices) == 0 {
		return c
	}

	seq := strings.ToUpper(s.SequenceName + " " + s.SeriesDescription)
	for _, kw := range volumetricKeywords {
		if strings.Contains(seq, kw) {
			c.Score += 100
			c.Rationale = append(c.Rationale, "volumetric acquisition keyword "+kw)
			break
		}
	}

	thickness := medianThickness(s)
	c.ThroughPlaneSpacing = thickness
	switch {
	case thickness <= 1.2:
		c.Score += 40
		c.Rationale = append(c.Rationale, "thin slices (<=1.2mm)")
	case thickness <= 1.5:
		c.Score += 25
		c.Rationale = append(c.Rationale, "thin slices (<=1.5mm)")
	case thickness <= 2.0:
		c.Score += 10
		c.Rationale = append(c.Rationale, "moderate slices (<=2.0mm)")
	default:
		c.Score -= 20
		c.Rationale = append(c.Rationale, "thick slices (>2.0mm), penalized")
	}

	if r, ok := spacingBetweenOverThickness(s); ok && r >= 0.9 && r <= 1.1 {
		c.Score += 20
		c.Rationale = append(c.Rationale, "contiguous slices (spacing/thickness in [0.9,1.1])")
	}

	if inPlane := meanInPlaneSpacing(s.Slices[0]); inPlane <= 0.5 {
		c.Score += 10
		c.Rationale = append(c.Rationale, "fine in-plane spacing (<=0.5mm)")
	}

	if len(s.Slices) >= 50 {
		c.Score += 10
		c.Rationale = append(c.Rationale, "at least 50 slices")
	}

	return c
}

func meanInPlaneSpacing(sl model.Slice) float64 {
	return (sl.PixelSpacing[0] + sl.PixelSpacing[1]) / 2
}

func medianThickness(s *model.Series) float64 {
	vals := make([]float64, 0, len(s.Slices))
	for _, sl := range s.Slices {
		if sl.SliceThickness > 0 {
			vals = append(vals, sl.SliceThickness)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return vals[len(vals)/2]
}

// spacingBetweenOverThickness estimates the ratio of spacing-between-slices
// to slice thickness from consecutive instance positions, when positions
// are available; used only for scoring, not for the authoritative value
// computed by the volume assembler.
func spacingBetweenOverThickness(s *model.Series) (float64, bool) {
	positioned := make([]model.Slice, 0, len(s.Slices))
	for _, sl := range s.Slices {
		if sl.HasPosition && sl.HasOrientation {
			positioned = append(positioned, sl)
		}
	}
	if len(positioned) < 2 {
		return 0, false
	}
	sort.Slice(positioned, func(i, j int) bool {
		ni := positioned[i].Normal()
		return positioned[i].Position.Dot(ni) < positioned[j].Position.Dot(ni)
	})
	n := positioned[0].Normal()
	d0 := positioned[0].Position.Dot(n)
	d1 := positioned[1].Position.Dot(n)
	spacing := d1 - d0
	if spacing < 0 {
		spacing = -spacing
	}
	thickness := positioned[0].SliceThickness
	if thickness <= 0 {
		return 0, false
	}
	return spacing / thickness, true
}
