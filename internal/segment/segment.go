// Package segment implements C5: body/bone/muscle mask production via
// thresholding, morphology and coverage-band auto-tuning, with separate 3D
// and 2.5D bone branches selected by the through-plane anisotropy (spec
// §4.5).
package segment

import (
	"math"
	"sort"

	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/preprocess"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

const stage = "segmenter"

const (
	coverageLow  = 0.008
	coverageHigh = 0.08
)

// Result is the C5 output: one Mask per requested tissue.
type Result struct {
	Masks    map[model.TissueClass]*model.Mask
	Warnings []*reconerr.Error
}

// Run segments v for the requested tissues. use25D selects the bone
// branch (spec §4.3 routes through-plane >=3mm series here).
func Run(v *model.Volume, tissues []model.TissueClass, use25D bool) (*Result, error) {
	res := &Result{Masks: map[model.TissueClass]*model.Mask{}}

	body, err := bodyMask(v)
	if err != nil {
		return nil, err
	}
	res.Masks[model.TissueBody] = body

	for _, t := range tissues {
		switch t {
		case model.TissueBody:
			// already computed
		case model.TissueBone:
			var bone *model.Mask
			var warn *reconerr.Error
			if use25D {
				bone, warn = boneMask25D(v, body)
			} else {
				bone, warn = boneMask3D(v, body)
			}
			if warn != nil {
				res.Warnings = append(res.Warnings, warn)
			}
			res.Masks[model.TissueBone] = bone
		case model.TissueMuscle:
			res.Masks[model.TissueMuscle] = muscleMask(v, body)
		}
	}
	return res, nil
}

// bodyMask: curvature-flow smooth -> Otsu threshold -> morphological
// closing -> connected-component relabel -> keep the largest component
// (spec §4.5 "Body mask").
func bodyMask(v *model.Volume) (*model.Mask, error) {
	sigma := (v.Spacing[0] + v.Spacing[1]) / 2 * 0.6
	smoothed := preprocess.SmoothField(v.Data, v.NX, v.NY, v.NZ, v.Spacing, sigma)

	thresh := otsu(smoothed)
	geom := model.GeometryOf(v)
	m := model.NewMask(geom)
	for i, val := range smoothed {
		if val > thresh {
			m.Data[i] = 1
		}
	}
	m = close3D(m, 1)
	m = keepTopK3D(m, 1)

	if m.Count() == 0 {
		return nil, reconerr.New(reconerr.KindDegenerateGeometry, stage, "body mask is empty after thresholding")
	}
	return m, nil
}

// boneMask3D implements the r<=3 branch (spec §4.5 "Bone mask - 3D
// branch"): inverted intensity + gradient magnitude (no local-contrast
// field is computed), thresholded inside the body mask, then
// opened/closed/hole-filled/top-3.
func boneMask3D(v *model.Volume, body *model.Mask) (*model.Mask, *reconerr.Error) {
	inverted := make([]float64, len(v.Data))
	for i, val := range v.Data {
		inverted[i] = 1 - val
	}
	grad := gradientMagnitude(v)

	insideVals := func(field []float64) []float64 {
		var out []float64
		for i, b := range body.Data {
			if b != 0 {
				out = append(out, field[i])
			}
		}
		return out
	}

	pLoVal := percentileOf(insideVals(inverted), 0.12)
	pGrVal := percentileOf(insideVals(grad), 0.80)

	geom := model.GeometryOf(v)
	m := model.NewMask(geom)
	for i := range v.Data {
		if body.Data[i] == 0 {
			continue
		}
		if inverted[i] >= pLoVal && grad[i] >= pGrVal {
			m.Data[i] = 1
		}
	}

	m = open3D(m, 1) // remove noise first
	m = close3D(m, 1)
	m = fillHoles3D(m)
	m = keepTopK3D(m, 3)

	warn := tuneCoverageBand3D(&m, body)
	return m, warn
}

// boneMask25D implements the through-plane>=3mm branch (spec §4.5 "Bone
// mask - 2.5D branch"): processed slice by slice with a continuity
// constraint, retightening thresholds up to three times before accepting.
func boneMask25D(v *model.Volume, body *model.Mask) (*model.Mask, *reconerr.Error) {
	geom := model.GeometryOf(v)
	out := model.NewMask(geom)

	var prevMask []byte
	var prevArea int
	nonMonotone := 0

	for k := 0; k < v.NZ; k++ {
		inverted := make([]float64, v.NX*v.NY)
		grad := make([]float64, v.NX*v.NY)
		var insideInv, insideGrad []float64
		for j := 0; j < v.NY; j++ {
			for i := 0; i < v.NX; i++ {
				idx := j*v.NX + i
				val := v.At(i, j, k)
				inverted[idx] = 1 - val
				g := gradientMagnitude2D(v, i, j, k)
				grad[idx] = g
				if body.At(i, j, k) != 0 {
					insideInv = append(insideInv, inverted[idx])
					insideGrad = append(insideGrad, g)
				}
			}
		}
		if len(insideInv) == 0 {
			prevMask, prevArea = nil, 0
			continue
		}

		pLo, pGr := 8.0, 85.0
		var candidate []byte
		for attempt := 0; attempt < 4; attempt++ {
			pLoVal := percentileOf(insideInv, pLo/100)
			pGrVal := percentileOf(insideGrad, pGr/100)
			candidate = make([]byte, v.NX*v.NY)
			for idx := range candidate {
				i, j := idx%v.NX, idx/v.NX
				if body.At(i, j, k) != 0 && inverted[idx] >= pLoVal && grad[idx] >= pGrVal {
					candidate[idx] = 1
				}
			}
			candidate = open2D(candidate, v.NX, v.NY, 1)
			candidate = close2D(candidate, v.NX, v.NY, 1)
			candidate = fillHoles2D(candidate, v.NX, v.NY)
			candidate = keepTopK2D(candidate, v.NX, v.NY, 2)

			area := countBytes(candidate)
			if prevMask == nil || overlapFraction(candidate, prevMask, area, prevArea) >= 0.20 || attempt == 3 {
				break
			}
			pLo -= 3
			pGr += 5
			nonMonotone++
		}

		for idx, b := range candidate {
			if b != 0 {
				i, j := idx%v.NX, idx/v.NX
				out.Set(i, j, k, 1)
			}
		}
		prevMask = candidate
		prevArea = countBytes(candidate)
	}

	resampled := resampleMaskIsotropicNearest(out)

	var warn *reconerr.Error
	if cov := coverage(resampled, body); cov > 0 {
		w := tuneCoverageBand3D(&resampled, body)
		if w != nil {
			warn = w
		}
	}
	return resampled, warn
}

func countBytes(b []byte) int {
	n := 0
	for _, v := range b {
		if v != 0 {
			n++
		}
	}
	return n
}

func overlapFraction(a, b []byte, areaA, areaB int) float64 {
	if areaB == 0 {
		return 1 // no predecessor constraint: treat as satisfied
	}
	overlap := 0
	for i := range a {
		if a[i] != 0 && b[i] != 0 {
			overlap++
		}
	}
	return float64(overlap) / float64(areaB)
}

// coverage returns bone/body voxel-count ratio.
func coverage(bone *model.Mask, body *model.Mask) float64 {
	bodyCount := body.Count()
	if bodyCount == 0 {
		return 0
	}
	return float64(bone.Count()) / float64(bodyCount)
}

// tuneCoverageBand3D implements the coverage-band auto-tuning shared by
// both bone branches (spec §4.5 "Coverage-band auto-tuning"): iterate
// aggressive 2D opening then restrict to the largest 2D component per slice
// when coverage is high, closing when low, logging a QualityWarning if the
// final coverage remains out of [0.8%, 8%].
func tuneCoverageBand3D(m **model.Mask, body *model.Mask) *reconerr.Error {
	cov := coverage(*m, body)
	if cov > coverageHigh {
		for attempt := 0; attempt < 3 && coverage(*m, body) > coverageHigh; attempt++ {
			tightened := openPerSlice(*m, 1)
			*m = &tightened
		}
		if coverage(*m, body) > coverageHigh {
			restricted := restrictToLargestPerSlice(*m)
			*m = &restricted
		}
		if coverage(*m, body) > coverageHigh {
			final := open3D(*m, 1)
			*m = final
		}
	} else if cov < coverageLow {
		closed := close3D(*m, 1)
		*m = closed
	}

	final := coverage(*m, body)
	if final < coverageLow || final > coverageHigh {
		return reconerr.New(reconerr.KindQualityWarning, stage, "bone coverage %.3f%% out of band [0.8%%,8%%]", final*100)
	}
	return nil
}

func openPerSlice(m *model.Mask, iterations int) model.Mask {
	out := model.NewMask(m.Geometry)
	for k := 0; k < m.NZ; k++ {
		slice := make([]byte, m.NX*m.NY)
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				slice[j*m.NX+i] = m.At(i, j, k)
			}
		}
		slice = open2D(slice, m.NX, m.NY, iterations)
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				out.Set(i, j, k, slice[j*m.NX+i])
			}
		}
	}
	return *out
}

func restrictToLargestPerSlice(m *model.Mask) model.Mask {
	out := model.NewMask(m.Geometry)
	for k := 0; k < m.NZ; k++ {
		slice := make([]byte, m.NX*m.NY)
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				slice[j*m.NX+i] = m.At(i, j, k)
			}
		}
		slice = keepTopK2D(slice, m.NX, m.NY, 1)
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				out.Set(i, j, k, slice[j*m.NX+i])
			}
		}
	}
	return *out
}

// resampleMaskIsotropicNearest resamples a mask to isotropic spacing with
// nearest-neighbor interpolation: masks must never be interpolated smoothly
// (spec §4.5 "2.5D branch").
func resampleMaskIsotropicNearest(m *model.Mask) *model.Mask {
	target := math.Min(m.Spacing[0], m.Spacing[1])
	if target <= 0 || closeEnough(m.Spacing[2], target) {
		return m
	}
	newNZ := maxInt(2, int(math.Round(float64(m.NZ-1)*m.Spacing[2]/target))+1)
	geom := model.Geometry{NX: m.NX, NY: m.NY, NZ: newNZ, Spacing: model.Vec3{m.Spacing[0], m.Spacing[1], target}, Origin: m.Origin, Orientation: m.Orientation}
	out := model.NewMask(geom)
	scale := float64(m.NZ-1) / float64(maxInt(1, newNZ-1))
	for k := 0; k < newNZ; k++ {
		srcK := int(math.Round(float64(k) * scale))
		if srcK >= m.NZ {
			srcK = m.NZ - 1
		}
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				out.Set(i, j, k, m.At(i, j, srcK))
			}
		}
	}
	return out
}

func closeEnough(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// muscleMask selects the middle-mean cluster of a deterministic 1D 3-means
// over intensity inside the body mask (fat highest, bone lowest, muscle
// between), per spec §4.5 "Muscle mask" and the §9(c) stability decision:
// seeded from data percentiles, no RNG, so repeated runs agree exactly.
func muscleMask(v *model.Volume, body *model.Mask) *model.Mask {
	var vals []float64
	var indices []int
	for i, b := range body.Data {
		if b != 0 {
			vals = append(vals, v.Data[i])
			indices = append(indices, i)
		}
	}
	if len(vals) == 0 {
		return model.NewMask(model.GeometryOf(v))
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	centroids := [3]float64{
		percentileOf(sorted, 0.15),
		percentileOf(sorted, 0.50),
		percentileOf(sorted, 0.85),
	}

	assign := make([]int, len(vals))
	for iter := 0; iter < 20; iter++ {
		changed := false
		for i, val := range vals {
			best, bestDist := 0, math.Abs(val-centroids[0])
			for c := 1; c < 3; c++ {
				d := math.Abs(val - centroids[c])
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assign[i] != best {
				changed = true
				assign[i] = best
			}
		}
		var sums [3]float64
		var counts [3]int
		for i, val := range vals {
			sums[assign[i]] += val
			counts[assign[i]]++
		}
		for c := 0; c < 3; c++ {
			if counts[c] > 0 {
				centroids[c] = sums[c] / float64(counts[c])
			}
		}
		if !changed {
			break
		}
	}

	order := []int{0, 1, 2}
	sort.Slice(order, func(a, b int) bool { return centroids[order[a]] < centroids[order[b]] })
	middleCluster := order[1]

	geom := model.GeometryOf(v)
	m := model.NewMask(geom)
	for i, idx := range indices {
		if assign[i] == middleCluster {
			m.Data[idx] = 1
		}
	}
	m = open3D(m, 1)
	m = removeSmallComponents(m, 27) // small-object removal
	return m
}

func removeSmallComponents(m *model.Mask, minSize int) *model.Mask {
	comps := label3D(m)
	out := model.NewMask(m.Geometry)
	for _, c := range comps {
		if c.size < minSize {
			continue
		}
		for _, idx := range c.indices {
			out.Data[idx] = 1
		}
	}
	return out
}

// gradientMagnitude computes a central-difference 3D gradient magnitude in
// physical units (spec §4.5 "gradient magnitude (cortical edge)").
func gradientMagnitude(v *model.Volume) []float64 {
	out := make([]float64, len(v.Data))
	for k := 0; k < v.NZ; k++ {
		for j := 0; j < v.NY; j++ {
			for i := 0; i < v.NX; i++ {
				gx := centralDiff(v, i, j, k, 0)
				gy := centralDiff(v, i, j, k, 1)
				gz := centralDiff(v, i, j, k, 2)
				out[v.Index(i, j, k)] = math.Sqrt(gx*gx + gy*gy + gz*gz)
			}
		}
	}
	return out
}

func centralDiff(v *model.Volume, i, j, k, axis int) float64 {
	coord := [3]int{i, j, k}
	dims := [3]int{v.NX, v.NY, v.NZ}
	lo, hi := coord, coord
	lo[axis] = maxi(0, coord[axis]-1)
	hi[axis] = mini(dims[axis]-1, coord[axis]+1)
	d := float64(hi[axis] - lo[axis])
	if d == 0 {
		return 0
	}
	return (v.At(hi[0], hi[1], hi[2]) - v.At(lo[0], lo[1], lo[2])) / (d * v.Spacing[axis])
}

// gradientMagnitude2D computes the in-plane gradient magnitude at (i,j,k),
// used by the 2.5D branch (spec §4.5 "2D gradient magnitude").
func gradientMagnitude2D(v *model.Volume, i, j, k int) float64 {
	gx := centralDiff(v, i, j, k, 0)
	gy := centralDiff(v, i, j, k, 1)
	return math.Sqrt(gx*gx + gy*gy)
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func otsu(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return lo
	}
	const bins = 256
	hist := make([]int, bins)
	scale := float64(bins-1) / (hi - lo)
	for _, v := range data {
		hist[int((v-lo)*scale)]++
	}
	total := len(data)
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}
	var sumB, wB float64
	bestVar, bestThresh := -1.0, 0
	for i, c := range hist {
		wB += float64(c)
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(c)
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			bestThresh = i
		}
	}
	return lo + float64(bestThresh+1)/scale
}

// percentileOf returns the p-th percentile (0..1) of an unsorted slice,
// sorting a copy.
func percentileOf(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
