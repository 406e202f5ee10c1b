// Package volumeassembler implements C3: slice ordering, outlier removal,
// 3D assembly, canonical reorientation, and the anisotropic resampling
// decision (spec §4.3).
package volumeassembler

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"

	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

const stage = "volume_assembler"

// Result is the C3 output.
type Result struct {
	Volume     *model.Volume
	Use25D     bool // through-plane spacing >= 3mm: routed to the 2.5D branch
	Anisotropy float64
	Warnings   []*reconerr.Error
	CV         float64 // coefficient of variation of slice spacing
}

// Assemble builds a canonicalized Volume from one Series (spec §4.3).
func Assemble(s *model.Series) (*Result, error) {
	if len(s.Slices) < 2 {
		return nil, reconerr.New(reconerr.KindInvalidInput, stage, "series %s has %d slice(s), need >=2 to form a volume", s.SeriesUID, len(s.Slices))
	}

	ordered, normal, rowAxis, colAxis := order(s.Slices)

	kept, spacing, cv := removeOutliers(ordered, normal)
	if len(kept) < 2 {
		return nil, reconerr.New(reconerr.KindDegenerateGeometry, stage, "series %s: fewer than 2 slices survive outlier removal", s.SeriesUID)
	}

	res := &Result{CV: cv}
	if cv > 0.10 {
		res.Warnings = append(res.Warnings, reconerr.New(reconerr.KindQualityWarning, stage, "slice spacing CV %.1f%% exceeds 10%%", cv*100))
	}

	first := kept[0]
	vol := &model.Volume{
		NX: first.Columns,
		NY: first.Rows,
		NZ: len(kept),
		Spacing: model.Vec3{first.PixelSpacing[1], first.PixelSpacing[0], spacing},
		Origin:  first.Position,
		Orientation: model.Mat3{colAxis, rowAxis, normal},
	}
	if vol.NX < 2 || vol.NY < 2 || vol.NZ < 2 {
		return nil, reconerr.New(reconerr.KindDegenerateGeometry, stage, "assembled volume has a dimension < 2 (%d,%d,%d)", vol.NX, vol.NY, vol.NZ)
	}
	vol.Data = make([]float64, vol.NumVoxels())
	for k, sl := range kept {
		for j := 0; j < vol.NY && j < sl.Rows; j++ {
			for i := 0; i < vol.NX && i < sl.Columns; i++ {
				raw := 0.0
				if idx := j*sl.Columns + i; idx < len(sl.Pixels) {
					raw = float64(sl.Pixels[idx])*sl.RescaleSlope + sl.RescaleIntercept
				}
				vol.Set(i, j, k, raw)
			}
		}
	}

	vol = reorient(vol)
	res.Volume = vol

	r, meanInPlane := anisotropy(vol)
	res.Anisotropy = r

	throughPlane := vol.Spacing[2]
	if throughPlane >= 3.0 {
		res.Use25D = true
		if r > 3 {
			res.Warnings = append(res.Warnings, reconerr.New(reconerr.KindQualityWarning, stage, "low-quality expected: anisotropy r=%.2f", r))
		}
		return res, nil
	}

	if r > 1.5 {
		target := isoTarget(r, meanInPlane)
		res.Volume = resampleIsotropic(vol, target)
	}
	if r > 3 {
		res.Warnings = append(res.Warnings, reconerr.New(reconerr.KindQualityWarning, stage, "low-quality expected: anisotropy r=%.2f", r))
	}
	return res, nil
}

// order computes the slice normal from the first oriented slice, sorts by
// projection onto it, and falls back to instance-index order when any
// slice lacks orientation (spec §4.3 step 1).
func order(slices []model.Slice) (ordered []model.Slice, normal, rowAxis, colAxis model.Vec3) {
	ordered = append([]model.Slice(nil), slices...)

	allOriented := true
	for _, sl := range ordered {
		if !sl.HasOrientation {
			allOriented = false
			break
		}
	}

	if !allOriented {
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].InstanceIndex < ordered[j].InstanceIndex })
		rowAxis, colAxis = model.Vec3{1, 0, 0}, model.Vec3{0, 1, 0}
		normal = rowAxis.Cross(colAxis)
		return ordered, normal, rowAxis, colAxis
	}

	rowAxis, colAxis = ordered[0].RowAxis, ordered[0].ColAxis
	normal = rowAxis.Cross(colAxis)

	havePositions := true
	for _, sl := range ordered {
		if !sl.HasPosition {
			havePositions = false
			break
		}
	}
	if havePositions {
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].Position.Dot(normal) < ordered[j].Position.Dot(normal)
		})
	} else {
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].InstanceIndex < ordered[j].InstanceIndex })
	}
	return ordered, normal, rowAxis, colAxis
}

// removeOutliers drops slices whose projection delta from the predecessor
// diverges from the median delta by more than 20% (spec §4.3 step 2), and
// reports the coefficient of variation of the (pre-removal) deltas.
func removeOutliers(ordered []model.Slice, normal model.Vec3) (kept []model.Slice, spacing, cv float64) {
	if len(ordered) < 2 {
		return ordered, 0, 0
	}
	havePositions := ordered[0].HasPosition
	if !havePositions {
		spacing = medianThicknessOf(ordered)
		return ordered, spacing, 0
	}

	deltas := make([]float64, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		d := ordered[i].Position.Dot(normal) - ordered[i-1].Position.Dot(normal)
		deltas = append(deltas, d)
	}
	m := median(deltas)
	cv = coefficientOfVariation(deltas)

	kept = []model.Slice{ordered[0]}
	keptDeltas := make([]float64, 0, len(deltas))
	prev := ordered[0]
	for i := 1; i < len(ordered); i++ {
		d := ordered[i].Position.Dot(normal) - prev.Position.Dot(normal)
		if m != 0 && math.Abs(d-m)/math.Abs(m) > 0.20 {
			continue // drop outlier slice
		}
		kept = append(kept, ordered[i])
		keptDeltas = append(keptDeltas, d)
		prev = ordered[i]
	}
	spacing = median(keptDeltas)
	if spacing == 0 {
		spacing = m
	}
	if spacing < 0 {
		spacing = -spacing
	}
	return kept, spacing, cv
}

func medianThicknessOf(slices []model.Slice) float64 {
	vals := make([]float64, 0, len(slices))
	for _, s := range slices {
		if s.SliceThickness > 0 {
			vals = append(vals, s.SliceThickness)
		}
	}
	return median(vals)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func coefficientOfVariation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if mean == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	sd := math.Sqrt(sumSq / float64(len(xs)))
	return math.Abs(sd / mean)
}

// anisotropy returns r = through-plane spacing / mean in-plane spacing and
// the mean in-plane spacing itself (spec §4.3 step 5).
func anisotropy(v *model.Volume) (r, meanInPlane float64) {
	meanInPlane = (v.Spacing[0] + v.Spacing[1]) / 2
	if meanInPlane == 0 {
		return 0, 0
	}
	return v.Spacing[2] / meanInPlane, meanInPlane
}

// isoTarget chooses the isotropic target spacing as a function of r (spec
// §4.3 step 5).
func isoTarget(r, inPlane float64) float64 {
	switch {
	case r <= 1.5:
		return clamp(inPlane, 0.6, 0.8)
	case r <= 3.0:
		// linear interpolation across the 1.0-1.2mm tier as r goes 1.5->3.0
		t := (r - 1.5) / 1.5
		return 1.0 + 0.2*t
	default:
		// memory guard: never finer than 1.2mm once through-plane is this
		// coarse, capped so the resampled grid stays bounded.
		return clamp(1.2+0.1*(r-3.0), 1.2, 2.0)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// reorient permutes and flips the volume's axes so its orientation columns
// are the closest signed permutation of the canonical basis (a right-handed
// axis convention later stages can assume is near-identity), per spec §4.3
// step 4. Reorientation is idempotent: applying it to an already-canonical
// volume is a no-op (spec §8).
func reorient(v *model.Volume) *model.Volume {
	perm, signs := canonicalPermutation(v.Orientation)
	if perm == [3]int{0, 1, 2} && signs == [3]float64{1, 1, 1} {
		return v // already canonical
	}

	dims := [3]int{v.NX, v.NY, v.NZ}
	newDims := [3]int{dims[perm[0]], dims[perm[1]], dims[perm[2]]}
	out := &model.Volume{
		NX: newDims[0], NY: newDims[1], NZ: newDims[2],
		Spacing: model.Vec3{v.Spacing[perm[0]], v.Spacing[perm[1]], v.Spacing[perm[2]]},
		Origin:  v.Origin,
		Data:    make([]float64, v.NumVoxels()),
	}
	for a := 0; a < 3; a++ {
		out.Orientation[a] = v.Orientation[perm[a]].Scale(signs[a])
	}

	for k := 0; k < out.NZ; k++ {
		for j := 0; j < out.NY; j++ {
			for i := 0; i < out.NX; i++ {
				newIdx := [3]int{i, j, k}
				oldIdx := [3]int{0, 0, 0}
				for a := 0; a < 3; a++ {
					coord := newIdx[a]
					if signs[a] < 0 {
						coord = dims[perm[a]] - 1 - coord
					}
					oldIdx[perm[a]] = coord
				}
				out.Set(i, j, k, v.At(oldIdx[0], oldIdx[1], oldIdx[2]))
			}
		}
	}
	return out
}

// canonicalPermutation finds, for each output axis (right-to-left,
// anterior-to-posterior-ish ordering), which input axis and sign aligns
// with it best. Ties favor the identity permutation so an already-canonical
// volume round-trips unchanged.
func canonicalPermutation(o model.Mat3) (perm [3]int, signs [3]float64) {
	perm = [3]int{0, 1, 2}
	used := [3]bool{}
	for a := 0; a < 3; a++ {
		best, bestDot, bestSign := -1, -1.0, 1.0
		for c := 0; c < 3; c++ {
			if used[c] {
				continue
			}
			col := o[c]
			dot := math.Abs(col[a])
			if dot > bestDot {
				bestDot = dot
				best = c
				if col[a] < 0 {
					bestSign = -1
				} else {
					bestSign = 1
				}
			}
		}
		perm[a] = best
		signs[a] = bestSign
		used[best] = true
	}
	return perm, signs
}

// resampleIsotropic resamples v to isotropic spacing `target` mm, in-plane
// via golang.org/x/image/draw's bilinear scaler applied per slice (the same
// algorithm the teacher uses for 2D text-overlay scaling, generalized here
// to a separable 3D pass) and through-plane via linear interpolation across
// the resampled slice stack. Resampling with the current spacing as target
// returns v unchanged (spec §8 idempotence).
func resampleIsotropic(v *model.Volume, target float64) *model.Volume {
	if closeSpacing(v.Spacing[0], target) && closeSpacing(v.Spacing[1], target) && closeSpacing(v.Spacing[2], target) {
		return v
	}

	newNX := maxInt(2, int(math.Round(float64(v.NX-1)*v.Spacing[0]/target))+1)
	newNY := maxInt(2, int(math.Round(float64(v.NY-1)*v.Spacing[1]/target))+1)
	newNZ := maxInt(2, int(math.Round(float64(v.NZ-1)*v.Spacing[2]/target))+1)

	lo, hi := dataRange(v.Data)

	inPlane := make([]*image.Gray16, v.NZ)
	for k := 0; k < v.NZ; k++ {
		inPlane[k] = sliceToGray16(v, k, lo, hi)
	}

	resizedInPlane := make([]*image.Gray16, v.NZ)
	for k := 0; k < v.NZ; k++ {
		dst := image.NewGray16(image.Rect(0, 0, newNX, newNY))
		draw.BiLinear.Scale(dst, dst.Bounds(), inPlane[k], inPlane[k].Bounds(), draw.Over, nil)
		resizedInPlane[k] = dst
	}

	out := &model.Volume{
		NX: newNX, NY: newNY, NZ: newNZ,
		Spacing:     model.Vec3{target, target, target},
		Origin:      v.Origin,
		Orientation: v.Orientation,
		Data:        make([]float64, newNX*newNY*newNZ),
	}

	zScale := float64(v.NZ-1) / float64(maxInt(1, newNZ-1))
	for k := 0; k < newNZ; k++ {
		zf := float64(k) * zScale
		z0 := int(math.Floor(zf))
		z1 := minInt(z0+1, v.NZ-1)
		t := zf - float64(z0)
		for j := 0; j < newNY; j++ {
			for i := 0; i < newNX; i++ {
				a := gray16ToFloat(resizedInPlane[z0], i, j, lo, hi)
				b := gray16ToFloat(resizedInPlane[z1], i, j, lo, hi)
				out.Set(i, j, k, a*(1-t)+b*t)
			}
		}
	}
	return out
}

func closeSpacing(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func dataRange(data []float64) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 1
	}
	lo, hi = data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func sliceToGray16(v *model.Volume, k int, lo, hi float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, v.NX, v.NY))
	for j := 0; j < v.NY; j++ {
		for i := 0; i < v.NX; i++ {
			val := v.At(i, j, k)
			scaled := uint16(clamp((val-lo)/(hi-lo)*65535, 0, 65535))
			img.SetGray16(i, j, color.Gray16{Y: scaled})
		}
	}
	return img
}

func gray16ToFloat(img *image.Gray16, x, y int, lo, hi float64) float64 {
	c := img.Gray16At(x, y)
	return lo + float64(c.Y)/65535*(hi-lo)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
