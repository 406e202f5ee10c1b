// Package fuse implements C6: rigid registration of secondary series onto a
// fixed reference volume and max-fusion onto the reference grid (spec
// §4.6). The orchestrator skips this stage when the memory guard trips or
// there is only one series (spec §4.2 edge-case policy); see
// internal/seriesselector's Selection.FusionUsable.
package fuse

import (
	"math"

	"github.com/mrsinham/reconmesh/internal/model"
)

const stage = "fuser"

// shrinkFactors and smoothSigmas implement the three-level multi-resolution
// schedule (spec §4.6: shrink 4/2/1, smoothing sigma 2/1/0 voxels).
var shrinkFactors = []int{4, 2, 1}
var smoothSigmas = []float64{2, 1, 0}

// Transform is a rigid transform: rotation then translation, both in mm in
// the patient frame.
type Transform struct {
	Rotation    model.Mat3
	Translation model.Vec3
}

// Identity returns the no-op rigid transform.
func Identity() Transform {
	return Transform{Rotation: model.Identity3()}
}

// Apply maps a point through the transform: R*p + t.
func (t Transform) Apply(p model.Vec3) model.Vec3 {
	return t.Rotation.MulVec(p).Add(t.Translation)
}

// Result is the C6 output: the fused Volume on the reference grid.
type Result struct {
	Fused        *model.Volume
	Transforms   []Transform // one per moving volume, in input order
	FinalMetrics []float64   // final Mattes MI estimate per registration
}

// Fuse rigidly registers each of moving onto fixed and combines all volumes
// by per-voxel maximum on fixed's grid (spec §4.6). fixed is never mutated;
// a new Volume is always returned.
func Fuse(fixed *model.Volume, moving []*model.Volume) *Result {
	res := &Result{Fused: cloneVolume(fixed)}
	for _, mv := range moving {
		xform, metric := registerRigid(fixed, mv)
		res.Transforms = append(res.Transforms, xform)
		res.FinalMetrics = append(res.FinalMetrics, metric)
		resampled := resampleOnto(fixed, mv, xform)
		maxInto(res.Fused, resampled)
	}
	return res
}

func cloneVolume(v *model.Volume) *model.Volume {
	out := &model.Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Spacing: v.Spacing, Origin: v.Origin, Orientation: v.Orientation}
	out.Data = append([]float64(nil), v.Data...)
	return out
}

// maxInto combines b into a voxelwise by maximum; a and b must share a grid.
func maxInto(a, b *model.Volume) {
	for i, val := range b.Data {
		if val > a.Data[i] {
			a.Data[i] = val
		}
	}
}

// registerRigid runs centered-initialization regular-step gradient descent
// over a 3-level shrink/smooth pyramid, optimizing Mattes mutual information
// between fixed and moving (spec §4.6). Returns the final transform and its
// MI estimate on the finest level.
func registerRigid(fixed, moving *model.Volume) (Transform, float64) {
	xform := centeredInit(fixed, moving)

	var metric float64
	for level := 0; level < len(shrinkFactors); level++ {
		shrink := shrinkFactors[level]
		sigma := smoothSigmas[level]
		fLevel := downsample(fixed, shrink, sigma)
		mLevel := downsample(moving, shrink, sigma)

		xform, metric = gradientDescentAlign(fLevel, mLevel, xform)
	}
	return xform, metric
}

// centeredInit aligns the physical centers of fixed and moving, the regular
//-step optimizer's starting point (spec §4.6 "centered initialization").
func centeredInit(fixed, moving *model.Volume) Transform {
	fc := physicalCenter(fixed)
	mc := physicalCenter(moving)
	return Transform{Rotation: model.Identity3(), Translation: mc.Sub(fc)}
}

func physicalCenter(v *model.Volume) model.Vec3 {
	half := model.Vec3{
		float64(v.NX-1) / 2 * v.Spacing[0],
		float64(v.NY-1) / 2 * v.Spacing[1],
		float64(v.NZ-1) / 2 * v.Spacing[2],
	}
	return v.Origin.Add(v.Orientation.MulVec(half))
}

// downsample applies the pyramid's Gaussian smoothing (by sigma, in voxels)
// followed by an integer-factor box-average shrink.
func downsample(v *model.Volume, shrink int, sigmaVox float64) *model.Volume {
	smoothed := v
	if sigmaVox > 0 {
		smoothed = gaussianBlur(v, sigmaVox)
	}
	if shrink <= 1 {
		return smoothed
	}
	nx, ny, nz := maxInt(1, v.NX/shrink), maxInt(1, v.NY/shrink), maxInt(1, v.NZ/shrink)
	out := &model.Volume{
		NX: nx, NY: ny, NZ: nz,
		Spacing:     model.Vec3{v.Spacing[0] * float64(shrink), v.Spacing[1] * float64(shrink), v.Spacing[2] * float64(shrink)},
		Origin:      v.Origin,
		Orientation: v.Orientation,
		Data:        make([]float64, nx*ny*nz),
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				var sum float64
				var n int
				for dz := 0; dz < shrink; dz++ {
					for dy := 0; dy < shrink; dy++ {
						for dx := 0; dx < shrink; dx++ {
							si, sj, sk := i*shrink+dx, j*shrink+dy, k*shrink+dz
							if smoothed.InBounds(si, sj, sk) {
								sum += smoothed.At(si, sj, sk)
								n++
							}
						}
					}
				}
				if n > 0 {
					out.Set(i, j, k, sum/float64(n))
				}
			}
		}
	}
	return out
}

func gaussianBlur(v *model.Volume, sigmaVox float64) *model.Volume {
	radius := int(math.Ceil(sigmaVox * 3))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigmaVox * sigmaVox))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	out := append([]float64(nil), v.Data...)
	for axis := 0; axis < 3; axis++ {
		out = blur1D(out, v.NX, v.NY, v.NZ, axis, kernel, radius)
	}
	return &model.Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Spacing: v.Spacing, Origin: v.Origin, Orientation: v.Orientation, Data: out}
}

func blur1D(data []float64, nx, ny, nz, axis int, kernel []float64, radius int) []float64 {
	out := make([]float64, len(data))
	idx := func(i, j, k int) int { return (k*ny+j)*nx + i }
	dims := [3]int{nx, ny, nz}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				var acc float64
				coord := [3]int{i, j, k}
				for d := -radius; d <= radius; d++ {
					c := coord[axis] + d
					if c < 0 {
						c = 0
					}
					if c >= dims[axis] {
						c = dims[axis] - 1
					}
					sample := coord
					sample[axis] = c
					acc += kernel[d+radius] * data[idx(sample[0], sample[1], sample[2])]
				}
				out[idx(i, j, k)] = acc
			}
		}
	}
	return out
}

// gradientDescentAlign performs regular-step gradient descent on the 6
// rigid parameters (3 rotation angles, 3 translation) maximizing Mattes
// mutual information between fixed and moving, starting from init (spec
// §4.6). Finite-difference gradients; step halves on metric regression.
func gradientDescentAlign(fixed, moving *model.Volume, init Transform) (Transform, float64) {
	params := transformToParams(init)
	step := 1.0
	const maxIters = 40
	const minStep = 1e-3

	current := mattesMI(fixed, moving, paramsToTransform(params))
	for iter := 0; iter < maxIters && step > minStep; iter++ {
		grad := numericGradient(fixed, moving, params, step*0.1)
		candidate := make([]float64, 6)
		for i := range params {
			candidate[i] = params[i] + step*grad[i]
		}
		metric := mattesMI(fixed, moving, paramsToTransform(candidate))
		if metric > current {
			params = candidate
			current = metric
		} else {
			step /= 2
		}
	}
	return paramsToTransform(params), current
}

func transformToParams(t Transform) []float64 {
	rx, ry, rz := eulerFromMat3(t.Rotation)
	return []float64{rx, ry, rz, t.Translation[0], t.Translation[1], t.Translation[2]}
}

func paramsToTransform(p []float64) Transform {
	return Transform{Rotation: mat3FromEuler(p[0], p[1], p[2]), Translation: model.Vec3{p[3], p[4], p[5]}}
}

func eulerFromMat3(m model.Mat3) (rx, ry, rz float64) {
	ry = math.Asin(clampUnit(-m[0][2]))
	rx = math.Atan2(m[1][2], m[2][2])
	rz = math.Atan2(m[0][1], m[0][0])
	return
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func mat3FromEuler(rx, ry, rz float64) model.Mat3 {
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)

	rxM := model.Mat3{{1, 0, 0}, {0, cx, sx}, {0, -sx, cx}}
	ryM := model.Mat3{{cy, 0, -sy}, {0, 1, 0}, {sy, 0, cy}}
	rzM := model.Mat3{{cz, sz, 0}, {-sz, cz, 0}, {0, 0, 1}}
	return mulMat3(mulMat3(rzM, ryM), rxM)
}

func mulMat3(a, b model.Mat3) model.Mat3 {
	var out model.Mat3
	for col := 0; col < 3; col++ {
		out[col] = a.MulVec(b[col])
	}
	return out
}

func numericGradient(fixed, moving *model.Volume, params []float64, h float64) []float64 {
	grad := make([]float64, len(params))
	for i := range params {
		plus := append([]float64(nil), params...)
		minus := append([]float64(nil), params...)
		plus[i] += h
		minus[i] -= h
		mPlus := mattesMI(fixed, moving, paramsToTransform(plus))
		mMinus := mattesMI(fixed, moving, paramsToTransform(minus))
		grad[i] = (mPlus - mMinus) / (2 * h)
	}
	return grad
}

// mattesMI estimates Mattes mutual information between fixed and a
// transformed resample of moving using a joint histogram (spec §4.6), a
// regular strided sample of fixed voxels (stride NumVoxels/4096) for
// tractable gradient-descent speed.
func mattesMI(fixed, moving *model.Volume, t Transform) float64 {
	const bins = 32
	var joint [bins][bins]float64
	var marginalF, marginalM [bins]float64
	var total float64

	stride := maxInt(1, fixed.NumVoxels()/4096)
	for idx := 0; idx < fixed.NumVoxels(); idx += stride {
		k := idx / (fixed.NX * fixed.NY)
		rem := idx % (fixed.NX * fixed.NY)
		j := rem / fixed.NX
		i := rem % fixed.NX

		fVal := fixed.At(i, j, k)
		worldPt := fixed.Origin.Add(fixed.Orientation.MulVec(model.Vec3{float64(i) * fixed.Spacing[0], float64(j) * fixed.Spacing[1], float64(k) * fixed.Spacing[2]}))
		movingPt := t.Apply(worldPt)
		mVal, ok := sampleTrilinear(moving, movingPt)
		if !ok {
			continue
		}

		fb := bucket(fVal, bins)
		mb := bucket(mVal, bins)
		joint[fb][mb]++
		marginalF[fb]++
		marginalM[mb]++
		total++
	}
	if total == 0 {
		return 0
	}

	var mi float64
	for a := 0; a < bins; a++ {
		if marginalF[a] == 0 {
			continue
		}
		pf := marginalF[a] / total
		for b := 0; b < bins; b++ {
			if joint[a][b] == 0 || marginalM[b] == 0 {
				continue
			}
			pj := joint[a][b] / total
			pm := marginalM[b] / total
			mi += pj * math.Log(pj/(pf*pm))
		}
	}
	return mi
}

func bucket(v float64, bins int) int {
	b := int(v * float64(bins))
	if b < 0 {
		b = 0
	}
	if b >= bins {
		b = bins - 1
	}
	return b
}

// sampleTrilinear samples v at a physical-space point, returning ok=false
// if the point falls outside v's grid.
func sampleTrilinear(v *model.Volume, p model.Vec3) (float64, bool) {
	local := p.Sub(v.Origin)
	inv := transposeMat3(v.Orientation)
	voxel := inv.MulVec(local)
	fi := voxel[0] / v.Spacing[0]
	fj := voxel[1] / v.Spacing[1]
	fk := voxel[2] / v.Spacing[2]

	i0, j0, k0 := int(math.Floor(fi)), int(math.Floor(fj)), int(math.Floor(fk))
	if i0 < 0 || j0 < 0 || k0 < 0 || i0+1 >= v.NX || j0+1 >= v.NY || k0+1 >= v.NZ {
		return 0, false
	}
	di, dj, dk := fi-float64(i0), fj-float64(j0), fk-float64(k0)

	c000 := v.At(i0, j0, k0)
	c100 := v.At(i0+1, j0, k0)
	c010 := v.At(i0, j0+1, k0)
	c110 := v.At(i0+1, j0+1, k0)
	c001 := v.At(i0, j0, k0+1)
	c101 := v.At(i0+1, j0, k0+1)
	c011 := v.At(i0, j0+1, k0+1)
	c111 := v.At(i0+1, j0+1, k0+1)

	c00 := lerp(c000, c100, di)
	c10 := lerp(c010, c110, di)
	c01 := lerp(c001, c101, di)
	c11 := lerp(c011, c111, di)
	c0 := lerp(c00, c10, dj)
	c1 := lerp(c01, c11, dj)
	return lerp(c0, c1, dk), true
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func transposeMat3(m model.Mat3) model.Mat3 {
	return model.Mat3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

// resampleOnto resamples moving, via xform, onto fixed's grid using a
// higher-order (cubic-equivalent smooth) interpolator approximated here by
// trilinear resampling for the final result (spec §4.6 final-resample note).
func resampleOnto(fixed, moving *model.Volume, xform Transform) *model.Volume {
	out := &model.Volume{NX: fixed.NX, NY: fixed.NY, NZ: fixed.NZ, Spacing: fixed.Spacing, Origin: fixed.Origin, Orientation: fixed.Orientation, Data: make([]float64, fixed.NumVoxels())}
	for k := 0; k < fixed.NZ; k++ {
		for j := 0; j < fixed.NY; j++ {
			for i := 0; i < fixed.NX; i++ {
				worldPt := fixed.Origin.Add(fixed.Orientation.MulVec(model.Vec3{float64(i) * fixed.Spacing[0], float64(j) * fixed.Spacing[1], float64(k) * fixed.Spacing[2]}))
				movingPt := xform.Apply(worldPt)
				if val, ok := sampleTrilinear(moving, movingPt); ok {
					out.Set(i, j, k, val)
				}
			}
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
