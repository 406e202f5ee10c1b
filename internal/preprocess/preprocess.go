// Package preprocess implements C4: bias-field correction, percentile
// windowing, and Gaussian smoothing (spec §4.4). Grounded on the
// spec's explicit numeric recipe; no third-party numeric library appears
// anywhere in the example pack, so this is standard-library-only by
// necessity (see DESIGN.md).
package preprocess

import (
	"math"
	"sort"

	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

const stage = "preprocessor"

// Result is the C4 output.
type Result struct {
	Volume   *model.Volume
	Warnings []*reconerr.Error
}

// Run applies bias correction, windowing and smoothing to v, returning a new
// Volume; v is not mutated (spec §3 ownership: each stage owns its inputs
// until it returns).
func Run(v *model.Volume) *Result {
	res := &Result{}

	corrected, ok := biasCorrect(v)
	if !ok {
		res.Warnings = append(res.Warnings, reconerr.New(reconerr.KindStageRecoverable, stage, "N4-style bias correction failed, falling back to uncorrected volume"))
		corrected = v
	}

	windowed := window(corrected)

	sigma := meanInPlaneSpacing(v)
	if throughPlaneLarger(v) {
		sigma *= 1.5 // anisotropic smoothing intent, approximated as increased isotropic sigma
	}
	smoothed := gaussianSmooth(windowed, sigma)

	res.Volume = smoothed
	return res
}

// SmoothField runs the same separable Gaussian used internally for
// intensity smoothing over an arbitrary scalar field, reused by the
// segmenter for its curvature-flow-approximation pre-smooths (spec §4.5
// "Curvature-flow smooth").
func SmoothField(data []float64, nx, ny, nz int, spacing model.Vec3, sigmaMM float64) []float64 {
	return gaussianSmooth3D(data, nx, ny, nz, spacing, sigmaMM)
}

func meanInPlaneSpacing(v *model.Volume) float64 {
	return (v.Spacing[0] + v.Spacing[1]) / 2
}

func throughPlaneLarger(v *model.Volume) bool {
	return v.Spacing[2] > 1.5*meanInPlaneSpacing(v)
}

// biasCorrect estimates a smooth low-frequency multiplicative field inside a
// coarse Otsu body mask and divides it out, the cheap analogue of
// multi-level N4 bias correction (spec §4.4). Returns ok=false (triggering
// the documented fallback) when the body mask is empty.
func biasCorrect(v *model.Volume) (*model.Volume, bool) {
	thresh := otsuThreshold(v.Data)
	maskCount := 0
	for _, val := range v.Data {
		if val >= thresh {
			maskCount++
		}
	}
	if maskCount == 0 {
		return nil, false
	}

	// Estimate a coarse low-frequency field by heavily downsampled-then-
	// upsampled Gaussian smoothing of the masked intensities, iterated a
	// few levels (coarse-to-fine), the shape of N4's multi-level scheme.
	field := make([]float64, len(v.Data))
	for i := range field {
		field[i] = 1
	}
	levels := 3
	sigma := math.Max(v.Spacing[0], v.Spacing[1]) * 4
	working := append([]float64(nil), v.Data...)
	for l := 0; l < levels; l++ {
		masked := make([]float64, len(working))
		for i, val := range working {
			if v.Data[i] >= thresh {
				masked[i] = val
			}
		}
		smooth := gaussianSmooth3D(masked, v.NX, v.NY, v.NZ, v.Spacing, sigma)
		for i := range field {
			if smooth[i] > 1e-6 {
				field[i] = smooth[i]
			}
		}
		sigma /= 2
	}

	meanField := meanOf(field)
	out := &model.Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Spacing: v.Spacing, Origin: v.Origin, Orientation: v.Orientation, Data: make([]float64, len(v.Data))}
	for i, val := range v.Data {
		f := field[i]
		if f <= 1e-6 {
			f = meanField
		}
		out.Data[i] = val * meanField / f
	}
	return out, true
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 1
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// otsuThreshold picks the intensity threshold maximizing inter-class
// variance over a 256-bin histogram (spec §4.4, §4.5 "Otsu threshold").
func otsuThreshold(data []float64) float64 {
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
		b := int((v - lo) * scale)
		hist[b]++
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
	return lo + float64(bestThresh)/scale
}

// window clips intensities to the 1st-99th percentile and rescales to
// [0,1] (spec §4.4).
func window(v *model.Volume) *model.Volume {
	sorted := append([]float64(nil), v.Data...)
	sort.Float64s(sorted)
	p1 := percentile(sorted, 0.01)
	p99 := percentile(sorted, 0.99)
	span := p99 - p1
	if span <= 0 {
		span = 1
	}

	out := &model.Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Spacing: v.Spacing, Origin: v.Origin, Orientation: v.Orientation, Data: make([]float64, len(v.Data))}
	for i, val := range v.Data {
		clamped := val
		if clamped < p1 {
			clamped = p1
		}
		if clamped > p99 {
			clamped = p99
		}
		out.Data[i] = (clamped - p1) / span
	}
	return out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// gaussianSmooth applies an isotropic separable Gaussian with physical sigma
// (mm) (spec §4.4). It does not preserve edges: every voxel is blurred with
// the same kernel.
func gaussianSmooth(v *model.Volume, sigma float64) *model.Volume {
	data := gaussianSmooth3D(v.Data, v.NX, v.NY, v.NZ, v.Spacing, sigma)
	return &model.Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Spacing: v.Spacing, Origin: v.Origin, Orientation: v.Orientation, Data: data}
}

// gaussianSmooth3D runs a separable Gaussian blur along x, y, then z, each
// axis's kernel width derived from sigma (mm) and that axis's spacing.
func gaussianSmooth3D(data []float64, nx, ny, nz int, spacing model.Vec3, sigma float64) []float64 {
	out := append([]float64(nil), data...)
	out = blurAxis(out, nx, ny, nz, 0, sigma/math.Max(spacing[0], 1e-6))
	out = blurAxis(out, nx, ny, nz, 1, sigma/math.Max(spacing[1], 1e-6))
	out = blurAxis(out, nx, ny, nz, 2, sigma/math.Max(spacing[2], 1e-6))
	return out
}

// blurAxis convolves a 1D Gaussian kernel (sigma in voxels) along axis
// (0=x,1=y,2=z) over a row-major nx*ny*nz volume.
func blurAxis(data []float64, nx, ny, nz, axis int, sigmaVox float64) []float64 {
	if sigmaVox < 0.25 {
		return data
	}
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

	out := make([]float64, len(data))
	idx := func(i, j, k int) int { return (k*ny+j)*nx + i }

	var length int
	switch axis {
	case 0:
		length = nx
	case 1:
		length = ny
	default:
		length = nz
	}

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
					if c >= length {
						c = length - 1
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
