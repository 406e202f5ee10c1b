// Package model holds the plain data types shared across the reconstruction
// pipeline: Slice, Series, Volume, Mask, Mesh and Job.
package model

// Vec3 is a 3-vector in millimeters, in the LPS patient frame unless noted.
type Vec3 [3]float64

// Add returns a+b.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub returns a-b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Scale returns a*s.
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

// Dot returns the dot product of a and b.
func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Cross returns a x b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Mat3 is a 3x3 matrix stored column-major: Col[0], Col[1], Col[2] are the
// axis directions.
type Mat3 [3]Vec3

// MulVec applies the matrix to v: returns M*v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[1][0]*v[1] + m[2][0]*v[2],
		m[0][1]*v[0] + m[1][1]*v[1] + m[2][1]*v[2],
		m[0][2]*v[0] + m[1][2]*v[1] + m[2][2]*v[2],
	}
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// TissueClass names a requested segmentation target.
type TissueClass int

const (
	TissueBody TissueClass = iota
	TissueBone
	TissueMuscle
)

// String returns the DICOM-adjacent lowercase name of the tissue class.
func (t TissueClass) String() string {
	switch t {
	case TissueBody:
		return "body"
	case TissueBone:
		return "bone"
	case TissueMuscle:
		return "muscle"
	default:
		return "unknown"
	}
}

// ParseTissueClass parses a tissue name; used by the orchestrator to read
// PipelineConfig.Tissues.
func ParseTissueClass(s string) (TissueClass, bool) {
	switch s {
	case "body":
		return TissueBody, true
	case "bone":
		return TissueBone, true
	case "muscle":
		return TissueMuscle, true
	default:
		return 0, false
	}
}

// Slice is one 2D cross-sectional image plus the metadata needed to place
// it in 3D space (spec §3 "Slice").
type Slice struct {
	SeriesUID        string
	SOPInstanceUID   string
	InstanceIndex    int
	Rows, Columns    int
	PixelSpacing     [2]float64 // row spacing, column spacing, mm
	HasPosition      bool
	Position         Vec3 // ImagePositionPatient, LPS, mm
	HasOrientation   bool
	RowAxis, ColAxis Vec3 // ImageOrientationPatient, unit vectors in LPS
	SliceThickness   float64
	ImageType        []string
	IsLocalizer      bool
	Pixels           []uint16 // row-major, length Rows*Columns
	RescaleSlope     float64
	RescaleIntercept float64
}

// Normal returns the slice normal (RowAxis x ColAxis), or the zero vector
// if orientation is missing.
func (s Slice) Normal() Vec3 {
	if !s.HasOrientation {
		return Vec3{}
	}
	return s.RowAxis.Cross(s.ColAxis)
}

// Series is a set of Slices sharing a series identifier (spec §3 "Series").
type Series struct {
	SeriesUID         string
	SeriesDescription string
	Modality          string
	SequenceName      string
	Slices            []Slice // ordering is not guaranteed until assembled
}

// Volume is a 3D scalar field (spec §3 "Volume"). Voxel (i,j,k) lives at
// Origin + Orientation*(i*Spacing[0], j*Spacing[1], k*Spacing[2]).
type Volume struct {
	NX, NY, NZ  int
	Spacing     Vec3 // mm
	Origin      Vec3 // LPS mm
	Orientation Mat3 // unit, mutually orthogonal columns
	Data        []float64 // length NX*NY*NZ, index = (k*NY+j)*NX+i
}

// At returns the voxel value at (i,j,k).
func (v *Volume) At(i, j, k int) float64 {
	return v.Data[(k*v.NY+j)*v.NX+i]
}

// Set assigns the voxel value at (i,j,k).
func (v *Volume) Set(i, j, k int, val float64) {
	v.Data[(k*v.NY+j)*v.NX+i] = val
}

// Index returns the flat index for (i,j,k).
func (v *Volume) Index(i, j, k int) int {
	return (k*v.NY+j)*v.NX + i
}

// InBounds reports whether (i,j,k) is a valid voxel coordinate.
func (v *Volume) InBounds(i, j, k int) bool {
	return i >= 0 && i < v.NX && j >= 0 && j < v.NY && k >= 0 && k < v.NZ
}

// NumVoxels returns NX*NY*NZ.
func (v *Volume) NumVoxels() int {
	return v.NX * v.NY * v.NZ
}

// Geometry is the extents/spacing/origin/orientation shared by a Volume and
// the Masks derived from it (spec §9 "Cyclic risk": copied, not owned).
type Geometry struct {
	NX, NY, NZ  int
	Spacing     Vec3
	Origin      Vec3
	Orientation Mat3
}

// GeometryOf extracts the Geometry of a Volume.
func GeometryOf(v *Volume) Geometry {
	return Geometry{v.NX, v.NY, v.NZ, v.Spacing, v.Origin, v.Orientation}
}

// Mask is a Volume-shaped binary field (spec §3 "Mask"). Data holds 0/1
// as one byte per voxel, in Volume's index order; Geometry is a metadata
// copy of the generating Volume, never a reference to it.
type Mask struct {
	Geometry
	Data []byte // length NX*NY*NZ, 0 or 1
}

// NewMask allocates a zeroed Mask sharing g.
func NewMask(g Geometry) *Mask {
	return &Mask{Geometry: g, Data: make([]byte, g.NX*g.NY*g.NZ)}
}

// At returns 1 if voxel (i,j,k) is set.
func (m *Mask) At(i, j, k int) byte {
	return m.Data[(k*m.NY+j)*m.NX+i]
}

// Set assigns voxel (i,j,k).
func (m *Mask) Set(i, j, k int, val byte) {
	m.Data[(k*m.NY+j)*m.NX+i] = val
}

// Index returns the flat index for (i,j,k).
func (m *Mask) Index(i, j, k int) int {
	return (k*m.NY+j)*m.NX + i
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Data {
		if b != 0 {
			n++
		}
	}
	return n
}

// Mesh is an indexed triangle mesh (spec §3 "Mesh").
type Mesh struct {
	Vertices  []Vec3
	Triangles [][3]int
	Normals   []Vec3 // optional, same length as Vertices when present
}

// NumTriangles returns len(Triangles).
func (m *Mesh) NumTriangles() int {
	return len(m.Triangles)
}

// BoundingBox returns the min/max corner of the mesh, or a zero box if empty.
func (m *Mesh) BoundingBox() (min, max Vec3) {
	if len(m.Vertices) == 0 {
		return Vec3{}, Vec3{}
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for a := 0; a < 3; a++ {
			if v[a] < min[a] {
				min[a] = v[a]
			}
			if v[a] > max[a] {
				max[a] = v[a]
			}
		}
	}
	return min, max
}

// Job is the opaque external handle passing through the orchestrator
// (spec §3 "Job").
type Job struct {
	ID             string
	InputBlobKeys  []string
	OutputPrefix   string
	Tissues        []TissueClass
}
