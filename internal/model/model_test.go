package model

import "testing"

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	if got := a.Add(b); got != (Vec3{5, 7, 9}) {
		t.Errorf("Add = %v, want {5 7 9}", got)
	}
	if got := b.Sub(a); got != (Vec3{3, 3, 3}) {
		t.Errorf("Sub = %v, want {3 3 3}", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale = %v, want {2 4 6}", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Errorf("Dot = %v, want 32", got)
	}
}

func TestVec3_CrossOfUnitAxes(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	if got := x.Cross(y); got != (Vec3{0, 0, 1}) {
		t.Errorf("x cross y = %v, want {0 0 1}", got)
	}
}

func TestMat3_IdentityMulVecIsIdentity(t *testing.T) {
	v := Vec3{1, 2, 3}
	if got := Identity3().MulVec(v); got != v {
		t.Errorf("Identity3().MulVec(v) = %v, want %v", got, v)
	}
}

func TestTissueClass_StringAndParseRoundTrip(t *testing.T) {
	for _, tc := range []TissueClass{TissueBody, TissueBone, TissueMuscle} {
		parsed, ok := ParseTissueClass(tc.String())
		if !ok || parsed != tc {
			t.Errorf("ParseTissueClass(%q) = %v, %v, want %v, true", tc.String(), parsed, ok, tc)
		}
	}
}

func TestParseTissueClass_UnknownReturnsFalse(t *testing.T) {
	if _, ok := ParseTissueClass("brain"); ok {
		t.Error("expected ParseTissueClass to reject an unknown tissue name")
	}
}

func TestSlice_NormalWithoutOrientationIsZero(t *testing.T) {
	s := Slice{HasOrientation: false}
	if got := s.Normal(); got != (Vec3{}) {
		t.Errorf("Normal() without orientation = %v, want zero vector", got)
	}
}

func TestSlice_NormalOfAxisAlignedSlice(t *testing.T) {
	s := Slice{HasOrientation: true, RowAxis: Vec3{1, 0, 0}, ColAxis: Vec3{0, 1, 0}}
	if got := s.Normal(); got != (Vec3{0, 0, 1}) {
		t.Errorf("Normal() = %v, want {0 0 1}", got)
	}
}

func TestVolume_AtSetIndexInBounds(t *testing.T) {
	v := &Volume{NX: 2, NY: 2, NZ: 2, Data: make([]float64, 8)}
	v.Set(1, 0, 1, 42)
	if got := v.At(1, 0, 1); got != 42 {
		t.Errorf("At(1,0,1) = %v, want 42", got)
	}
	if v.Index(1, 0, 1) != 5 {
		t.Errorf("Index(1,0,1) = %d, want 5", v.Index(1, 0, 1))
	}
	if !v.InBounds(1, 1, 1) {
		t.Error("InBounds(1,1,1) = false, want true")
	}
	if v.InBounds(2, 0, 0) {
		t.Error("InBounds(2,0,0) = true, want false")
	}
	if v.NumVoxels() != 8 {
		t.Errorf("NumVoxels() = %d, want 8", v.NumVoxels())
	}
}

func TestGeometryOf(t *testing.T) {
	v := &Volume{NX: 3, NY: 4, NZ: 5, Spacing: Vec3{1, 1, 2}, Origin: Vec3{10, 20, 30}, Orientation: Identity3()}
	g := GeometryOf(v)
	if g.NX != 3 || g.NY != 4 || g.NZ != 5 {
		t.Errorf("GeometryOf dims = %d,%d,%d, want 3,4,5", g.NX, g.NY, g.NZ)
	}
	if g.Origin != v.Origin {
		t.Errorf("GeometryOf Origin = %v, want %v", g.Origin, v.Origin)
	}
}

func TestMask_SetAtCount(t *testing.T) {
	g := Geometry{NX: 2, NY: 2, NZ: 2}
	m := NewMask(g)
	m.Set(0, 0, 0, 1)
	m.Set(1, 1, 1, 1)
	if m.At(0, 0, 0) != 1 {
		t.Error("At(0,0,0) = 0, want 1")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestMesh_NumTrianglesAndBoundingBox(t *testing.T) {
	mesh := &Mesh{
		Vertices:  []Vec3{{0, 0, 0}, {1, 2, 3}, {-1, 5, 0}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	if mesh.NumTriangles() != 1 {
		t.Errorf("NumTriangles() = %d, want 1", mesh.NumTriangles())
	}
	min, max := mesh.BoundingBox()
	if min != (Vec3{-1, 0, 0}) {
		t.Errorf("BoundingBox min = %v, want {-1 0 0}", min)
	}
	if max != (Vec3{1, 5, 3}) {
		t.Errorf("BoundingBox max = %v, want {1 5 3}", max)
	}
}

func TestMesh_BoundingBoxEmpty(t *testing.T) {
	mesh := &Mesh{}
	min, max := mesh.BoundingBox()
	if min != (Vec3{}) || max != (Vec3{}) {
		t.Errorf("BoundingBox of empty mesh = %v, %v, want zero vectors", min, max)
	}
}
