package segment

import "github.com/mrsinham/reconmesh/internal/model"

// offsets6 are the 6-connected 3D structuring-element neighbors used for
// opening/closing (spec §4.5 "3D opening", "3D closing").
var offsets6 = [][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

// offsets26 is full 3D connectivity, used for connected-component labeling
// and for hole filling where diagonal leaks would otherwise be missed.
var offsets26 = func() [][3]int {
	var o [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				o = append(o, [3]int{dx, dy, dz})
			}
		}
	}
	return o
}()

func erode3D(m *model.Mask) *model.Mask {
	out := model.NewMask(m.Geometry)
	for k := 0; k < m.NZ; k++ {
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				if m.At(i, j, k) == 0 {
					continue
				}
				all := true
				for _, o := range offsets6 {
					ni, nj, nk := i+o[0], j+o[1], k+o[2]
					if ni < 0 || ni >= m.NX || nj < 0 || nj >= m.NY || nk < 0 || nk >= m.NZ || m.At(ni, nj, nk) == 0 {
						all = false
						break
					}
				}
				if all {
					out.Set(i, j, k, 1)
				}
			}
		}
	}
	return out
}

func dilate3D(m *model.Mask) *model.Mask {
	out := model.NewMask(m.Geometry)
	copy(out.Data, m.Data)
	for k := 0; k < m.NZ; k++ {
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				if m.At(i, j, k) == 0 {
					continue
				}
				for _, o := range offsets6 {
					ni, nj, nk := i+o[0], j+o[1], k+o[2]
					if ni >= 0 && ni < m.NX && nj >= 0 && nj < m.NY && nk >= 0 && nk < m.NZ {
						out.Set(ni, nj, nk, 1)
					}
				}
			}
		}
	}
	return out
}

func open3D(m *model.Mask, iterations int) *model.Mask {
	cur := m
	for i := 0; i < iterations; i++ {
		cur = erode3D(cur)
	}
	for i := 0; i < iterations; i++ {
		cur = dilate3D(cur)
	}
	return cur
}

func close3D(m *model.Mask, iterations int) *model.Mask {
	cur := m
	for i := 0; i < iterations; i++ {
		cur = dilate3D(cur)
	}
	for i := 0; i < iterations; i++ {
		cur = erode3D(cur)
	}
	return cur
}

// fillHoles3D flood-fills background from the volume border and flips any
// background voxel the flood never reaches (an enclosed cavity) to
// foreground (spec §4.5 "fill holes").
func fillHoles3D(m *model.Mask) *model.Mask {
	reached := make([]bool, len(m.Data))
	var stack [][3]int
	push := func(i, j, k int) {
		if i < 0 || i >= m.NX || j < 0 || j >= m.NY || k < 0 || k >= m.NZ {
			return
		}
		idx := m.Index(i, j, k)
		if m.Data[idx] != 0 || reached[idx] {
			return
		}
		reached[idx] = true
		stack = append(stack, [3]int{i, j, k})
	}
	for j := 0; j < m.NY; j++ {
		for i := 0; i < m.NX; i++ {
			push(i, j, 0)
			push(i, j, m.NZ-1)
		}
	}
	for k := 0; k < m.NZ; k++ {
		for i := 0; i < m.NX; i++ {
			push(i, 0, k)
			push(i, m.NY-1, k)
		}
	}
	for k := 0; k < m.NZ; k++ {
		for j := 0; j < m.NY; j++ {
			push(0, j, k)
			push(m.NX-1, j, k)
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, o := range offsets26 {
			push(p[0]+o[0], p[1]+o[1], p[2]+o[2])
		}
	}

	out := model.NewMask(m.Geometry)
	for idx := range out.Data {
		if m.Data[idx] != 0 || !reached[idx] {
			out.Data[idx] = 1
		}
	}
	return out
}

// --- 2D morphology, used by the 2.5D bone branch (spec §4.5) ---

var offsets2D4 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
var offsets2D8 = func() [][2]int {
	var o [][2]int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			o = append(o, [2]int{dx, dy})
		}
	}
	return o
}()

func erode2D(m []byte, nx, ny int) []byte {
	out := make([]byte, len(m))
	at := func(i, j int) byte {
		if i < 0 || i >= nx || j < 0 || j >= ny {
			return 0
		}
		return m[j*nx+i]
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if at(i, j) == 0 {
				continue
			}
			all := true
			for _, o := range offsets2D4 {
				if at(i+o[0], j+o[1]) == 0 {
					all = false
					break
				}
			}
			if all {
				out[j*nx+i] = 1
			}
		}
	}
	return out
}

func dilate2D(m []byte, nx, ny int) []byte {
	out := append([]byte(nil), m...)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if m[j*nx+i] == 0 {
				continue
			}
			for _, o := range offsets2D4 {
				ni, nj := i+o[0], j+o[1]
				if ni >= 0 && ni < nx && nj >= 0 && nj < ny {
					out[nj*nx+ni] = 1
				}
			}
		}
	}
	return out
}

func open2D(m []byte, nx, ny, iterations int) []byte {
	cur := m
	for i := 0; i < iterations; i++ {
		cur = erode2D(cur, nx, ny)
	}
	for i := 0; i < iterations; i++ {
		cur = dilate2D(cur, nx, ny)
	}
	return cur
}

func close2D(m []byte, nx, ny, iterations int) []byte {
	cur := m
	for i := 0; i < iterations; i++ {
		cur = dilate2D(cur, nx, ny)
	}
	for i := 0; i < iterations; i++ {
		cur = erode2D(cur, nx, ny)
	}
	return cur
}

func fillHoles2D(m []byte, nx, ny int) []byte {
	reached := make([]bool, len(m))
	var stack [][2]int
	push := func(i, j int) {
		if i < 0 || i >= nx || j < 0 || j >= ny {
			return
		}
		idx := j*nx + i
		if m[idx] != 0 || reached[idx] {
			return
		}
		reached[idx] = true
		stack = append(stack, [2]int{i, j})
	}
	for i := 0; i < nx; i++ {
		push(i, 0)
		push(i, ny-1)
	}
	for j := 0; j < ny; j++ {
		push(0, j)
		push(nx-1, j)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, o := range offsets2D8 {
			push(p[0]+o[0], p[1]+o[1])
		}
	}
	out := make([]byte, len(m))
	for idx := range out {
		if m[idx] != 0 || !reached[idx] {
			out[idx] = 1
		}
	}
	return out
}
