package segment

import (
	"sort"

	"github.com/mrsinham/reconmesh/internal/model"
)

// component is one labeled connected region: its voxel indices and size.
type component struct {
	indices []int
	size    int
}

// label3D flood-fills m into 26-connected components (stdlib flood fill
// over the flat voxel array — see DESIGN.md for why a general-purpose graph
// library was rejected for this).
func label3D(m *model.Mask) []component {
	visited := make([]bool, len(m.Data))
	var comps []component
	for k := 0; k < m.NZ; k++ {
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				start := m.Index(i, j, k)
				if m.Data[start] == 0 || visited[start] {
					continue
				}
				var indices []int
				stack := [][3]int{{i, j, k}}
				visited[start] = true
				for len(stack) > 0 {
					p := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					idx := m.Index(p[0], p[1], p[2])
					indices = append(indices, idx)
					for _, o := range offsets26 {
						ni, nj, nk := p[0]+o[0], p[1]+o[1], p[2]+o[2]
						if ni < 0 || ni >= m.NX || nj < 0 || nj >= m.NY || nk < 0 || nk >= m.NZ {
							continue
						}
						nIdx := m.Index(ni, nj, nk)
						if m.Data[nIdx] != 0 && !visited[nIdx] {
							visited[nIdx] = true
							stack = append(stack, [3]int{ni, nj, nk})
						}
					}
				}
				comps = append(comps, component{indices: indices, size: len(indices)})
			}
		}
	}
	sort.Slice(comps, func(a, b int) bool { return comps[a].size > comps[b].size })
	return comps
}

// keepTopK3D returns a Mask containing only the k largest 3D components.
func keepTopK3D(m *model.Mask, k int) *model.Mask {
	comps := label3D(m)
	out := model.NewMask(m.Geometry)
	for c := 0; c < k && c < len(comps); c++ {
		for _, idx := range comps[c].indices {
			out.Data[idx] = 1
		}
	}
	return out
}

// component2D is a labeled region within a single 2D slice.
type component2D struct {
	indices []int
	size    int
}

func label2D(m []byte, nx, ny int) []component2D {
	visited := make([]bool, len(m))
	var comps []component2D
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			start := j*nx + i
			if m[start] == 0 || visited[start] {
				continue
			}
			var indices []int
			stack := [][2]int{{i, j}}
			visited[start] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				idx := p[1]*nx + p[0]
				indices = append(indices, idx)
				for _, o := range offsets2D8 {
					ni, nj := p[0]+o[0], p[1]+o[1]
					if ni < 0 || ni >= nx || nj < 0 || nj >= ny {
						continue
					}
					nIdx := nj*nx + ni
					if m[nIdx] != 0 && !visited[nIdx] {
						visited[nIdx] = true
						stack = append(stack, [2]int{ni, nj})
					}
				}
			}
			comps = append(comps, component2D{indices: indices, size: len(indices)})
		}
	}
	sort.Slice(comps, func(a, b int) bool { return comps[a].size > comps[b].size })
	return comps
}

func keepTopK2D(m []byte, nx, ny, k int) []byte {
	comps := label2D(m, nx, ny)
	out := make([]byte, len(m))
	for c := 0; c < k && c < len(comps); c++ {
		for _, idx := range comps[c].indices {
			out[idx] = 1
		}
	}
	return out
}
