// Package surface implements C7: mask pre-smooth, signed distance field,
// marching cubes, coordinate conversion to render space, component
// retention, Taubin smoothing, hole filling and decimation (spec §4.7).
package surface

import (
	"math"

	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/preprocess"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

const stage = "surface"

// Options controls the optional decimation backend (spec §4.7 step 7).
type Options struct {
	DecimationMaxFaces int
	Decimate           func(mesh *model.Mesh, targetFaces int) (*model.Mesh, bool)
}

// Extract turns a Mask into a render-space Mesh (spec §4.7).
func Extract(m *model.Mask, opts Options) (*model.Mesh, error) {
	smoothed := preSmooth(m)
	sdf := signedDistanceField(smoothed, m.Geometry)

	verts, tris, err := marchingCubes(sdf, m.NX, m.NY, m.NZ, m.Spacing)
	if err != nil {
		return nil, err
	}
	if len(tris) == 0 {
		return nil, reconerr.New(reconerr.KindDegenerateGeometry, stage, "marching cubes produced no triangles")
	}

	mesh := &model.Mesh{Vertices: verts, Triangles: tris}
	toRenderSpace(mesh, m.Origin, m.Orientation)

	mesh = removeDegenerate(mesh)
	mesh = keepLargestComponent(mesh)
	mesh = taubinSmooth(mesh, 0.5, -0.53, 2)
	mesh = fillSmallHoles(mesh, 80)

	if opts.DecimationMaxFaces > 0 && mesh.NumTriangles() > opts.DecimationMaxFaces && opts.Decimate != nil {
		target := int(float64(mesh.NumTriangles()) * 0.75)
		if decimated, ok := opts.Decimate(mesh, target); ok {
			mesh = decimated
		}
		// Skip silently if no backend is available (spec §4.7 step 7).
	}

	return mesh, nil
}

// preSmooth applies a light Gaussian blur (sigma ~0.6 voxels) to a
// float64 field derived from the mask, suppressing blockiness without
// erasing thin cortex (spec §4.7 step 1).
func preSmooth(m *model.Mask) []float64 {
	field := make([]float64, len(m.Data))
	for i, b := range m.Data {
		field[i] = float64(b)
	}
	sigmaMM := 0.6 * (m.Spacing[0] + m.Spacing[1] + m.Spacing[2]) / 3
	return preprocess.SmoothField(field, m.NX, m.NY, m.NZ, m.Spacing, sigmaMM)
}

// signedDistanceField computes sdf = EDT(inside) - EDT(outside), scaled by
// voxel spacing (spec §4.7 step 2), from a smoothed scalar field
// thresholded at 0.5.
func signedDistanceField(field []float64, g model.Geometry) []float64 {
	inside := make([]bool, len(field))
	for i, v := range field {
		inside[i] = v >= 0.5
	}
	dIn := edt3D(inside, g, true)
	dOut := edt3D(inside, g, false)
	out := make([]float64, len(field))
	for i := range out {
		out[i] = dIn[i] - dOut[i]
	}
	return out
}

// edt3D computes a Euclidean distance transform in physical units: distance
// from each voxel whose inside value equals wantInside to the nearest voxel
// whose value does not (wantInside=true: distance-to-background;
// wantInside=false: distance-to-foreground). Uses a
// two-pass (forward/backward) chamfer approximation rather than the exact
// Felzenszwalb algorithm, adequate at the mask's resolution for marching
// cubes input.
func edt3D(inside []bool, g model.Geometry, wantInside bool) []float64 {
	nx, ny, nz := g.NX, g.NY, g.NZ
	const inf = 1e9
	dist := make([]float64, len(inside))
	idx := func(i, j, k int) int { return (k*ny+j)*nx + i }
	for i, in := range inside {
		if in == wantInside {
			dist[i] = inf
		}
	}

	neighbors := []struct {
		d      [3]int
		weight float64
	}{
		{[3]int{-1, 0, 0}, g.Spacing[0]}, {[3]int{0, -1, 0}, g.Spacing[1]}, {[3]int{0, 0, -1}, g.Spacing[2]},
		{[3]int{1, 0, 0}, g.Spacing[0]}, {[3]int{0, 1, 0}, g.Spacing[1]}, {[3]int{0, 0, 1}, g.Spacing[2]},
	}

	for pass := 0; pass < 2; pass++ {
		forward := pass == 0
		for pz := 0; pz < nz; pz++ {
			k := pz
			if !forward {
				k = nz - 1 - pz
			}
			for py := 0; py < ny; py++ {
				j := py
				if !forward {
					j = ny - 1 - py
				}
				for px := 0; px < nx; px++ {
					i := px
					if !forward {
						i = nx - 1 - px
					}
					cur := idx(i, j, k)
					if dist[cur] == 0 {
						continue
					}
					for _, n := range neighbors {
						ni, nj, nk := i+n.d[0], j+n.d[1], k+n.d[2]
						if ni < 0 || ni >= nx || nj < 0 || nj >= ny || nk < 0 || nk >= nz {
							continue
						}
						cand := dist[idx(ni, nj, nk)] + n.weight
						if cand < dist[cur] {
							dist[cur] = cand
						}
					}
				}
			}
		}
	}
	return dist
}

func taubinSmooth(mesh *model.Mesh, lambda, mu float64, iterations int) *model.Mesh {
	adjacency := buildAdjacency(mesh)
	verts := append([]model.Vec3(nil), mesh.Vertices...)
	for iter := 0; iter < iterations; iter++ {
		verts = laplacianStep(verts, adjacency, lambda)
		verts = laplacianStep(verts, adjacency, mu)
	}
	return &model.Mesh{Vertices: verts, Triangles: mesh.Triangles, Normals: mesh.Normals}
}

func buildAdjacency(mesh *model.Mesh) [][]int {
	adj := make([][]int, len(mesh.Vertices))
	seen := make([]map[int]bool, len(mesh.Vertices))
	for i := range seen {
		seen[i] = map[int]bool{}
	}
	add := func(a, b int) {
		if !seen[a][b] {
			seen[a][b] = true
			adj[a] = append(adj[a], b)
		}
	}
	for _, tri := range mesh.Triangles {
		add(tri[0], tri[1])
		add(tri[1], tri[0])
		add(tri[1], tri[2])
		add(tri[2], tri[1])
		add(tri[2], tri[0])
		add(tri[0], tri[2])
	}
	return adj
}

func laplacianStep(verts []model.Vec3, adj [][]int, factor float64) []model.Vec3 {
	out := make([]model.Vec3, len(verts))
	for i, neighbors := range adj {
		if len(neighbors) == 0 {
			out[i] = verts[i]
			continue
		}
		var avg model.Vec3
		for _, n := range neighbors {
			avg = avg.Add(verts[n])
		}
		avg = avg.Scale(1 / float64(len(neighbors)))
		delta := avg.Sub(verts[i])
		out[i] = verts[i].Add(delta.Scale(factor))
	}
	return out
}

// removeDegenerate drops zero-area triangles and compacts unreferenced
// vertices (spec §4.7 step 5).
func removeDegenerate(mesh *model.Mesh) *model.Mesh {
	var kept [][3]int
	for _, tri := range mesh.Triangles {
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		a, b, c := mesh.Vertices[tri[0]], mesh.Vertices[tri[1]], mesh.Vertices[tri[2]]
		cross := b.Sub(a).Cross(c.Sub(a))
		if cross.Dot(cross) < 1e-20 {
			continue
		}
		kept = append(kept, tri)
	}
	return compact(mesh.Vertices, kept)
}

func compact(verts []model.Vec3, tris [][3]int) *model.Mesh {
	used := make(map[int]int)
	var newVerts []model.Vec3
	var newTris [][3]int
	for _, tri := range tris {
		var mapped [3]int
		for c := 0; c < 3; c++ {
			old := tri[c]
			if idx, ok := used[old]; ok {
				mapped[c] = idx
			} else {
				used[old] = len(newVerts)
				mapped[c] = len(newVerts)
				newVerts = append(newVerts, verts[old])
			}
		}
		newTris = append(newTris, mapped)
	}
	return &model.Mesh{Vertices: newVerts, Triangles: newTris}
}

// keepLargestComponent retains only the connected component with the
// largest enclosed volume, or largest face count if none is closed (spec
// §4.7 step 5).
func keepLargestComponent(mesh *model.Mesh) *model.Mesh {
	adj := buildAdjacency(mesh)
	visited := make([]bool, len(mesh.Vertices))
	var components [][]int
	for v := range mesh.Vertices {
		if visited[v] {
			continue
		}
		var comp []int
		stack := []int{v}
		visited[v] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, cur)
			for _, n := range adj[cur] {
				if !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		components = append(components, comp)
	}
	if len(components) <= 1 {
		return mesh
	}

	vertComponent := make([]int, len(mesh.Vertices))
	for ci, comp := range components {
		for _, v := range comp {
			vertComponent[v] = ci
		}
	}
	trisByComp := make([][][3]int, len(components))
	for _, tri := range mesh.Triangles {
		ci := vertComponent[tri[0]]
		trisByComp[ci] = append(trisByComp[ci], tri)
	}

	bestIdx, bestScore := 0, -math.MaxFloat64
	for ci, tris := range trisByComp {
		vol := math.Abs(enclosedVolume(mesh.Vertices, tris))
		score := vol
		if vol == 0 {
			score = float64(len(tris)) * 1e-9 // tie-break toward face count when not closed
		}
		if score > bestScore {
			bestScore = score
			bestIdx = ci
		}
	}
	return compact(mesh.Vertices, trisByComp[bestIdx])
}

func enclosedVolume(verts []model.Vec3, tris [][3]int) float64 {
	var sum float64
	for _, tri := range tris {
		a, b, c := verts[tri[0]], verts[tri[1]], verts[tri[2]]
		sum += a.Dot(b.Cross(c))
	}
	return sum / 6
}

// fillSmallHoles closes boundary loops up to the given triangle budget
// (spec §4.7 step 6) with a triangle fan from the loop's centroid.
func fillSmallHoles(mesh *model.Mesh, triangleBudget int) *model.Mesh {
	edgeCount := map[[2]int]int{}
	edgeOf := func(a, b int) [2]int {
		if a < b {
			return [2]int{a, b}
		}
		return [2]int{b, a}
	}
	for _, tri := range mesh.Triangles {
		edgeCount[edgeOf(tri[0], tri[1])]++
		edgeCount[edgeOf(tri[1], tri[2])]++
		edgeCount[edgeOf(tri[2], tri[0])]++
	}
	boundaryNext := map[int]int{}
	for _, tri := range mesh.Triangles {
		edges := [3][2]int{{tri[0], tri[1]}, {tri[1], tri[2]}, {tri[2], tri[0]}}
		for _, e := range edges {
			if edgeCount[edgeOf(e[0], e[1])] == 1 {
				boundaryNext[e[0]] = e[1]
			}
		}
	}
	if len(boundaryNext) == 0 {
		return mesh
	}

	visited := map[int]bool{}
	verts := append([]model.Vec3(nil), mesh.Vertices...)
	tris := append([][3]int(nil), mesh.Triangles...)
	budget := triangleBudget

	for start := range boundaryNext {
		if visited[start] || budget <= 0 {
			continue
		}
		loop := []int{start}
		visited[start] = true
		cur := start
		for {
			next, ok := boundaryNext[cur]
			if !ok || visited[next] {
				break
			}
			loop = append(loop, next)
			visited[next] = true
			cur = next
			if len(loop) > budget {
				break
			}
		}
		if len(loop) < 3 || len(loop) > budget {
			continue
		}
		var centroid model.Vec3
		for _, v := range loop {
			centroid = centroid.Add(verts[v])
		}
		centroid = centroid.Scale(1 / float64(len(loop)))
		centroidIdx := len(verts)
		verts = append(verts, centroid)
		for i := 0; i < len(loop); i++ {
			a := loop[i]
			b := loop[(i+1)%len(loop)]
			tris = append(tris, [3]int{a, b, centroidIdx})
			budget--
		}
	}
	return &model.Mesh{Vertices: verts, Triangles: tris}
}

// toRenderSpace converts mesh vertices in place from spacing-scaled (x,y,z)
// index-space coordinates into the render-space frame: map via
// p_lps = D*v + origin, rotate x=-L,y=S,z=P, scale mm to meters (spec §4.7
// step 4).
func toRenderSpace(mesh *model.Mesh, origin model.Vec3, orientation model.Mat3) {
	for i, v := range mesh.Vertices {
		lps := orientation.MulVec(v).Add(origin)
		render := model.Vec3{-lps[0], lps[2], lps[1]}
		mesh.Vertices[i] = render.Scale(0.001)
	}
}
