package surface

import (
	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

// cubeVertexOffset gives the 8 corner offsets of a unit cube in the
// standard marching-cubes vertex numbering.
var cubeVertexOffset = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cubeEdges lists the two corner indices spanned by each of the cube's 12
// edges.
var cubeEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// marchingCubes extracts an isosurface at level 0 from sdf on an nx*ny*nz
// grid with the given physical voxel spacing (spec §4.7 step 3). Step size
// is fixed at 1 voxel. On a degenerate ("level out of range") input, the
// extraction is retried once against the field's midpoint level.
func marchingCubes(sdf []float64, nx, ny, nz int, spacing model.Vec3) ([]model.Vec3, [][3]int, error) {
	verts, tris, ok := marchAtLevel(sdf, nx, ny, nz, spacing, 0)
	if ok {
		return verts, tris, nil
	}

	mid := midpointLevel(sdf)
	verts, tris, ok = marchAtLevel(sdf, nx, ny, nz, spacing, mid)
	if !ok {
		return nil, nil, reconerr.New(reconerr.KindDegenerateGeometry, stage, "marching cubes level out of range on both the primary and midpoint retry")
	}
	return verts, tris, nil
}

func midpointLevel(sdf []float64) float64 {
	if len(sdf) == 0 {
		return 0
	}
	lo, hi := sdf[0], sdf[0]
	for _, v := range sdf {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return (lo + hi) / 2
}

// marchAtLevel runs the table-driven marching cubes sweep at the given
// isolevel. ok is false when the level lies entirely outside the field's
// range (no cube straddles it).
func marchAtLevel(sdf []float64, nx, ny, nz int, spacing model.Vec3, level float64) ([]model.Vec3, [][3]int, bool) {
	idx := func(i, j, k int) int { return (k*ny+j)*nx + i }

	var verts []model.Vec3
	var tris [][3]int
	edgeCache := make(map[[6]int]int) // canonical global corner pair -> vertex index
	anyStraddle := false

	for k := 0; k < nz-1; k++ {
		for j := 0; j < ny-1; j++ {
			for i := 0; i < nx-1; i++ {
				var corner [8]float64
				for c := 0; c < 8; c++ {
					o := cubeVertexOffset[c]
					corner[c] = sdf[idx(i+o[0], j+o[1], k+o[2])]
				}

				cubeIndex := 0
				for c := 0; c < 8; c++ {
					if corner[c] < level {
						cubeIndex |= 1 << uint(c)
					}
				}
				if edgeTable[cubeIndex] == 0 {
					continue
				}
				anyStraddle = true

				var edgeVert [12]int
				for e := 0; e < 12; e++ {
					if edgeTable[cubeIndex]&(1<<uint(e)) == 0 {
						continue
					}
					a, b := cubeEdges[e][0], cubeEdges[e][1]
					pa := cubeVertexOffset[a]
					pb := cubeVertexOffset[b]
					key := canonicalEdgeKey(i, j, k, pa, pb)
					if vi, ok := edgeCache[key]; ok {
						edgeVert[e] = vi
						continue
					}
					t := interpT(corner[a], corner[b], level)
					p := model.Vec3{
						(float64(i+pa[0]) + t*float64(pb[0]-pa[0])) * spacing[0],
						(float64(j+pa[1]) + t*float64(pb[1]-pa[1])) * spacing[1],
						(float64(k+pa[2]) + t*float64(pb[2]-pa[2])) * spacing[2],
					}
					vi := len(verts)
					verts = append(verts, p)
					edgeCache[key] = vi
					edgeVert[e] = vi
				}

				row := triTable[cubeIndex]
				for t := 0; row[t] != -1; t += 3 {
					tris = append(tris, [3]int{edgeVert[row[t]], edgeVert[row[t+1]], edgeVert[row[t+2]]})
				}
			}
		}
	}
	return verts, tris, anyStraddle
}

func interpT(va, vb, level float64) float64 {
	if vb == va {
		return 0.5
	}
	t := (level - va) / (vb - va)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t
}

// canonicalEdgeKey identifies a cube edge by the two global grid corners it
// spans, ordered lexicographically, so neighboring cubes that share an edge
// resolve to the same cached vertex (avoiding duplicate, unwelded vertices
// along cube boundaries).
func canonicalEdgeKey(i, j, k int, pa, pb [3]int) [6]int {
	ca := [3]int{i + pa[0], j + pa[1], k + pa[2]}
	cb := [3]int{i + pb[0], j + pb[1], k + pb[2]}
	if lessCorner(cb, ca) {
		ca, cb = cb, ca
	}
	return [6]int{ca[0], ca[1], ca[2], cb[0], cb[1], cb[2]}
}

func lessCorner(a, b [3]int) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}
