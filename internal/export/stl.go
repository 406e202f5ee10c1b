package export

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/mrsinham/reconmesh/internal/model"
)

// WriteSTL writes mesh as a binary STL (80-byte header, uint32 triangle
// count, then 50 bytes per triangle: 3 normal + 9 vertex float32s + 2
// attribute bytes), spec §4.8.
func WriteSTL(w io.Writer, mesh *model.Mesh) error {
	bw := bufio.NewWriter(w)

	var header [80]byte
	copy(header[:], "reconmesh binary STL")
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(mesh.NumTriangles())); err != nil {
		return err
	}

	for _, tri := range mesh.Triangles {
		a, b, c := mesh.Vertices[tri[0]], mesh.Vertices[tri[1]], mesh.Vertices[tri[2]]
		n := faceNormal(a, b, c)
		if err := writeVec3(bw, n); err != nil {
			return err
		}
		if err := writeVec3(bw, a); err != nil {
			return err
		}
		if err := writeVec3(bw, b); err != nil {
			return err
		}
		if err := writeVec3(bw, c); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func faceNormal(a, b, c model.Vec3) model.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	length := n.Dot(n)
	if length < 1e-20 {
		return model.Vec3{}
	}
	inv := 1 / math.Sqrt(length)
	return n.Scale(inv)
}

func writeVec3(w io.Writer, v model.Vec3) error {
	for _, c := range v {
		if err := binary.Write(w, binary.LittleEndian, float32(c)); err != nil {
			return err
		}
	}
	return nil
}
