package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/mrsinham/reconmesh/internal/model"
)

const (
	glbMagic       = 0x46546C67 // "glTF"
	glbVersion     = 2
	chunkTypeJSON  = 0x4E4F534A // "JSON"
	chunkTypeBIN   = 0x004E4942 // "BIN\0"
	glAccessorF32  = 5126
	glAccessorU32  = 5125
	glArrayBuffer  = 34962
	glElementArray = 34963
)

type gltfDoc struct {
	Asset      gltfAsset        `json:"asset"`
	Scene      int              `json:"scene"`
	Scenes     []gltfScene      `json:"scenes"`
	Nodes      []gltfNode       `json:"nodes"`
	Meshes     []gltfMesh       `json:"meshes"`
	Accessors  []gltfAccessor   `json:"accessors"`
	BufferVws  []gltfBufferView `json:"bufferViews"`
	Buffers    []gltfBuffer     `json:"buffers"`
}

type gltfAsset struct {
	Version   string `json:"version"`
	Generator string `json:"generator"`
}

type gltfScene struct {
	Nodes []int `json:"nodes"`
}

type gltfNode struct {
	Mesh int `json:"mesh"`
}

type gltfMesh struct {
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Mode       int            `json:"mode"`
}

type gltfAccessor struct {
	BufferView    int       `json:"bufferView"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

type gltfBuffer struct {
	ByteLength int `json:"byteLength"`
}

// WriteGLB writes mesh as a binary glTF (GLB) container: a JSON chunk
// describing a single indexed triangle-list primitive plus a BIN chunk
// holding the float32 positions followed by the uint32 indices (spec §4.8).
func WriteGLB(w io.Writer, mesh *model.Mesh) error {
	var bin bytes.Buffer
	posOffset := 0
	for _, v := range mesh.Vertices {
		for _, c := range v {
			binary.Write(&bin, binary.LittleEndian, float32(c))
		}
	}
	posLength := bin.Len() - posOffset
	padToFour(&bin)

	idxOffset := bin.Len()
	for _, tri := range mesh.Triangles {
		for _, idx := range tri {
			binary.Write(&bin, binary.LittleEndian, uint32(idx))
		}
	}
	idxLength := bin.Len() - idxOffset
	padToFour(&bin)

	min, max := mesh.BoundingBox()

	doc := gltfDoc{
		Asset: gltfAsset{Version: "2.0", Generator: "reconmesh"},
		Scene: 0,
		Scenes: []gltfScene{{Nodes: []int{0}}},
		Nodes:  []gltfNode{{Mesh: 0}},
		Meshes: []gltfMesh{{
			Primitives: []gltfPrimitive{{
				Attributes: map[string]int{"POSITION": 0},
				Indices:    1,
				Mode:       4, // TRIANGLES
			}},
		}},
		Accessors: []gltfAccessor{
			{BufferView: 0, ComponentType: glAccessorF32, Count: len(mesh.Vertices), Type: "VEC3", Min: min[:], Max: max[:]},
			{BufferView: 1, ComponentType: glAccessorU32, Count: len(mesh.Triangles) * 3, Type: "SCALAR"},
		},
		BufferVws: []gltfBufferView{
			{Buffer: 0, ByteOffset: posOffset, ByteLength: posLength, Target: glArrayBuffer},
			{Buffer: 0, ByteOffset: idxOffset, ByteLength: idxLength, Target: glElementArray},
		},
		Buffers: []gltfBuffer{{ByteLength: bin.Len()}},
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	for len(jsonBytes)%4 != 0 {
		jsonBytes = append(jsonBytes, ' ')
	}

	totalLen := 12 + 8 + len(jsonBytes) + 8 + bin.Len()

	if err := binary.Write(w, binary.LittleEndian, uint32(glbMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(glbVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(totalLen)); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(jsonBytes))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(chunkTypeJSON)); err != nil {
		return err
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(bin.Len())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(chunkTypeBIN)); err != nil {
		return err
	}
	_, err = w.Write(bin.Bytes())
	return err
}

func padToFour(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}
