package assets

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/FishWoWater/trellis-blender/internal/scene"
)

const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbHeaderLen = 12

	chunkJSON = 0x4E4F534A
	chunkBIN  = 0x004E4942

	modeTriangles = 4
)

type gltfDocument struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	Scene  *int `json:"scene"`
	Scenes []struct {
		Nodes []int `json:"nodes"`
	} `json:"scenes"`
	Nodes []struct {
		Name        string    `json:"name"`
		Mesh        *int      `json:"mesh"`
		Children    []int     `json:"children"`
		Translation []float64 `json:"translation"`
		Scale       []float64 `json:"scale"`
	} `json:"nodes"`
	Meshes []struct {
		Name       string `json:"name"`
		Primitives []struct {
			Attributes map[string]int `json:"attributes"`
			Indices    *int           `json:"indices"`
			Mode       *int           `json:"mode"`
		} `json:"primitives"`
	} `json:"meshes"`
	Accessors []struct {
		Count int       `json:"count"`
		Min   []float64 `json:"min"`
		Max   []float64 `json:"max"`
	} `json:"accessors"`
}

// ReadModel loads a .glb or .gltf file and returns one mesh object per mesh
// node. Objects carry geometry counts and bounds but no vertex data.
func ReadModel(path string) ([]*scene.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newIOError("failed to read model file", err)
	}
	objects, err := ParseModel(data)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, obj := range objects {
		if obj.Name == "" {
			obj.Name = base
		}
	}
	return objects, nil
}

// ParseModel parses binary (GLB) or JSON glTF 2.0 content.
func ParseModel(data []byte) ([]*scene.Object, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseGLTF(trimmed)
	}

	jsonChunk, err := glbJSONChunk(data)
	if err != nil {
		return nil, err
	}
	return parseGLTF(jsonChunk)
}

func glbJSONChunk(data []byte) ([]byte, error) {
	if len(data) < glbHeaderLen {
		return nil, newParseError("file too short for a GLB header", nil)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != glbMagic {
		return nil, newParseError(fmt.Sprintf("bad GLB magic 0x%08x", magic), nil)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != glbVersion {
		return nil, newParseError(fmt.Sprintf("unsupported GLB version %d", v), nil)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	if total > len(data) || total < glbHeaderLen {
		return nil, newParseError(fmt.Sprintf("GLB length %d does not match file size %d", total, len(data)), nil)
	}

	// The first chunk must be JSON; a BIN chunk may follow but only the
	// accessor metadata is needed.
	off := glbHeaderLen
	if off+8 > total {
		return nil, newParseError("GLB has no chunks", nil)
	}
	chunkLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
	chunkType := binary.LittleEndian.Uint32(data[off+4 : off+8])
	if chunkType != chunkJSON {
		return nil, newParseError(fmt.Sprintf("first GLB chunk is 0x%08x, want JSON", chunkType), nil)
	}
	start := off + 8
	if chunkLen < 0 || start+chunkLen > total {
		return nil, newParseError("GLB JSON chunk overruns the file", nil)
	}
	return data[start : start+chunkLen], nil
}

func parseGLTF(raw []byte) ([]*scene.Object, error) {
	var doc gltfDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newParseError("invalid glTF JSON", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2") {
		return nil, newParseError(fmt.Sprintf("unsupported glTF version %q", doc.Asset.Version), nil)
	}

	meshes := make([]*scene.Mesh, len(doc.Meshes))
	for i := range doc.Meshes {
		m, err := summarizeMesh(&doc, i)
		if err != nil {
			return nil, err
		}
		meshes[i] = m
	}

	var objects []*scene.Object
	visited := make(map[int]bool)
	var walk func(idx int, offset, scale scene.Vec3) error
	walk = func(idx int, offset, scale scene.Vec3) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return newParseError(fmt.Sprintf("node index %d out of range", idx), nil)
		}
		if visited[idx] {
			return newParseError(fmt.Sprintf("node %d appears twice in the hierarchy", idx), nil)
		}
		visited[idx] = true

		n := doc.Nodes[idx]
		local := vecOr(n.Translation, 0)
		s := vecOr(n.Scale, 1)
		var loc, sc scene.Vec3
		for i := 0; i < 3; i++ {
			loc[i] = offset[i] + local[i]*scale[i]
			sc[i] = scale[i] * s[i]
		}

		if n.Mesh != nil {
			if *n.Mesh < 0 || *n.Mesh >= len(meshes) {
				return newParseError(fmt.Sprintf("node %d references missing mesh %d", idx, *n.Mesh), nil)
			}
			mesh := *meshes[*n.Mesh]
			name := n.Name
			if name == "" {
				name = doc.Meshes[*n.Mesh].Name
			}
			objects = append(objects, &scene.Object{
				Name:     name,
				Type:     scene.TypeMesh,
				Location: loc,
				Scale:    sc,
				Visible:  true,
				Mesh:     &mesh,
			})
		}
		for _, child := range n.Children {
			if err := walk(child, loc, sc); err != nil {
				return err
			}
		}
		return nil
	}

	one := scene.Vec3{1, 1, 1}
	for _, root := range rootNodes(&doc) {
		if err := walk(root, scene.Vec3{}, one); err != nil {
			return nil, err
		}
	}

	// Meshes that no node instantiates still become objects.
	if len(objects) == 0 {
		for i, m := range meshes {
			mesh := *m
			objects = append(objects, &scene.Object{
				Name:    doc.Meshes[i].Name,
				Type:    scene.TypeMesh,
				Scale:   one,
				Visible: true,
				Mesh:    &mesh,
			})
		}
	}
	if len(objects) == 0 {
		return nil, newParseError("model contains no meshes", nil)
	}
	return objects, nil
}

// rootNodes returns the default scene's roots, or every node that is not
// somebody's child when the file declares no scenes.
func rootNodes(doc *gltfDocument) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}
	isChild := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func summarizeMesh(doc *gltfDocument, idx int) (*scene.Mesh, error) {
	m := &scene.Mesh{}
	first := true
	for _, prim := range doc.Meshes[idx].Primitives {
		pos, ok := prim.Attributes["POSITION"]
		if !ok {
			continue
		}
		if pos < 0 || pos >= len(doc.Accessors) {
			return nil, newParseError(fmt.Sprintf("mesh %d references missing accessor %d", idx, pos), nil)
		}
		acc := doc.Accessors[pos]
		m.Vertices += acc.Count

		mode := modeTriangles
		if prim.Mode != nil {
			mode = *prim.Mode
		}
		if mode == modeTriangles {
			count := acc.Count
			if prim.Indices != nil {
				if *prim.Indices < 0 || *prim.Indices >= len(doc.Accessors) {
					return nil, newParseError(fmt.Sprintf("mesh %d references missing index accessor %d", idx, *prim.Indices), nil)
				}
				count = doc.Accessors[*prim.Indices].Count
			}
			m.Polygons += count / 3
		}

		if len(acc.Min) == 3 && len(acc.Max) == 3 {
			if first {
				m.Bounds = scene.Bounds{Min: scene.Vec3(acc.Min), Max: scene.Vec3(acc.Max)}
				first = false
			} else {
				for i := 0; i < 3; i++ {
					m.Bounds.Min[i] = math.Min(m.Bounds.Min[i], acc.Min[i])
					m.Bounds.Max[i] = math.Max(m.Bounds.Max[i], acc.Max[i])
				}
			}
		}
	}
	// glTF stores no edge list; for a closed triangle mesh every edge is
	// shared by two faces.
	m.Edges = m.Polygons * 3 / 2
	return m, nil
}

func vecOr(v []float64, def float64) scene.Vec3 {
	if len(v) != 3 {
		return scene.Vec3{def, def, def}
	}
	return scene.Vec3{v[0], v[1], v[2]}
}
