package scene

import (
	"fmt"
	"sort"
	"strings"
)

type primitive struct {
	objectType string
	name       string
	mesh       *Mesh
}

var unitBounds = Bounds{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}

// Geometry counts follow the host's default primitive settings.
var primitives = map[string]primitive{
	"CUBE":       {TypeMesh, "Cube", &Mesh{Vertices: 8, Edges: 12, Polygons: 6, Bounds: unitBounds}},
	"SPHERE":     {TypeMesh, "Sphere", &Mesh{Vertices: 482, Edges: 992, Polygons: 512, Bounds: unitBounds}},
	"UV_SPHERE":  {TypeMesh, "Sphere", &Mesh{Vertices: 482, Edges: 992, Polygons: 512, Bounds: unitBounds}},
	"ICO_SPHERE": {TypeMesh, "Icosphere", &Mesh{Vertices: 42, Edges: 120, Polygons: 80, Bounds: unitBounds}},
	"CYLINDER":   {TypeMesh, "Cylinder", &Mesh{Vertices: 64, Edges: 96, Polygons: 34, Bounds: unitBounds}},
	"CONE":       {TypeMesh, "Cone", &Mesh{Vertices: 33, Edges: 64, Polygons: 33, Bounds: unitBounds}},
	"PLANE":      {TypeMesh, "Plane", &Mesh{Vertices: 4, Edges: 4, Polygons: 1, Bounds: Bounds{Min: Vec3{-1, -1, 0}, Max: Vec3{1, 1, 0}}}},
	"TORUS":      {TypeMesh, "Torus", &Mesh{Vertices: 576, Edges: 1152, Polygons: 576, Bounds: Bounds{Min: Vec3{-1.25, -1.25, -0.25}, Max: Vec3{1.25, 1.25, 0.25}}}},
	"MONKEY":     {TypeMesh, "Suzanne", &Mesh{Vertices: 507, Edges: 1005, Polygons: 500, Bounds: Bounds{Min: Vec3{-1.37, -0.85, -0.98}, Max: Vec3{1.37, 0.85, 0.98}}}},
	"EMPTY":      {TypeEmpty, "Empty", nil},
	"CAMERA":     {TypeCamera, "Camera", nil},
	"LIGHT":      {TypeLight, "Light", nil},
}

// PrimitiveTags lists the accepted type tags for NewPrimitive.
func PrimitiveTags() []string {
	tags := make([]string, 0, len(primitives))
	for tag := range primitives {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// NewPrimitive builds an object for a type tag such as CUBE or CAMERA.
// The object is not added to any scene.
func NewPrimitive(tag string) (*Object, error) {
	p, ok := primitives[strings.ToUpper(tag)]
	if !ok {
		return nil, fmt.Errorf("unsupported object type %q (supported: %s)", tag, strings.Join(PrimitiveTags(), ", "))
	}
	obj := &Object{
		Name:    p.name,
		Type:    p.objectType,
		Scale:   Vec3{1, 1, 1},
		Visible: true,
	}
	if p.mesh != nil {
		mesh := *p.mesh
		obj.Mesh = &mesh
	}
	return obj, nil
}
