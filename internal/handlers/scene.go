package handlers

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/scene"
)

// maxSceneObjects caps the object list in get_scene_info.
const maxSceneObjects = 10

// SceneInfo is the get_scene_info result.
type SceneInfo struct {
	Name           string          `json:"name"`
	ObjectCount    int             `json:"object_count"`
	Objects        []ObjectSummary `json:"objects"`
	MaterialsCount int             `json:"materials_count"`
}

// ObjectSummary is one entry of SceneInfo.Objects.
type ObjectSummary struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Location [3]float64 `json:"location"`
}

// ObjectInfo describes a single object.
type ObjectInfo struct {
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Location    [3]float64   `json:"location"`
	Rotation    [3]float64   `json:"rotation"`
	Scale       [3]float64   `json:"scale"`
	Visible     bool         `json:"visible"`
	Materials   []string     `json:"materials"`
	Mesh        *MeshInfo    `json:"mesh,omitempty"`
	BoundingBox *BoundingBox `json:"world_bounding_box,omitempty"`
}

// MeshInfo holds geometry counts.
type MeshInfo struct {
	Vertices int `json:"vertices"`
	Edges    int `json:"edges"`
	Polygons int `json:"polygons"`
}

// BoundingBox is an axis-aligned box in world space.
type BoundingBox struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v scene.Vec3) [3]float64 {
	return [3]float64{round2(v[0]), round2(v[1]), round2(v[2])}
}

func describeObject(obj *scene.Object) ObjectInfo {
	info := ObjectInfo{
		Name:      obj.Name,
		Type:      obj.Type,
		Location:  obj.Location,
		Rotation:  obj.Rotation,
		Scale:     obj.Scale,
		Visible:   obj.Visible,
		Materials: append([]string{}, obj.Materials...),
	}
	if obj.Mesh != nil {
		info.Mesh = &MeshInfo{Vertices: obj.Mesh.Vertices, Edges: obj.Mesh.Edges, Polygons: obj.Mesh.Polygons}
		b := obj.WorldBounds()
		info.BoundingBox = &BoundingBox{Min: round3(b.Min), Max: round3(b.Max)}
	}
	return info
}

func (h *handlers) sceneSpecs() []command.Spec {
	return []command.Spec{
		{
			Type:        "get_scene_info",
			Description: "Summarize the scene and its first objects",
			Handler:     command.HandlerFunc(h.getSceneInfo),
		},
		{
			Type:        "get_object_info",
			Description: "Describe one object",
			Handler:     command.HandlerFunc(h.getObjectInfo),
			Schema:      nameSchema("name"),
		},
		{
			Type:        "create_object",
			Description: "Create a primitive object",
			Handler:     command.HandlerFunc(h.createObject),
			Schema:      createObjectSchema,
		},
		{
			Type:        "modify_object",
			Description: "Change an object's transform or visibility",
			Handler:     command.HandlerFunc(h.modifyObject),
			Schema:      modifyObjectSchema,
		},
		{
			Type:        "delete_object",
			Description: "Delete an object",
			Handler:     command.HandlerFunc(h.deleteObject),
			Schema:      nameSchema("name"),
		},
		{
			Type:        "set_material",
			Description: "Create or reuse a material, set its color and assign it",
			Handler:     command.HandlerFunc(h.setMaterial),
			Schema:      setMaterialSchema,
		},
		{
			Type:        "import_model",
			Description: "Download and import a glTF model",
			Handler:     command.HandlerFunc(h.importModel),
			Schema:      importModelSchema,
		},
	}
}

func (h *handlers) getSceneInfo(context.Context, command.Params) (any, error) {
	objects := h.Scene.Objects()
	info := SceneInfo{
		Name:           h.Scene.Name,
		ObjectCount:    len(objects),
		Objects:        make([]ObjectSummary, 0, min(len(objects), maxSceneObjects)),
		MaterialsCount: len(h.Scene.Materials()),
	}
	for i, obj := range objects {
		if i >= maxSceneObjects {
			break
		}
		info.Objects = append(info.Objects, ObjectSummary{
			Name:     obj.Name,
			Type:     obj.Type,
			Location: round3(obj.Location),
		})
	}
	return info, nil
}

func (h *handlers) getObjectInfo(_ context.Context, p command.Params) (any, error) {
	name, err := p.String("name")
	if err != nil {
		return nil, err
	}
	obj, err := h.Scene.Object(name)
	if err != nil {
		return nil, fmt.Errorf("Object not found: %s", name)
	}
	return describeObject(obj), nil
}

// applyTransform copies the optional location, rotation, scale and visible
// params onto obj.
func applyTransform(obj *scene.Object, p command.Params) error {
	if v, ok, err := p.Vec3("location"); err != nil {
		return err
	} else if ok {
		obj.Location = v
	}
	if v, ok, err := p.Vec3("rotation"); err != nil {
		return err
	} else if ok {
		obj.Rotation = v
	}
	if v, ok, err := p.Vec3("scale"); err != nil {
		return err
	} else if ok {
		obj.Scale = v
	}
	visible, err := p.BoolOr("visible", obj.Visible)
	if err != nil {
		return err
	}
	obj.Visible = visible
	return nil
}

func (h *handlers) createObject(_ context.Context, p command.Params) (any, error) {
	tag, err := p.StringOr("type", "CUBE")
	if err != nil {
		return nil, err
	}
	obj, err := scene.NewPrimitive(tag)
	if err != nil {
		return nil, err
	}
	name, err := p.StringOr("name", "")
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		obj.Name = name
	}
	if err := applyTransform(obj, p); err != nil {
		return nil, err
	}
	h.Scene.Add(obj)
	return describeObject(obj), nil
}

func (h *handlers) modifyObject(_ context.Context, p command.Params) (any, error) {
	name, err := p.String("name")
	if err != nil {
		return nil, err
	}
	obj, err := h.Scene.Object(name)
	if err != nil {
		return nil, fmt.Errorf("Object not found: %s", name)
	}
	// Validate on a copy so a bad param leaves the object untouched.
	updated := *obj
	if err := applyTransform(&updated, p); err != nil {
		return nil, err
	}
	*obj = updated
	return describeObject(obj), nil
}

// Deleted is the delete_object result.
type Deleted struct {
	Deleted string `json:"deleted"`
}

func (h *handlers) deleteObject(_ context.Context, p command.Params) (any, error) {
	name, err := p.String("name")
	if err != nil {
		return nil, err
	}
	if err := h.Scene.Delete(name); err != nil {
		return nil, fmt.Errorf("Object not found: %s", name)
	}
	return Deleted{Deleted: name}, nil
}

// MaterialResult is the set_material result.
type MaterialResult struct {
	Object   string      `json:"object"`
	Material string      `json:"material"`
	Created  bool        `json:"created"`
	Color    *[4]float64 `json:"color,omitempty"`
}

func (h *handlers) setMaterial(_ context.Context, p command.Params) (any, error) {
	objectName, err := p.String("object_name")
	if err != nil {
		return nil, err
	}
	if _, err := h.Scene.Object(objectName); err != nil {
		return nil, fmt.Errorf("Object not found: %s", objectName)
	}
	materialName, err := p.StringOr("material_name", objectName+"_material")
	if err != nil {
		return nil, err
	}
	color, hasColor, err := p.Floats("color", 3, 4)
	if err != nil {
		return nil, err
	}

	mat, created := h.Scene.EnsureMaterial(materialName)
	res := MaterialResult{Object: objectName, Material: mat.Name, Created: created}
	if hasColor {
		rgba := [4]float64{0, 0, 0, 1}
		copy(rgba[:], color)
		mat.BaseColor = rgba
		mat.HasColor = true
		res.Color = &rgba
	}
	if err := h.Scene.AssignMaterial(objectName, mat.Name); err != nil {
		return nil, err
	}
	return res, nil
}
