package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Object types
const (
	TypeMesh   = "MESH"
	TypeEmpty  = "EMPTY"
	TypeCamera = "CAMERA"
	TypeLight  = "LIGHT"
)

// ErrNotFound is wrapped by lookups of missing entities.
var ErrNotFound = errors.New("not found")

// Vec3 is an x, y, z triple.
type Vec3 [3]float64

// Bounds is an axis-aligned bounding box in local space.
type Bounds struct {
	Min Vec3
	Max Vec3
}

// Dimensions returns the box extent on each axis.
func (b Bounds) Dimensions() Vec3 {
	return Vec3{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Mesh holds geometry counts for mesh-typed objects.
type Mesh struct {
	Vertices int
	Edges    int
	Polygons int
	Bounds   Bounds
}

// Object is a named scene entity.
type Object struct {
	Name      string
	Type      string
	Location  Vec3
	Rotation  Vec3
	Scale     Vec3
	Visible   bool
	Materials []string
	Mesh      *Mesh
}

// WorldBounds returns the object's bounding box after scale and location.
// Rotation is ignored, matching the axis-aligned summaries reported to
// clients.
func (o *Object) WorldBounds() Bounds {
	local := Bounds{Min: Vec3{-0.5, -0.5, -0.5}, Max: Vec3{0.5, 0.5, 0.5}}
	if o.Mesh != nil {
		local = o.Mesh.Bounds
	}
	var out Bounds
	for i := 0; i < 3; i++ {
		a := local.Min[i]*o.Scale[i] + o.Location[i]
		b := local.Max[i]*o.Scale[i] + o.Location[i]
		if a > b {
			a, b = b, a
		}
		out.Min[i], out.Max[i] = a, b
	}
	return out
}

// Material is a named surface description.
type Material struct {
	Name      string
	BaseColor [4]float64
	HasColor  bool
	// Textures maps a channel (diffuse, roughness, normal...) to an image name.
	Textures map[string]string
}

// Image is an image datablock, usually a downloaded texture map.
type Image struct {
	Name string
	Path string
}

// Scene is the host scene.
type Scene struct {
	Name string

	objects   map[string]*Object
	order     []string
	materials map[string]*Material
	images    map[string]*Image
	world     string

	viewDepth int
}

// New creates an empty scene.
func New(name string) *Scene {
	return &Scene{
		Name:      name,
		objects:   make(map[string]*Object),
		materials: make(map[string]*Material),
		images:    make(map[string]*Image),
	}
}

// Objects returns every object in creation order.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.objects[name])
	}
	return out
}

// Object returns the named object.
func (s *Scene) Object(name string) (*Object, error) {
	obj, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %q %w", name, ErrNotFound)
	}
	return obj, nil
}

// UniqueName returns base, or base with the first free ".NNN" suffix.
func (s *Scene) UniqueName(base string) string {
	if _, taken := s.objects[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", base, i)
		if _, taken := s.objects[candidate]; !taken {
			return candidate
		}
	}
}

// Add inserts an object, renaming it if its name is taken. The final name
// is returned.
func (s *Scene) Add(obj *Object) string {
	if obj.Name == "" {
		lower := strings.ToLower(obj.Type)
		if lower == "" {
			lower = "object"
		}
		obj.Name = strings.ToUpper(lower[:1]) + lower[1:]
	}
	obj.Name = s.UniqueName(obj.Name)
	s.objects[obj.Name] = obj
	s.order = append(s.order, obj.Name)
	return obj.Name
}

// Delete removes the named object.
func (s *Scene) Delete(name string) error {
	if _, ok := s.objects[name]; !ok {
		return fmt.Errorf("object %q %w", name, ErrNotFound)
	}
	delete(s.objects, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Materials returns every material sorted by name.
func (s *Scene) Materials() []*Material {
	out := make([]*Material, 0, len(s.materials))
	for _, m := range s.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Material returns the named material, if any.
func (s *Scene) Material(name string) (*Material, bool) {
	m, ok := s.materials[name]
	return m, ok
}

// EnsureMaterial returns the named material, creating it when missing. The
// second result reports whether it was created.
func (s *Scene) EnsureMaterial(name string) (*Material, bool) {
	if m, ok := s.materials[name]; ok {
		return m, false
	}
	m := &Material{Name: name, Textures: make(map[string]string)}
	s.materials[name] = m
	return m, true
}

// AssignMaterial puts the material in the object's first slot, keeping any
// other slots.
func (s *Scene) AssignMaterial(objectName, materialName string) error {
	obj, err := s.Object(objectName)
	if err != nil {
		return err
	}
	if _, ok := s.materials[materialName]; !ok {
		return fmt.Errorf("material %q %w", materialName, ErrNotFound)
	}
	if len(obj.Materials) == 0 {
		obj.Materials = []string{materialName}
		return nil
	}
	obj.Materials[0] = materialName
	return nil
}

// AddImage registers an image, replacing one with the same name.
func (s *Scene) AddImage(name, path string) *Image {
	img := &Image{Name: name, Path: path}
	s.images[name] = img
	return img
}

// Image returns the named image, if any.
func (s *Scene) Image(name string) (*Image, bool) {
	img, ok := s.images[name]
	return img, ok
}

// SetWorldTexture sets the environment texture (an image name).
func (s *Scene) SetWorldTexture(imageName string) error {
	if _, ok := s.images[imageName]; !ok {
		return fmt.Errorf("image %q %w", imageName, ErrNotFound)
	}
	s.world = imageName
	return nil
}

// WorldTexture returns the environment texture image name.
func (s *Scene) WorldTexture() string {
	return s.world
}

// WithPrimaryView runs fn as if invoked from the host's primary 3D view.
// The view is released on every exit path, panics included.
func (s *Scene) WithPrimaryView(fn func() error) error {
	s.viewDepth++
	defer func() { s.viewDepth-- }()
	return fn()
}

// InPrimaryView reports whether a primary view context is established.
func (s *Scene) InPrimaryView() bool {
	return s.viewDepth > 0
}

// ErrNeedsPrimaryView is returned by operations that require the primary
// view context.
var ErrNeedsPrimaryView = errors.New("operation requires the primary 3D view context")

// RequirePrimaryView fails unless the primary view is established.
func (s *Scene) RequirePrimaryView() error {
	if !s.InPrimaryView() {
		return ErrNeedsPrimaryView
	}
	return nil
}
