package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FishWoWater/trellis-blender/internal/assets"
	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/scene"
	"go.uber.org/zap"
)

// ImportedObject describes one object created by an import.
type ImportedObject struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Location    [3]float64  `json:"location"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Dimensions  [3]float64  `json:"dimensions"`
}

// ImportResult is the import_model result.
type ImportResult struct {
	Source   string           `json:"source"`
	Imported []ImportedObject `json:"imported"`
}

func (h *handlers) importModel(ctx context.Context, p command.Params) (any, error) {
	if err := h.Scene.RequirePrimaryView(); err != nil {
		return nil, err
	}

	source, err := p.StringOr("filepath", "")
	if err != nil {
		return nil, err
	}
	if source != "" {
		if err := checkModelExt(source); err != nil {
			return nil, err
		}
	} else {
		rawURL, err := p.String("url")
		if err != nil {
			return nil, err
		}
		if h.Downloader == nil {
			return nil, errors.New("no downloader configured")
		}
		if source, err = h.Downloader.Download(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("failed to download model: %w", err)
		}
	}
	name, err := p.StringOr("name", "")
	if err != nil {
		return nil, err
	}
	return h.importFile(source, strings.TrimSpace(name))
}

// checkModelExt rejects local paths whose extension names another format.
// Downloads are not checked: their cached names need not carry an extension
// and ReadModel tells GLB from JSON glTF by content.
func checkModelExt(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "", ".glb", ".gltf":
		return nil
	default:
		return fmt.Errorf("Unsupported model format %q: only .glb and .gltf can be imported", ext)
	}
}

// importFile reads a model file and adds its objects to the scene. A
// non-empty name renames a single imported object, or prefixes several.
func (h *handlers) importFile(path, name string) (ImportResult, error) {
	objects, err := assets.ReadModel(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import model: %w", err)
	}

	res := ImportResult{Source: path, Imported: make([]ImportedObject, 0, len(objects))}
	for _, obj := range objects {
		switch {
		case name != "" && len(objects) == 1:
			obj.Name = name
		case name != "":
			obj.Name = name + "_" + obj.Name
		}
		h.Scene.Add(obj)
		res.Imported = append(res.Imported, importedObject(obj))
	}

	logging.Info("Model imported",
		zap.String("source", path),
		zap.Int("objects", len(res.Imported)),
	)
	return res, nil
}

func importedObject(obj *scene.Object) ImportedObject {
	b := obj.WorldBounds()
	return ImportedObject{
		Name:        obj.Name,
		Type:        obj.Type,
		Location:    round3(obj.Location),
		BoundingBox: BoundingBox{Min: round3(b.Min), Max: round3(b.Max)},
		Dimensions:  round3(b.Dimensions()),
	}
}
