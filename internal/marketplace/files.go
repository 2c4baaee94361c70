package marketplace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FileRef points at one downloadable file.
type FileRef struct {
	URL     string             `json:"url"`
	Size    int64              `json:"size"`
	MD5     string             `json:"md5"`
	Include map[string]FileRef `json:"include,omitempty"`
}

// Files is an asset's file listing: group (hdri, Diffuse, gltf...) to
// resolution to format.
type Files map[string]json.RawMessage

// variants decodes one group.
func (f Files) variants(group string) (map[string]map[string]FileRef, error) {
	raw, ok := f[group]
	if !ok {
		return nil, fmt.Errorf("asset has no %q files", group)
	}
	var out map[string]map[string]FileRef
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("malformed %q file listing: %w", group, err)
	}
	return out, nil
}

func pick(group string, variants map[string]map[string]FileRef, resolution, format string) (FileRef, error) {
	formats, ok := variants[resolution]
	if !ok {
		return FileRef{}, fmt.Errorf("resolution %q not available for %s (available: %s)", resolution, group, strings.Join(keys(variants), ", "))
	}
	ref, ok := formats[format]
	if !ok || ref.URL == "" {
		return FileRef{}, fmt.Errorf("format %q not available for %s at %s (available: %s)", format, group, resolution, strings.Join(keys(formats), ", "))
	}
	return ref, nil
}

// HDRI resolves the environment map file. format defaults to hdr.
func (f Files) HDRI(resolution, format string) (FileRef, error) {
	if format == "" {
		format = "hdr"
	}
	v, err := f.variants("hdri")
	if err != nil {
		return FileRef{}, err
	}
	return pick("hdri", v, resolution, format)
}

// Model resolves the model file. format defaults to gltf.
func (f Files) Model(resolution, format string) (FileRef, error) {
	if format == "" {
		format = "gltf"
	}
	v, err := f.variants(format)
	if err != nil {
		return FileRef{}, err
	}
	return pick(format, v, resolution, format)
}

// Texture groups and the material channel each one feeds.
var textureChannels = map[string]string{
	"diffuse":      "diffuse",
	"diff":         "diffuse",
	"rough":        "roughness",
	"roughness":    "roughness",
	"nor_gl":       "normal",
	"displacement": "displacement",
	"disp":         "displacement",
	"metal":        "metallic",
	"ao":           "ao",
	"arm":          "arm",
}

// TextureMaps resolves every known texture channel at the resolution.
// format defaults to jpg. Groups that are not texture maps (blend, gltf,
// mtlx) are skipped.
func (f Files) TextureMaps(resolution, format string) (map[string]FileRef, error) {
	if format == "" {
		format = "jpg"
	}
	out := make(map[string]FileRef)
	for group := range f {
		channel, ok := textureChannels[strings.ToLower(group)]
		if !ok {
			continue
		}
		v, err := f.variants(group)
		if err != nil {
			return nil, err
		}
		ref, err := pick(group, v, resolution, format)
		if err != nil {
			return nil, err
		}
		out[channel] = ref
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("asset has no texture maps")
	}
	return out, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
