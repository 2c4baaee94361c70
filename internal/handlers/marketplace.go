package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/marketplace"
)

var errNoMarketplace = errors.New("marketplace client is not configured")

func (h *handlers) marketplaceSpecs() []command.Spec {
	return []command.Spec{
		{
			Type:        "get_marketplace_categories",
			Description: "List marketplace categories for an asset type",
			Handler:     command.HandlerFunc(h.getCategories),
			Schema:      categoriesSchema,
		},
		{
			Type:        "search_marketplace_assets",
			Description: "Search marketplace assets by type and category",
			Handler:     command.HandlerFunc(h.searchAssets),
			Schema:      searchSchema,
		},
		{
			Type:        "download_marketplace_asset",
			Description: "Download a marketplace asset into the scene",
			Handler:     command.HandlerFunc(h.downloadAsset),
			Schema:      downloadSchema,
		},
		{
			Type:        "set_texture",
			Description: "Apply a downloaded texture set to an object",
			Handler:     command.HandlerFunc(h.setTexture),
			Schema:      setTextureSchema,
		},
	}
}

// CategoriesResult is the get_marketplace_categories result.
type CategoriesResult struct {
	AssetType  string         `json:"asset_type"`
	Categories map[string]int `json:"categories"`
}

func (h *handlers) getCategories(ctx context.Context, p command.Params) (any, error) {
	if h.Marketplace == nil {
		return nil, errNoMarketplace
	}
	raw, err := p.String("asset_type")
	if err != nil {
		return nil, err
	}
	t, err := marketplace.ParseAssetType(raw)
	if err != nil {
		return nil, err
	}
	cats, err := h.Marketplace.Categories(ctx, t)
	if err != nil {
		return nil, err
	}
	return CategoriesResult{AssetType: string(t), Categories: cats}, nil
}

// AssetSummary is one search hit.
type AssetSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          int      `json:"type"`
	Categories    []string `json:"categories"`
	DownloadCount int      `json:"download_count"`
}

// SearchResult is the search_marketplace_assets result.
type SearchResult struct {
	TotalCount    int            `json:"total_count"`
	ReturnedCount int            `json:"returned_count"`
	Assets        []AssetSummary `json:"assets"`
}

func (h *handlers) searchAssets(ctx context.Context, p command.Params) (any, error) {
	if h.Marketplace == nil {
		return nil, errNoMarketplace
	}
	raw, err := p.StringOr("asset_type", string(marketplace.All))
	if err != nil {
		return nil, err
	}
	t, err := marketplace.ParseAssetType(raw)
	if err != nil {
		return nil, err
	}
	categories, err := p.Strings("categories")
	if err != nil {
		return nil, err
	}

	total, list, err := h.Marketplace.Search(ctx, t, categories)
	if err != nil {
		return nil, err
	}
	res := SearchResult{TotalCount: total, ReturnedCount: len(list), Assets: make([]AssetSummary, 0, len(list))}
	for _, a := range list {
		res.Assets = append(res.Assets, AssetSummary{
			ID:            a.ID,
			Name:          a.Name,
			Type:          a.Type,
			Categories:    a.Categories,
			DownloadCount: a.DownloadCount,
		})
	}
	return res, nil
}

// DownloadResult is the download_marketplace_asset result. Which fields
// are set depends on the asset type.
type DownloadResult struct {
	AssetID    string            `json:"asset_id"`
	AssetType  string            `json:"asset_type"`
	Resolution string            `json:"resolution"`
	Image      string            `json:"image,omitempty"`
	Material   string            `json:"material,omitempty"`
	Maps       map[string]string `json:"maps,omitempty"`
	Imported   []ImportedObject  `json:"imported,omitempty"`
}

func (h *handlers) downloadAsset(ctx context.Context, p command.Params) (any, error) {
	if h.Marketplace == nil {
		return nil, errNoMarketplace
	}
	if h.Downloader == nil {
		return nil, errors.New("no downloader configured")
	}
	if err := h.Scene.RequirePrimaryView(); err != nil {
		return nil, err
	}

	id, err := p.String("asset_id")
	if err != nil {
		return nil, err
	}
	raw, err := p.String("asset_type")
	if err != nil {
		return nil, err
	}
	resolution, err := p.StringOr("resolution", "1k")
	if err != nil {
		return nil, err
	}
	format, err := p.StringOr("file_format", "")
	if err != nil {
		return nil, err
	}
	t, err := marketplace.ParseAssetType(raw)
	if err != nil {
		return nil, err
	}

	files, err := h.Marketplace.Files(ctx, id)
	if err != nil {
		return nil, err
	}
	res := DownloadResult{AssetID: id, AssetType: string(t), Resolution: resolution}

	switch t {
	case marketplace.HDRIs:
		ref, err := files.HDRI(resolution, format)
		if err != nil {
			return nil, err
		}
		path, err := h.Downloader.Download(ctx, ref.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to download HDRI: %w", err)
		}
		h.Scene.AddImage(id, path)
		if err := h.Scene.SetWorldTexture(id); err != nil {
			return nil, err
		}
		res.Image = id

	case marketplace.Textures:
		refs, err := files.TextureMaps(resolution, format)
		if err != nil {
			return nil, err
		}
		channels := make([]string, 0, len(refs))
		for ch := range refs {
			channels = append(channels, ch)
		}
		sort.Strings(channels)

		// Download every map before touching the scene so a failure leaves
		// no half-built material behind.
		paths := make(map[string]string, len(refs))
		for _, ch := range channels {
			path, err := h.Downloader.Download(ctx, refs[ch].URL)
			if err != nil {
				return nil, fmt.Errorf("failed to download %s map: %w", ch, err)
			}
			paths[ch] = path
		}

		mat, _ := h.Scene.EnsureMaterial(id)
		res.Material = mat.Name
		res.Maps = make(map[string]string, len(paths))
		for _, ch := range channels {
			imageName := id + "_" + ch
			h.Scene.AddImage(imageName, paths[ch])
			mat.Textures[ch] = imageName
			res.Maps[ch] = imageName
		}

	case marketplace.Models:
		ref, err := files.Model(resolution, format)
		if err != nil {
			return nil, err
		}
		path, err := h.Downloader.Download(ctx, ref.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to download model: %w", err)
		}
		imported, err := h.importFile(path, id)
		if err != nil {
			return nil, err
		}
		res.Imported = imported.Imported

	default:
		return nil, fmt.Errorf("Unsupported asset type: %s", t)
	}
	return res, nil
}

// TextureResult is the set_texture result.
type TextureResult struct {
	Object   string   `json:"object"`
	Material string   `json:"material"`
	Maps     []string `json:"maps"`
}

func (h *handlers) setTexture(_ context.Context, p command.Params) (any, error) {
	objectName, err := p.String("object_name")
	if err != nil {
		return nil, err
	}
	textureID, err := p.String("texture_id")
	if err != nil {
		return nil, err
	}
	if _, err := h.Scene.Object(objectName); err != nil {
		return nil, fmt.Errorf("Object not found: %s", objectName)
	}
	mat, ok := h.Scene.Material(textureID)
	if !ok || len(mat.Textures) == 0 {
		return nil, fmt.Errorf("Texture %s has not been downloaded; download it with download_marketplace_asset first", textureID)
	}
	if err := h.Scene.AssignMaterial(objectName, mat.Name); err != nil {
		return nil, err
	}

	maps := make([]string, 0, len(mat.Textures))
	for ch := range mat.Textures {
		maps = append(maps, ch)
	}
	sort.Strings(maps)
	return TextureResult{Object: objectName, Material: mat.Name, Maps: maps}, nil
}
