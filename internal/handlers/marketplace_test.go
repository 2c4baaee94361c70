package handlers

import (
	"strings"
	"testing"
)

func TestMarketplaceStatus(t *testing.T) {
	tests := []struct {
		enabled bool
		wantMsg string
	}{
		{true, "enabled"},
		{false, "disabled"},
	}
	for _, tt := range tests {
		b := newBridge(t, tt.enabled)
		st := b.mustRun(t, "get_marketplace_status", ``).(MarketplaceStatus)
		if st.Enabled != tt.enabled || !strings.Contains(st.Message, tt.wantMsg) {
			t.Errorf("get_marketplace_status() = %+v, want enabled=%v", st, tt.enabled)
		}
	}
}

func TestMarketplaceCommandsGatedByFeature(t *testing.T) {
	b := newBridge(t, false)
	for _, cmd := range []string{"get_marketplace_categories", "search_marketplace_assets", "download_marketplace_asset", "set_texture"} {
		resp := b.run(t, cmd, `{}`)
		if resp.OK() || resp.Message != "Unknown command type: "+cmd {
			t.Errorf("%s with marketplace off = %+v", cmd, resp)
		}
	}
	if !b.dispatcher.Table().Has("get_scene_info") {
		t.Error("base commands missing from the table")
	}
}

func TestMarketplaceCategoriesAndSearch(t *testing.T) {
	b := newBridge(t, true)

	cats := b.mustRun(t, "get_marketplace_categories", `{"asset_type": "textures"}`).(CategoriesResult)
	if cats.AssetType != "textures" || cats.Categories["wood"] != 2 {
		t.Errorf("get_marketplace_categories() = %+v", cats)
	}

	resp := b.run(t, "get_marketplace_categories", `{"asset_type": "brushes"}`)
	if resp.OK() || !strings.Contains(resp.Message, "Invalid params") {
		t.Errorf("get_marketplace_categories(brushes) = %+v", resp)
	}

	res := b.mustRun(t, "search_marketplace_assets", `{"asset_type": "textures", "categories": "wood"}`).(SearchResult)
	if res.TotalCount != 2 || res.ReturnedCount != 2 {
		t.Fatalf("search_marketplace_assets() = %+v", res)
	}
	if res.Assets[0].ID != "pine" || res.Assets[1].ID != "oak_planks" {
		t.Errorf("search order = %s, %s, want pine first", res.Assets[0].ID, res.Assets[1].ID)
	}
}

func TestDownloadTextureAndSetTexture(t *testing.T) {
	b := newBridge(t, true)
	b.mustRun(t, "create_object", `{"name": "Floor", "type": "PLANE"}`)

	resp := b.run(t, "set_texture", `{"object_name": "Floor", "texture_id": "oak_planks"}`)
	if resp.OK() || !strings.Contains(resp.Message, "has not been downloaded") {
		t.Errorf("set_texture() before download = %+v", resp)
	}

	dl := b.mustRun(t, "download_marketplace_asset", `{"asset_id": "oak_planks", "asset_type": "textures"}`).(DownloadResult)
	if dl.Material != "oak_planks" || dl.Resolution != "1k" {
		t.Errorf("download_marketplace_asset() = %+v", dl)
	}
	if dl.Maps["diffuse"] != "oak_planks_diffuse" || dl.Maps["roughness"] != "oak_planks_roughness" || len(dl.Maps) != 2 {
		t.Errorf("maps = %v", dl.Maps)
	}
	if img, ok := b.scene.Image("oak_planks_diffuse"); !ok || img.Path == "" {
		t.Errorf("diffuse image = %+v", img)
	}

	// A second download is served from the cache.
	b.mustRun(t, "download_marketplace_asset", `{"asset_id": "oak_planks", "asset_type": "textures"}`)
	if n := b.hitCount("/dl/oak_diff_1k.jpg"); n != 1 {
		t.Errorf("diffuse map fetched %d times, want 1", n)
	}

	tex := b.mustRun(t, "set_texture", `{"object_name": "Floor", "texture_id": "oak_planks"}`).(TextureResult)
	if tex.Material != "oak_planks" || len(tex.Maps) != 2 || tex.Maps[0] != "diffuse" {
		t.Errorf("set_texture() = %+v", tex)
	}
	obj, _ := b.scene.Object("Floor")
	if obj.Materials[0] != "oak_planks" {
		t.Errorf("Floor materials = %v", obj.Materials)
	}

	resp = b.run(t, "set_texture", `{"object_name": "Ghost", "texture_id": "oak_planks"}`)
	if resp.OK() || resp.Message != "Object not found: Ghost" {
		t.Errorf("set_texture(Ghost) = %+v", resp)
	}
}

func TestDownloadHDRIAndModel(t *testing.T) {
	b := newBridge(t, true)

	dl := b.mustRun(t, "download_marketplace_asset", `{"asset_id": "sunset", "asset_type": "hdris"}`).(DownloadResult)
	if dl.Image != "sunset" || b.scene.WorldTexture() != "sunset" {
		t.Errorf("hdri download = %+v, world = %q", dl, b.scene.WorldTexture())
	}

	dl = b.mustRun(t, "download_marketplace_asset", `{"asset_id": "chair", "asset_type": "models"}`).(DownloadResult)
	if len(dl.Imported) != 1 || dl.Imported[0].Name != "chair" {
		t.Errorf("model download = %+v", dl)
	}
	if _, err := b.scene.Object("chair"); err != nil {
		t.Errorf("imported chair missing: %v", err)
	}

	tests := []struct {
		name    string
		params  string
		wantMsg string
	}{
		{"bad resolution", `{"asset_id": "sunset", "asset_type": "hdris", "resolution": "16k"}`, "resolution \"16k\" not available"},
		{"missing asset", `{"asset_id": "nope", "asset_type": "hdris"}`, "failed to fetch files for nope"},
		{"type all", `{"asset_id": "sunset", "asset_type": "all"}`, "Invalid params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := b.run(t, "download_marketplace_asset", tt.params)
			if resp.OK() || !strings.Contains(resp.Message, tt.wantMsg) {
				t.Errorf("download_marketplace_asset(%s) = %+v, want %q", tt.params, resp, tt.wantMsg)
			}
		})
	}
}
