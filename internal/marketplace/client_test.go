package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FishWoWater/trellis-blender/internal/assets"
)

const textureFiles = `{
  "Diffuse": {"1k": {"jpg": {"url": "https://dl/wood_diff_1k.jpg", "size": 10}, "png": {"url": "https://dl/wood_diff_1k.png"}}},
  "Rough": {"1k": {"jpg": {"url": "https://dl/wood_rough_1k.jpg"}}},
  "nor_gl": {"1k": {"jpg": {"url": "https://dl/wood_nor_gl_1k.jpg"}}},
  "nor_dx": {"1k": {"jpg": {"url": "https://dl/wood_nor_dx_1k.jpg"}}},
  "blend": {"1k": {"blend": {"url": "https://dl/wood_1k.blend"}}}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := assets.NewFetcher(t.TempDir())
	f.MaxRetries = 0
	return NewClient(srv.URL+"/", f)
}

func TestParseAssetType(t *testing.T) {
	tests := []struct {
		in      string
		want    AssetType
		wantErr bool
	}{
		{"hdris", HDRIs, false},
		{"Textures", Textures, false},
		{" models ", Models, false},
		{"all", All, false},
		{"brushes", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAssetType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAssetType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAssetType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCategories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/categories/hdris" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"all": 50, "outdoor": 30, "indoor": 20}`)
	})

	got, err := c.Categories(context.Background(), HDRIs)
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	if got["outdoor"] != 30 || len(got) != 3 {
		t.Errorf("Categories() = %v", got)
	}

	if _, err := c.Categories(context.Background(), Models); err == nil {
		t.Error("Categories(models) error = nil, want 404 error")
	}
}

func TestSearchSortsAndCaps(t *testing.T) {
	var query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		var parts []string
		for i := 0; i < 25; i++ {
			parts = append(parts, fmt.Sprintf(`"asset_%02d": {"name": "Asset %d", "type": 1, "download_count": %d, "categories": ["wood"]}`, i, i, i*10))
		}
		fmt.Fprintf(w, "{%s}", strings.Join(parts, ","))
	})

	total, list, err := c.Search(context.Background(), Textures, []string{"wood", "floor"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 25 {
		t.Errorf("total = %d, want 25", total)
	}
	if len(list) != MaxSearchResults {
		t.Fatalf("len(list) = %d, want %d", len(list), MaxSearchResults)
	}
	if list[0].ID != "asset_24" || list[0].DownloadCount != 240 {
		t.Errorf("first result = %+v, want asset_24", list[0])
	}
	for i := 1; i < len(list); i++ {
		if list[i].DownloadCount > list[i-1].DownloadCount {
			t.Fatalf("results not sorted at %d", i)
		}
	}
	if !strings.Contains(query, "t=textures") || !strings.Contains(query, "c=wood%2Cfloor") {
		t.Errorf("query = %q", query)
	}
}

func TestSearchAllOmitsType(t *testing.T) {
	var query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, `{}`)
	})
	if _, _, err := c.Search(context.Background(), All, nil); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if query != "" {
		t.Errorf("query = %q, want empty", query)
	}
}

func TestFilesTextureMaps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, textureFiles)
	})
	files, err := c.Files(context.Background(), "wood")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}

	maps, err := files.TextureMaps("1k", "")
	if err != nil {
		t.Fatalf("TextureMaps() error = %v", err)
	}
	want := map[string]string{
		"diffuse":   "https://dl/wood_diff_1k.jpg",
		"roughness": "https://dl/wood_rough_1k.jpg",
		"normal":    "https://dl/wood_nor_gl_1k.jpg",
	}
	if len(maps) != len(want) {
		t.Errorf("TextureMaps() = %v", maps)
	}
	for ch, u := range want {
		if maps[ch].URL != u {
			t.Errorf("maps[%s] = %q, want %q", ch, maps[ch].URL, u)
		}
	}

	if _, err := files.TextureMaps("4k", ""); err == nil {
		t.Error("TextureMaps(4k) error = nil, want error")
	}
	if _, err := files.TextureMaps("1k", "exr"); err == nil {
		t.Error("TextureMaps(exr) error = nil, want error")
	}
}

func TestFilesHDRIAndModel(t *testing.T) {
	files := Files{
		"hdri": []byte(`{"1k": {"hdr": {"url": "https://dl/sky_1k.hdr"}, "exr": {"url": "https://dl/sky_1k.exr"}}}`),
		"gltf": []byte(`{"2k": {"gltf": {"url": "https://dl/chair_2k.gltf", "include": {"textures/a.jpg": {"url": "https://dl/a.jpg"}}}}}`),
	}

	ref, err := files.HDRI("1k", "")
	if err != nil || ref.URL != "https://dl/sky_1k.hdr" {
		t.Errorf("HDRI() = %v, %v", ref, err)
	}
	ref, err = files.HDRI("1k", "exr")
	if err != nil || ref.URL != "https://dl/sky_1k.exr" {
		t.Errorf("HDRI(exr) = %v, %v", ref, err)
	}

	ref, err = files.Model("2k", "")
	if err != nil || ref.URL != "https://dl/chair_2k.gltf" {
		t.Errorf("Model() = %v, %v", ref, err)
	}
	if len(ref.Include) != 1 {
		t.Errorf("Model().Include = %v", ref.Include)
	}
	if _, err := files.Model("2k", "fbx"); err == nil {
		t.Error("Model(fbx) error = nil, want error")
	}
}
