package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/FishWoWater/trellis-blender/internal/assets"
)

// DefaultBaseURL is the public Poly Haven API.
const DefaultBaseURL = "https://api.polyhaven.com"

// MaxSearchResults caps Search results.
const MaxSearchResults = 20

// AssetType is an asset family as named in API paths.
type AssetType string

// Asset types
const (
	HDRIs    AssetType = "hdris"
	Textures AssetType = "textures"
	Models   AssetType = "models"
	All      AssetType = "all"
)

// ParseAssetType accepts the API names.
func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(strings.ToLower(strings.TrimSpace(s))); t {
	case HDRIs, Textures, Models, All:
		return t, nil
	default:
		return "", fmt.Errorf("invalid asset type %q: must be one of hdris, textures, models, all", s)
	}
}

// Asset is one search result.
type Asset struct {
	ID            string         `json:"-"`
	Name          string         `json:"name"`
	Type          int            `json:"type"`
	Categories    []string       `json:"categories"`
	Tags          []string       `json:"tags"`
	Authors       map[string]any `json:"authors,omitempty"`
	DownloadCount int            `json:"download_count"`
}

// Fetcher is the subset of assets.Fetcher the client needs.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

// Client talks to the marketplace API.
type Client struct {
	baseURL string
	fetcher Fetcher
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, fetcher Fetcher) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// Categories returns the category names of an asset type with their asset
// counts.
func (c *Client) Categories(ctx context.Context, t AssetType) (map[string]int, error) {
	var out map[string]int
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/categories/"+url.PathEscape(string(t)), &out); err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return out, nil
}

// Search lists assets of type t, restricted to assets in all of the given
// categories. It returns the total number of matches and at most
// MaxSearchResults of them, most downloaded first.
func (c *Client) Search(ctx context.Context, t AssetType, categories []string) (int, []Asset, error) {
	q := url.Values{}
	if t != "" && t != All {
		q.Set("t", string(t))
	}
	if len(categories) > 0 {
		q.Set("c", strings.Join(categories, ","))
	}
	u := c.baseURL + "/assets"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var raw map[string]Asset
	if err := c.fetcher.GetJSON(ctx, u, &raw); err != nil {
		return 0, nil, fmt.Errorf("failed to search assets: %w", err)
	}

	list := make([]Asset, 0, len(raw))
	for id, a := range raw {
		a.ID = id
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].DownloadCount != list[j].DownloadCount {
			return list[i].DownloadCount > list[j].DownloadCount
		}
		return list[i].ID < list[j].ID
	})
	if len(list) > MaxSearchResults {
		list = list[:MaxSearchResults]
	}
	return len(raw), list, nil
}

// Files returns the file listing of an asset.
func (c *Client) Files(ctx context.Context, id string) (Files, error) {
	var out Files
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/files/"+url.PathEscape(id), &out); err != nil {
		return nil, fmt.Errorf("failed to fetch files for %s: %w", id, err)
	}
	return out, nil
}

var _ Fetcher = (*assets.Fetcher)(nil)
