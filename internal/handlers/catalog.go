package handlers

import (
	"context"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/marketplace"
	"github.com/FishWoWater/trellis-blender/internal/scene"
)

// Downloader fetches a URL to a local file, usually through a cache.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (string, error)
}

// Deps are the collaborators handlers operate on. Scene is required;
// Downloader and Marketplace may be nil when the commands that need them
// are never called.
type Deps struct {
	Scene       *scene.Scene
	Downloader  Downloader
	Marketplace *marketplace.Client
}

type handlers struct {
	Deps
}

// Catalog returns the bridge's full command catalog.
func Catalog(deps Deps) command.Catalog {
	h := &handlers{Deps: deps}

	base := h.sceneSpecs()
	// Scripts run against the base set without themselves.
	script := &scriptRunner{catalog: command.Catalog{Base: base}}
	base = append(base, command.Spec{
		Type:        "execute_code",
		Description: "Run a scene script: one command per line",
		Handler:     command.HandlerFunc(script.execute),
		Schema:      executeCodeSchema,
	})

	return command.Catalog{
		Status: h.statusSpec,
		Base:   base,
		Conditional: map[command.Feature][]command.Spec{
			command.FeatureMarketplace: h.marketplaceSpecs(),
		},
	}
}

// MarketplaceStatus is the get_marketplace_status result.
type MarketplaceStatus struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

func (h *handlers) statusSpec(features command.Features) command.Spec {
	status := MarketplaceStatus{
		Enabled: features.Enabled(command.FeatureMarketplace),
		Message: "Marketplace integration is enabled and ready to use.",
	}
	if !status.Enabled {
		status.Message = "Marketplace integration is disabled. Set features.marketplace to true in the bridge configuration to search and download assets."
	}
	return command.Spec{
		Type:        "get_marketplace_status",
		Description: "Report whether marketplace commands are available",
		Handler: command.HandlerFunc(func(context.Context, command.Params) (any, error) {
			return status, nil
		}),
	}
}
