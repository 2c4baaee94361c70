package server

import (
	"testing"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/handlers"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"github.com/FishWoWater/trellis-blender/internal/scene"
	"github.com/FishWoWater/trellis-blender/internal/scheduler"
)

// newBridgeHarness serves the real command set over a loopback socket.
func newBridgeHarness(t *testing.T) (*harness, *command.Dispatcher) {
	t.Helper()
	s := scene.New("Scene")
	d, err := command.NewDispatcher(handlers.Catalog(handlers.Deps{Scene: s}), nil, command.WithViewContext(s))
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	h := &harness{t: t, sched: scheduler.NewManual(), obs: &countingObserver{}}
	h.srv = New(Config{Host: "127.0.0.1"}, h.sched, d, WithObserver(h.obs))
	if err := h.srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = h.srv.Stop() })
	return h, d
}

func TestBridgeScenarios(t *testing.T) {
	h, d := newBridgeHarness(t)
	c := h.connect()

	c.send(`{"type":"create_object","params":{"type":"CUBE","location":[0,0,0]}}`)
	resp := h.expectResponse(c)
	if !resp.OK() {
		t.Fatalf("create_object = %+v", resp)
	}
	if name := resp.Result.(map[string]any)["name"]; name != "Cube" {
		t.Errorf("result.name = %v, want Cube", name)
	}

	c.send(`{"type":"get_scene_info"}`)
	resp = h.expectResponse(c)
	if !resp.OK() {
		t.Fatalf("get_scene_info = %+v", resp)
	}
	info := resp.Result.(map[string]any)
	for _, key := range []string{"name", "object_count", "objects", "materials_count"} {
		if _, ok := info[key]; !ok {
			t.Errorf("get_scene_info result lacks %q: %v", key, info)
		}
	}
	if info["object_count"] != float64(1) {
		t.Errorf("object_count = %v, want 1", info["object_count"])
	}

	c.send(`{"type":"nonexistent_cmd"}`)
	resp = h.expectResponse(c)
	if resp.Status != protocol.StatusError || resp.Message != "Unknown command type: nonexistent_cmd" {
		t.Errorf("nonexistent_cmd = %+v", resp)
	}

	// Flipping the feature flag takes effect on the live connection.
	c.send(`{"type":"search_marketplace_assets"}`)
	if resp := h.expectResponse(c); resp.OK() {
		t.Errorf("marketplace command resolved while disabled: %+v", resp)
	}
	if err := d.Reconfigure(command.Features{command.FeatureMarketplace: true}); err != nil {
		t.Fatal(err)
	}
	c.send(`{"type":"get_marketplace_status"}`)
	resp = h.expectResponse(c)
	if !resp.OK() || resp.Result.(map[string]any)["enabled"] != true {
		t.Errorf("get_marketplace_status after enabling = %+v", resp)
	}
	if !d.Table().Has("search_marketplace_assets") {
		t.Error("search_marketplace_assets missing after enabling the flag")
	}
	if h.obs.opened != 1 || h.obs.closed != 0 {
		t.Errorf("connection recycled: %+v", h.obs)
	}
}
