// Package handlers implements the bridge's command set on top of the scene
// model, the asset fetcher and the marketplace client.
//
// Catalog returns every handler grouped the way the dispatcher gates them:
// the marketplace status query is always registered, the scene commands
// form the base set, and the marketplace commands are registered only when
// the marketplace feature is enabled.
package handlers
