// Package config loads and saves the bridge's YAML configuration file.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/trellis-bridge/config.yaml or $HOME/.config/trellis-bridge/config.yaml
//   - macOS: $HOME/.config/trellis-bridge/config.yaml
//   - Windows: %LOCALAPPDATA%\trellis-bridge\config.yaml
//
// A missing file is not an error: Load returns Default(). Keys absent from
// the file keep their default values.
//
// # Hot Reload
//
// Watcher follows the file with fsnotify and hands every successfully
// parsed revision to a callback. The bridge uses it to toggle feature
// flags, and with them the conditional command handlers, without a
// restart. Server address and framing changes only apply on the next
// start.
package config
