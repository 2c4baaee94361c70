// Trellis-bridge is the command server that lets an external controller drive
// a 3D scene over a local TCP socket.
//
// The serve command runs the bridge: a single-client JSON command server
// polled from the host main loop. The remaining commands are controller-side
// utilities for talking to a running bridge.
//
// Usage:
//
//	trellis-bridge serve [flags]
//	trellis-bridge send get_scene_info
//	trellis-bridge console
//
// See 'trellis-bridge --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FishWoWater/trellis-blender/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trellis-bridge",
	Short: "Scene command bridge",
	Long: `A TCP command bridge for a 3D content tool.

The bridge accepts one controller connection at a time on localhost:9876,
reads JSON commands ({"type": ..., "params": {...}}) and answers each with
{"status": "success", "result": ...} or {"status": "error", "message": ...}.

Use 'serve' to run the bridge, and 'send' or 'console' to talk to one.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Flags shared by every command
var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config and TRELLIS_BRIDGE_LOG_LEVEL")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trellis-bridge %s\n", version.Full())
	},
}
