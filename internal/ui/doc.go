// Package ui renders terminal output for the trellis-bridge CLI.
//
// Commands that print once and exit go through a Printer:
//
//   - Header: banner printed when serve starts (address, framing, features)
//   - Result: success/failure/warning boxes; NewResponseResult turns a bridge
//     response into one, with the result pretty-printed as JSON
//   - PrintBridges: the listing produced by discover
//
// The console command runs ConsoleModel, a Bubble Tea program with a single
// input line and a scrolling transcript. Lines use the same
// "<type> [json params]" form as execute_code scripts.
//
// # Logging Integration
//
// Zap logging is silent unless TRELLIS_BRIDGE_LOG_LEVEL is set, so styled
// output is not interleaved with log lines.
package ui
