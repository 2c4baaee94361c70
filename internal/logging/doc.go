// Package logging provides structured logging for the bridge server.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the bridge: connection lifecycle events,
// per-command dispatch outcomes and raw byte dumps of the receive buffer.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Raw receive buffers, framing decisions, tick details
//   - Info: Server start/stop, connections, dispatched commands
//   - Warn: Dropped connections, unknown commands, config reload problems
//   - Error: Handler failures (with stack trace), bind failures
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Server listening",
//	    zap.String("addr", "localhost:9876"),
//	    zap.Duration("interval", 100*time.Millisecond),
//	)
//
// # Specialized Logging
//
// Connection Logging:
//
//	logging.LogConnection(remoteAddr, "connection_accepted")
//	logging.LogConnection(remoteAddr, "connection_closed")
//
// Command Logging:
//
//	logging.LogCommand("get_scene_info", "success", elapsed)
//
// # Configuration
//
// Initialize logging at startup. An empty level falls back to the
// TRELLIS_BRIDGE_LOG_LEVEL environment variable; when both are empty the
// logger is silent:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
