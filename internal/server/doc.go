// Package server implements the bridge's TCP command server.
//
// The server never starts goroutines of its own. Start registers a periodic
// tick on the host scheduler, and every tick does at most one unit of
// socket work:
//
//   - with no client attached, one accept attempt
//   - with a client attached, one read, followed by dispatching every
//     command the framer can recover from the receive buffer
//
// Sockets are polled with a short deadline (Config.PollSlice); a deadline
// expiry means "nothing to do this tick" and is not an error. Because all
// of this runs on the host loop, command handlers may mutate host state
// without locking.
//
// Only one client is served at a time. Further clients wait in the
// listener's backlog until the current one disconnects. Any read-level
// failure (EOF, reset, oversized message) drops the client and the server
// returns to listening; only a bind failure keeps it from starting.
//
// # Lifecycle
//
//	Idle --Start--> Listening --accept--> Connected
//	                    ^                     |
//	                    +----- drop ----------+
//	Listening/Connected --Stop--> Idle
//
// Start, Stop and the tick must all run on the host loop. State, Running and
// Addr may be called from any goroutine.
package server
