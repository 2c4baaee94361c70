// Package discovery advertises a running bridge over multicast DNS and finds
// bridges on the local network.
//
// A bridge registers the "_trellis-bridge._tcp" service with its instance
// name, port and a few TXT records (version, framing, enabled features).
// Controllers browse for the same service type; Scan collects every answer
// until its timeout, Find returns as soon as a named instance shows up.
//
// Advertising is opt-in: the command server binds to localhost by default,
// and announcing an unreachable address would only confuse controllers.
package discovery
