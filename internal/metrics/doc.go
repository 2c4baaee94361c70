// Package metrics exposes bridge activity as Prometheus metrics.
//
// Metrics implements both the command dispatcher's observer and the
// server's connection observer, so one value wires into both.
//
// Metrics collected:
//   - trellis_bridge_commands_total: commands by type and outcome
//   - trellis_bridge_command_duration_seconds: handler latency by type
//   - trellis_bridge_connections_total: accepted clients
//   - trellis_bridge_connections_closed_total: dropped clients by reason
//   - trellis_bridge_connected: 1 while a client is attached
//   - trellis_bridge_received_bytes_total / trellis_bridge_sent_bytes_total
//
// Commands whose type cannot be resolved are counted under the "_unknown"
// type label.
package metrics
