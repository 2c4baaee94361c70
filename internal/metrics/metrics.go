package metrics

import (
	"time"

	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unknownType replaces the command type label of unresolvable commands so
// arbitrary client input cannot grow label cardinality.
const unknownType = "_unknown"

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "trellis_bridge").
	Namespace string

	// Buckets are the histogram buckets for command duration.
	Buckets []float64

	// Registry receives the collectors and backs Handler.
	// Default: a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the bridge collectors.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	connectionsTotal  prometheus.Counter
	connectionsClosed *prometheus.CounterVec
	connected         prometheus.Gauge
	bytesReceived     prometheus.Counter
	bytesSent         prometheus.Counter
}

// New registers the bridge collectors.
func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "trellis_bridge",
		// Handlers range from sub-millisecond scene edits to multi-second
		// downloads.
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
		config.Registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(config.Registry)
	return &Metrics{
		registry: config.Registry,

		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "commands_total",
			Help:      "Total number of commands dispatched",
		}, []string{"type", "outcome"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handling duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"type"}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),

		connectionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed client connections by reason",
		}, []string{"reason"}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "connected",
			Help:      "1 while a client is attached",
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "received_bytes_total",
			Help:      "Total bytes read from clients",
		}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sent_bytes_total",
			Help:      "Total bytes written to clients",
		}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand records one dispatched command.
func (m *Metrics) ObserveCommand(commandType, outcome string, elapsed time.Duration) {
	if outcome == command.OutcomeUnknown {
		commandType = unknownType
	}
	m.commandsTotal.WithLabelValues(commandType, outcome).Inc()
	m.commandDuration.WithLabelValues(commandType).Observe(elapsed.Seconds())
}

// ConnectionOpened records an accepted client.
func (m *Metrics) ConnectionOpened() {
	m.connectionsTotal.Inc()
	m.connected.Set(1)
}

// ConnectionClosed records a dropped client.
func (m *Metrics) ConnectionClosed(reason string) {
	m.connectionsClosed.WithLabelValues(reason).Inc()
	m.connected.Set(0)
}

// BytesReceived records bytes read from the client.
func (m *Metrics) BytesReceived(n int) {
	m.bytesReceived.Add(float64(n))
}

// BytesSent records bytes written to the client.
func (m *Metrics) BytesSent(n int) {
	if n > 0 {
		m.bytesSent.Add(float64(n))
	}
}
