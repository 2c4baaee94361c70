package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge is a bridge instance found on the network.
type Bridge struct {
	// Instance is the advertised instance name, usually the host name.
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available.
	IP string

	Port int

	// Metadata contains the TXT records: "version", "framing", "marketplace".
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	if v := b.GetMetadata("version"); v != "" {
		return fmt.Sprintf("%s (%s) at %s [%s]", b.Instance, b.Hostname, b.Addr(), v)
	}
	return fmt.Sprintf("%s (%s) at %s", b.Instance, b.Hostname, b.Addr())
}

// Addr returns host:port for dialing.
func (b *Bridge) Addr() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
