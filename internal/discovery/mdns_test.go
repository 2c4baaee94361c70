package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "IPv4 bridge",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "studio"},
				HostName:      "studio.local.",
				Port:          9876,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"version=1.2.0", "framing=whole"},
			},
			wantIP:   "192.168.4.16",
			wantPort: 9876,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "laptop"},
				Port:          9000,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name: "missing port defaults",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "studio"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name: "IPv4 preferred over IPv6",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "studio"},
				Port:          9876,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.7")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "10.0.0.7",
			wantPort: 9876,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "studio"},
				Port:          9876,
			},
			wantNil: true,
		},
		{
			name: "no instance",
			entry: &zeroconf.ServiceEntry{
				Port:     9876,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if got.IP != tt.wantIP || got.Port != tt.wantPort {
				t.Errorf("parseServiceEntry() = %s:%d, want %s:%d", got.IP, got.Port, tt.wantIP, tt.wantPort)
			}
			if got.Instance != tt.entry.Instance {
				t.Errorf("Instance = %q, want %q", got.Instance, tt.entry.Instance)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"version=1.2.0", "marketplace=true", "debug", "note=a=b", "=orphan"})
	want := map[string]string{"version": "1.2.0", "marketplace": "true", "debug": "", "note": "a=b"}
	if len(got) != len(want) {
		t.Errorf("parseTXT() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestBridge(t *testing.T) {
	b := &Bridge{Instance: "studio", Hostname: "studio.local.", IP: "192.168.4.16", Port: 9876}
	if got, want := b.String(), "studio (studio.local.) at 192.168.4.16:9876"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	b.Metadata = map[string]string{"version": "1.2.0"}
	if got, want := b.String(), "studio (studio.local.) at 192.168.4.16:9876 [1.2.0]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	v6 := &Bridge{IP: "fe80::1", Port: 9000}
	if got := v6.Addr(); got != "[fe80::1]:9000" {
		t.Errorf("Addr() = %q", got)
	}
	if got := v6.GetMetadata("version"); got != "" {
		t.Errorf("GetMetadata() on nil metadata = %q", got)
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("NewScanner().Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}
