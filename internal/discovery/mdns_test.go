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
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Living Room"},
				HostName:      "hub.local.",
				Port:          8765,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"entry=e1", "nodes=2"},
			},
			wantIP:   "192.168.4.16",
			wantPort: 8765,
		},
		{
			name: "IPv6 fallback",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Attic"},
				Port:          9000,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name: "missing port uses default",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name:    "no address",
			entry:   &zeroconf.ServiceEntry{Port: 8765},
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
			if got.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", got.IP, tt.wantIP)
			}
			if got.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", got.Port, tt.wantPort)
			}
			if got.Instance != tt.entry.Instance {
				t.Errorf("Instance = %v, want %v", got.Instance, tt.entry.Instance)
			}
		})
	}
}

func TestParseText(t *testing.T) {
	got := parseText([]string{"entry=e1", "path=/api/v1", "flag", "eq=a=b"})
	want := map[string]string{"entry": "e1", "path": "/api/v1", "flag": "", "eq": "a=b"}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestAdvertisement_Text(t *testing.T) {
	ad := Advertisement{Instance: "Living Room", Port: 8765, EntryID: "e1", Version: "0.0.6", Nodes: 3, Auth: true}

	b := &Bridge{IP: "192.168.1.2", Port: 8765, Metadata: parseText(ad.Text())}
	if b.EntryID() != "e1" {
		t.Errorf("EntryID() = %v, want e1", b.EntryID())
	}
	if b.Nodes() != 3 {
		t.Errorf("Nodes() = %v, want 3", b.Nodes())
	}
	if !b.AuthRequired() {
		t.Error("AuthRequired() = false, want true")
	}
	if b.GetMetadata(TxtVersion) != "0.0.6" {
		t.Errorf("version = %v, want 0.0.6", b.GetMetadata(TxtVersion))
	}
	if got := b.BaseURL(); got != "http://192.168.1.2:8765/api/v1" {
		t.Errorf("BaseURL() = %v", got)
	}
}

func TestBridge_Defaults(t *testing.T) {
	b := &Bridge{Instance: "x", Hostname: "h.local.", IP: "fe80::1", Port: 80}

	if b.Nodes() != -1 {
		t.Errorf("Nodes() = %v, want -1", b.Nodes())
	}
	if b.AuthRequired() {
		t.Error("AuthRequired() = true without metadata")
	}
	if got := b.BaseURL(); got != "http://[fe80::1]:80" {
		t.Errorf("BaseURL() = %v", got)
	}
	if got := b.String(); got != "Multicontroller bridge x (h.local.) at [fe80::1]:80" {
		t.Errorf("String() = %v", got)
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}
