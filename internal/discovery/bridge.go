package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// TXT record keys published by a bridge
const (
	TxtEntry   = "entry"
	TxtVersion = "version"
	TxtNodes   = "nodes"
	TxtAuth    = "auth"
	TxtPath    = "path"
)

// Bridge represents a multicontroller bridge found on the network
type Bridge struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "hub.local.")
	Hostname string

	// IP is the first reported address, IPv4 preferred
	IP string

	// Port is the REST API port
	Port int

	// Metadata contains TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("Multicontroller bridge %s (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// BaseURL returns the REST API base URL for the bridge
func (b *Bridge) BaseURL() string {
	path := b.GetMetadata(TxtPath)
	return "http://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port)) + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}

// EntryID returns the entry the bridge serves
func (b *Bridge) EntryID() string { return b.GetMetadata(TxtEntry) }

// Nodes returns the advertised node count, or -1 if unknown
func (b *Bridge) Nodes() int {
	n, err := strconv.Atoi(b.GetMetadata(TxtNodes))
	if err != nil {
		return -1
	}
	return n
}

// AuthRequired reports whether the bridge API needs a bearer token
func (b *Bridge) AuthRequired() bool {
	return b.GetMetadata(TxtAuth) == "on"
}
