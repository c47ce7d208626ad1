package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/logging"
)

const (
	// ServiceType is the mDNS service type bridges advertise
	ServiceType = "_multicontroller._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for bridge discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is assumed when an entry carries no port
	DefaultPort = 8765

	// APIPath is advertised as the REST API prefix
	APIPath = "/api/v1"
)

// Scanner handles mDNS bridge discovery
type Scanner struct {
	// Timeout is the maximum time to wait for bridge discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers every bridge on the local network until the timeout
func (s *Scanner) Scan(ctx context.Context) ([]*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var (
		mu      sync.Mutex
		bridges []*Bridge
		seen    = make(map[string]bool)
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		for entry := range entries {
			bridge := parseServiceEntry(entry)
			if bridge == nil {
				continue
			}
			mu.Lock()
			if !seen[bridge.Instance] {
				seen[bridge.Instance] = true
				bridges = append(bridges, bridge)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// the resolver closes entries once browsing stops
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Bridge(nil), bridges...), nil
}

// WaitForEntry waits for the bridge serving entryID
func (s *Scanner) WaitForEntry(ctx context.Context, entryID string) (*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Bridge, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			bridge := parseServiceEntry(entry)
			if bridge != nil && bridge.EntryID() == entryID {
				select {
				case found <- bridge:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case bridge := <-found:
		return bridge, nil
	case <-ctx.Done():
		select {
		case bridge := <-found:
			return bridge, nil
		default:
		}
		return nil, fmt.Errorf("bridge for entry %s not found within timeout", entryID)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Bridge{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     parseText(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

// parseText splits "key=value" TXT records; a bare key maps to ""
func parseText(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// Advertisement describes what a running bridge publishes
type Advertisement struct {
	Instance string
	Port     int
	EntryID  string
	Version  string
	Nodes    int
	Auth     bool
}

// Text returns the TXT records for the advertisement
func (a Advertisement) Text() []string {
	auth := "off"
	if a.Auth {
		auth = "on"
	}
	return []string{
		TxtEntry + "=" + a.EntryID,
		TxtVersion + "=" + a.Version,
		TxtNodes + "=" + strconv.Itoa(a.Nodes),
		TxtAuth + "=" + auth,
		TxtPath + "=" + APIPath,
	}
}

// Advertiser publishes a bridge over mDNS until Shutdown
type Advertiser struct {
	mu     sync.Mutex
	ad     Advertisement
	server *zeroconf.Server
}

// Advertise registers the bridge on all multicast interfaces
func Advertise(ad Advertisement) (*Advertiser, error) {
	server, err := zeroconf.Register(ad.Instance, ServiceType, ServiceDomain, ad.Port, ad.Text(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising bridge",
		zap.String("instance", ad.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", ad.Port),
	)
	return &Advertiser{ad: ad, server: server}, nil
}

// SetNodes republishes the TXT records with a new node count
func (a *Advertiser) SetNodes(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil || a.ad.Nodes == n {
		return
	}
	a.ad.Nodes = n
	a.server.SetText(a.ad.Text())
}

// Shutdown withdraws the advertisement
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		logging.Info("Stopped advertising bridge", zap.String("instance", a.ad.Instance))
	}
}
