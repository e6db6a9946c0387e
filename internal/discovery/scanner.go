package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// DefaultScanTimeout bounds a Scan when the caller gives no timeout.
const DefaultScanTimeout = 5 * time.Second

// Instance is a presence tracker found on the network.
type Instance struct {
	Name     string            `json:"name"`
	Host     string            `json:"host"`
	IP       string            `json:"ip"`
	Port     int               `json:"port"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// URL returns the instance's presence endpoint.
func (i Instance) URL() string {
	path := i.Metadata["path"]
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("http://%s:%d%s", i.IP, i.Port, path)
}

// Scan browses for presence trackers until timeout elapses.
func Scan(ctx context.Context, timeout time.Duration) ([]Instance, error) {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating mDNS resolver: %w", err)
	}

	var (
		mu        sync.Mutex
		instances []Instance
	)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if inst, ok := parseServiceEntry(entry); ok {
				mu.Lock()
				instances = append(instances, inst)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("browsing mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]Instance(nil), instances...), nil
}

// parseServiceEntry keeps entries whose TXT records name this application.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Instance, bool) {
	if entry == nil {
		return Instance{}, false
	}

	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	if metadata["app"] != AppName {
		return Instance{}, false
	}

	var ip string
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0].String()
	default:
		return Instance{}, false
	}

	return Instance{
		Name:     entry.Instance,
		Host:     strings.TrimSuffix(entry.HostName, "."),
		IP:       ip,
		Port:     entry.Port,
		Metadata: metadata,
	}, true
}
