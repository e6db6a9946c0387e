package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"unicode"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

const (
	// ServiceType is the advertised service.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DefaultHostname is used when no tracked device is configured.
	DefaultHostname = "myairtag"

	// hostnamePrefix is prepended to the first tracked device's name.
	hostnamePrefix = "my"

	// maxLabelLength is the DNS label limit.
	maxLabelLength = 63

	// AppName identifies presence instances in TXT records.
	AppName = "graylogic-presence"
)

// Logger is the logging interface used by the advertiser.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Hostname derives the mDNS host name from a device display name:
// "my" followed by the lower-cased letters and digits of name. Other
// characters are dropped. An empty result falls back to DefaultHostname.
func Hostname(firstDeviceName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(firstDeviceName) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultHostname
	}

	name := hostnamePrefix + b.String()
	if len(name) > maxLabelLength {
		name = name[:maxLabelLength]
	}
	return name
}

// registerFunc matches zeroconf.RegisterProxy.
type registerFunc func(instance, service, domain string, port int, host string, ips []string, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// Advertiser publishes the HTTP API on mDNS.
type Advertiser struct {
	instance string
	service  string
	domain   string
	port     int
	text     []string

	register registerFunc
	addrs    func() ([]string, error)
	logger   Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser builds an advertiser for the API listening on port.
// firstDevice is the display name of the first tracked device, or "".
func NewAdvertiser(cfg config.MDNSConfig, firstDevice string, port int, version string) (*Advertiser, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	instance := cfg.Instance
	if instance == "" {
		instance = Hostname(firstDevice)
	}
	service := cfg.Service
	if service == "" {
		service = ServiceType
	}
	domain := cfg.Domain
	if domain == "" {
		domain = ServiceDomain
	}

	return &Advertiser{
		instance: instance,
		service:  service,
		domain:   domain,
		port:     port,
		text: []string{
			"app=" + AppName,
			"version=" + version,
			"path=/api/v1/presence",
		},
		register: zeroconf.RegisterProxy,
		addrs:    localAddresses,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (a *Advertiser) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Instance returns the advertised instance and host name.
func (a *Advertiser) Instance() string {
	return a.instance
}

// Start registers the service. Calling Start twice is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	ips, err := a.addrs()
	if err != nil {
		return err
	}

	server, err := a.register(a.instance, a.service, a.domain, a.port, a.instance, ips, a.text, nil)
	if err != nil {
		return fmt.Errorf("registering mDNS service %s.%s: %w", a.instance, a.service, err)
	}
	a.server = server

	a.logger.Info("mDNS advertisement started",
		"host", a.instance+"."+a.domain,
		"service", a.service,
		"port", a.port,
	)
	return nil
}

// Close withdraws the advertisement.
func (a *Advertiser) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mDNS advertisement stopped")
}

// localAddresses returns the non-loopback unicast addresses of this host.
func localAddresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}

	var ips []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		ips = append(ips, ipNet.IP.String())
	}
	if len(ips) == 0 {
		return nil, ErrNoAddresses
	}
	return ips, nil
}
