package network

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// MinUnprivilegedPort is the lowest port a dev server may bind without elevated privileges.
const MinUnprivilegedPort = 1024

// FallbackHost is used when no non-loopback IPv4 interface is found.
const FallbackHost = "127.0.0.1"

var (
	// WebPorts are tried in order for the web dev server.
	WebPorts = []int{3000, 3001, 3002, 3003, 3004, 3005, 3006, 3007}
	// AppPorts are tried in order for the Expo dev server.
	AppPorts = []int{8081, 8082, 8083, 8084, 8085, 8086, 8087, 8088}
)

// ServerAddress is a resolved, bindable endpoint.
type ServerAddress struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Scheme string `json:"scheme,omitempty"`
}

// String renders host:port.
func (a ServerAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// URL renders scheme://host:port, defaulting the scheme to http.
func (a ServerAddress) URL() string {
	scheme := a.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + a.String()
}

// WithScheme returns a copy of the address using scheme.
func (a ServerAddress) WithScheme(scheme string) ServerAddress {
	a.Scheme = scheme
	return a
}

// IsZero reports whether the address was never resolved.
func (a ServerAddress) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// NoAvailablePortError is returned when every candidate port is taken.
type NoAvailablePortError struct {
	Ports []int
}

func (e *NoAvailablePortError) Error() string {
	ports := make([]string, len(e.Ports))
	for i, p := range e.Ports {
		ports[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("no available port among [%s]", strings.Join(ports, ", "))
}

// PrivilegedPortError describes a preferred port below MinUnprivilegedPort.
type PrivilegedPortError struct {
	Port int
}

func (e *PrivilegedPortError) Error() string {
	return fmt.Sprintf("port %d requires elevated privileges; use a port above %d", e.Port, MinUnprivilegedPort-1)
}

// ValidatePort rejects ports outside the usable unprivileged range.
func ValidatePort(port int) error {
	if port > 65535 || port < 0 {
		return fmt.Errorf("port %d is out of range", port)
	}
	if port < MinUnprivilegedPort {
		return &PrivilegedPortError{Port: port}
	}
	return nil
}

// Request describes what the caller would like to bind.
type Request struct {
	PreferredHost string
	PreferredPort int
	FallbackPorts []int
	// Exclude lists ports already handed out in this session.
	Exclude []int
}

// Resolver picks a host and a free port. The zero value probes the real OS.
type Resolver struct {
	Logger *log.Logger
	// Available reports whether a port can be bound right now.
	Available func(port int) bool
	// Interfaces lists interface addresses used for host detection.
	Interfaces func() ([]net.Addr, error)
}

// ResolveAddress resolves req with the default resolver.
func ResolveAddress(req Request) (ServerAddress, error) {
	return (&Resolver{}).Resolve(req)
}

// Resolve picks the host and the first free candidate port.
func (r *Resolver) Resolve(req Request) (ServerAddress, error) {
	host := req.PreferredHost
	if host == "" {
		host = r.localIPv4()
	}

	candidates := r.candidates(req)
	available := r.Available
	if available == nil {
		available = IsPortFree
	}

	for _, port := range candidates {
		if available(port) {
			return ServerAddress{Host: host, Port: port, Scheme: "http"}, nil
		}
		r.logger().Debug("port busy", "port", port)
	}

	return ServerAddress{}, &NoAvailablePortError{Ports: candidates}
}

func (r *Resolver) candidates(req Request) []int {
	excluded := make(map[int]bool, len(req.Exclude))
	for _, p := range req.Exclude {
		excluded[p] = true
	}

	ports := make([]int, 0, len(req.FallbackPorts)+1)
	seen := make(map[int]bool)
	add := func(p int) {
		if seen[p] || excluded[p] {
			return
		}
		seen[p] = true
		ports = append(ports, p)
	}

	if req.PreferredPort != 0 {
		if err := ValidatePort(req.PreferredPort); err != nil {
			r.logger().Warn("ignoring preferred port, falling back", "port", req.PreferredPort, "reason", err)
		} else {
			add(req.PreferredPort)
		}
	}
	for _, p := range req.FallbackPorts {
		add(p)
	}
	return ports
}

func (r *Resolver) localIPv4() string {
	interfaces := r.Interfaces
	if interfaces == nil {
		interfaces = net.InterfaceAddrs
	}
	addrs, err := interfaces()
	if err != nil {
		r.logger().Debug("could not list interfaces", "err", err)
		return FallbackHost
	}
	if ip := firstExternalIPv4(addrs); ip != "" {
		return ip
	}
	return FallbackHost
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// LocalIPv4 returns the first non-loopback IPv4 address of this machine,
// or FallbackHost when there is none.
func LocalIPv4() string {
	return (&Resolver{}).localIPv4()
}

func firstExternalIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// IsPortFree binds the port on all interfaces and releases it immediately.
func IsPortFree(port int) bool {
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
