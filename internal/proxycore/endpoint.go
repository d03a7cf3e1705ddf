package proxycore

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// unspecifiedPort is the sentinel Port value meaning "not set".
const unspecifiedPort = -1

// Endpoint is an immutable (host, port) pair describing a TCP destination.
// Port -1 means "unspecified" — used by the jump-host's sshd endpoint to
// mean "use ssh's default port".
type Endpoint struct {
	Host string
	Port int32
}

// NewEndpoint constructs an Endpoint.
func NewEndpoint(host string, port int32) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// ParseEndpoint parses a "host:port" string. A missing port is always
// rejected; a "-1" port is rejected unless allowUnspecifiedPort is true.
func ParseEndpoint(s string, allowUnspecifiedPort bool) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid host:port %q: %w", s, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid host:port %q: missing host", s)
	}
	portStr = strings.TrimSpace(portStr)
	if portStr == "" {
		return Endpoint{}, fmt.Errorf("invalid host:port %q: missing port", s)
	}
	port, err := strconv.ParseInt(portStr, 10, 32)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid host:port %q: %w", s, err)
	}
	if port == unspecifiedPort && !allowUnspecifiedPort {
		return Endpoint{}, fmt.Errorf("invalid host:port %q: port -1 is not allowed here", s)
	}
	return Endpoint{Host: host, Port: int32(port)}, nil
}

// HasPort reports whether the endpoint carries a concrete port number.
func (e Endpoint) HasPort() bool {
	return e.Port != unspecifiedPort
}

// Address renders the endpoint in host:port form, suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.FormatInt(int64(e.Port), 10))
}

func (e Endpoint) String() string {
	return e.Address()
}
