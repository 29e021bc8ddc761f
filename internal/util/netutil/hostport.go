// Package netutil parses hypervisor and guest addresses and checks TCP reachability.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// SplitHostPort splits "host", "host:port", "[v6]:port" or a URL-ish
// "https://host:port/" into host and port, falling back to defaultPort.
func SplitHostPort(addr string, defaultPort int) (string, int, error) {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return "", 0, fmt.Errorf("empty host")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port, or a bare IPv6 literal.
		host = strings.Trim(addr, "[]")
		if strings.ContainsAny(host, "/[]") {
			return "", 0, fmt.Errorf("invalid host %q", addr)
		}
		return host, defaultPort, nil
	}
	if host == "" {
		return "", 0, fmt.Errorf("missing host in %q", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// JoinHostPort formats host and port, bracketing IPv6 literals.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// CheckTCP dials address once. It distinguishes an unreachable endpoint from
// one that is up but rejects the credentials.
func CheckTCP(ctx context.Context, address string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	_ = conn.Close()
	return nil
}
