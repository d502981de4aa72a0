package diag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// PortResult reports whether one TCP port accepted a connection.
type PortResult struct {
	Port   int    `json:"port"`
	Status string `json:"status"`
}

const probeTimeout = 2 * time.Second

// ProbePort attempts a TCP connection to host:port with a short timeout.
// A refused or timed-out connection reports the port as closed.
func ProbePort(ctx context.Context, host string, port int) (PortResult, error) {
	if port < 1 || port > 65535 {
		return PortResult{}, fmt.Errorf("port out of range: %d", port)
	}

	dialer := net.Dialer{Timeout: probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		// Distinguish "could not resolve" from "port closed".
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return PortResult{}, fmt.Errorf("resolve host: %w", err)
		}
		return PortResult{Port: port, Status: "closed"}, nil
	}
	_ = conn.Close()
	return PortResult{Port: port, Status: "open"}, nil
}
