package scanner

import (
	"context"
	"net"
	"strconv"
	"time"
)

// ProbeOutcome is the result of one connect attempt.
type ProbeOutcome struct {
	Port int
	Open bool
}

// Prober attempts a single TCP connection to host:port.
type Prober interface {
	Probe(ctx context.Context, host string, port int) ProbeOutcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, host string, port int) ProbeOutcome

// Probe calls f(ctx, host, port).
func (f ProberFunc) Probe(ctx context.Context, host string, port int) ProbeOutcome {
	return f(ctx, host, port)
}

// TCPProber performs TCP connect probes.
// A port is open only when the three-way handshake completes within Timeout. Refused, timed
// out, unreachable and reset attempts are all reported as not open.
type TCPProber struct {
	Timeout time.Duration
	dialer  net.Dialer
}

// NewTCPProber returns a prober with the given connect timeout. A non-positive timeout falls
// back to DefaultProbeTimeout; probes are never unbounded.
func NewTCPProber(timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &TCPProber{Timeout: timeout, dialer: net.Dialer{Timeout: timeout}}
}

// Probe dials host:port and closes the connection straight away. No data is exchanged.
func (p *TCPProber) Probe(ctx context.Context, host string, port int) ProbeOutcome {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := p.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return ProbeOutcome{Port: port, Open: false}
	}
	_ = conn.Close()
	return ProbeOutcome{Port: port, Open: true}
}
