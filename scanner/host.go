package scanner

import (
	"context"
	"time"
)

// ScanHost checks liveness, resolves the name and, for online hosts only, scans r with
// concurrency workers. The only errors are invalid inputs, reported before any probe is sent.
func (s *Scanner) ScanHost(ctx context.Context, host string, r PortRange, concurrency int) (HostResult, error) {
	if err := s.ValidateInputs(r, concurrency); err != nil {
		return HostResult{}, err
	}

	start := time.Now()
	state := Offline
	if s.pinger.PingOnce(ctx, host) {
		state = Online
	}

	hostname, aliases := UnknownHostname, []string{}
	if state == Online || !s.skipOfflineLookup {
		hostname, aliases = s.resolver.ResolveName(ctx, host)
	}
	if aliases == nil {
		aliases = []string{}
	}

	openPorts := []int{}
	if state == Online {
		ports, err := s.ScanPortRange(ctx, host, r, concurrency)
		if err != nil {
			return HostResult{}, err
		}
		openPorts = ports
	}

	s.logger.Debug("host scanned",
		"host", host,
		"state", string(state),
		"hostname", hostname,
		"open_ports", len(openPorts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return HostResult{
		Host:      host,
		State:     state,
		Hostname:  hostname,
		Aliases:   aliases,
		OpenPorts: openPorts,
	}, nil
}
