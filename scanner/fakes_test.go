package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hostsweep/logging"
)

// recordingProber reports ports in open[host] as open and records every call.
type recordingProber struct {
	open  map[string]map[int]bool
	delay time.Duration

	mu    sync.Mutex
	calls map[string][]int

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newRecordingProber(open map[string][]int) *recordingProber {
	p := &recordingProber{open: make(map[string]map[int]bool), calls: make(map[string][]int)}
	for host, ports := range open {
		set := make(map[int]bool, len(ports))
		for _, port := range ports {
			set[port] = true
		}
		p.open[host] = set
	}
	return p
}

func (p *recordingProber) Probe(_ context.Context, host string, port int) ProbeOutcome {
	current := p.inFlight.Add(1)
	for {
		max := p.maxInFlight.Load()
		if current <= max || p.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}
	defer p.inFlight.Add(-1)

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.calls[host] = append(p.calls[host], port)
	p.mu.Unlock()

	return ProbeOutcome{Port: port, Open: p.open[host][port]}
}

func (p *recordingProber) callsFor(host string) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.calls[host]...)
}

func (p *recordingProber) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, ports := range p.calls {
		total += len(ports)
	}
	return total
}

// fakePinger answers from a fixed set of online hosts.
type fakePinger struct {
	online map[string]bool
	calls  atomic.Int64
}

func (f *fakePinger) PingOnce(_ context.Context, host string) bool {
	f.calls.Add(1)
	return f.online[host]
}

// fakeResolver answers from a fixed table; unknown hosts resolve to UnknownHostname.
type fakeResolver struct {
	names map[string][]string
	mu    sync.Mutex
	asked []string
}

func (f *fakeResolver) ResolveName(_ context.Context, host string) (string, []string) {
	f.mu.Lock()
	f.asked = append(f.asked, host)
	f.mu.Unlock()
	names, ok := f.names[host]
	if !ok || len(names) == 0 {
		return UnknownHostname, []string{}
	}
	return names[0], append([]string{}, names[1:]...)
}

func (f *fakeResolver) askedHosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.asked...)
}

// captureSink records every report it receives.
type captureSink struct {
	mu      sync.Mutex
	reports []*ScanReport
	err     error
}

func (c *captureSink) Write(_ context.Context, report *ScanReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, report)
	return c.err
}

func newTestScanner(prober Prober, pinger Pinger, resolver Resolver, opts ...Option) *Scanner {
	base := []Option{
		WithProber(prober),
		WithPinger(pinger),
		WithResolver(resolver),
		WithLogger(logging.Discard()),
	}
	return New(append(base, opts...)...)
}
