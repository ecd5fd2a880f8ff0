package scanner

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestScanHost_OfflineSkipsPortScan(t *testing.T) {
	prober := newRecordingProber(map[string][]int{"10.0.0.2": {22}})
	resolver := &fakeResolver{names: map[string][]string{"10.0.0.2": {"db.internal"}}}
	s := newTestScanner(prober, &fakePinger{}, resolver)

	result, err := s.ScanHost(context.Background(), "10.0.0.2", PortRange{Start: 1, End: 1024}, 10)
	if err != nil {
		t.Fatalf("scan host: %v", err)
	}
	if result.State != Offline {
		t.Fatalf("state = %s, want Offline", result.State)
	}
	if result.OpenPorts == nil || len(result.OpenPorts) != 0 {
		t.Fatalf("offline host must have empty open ports, got %#v", result.OpenPorts)
	}
	if prober.totalCalls() != 0 {
		t.Fatalf("prober invoked %d times for offline host", prober.totalCalls())
	}
	// Resolution still runs for offline hosts by default.
	if result.Hostname != "db.internal" {
		t.Fatalf("hostname = %q, want db.internal", result.Hostname)
	}
}

func TestScanHost_SkipOfflineLookup(t *testing.T) {
	resolver := &fakeResolver{names: map[string][]string{"10.0.0.2": {"db.internal"}}}
	s := newTestScanner(newRecordingProber(nil), &fakePinger{}, resolver, WithSkipOfflineLookup())

	result, err := s.ScanHost(context.Background(), "10.0.0.2", PortRange{Start: 1, End: 10}, 1)
	if err != nil {
		t.Fatalf("scan host: %v", err)
	}
	if result.Hostname != UnknownHostname || len(result.Aliases) != 0 || result.Aliases == nil {
		t.Fatalf("expected Unknown with empty aliases, got %q %#v", result.Hostname, result.Aliases)
	}
	if asked := resolver.askedHosts(); len(asked) != 0 {
		t.Fatalf("resolver called for offline host: %v", asked)
	}
}

func TestScanHost_OnlineAssemblesResult(t *testing.T) {
	prober := newRecordingProber(map[string][]int{"10.0.0.1": {22, 80}})
	pinger := &fakePinger{online: map[string]bool{"10.0.0.1": true}}
	resolver := &fakeResolver{names: map[string][]string{"10.0.0.1": {"web.internal", "www.internal"}}}
	s := newTestScanner(prober, pinger, resolver, WithSkipOfflineLookup())

	result, err := s.ScanHost(context.Background(), "10.0.0.1", PortRange{Start: 1, End: 100}, 5)
	if err != nil {
		t.Fatalf("scan host: %v", err)
	}

	ports := append([]int(nil), result.OpenPorts...)
	slices.Sort(ports)
	if result.Host != "10.0.0.1" || result.State != Online || !slices.Equal(ports, []int{22, 80}) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Hostname != "web.internal" || !slices.Equal(result.Aliases, []string{"www.internal"}) {
		t.Fatalf("unexpected naming: %q %v", result.Hostname, result.Aliases)
	}
}

func TestScanHost_InvalidInputsFailBeforeProbing(t *testing.T) {
	cases := []struct {
		name        string
		r           PortRange
		concurrency int
		want        error
	}{
		{"start after end", PortRange{Start: 100, End: 10}, 5, ErrInvalidPortRange},
		{"zero start", PortRange{Start: 0, End: 10}, 5, ErrInvalidPortRange},
		{"end above max", PortRange{Start: 1, End: 70000}, 5, ErrInvalidPortRange},
		{"zero concurrency", PortRange{Start: 1, End: 10}, 0, ErrInvalidConcurrency},
		{"negative concurrency", PortRange{Start: 1, End: 10}, -3, ErrInvalidConcurrency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prober := newRecordingProber(nil)
			pinger := &fakePinger{online: map[string]bool{"10.0.0.1": true}}
			s := newTestScanner(prober, pinger, &fakeResolver{})

			_, err := s.ScanHost(context.Background(), "10.0.0.1", tc.r, tc.concurrency)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if pinger.calls.Load() != 0 || prober.totalCalls() != 0 {
				t.Fatalf("work started despite invalid input: pings=%d probes=%d", pinger.calls.Load(), prober.totalCalls())
			}
		})
	}
}

func TestScanHost_MaxPortOption(t *testing.T) {
	s := newTestScanner(newRecordingProber(nil), &fakePinger{}, &fakeResolver{}, WithMaxPort(65000))
	if _, err := s.ScanHost(context.Background(), "10.0.0.1", PortRange{Start: 1, End: 65001}, 1); !errors.Is(err, ErrInvalidPortRange) {
		t.Fatalf("expected range above 65000 to be rejected, got %v", err)
	}
}
