package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hostsweep/logging"
)

const (
	// MaxPort is the highest TCP port number.
	MaxPort = 65535

	// DefaultConcurrency is the number of port workers used when the caller does not choose one.
	DefaultConcurrency = 100

	// DefaultProbeTimeout bounds a single connect attempt.
	DefaultProbeTimeout = 500 * time.Millisecond

	// UnknownHostname is reported when reverse resolution fails.
	UnknownHostname = "Unknown"
)

var (
	// ErrInvalidPortRange indicates a range outside 1..max or with start > end.
	ErrInvalidPortRange = errors.New("invalid port range")
	// ErrInvalidConcurrency indicates a non-positive worker count.
	ErrInvalidConcurrency = errors.New("concurrency must be a positive integer")
)

// PortRange is an inclusive range of TCP ports.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate checks 1 <= Start <= End <= max. A max <= 0 means MaxPort.
func (r PortRange) Validate(max int) error {
	if max <= 0 || max > MaxPort {
		max = MaxPort
	}
	if r.Start < 1 || r.End > max {
		return fmt.Errorf("%w: ports must be within 1-%d, got %d-%d", ErrInvalidPortRange, max, r.Start, r.End)
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start port %d is greater than end port %d", ErrInvalidPortRange, r.Start, r.End)
	}
	return nil
}

// Len returns the number of ports in the range, zero when Start > End.
func (r PortRange) Len() int {
	if r.Start > r.End {
		return 0
	}
	return r.End - r.Start + 1
}

// Ports materializes the range in ascending order.
func (r PortRange) Ports() []int {
	ports := make([]int, 0, r.Len())
	for port := r.Start; port <= r.End; port++ {
		ports = append(ports, port)
	}
	return ports
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func validateConcurrency(concurrency int) error {
	if concurrency <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, concurrency)
	}
	return nil
}

// Scanner combines a liveness check, reverse resolution and a port probe into per-host results.
type Scanner struct {
	prober            Prober
	pinger            Pinger
	resolver          Resolver
	logger            *slog.Logger
	maxPort           int
	skipOfflineLookup bool
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithProber replaces the TCP connect prober.
func WithProber(p Prober) Option {
	return func(s *Scanner) { s.prober = p }
}

// WithPinger replaces the liveness prober.
func WithPinger(p Pinger) Option {
	return func(s *Scanner) { s.pinger = p }
}

// WithResolver replaces the reverse name resolver.
func WithResolver(r Resolver) Option {
	return func(s *Scanner) { s.resolver = r }
}

// WithLogger sets the logger used for per-host progress.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithMaxPort lowers the highest port a range may reach.
func WithMaxPort(max int) Option {
	return func(s *Scanner) { s.maxPort = max }
}

// WithSkipOfflineLookup skips reverse resolution for hosts that failed the liveness check.
// Such hosts report UnknownHostname and no aliases.
func WithSkipOfflineLookup() Option {
	return func(s *Scanner) { s.skipOfflineLookup = true }
}

// New creates a Scanner. Without options it dials with a 500ms timeout, pings through the
// system ping command and resolves names with the default resolver.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		prober:   NewTCPProber(DefaultProbeTimeout),
		pinger:   NewExecPinger(),
		resolver: NewDNSResolver(nil),
		maxPort:  MaxPort,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Logger()
	}
	return s
}

// ValidateInputs reports configuration errors for a scan before any network work happens.
func (s *Scanner) ValidateInputs(r PortRange, concurrency int) error {
	if err := r.Validate(s.maxPort); err != nil {
		return err
	}
	return validateConcurrency(concurrency)
}
