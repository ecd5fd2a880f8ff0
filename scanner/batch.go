package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrSinkFailed wraps errors returned by a Sink. The report returned alongside it is complete.
var ErrSinkFailed = errors.New("failed to write scan report")

// ErrInterrupted is returned when ctx ends before every host was scanned. No report is
// returned and the sink is not called.
var ErrInterrupted = errors.New("scan interrupted")

// Sink receives the finished report of a batch.
type Sink interface {
	Write(ctx context.Context, report *ScanReport) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, report *ScanReport) error

// Write calls f(ctx, report).
func (f SinkFunc) Write(ctx context.Context, report *ScanReport) error {
	return f(ctx, report)
}

// Runner scans a list of hosts and hands the report to a sink once.
type Runner struct {
	scanner         *Scanner
	sink            Sink
	hostParallelism int
	onHostStart     func(host string)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithHostParallelism lets up to n hosts be scanned at the same time. Values below 2 keep the
// default of one host at a time.
func WithHostParallelism(n int) RunnerOption {
	return func(r *Runner) { r.hostParallelism = n }
}

// WithHostStartHook registers a callback invoked before each host scan begins.
func WithHostStartHook(fn func(host string)) RunnerOption {
	return func(r *Runner) { r.onHostStart = fn }
}

// NewRunner creates a Runner. A nil sink discards the report.
func NewRunner(s *Scanner, sink Sink, opts ...RunnerOption) *Runner {
	r := &Runner{scanner: s, sink: sink, hostParallelism: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunBatch scans hosts in input order and writes the report to the sink exactly once.
// Invalid ranges or concurrency fail before any probe and without touching the sink. A sink
// failure is returned wrapped in ErrSinkFailed together with the complete report. Cancelling
// ctx stops the batch with ErrInterrupted before the sink is reached.
func (r *Runner) RunBatch(ctx context.Context, hosts []string, pr PortRange, concurrency int) (*ScanReport, error) {
	if err := r.scanner.ValidateInputs(pr, concurrency); err != nil {
		return nil, err
	}

	logger := r.scanner.logger
	start := time.Now()
	logger.Info("batch started",
		"hosts", len(hosts),
		"ports", pr.String(),
		"concurrency", concurrency,
		"host_parallelism", r.hostParallelism,
	)

	var (
		results []HostResult
		err     error
	)
	if r.hostParallelism > 1 {
		results, err = r.scanParallel(ctx, hosts, pr, concurrency)
	} else {
		results, err = r.scanSequential(ctx, hosts, pr, concurrency)
	}
	if err != nil {
		return nil, err
	}
	// Hosts scanned after cancellation show as offline, so their results are discarded.
	if err := ctx.Err(); err != nil {
		logger.Warn("batch interrupted", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	report := NewScanReport()
	online := 0
	for _, result := range results {
		if result.State == Online {
			online++
		}
		report.Add(result)
	}

	logger.Info("batch finished",
		"hosts", report.Len(),
		"online", online,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if r.sink == nil {
		return report, nil
	}
	if err := r.sink.Write(ctx, report); err != nil {
		logger.Error("report sink failed", "error", err)
		return report, fmt.Errorf("%w: %w", ErrSinkFailed, err)
	}
	return report, nil
}

func (r *Runner) scanSequential(ctx context.Context, hosts []string, pr PortRange, concurrency int) ([]HostResult, error) {
	results := make([]HostResult, 0, len(hosts))
	for _, host := range hosts {
		if ctx.Err() != nil {
			break
		}
		r.hostStarted(host)
		result, err := r.scanner.ScanHost(ctx, host, pr, concurrency)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// scanParallel fills one slot per host so the report keeps input order; a slot is written
// only once its HostResult is complete.
func (r *Runner) scanParallel(ctx context.Context, hosts []string, pr PortRange, concurrency int) ([]HostResult, error) {
	results := make([]HostResult, len(hosts))
	errs := make([]error, len(hosts))
	sem := semaphore.NewWeighted(int64(r.hostParallelism))

	for i, host := range hosts {
		// Acquire fails only once ctx is done; the final Acquire below still waits for started hosts.
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		r.hostStarted(host)
		go func(i int, host string) {
			defer sem.Release(1)
			results[i], errs[i] = r.scanner.ScanHost(ctx, host, pr, concurrency)
		}(i, host)
	}
	_ = sem.Acquire(context.Background(), int64(r.hostParallelism))

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) hostStarted(host string) {
	r.scanner.logger.Info("scanning host", slog.String("host", host))
	if r.onHostStart != nil {
		r.onHostStart(host)
	}
}
