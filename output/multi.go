package output

import (
	"context"
	"errors"

	"hostsweep/scanner"
)

// MultiSink writes a report to every sink in order. All sinks are attempted; their errors are
// joined.
type MultiSink []scanner.Sink

// Write implements scanner.Sink.
func (m MultiSink) Write(ctx context.Context, report *scanner.ScanReport) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Write(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
