package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"hostsweep/scanner"
)

// jsonIndent matches the four-space layout existing consumers of the report expect.
const jsonIndent = "    "

// EncodeReport renders report as an indented JSON object keyed by host.
func EncodeReport(report *scanner.ScanReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// JSONFileSink writes the report to Path, replacing any previous file atomically.
type JSONFileSink struct {
	Path string
}

// NewJSONFileSink returns a sink writing to path.
func NewJSONFileSink(path string) *JSONFileSink {
	return &JSONFileSink{Path: path}
}

// Write implements scanner.Sink.
func (s *JSONFileSink) Write(_ context.Context, report *scanner.ScanReport) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}
	if err := replaceFile(s.Path, data); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}

// WriterSink encodes the report to an io.Writer, e.g. stdout.
type WriterSink struct {
	W io.Writer
}

// Write implements scanner.Sink.
func (s WriterSink) Write(_ context.Context, report *scanner.ScanReport) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}
	_, err = s.W.Write(data)
	return err
}
