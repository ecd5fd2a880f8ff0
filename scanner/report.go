package scanner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// HostState is the liveness classification of a host.
type HostState string

const (
	Online  HostState = "Online"
	Offline HostState = "Offline"
)

// HostResult is the complete outcome for one host.
type HostResult struct {
	Host      string    `json:"-"`
	State     HostState `json:"State"`
	Hostname  string    `json:"Hostname"`
	Aliases   []string  `json:"Alias"`
	OpenPorts []int     `json:"Open Ports"`
}

// MarshalJSON always emits arrays for Alias and Open Ports, never null.
func (h HostResult) MarshalJSON() ([]byte, error) {
	type wire HostResult
	w := wire(h)
	if w.Aliases == nil {
		w.Aliases = []string{}
	}
	if w.OpenPorts == nil {
		w.OpenPorts = []int{}
	}
	return json.Marshal(w)
}

// ScanReport maps hosts to their results, keeping the order hosts were added in.
type ScanReport struct {
	order   []string
	results map[string]HostResult
}

// NewScanReport returns an empty report.
func NewScanReport() *ScanReport {
	return &ScanReport{results: make(map[string]HostResult)}
}

// Add records result under result.Host. A host already present keeps its position and its
// first result.
func (r *ScanReport) Add(result HostResult) {
	if r.results == nil {
		r.results = make(map[string]HostResult)
	}
	if _, exists := r.results[result.Host]; exists {
		return
	}
	r.order = append(r.order, result.Host)
	r.results[result.Host] = result
}

// Hosts returns the host keys in insertion order.
func (r *ScanReport) Hosts() []string {
	return append([]string(nil), r.order...)
}

// Get returns the result for host.
func (r *ScanReport) Get(host string) (HostResult, bool) {
	result, ok := r.results[host]
	return result, ok
}

// Results returns every result in insertion order.
func (r *ScanReport) Results() []HostResult {
	out := make([]HostResult, 0, len(r.order))
	for _, host := range r.order {
		out = append(out, r.results[host])
	}
	return out
}

// Len returns the number of hosts in the report.
func (r *ScanReport) Len() int {
	return len(r.order)
}

// MarshalJSON writes a JSON object keyed by host, in insertion order.
func (r *ScanReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, host := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(host)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.results[host])
		if err != nil {
			return nil, fmt.Errorf("encode result for %s: %w", host, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object produced by MarshalJSON, preserving key order.
func (r *ScanReport) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("scan report must be a JSON object")
	}

	report := NewScanReport()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		host, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected report key %v", tok)
		}
		var result HostResult
		if err := dec.Decode(&result); err != nil {
			return fmt.Errorf("decode result for %s: %w", host, err)
		}
		result.Host = host
		if result.Aliases == nil {
			result.Aliases = []string{}
		}
		if result.OpenPorts == nil {
			result.OpenPorts = []int{}
		}
		report.Add(result)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = *report
	return nil
}
