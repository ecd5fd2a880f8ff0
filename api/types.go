package api

import (
	"time"

	"hostsweep/scanner"
)

// Task lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanTask represents a batch scan managed by the API service.
type ScanTask struct {
	// ID is the immutable identifier of the scan task (UUID v4).
	ID string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	// Status reflects the asynchronous lifecycle state of the task.
	Status string `json:"status" enums:"pending,running,completed,failed" example:"pending"`
	// Hosts lists the deduplicated IP addresses to scan, in submission order.
	Hosts []string `json:"hosts" example:"192.0.2.10,192.0.2.11"`
	// Ports is the inclusive TCP port range, "start-end".
	Ports string `json:"ports" example:"1-1024"`
	// Concurrency is the number of parallel port probes per host.
	Concurrency int `json:"concurrency" example:"100"`
	// Results is keyed by host once the task completes.
	Results *scanner.ScanReport `json:"results,omitempty" swaggertype:"object"`
	// CreatedAt records when the task was accepted.
	CreatedAt time.Time `json:"created_at" format:"date-time" example:"2024-01-02T15:04:05Z"`
	// CompletedAt is set once the task reaches a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time" example:"2024-01-02T15:06:30Z"`
	// Error explains why a task failed.
	Error string `json:"error,omitempty" example:"invalid port range"`
}

// CreateScanRequest is the payload for creating new scan tasks.
type CreateScanRequest struct {
	// Hosts enumerates the IP addresses to scan. Non-IP entries and duplicates are dropped.
	Hosts []string `json:"hosts" binding:"required,min=1" example:"192.0.2.10,192.0.2.11"`
	// Ports is an inclusive range such as "1-1024", or a single port.
	Ports string `json:"ports" binding:"required" example:"1-1024"`
	// Concurrency overrides the server default number of parallel probes per host.
	Concurrency *int `json:"concurrency,omitempty" binding:"omitempty,min=1" example:"100"`
}

// ScanAcceptedResponse captures the asynchronous acknowledgement returned after job submission.
type ScanAcceptedResponse struct {
	ID     string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	Status string `json:"status" enums:"pending" example:"pending"`
}

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	Error string `json:"error" example:"task not found"`
}
