package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hostsweep/logging"
	"hostsweep/scanner"
)

// Server bundles dependencies for HTTP handlers.
type Server struct {
	store              TaskStore
	health             func(ctx context.Context) error
	defaultConcurrency int
	maxPort            int
	logger             *slog.Logger
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithHealthCheck sets the dependency probe reported by /healthz.
func WithHealthCheck(check func(ctx context.Context) error) ServerOption {
	return func(s *Server) { s.health = check }
}

// WithDefaultConcurrency sets the per-host probe concurrency used when a request omits it.
func WithDefaultConcurrency(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.defaultConcurrency = n
		}
	}
}

// NewServer creates a new API server instance. A nil logger falls back to the process logger.
func NewServer(store TaskStore, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.Logger()
	}
	s := &Server{
		store:              store,
		defaultConcurrency: scanner.DefaultConcurrency,
		maxPort:            scanner.MaxPort,
		logger:             logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes attaches handlers to the provided Gin router group.
func (s *Server) RegisterRoutes(routes gin.IRoutes) {
	routes.POST("/scans", s.createScanHandler)
	routes.GET("/scans/:id", s.getScanHandler)
}

// @Summary      Create a new scan task
// @Description  Submit a list of IP addresses and a TCP port range. Every host is pinged once; online hosts are connect-scanned across the range and every host is reverse resolved.
// @Description  **Lifecycle**: POST /scans answers with HTTP 202 Accepted plus the task identifier. Poll GET /scans/{id} to observe status transitions (pending → running → completed/failed). Results are attached only after completion.
// @Description  **Validation**: entries in hosts that are not IP addresses are dropped, and the request is rejected when none remain. ports accepts "start-end" within 1-65535 or a single port. concurrency must be positive when supplied.
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        scanRequest  body      CreateScanRequest      true  "Scan request parameters"
// @Success      202          {object}  ScanAcceptedResponse  "Scan accepted. Example: {\"id\":\"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678\",\"status\":\"pending\"}"
// @Failure      400          {object}  ErrorResponse         "Malformed JSON body or failed validation. Example: {\"error\":\"invalid port range: use startPort-endPort\"}"
// @Failure      401          {object}  ErrorResponse         "Missing or incorrect API key. Example: {\"error\":\"unauthorized\"}"
// @Failure      429          {object}  ErrorResponse         "Rate limit exceeded for the calling client. Example: {\"error\":\"rate limit exceeded\"}"
// @Failure      500          {object}  ErrorResponse         "Internal error while persisting or queueing the task. Example: {\"error\":\"failed to persist task\"}"
// @Security     ApiKeyAuth
// @Router       /scans [post]
func (s *Server) createScanHandler(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request payload: %v", err)})
		return
	}

	hosts := scanner.NormalizeTargets(req.Hosts)
	if len(hosts) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hosts contains no valid IP addresses"})
		return
	}

	portRange, err := scanner.ParsePortRange(req.Ports, s.maxPort)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	concurrency := s.defaultConcurrency
	if req.Concurrency != nil {
		concurrency = *req.Concurrency
	}
	if concurrency <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: scanner.ErrInvalidConcurrency.Error()})
		return
	}

	id, err := uuid.NewRandom()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to generate task id"})
		return
	}

	ctx := c.Request.Context()
	task := &ScanTask{
		ID:          id.String(),
		Status:      StatusPending,
		Hosts:       hosts,
		Ports:       portRange.String(),
		Concurrency: concurrency,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to persist task", "task_id", task.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to persist task"})
		return
	}

	if err := s.store.PushToQueue(ctx, task.ID); err != nil {
		s.logger.Error("failed to queue task", "task_id", task.ID, "error", err)
		task.Status = StatusFailed
		task.Error = "failed to queue task"
		now := time.Now().UTC()
		task.CompletedAt = &now
		_ = s.store.UpdateTask(ctx, task)

		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue task"})
		return
	}

	c.JSON(http.StatusAccepted, ScanAcceptedResponse{ID: task.ID, Status: task.Status})
}

// @Summary      Get scan status and results
// @Description  Retrieve a snapshot of a scan task. Supply the UUID obtained from POST /scans and poll until the status is completed or failed.
// @Description  **Results**: once completed, results maps every host to its State, Hostname, Alias list and Open Ports, in submission order.
// @Tags         Scans
// @Produce      json
// @Param        id   path      string      true  "Scan Task ID (UUID v4)"
// @Success      200  {object}  ScanTask    "Current task snapshot. Example: {\"id\":\"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678\",\"status\":\"completed\",\"results\":{\"192.0.2.10\":{\"State\":\"Online\",\"Hostname\":\"web.example\",\"Alias\":[],\"Open Ports\":[22,443]}}}"
// @Failure      400  {object}  ErrorResponse  "Malformed task identifier. Example: {\"error\":\"invalid task id format\"}"
// @Failure      401  {object}  ErrorResponse  "Missing or incorrect API key. Example: {\"error\":\"unauthorized\"}"
// @Failure      404  {object}  ErrorResponse  "Task with the provided ID does not exist. Example: {\"error\":\"task not found\"}"
// @Failure      429  {object}  ErrorResponse  "Rate limit exceeded for the calling client. Example: {\"error\":\"rate limit exceeded\"}"
// @Failure      500  {object}  ErrorResponse  "Internal error when loading the task. Example: {\"error\":\"failed to load task\"}"
// @Security     ApiKeyAuth
// @Router       /scans/{id} [get]
func (s *Server) getScanHandler(c *gin.Context) {
	id := c.Param("id")
	if parsed, err := uuid.Parse(id); err != nil || parsed.Version() != 4 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid task id format"})
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found"})
			return
		}
		s.logger.Error("failed to load task", "task_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// healthHandler reports whether the task store is reachable.
func (s *Server) healthHandler(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "redis unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
