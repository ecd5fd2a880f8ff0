package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"hostsweep/config"
	_ "hostsweep/docs"
	"hostsweep/logging"
	"hostsweep/output"
	"hostsweep/scanner"
)

const shutdownTimeout = 10 * time.Second

// RouterConfig controls the middleware installed by NewRouter.
type RouterConfig struct {
	APIKey     string
	RateLimit  int64
	RateWindow time.Duration
	// Limiter backs the rate limiter. Rate limiting is disabled when nil.
	Limiter redis.Cmdable
	Logger  *slog.Logger
}

// NewRouter wires middleware and routes. /healthz and /swagger stay outside authentication.
func NewRouter(server *Server, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), SecurityHeadersMiddleware(), RequestLoggingMiddleware(logger))

	router.GET("/healthz", server.healthHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	if cfg.APIKey != "" {
		v1.Use(AuthMiddleware(cfg.APIKey, logger))
	} else {
		logger.Warn("HOSTSWEEP_API_KEY is empty; API authentication disabled")
	}
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		v1.Use(RateLimitMiddleware(cfg.Limiter, cfg.RateLimit, cfg.RateWindow, logger))
	}
	server.RegisterRoutes(v1)

	return router
}

// Run initializes dependencies and serves the API until ctx is cancelled, then drains
// in-flight requests and stops the workers.
func Run(ctx context.Context, cfg config.Config) error {
	logger := logging.Configure(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	store := NewRedisStore(redisClient)

	var history scanner.Sink
	if cfg.HistoryDB != "" {
		h, err := output.OpenHistory(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("open scan history: %w", err)
		}
		defer h.Close()
		history = h
	}

	sc := scanner.New(
		scanner.WithProber(scanner.NewTCPProber(cfg.ProbeTimeout)),
		scanner.WithPinger(config.NewPinger(cfg.PingMode, 0)),
		scanner.WithLogger(logger),
	)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	workers := StartWorkers(workerCtx, NewWorker(store, sc, history, logger), cfg.Workers)

	server := NewServer(store, logger,
		WithDefaultConcurrency(cfg.Concurrency),
		WithHealthCheck(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	)
	router := NewRouter(server, RouterConfig{
		APIKey:     cfg.APIKey,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
		Limiter:    redisClient,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting hostsweep API server", "addr", cfg.ListenAddr, "workers", cfg.Workers)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stopWorkers()
		workers.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)

	stopWorkers()
	workers.Wait()
	return err
}
