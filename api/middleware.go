package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware tags every request with an ID, reusing a well-formed one sent by the client.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLoggingMiddleware emits one structured log line per request; 4xx log at warn, 5xx at error.
func RequestLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"request_id", c.GetString(requestIDKey),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status_code", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "task_id", id)
		}
		logger.Log(c.Request.Context(), level, "request completed", attrs...)
	}
}

// AuthMiddleware requires "Authorization: Bearer <key>", compared in constant time.
func AuthMiddleware(expectedKey string, logger *slog.Logger) gin.HandlerFunc {
	expected := []byte(expectedKey)
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			logger.Warn("missing bearer token", "client_ip", c.ClientIP())
			abortWithError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		provided := []byte(strings.TrimSpace(token))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.Warn("invalid api key", "client_ip", c.ClientIP())
			abortWithError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// RateLimitMiddleware allows limit requests per client IP in each fixed window, counted in Redis.
// Redis failures reject the request rather than disable the limit.
func RateLimitMiddleware(client redis.Cmdable, limit int64, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		pipe := client.TxPipeline()
		counter := pipe.Incr(ctx, key)
		// NX keeps the window anchored at the first request (Redis 7+).
		pipe.ExpireNX(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Error("rate limiter redis error", "error", err)
			abortWithError(c, http.StatusInternalServerError, "internal server error")
			return
		}

		remaining := limit - counter.Val()
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprint(limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprint(remaining))

		if counter.Val() > limit {
			logger.Warn("rate limit exceeded", "client_ip", c.ClientIP(), "count", counter.Val())
			abortWithError(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}

// SecurityHeadersMiddleware adds standard security headers to each response. The CSP allows the
// inline scripts and styles the swagger UI needs.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'")
		c.Next()
	}
}
