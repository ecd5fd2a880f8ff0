package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hostsweep/scanner"
)

// Ping modes accepted by PingMode.
const (
	PingExec = "exec"
	PingICMP = "icmp"
)

// Config holds runtime settings shared by the CLI and the API server.
type Config struct {
	ListenAddr   string
	RedisAddr    string
	APIKey       string
	RateLimit    int64
	RateWindow   time.Duration
	Workers      int
	Concurrency  int
	ProbeTimeout time.Duration
	PingMode     string
	HistoryDB    string
	LogLevel     string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ListenAddr:   ":8080",
		RedisAddr:    "localhost:6379",
		RateLimit:    60,
		RateWindow:   time.Minute,
		Workers:      2,
		Concurrency:  scanner.DefaultConcurrency,
		ProbeTimeout: scanner.DefaultProbeTimeout,
		PingMode:     PingExec,
		LogLevel:     "info",
	}
}

// Load reads the given .env files (".env" when none are named; missing files are ignored) and
// then the process environment. Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			*dst = value
		}
	}
	integer := func(key string, dst *int) {
		value := strings.TrimSpace(getenv(key))
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %q", key, value))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		value := strings.TrimSpace(getenv(key))
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", key, value))
			return
		}
		*dst = d
	}

	str("HOSTSWEEP_LISTEN_ADDR", &cfg.ListenAddr)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("HOSTSWEEP_API_KEY", &cfg.APIKey)
	str("HOSTSWEEP_PING_MODE", &cfg.PingMode)
	str("HOSTSWEEP_HISTORY_DB", &cfg.HistoryDB)
	str("LOG_LEVEL", &cfg.LogLevel)

	var rateLimit int
	integer("HOSTSWEEP_RATE_LIMIT", &rateLimit)
	if rateLimit > 0 {
		cfg.RateLimit = int64(rateLimit)
	}
	duration("HOSTSWEEP_RATE_WINDOW", &cfg.RateWindow)
	integer("HOSTSWEEP_WORKERS", &cfg.Workers)
	integer("HOSTSWEEP_CONCURRENCY", &cfg.Concurrency)
	duration("HOSTSWEEP_PROBE_TIMEOUT", &cfg.ProbeTimeout)

	cfg.PingMode = strings.ToLower(cfg.PingMode)
	if cfg.PingMode != PingExec && cfg.PingMode != PingICMP {
		errs = append(errs, fmt.Errorf("HOSTSWEEP_PING_MODE must be %q or %q, got %q", PingExec, PingICMP, cfg.PingMode))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewPinger returns the liveness prober selected by mode.
func NewPinger(mode string, timeout time.Duration) scanner.Pinger {
	if strings.EqualFold(mode, PingICMP) {
		return scanner.NewICMPPinger(timeout)
	}
	return scanner.NewExecPinger()
}
