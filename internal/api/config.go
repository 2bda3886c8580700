package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration. Every field can be set through a
// SYNC_* environment variable; see LoadConfig.
type Config struct {
	ListenAddr      string
	ServerDBPath    string
	ShutdownTimeout time.Duration
	LogFormat       string // json or text
	LogLevel        string

	// Requests per API key per minute, by route class.
	RateLimitPush  int
	RateLimitPull  int
	RateLimitOther int

	MaxPageSize int // cap for ?limit on list endpoints
	MaxBatch    int // cap for rows in one write

	RateLimitEventRetention time.Duration
}

// DefaultConfig is the configuration with no environment overrides.
func DefaultConfig() Config {
	return Config{
		ListenAddr:              ":8080",
		ServerDBPath:            "./data/server.db",
		ShutdownTimeout:         30 * time.Second,
		LogFormat:               "json",
		LogLevel:                "info",
		RateLimitPush:           60,
		RateLimitPull:           120,
		RateLimitOther:          300,
		MaxPageSize:             1000,
		MaxBatch:                5000,
		RateLimitEventRetention: 30 * 24 * time.Hour,
	}
}

// LoadConfig applies SYNC_* environment variables over DefaultConfig.
// Malformed or non-positive numbers keep the default.
func LoadConfig() Config {
	cfg := DefaultConfig()
	for env, set := range map[string]func(string){
		"SYNC_LISTEN_ADDR":      func(v string) { cfg.ListenAddr = v },
		"SYNC_SERVER_DB_PATH":   func(v string) { cfg.ServerDBPath = v },
		"SYNC_LOG_FORMAT":       func(v string) { cfg.LogFormat = v },
		"SYNC_LOG_LEVEL":        func(v string) { cfg.LogLevel = v },
		"SYNC_SHUTDOWN_TIMEOUT": durationInto(&cfg.ShutdownTimeout),
		"SYNC_RATE_LIMIT_PUSH":  countInto(&cfg.RateLimitPush),
		"SYNC_RATE_LIMIT_PULL":  countInto(&cfg.RateLimitPull),
		"SYNC_RATE_LIMIT_OTHER": countInto(&cfg.RateLimitOther),
		"SYNC_MAX_PAGE_SIZE":    countInto(&cfg.MaxPageSize),
		"SYNC_MAX_BATCH":        countInto(&cfg.MaxBatch),

		"SYNC_RATE_LIMIT_EVENT_RETENTION": durationInto(&cfg.RateLimitEventRetention),
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			set(v)
		}
	}
	return cfg
}

func countInto(dst *int) func(string) {
	return func(v string) {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func durationInto(dst *time.Duration) func(string) {
	return func(v string) {
		if d := parseDaysDuration(v); d > 0 {
			*dst = d
		}
	}
}

// parseDaysDuration accepts "30d" on top of time.ParseDuration syntax.
// It returns 0 for anything it cannot read.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
