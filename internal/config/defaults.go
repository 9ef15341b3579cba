package config

import (
	"time"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/scoring"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultKPIMode     = string(engine.ModeCurrent)
	DefaultMaxJumpBack = engine.DefaultMaxJumpBack
	DefaultTrendMetric = engine.MetricLossRatio
	DefaultTopMovers   = 5

	DefaultCacheBackend = "memory"
	DefaultCacheTTL     = 10 * time.Minute
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisPrefix  = "weekpi:"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Fields that have already been set are left unchanged so explicit
// configuration always wins. TopMovers and the problem rules are only
// defaulted as a whole section.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── KPI ───────────────────────────────────────────────────────────────────
	if cfg.KPI.Mode == "" {
		cfg.KPI.Mode = DefaultKPIMode
	}
	if cfg.Comparison.MaxJumpBack == 0 {
		cfg.Comparison.MaxJumpBack = DefaultMaxJumpBack
	}
	if cfg.Trend.Metric == "" {
		cfg.Trend.Metric = DefaultTrendMetric
	}
	if cfg.Trend.TopMovers == 0 {
		cfg.Trend.TopMovers = DefaultTopMovers
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.Redis.Prefix == "" {
		cfg.Cache.Redis.Prefix = DefaultRedisPrefix
	}

	// ── Problems ──────────────────────────────────────────────────────────────
	if cfg.Problems == (scoring.ProblemRules{}) {
		cfg.Problems = scoring.DefaultProblemRules()
	}
}

// Default returns a fully defaulted Config.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
