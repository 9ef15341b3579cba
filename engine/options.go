package engine

import (
	"github.com/spektr-org/weekpi/internal/logging"
)

// ============================================================================
// ENGINE OPTIONS: Functional options for Analyze / CompareWithPrevious
// ============================================================================

// DefaultMaxJumpBack is the widest week gap a comparison may bridge.
const DefaultMaxJumpBack = 5

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Logger        logging.Logger
	MaxJumpBack   int
	TrendMetric   string
	TopMovers     int
	TopDimensions []string
}

// WithLogger routes engine diagnostics to l.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.Logger = logging.OrNop(l)
	}
}

// WithMaxJumpBack sets how many weeks back the comparison may look for a
// previous period. Values below 1 are ignored.
func WithMaxJumpBack(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.MaxJumpBack = n
		}
	}
}

// WithTrendMetric sets the metric fitted by the trend line.
func WithTrendMetric(metric string) Option {
	return func(c *config) {
		if IsMetric(metric) {
			c.TrendMetric = metric
		}
	}
}

// WithTopMovers limits how many highlights are surfaced as top movers.
func WithTopMovers(n int) Option {
	return func(c *config) {
		c.TopMovers = n
	}
}

// WithTopDimensions sets the dimensions for "top contributor" callouts.
func WithTopDimensions(dims ...string) Option {
	return func(c *config) {
		c.TopDimensions = dims
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Logger:        logging.NewNopLogger(),
		MaxJumpBack:   DefaultMaxJumpBack,
		TrendMetric:   MetricLossRatio,
		TopMovers:     5,
		TopDimensions: []string{DimCoverage, DimTerminal, DimBusinessType},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
