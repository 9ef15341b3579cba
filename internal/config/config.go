// Package config provides configuration loading, defaults, and validation for
// the weekpi command line.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spektr-org/weekpi/cache"
	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
	"github.com/spektr-org/weekpi/schema"
	"github.com/spektr-org/weekpi/scoring"
)

// Config is the root configuration.
type Config struct {
	Log        logging.LogConfig    `mapstructure:"log"`
	KPI        KPIConfig            `mapstructure:"kpi"`
	Comparison ComparisonConfig     `mapstructure:"comparison"`
	Trend      TrendConfig          `mapstructure:"trend"`
	Normalize  NormalizeConfig      `mapstructure:"normalize"`
	Cache      CacheConfig          `mapstructure:"cache"`
	Problems   scoring.ProblemRules `mapstructure:"problems"`
	// Bands replaces the predefined score bands of the named metrics.
	Bands map[string]scoring.ScoringConfig `mapstructure:"bands"`
}

// KPIConfig holds the KPI options applied to every analysis.
type KPIConfig struct {
	Mode             string             `mapstructure:"mode" validate:"oneof=current cumulative increment"`
	AnnualTargetYuan float64            `mapstructure:"annual_target_yuan" validate:"gte=0"`
	OrgTargets       map[string]float64 `mapstructure:"org_targets" validate:"dive,gte=0"`
}

// ComparisonConfig tunes the previous-week lookup.
type ComparisonConfig struct {
	MaxJumpBack int `mapstructure:"max_jump_back" validate:"min=1,max=52"`
}

// TrendConfig tunes the report's trend and highlight sections.
type TrendConfig struct {
	Metric        string   `mapstructure:"metric"`
	TopMovers     int      `mapstructure:"top_movers" validate:"min=0"`
	TopDimensions []string `mapstructure:"top_dimensions"`
}

// NormalizeConfig overrides the spellings and layouts used when importing.
type NormalizeConfig struct {
	TrueValues  []string `mapstructure:"true_values"`
	FalseValues []string `mapstructure:"false_values"`
	DateFormats []string `mapstructure:"date_formats"`
}

// CacheConfig selects the KPI cache backend.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig is the redis connection used by the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	Prefix   string `mapstructure:"prefix"`
}

var validate = validator.New()

// Validate checks every section and reports all violations at once.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		errs = append(errs, "cache.redis.addr: required for the redis backend")
	}
	if c.Trend.Metric != "" && !engine.IsMetric(c.Trend.Metric) {
		errs = append(errs, fmt.Sprintf("trend.metric: unknown metric %q", c.Trend.Metric))
	}
	for _, d := range c.Trend.TopDimensions {
		if _, ok := schema.Insurance().FilterDimension(d); !ok {
			errs = append(errs, fmt.Sprintf("trend.top_dimensions: unknown dimension %q", d))
		}
	}

	metrics := make([]string, 0, len(c.Bands))
	for m := range c.Bands {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		if !engine.IsMetric(m) {
			errs = append(errs, fmt.Sprintf("bands: unknown metric %q", m))
			continue
		}
		cfg := c.Bands[m]
		cfg.Metric = m
		if err := scoring.ValidateConfig(cfg); err != nil {
			errs = append(errs, fmt.Sprintf("bands.%s: %v", m, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversions into the library types
// ─────────────────────────────────────────────────────────────────────────────

// KPIOptions returns the configured engine options.
func (c *Config) KPIOptions() engine.KPIOptions {
	return engine.KPIOptions{
		Mode:             engine.KPIMode(c.KPI.Mode),
		AnnualTargetYuan: c.KPI.AnnualTargetYuan,
		OrgTargets:       c.KPI.OrgTargets,
	}
}

// ScoringPresets returns the predefined score bands with Bands applied.
func (c *Config) ScoringPresets() map[string]scoring.ScoringConfig {
	presets := scoring.Presets()
	for m, cfg := range c.Bands {
		cfg.Metric = m
		presets[m] = cfg
	}
	return presets
}

// EngineOptions returns the Analyze options for the comparison and trend
// sections. logger is passed through.
func (c *Config) EngineOptions(logger logging.Logger) []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxJumpBack(c.Comparison.MaxJumpBack),
		engine.WithTopMovers(c.Trend.TopMovers),
	}
	if c.Trend.Metric != "" {
		opts = append(opts, engine.WithTrendMetric(c.Trend.Metric))
	}
	if len(c.Trend.TopDimensions) > 0 {
		dims := make([]string, 0, len(c.Trend.TopDimensions))
		for _, d := range c.Trend.TopDimensions {
			key, _ := schema.Insurance().FilterDimension(d)
			dims = append(dims, key)
		}
		opts = append(opts, engine.WithTopDimensions(dims...))
	}
	return opts
}

// SchemaOptions returns the import normalization settings.
func (c *Config) SchemaOptions() schema.Options {
	return schema.Options{
		TrueValues:  c.Normalize.TrueValues,
		FalseValues: c.Normalize.FalseValues,
		DateLayouts: c.Normalize.DateFormats,
	}
}

// CacheOptions returns the KPICache options for the configured TTL.
func (c *Config) CacheOptions(logger logging.Logger) []cache.Option {
	return []cache.Option{cache.WithTTL(c.Cache.TTL), cache.WithLogger(logger)}
}
