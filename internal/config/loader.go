package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "WEEKPI"

// envKeys lists the scalar keys that can be set from the environment
// without appearing in a config file. viper only resolves AutomaticEnv for
// keys it already knows about when unmarshalling.
var envKeys = []string{
	"log.level", "log.format",
	"kpi.mode", "kpi.annual_target_yuan",
	"comparison.max_jump_back",
	"trend.metric", "trend.top_movers",
	"cache.enabled", "cache.backend", "cache.ttl",
	"cache.redis.addr", "cache.redis.password", "cache.redis.db", "cache.redis.prefix",
}

// newViper builds a Viper instance with YAML file type, the WEEKPI_ env
// prefix and a "." → "_" key replacer, so "cache.redis.addr" resolves to
// WEEKPI_CACHE_REDIS_ADDR.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges any WEEKPI_* environment
// overrides, applies defaults for unset fields and validates the result.
// An empty configPath loads from the environment alone.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from WEEKPI_* environment variables.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
