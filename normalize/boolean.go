package normalize

import (
	"fmt"
)

// Default boolean spellings seen in the weekly exports.
var (
	DefaultTrueValues  = []string{"true", "1", "是", "y", "yes", "t"}
	DefaultFalseValues = []string{"false", "0", "否", "n", "no", "f"}
)

// BoolConfig configures NormalizeBool. Nil value lists fall back to the defaults.
type BoolConfig struct {
	TrueValues  []string `json:"trueValues,omitempty"`
	FalseValues []string `json:"falseValues,omitempty"`
	AllowEmpty  bool     `json:"allowEmpty,omitempty"`
	Default     bool     `json:"default,omitempty"`
}

// NormalizeBool maps a raw value onto true/false using the configured
// spellings, compared case-insensitively after width normalization.
func NormalizeBool(value any, cfg BoolConfig) Result[bool] {
	switch v := value.(type) {
	case bool:
		return valid(v)
	case int:
		return boolFromInt(int64(v))
	case int64:
		return boolFromInt(v)
	case float64:
		if v == 0 || v == 1 {
			return valid(v == 1)
		}
		return invalid[bool](fmt.Sprintf("number %v is not a boolean", v))
	}

	s, ok := rawText(value)
	if !ok {
		return invalid[bool](fmt.Sprintf("unsupported boolean type %T", value))
	}
	s = Canonical(s)
	if s == "" {
		if cfg.AllowEmpty {
			return valid(cfg.Default)
		}
		return invalid[bool]("empty boolean value")
	}

	trueValues := cfg.TrueValues
	if trueValues == nil {
		trueValues = DefaultTrueValues
	}
	falseValues := cfg.FalseValues
	if falseValues == nil {
		falseValues = DefaultFalseValues
	}

	switch {
	case containsFold(trueValues, s):
		return valid(true)
	case containsFold(falseValues, s):
		return valid(false)
	default:
		return invalid[bool](fmt.Sprintf("unrecognized boolean %q", s))
	}
}

func boolFromInt(v int64) Result[bool] {
	if v == 0 || v == 1 {
		return valid(v == 1)
	}
	return invalid[bool](fmt.Sprintf("number %d is not a boolean", v))
}
