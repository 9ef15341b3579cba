package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumberConfig configures NormalizeNumber.
type NumberConfig struct {
	// Integer rejects values with a fractional part.
	Integer bool `json:"integer,omitempty"`
	// Min and Max bound the accepted value (inclusive) when set.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	// AllowEmpty turns nil/blank input into Default instead of an invalid result.
	AllowEmpty bool    `json:"allowEmpty,omitempty"`
	Default    float64 `json:"default,omitempty"`
	// AllowPercent accepts a trailing "%" (the number is kept as written).
	AllowPercent bool `json:"allowPercent,omitempty"`
	// Scale multiplies the parsed value; zero means 1. Used for columns
	// exported in ten-thousand yuan.
	Scale float64 `json:"scale,omitempty"`
}

// NormalizeNumber coerces Go numeric kinds and numeric-looking strings into a
// finite float64. Strings may contain full-width digits, thousands separators,
// currency signs and accounting parentheses for negatives ("(1,200)" → -1200).
func NormalizeNumber(value any, cfg NumberConfig) Result[float64] {
	f, empty, reason := rawNumber(value, cfg.AllowPercent)
	if empty {
		if cfg.AllowEmpty {
			return valid(cfg.Default)
		}
		return invalid[float64]("empty numeric value")
	}
	if reason != "" {
		return invalid[float64](reason)
	}

	if cfg.Scale != 0 {
		f *= cfg.Scale
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return invalid[float64]("non-finite number")
	}
	if cfg.Integer && f != math.Trunc(f) {
		return invalid[float64](fmt.Sprintf("%v is not an integer", f))
	}
	if cfg.Min != nil && f < *cfg.Min {
		return invalid[float64](fmt.Sprintf("%v is below minimum %v", f, *cfg.Min))
	}
	if cfg.Max != nil && f > *cfg.Max {
		return invalid[float64](fmt.Sprintf("%v is above maximum %v", f, *cfg.Max))
	}
	return valid(f)
}

// rawNumber returns the parsed value, whether the input was empty, and a
// failure reason (empty string on success).
func rawNumber(value any, allowPercent bool) (float64, bool, string) {
	switch v := value.(type) {
	case nil:
		return 0, true, ""
	case float64:
		return v, false, ""
	case float32:
		return float64(v), false, ""
	case int:
		return float64(v), false, ""
	case int8:
		return float64(v), false, ""
	case int16:
		return float64(v), false, ""
	case int32:
		return float64(v), false, ""
	case int64:
		return float64(v), false, ""
	case uint:
		return float64(v), false, ""
	case uint8:
		return float64(v), false, ""
	case uint16:
		return float64(v), false, ""
	case uint32:
		return float64(v), false, ""
	case uint64:
		return float64(v), false, ""
	case json.Number:
		return parseNumberString(v.String(), allowPercent)
	case string:
		return parseNumberString(v, allowPercent)
	case []byte:
		return parseNumberString(string(v), allowPercent)
	case bool:
		return 0, false, "boolean is not a number"
	default:
		return 0, false, fmt.Sprintf("unsupported numeric type %T", value)
	}
}

var numberNoise = strings.NewReplacer(",", "", "_", "", " ", "", "¥", "", "$", "", "元", "")

func parseNumberString(s string, allowPercent bool) (float64, bool, string) {
	s = Canonical(s)
	if s == "" || s == "-" {
		return 0, true, ""
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "%") {
		if !allowPercent {
			return 0, false, fmt.Sprintf("percent value %q not allowed", s)
		}
		s = strings.TrimSuffix(s, "%")
	}
	s = numberNoise.Replace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Sprintf("not a number: %q", s)
	}
	if negative {
		f = -f
	}
	return f, false, ""
}
