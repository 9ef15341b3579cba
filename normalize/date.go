package normalize

import (
	"fmt"
	"math"
	"time"
)

// ISODate is the canonical output layout of NormalizeDate.
const ISODate = "2006-01-02"

// DefaultDateLayouts are tried in order when DateConfig.Layouts is empty.
var DefaultDateLayouts = []string{
	ISODate,
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"20060102",
	"2006.01.02",
	"2006年1月2日",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// DateConfig configures NormalizeDate.
type DateConfig struct {
	Layouts  []string `json:"layouts,omitempty"`
	Required bool     `json:"required,omitempty"`
	// AllowSerial accepts spreadsheet serial day numbers (e.g. 45658 → 2025-01-01).
	AllowSerial bool `json:"allowSerial,omitempty"`
}

// NormalizeDate parses value against the configured layouts and returns the
// canonical ISO date. An empty input is valid (empty string) unless Required.
func NormalizeDate(value any, cfg DateConfig) Result[string] {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return emptyDate(cfg)
		}
		return valid(v.Format(ISODate))
	case *time.Time:
		if v == nil || v.IsZero() {
			return emptyDate(cfg)
		}
		return valid(v.Format(ISODate))
	case float64, int, int64:
		if !cfg.AllowSerial {
			return invalid[string](fmt.Sprintf("numeric date %v not allowed", v))
		}
		n := NormalizeNumber(v, NumberConfig{})
		return serialDate(n.Value)
	}

	s, ok := rawText(value)
	if !ok {
		return invalid[string](fmt.Sprintf("unsupported date type %T", value))
	}
	s = Canonical(s)
	if s == "" {
		return emptyDate(cfg)
	}

	layouts := cfg.Layouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return valid(t.Format(ISODate))
		}
	}

	if cfg.AllowSerial {
		if n := NormalizeNumber(s, NumberConfig{}); n.Valid {
			return serialDate(n.Value)
		}
	}
	return invalid[string](fmt.Sprintf("unrecognized date %q", s))
}

func emptyDate(cfg DateConfig) Result[string] {
	if cfg.Required {
		return invalid[string]("required date is empty")
	}
	return valid("")
}

func serialDate(days float64) Result[string] {
	if days < 1 || days > 2958465 || math.IsNaN(days) {
		return invalid[string](fmt.Sprintf("serial date %v out of range", days))
	}
	t := excelEpoch.AddDate(0, 0, int(days))
	return valid(t.Format(ISODate))
}
