// Package scoring maps raw metric values to 0–100 scores and qualitative
// levels through ordered threshold bands.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ============================================================================
// TYPES
// ============================================================================

// Level is the qualitative band of a score.
type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelMedium    Level = "medium"
	LevelWarning   Level = "warning"
	LevelDanger    Level = "danger"
)

// Levels lists every level from best to worst.
var Levels = []Level{LevelExcellent, LevelGood, LevelMedium, LevelWarning, LevelDanger}

// ScoreThreshold maps values in [Min, Max) onto [MinScore, MaxScore]. A
// zero-width band (Min == Max) matches exactly Min.
type ScoreThreshold struct {
	Min      float64 `json:"min" mapstructure:"min"`
	Max      float64 `json:"max" mapstructure:"max" validate:"gtefield=Min"`
	MinScore float64 `json:"minScore" mapstructure:"min_score" validate:"min=0,max=100"`
	MaxScore float64 `json:"maxScore" mapstructure:"max_score" validate:"min=0,max=100,gtefield=MinScore"`
	Level    Level   `json:"level" mapstructure:"level" validate:"required"`
	Label    string  `json:"label" mapstructure:"label"`
}

// ScoringConfig is a static, ordered band list for one metric. When
// IsPositive is false, lower raw values are better and the interpolated
// score is reflected within its band.
type ScoringConfig struct {
	Metric     string           `json:"metric" mapstructure:"metric"`
	Thresholds []ScoreThreshold `json:"thresholds" mapstructure:"thresholds" validate:"required,min=1,dive"`
	IsPositive bool             `json:"isPositive" mapstructure:"is_positive"`
	Precision  int32            `json:"precision" mapstructure:"precision" validate:"min=0,max=6"`
}

// ScoreResult is a scored value.
type ScoreResult struct {
	Value float64 `json:"value"`
	Score float64 `json:"score"`
	Level Level   `json:"level"`
	Label string  `json:"label"`
	Band  int     `json:"band"`
}

// ============================================================================
// SCORING
// ============================================================================

// CalculateScore scores value against cfg. nil, NaN and values outside
// every band yield nil; a gap is reported to the caller, never defaulted.
func CalculateScore(value *float64, cfg ScoringConfig) *ScoreResult {
	if value == nil {
		return nil
	}
	return ScoreValue(*value, cfg)
}

// ScoreValue is CalculateScore for a plain float.
func ScoreValue(v float64, cfg ScoringConfig) *ScoreResult {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	for i, th := range cfg.Thresholds {
		if !th.contains(v) {
			continue
		}

		var score float64
		if th.Max == th.Min {
			score = th.MinScore
		} else {
			pos := (v - th.Min) / (th.Max - th.Min)
			score = th.MinScore + pos*(th.MaxScore-th.MinScore)
			if !cfg.IsPositive {
				score = th.MinScore + th.MaxScore - score
			}
		}

		return &ScoreResult{
			Value: v,
			Score: round(clamp(score, 0, 100), cfg.Precision),
			Level: th.Level,
			Label: th.Label,
			Band:  i,
		}
	}
	return nil
}

func (th ScoreThreshold) contains(v float64) bool {
	if th.Min == th.Max {
		return v == th.Min
	}
	return v >= th.Min && v < th.Max
}

// CalculateScoresBatch scores every value; the output is index-aligned with
// values and holds nil where a value could not be scored.
func CalculateScoresBatch(values []*float64, cfg ScoringConfig) []*ScoreResult {
	out := make([]*ScoreResult, len(values))
	for i, v := range values {
		out[i] = CalculateScore(v, cfg)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// ============================================================================
// VALIDATION
// ============================================================================

// ErrInvalidConfig is wrapped by every ValidateConfig error.
var ErrInvalidConfig = errors.New("scoring: invalid config")

var validate = validator.New()

// ValidateConfig reports malformed bands, and adjacent bands that leave a
// gap or overlap. CalculateScore does not call it; configured band
// overrides are checked with it when the configuration loads.
func ValidateConfig(cfg ScoringConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for i := 1; i < len(cfg.Thresholds); i++ {
		prev, cur := cfg.Thresholds[i-1], cfg.Thresholds[i]
		switch {
		case cur.Min > prev.Max:
			return fmt.Errorf("%w: gap between bands %d and %d: [%g, %g)", ErrInvalidConfig, i-1, i, prev.Max, cur.Min)
		case cur.Min < prev.Max:
			return fmt.Errorf("%w: bands %d and %d overlap at %g", ErrInvalidConfig, i-1, i, cur.Min)
		}
	}
	return nil
}
