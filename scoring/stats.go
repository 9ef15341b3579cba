package scoring

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ScoreStatistics summarizes a batch of scores. Average, Min and Max are nil
// when no value was scored.
type ScoreStatistics struct {
	Count        int               `json:"count"`
	Unscored     int               `json:"unscored"`
	Average      *float64          `json:"average"`
	Min          *float64          `json:"min"`
	Max          *float64          `json:"max"`
	Distribution map[Level]int     `json:"distribution"`
	Percentages  map[Level]float64 `json:"percentages"`
}

// CalculateScoreStatistics reduces a batch into count, average, extremes
// and a level histogram. nil entries count as unscored.
func CalculateScoreStatistics(results []*ScoreResult) ScoreStatistics {
	stats := ScoreStatistics{
		Distribution: make(map[Level]int),
		Percentages:  make(map[Level]float64),
	}

	sum := decimal.Zero
	var lo, hi float64
	for _, r := range results {
		if r == nil {
			stats.Unscored++
			continue
		}
		if stats.Count == 0 || r.Score < lo {
			lo = r.Score
		}
		if stats.Count == 0 || r.Score > hi {
			hi = r.Score
		}
		stats.Count++
		sum = sum.Add(decimal.NewFromFloat(r.Score))
		stats.Distribution[r.Level]++
	}
	if stats.Count == 0 {
		return stats
	}

	n := decimal.NewFromInt(int64(stats.Count))
	avg, _ := sum.Div(n).Round(2).Float64()
	stats.Average, stats.Min, stats.Max = &avg, &lo, &hi

	for level, c := range stats.Distribution {
		pct, _ := decimal.NewFromInt(int64(c)).Mul(decimal.NewFromInt(100)).Div(n).Round(2).Float64()
		stats.Percentages[level] = pct
	}
	return stats
}

// ============================================================================
// PROBLEM DETECTION
// ============================================================================

// ProblemRules are the limits beyond which a unit is flagged.
type ProblemRules struct {
	MinAchievement       float64 `json:"minAchievement" mapstructure:"min_achievement"`
	MaxVariableCostRatio float64 `json:"maxVariableCostRatio" mapstructure:"max_variable_cost_ratio"`
	MaxLossRatio         float64 `json:"maxLossRatio" mapstructure:"max_loss_ratio"`
	MaxExpenseRatio      float64 `json:"maxExpenseRatio" mapstructure:"max_expense_ratio"`
}

// DefaultProblemRules flag achievement below 95%, variable cost above 95%,
// loss ratio above 75% and expense ratio above 20%.
func DefaultProblemRules() ProblemRules {
	return ProblemRules{
		MinAchievement:       95,
		MaxVariableCostRatio: 95,
		MaxLossRatio:         75,
		MaxExpenseRatio:      20,
	}
}

// Problem is one breached limit.
type Problem struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Label  string  `json:"label"`
}

// DetectProblems checks metrics against rules. Missing or nil metrics are
// never flagged. Output is ordered by metric name.
func DetectProblems(metrics map[string]*float64, rules ProblemRules) []Problem {
	var out []Problem
	check := func(metric string, limit float64, below bool, label string) {
		v := metrics[metric]
		if v == nil || limit == 0 {
			return
		}
		if (below && *v < limit) || (!below && *v > limit) {
			out = append(out, Problem{Metric: metric, Value: *v, Limit: limit, Label: label})
		}
	}
	check(MetricAchievement, rules.MinAchievement, true, "保费未达标")
	check(MetricVariableCostRatio, rules.MaxVariableCostRatio, false, "成本超标")
	check(MetricLossRatio, rules.MaxLossRatio, false, "赔付率高")
	check(MetricExpenseRatio, rules.MaxExpenseRatio, false, "费用率高")

	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}
