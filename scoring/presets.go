package scoring

import "sort"

// Metric names scored by the predefined configs. They match the KPI metric
// names produced by the engine.
const (
	MetricLossRatio               = "loss_ratio"
	MetricClaimFrequency          = "claim_frequency"
	MetricContributionMarginRatio = "contribution_margin_ratio"
	MetricExpenseRatio            = "expense_ratio"
	MetricVariableCostRatio       = "variable_cost_ratio"
	MetricCombinedRatio           = "combined_ratio"
	MetricAchievement             = "achievement_ratio"
)

var levelLabels = map[Level]string{
	LevelExcellent: "优秀",
	LevelGood:      "良好",
	LevelMedium:    "一般",
	LevelWarning:   "预警",
	LevelDanger:    "危险",
}

// LevelLabel returns the display name of l.
func LevelLabel(l Level) string { return levelLabels[l] }

func band(min, max, minScore, maxScore float64, l Level) ScoreThreshold {
	return ScoreThreshold{Min: min, Max: max, MinScore: minScore, MaxScore: maxScore, Level: l, Label: levelLabels[l]}
}

// lowerIsBetter builds a negative-direction config from four cut points:
// excellent below c[0], good below c[1], medium below c[2], warning below
// c[3], danger from c[3] up to ceiling. Values below zero score 100.
func lowerIsBetter(metric string, c [4]float64, ceiling float64) ScoringConfig {
	return ScoringConfig{
		Metric: metric,
		Thresholds: []ScoreThreshold{
			band(-ceiling, 0, 100, 100, LevelExcellent),
			band(0, c[0], 90, 100, LevelExcellent),
			band(c[0], c[1], 75, 90, LevelGood),
			band(c[1], c[2], 60, 75, LevelMedium),
			band(c[2], c[3], 30, 60, LevelWarning),
			band(c[3], ceiling, 0, 30, LevelDanger),
		},
		IsPositive: false,
		Precision:  2,
	}
}

// LossRatioConfig scores 满期赔付率: 75% is the problem line.
func LossRatioConfig() ScoringConfig {
	return lowerIsBetter(MetricLossRatio, [4]float64{60, 70, 75, 100}, 10000)
}

// ClaimFrequencyConfig scores 满期出险率: 20% baseline, 25% alert line.
func ClaimFrequencyConfig() ScoringConfig {
	return lowerIsBetter(MetricClaimFrequency, [4]float64{15, 20, 25, 40}, 10000)
}

// ExpenseRatioConfig scores 费用率: 18% baseline, 20% problem line.
func ExpenseRatioConfig() ScoringConfig {
	return lowerIsBetter(MetricExpenseRatio, [4]float64{12, 18, 20, 30}, 10000)
}

// VariableCostRatioConfig scores 变动成本率: 90% baseline, 95% problem line.
func VariableCostRatioConfig() ScoringConfig {
	return lowerIsBetter(MetricVariableCostRatio, [4]float64{80, 90, 95, 100}, 10000)
}

// CombinedRatioConfig scores 综合成本率: 95% alert line, 100% danger line.
func CombinedRatioConfig() ScoringConfig {
	return lowerIsBetter(MetricCombinedRatio, [4]float64{85, 90, 95, 100}, 10000)
}

// ContributionMarginRatioConfig scores 边际贡献率, the complement of the
// variable cost ratio: below 5% is a problem.
func ContributionMarginRatioConfig() ScoringConfig {
	return ScoringConfig{
		Metric: MetricContributionMarginRatio,
		Thresholds: []ScoreThreshold{
			band(-10000, 0, 0, 0, LevelDanger),
			band(0, 5, 0, 30, LevelDanger),
			band(5, 10, 30, 60, LevelWarning),
			band(10, 15, 60, 75, LevelMedium),
			band(15, 25, 75, 90, LevelGood),
			band(25, 100, 90, 100, LevelExcellent),
			band(100, 10000, 100, 100, LevelExcellent),
		},
		IsPositive: true,
		Precision:  2,
	}
}

// AchievementConfig scores 保费达成率: below 95% is a problem.
func AchievementConfig() ScoringConfig {
	return ScoringConfig{
		Metric: MetricAchievement,
		Thresholds: []ScoreThreshold{
			band(-10000, 0, 0, 0, LevelDanger),
			band(0, 80, 0, 30, LevelDanger),
			band(80, 95, 30, 60, LevelWarning),
			band(95, 100, 60, 75, LevelMedium),
			band(100, 110, 75, 90, LevelGood),
			band(110, 200, 90, 100, LevelExcellent),
			band(200, 100000, 100, 100, LevelExcellent),
		},
		IsPositive: true,
		Precision:  2,
	}
}

// Presets returns every predefined config keyed by metric name.
func Presets() map[string]ScoringConfig {
	cfgs := []ScoringConfig{
		LossRatioConfig(),
		ClaimFrequencyConfig(),
		ContributionMarginRatioConfig(),
		ExpenseRatioConfig(),
		VariableCostRatioConfig(),
		CombinedRatioConfig(),
		AchievementConfig(),
	}
	out := make(map[string]ScoringConfig, len(cfgs))
	for _, c := range cfgs {
		out[c.Metric] = c
	}
	return out
}

// MetricScore is one metric's score within a KPI scorecard.
type MetricScore struct {
	Metric string       `json:"metric"`
	Value  *float64     `json:"value"`
	Result *ScoreResult `json:"result"`
}

// ScoreKPI scores every metric that has a predefined config. Metrics
// without a config are skipped; metrics with a nil value keep a nil result.
// Output is ordered by metric name.
func ScoreKPI(metrics map[string]*float64) []MetricScore {
	return ScoreKPIWith(metrics, Presets())
}

// ScoreKPIWith is ScoreKPI against the given band set.
func ScoreKPIWith(metrics map[string]*float64, presets map[string]ScoringConfig) []MetricScore {
	out := make([]MetricScore, 0, len(metrics))
	for name, v := range metrics {
		cfg, ok := presets[name]
		if !ok {
			continue
		}
		out = append(out, MetricScore{Metric: name, Value: v, Result: CalculateScore(v, cfg)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}
