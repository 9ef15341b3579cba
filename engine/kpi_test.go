package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/weekpi/schema"
)

func TestCalculate_EmptyIsNil(t *testing.T) {
	assert.Nil(t, Calculate(BindRecords(nil), KPIOptions{}))
	assert.Nil(t, Calculate(ApplyFilters(weeklyView(), FilterState{Weeks: []int{2}}), KPIOptions{Mode: ModeCumulative}))
}

func TestCalculate_Ratios(t *testing.T) {
	view := ApplyFilters(weeklyView(), FilterState{Weeks: []int{9}})
	res := Calculate(view, KPIOptions{})
	require.NotNil(t, res)

	assert.Equal(t, ModeCurrent, res.Mode)
	assert.Equal(t, 2, res.Totals.RecordCount)
	assert.InDelta(t, 2000, res.Totals.MaturedPremium, 1e-9)
	assert.InDelta(t, 20, *res.LossRatio, 1e-9)
	assert.InDelta(t, 10, *res.ClaimFrequency, 1e-9)
	assert.InDelta(t, 200, *res.AvgClaimSeverity, 1e-9)
	assert.InDelta(t, 20, *res.ContributionMarginRatio, 1e-9)
	assert.InDelta(t, 80, *res.VariableCostRatio, 1e-9)
	assert.InDelta(t, 10, *res.ExpenseRatio, 1e-9)
	assert.InDelta(t, 30, *res.CombinedRatio, 1e-9)
	assert.InDelta(t, 100, *res.AvgPremium, 1e-9)
	assert.Nil(t, res.AchievementRatio, "current mode has no achievement")
}

func TestCalculate_ZeroDenominatorsAreNil(t *testing.T) {
	r := rec(1, "天府", "主全", 0, 100)
	r.PolicyCount, r.ClaimCaseCount = 0, 0
	res := Calculate(BindRecords([]schema.Record{r}), KPIOptions{Mode: ModeCumulative})
	require.NotNil(t, res)

	for name, v := range res.Metrics() {
		assert.Nil(t, v, name)
	}
	assert.Nil(t, res.AvgClaimSeverity)
	assert.Nil(t, res.AvgPremium)
	assert.InDelta(t, 100, res.Totals.ReportedClaimPayment, 1e-9)
}

func TestCalculate_NegativeMaturedPremiumIsNil(t *testing.T) {
	r := rec(1, "天府", "主全", -500, 100)
	res := Calculate(BindRecords([]schema.Record{r}), KPIOptions{})
	require.NotNil(t, res)
	assert.Nil(t, res.LossRatio)
}

func TestCalculate_NegativeAmountsNotClamped(t *testing.T) {
	records := []schema.Record{
		rec(1, "天府", "主全", 1000, 300),
		rec(1, "天府", "主全", 0, -500),
	}
	res := Calculate(BindRecords(records), KPIOptions{})
	require.NotNil(t, res)
	assert.InDelta(t, -200, res.Totals.ReportedClaimPayment, 1e-9)
	assert.InDelta(t, -20, *res.LossRatio, 1e-9)
}

func TestCalculate_Achievement(t *testing.T) {
	view := ApplyFilters(weeklyView(), FilterState{Weeks: []int{9}})

	res := Calculate(view, KPIOptions{Mode: ModeCumulative, AnnualTargetYuan: 8000})
	require.NotNil(t, res.AchievementRatio)
	assert.InDelta(t, 25, *res.AchievementRatio, 1e-9)
	assert.InDelta(t, 8000, *res.TargetYuan, 1e-9)

	orgs := KPIOptions{Mode: ModeCumulative, OrgTargets: map[string]float64{"天府": 3000, "高新": 1000, "其他": 99999}}
	res = Calculate(view, orgs)
	require.NotNil(t, res.AchievementRatio)
	assert.InDelta(t, 50, *res.AchievementRatio, 1e-9)

	tianfu := ApplyFilters(view, FilterState{Dimensions: map[string][]string{DimOrganization: {"天府"}}})
	res = Calculate(tianfu, orgs)
	assert.InDelta(t, 1000.0/3000*100, *res.AchievementRatio, 1e-9)

	res = Calculate(view, KPIOptions{Mode: ModeCumulative})
	assert.Nil(t, res.AchievementRatio, "no target")
}

func TestCalculate_TimeProgress(t *testing.T) {
	records := []schema.Record{rec(26, "天府", "主全", 1300, 0)}
	res := Calculate(BindRecords(records), KPIOptions{
		Mode:              ModeCumulative,
		AnnualTargetYuan:  5200,
		CurrentWeekNumber: 26,
		Year:              2025,
	})
	require.NotNil(t, res.TimeProgressAchievement)
	// expected to date = 5200 × 26/52 = 2600
	assert.InDelta(t, 50, *res.TimeProgressAchievement, 1e-9)
}

func TestCalculateIncrement(t *testing.T) {
	view := BindRecords(cumulativeRecords())
	cur := ApplyFilters(view, FilterState{Weeks: []int{2}})
	prev := ApplyFilters(view, FilterState{Weeks: []int{1}})

	res := CalculateIncrement(cur, prev, KPIOptions{AnnualTargetYuan: 10000})
	require.NotNil(t, res)
	assert.Equal(t, ModeIncrement, res.Mode)
	assert.InDelta(t, 1500, res.Totals.SignedPremium, 1e-9)
	assert.InDelta(t, 400, res.Totals.ReportedClaimPayment, 1e-9)
	assert.Equal(t, int64(15), res.Totals.PolicyCount)
	assert.Equal(t, int64(3), res.Totals.ClaimCaseCount)

	// Ratios come from the cumulative week-2 snapshot.
	assert.InDelta(t, 20, *res.LossRatio, 1e-9)
	assert.InDelta(t, 25, *res.AchievementRatio, 1e-9)

	first := CalculateIncrement(prev, nil, KPIOptions{})
	assert.InDelta(t, 1000, first.Totals.SignedPremium, 1e-9)
	assert.Nil(t, CalculateIncrement(BindRecords(nil), prev, KPIOptions{}))
}

func TestWeeksInYear(t *testing.T) {
	assert.Equal(t, 52, WeeksInYear(2025))
	assert.Equal(t, 53, WeeksInYear(2020))
	assert.Equal(t, 52, WeeksInYear(0))
}

func TestRatio_NonFinite(t *testing.T) {
	assert.Nil(t, ratio(1, 0, 100))
	assert.Nil(t, ratio(1, math.NaN(), 100))
	assert.Nil(t, ratio(math.Inf(1), 1, 100))
	assert.InDelta(t, 50, *ratio(1, 2, 100), 1e-9)
}

func TestMetricValue(t *testing.T) {
	assert.Nil(t, MetricValue(nil, MetricLossRatio))

	res := Calculate(weeklyView(), KPIOptions{})
	assert.Nil(t, MetricValue(res, "nonsense"))
	assert.InDelta(t, 6000, *MetricValue(res, MetricSignedPremium), 1e-9)
	assert.InDelta(t, 60, *MetricValue(res, MetricPolicyCount), 1e-9)
	assert.True(t, IsMetric(MetricCombinedRatio))
	assert.False(t, IsMetric("nonsense"))
	assert.Equal(t, "综合成本率", MetricLabel(MetricCombinedRatio))
	assert.Equal(t, "nonsense", MetricLabel("nonsense"))
	assert.Len(t, res.Metrics(), len(RatioMetrics))
}
