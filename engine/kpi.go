package engine

import (
	"math"
	"time"

	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// KPI ENGINE: Totals → ratios with null-guarded denominators
// ============================================================================
// One pass folds the record set into Totals; every ratio is derived from
// Totals. A ratio whose denominator is ≤ 0 is nil, never NaN or Inf.
// Negative amounts (reversals) are summed as given.
// ============================================================================

// KPIMode selects how totals are interpreted.
type KPIMode string

const (
	// ModeCurrent treats the aggregate as a point-in-time snapshot.
	ModeCurrent KPIMode = "current"
	// ModeCumulative treats the aggregate as year-to-date; enables achievement.
	ModeCumulative KPIMode = "cumulative"
	// ModeIncrement reports week-over-week absolute increments with ratios
	// taken from the cumulative totals.
	ModeIncrement KPIMode = "increment"
)

// KPIOptions controls Calculate.
type KPIOptions struct {
	Mode KPIMode `json:"mode"`
	// AnnualTargetYuan is the annual signed-premium target. When zero, the
	// target is the sum of OrgTargets for organizations present in the set.
	AnnualTargetYuan  float64            `json:"annualTargetYuan,omitempty"`
	OrgTargets        map[string]float64 `json:"orgTargets,omitempty"`
	CurrentWeekNumber int                `json:"currentWeekNumber,omitempty"`
	Year              int                `json:"year,omitempty"`
}

func (o KPIOptions) cumulative() bool {
	return o.Mode == ModeCumulative || o.Mode == ModeIncrement
}

// Totals are the running sums shared by every KPI.
type Totals struct {
	SignedPremium                   float64 `json:"signedPremium"`
	MaturedPremium                  float64 `json:"maturedPremium"`
	ReportedClaimPayment            float64 `json:"reportedClaimPayment"`
	ExpenseAmount                   float64 `json:"expenseAmount"`
	MarginalContribution            float64 `json:"marginalContribution"`
	CommercialPremiumBeforeDiscount float64 `json:"commercialPremiumBeforeDiscount"`
	PremiumPlan                     float64 `json:"premiumPlan"`
	PolicyCount                     int64   `json:"policyCount"`
	ClaimCaseCount                  int64   `json:"claimCaseCount"`
	RecordCount                     int     `json:"recordCount"`
}

// Sub returns t − o for every amount and count. RecordCount is kept from t.
func (t Totals) Sub(o Totals) Totals {
	return Totals{
		SignedPremium:                   t.SignedPremium - o.SignedPremium,
		MaturedPremium:                  t.MaturedPremium - o.MaturedPremium,
		ReportedClaimPayment:            t.ReportedClaimPayment - o.ReportedClaimPayment,
		ExpenseAmount:                   t.ExpenseAmount - o.ExpenseAmount,
		MarginalContribution:            t.MarginalContribution - o.MarginalContribution,
		CommercialPremiumBeforeDiscount: t.CommercialPremiumBeforeDiscount - o.CommercialPremiumBeforeDiscount,
		PremiumPlan:                     t.PremiumPlan - o.PremiumPlan,
		PolicyCount:                     t.PolicyCount - o.PolicyCount,
		ClaimCaseCount:                  t.ClaimCaseCount - o.ClaimCaseCount,
		RecordCount:                     t.RecordCount,
	}
}

// KPIResult is the aggregate for one record set.
type KPIResult struct {
	Mode   KPIMode `json:"mode"`
	Totals Totals  `json:"totals"`

	LossRatio               *float64 `json:"lossRatio"`
	ClaimFrequency          *float64 `json:"claimFrequency"`
	AvgClaimSeverity        *float64 `json:"avgClaimSeverity"`
	ContributionMarginRatio *float64 `json:"contributionMarginRatio"`

	ExpenseRatio      *float64 `json:"expenseRatio"`
	VariableCostRatio *float64 `json:"variableCostRatio"`
	CombinedRatio     *float64 `json:"combinedRatio"`
	AvgPremium        *float64 `json:"avgPremium"`

	TargetYuan              *float64 `json:"targetYuan,omitempty"`
	AchievementRatio        *float64 `json:"achievementRatio,omitempty"`
	TimeProgressAchievement *float64 `json:"timeProgressAchievement,omitempty"`
}

// ============================================================================
// AGGREGATION
// ============================================================================

// AggregateTotals folds a view into Totals in one traversal.
func AggregateTotals(view RecordView) Totals {
	var t Totals
	n := view.Len()
	for i := 0; i < n; i++ {
		t.SignedPremium += view.Measure(i, schema.SignedPremium)
		t.MaturedPremium += view.Measure(i, schema.MaturedPremium)
		t.ReportedClaimPayment += view.Measure(i, schema.ReportedClaimPayment)
		t.ExpenseAmount += view.Measure(i, schema.ExpenseAmount)
		t.MarginalContribution += view.Measure(i, schema.MarginalContribution)
		t.CommercialPremiumBeforeDiscount += view.Measure(i, schema.CommercialPremiumBeforeDiscount)
		t.PremiumPlan += view.Measure(i, schema.PremiumPlan)
		t.PolicyCount += int64(math.Round(view.Measure(i, schema.PolicyCount)))
		t.ClaimCaseCount += int64(math.Round(view.Measure(i, schema.ClaimCaseCount)))
	}
	t.RecordCount = n
	return t
}

// ============================================================================
// CALCULATION
// ============================================================================

// Calculate aggregates view into a KPIResult. It returns nil only when the
// view is empty; a non-empty view with zero premium still yields a result
// whose ratios are nil.
func Calculate(view RecordView, opts KPIOptions) *KPIResult {
	if view.Len() == 0 {
		return nil
	}
	return CalculateFromTotals(AggregateTotals(view), UniqueValues(view, schema.ThirdLevelOrganization), opts)
}

// CalculateIncrement computes the weekly increment between two cumulative
// snapshots: absolute totals are current − previous, ratios and achievement
// come from the current cumulative totals. A nil or empty previous yields
// the current snapshot as is.
func CalculateIncrement(current, previous RecordView, opts KPIOptions) *KPIResult {
	if current == nil || current.Len() == 0 {
		return nil
	}
	cum := opts
	if cum.Mode == "" || cum.Mode == ModeCurrent || cum.Mode == ModeIncrement {
		cum.Mode = ModeCumulative
	}
	res := Calculate(current, cum)
	res.Mode = ModeIncrement
	if previous != nil && previous.Len() > 0 {
		res.Totals = res.Totals.Sub(AggregateTotals(previous))
	}
	return res
}

// CalculateFromTotals derives every ratio from precomputed totals.
// scopeOrgs are the organizations the totals cover, used to resolve
// OrgTargets when AnnualTargetYuan is unset.
func CalculateFromTotals(t Totals, scopeOrgs []string, opts KPIOptions) *KPIResult {
	mode := opts.Mode
	if mode == "" {
		mode = ModeCurrent
	}

	r := &KPIResult{
		Mode:   mode,
		Totals: t,

		LossRatio:               ratio(t.ReportedClaimPayment, t.MaturedPremium, 100),
		ClaimFrequency:          ratio(float64(t.ClaimCaseCount), float64(t.PolicyCount), 100),
		AvgClaimSeverity:        ratio(t.ReportedClaimPayment, float64(t.ClaimCaseCount), 1),
		ContributionMarginRatio: ratio(t.MarginalContribution, t.MaturedPremium, 100),
		ExpenseRatio:            ratio(t.ExpenseAmount, t.SignedPremium, 100),
		AvgPremium:              ratio(t.SignedPremium, float64(t.PolicyCount), 1),
	}

	if r.ContributionMarginRatio != nil {
		r.VariableCostRatio = ptr(100 - *r.ContributionMarginRatio)
	}
	if r.LossRatio != nil && r.ExpenseRatio != nil {
		r.CombinedRatio = ptr(*r.LossRatio + *r.ExpenseRatio)
	}

	if opts.cumulative() {
		target := resolveTarget(opts, scopeOrgs)
		if target > 0 {
			r.TargetYuan = ptr(target)
			r.AchievementRatio = ratio(t.SignedPremium, target, 100)
			if opts.CurrentWeekNumber > 0 {
				expected := target * float64(opts.CurrentWeekNumber) / float64(WeeksInYear(opts.Year))
				r.TimeProgressAchievement = ratio(t.SignedPremium, expected, 100)
			}
		}
	}
	return r
}

func resolveTarget(opts KPIOptions, scopeOrgs []string) float64 {
	if opts.AnnualTargetYuan > 0 {
		return opts.AnnualTargetYuan
	}
	var sum float64
	for _, org := range scopeOrgs {
		sum += opts.OrgTargets[org]
	}
	return sum
}

// WeeksInYear returns the number of ISO weeks in year (52 or 53). A
// non-positive year is treated as 52 weeks.
func WeeksInYear(year int) int {
	if year <= 0 {
		return 52
	}
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// ratio returns num*scale/den, or nil when den ≤ 0 or the result is not finite.
func ratio(num, den, scale float64) *float64 {
	if den <= 0 || math.IsNaN(den) {
		return nil
	}
	v := num * scale / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func ptr(v float64) *float64 { return &v }

// ============================================================================
// METRIC SELECTION
// ============================================================================

// Metric names accepted by MetricValue.
const (
	MetricLossRatio               = "loss_ratio"
	MetricClaimFrequency          = "claim_frequency"
	MetricAvgClaimSeverity        = "avg_claim_severity"
	MetricContributionMarginRatio = "contribution_margin_ratio"
	MetricExpenseRatio            = "expense_ratio"
	MetricVariableCostRatio       = "variable_cost_ratio"
	MetricCombinedRatio           = "combined_ratio"
	MetricAvgPremium              = "avg_premium"
	MetricAchievement             = "achievement_ratio"
	MetricTimeProgress            = "time_progress_achievement"
	MetricSignedPremium           = "signed_premium"
	MetricMaturedPremium          = "matured_premium"
	MetricClaimPayment            = "reported_claim_payment"
	MetricPolicyCount             = "policy_count"
	MetricClaimCaseCount          = "claim_case_count"
)

// RatioMetrics lists the percentage metrics in display order.
var RatioMetrics = []string{
	MetricLossRatio,
	MetricClaimFrequency,
	MetricContributionMarginRatio,
	MetricVariableCostRatio,
	MetricExpenseRatio,
	MetricCombinedRatio,
	MetricAchievement,
	MetricTimeProgress,
}

var metricLabels = map[string]string{
	MetricLossRatio:               "满期赔付率",
	MetricClaimFrequency:          "满期出险率",
	MetricAvgClaimSeverity:        "案均赔款",
	MetricContributionMarginRatio: "边际贡献率",
	MetricExpenseRatio:            "费用率",
	MetricVariableCostRatio:       "变动成本率",
	MetricCombinedRatio:           "综合成本率",
	MetricAvgPremium:              "单均保费",
	MetricAchievement:             "保费达成率",
	MetricTimeProgress:            "时间进度达成率",
	MetricSignedPremium:           "签单保费",
	MetricMaturedPremium:          "满期保费",
	MetricClaimPayment:            "已报告赔款",
	MetricPolicyCount:             "保单件数",
	MetricClaimCaseCount:          "赔案件数",
}

// IsMetric reports whether name is a known metric.
func IsMetric(name string) bool {
	_, ok := metricLabels[name]
	return ok
}

// MetricLabel returns the display name of metric, or metric itself when
// unknown.
func MetricLabel(metric string) string {
	if l, ok := metricLabels[metric]; ok {
		return l
	}
	return metric
}

// MetricValue selects a metric from r by name. It returns nil for a nil
// result, an unknown name, or a ratio with no data.
func MetricValue(r *KPIResult, metric string) *float64 {
	if r == nil {
		return nil
	}
	switch metric {
	case MetricLossRatio:
		return r.LossRatio
	case MetricClaimFrequency:
		return r.ClaimFrequency
	case MetricAvgClaimSeverity:
		return r.AvgClaimSeverity
	case MetricContributionMarginRatio:
		return r.ContributionMarginRatio
	case MetricExpenseRatio:
		return r.ExpenseRatio
	case MetricVariableCostRatio:
		return r.VariableCostRatio
	case MetricCombinedRatio:
		return r.CombinedRatio
	case MetricAvgPremium:
		return r.AvgPremium
	case MetricAchievement:
		return r.AchievementRatio
	case MetricTimeProgress:
		return r.TimeProgressAchievement
	case MetricSignedPremium:
		return ptr(r.Totals.SignedPremium)
	case MetricMaturedPremium:
		return ptr(r.Totals.MaturedPremium)
	case MetricClaimPayment:
		return ptr(r.Totals.ReportedClaimPayment)
	case MetricPolicyCount:
		return ptr(float64(r.Totals.PolicyCount))
	case MetricClaimCaseCount:
		return ptr(float64(r.Totals.ClaimCaseCount))
	default:
		return nil
	}
}

// Metrics returns every ratio metric of r keyed by metric name.
func (r *KPIResult) Metrics() map[string]*float64 {
	out := make(map[string]*float64, len(RatioMetrics))
	for _, m := range RatioMetrics {
		out[m] = MetricValue(r, m)
	}
	return out
}
