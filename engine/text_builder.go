package engine

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ============================================================================
// TEXT BUILDER: Summary sentences, headline values, reply templates
// ============================================================================

// BuildTextSummary renders a report as a short Chinese paragraph.
func BuildTextSummary(r *Report) string {
	if r == nil || (r.KPI == nil && r.CurrentWeek == 0) {
		return "当前筛选条件下没有数据。"
	}
	if r.KPI == nil {
		return periodLabel(r) + "没有数据。"
	}
	k := r.KPI

	var b strings.Builder
	fmt.Fprintf(&b, "%s（%s，%d 条记录）：", periodLabel(r), modeLabel(k.Mode), r.RecordCount)
	fmt.Fprintf(&b, "签单保费 %s，满期赔付率 %s，边际贡献率 %s，综合成本率 %s",
		FormatWan(k.Totals.SignedPremium),
		FormatPercent(k.LossRatio),
		FormatPercent(k.ContributionMarginRatio),
		FormatPercent(k.CombinedRatio),
	)
	if k.AchievementRatio != nil {
		fmt.Fprintf(&b, "，保费达成率 %s", FormatPercent(k.AchievementRatio))
	}
	b.WriteString("。")

	if c := r.Comparison; c != nil {
		if c.Resolved() {
			fmt.Fprintf(&b, "较第 %d 周，满期赔付率 %s，签单保费 %s。",
				c.PreviousWeek,
				FormatPoints(c.Deltas.LossRatio),
				signed(FormatWan(c.Deltas.SignedPremium.Amount), c.Deltas.SignedPremium.Amount),
			)
		} else {
			b.WriteString("无可比周。")
		}
	}

	if r.TrendLine.Valid() {
		fmt.Fprintf(&b, "%s趋势%s（%d 周）。",
			LabelForDimension(r.TrendMetric), trendDirection(r.TrendLine.Slope), r.TrendLine.Points)
	}

	if len(r.TopMovers) > 0 {
		m := r.TopMovers[0]
		fmt.Fprintf(&b, "赔款变化最大：%s %s（%s）。",
			LabelForDimension(m.Dimension), m.Value, signed(FormatWan(m.ClaimPaymentChange), m.ClaimPaymentChange))
	}
	return b.String()
}

func periodLabel(r *Report) string {
	if r.Options.Year > 0 {
		return fmt.Sprintf("%d 年第 %d 周", r.Options.Year, r.CurrentWeek)
	}
	return fmt.Sprintf("第 %d 周", r.CurrentWeek)
}

func modeLabel(m KPIMode) string {
	switch m {
	case ModeCumulative:
		return "累计"
	case ModeIncrement:
		return "周增量"
	default:
		return "当周"
	}
}

func trendDirection(slope float64) string {
	switch {
	case slope > 0.005:
		return "上升"
	case slope < -0.005:
		return "下降"
	default:
		return "持平"
	}
}

// ============================================================================
// HEADLINE + GROWTH
// ============================================================================

// BuildHeadline produces the headline value of metric from a report, with
// growth measured across the report's weekly trend.
func BuildHeadline(r *Report, metric string) *TextData {
	if r == nil || r.KPI == nil {
		return &TextData{
			Metric: metric,
			Value:  "无数据",
			Period: "无数据",
		}
	}
	v := MetricValue(r.KPI, metric)
	td := &TextData{
		Metric:   metric,
		Value:    formatMetric(v, metric),
		RawValue: v,
		Unit:     unitFor(metric),
		Period:   periodLabel(r),
		Count:    r.RecordCount,
	}
	if g := BuildGrowthText(r.Trend, metric); g.Growth != nil {
		td.Growth = g.Growth
	}
	return td
}

// BuildGrowthText computes change between the earliest and latest periods
// that have a value for metric.
func BuildGrowthText(points []TrendPoint, metric string) *TextData {
	if len(points) == 0 {
		return &TextData{
			Metric: metric,
			Value:  "无数据",
			Unit:   unitFor(metric),
			Period: "无数据",
		}
	}

	first, last := -1, -1
	for i, p := range points {
		if MetricValue(p.Result, metric) == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}

	count := 0
	for _, p := range points {
		if p.Result != nil {
			count += p.Result.Totals.RecordCount
		}
	}

	// Need at least 2 periods with a value
	if first < 0 || first == last {
		var v *float64
		period := points[len(points)-1].Label
		if first >= 0 {
			v = MetricValue(points[first].Result, metric)
			period = points[first].Label
		}
		return &TextData{
			Metric:   metric,
			Value:    formatMetric(v, metric),
			RawValue: v,
			Unit:     unitFor(metric),
			Period:   period,
			Count:    count,
			Growth: &GrowthData{
				EarliestValue:  v,
				LatestValue:    v,
				EarliestPeriod: period,
				LatestPeriod:   period,
				Direction:      "insufficient data",
			},
		}
	}

	earliest, latest := points[first], points[last]
	ev, lv := MetricValue(earliest.Result, metric), MetricValue(latest.Result, metric)
	changeAmount := *lv - *ev
	changePercent := ratio(changeAmount, math.Abs(*ev), 100)

	direction := "unchanged"
	switch {
	case changePercent != nil && *changePercent > 0.5:
		direction = "increased"
	case changePercent != nil && *changePercent < -0.5:
		direction = "decreased"
	case changePercent == nil && changeAmount > 0:
		direction = "increased"
	case changePercent == nil && changeAmount < 0:
		direction = "decreased"
	}

	var displayValue string
	switch direction {
	case "increased":
		displayValue = "↑ " + growthMagnitude(changePercent, changeAmount, metric)
	case "decreased":
		displayValue = "↓ " + growthMagnitude(changePercent, changeAmount, metric)
	default:
		displayValue = "→ 持平"
	}

	return &TextData{
		Metric:   metric,
		Value:    displayValue,
		RawValue: changePercent,
		Unit:     unitFor(metric),
		Period:   fmt.Sprintf("%s – %s", earliest.Label, latest.Label),
		Count:    count,
		Growth: &GrowthData{
			EarliestValue:  ev,
			LatestValue:    lv,
			EarliestPeriod: earliest.Label,
			LatestPeriod:   latest.Label,
			ChangeAmount:   ptr(changeAmount),
			ChangePercent:  changePercent,
			Direction:      direction,
		},
	}
}

func growthMagnitude(pct *float64, amount float64, metric string) string {
	if pct != nil {
		return fmt.Sprintf("%.1f%%", math.Abs(*pct))
	}
	a := math.Abs(amount)
	return formatMetric(&a, metric)
}

func unitFor(metric string) string {
	switch metricType(metric) {
	case "percent":
		return "%"
	case "number":
		return "件"
	default:
		return "元"
	}
}

// ============================================================================
// PERIOD HELPER
// ============================================================================

// DerivePeriod builds a human-readable week span from a view.
func DerivePeriod(view RecordView) string {
	if view.Len() == 0 {
		return "无数据"
	}

	var minY, minW, maxY, maxW int
	for i := 0; i < view.Len(); i++ {
		y, w := measureInt(view, i, DimYear), measureInt(view, i, DimWeek)
		if i == 0 || y < minY || (y == minY && w < minW) {
			minY, minW = y, w
		}
		if i == 0 || y > maxY || (y == maxY && w > maxW) {
			maxY, maxW = y, w
		}
	}

	if minY == maxY && minW == maxW {
		return formatWeek(minY, minW)
	}
	return fmt.Sprintf("%s – %s", formatWeek(minY, minW), formatWeek(maxY, maxW))
}

// ============================================================================
// PLACEHOLDER RESOLUTION
// ============================================================================

// ResolvePlaceholders substitutes report values into a reply template such
// as "{period} 赔付率 {loss_ratio}（{loss_ratio_change}）". An empty template
// yields the report summary; unresolved placeholders are stripped.
func ResolvePlaceholders(template string, r *Report) string {
	if template == "" {
		return BuildTextSummary(r)
	}
	if r == nil || r.KPI == nil {
		return stripUnresolvedPlaceholders(strings.ReplaceAll(template, "{records}", "0"))
	}

	replacements := map[string]string{
		"{period}":  periodLabel(r),
		"{span}":    r.Span,
		"{mode}":    modeLabel(r.KPI.Mode),
		"{records}": fmt.Sprintf("%d", r.RecordCount),
		"{week}":    fmt.Sprintf("%d", r.CurrentWeek),
	}
	for _, m := range []string{
		MetricSignedPremium, MetricMaturedPremium, MetricClaimPayment,
		MetricPolicyCount, MetricClaimCaseCount, MetricAvgClaimSeverity, MetricAvgPremium,
	} {
		replacements["{"+m+"}"] = formatMetric(MetricValue(r.KPI, m), m)
	}
	for _, m := range RatioMetrics {
		if v := MetricValue(r.KPI, m); v != nil {
			replacements["{"+m+"}"] = FormatPercent(v)
		}
	}

	if c := r.Comparison; c.Resolved() {
		replacements["{previous_week}"] = fmt.Sprintf("%d", c.PreviousWeek)
		for _, m := range RatioMetrics {
			cur, prev := MetricValue(c.Current, m), MetricValue(c.Previous, m)
			if d := pointDelta(cur, prev); d != nil {
				replacements["{"+m+"_change}"] = FormatPoints(d)
			}
		}
	}
	if r.Comparison != nil {
		replacements["{comparison_status}"] = string(r.Comparison.Status)
	}

	if r.TrendLine.Valid() {
		replacements["{trend_direction}"] = trendDirection(r.TrendLine.Slope)
		replacements["{trend_slope}"] = fmt.Sprintf("%.2f", r.TrendLine.Slope)
	}
	for _, t := range r.TopLabels {
		replacements["{top_"+t.Dimension+"}"] = t.Label
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Safety net: strip unresolved placeholders
	return stripUnresolvedPlaceholders(result)
}

var placeholderRegex = regexp.MustCompile(`\{[a-z0-9_]+\}`)

func stripUnresolvedPlaceholders(text string) string {
	cleaned := placeholderRegex.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, " .—-–，")
	if cleaned == "" {
		return text
	}
	return cleaned
}
