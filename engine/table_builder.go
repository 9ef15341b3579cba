package engine

import (
	"fmt"
)

// ============================================================================
// TABLE BUILDER: Produces TableData from KPI groups, comparisons, highlights
// ============================================================================
// Cells are pre-formatted strings; nil ratios render as "n/a", never as zero.
// ============================================================================

// kpiColumns are the metric columns of a KPI table, in display order.
var kpiColumns = []Column{
	{Key: MetricSignedPremium, Label: metricLabels[MetricSignedPremium], Type: "currency", Align: "right"},
	{Key: MetricMaturedPremium, Label: metricLabels[MetricMaturedPremium], Type: "currency", Align: "right"},
	{Key: MetricClaimPayment, Label: metricLabels[MetricClaimPayment], Type: "currency", Align: "right"},
	{Key: MetricPolicyCount, Label: metricLabels[MetricPolicyCount], Type: "number", Align: "right"},
	{Key: MetricClaimCaseCount, Label: metricLabels[MetricClaimCaseCount], Type: "number", Align: "right"},
	{Key: MetricLossRatio, Label: metricLabels[MetricLossRatio], Type: "percent", Align: "right"},
	{Key: MetricClaimFrequency, Label: metricLabels[MetricClaimFrequency], Type: "percent", Align: "right"},
	{Key: MetricAvgClaimSeverity, Label: metricLabels[MetricAvgClaimSeverity], Type: "currency", Align: "right"},
	{Key: MetricContributionMarginRatio, Label: metricLabels[MetricContributionMarginRatio], Type: "percent", Align: "right"},
	{Key: MetricVariableCostRatio, Label: metricLabels[MetricVariableCostRatio], Type: "percent", Align: "right"},
	{Key: MetricExpenseRatio, Label: metricLabels[MetricExpenseRatio], Type: "percent", Align: "right"},
	{Key: MetricCombinedRatio, Label: metricLabels[MetricCombinedRatio], Type: "percent", Align: "right"},
}

// BuildKPITable renders one row per group. The summary row holds the KPI of
// total when it is non-nil.
func BuildKPITable(title string, groups []KPIGroup, total *KPIResult) *TableData {
	if len(groups) == 0 {
		return &TableData{
			Title:   title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	groupLabel := "分组"
	if groups[0].Dimension != "" {
		groupLabel = LabelForDimension(groups[0].Dimension)
	}

	columns := make([]Column, 0, len(kpiColumns)+2)
	columns = append(columns,
		Column{Key: "group", Label: groupLabel, Type: "text", Align: "left"},
		Column{Key: "count", Label: "记录数", Type: "number", Align: "center"},
	)
	columns = append(columns, kpiColumns...)

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		row := []string{g.Label, fmt.Sprintf("%d", g.Count)}
		for _, col := range kpiColumns {
			row = append(row, formatMetricCell(g.Result, col))
		}
		rows = append(rows, row)
	}

	table := &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
	}
	if total != nil {
		values := map[string]string{"count": fmt.Sprintf("%d", total.Totals.RecordCount)}
		for _, col := range kpiColumns {
			values[col.Key] = formatMetricCell(total, col)
		}
		table.Summary = &Summary{Label: "合计", Values: values}
	}
	return table
}

// BuildGroupTable renders measure groups from GroupAndAggregate. Two-level
// groups get one row per (first, second) pair. The summary row totals counts,
// and values too when aggregation is additive.
func BuildGroupTable(title string, groups []Group, groupBy []string, measure, aggregation string) *TableData {
	if len(groups) == 0 {
		return &TableData{
			Title:   title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	columns := make([]Column, 0, 4)
	if len(groupBy) == 0 {
		columns = append(columns, Column{Key: "group", Label: "分组", Type: "text", Align: "left"})
	}
	for i, dim := range groupBy {
		columns = append(columns, Column{Key: fmt.Sprintf("group%d", i), Label: LabelForDimension(dim), Type: "text", Align: "left"})
	}
	valueType := "number"
	if m, ok := measureMeta(measure); ok && m.IsCurrency && aggregation != "count" {
		valueType = "currency"
	}
	columns = append(columns,
		Column{Key: "value", Label: LabelForDimension(measure) + "（" + LabelForAggregation(aggregation) + "）", Type: valueType, Align: "right"},
		Column{Key: "count", Label: "记录数", Type: "number", Align: "center"},
	)

	format := func(v float64) string {
		if valueType == "currency" {
			return FormatYuan(v)
		}
		return fmt.Sprintf("%.2f", v)
	}

	rows := make([][]string, 0, len(groups))
	var totalValue float64
	var totalCount int
	for _, g := range groups {
		totalValue += g.Value
		totalCount += g.Count
		if len(groupBy) < 2 || len(g.SubGroups) == 0 {
			row := []string{g.Label}
			if len(groupBy) > 1 {
				row = append(row, "")
			}
			rows = append(rows, append(row, format(g.Value), fmt.Sprintf("%d", g.Count)))
			continue
		}
		for _, sg := range g.SubGroups {
			rows = append(rows, []string{g.Label, sg.Label, format(sg.Value), fmt.Sprintf("%d", sg.Count)})
		}
	}

	values := map[string]string{"count": fmt.Sprintf("%d", totalCount)}
	if aggregation == "sum" || aggregation == "count" || aggregation == "" {
		values["value"] = format(totalValue)
	}
	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{Label: "合计", Values: values},
	}
}

// BuildComparisonTable renders current, previous and change per metric.
// A not_found comparison yields a table with the current column only.
func BuildComparisonTable(title string, c *Comparison) *TableData {
	if c == nil || c.Current == nil {
		return &TableData{Title: title, Columns: []Column{}, Rows: [][]string{}}
	}

	columns := []Column{
		{Key: "metric", Label: "指标", Type: "text", Align: "left"},
		{Key: "current", Label: formatWeek(0, c.CurrentWeek), Type: "text", Align: "right"},
	}
	if c.Resolved() {
		columns = append(columns,
			Column{Key: "previous", Label: formatWeek(0, c.PreviousWeek), Type: "text", Align: "right"},
			Column{Key: "change", Label: "变化", Type: "text", Align: "right"},
		)
	}

	rows := make([][]string, 0, len(kpiColumns))
	for _, col := range kpiColumns {
		row := []string{col.Label, formatMetricCell(c.Current, col)}
		if c.Resolved() {
			prev := formatMetricCell(c.Previous, col)
			row = append(row, prev, formatMetricChange(c.Current, c.Previous, col))
		}
		rows = append(rows, row)
	}

	table := &TableData{Title: title, Columns: columns, Rows: rows}
	if !c.Resolved() {
		table.Summary = &Summary{Label: "环比", Values: map[string]string{"current": c.Reason}}
	}
	return table
}

// BuildHighlightTable renders dimension highlights, one row each.
func BuildHighlightTable(title string, highlights []DimensionHighlight) *TableData {
	if len(highlights) == 0 {
		return &TableData{Title: title, Columns: []Column{}, Rows: [][]string{}}
	}

	columns := []Column{
		{Key: "dimension", Label: "维度", Type: "text", Align: "left"},
		{Key: "value", Label: "取值", Type: "text", Align: "left"},
		{Key: "current_loss_ratio", Label: "本期" + metricLabels[MetricLossRatio], Type: "percent", Align: "right"},
		{Key: "previous_loss_ratio", Label: "上期" + metricLabels[MetricLossRatio], Type: "percent", Align: "right"},
		{Key: "loss_ratio_change", Label: "赔付率变化", Type: "percent", Align: "right"},
		{Key: "claim_payment_change", Label: "赔款变化", Type: "currency", Align: "right"},
	}

	rows := make([][]string, 0, len(highlights))
	var totalChange float64
	for _, h := range highlights {
		rows = append(rows, []string{
			LabelForDimension(h.Dimension),
			h.Value,
			FormatPercent(h.CurrentLossRatio),
			FormatPercent(h.PreviousLossRatio),
			FormatPoints(h.LossRatioChange),
			FormatYuan(h.ClaimPaymentChange),
		})
		totalChange += h.ClaimPaymentChange
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label:  "合计",
			Values: map[string]string{"claim_payment_change": FormatYuan(totalChange)},
		},
	}
}

// BuildTrendTable renders one row per period with metric and its fitted value.
func BuildTrendTable(title string, points []TrendPoint, metric string, line TrendLine) *TableData {
	if len(points) == 0 {
		return &TableData{Title: title, Columns: []Column{}, Rows: [][]string{}}
	}

	columns := []Column{
		{Key: "period", Label: "周次", Type: "text", Align: "left"},
		{Key: "count", Label: "记录数", Type: "number", Align: "center"},
		{Key: metric, Label: LabelForDimension(metric), Type: metricType(metric), Align: "right"},
		{Key: "trend", Label: "趋势", Type: metricType(metric), Align: "right"},
	}

	rows := make([][]string, 0, len(points))
	for i, p := range points {
		count := 0
		if p.Result != nil {
			count = p.Result.Totals.RecordCount
		}
		fitted := "n/a"
		if line.Valid() {
			fitted = formatMetric(&line.Fitted[i], metric)
		}
		rows = append(rows, []string{
			p.Label,
			fmt.Sprintf("%d", count),
			formatMetric(MetricValue(p.Result, metric), metric),
			fitted,
		})
	}
	return &TableData{Title: title, Columns: columns, Rows: rows}
}

// ============================================================================
// CELL FORMATTING
// ============================================================================

func metricType(metric string) string {
	for _, m := range RatioMetrics {
		if m == metric {
			return "percent"
		}
	}
	switch metric {
	case MetricPolicyCount, MetricClaimCaseCount:
		return "number"
	default:
		return "currency"
	}
}

// formatMetric renders v according to the metric's column type.
func formatMetric(v *float64, metric string) string {
	if v == nil {
		return "n/a"
	}
	switch metricType(metric) {
	case "percent":
		return FormatPercent(v)
	case "number":
		return FormatInt(int64(RoundTo(*v, 0)))
	default:
		return FormatYuan(*v)
	}
}

func formatMetricCell(r *KPIResult, col Column) string {
	return formatMetric(MetricValue(r, col.Key), col.Key)
}

func formatMetricChange(cur, prev *KPIResult, col Column) string {
	c, p := MetricValue(cur, col.Key), MetricValue(prev, col.Key)
	if c == nil || p == nil {
		return "n/a"
	}
	d := *c - *p
	switch col.Type {
	case "percent":
		return FormatPoints(&d)
	case "number":
		return signed(FormatInt(int64(RoundTo(d, 0))), d)
	default:
		return signed(FormatYuan(d), d)
	}
}

func signed(s string, v float64) string {
	if v > 0 {
		return "+" + s
	}
	return s
}
