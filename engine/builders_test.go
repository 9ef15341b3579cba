package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/weekpi/schema"
)

func resolvedReport(t *testing.T) *Report {
	t.Helper()
	req := AnalysisRequest{
		Filters: FilterState{ViewMode: ViewSingle, SingleModeWeek: Week(9)},
		GroupBy: DimOrganization,
	}
	r := Analyze(weeklyView(), req, WithMaxJumpBack(6))
	require.True(t, r.Comparison.Resolved())
	return r
}

// ============================================================================
// TABLES
// ============================================================================

func TestBuildKPITable(t *testing.T) {
	r := resolvedReport(t)
	table := BuildKPITable("机构", r.Breakdown, r.KPI)

	require.Len(t, table.Rows, 2)
	assert.Len(t, table.Columns, len(kpiColumns)+2)
	assert.Equal(t, "三级机构", table.Columns[0].Label)
	for _, row := range table.Rows {
		assert.Len(t, row, len(table.Columns))
	}
	require.NotNil(t, table.Summary)
	assert.Equal(t, "20.00%", table.Summary.Values[MetricLossRatio])
	assert.Equal(t, "¥2,000.00", table.Summary.Values[MetricSignedPremium])
	assert.Equal(t, "2", table.Summary.Values["count"])
}

func TestBuildKPITable_NilRatioRendersNA(t *testing.T) {
	zero := rec(1, "天府", "主全", 0, 0)
	zero.PolicyCount, zero.ClaimCaseCount = 0, 0
	groups := GroupKPIs(BindRecords([]schema.Record{zero}), DimOrganization, KPIOptions{})
	table := BuildKPITable("", groups, nil)

	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Summary)
	for i, col := range table.Columns {
		if col.Type == "percent" {
			assert.Equal(t, "n/a", table.Rows[0][i], col.Key)
		}
	}
}

func TestBuildKPITable_Empty(t *testing.T) {
	table := BuildKPITable("x", nil, nil)
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.Columns)
}

func TestBuildComparisonTable(t *testing.T) {
	r := resolvedReport(t)
	table := BuildComparisonTable("环比", r.Comparison)

	require.Len(t, table.Columns, 4)
	assert.Equal(t, "W09", table.Columns[1].Label)
	assert.Equal(t, "W03", table.Columns[2].Label)

	var lossRow []string
	for _, row := range table.Rows {
		if row[0] == metricLabels[MetricLossRatio] {
			lossRow = row
		}
	}
	require.NotNil(t, lossRow)
	assert.Equal(t, []string{"满期赔付率", "20.00%", "50.00%", "-30.00pp"}, lossRow)
}

func TestBuildComparisonTable_NotFound(t *testing.T) {
	c := CompareWithPrevious(weeklyView(), FilterState{}, 9, KPIOptions{})
	table := BuildComparisonTable("环比", c)

	assert.Len(t, table.Columns, 2)
	require.NotNil(t, table.Summary)
	assert.Equal(t, c.Reason, table.Summary.Values["current"])

	empty := BuildComparisonTable("环比", nil)
	assert.Empty(t, empty.Rows)
}

func TestBuildHighlightTable(t *testing.T) {
	r := resolvedReport(t)
	table := BuildHighlightTable("变化", r.TopMovers)

	require.Len(t, table.Rows, len(r.TopMovers))
	assert.Equal(t, "终端来源", table.Rows[0][0])
	assert.Equal(t, "¥-600.00", table.Rows[0][5])
	require.NotNil(t, table.Summary)
}

func TestBuildTrendTable(t *testing.T) {
	r := resolvedReport(t)
	table := BuildTrendTable("趋势", r.Trend, MetricLossRatio, r.TrendLine)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"2025-W01", "2", "40.00%"}, table.Rows[0][:3])
	assert.NotEqual(t, "n/a", table.Rows[0][3])

	noLine := BuildTrendTable("趋势", r.Trend[:1], MetricLossRatio, CalculateTrendLine(nil))
	assert.Equal(t, "n/a", noLine.Rows[0][3])
}

// ============================================================================
// CHARTS
// ============================================================================

func TestBuildTrendChart(t *testing.T) {
	r := resolvedReport(t)
	chart := BuildTrendChart("赔付率", r.Trend, MetricLossRatio, r.TrendLine)

	require.NotNil(t, chart)
	assert.Equal(t, "line", chart.ChartType)
	require.Len(t, chart.Series, 2)
	assert.True(t, chart.ShowLegend)
	require.Len(t, chart.Series[0].Data, 3)
	assert.InDelta(t, 50, *chart.Series[0].Data[1].Value, 1e-9)
	assert.Len(t, chart.Series[1].Data, 3)

	assert.Nil(t, BuildTrendChart("", nil, MetricLossRatio, TrendLine{}))
}

func TestBuildTrendChart_GapsForMissingValues(t *testing.T) {
	points := []TrendPoint{{Label: "W01"}, {Label: "W02", Result: &KPIResult{LossRatio: ptr(33.333)}}}
	chart := BuildTrendChart("", points, MetricLossRatio, CalculateTrendLine(SeriesValues(points, MetricLossRatio)))

	require.Len(t, chart.Series, 1, "one value is not enough for a line")
	assert.Nil(t, chart.Series[0].Data[0].Value)
	assert.InDelta(t, 33.33, *chart.Series[0].Data[1].Value, 1e-9)
}

func TestBuildKPIChart(t *testing.T) {
	groups := GroupKPIs(weeklyView(), DimCoverage, KPIOptions{})
	chart := BuildKPIChart("险别赔付率", groups, MetricLossRatio)

	require.NotNil(t, chart)
	assert.Equal(t, "险别组合", chart.XAxis)
	require.Len(t, chart.Series, 1)
	assert.Len(t, chart.Series[0].Data, 3)
	assert.Nil(t, BuildKPIChart("", nil, MetricLossRatio))
}

func TestBuildChart_MultiSeriesSorted(t *testing.T) {
	groupBy := []string{DimOrganization, DimCoverage}
	groups := GroupAndAggregate(weeklyView(), groupBy, schema.ReportedClaimPayment, "sum", "label_asc", 0)
	chart := BuildChart("赔款", "", groups, groupBy, "sum")

	require.NotNil(t, chart)
	assert.Equal(t, "bar", chart.ChartType)
	require.Len(t, chart.Series, 3)
	assert.Equal(t, []string{"主全", "交三", "单交"},
		[]string{chart.Series[0].Name, chart.Series[1].Name, chart.Series[2].Name})
	assert.Len(t, chart.Colors, 3)

	assert.Nil(t, BuildChart("", "pie", nil, nil, "sum"))
}

func TestBuildGroupTable_TwoLevel(t *testing.T) {
	groupBy := []string{DimOrganization, DimCoverage}
	groups := GroupAndAggregate(weeklyView(), groupBy, schema.ReportedClaimPayment, "sum", "value_desc", 0)
	table := BuildGroupTable("赔款", groups, groupBy, schema.ReportedClaimPayment, "sum")

	require.Len(t, table.Columns, 4)
	assert.Equal(t, "三级机构", table.Columns[0].Label)
	assert.Equal(t, "险别组合", table.Columns[1].Label)
	assert.Equal(t, "已报告赔款（合计）", table.Columns[2].Label)
	assert.Equal(t, "currency", table.Columns[2].Type)

	// 天府 1200 (主全), 高新 1000 (交三 800, 单交 200)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"天府", "主全", "¥1,200.00", "3"}, table.Rows[0])
	assert.Equal(t, []string{"高新", "交三", "¥800.00", "2"}, table.Rows[1])
	assert.Equal(t, "¥2,200.00", table.Summary.Values["value"])
	assert.Equal(t, "6", table.Summary.Values["count"])
}

func TestBuildGroupTable_NonAdditiveSummary(t *testing.T) {
	groups := GroupAndAggregate(weeklyView(), []string{DimCoverage}, schema.PolicyCount, "avg", "label_asc", 0)
	table := BuildGroupTable("", groups, []string{DimCoverage}, schema.PolicyCount, "avg")

	require.Len(t, table.Columns, 3)
	assert.Equal(t, "number", table.Columns[1].Type)
	assert.Equal(t, "10.00", table.Rows[0][1])
	_, ok := table.Summary.Values["value"]
	assert.False(t, ok, "averages do not add up")

	assert.Empty(t, BuildGroupTable("", nil, nil, schema.PolicyCount, "sum").Columns)
}

func TestMeasureAggregations(t *testing.T) {
	assert.Contains(t, MeasureAggregations(schema.SignedPremium), "max")
	assert.Equal(t, []string{"count"}, MeasureAggregations(schema.RecordCount))
	assert.Nil(t, MeasureAggregations("nonsense"))
}

// ============================================================================
// TEXT
// ============================================================================

func TestBuildGrowthText(t *testing.T) {
	r := resolvedReport(t)
	td := BuildGrowthText(r.Trend, MetricLossRatio)

	require.NotNil(t, td.Growth)
	assert.Equal(t, "decreased", td.Growth.Direction)
	assert.InDelta(t, -20, *td.Growth.ChangeAmount, 1e-9)
	assert.InDelta(t, -50, *td.Growth.ChangePercent, 1e-9)
	assert.Equal(t, "↓ 50.0%", td.Value)
	assert.Equal(t, "2025-W01 – 2025-W09", td.Period)
	assert.Equal(t, 6, td.Count)
}

func TestBuildGrowthText_InsufficientData(t *testing.T) {
	points := BuildWeeklySeries(ApplyFilters(weeklyView(), FilterState{Weeks: []int{3}}), KPIOptions{}, false)
	td := BuildGrowthText(points, MetricLossRatio)

	require.NotNil(t, td.Growth)
	assert.Equal(t, "insufficient data", td.Growth.Direction)
	assert.Equal(t, "50.00%", td.Value)

	empty := BuildGrowthText(nil, MetricLossRatio)
	assert.Nil(t, empty.Growth)
}

func TestBuildHeadline(t *testing.T) {
	r := resolvedReport(t)
	td := BuildHeadline(r, MetricSignedPremium)
	assert.Equal(t, "¥2,000.00", td.Value)
	assert.Equal(t, "元", td.Unit)
	require.NotNil(t, td.Growth)
	assert.Equal(t, "unchanged", td.Growth.Direction)

	assert.Equal(t, "无数据", BuildHeadline(nil, MetricLossRatio).Value)
}

func TestResolvePlaceholders(t *testing.T) {
	r := resolvedReport(t)

	got := ResolvePlaceholders("{period} 赔付率 {loss_ratio}（{loss_ratio_change}）{unknown}", r)
	assert.Equal(t, "2025 年第 9 周 赔付率 20.00%（-30.00pp）", got)

	got = ResolvePlaceholders("对比第 {previous_week} 周，{comparison_status}", r)
	assert.Equal(t, "对比第 3 周，resolved", got)

	assert.Equal(t, "2025-W09 2 条", ResolvePlaceholders("{span} {records} 条", r))

	assert.Equal(t, r.Summary, ResolvePlaceholders("", r))
}

func TestDerivePeriod(t *testing.T) {
	assert.Equal(t, "2025-W01 – 2025-W09", DerivePeriod(weeklyView()))
	assert.Equal(t, "2025-W03", DerivePeriod(ApplyFilters(weeklyView(), FilterState{Weeks: []int{3}})))
	assert.Equal(t, "无数据", DerivePeriod(BindRecords(nil)))
}

// ============================================================================
// FORMATTING
// ============================================================================

func TestFormatting(t *testing.T) {
	assert.Equal(t, "¥1,234,567.89", FormatYuan(1234567.891))
	assert.Equal(t, "¥-1,000.00", FormatYuan(-1000))
	assert.Equal(t, "1,234.57 万元", FormatWan(12345678))
	assert.Equal(t, "n/a", FormatPercent(nil))
	assert.Equal(t, "12.35%", FormatPercent(ptr(12.345)))
	assert.Equal(t, "+1.50pp", FormatPoints(ptr(1.5)))
	assert.Equal(t, "-0.25pp", FormatPoints(ptr(-0.25)))
	assert.Equal(t, "1,000,000", FormatInt(1000000))
	assert.InDelta(t, 2.35, RoundTo2(2.345), 1e-9)
}
