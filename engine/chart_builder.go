package engine

import (
	"sort"
)

// ============================================================================
// CHART BUILDER: Produces ChartConfig from groups and weekly series
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// BuildChart produces a ChartConfig from measure groups. Two-level groups
// (from a two-dimension groupBy) become one series per second-level key.
func BuildChart(title, chartType string, groups []Group, groupBy []string, aggregation string) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}
	if chartType == "" {
		chartType = "bar"
	}

	config := &ChartConfig{
		ChartType:  chartType,
		Title:      title,
		ShowLegend: true,
		ShowGrid:   chartType != "pie",
	}

	if len(groupBy) > 0 {
		config.XAxis = LabelForDimension(groupBy[0])
	}
	config.YAxis = LabelForAggregation(aggregation)

	if len(groupBy) >= 2 && hasSubGroups(groups) {
		config.Series = buildMultiSeries(groups)
	} else {
		config.Series = buildSingleSeries(groups, title)
	}

	config.Colors = assignColors(len(config.Series))
	return config
}

// BuildKPIChart plots one metric across KPI groups. Groups without a value
// for metric are plotted as gaps.
func BuildKPIChart(title string, groups []KPIGroup, metric string) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{Label: g.Label, Value: roundPtr(MetricValue(g.Result, metric))})
	}

	config := &ChartConfig{
		ChartType:  "bar",
		Title:      title,
		XAxis:      LabelForDimension(groups[0].Dimension),
		YAxis:      LabelForDimension(metric),
		Series:     []ChartSeries{{Name: LabelForDimension(metric), Data: points}},
		ShowLegend: false,
		ShowGrid:   true,
	}
	config.Colors = assignColors(len(config.Series))
	return config
}

// BuildTrendChart plots metric per week, with the fitted trend as a second
// series when the line is valid.
func BuildTrendChart(title string, points []TrendPoint, metric string, line TrendLine) *ChartConfig {
	if len(points) == 0 {
		return nil
	}

	actual := make([]ChartPoint, 0, len(points))
	for _, p := range points {
		actual = append(actual, ChartPoint{Label: p.Label, Value: roundPtr(MetricValue(p.Result, metric))})
	}
	series := []ChartSeries{{Name: LabelForDimension(metric), Data: actual}}

	if line.Valid() {
		fitted := make([]ChartPoint, 0, len(points))
		for i, p := range points {
			fitted = append(fitted, ChartPoint{Label: p.Label, Value: ptr(RoundTo2(line.Fitted[i]))})
		}
		series = append(series, ChartSeries{Name: "趋势线", Data: fitted})
	}

	colors := assignColors(len(series))
	for i := range series {
		series[i].Color = colors[i]
	}
	return &ChartConfig{
		ChartType:  "line",
		Title:      title,
		XAxis:      "周次",
		YAxis:      LabelForDimension(metric),
		Series:     series,
		Colors:     colors,
		ShowLegend: len(series) > 1,
		ShowGrid:   true,
	}
}

// ============================================================================
// SERIES BUILDERS
// ============================================================================

func buildSingleSeries(groups []Group, seriesName string) []ChartSeries {
	if seriesName == "" {
		seriesName = "数值"
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{
			Label: g.Label,
			Value: ptr(RoundTo2(g.Value)),
		})
	}

	return []ChartSeries{{
		Name: seriesName,
		Data: points,
	}}
}

func buildMultiSeries(groups []Group) []ChartSeries {
	subKeySet := make(map[string]bool)
	for _, g := range groups {
		for _, sg := range g.SubGroups {
			subKeySet[sg.Key] = true
		}
	}

	subKeys := make([]string, 0, len(subKeySet))
	for k := range subKeySet {
		subKeys = append(subKeys, k)
	}
	sort.Strings(subKeys)

	seriesMap := make(map[string][]ChartPoint)
	for _, key := range subKeys {
		seriesMap[key] = make([]ChartPoint, 0, len(groups))
	}

	for _, g := range groups {
		sgLookup := make(map[string]float64)
		for _, sg := range g.SubGroups {
			sgLookup[sg.Key] = sg.Value
		}

		for _, key := range subKeys {
			var v *float64
			if val, ok := sgLookup[key]; ok {
				v = ptr(RoundTo2(val))
			}
			seriesMap[key] = append(seriesMap[key], ChartPoint{Label: g.Label, Value: v})
		}
	}

	series := make([]ChartSeries, 0, len(subKeys))
	for i, key := range subKeys {
		series = append(series, ChartSeries{
			Name:  key,
			Data:  seriesMap[key],
			Color: defaultColors[i%len(defaultColors)],
		})
	}

	return series
}

func hasSubGroups(groups []Group) bool {
	for _, g := range groups {
		if len(g.SubGroups) > 0 {
			return true
		}
	}
	return false
}

func assignColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(RoundTo2(*v))
}
