package engine

import (
	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// WEEKPI ENGINE TYPES: render-ready shapes
// ============================================================================
// KPI, comparison and trend types live next to their computations
// (kpi.go, compare.go, trend.go). This file holds the intermediate Group and
// the chart/table/text shapes the builders produce.
// ============================================================================

// ============================================================================
// GROUP: Intermediate computation result
// ============================================================================

// Group represents a grouped/aggregated result.
// Builders convert these into ChartConfig or TableData.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"` // Sub-view for records in this group (zero-copy)
}

// KPIGroup is the KPI of one dimension value.
type KPIGroup struct {
	Dimension string     `json:"dimension"`
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Count     int        `json:"count"`
	Result    *KPIResult `json:"result"`
	View      RecordView `json:"-"`
}

// GroupKPIs calculates a KPI per value of dimension, ordered by signed
// premium (largest first, ties by key).
func GroupKPIs(view RecordView, dimension string, opts KPIOptions) []KPIGroup {
	if view.Len() == 0 {
		return nil
	}
	groups := GroupAndAggregate(view, []string{dimension}, schema.SignedPremium, "sum", "value_desc", 0)
	out := make([]KPIGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, KPIGroup{
			Dimension: dimension,
			Key:       g.Key,
			Label:     g.Label,
			Count:     g.Count,
			Result:    Calculate(g.View, opts),
			View:      g.View,
		})
	}
	return out
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point. Value is nil for a period
// without data so charts render a gap instead of a zero.
type ChartPoint struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "currency", "percent"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// TEXT TYPES
// ============================================================================

// TextData is a single headline value with its period-over-period change.
type TextData struct {
	Metric   string      `json:"metric"`
	Value    string      `json:"value"`
	RawValue *float64    `json:"rawValue"`
	Unit     string      `json:"unit"`
	Period   string      `json:"period"`
	Count    int         `json:"count"`
	Growth   *GrowthData `json:"growth,omitempty"`
}

// GrowthData contains change-over-time metrics.
type GrowthData struct {
	EarliestValue  *float64 `json:"earliestValue"`
	LatestValue    *float64 `json:"latestValue"`
	EarliestPeriod string   `json:"earliestPeriod"`
	LatestPeriod   string   `json:"latestPeriod"`
	ChangeAmount   *float64 `json:"changeAmount"`
	ChangePercent  *float64 `json:"changePercent"`
	Direction      string   `json:"direction"` // "increased", "decreased", "unchanged", "insufficient data"
}
