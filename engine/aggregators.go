package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// AGGREGATORS: Grouping, Aggregation, and Sorting via RecordView
// ============================================================================
// All functions operate on RecordView: zero-copy access to any data source.
// Grouping produces SubViews (index lists into parent view).
// ============================================================================

// GroupAndAggregate is the entry point for measure breakdowns.
// Pipeline: group → aggregate → sort → limit.
func GroupAndAggregate(
	view RecordView,
	groupBy []string,
	measure string,
	aggregation string,
	sortBy string,
	limit int,
) []Group {
	if view.Len() == 0 {
		return nil
	}

	// 1. Group
	var groups []Group
	switch len(groupBy) {
	case 0:
		groups = []Group{{
			Key:   "all",
			Label: "合计",
			View:  view,
		}}
	case 1:
		groups = groupBySingle(view, groupBy[0])
	default:
		groups = groupByMulti(view, groupBy)
	}

	// 2. Aggregate
	for i := range groups {
		aggregateGroup(&groups[i], measure, aggregation)
		for j := range groups[i].SubGroups {
			aggregateGroup(&groups[i].SubGroups[j], measure, aggregation)
		}
	}

	// 3. Sort
	SortGroups(groups, sortBy)
	for i := range groups {
		SortGroups(groups[i].SubGroups, sortBy)
	}

	// 4. Limit
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	return groups
}

// ============================================================================
// GROUPING
// ============================================================================

func groupBySingle(view RecordView, dimension string) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := view.Dimension(i, dimension)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		label := key
		if label == "" {
			label = "(空)"
		}
		groups = append(groups, Group{
			Key:   key,
			Label: label,
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

func groupByMulti(view RecordView, dimensions []string) []Group {
	primaryGroups := groupBySingle(view, dimensions[0])
	for i := range primaryGroups {
		primaryGroups[i].SubGroups = groupBySingle(primaryGroups[i].View, dimensions[1])
	}
	return primaryGroups
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregateGroup(group *Group, measure string, aggregation string) {
	group.Count = group.View.Len()
	if group.Count == 0 {
		return
	}

	switch aggregation {
	case "count":
		group.Value = float64(group.Count)
	case "avg":
		group.Value = AvgMeasure(group.View, measure)
	case "max":
		group.Value = MaxMeasure(group.View, measure)
	case "min":
		group.Value = MinMeasure(group.View, measure)
	default:
		group.Value = SumMeasure(group.View, measure)
	}
}

// SumMeasure sums a named measure across a view.
func SumMeasure(view RecordView, measure string) float64 {
	var total float64
	for i := 0; i < view.Len(); i++ {
		total += view.Measure(i, measure)
	}
	return total
}

// AvgMeasure computes average of a named measure.
func AvgMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	return SumMeasure(view, measure) / float64(n)
}

// MaxMeasure returns the largest value of a named measure.
func MaxMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	m := math.Inf(-1)
	for i := 0; i < n; i++ {
		if v := view.Measure(i, measure); v > m {
			m = v
		}
	}
	return m
}

// MinMeasure returns the smallest value of a named measure.
func MinMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	m := math.Inf(1)
	for i := 0; i < n; i++ {
		if v := view.Measure(i, measure); v < m {
			m = v
		}
	}
	return m
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts aggregate groups by the specified sort mode. Ties keep the
// label order so output is stable across runs.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.SliceStable(groups, func(i, j int) bool {
			if groups[i].Value != groups[j].Value {
				return groups[i].Value > groups[j].Value
			}
			return groups[i].Key < groups[j].Key
		})
	case "value_asc":
		sort.SliceStable(groups, func(i, j int) bool {
			if groups[i].Value != groups[j].Value {
				return groups[i].Value < groups[j].Value
			}
			return groups[i].Key < groups[j].Key
		})
	case "chronological":
		sort.SliceStable(groups, func(i, j int) bool { return numericKey(groups[i].Key) < numericKey(groups[j].Key) })
	case "label_asc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) < strings.ToLower(groups[j].Key) })
	case "label_desc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) > strings.ToLower(groups[j].Key) })
	default:
		// preserve grouping order
	}
}

func numericKey(key string) int {
	n, err := strconv.Atoi(key)
	if err != nil {
		return math.MaxInt32
	}
	return n
}

// UniqueValues returns distinct non-empty values for a dimension, in order
// of first occurrence.
func UniqueValues(view RecordView, dimension string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := view.Dimension(i, dimension)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// RoundTo rounds half away from zero to the given number of decimal places.
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return RoundTo(v, 2)
}

// FormatYuan formats an amount in yuan with comma separators.
func FormatYuan(amount float64) string {
	return "¥" + groupThousands(decimal.NewFromFloat(amount).StringFixed(2))
}

// FormatWan formats a yuan amount in 万元 with two decimals.
func FormatWan(amount float64) string {
	return groupThousands(decimal.NewFromFloat(amount).Shift(-4).StringFixed(2)) + " 万元"
}

// FormatPercent renders a nullable ratio. nil renders as "n/a", never as zero.
func FormatPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + "%"
}

// FormatPoints renders a nullable percentage-point delta with its sign.
func FormatPoints(v *float64) string {
	if v == nil {
		return "n/a"
	}
	s := decimal.NewFromFloat(*v).StringFixed(2)
	if *v > 0 {
		s = "+" + s
	}
	return s + "pp"
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	return groupThousands(strconv.FormatInt(n, 10))
}

// groupThousands inserts commas into the integer part of a decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

// LabelForDimension returns the display name of a dimension or measure key.
func LabelForDimension(key string) string {
	cfg := schema.Insurance()
	for _, d := range cfg.Dimensions {
		if d.Key == key {
			return d.DisplayName
		}
	}
	for _, m := range cfg.Measures {
		if m.Key == key {
			return m.DisplayName
		}
	}
	if label, ok := metricLabels[key]; ok {
		return label
	}
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// Aggregations lists the aggregation names GroupAndAggregate accepts.
var Aggregations = []string{"sum", "count", "avg", "max", "min"}

// SortModes lists the orders SortGroups accepts.
var SortModes = []string{"value_desc", "value_asc", "label_asc", "label_desc", "chronological"}

func measureMeta(key string) (schema.MeasureMeta, bool) {
	for _, m := range schema.Insurance().Measures {
		if m.Key == key {
			return m, true
		}
	}
	return schema.MeasureMeta{}, false
}

// MeasureAggregations returns the aggregations measure supports, nil for an
// unknown measure.
func MeasureAggregations(measure string) []string {
	m, ok := measureMeta(measure)
	if !ok {
		return nil
	}
	return m.Aggregations
}

// LabelForAggregation returns a human-readable label for an aggregation type.
func LabelForAggregation(aggregation string) string {
	switch aggregation {
	case "sum":
		return "合计"
	case "count":
		return "记录数"
	case "avg":
		return "平均"
	case "max":
		return "最大"
	case "min":
		return "最小"
	default:
		return "数值"
	}
}

func formatWeek(year, week int) string {
	if year == 0 {
		return fmt.Sprintf("W%02d", week)
	}
	return fmt.Sprintf("%d-W%02d", year, week)
}
