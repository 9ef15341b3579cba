package engine

import (
	"sort"
)

// ============================================================================
// TREND: Weekly series + least-squares trend line
// ============================================================================

// TrendPoint is the KPI of one (year, week) period.
type TrendPoint struct {
	Year   int        `json:"year"`
	Week   int        `json:"week"`
	Label  string     `json:"label"`
	Result *KPIResult `json:"result"`
}

// TrendLine is an ordinary least-squares fit over period index. Fitted has
// one value per input index; it is empty when fewer than two non-null
// points exist.
type TrendLine struct {
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	Points    int       `json:"points"`
	Fitted    []float64 `json:"fitted,omitempty"`
}

// Valid reports whether the line was fitted.
func (t TrendLine) Valid() bool { return len(t.Fitted) > 0 }

// BuildWeeklySeries folds view once per (year, week) period, ordered by
// year then week. With incremental set, every period after the first is
// reported as an increment over the one before it.
func BuildWeeklySeries(view RecordView, opts KPIOptions, incremental bool) []TrendPoint {
	type period struct{ year, week int }

	buckets := make(map[period][]int)
	var order []period
	for i := 0; i < view.Len(); i++ {
		p := period{measureInt(view, i, DimYear), measureInt(view, i, DimWeek)}
		if _, ok := buckets[p]; !ok {
			order = append(order, p)
		}
		buckets[p] = append(buckets[p], i)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].week < order[j].week
	})

	points := make([]TrendPoint, 0, len(order))
	var prev RecordView
	prevYear := 0
	for _, p := range order {
		// Cumulative snapshots restart each policy year.
		if p.year != prevYear {
			prev = nil
		}
		cur := newSubView(view, buckets[p])
		pointOpts := opts
		pointOpts.CurrentWeekNumber = p.week
		if pointOpts.Year == 0 {
			pointOpts.Year = p.year
		}

		var res *KPIResult
		if incremental && prev != nil {
			res = CalculateIncrement(cur, prev, pointOpts)
		} else {
			res = Calculate(cur, pointOpts)
		}
		points = append(points, TrendPoint{
			Year:   p.year,
			Week:   p.week,
			Label:  formatWeek(p.year, p.week),
			Result: res,
		})
		prev, prevYear = cur, p.year
	}
	return points
}

// SeriesValues extracts metric from each point.
func SeriesValues(points []TrendPoint, metric string) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		out[i] = MetricValue(p.Result, metric)
	}
	return out
}

// CalculateTrendLine fits y = intercept + slope·x over x = 0..len(values)-1,
// skipping nil entries, and returns a fitted value for every index.
func CalculateTrendLine(values []*float64) TrendLine {
	var n, sumX, sumY float64
	for i, v := range values {
		if v == nil {
			continue
		}
		n++
		sumX += float64(i)
		sumY += *v
	}
	if n < 2 {
		return TrendLine{Points: int(n)}
	}

	meanX, meanY := sumX/n, sumY/n
	var sxy, sxx float64
	for i, v := range values {
		if v == nil {
			continue
		}
		dx := float64(i) - meanX
		sxy += dx * (*v - meanY)
		sxx += dx * dx
	}
	if sxx == 0 {
		return TrendLine{Points: int(n)}
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX
	fitted := make([]float64, len(values))
	for i := range values {
		fitted[i] = intercept + slope*float64(i)
	}
	return TrendLine{Slope: slope, Intercept: intercept, Points: int(n), Fitted: fitted}
}

// ============================================================================
// TOP LABELS
// ============================================================================

// PickTopLabel returns the label with the largest value. Ties resolve to
// the lexicographically smallest label, so the answer never depends on map
// iteration order. ok is false for an empty map.
func PickTopLabel(values map[string]float64) (label string, ok bool) {
	var best float64
	for k, v := range values {
		if !ok || v > best || (v == best && k < label) {
			label, best, ok = k, v, true
		}
	}
	return label, ok
}

// TopLabelByDimension sums measure per non-empty dimension value and returns
// the top label with its total.
func TopLabelByDimension(view RecordView, dimension, measure string) (string, float64, bool) {
	sums := make(map[string]float64)
	for i := 0; i < view.Len(); i++ {
		if key := view.Dimension(i, dimension); key != "" {
			sums[key] += view.Measure(i, measure)
		}
	}
	label, ok := PickTopLabel(sums)
	return label, sums[label], ok
}
