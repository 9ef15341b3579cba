package engine

import (
	"time"

	"github.com/spektr-org/weekpi/internal/logging"
	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// EXECUTOR: Analysis pipeline
// ============================================================================
// Entry point: Analyze(view, req, opts...)
//
// Pipeline:
//   1. Apply filters → SubView
//   2. Pin one policy year, resolve the current week and KPI options
//   3. KPI for the reported scope (increment mode subtracts the previous week)
//   4. Smart comparison against the nearest earlier week
//   5. Weekly trend series + trend line
//   6. Per-dimension breakdown, highlights and top labels
//   7. Text summary
//
// Pure: no I/O besides the injected logger. Zero data copy.
// ============================================================================

// AnalysisRequest selects what Analyze computes.
type AnalysisRequest struct {
	Filters FilterState `json:"filters"`
	KPI     KPIOptions  `json:"kpi"`
	// CurrentWeek overrides the week the comparison starts from. Zero means
	// Filters.SingleModeWeek, else the latest week in the filtered set.
	CurrentWeek int `json:"currentWeek,omitempty"`
	// GroupBy is a dimension key or selector name for the KPI breakdown.
	GroupBy        string `json:"groupBy,omitempty"`
	Incremental    bool   `json:"incremental,omitempty"`
	SkipComparison bool   `json:"skipComparison,omitempty"`
}

// TopLabel is the largest contributor of one dimension.
type TopLabel struct {
	Dimension string  `json:"dimension"`
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
}

// Report is the full result of Analyze.
type Report struct {
	Filters     FilterState `json:"filters"`
	Options     KPIOptions  `json:"options"`
	RecordCount int         `json:"recordCount"`
	CurrentWeek int         `json:"currentWeek"`
	// Span is the week range of the records behind KPI.
	Span        string      `json:"span,omitempty"`

	KPI        *KPIResult  `json:"kpi"`
	Comparison *Comparison `json:"comparison,omitempty"`

	Trend       []TrendPoint `json:"trend,omitempty"`
	TrendMetric string       `json:"trendMetric"`
	TrendLine   TrendLine    `json:"trendLine"`

	GroupBy    string               `json:"groupBy,omitempty"`
	Breakdown  []KPIGroup           `json:"breakdown,omitempty"`
	Highlights []DimensionHighlight `json:"highlights,omitempty"`
	TopMovers  []DimensionHighlight `json:"topMovers,omitempty"`
	TopLabels  []TopLabel           `json:"topLabels,omitempty"`

	Summary string `json:"summary"`
}

// HasData reports whether any record matched the filters.
func (r *Report) HasData() bool {
	return r != nil && r.KPI != nil
}

// Analyze runs the full pipeline over view.
//
// Options:
//   - WithLogger(l): pipeline diagnostics
//   - WithMaxJumpBack(n): comparison lookback limit
//   - WithTrendMetric(m): metric fitted by the trend line
//   - WithTopMovers(n), WithTopDimensions(dims...): highlight selection
func Analyze(view RecordView, req AnalysisRequest, opts ...Option) *Report {
	cfg := applyOptions(opts)
	log := cfg.Logger
	start := time.Now()

	report := &Report{
		Filters:     req.Filters,
		TrendMetric: cfg.TrendMetric,
	}

	// 1. Apply filters → SubView (zero-copy)
	sc := ResolveScope(view, req.Filters, req.KPI.Year, req.CurrentWeek)
	filtered := sc.Matched
	report.RecordCount = filtered.Len()

	if filtered.Len() == 0 {
		report.Options = req.KPI
		report.Summary = BuildTextSummary(report)
		log.Info("no records match filters",
			logging.Int("records", view.Len()),
		)
		return report
	}

	log.Debug("records filtered",
		logging.Int("records", view.Len()),
		logging.Int("matched", filtered.Len()),
	)

	// 2. Policy year, current week + options
	year, currentWeek := sc.Year, sc.Week
	kpiOpts := req.KPI
	if kpiOpts.Year == 0 || len(DistinctYears(filtered)) > 1 {
		kpiOpts.Year = year
	}
	if kpiOpts.CurrentWeekNumber == 0 {
		kpiOpts.CurrentWeekNumber = currentWeek
	}
	report.Options = kpiOpts
	report.CurrentWeek = currentWeek

	// 3-4. KPI + comparison. The comparison runs in the same year, so its
	// current period holds the scope's records when no week is selected.
	if !req.SkipComparison || kpiOpts.Mode == ModeIncrement {
		report.Comparison = CompareWithPrevious(view, req.Filters, currentWeek, kpiOpts, opts...)
	}
	scope := sc.View
	report.RecordCount = scope.Len()
	report.Span = DerivePeriod(scope)

	switch {
	case kpiOpts.Mode == ModeIncrement && report.Comparison.Resolved():
		report.KPI = CalculateIncrement(report.Comparison.CurrentView, report.Comparison.PreviousView, kpiOpts)
	default:
		// Without a previous week the first snapshot is its own increment.
		report.KPI = Calculate(scope, kpiOpts)
	}
	if req.SkipComparison {
		report.Comparison = nil
	}

	// 5. Trend over every (year, week) up to the current one
	trendBase := throughPeriod(ApplyFilters(view, req.Filters, DimWeek), year, currentWeek)
	trendOpts := kpiOpts
	trendOpts.CurrentWeekNumber = 0
	trendOpts.Year = req.KPI.Year
	report.Trend = BuildWeeklySeries(trendBase, trendOpts, req.Incremental || kpiOpts.Mode == ModeIncrement)
	report.TrendLine = CalculateTrendLine(SeriesValues(report.Trend, cfg.TrendMetric))

	// 6. Breakdown, highlights, top labels
	if req.GroupBy != "" {
		dim := req.GroupBy
		if key, ok := schema.Insurance().FilterDimension(dim); ok {
			dim = key
		}
		report.GroupBy = dim
		report.Breakdown = GroupKPIs(scope, dim, kpiOpts)
	}

	if report.Comparison.Resolved() {
		for _, dim := range cfg.TopDimensions {
			report.Highlights = append(report.Highlights,
				BuildHighlights(report.Comparison.CurrentView, report.Comparison.PreviousView, dim)...)
		}
		report.TopMovers = TopMovers(report.Highlights, cfg.TopMovers)
	}

	for _, dim := range cfg.TopDimensions {
		if label, value, ok := TopLabelByDimension(scope, dim, schema.SignedPremium); ok {
			report.TopLabels = append(report.TopLabels, TopLabel{Dimension: dim, Label: label, Value: value})
		}
	}

	// 7. Summary
	report.Summary = BuildTextSummary(report)

	status := "skipped"
	if report.Comparison != nil {
		status = string(report.Comparison.Status)
	}
	log.Info("analysis complete",
		logging.Int("matched", filtered.Len()),
		logging.Bool("unfiltered", req.Filters.IsEmpty()),
		logging.Int("reported", report.RecordCount),
		logging.Int("year", year),
		logging.Int("current_week", currentWeek),
		logging.String("mode", string(kpiOpts.Mode)),
		logging.String("comparison", status),
		logging.Int("trend_points", len(report.Trend)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return report
}

// ============================================================================
// SCOPE: the records a report describes
// ============================================================================

// Scope is the record set behind a report's KPI.
type Scope struct {
	// Matched holds every record the filters keep.
	Matched RecordView
	// View is Matched narrowed to Year and, when the filters select no week,
	// to the period of Week under the filters' view mode.
	View RecordView
	Year int
	Week int
}

// ResolveScope applies f and settles the period a report covers. The year
// is picked by PinYear with year as the preference. The week is currentWeek,
// then f.SingleModeWeek, then the latest week of that year.
func ResolveScope(view RecordView, f FilterState, year, currentWeek int) Scope {
	sc := Scope{Matched: ApplyFilters(view, f), Year: year, Week: currentWeek}
	if sc.Week == 0 && f.SingleModeWeek != nil {
		sc.Week = *f.SingleModeWeek
	}
	if sc.Matched.Len() == 0 {
		sc.View = sc.Matched
		return sc
	}

	sc.View, sc.Year = PinYear(sc.Matched, year, sc.Week)
	if sc.Week == 0 {
		weeks := DistinctWeeks(sc.View)
		sc.Week = weeks[len(weeks)-1]
	}
	// Weekly rows are snapshots: without a week selector only the current
	// period counts, never the sum of every week.
	if !f.HasFilter(DimWeek) {
		sc.View = periodView(sc.View, f.ViewMode, sc.Week)
	}
	return sc
}
