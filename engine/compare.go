package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/spektr-org/weekpi/internal/logging"
)

// ============================================================================
// SMART COMPARISON: nearest earlier week with data, bounded lookback
// ============================================================================
// current week → search previous week → resolved | not_found
//
// The search runs over the weeks present after every non-week filter is
// applied, so a missing week is skipped rather than compared as zero. A gap
// wider than maxJumpBack is not_found: the comparison would be valid
// arithmetic but misleading. not_found is a state, never an error.
//
// Periods are (policy year, week). Week numbers restart every year, so a
// comparison never pools or crosses years: see PinYear.
// ============================================================================

// ComparisonStatus is the outcome of a comparison search.
type ComparisonStatus string

const (
	StatusResolved ComparisonStatus = "resolved"
	StatusNotFound ComparisonStatus = "not_found"
)

// Change is an absolute difference with its relative size. Percent is nil
// when the previous value is not positive.
type Change struct {
	Current  float64  `json:"current"`
	Previous float64  `json:"previous"`
	Amount   float64  `json:"amount"`
	Percent  *float64 `json:"percent"`
}

// Deltas holds current − previous for every KPI. Ratio deltas are in
// percentage points and nil when either side has no value.
type Deltas struct {
	LossRatio               *float64 `json:"lossRatio"`
	ClaimFrequency          *float64 `json:"claimFrequency"`
	ContributionMarginRatio *float64 `json:"contributionMarginRatio"`
	VariableCostRatio       *float64 `json:"variableCostRatio"`
	ExpenseRatio            *float64 `json:"expenseRatio"`
	CombinedRatio           *float64 `json:"combinedRatio"`
	AchievementRatio        *float64 `json:"achievementRatio,omitempty"`
	AvgClaimSeverity        *float64 `json:"avgClaimSeverity"`

	SignedPremium        Change `json:"signedPremium"`
	MaturedPremium       Change `json:"maturedPremium"`
	ReportedClaimPayment Change `json:"reportedClaimPayment"`
	PolicyCount          Change `json:"policyCount"`
	ClaimCaseCount       Change `json:"claimCaseCount"`
}

// Comparison is the result of CompareWithPrevious.
type Comparison struct {
	Status       ComparisonStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Year         int              `json:"year,omitempty"`
	CurrentWeek  int              `json:"currentWeek"`
	PreviousWeek int              `json:"previousWeek,omitempty"`
	Gap          int              `json:"gap,omitempty"`
	MaxJumpBack  int              `json:"maxJumpBack"`

	Current  *KPIResult `json:"current"`
	Previous *KPIResult `json:"previous,omitempty"`
	Deltas   *Deltas    `json:"deltas,omitempty"`

	CurrentView  RecordView `json:"-"`
	PreviousView RecordView `json:"-"`
}

// Resolved reports whether a previous period was found.
func (c *Comparison) Resolved() bool {
	return c != nil && c.Status == StatusResolved
}

// FindPreviousWeek returns the greatest week in weeks strictly below current
// and the gap to it. ok is false when there is no earlier week or the gap
// exceeds maxJumpBack. weeks need not be sorted.
func FindPreviousWeek(weeks []int, current, maxJumpBack int) (week int, gap int, ok bool) {
	found := false
	for _, w := range weeks {
		if w < current && (!found || w > week) {
			week = w
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	gap = current - week
	if gap > maxJumpBack {
		return week, gap, false
	}
	return week, gap, true
}

// CompareWithPrevious computes the KPI for currentWeek and for the nearest
// earlier week with data under the same filters and KPI options. When the
// filtered records span several policy years the comparison runs inside the
// year PinYear picks for opts.Year and currentWeek.
func CompareWithPrevious(view RecordView, f FilterState, currentWeek int, opts KPIOptions, options ...Option) *Comparison {
	cfg := applyOptions(options)
	log := cfg.Logger

	// 1. Everything but the week selection, inside one policy year
	base, year := PinYear(ApplyFilters(view, f, DimWeek), opts.Year, currentWeek)

	c := &Comparison{
		Year:        year,
		CurrentWeek: currentWeek,
		MaxJumpBack: cfg.MaxJumpBack,
	}
	c.CurrentView = periodView(base, f.ViewMode, currentWeek)
	c.Current = Calculate(c.CurrentView, opts)

	// 2-3. Distinct weeks → greatest below current
	weeks := DistinctWeeks(base)
	prev, gap, ok := FindPreviousWeek(weeks, currentWeek, cfg.MaxJumpBack)

	// 4. Bounded lookback
	switch {
	case !containsInt(weeks, currentWeek):
		// Nothing to compare from: an empty week is not a zero week.
		c.Status = StatusNotFound
		c.Reason = fmt.Sprintf("no data in week %d", currentWeek)
	case !ok && gap == 0:
		c.Status = StatusNotFound
		c.Reason = fmt.Sprintf("no data before week %d", currentWeek)
	case !ok:
		c.Status = StatusNotFound
		c.PreviousWeek = prev
		c.Gap = gap
		c.Reason = fmt.Sprintf("nearest earlier week %d is %d weeks back, beyond the limit of %d", prev, gap, cfg.MaxJumpBack)
	default:
		c.Status = StatusResolved
		c.PreviousWeek = prev
		c.Gap = gap
		c.PreviousView = periodView(base, f.ViewMode, prev)
		c.Previous = Calculate(c.PreviousView, opts)
		c.Deltas = ComputeDeltas(c.Current, c.Previous)
	}

	log.Debug("comparison searched",
		logging.Int("year", year),
		logging.Int("current_week", currentWeek),
		logging.Any("weeks", weeks),
		logging.String("status", string(c.Status)),
		logging.Int("previous_week", c.PreviousWeek),
		logging.Int("gap", c.Gap),
	)
	return c
}

// periodView restricts base to one period using the same week semantics as
// ApplyFilters for the given view mode.
func periodView(base RecordView, mode ViewMode, week int) RecordView {
	return ApplyFilters(base, FilterState{ViewMode: mode, SingleModeWeek: Week(week)})
}

// PinYear narrows view to one policy year. A view holding a single year is
// returned as is with that year. Otherwise year wins when present, then the
// latest year with data in week, then the latest year.
func PinYear(view RecordView, year, week int) (RecordView, int) {
	years := DistinctYears(view)
	switch len(years) {
	case 0:
		return view, year
	case 1:
		return view, years[0]
	}

	pick := years[len(years)-1]
	if containsInt(years, year) {
		pick = year
	} else if week > 0 {
		withWeek := DistinctYears(ApplyFilters(view, FilterState{Weeks: []int{week}}))
		if len(withWeek) > 0 {
			pick = withWeek[len(withWeek)-1]
		}
	}
	return ApplyFilters(view, FilterState{Years: []int{pick}}), pick
}

// throughPeriod keeps every record at or before (year, week): earlier years
// whole, and weeks up to week within year.
func throughPeriod(view RecordView, year, week int) RecordView {
	var idx []int
	for i := 0; i < view.Len(); i++ {
		y := measureInt(view, i, DimYear)
		if y < year || (y == year && measureInt(view, i, DimWeek) <= week) {
			idx = append(idx, i)
		}
	}
	return newSubView(view, idx)
}

func containsInt(items []int, v int) bool {
	for _, x := range items {
		if x == v {
			return true
		}
	}
	return false
}

// ComputeDeltas returns current − previous for every KPI. Either side may be
// nil, in which case every delta that needs it is nil or zero.
func ComputeDeltas(current, previous *KPIResult) *Deltas {
	var cur, prev KPIResult
	if current != nil {
		cur = *current
	}
	if previous != nil {
		prev = *previous
	}

	return &Deltas{
		LossRatio:               pointDelta(cur.LossRatio, prev.LossRatio),
		ClaimFrequency:          pointDelta(cur.ClaimFrequency, prev.ClaimFrequency),
		ContributionMarginRatio: pointDelta(cur.ContributionMarginRatio, prev.ContributionMarginRatio),
		VariableCostRatio:       pointDelta(cur.VariableCostRatio, prev.VariableCostRatio),
		ExpenseRatio:            pointDelta(cur.ExpenseRatio, prev.ExpenseRatio),
		CombinedRatio:           pointDelta(cur.CombinedRatio, prev.CombinedRatio),
		AchievementRatio:        pointDelta(cur.AchievementRatio, prev.AchievementRatio),
		AvgClaimSeverity:        pointDelta(cur.AvgClaimSeverity, prev.AvgClaimSeverity),

		SignedPremium:        change(cur.Totals.SignedPremium, prev.Totals.SignedPremium),
		MaturedPremium:       change(cur.Totals.MaturedPremium, prev.Totals.MaturedPremium),
		ReportedClaimPayment: change(cur.Totals.ReportedClaimPayment, prev.Totals.ReportedClaimPayment),
		PolicyCount:          change(float64(cur.Totals.PolicyCount), float64(prev.Totals.PolicyCount)),
		ClaimCaseCount:       change(float64(cur.Totals.ClaimCaseCount), float64(prev.Totals.ClaimCaseCount)),
	}
}

func pointDelta(cur, prev *float64) *float64 {
	if cur == nil || prev == nil {
		return nil
	}
	return ptr(*cur - *prev)
}

func change(cur, prev float64) Change {
	c := Change{Current: cur, Previous: prev, Amount: cur - prev}
	c.Percent = ratio(c.Amount, prev, 100)
	return c
}

// ============================================================================
// HIGHLIGHTS: per-dimension-value movers
// ============================================================================

// DimensionHighlight compares one dimension value across two periods.
type DimensionHighlight struct {
	Dimension            string   `json:"dimension"`
	Value                string   `json:"value"`
	CurrentLossRatio     *float64 `json:"currentLossRatio"`
	PreviousLossRatio    *float64 `json:"previousLossRatio"`
	LossRatioChange      *float64 `json:"lossRatioChange"`
	CurrentClaimPayment  float64  `json:"currentClaimPayment"`
	PreviousClaimPayment float64  `json:"previousClaimPayment"`
	ClaimPaymentChange   float64  `json:"claimPaymentChange"`
}

// BuildHighlights groups both periods by dimension and compares each value
// present in either. Output is ordered by value.
func BuildHighlights(current, previous RecordView, dimension string) []DimensionHighlight {
	curGroups := totalsByValue(current, dimension)
	prevGroups := totalsByValue(previous, dimension)

	labels := make([]string, 0, len(curGroups)+len(prevGroups))
	for k := range curGroups {
		labels = append(labels, k)
	}
	for k := range prevGroups {
		if _, ok := curGroups[k]; !ok {
			labels = append(labels, k)
		}
	}
	sort.Strings(labels)

	out := make([]DimensionHighlight, 0, len(labels))
	for _, label := range labels {
		cur, prev := curGroups[label], prevGroups[label]
		h := DimensionHighlight{
			Dimension:            dimension,
			Value:                label,
			CurrentLossRatio:     ratio(cur.ReportedClaimPayment, cur.MaturedPremium, 100),
			PreviousLossRatio:    ratio(prev.ReportedClaimPayment, prev.MaturedPremium, 100),
			CurrentClaimPayment:  cur.ReportedClaimPayment,
			PreviousClaimPayment: prev.ReportedClaimPayment,
			ClaimPaymentChange:   cur.ReportedClaimPayment - prev.ReportedClaimPayment,
		}
		h.LossRatioChange = pointDelta(h.CurrentLossRatio, h.PreviousLossRatio)
		out = append(out, h)
	}
	return out
}

// TopMovers returns up to n highlights ordered by absolute claim-payment
// change, largest first, ties by value. n ≤ 0 returns all.
func TopMovers(highlights []DimensionHighlight, n int) []DimensionHighlight {
	out := make([]DimensionHighlight, len(highlights))
	copy(out, highlights)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := math.Abs(out[i].ClaimPaymentChange), math.Abs(out[j].ClaimPaymentChange)
		if a != b {
			return a > b
		}
		return out[i].Value < out[j].Value
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func totalsByValue(view RecordView, dimension string) map[string]Totals {
	out := make(map[string]Totals)
	if view == nil {
		return out
	}
	for _, g := range groupBySingle(view, dimension) {
		out[g.Key] = AggregateTotals(g.View)
	}
	return out
}
