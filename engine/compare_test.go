package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spektr-org/weekpi/internal/logging"
)

// ============================================================================
// FIND PREVIOUS WEEK
// ============================================================================

func TestFindPreviousWeek(t *testing.T) {
	tests := []struct {
		name        string
		weeks       []int
		current     int
		maxJumpBack int
		wantWeek    int
		wantGap     int
		wantOK      bool
	}{
		{"adjacent", []int{1, 2, 3}, 3, 5, 2, 1, true},
		{"skips missing weeks", []int{1, 3, 9}, 5, 5, 3, 2, true},
		{"gap beyond limit", []int{1, 3, 9}, 9, 5, 3, 6, false},
		{"gap at limit", []int{1, 3, 9}, 9, 6, 3, 6, true},
		{"unsorted input", []int{9, 1, 3}, 9, 6, 3, 6, true},
		{"nothing earlier", []int{3, 9}, 3, 5, 0, 0, false},
		{"empty", nil, 3, 5, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, gap, ok := FindPreviousWeek(tt.weeks, tt.current, tt.maxJumpBack)
			assert.Equal(t, tt.wantWeek, w)
			assert.Equal(t, tt.wantGap, gap)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

// ============================================================================
// COMPARE WITH PREVIOUS
// ============================================================================

func TestCompareWithPrevious_GapBeyondDefaultIsNotFound(t *testing.T) {
	f := FilterState{ViewMode: ViewSingle, SingleModeWeek: Week(9)}
	c := CompareWithPrevious(weeklyView(), f, 9, KPIOptions{})

	require.NotNil(t, c)
	assert.Equal(t, StatusNotFound, c.Status)
	assert.False(t, c.Resolved())
	assert.Equal(t, DefaultMaxJumpBack, c.MaxJumpBack)
	assert.Equal(t, 3, c.PreviousWeek)
	assert.Equal(t, 6, c.Gap)
	assert.NotEmpty(t, c.Reason)
	assert.Nil(t, c.Previous)
	assert.Nil(t, c.Deltas)
	require.NotNil(t, c.Current)
	assert.InDelta(t, 20, *c.Current.LossRatio, 1e-9)
}

func TestCompareWithPrevious_ResolvedWithWiderLookback(t *testing.T) {
	f := FilterState{ViewMode: ViewSingle, SingleModeWeek: Week(9)}
	c := CompareWithPrevious(weeklyView(), f, 9, KPIOptions{}, WithMaxJumpBack(6))

	require.True(t, c.Resolved())
	assert.Equal(t, 3, c.PreviousWeek)
	assert.Equal(t, 6, c.Gap)
	assert.InDelta(t, 20, *c.Current.LossRatio, 1e-9)
	assert.InDelta(t, 50, *c.Previous.LossRatio, 1e-9)

	require.NotNil(t, c.Deltas)
	assert.InDelta(t, -30, *c.Deltas.LossRatio, 1e-9)
	assert.InDelta(t, -600, c.Deltas.ReportedClaimPayment.Amount, 1e-9)
	assert.InDelta(t, -60, *c.Deltas.ReportedClaimPayment.Percent, 1e-9)
	assert.InDelta(t, 0, c.Deltas.SignedPremium.Amount, 1e-9)
	assert.Nil(t, c.Deltas.AchievementRatio)
}

func TestCompareWithPrevious_RespectsOtherFilters(t *testing.T) {
	records := append(weeklyRecords(), rec(8, "其他", "主全", 1000, 900))
	f := FilterState{
		ViewMode:       ViewSingle,
		SingleModeWeek: Week(9),
		Dimensions:     map[string][]string{DimOrganization: {"天府"}},
	}
	c := CompareWithPrevious(BindRecords(records), f, 9, KPIOptions{}, WithMaxJumpBack(6))

	require.True(t, c.Resolved())
	assert.Equal(t, 3, c.PreviousWeek, "week 8 exists only for another organization")
	assert.InDelta(t, 20, *c.Current.LossRatio, 1e-9)
	assert.InDelta(t, 50, *c.Previous.LossRatio, 1e-9)
}

func TestCompareWithPrevious_NoEarlierWeek(t *testing.T) {
	c := CompareWithPrevious(weeklyView(), FilterState{}, 1, KPIOptions{})
	assert.Equal(t, StatusNotFound, c.Status)
	assert.Equal(t, 0, c.PreviousWeek)
	assert.Contains(t, c.Reason, "no data before week 1")
}

func TestCompareWithPrevious_EmptyCurrentWeek(t *testing.T) {
	c := CompareWithPrevious(weeklyView(), FilterState{}, 5, KPIOptions{})

	assert.Equal(t, StatusNotFound, c.Status)
	assert.Equal(t, "no data in week 5", c.Reason)
	assert.Nil(t, c.Current)
	assert.Nil(t, c.Previous)
	assert.Nil(t, c.Deltas, "an empty week is not a −100% drop")
	assert.Equal(t, 0, c.PreviousWeek)
}

func TestCompareWithPrevious_EmptyCurrentWeekCumulative(t *testing.T) {
	f := FilterState{ViewMode: ViewCumulative, SingleModeWeek: Week(5)}
	c := CompareWithPrevious(weeklyView(), f, 5, KPIOptions{})

	assert.Equal(t, StatusNotFound, c.Status)
	assert.Nil(t, c.Deltas)
	require.NotNil(t, c.Current, "weeks 1 and 3 still make a year-to-date view")
}

func TestCompareWithPrevious_KeysPeriodsByYear(t *testing.T) {
	view := BindRecords(yearBoundaryRecords())

	c := CompareWithPrevious(view, FilterState{}, 2, KPIOptions{})
	require.True(t, c.Resolved())
	assert.Equal(t, 2025, c.Year)
	assert.Equal(t, 1, c.PreviousWeek)
	assert.Equal(t, 1, c.CurrentView.Len())
	assert.Equal(t, 1, c.PreviousView.Len())
	assert.InDelta(t, 50, *c.Previous.LossRatio, 1e-9)

	// Week 1 of 2025 has no earlier week inside its year.
	c = CompareWithPrevious(view, FilterState{}, 1, KPIOptions{Year: 2025})
	assert.Equal(t, StatusNotFound, c.Status)
	assert.Equal(t, "no data before week 1", c.Reason)
	assert.Equal(t, 1, c.CurrentView.Len(), "2024 records are not pooled in")

	c = CompareWithPrevious(view, FilterState{}, 52, KPIOptions{})
	assert.Equal(t, 2024, c.Year, "the latest year with data in week 52")
	require.NotNil(t, c.Current)
	assert.InDelta(t, 90, *c.Current.LossRatio, 1e-9)
}

func TestPinYear(t *testing.T) {
	view := BindRecords(yearBoundaryRecords())

	tests := []struct {
		name     string
		year     int
		week     int
		wantYear int
		wantLen  int
	}{
		{"latest year by default", 0, 0, 2025, 2},
		{"preferred year", 2024, 1, 2024, 1},
		{"absent preferred year falls back", 2023, 0, 2025, 2},
		{"latest year with the week", 0, 52, 2024, 1},
		{"week nowhere falls back", 0, 30, 2025, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, year := PinYear(view, tt.year, tt.week)
			assert.Equal(t, tt.wantYear, year)
			assert.Equal(t, tt.wantLen, got.Len())
		})
	}

	single, year := PinYear(weeklyView(), 2030, 0)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 6, single.Len(), "one year is never narrowed")
}

func TestCompareWithPrevious_CumulativeMode(t *testing.T) {
	f := FilterState{ViewMode: ViewCumulative, SingleModeWeek: Week(3)}
	c := CompareWithPrevious(weeklyView(), f, 3, KPIOptions{})

	require.True(t, c.Resolved())
	assert.Equal(t, 1, c.PreviousWeek)
	assert.Equal(t, 4, c.CurrentView.Len(), "weeks 1 and 3")
	assert.Equal(t, 2, c.PreviousView.Len())
	// (800 + 1000) / 4000
	assert.InDelta(t, 45, *c.Current.LossRatio, 1e-9)
	assert.InDelta(t, 40, *c.Previous.LossRatio, 1e-9)
}

func TestCompareWithPrevious_LogsSearch(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := logging.NewLoggerFromCore(core)

	CompareWithPrevious(weeklyView(), FilterState{}, 3, KPIOptions{}, WithLogger(l))

	entries := logs.FilterMessage("comparison searched").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "resolved", entries[0].ContextMap()["status"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["previous_week"])
}

func TestComputeDeltas_NilSides(t *testing.T) {
	res := Calculate(weeklyView(), KPIOptions{})
	d := ComputeDeltas(res, nil)
	assert.Nil(t, d.LossRatio)
	assert.InDelta(t, 6000, d.SignedPremium.Amount, 1e-9)
	assert.Nil(t, d.SignedPremium.Percent, "no previous premium")
}

// ============================================================================
// HIGHLIGHTS
// ============================================================================

func TestBuildHighlights(t *testing.T) {
	view := weeklyView()
	cur := ApplyFilters(view, FilterState{Weeks: []int{9}})
	prev := ApplyFilters(view, FilterState{Weeks: []int{3}})

	h := BuildHighlights(cur, prev, DimCoverage)
	require.Len(t, h, 3)

	byValue := make(map[string]DimensionHighlight, len(h))
	for _, x := range h {
		byValue[x.Value] = x
	}

	main := byValue["主全"]
	assert.InDelta(t, 20, *main.CurrentLossRatio, 1e-9)
	assert.InDelta(t, 50, *main.PreviousLossRatio, 1e-9)
	assert.InDelta(t, -30, *main.LossRatioChange, 1e-9)
	assert.InDelta(t, -300, main.ClaimPaymentChange, 1e-9)

	gone := byValue["交三"]
	assert.Nil(t, gone.CurrentLossRatio)
	assert.Nil(t, gone.LossRatioChange)
	assert.InDelta(t, -500, gone.ClaimPaymentChange, 1e-9)

	added := byValue["单交"]
	assert.Nil(t, added.PreviousLossRatio)
	assert.InDelta(t, 200, added.ClaimPaymentChange, 1e-9)

	top := TopMovers(h, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "交三", top[0].Value)
	assert.Equal(t, "主全", top[1].Value)
	assert.Len(t, TopMovers(h, 0), 3)
}

func TestTopMovers_TieBreakByValue(t *testing.T) {
	h := []DimensionHighlight{
		{Value: "b", ClaimPaymentChange: -100},
		{Value: "a", ClaimPaymentChange: 100},
		{Value: "c", ClaimPaymentChange: 50},
	}
	top := TopMovers(h, 0)
	assert.Equal(t, []string{"a", "b", "c"}, []string{top[0].Value, top[1].Value, top[2].Value})
	assert.Equal(t, "b", h[0].Value, "input is not reordered")
}

func TestBuildHighlights_NilPrevious(t *testing.T) {
	h := BuildHighlights(weeklyView(), nil, DimOrganization)
	require.Len(t, h, 2)
	for _, x := range h {
		assert.Nil(t, x.PreviousLossRatio)
	}
}
