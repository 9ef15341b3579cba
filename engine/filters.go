package engine

import (
	"math"
	"sort"
	"strconv"

	"github.com/spektr-org/weekpi/normalize"
	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// FILTERS: Multi-dimensional filtering with per-dimension exclusion
// ============================================================================
// Single-pass filter: checks ALL active predicates per record in one loop and
// returns a SubView (index list into parent): zero data copy.
//
// Exclusion supports cascading selectors: the options still selectable for
// dimension D are the distinct D values of ApplyFilters(view, state, D), so a
// dimension never eliminates its own options.
// ============================================================================

// Temporal dimension keys used for exclusion.
const (
	DimYear = schema.PolicyStartYear
	DimWeek = schema.WeekNumber
)

// Frequently used categorical dimension keys.
const (
	DimOrganization = schema.ThirdLevelOrganization
	DimCoverage     = schema.CoverageType
	DimTerminal     = schema.TerminalSource
	DimBusinessType = schema.BusinessTypeCategory
)

// ViewMode selects how SingleModeWeek restricts weeks.
type ViewMode string

const (
	// ViewSingle keeps only SingleModeWeek.
	ViewSingle ViewMode = "single"
	// ViewCumulative keeps every week up to and including SingleModeWeek.
	ViewCumulative ViewMode = "cumulative"
)

// WeekRange is an inclusive week interval. A zero bound is open.
type WeekRange struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

// FilterState is the full selector state. Categorical dimensions live in
// Dimensions keyed by dimension key; an empty value list means unrestricted.
type FilterState struct {
	Years          []int               `json:"years,omitempty"`
	Weeks          []int               `json:"weeks,omitempty"`
	WeekRange      *WeekRange          `json:"weekRange,omitempty"`
	Dimensions     map[string][]string `json:"dimensions,omitempty"`
	ViewMode       ViewMode            `json:"viewMode,omitempty"`
	SingleModeWeek *int                `json:"singleModeWeek,omitempty"`
}

// HasFilter returns true if a specific dimension filter is set.
func (f FilterState) HasFilter(dimension string) bool {
	switch dimension {
	case DimYear:
		if len(f.Years) > 0 {
			return true
		}
	case DimWeek:
		if len(f.Weeks) > 0 || f.WeekRange != nil || f.SingleModeWeek != nil {
			return true
		}
	}
	return len(f.Dimensions[dimension]) > 0
}

// IsEmpty returns true if no filters are set.
func (f FilterState) IsEmpty() bool {
	if len(f.Years) > 0 || len(f.Weeks) > 0 || f.WeekRange != nil || f.SingleModeWeek != nil {
		return false
	}
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// Select returns a copy of f with the named selector set. name may be a
// dimension key or a selector name such as "organizations"; values are
// normalized and de-duplicated. Unknown names are ignored and reported false.
func (f FilterState) Select(name string, values ...string) (FilterState, bool) {
	key, ok := schema.Insurance().FilterDimension(name)
	if !ok {
		return f, false
	}
	dims := make(map[string][]string, len(f.Dimensions)+1)
	for k, v := range f.Dimensions {
		dims[k] = v
	}
	dims[key] = normalize.DedupeStrings(values, normalize.TextConfig{CollapseSpaces: true})
	f.Dimensions = dims
	return f, true
}

// Week returns a pointer to w, for SingleModeWeek literals.
func Week(w int) *int { return &w }

// ============================================================================
// APPLY
// ============================================================================

type predicate func(view RecordView, i int) bool

// ApplyFilters returns a view of records matching every active predicate
// except those on the excluded dimensions. Dimensions are AND-combined;
// values within a dimension are OR-combined. With nothing to apply the
// original view is returned.
func ApplyFilters(view RecordView, f FilterState, exclude ...string) RecordView {
	preds := buildPredicates(f, toSet(exclude))
	if len(preds) == 0 {
		return view
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for _, p := range preds {
			if !p(view, i) {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}

func buildPredicates(f FilterState, excluded map[string]bool) []predicate {
	var preds []predicate

	if !excluded[DimYear] && len(f.Years) > 0 {
		years := intSet(f.Years)
		preds = append(preds, func(v RecordView, i int) bool {
			return years[measureInt(v, i, DimYear)]
		})
	}

	if !excluded[DimWeek] {
		preds = append(preds, weekPredicates(f)...)
	}

	keys := make([]string, 0, len(f.Dimensions))
	for k := range f.Dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, dim := range keys {
		allowed := f.Dimensions[dim]
		if excluded[dim] || len(allowed) == 0 {
			continue
		}
		dim := dim
		set := foldSet(allowed)
		memo := make(map[string]string)
		preds = append(preds, func(v RecordView, i int) bool {
			raw := v.Dimension(i, dim)
			key, ok := memo[raw]
			if !ok {
				key = normalize.FoldKey(raw)
				memo[raw] = key
			}
			return set[key]
		})
	}
	return preds
}

func weekPredicates(f FilterState) []predicate {
	var preds []predicate

	if len(f.Weeks) > 0 {
		weeks := intSet(f.Weeks)
		preds = append(preds, func(v RecordView, i int) bool {
			return weeks[measureInt(v, i, DimWeek)]
		})
	}

	if r := f.WeekRange; r != nil {
		from, to := r.From, r.To
		preds = append(preds, func(v RecordView, i int) bool {
			w := measureInt(v, i, DimWeek)
			return (from == 0 || w >= from) && (to == 0 || w <= to)
		})
	}

	if f.SingleModeWeek != nil {
		target := *f.SingleModeWeek
		if f.ViewMode == ViewCumulative {
			preds = append(preds, func(v RecordView, i int) bool {
				return measureInt(v, i, DimWeek) <= target
			})
		} else {
			preds = append(preds, func(v RecordView, i int) bool {
				return measureInt(v, i, DimWeek) == target
			})
		}
	}
	return preds
}

// ============================================================================
// OPTIONS: cascading selector values
// ============================================================================

// AvailableOptions returns the distinct, sorted values of dimension that
// remain selectable under f, computed with dimension's own filter excluded.
func AvailableOptions(view RecordView, f FilterState, dimension string) []string {
	base := ApplyFilters(view, f, dimension)
	values := UniqueValues(base, dimension)
	sortValues(values)
	return values
}

// CascadeOptions runs AvailableOptions for each dimension.
func CascadeOptions(view RecordView, f FilterState, dimensions ...string) map[string][]string {
	out := make(map[string][]string, len(dimensions))
	for _, dim := range dimensions {
		out[dim] = AvailableOptions(view, f, dim)
	}
	return out
}

// DistinctWeeks returns the week numbers present in view, ascending.
func DistinctWeeks(view RecordView) []int {
	return distinctInts(view, DimWeek)
}

// DistinctYears returns the policy years present in view, ascending.
func DistinctYears(view RecordView) []int {
	return distinctInts(view, DimYear)
}

func distinctInts(view RecordView, key string) []int {
	seen := make(map[int]bool)
	var out []int
	for i := 0; i < view.Len(); i++ {
		w := measureInt(view, i, key)
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out
}

// ============================================================================
// HELPERS
// ============================================================================

func measureInt(v RecordView, i int, key string) int {
	return int(math.Round(v.Measure(i, key)))
}

// sortValues orders numerically when every value is an integer, else lexically.
func sortValues(values []string) {
	for _, s := range values {
		if _, err := strconv.Atoi(s); err != nil {
			sort.Strings(values)
			return
		}
	}
	sort.Slice(values, func(i, j int) bool {
		a, _ := strconv.Atoi(values[i])
		b, _ := strconv.Atoi(values[j])
		return a < b
	})
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// foldSet builds a lookup set keyed by normalize.FoldKey.
func foldSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[normalize.FoldKey(item)] = true
	}
	return set
}

func intSet(items []int) map[int]bool {
	set := make(map[int]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
