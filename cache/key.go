package cache

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/normalize"
)

// keyPayload is the canonical form hashed into a cache key. Equivalent
// selector states (reordered values, differently cased labels, empty
// dimension lists) encode to the same bytes.
type keyPayload struct {
	Scope          string              `json:"scope"`
	Years          []int               `json:"years"`
	Weeks          []int               `json:"weeks"`
	WeekRange      *engine.WeekRange   `json:"weekRange"`
	Dimensions     map[string][]string `json:"dimensions"`
	ViewMode       engine.ViewMode     `json:"viewMode"`
	SingleModeWeek *int                `json:"singleModeWeek"`
	Options        engine.KPIOptions   `json:"options"`
}

// Key builds the cache key for one computation: version, then a hash of the
// canonical filters and options. scope separates result kinds sharing a
// store ("kpi", "report", ...).
func Key(version, scope string, f engine.FilterState, opts engine.KPIOptions) string {
	p := keyPayload{
		Scope:          scope,
		Years:          sortedInts(f.Years),
		Weeks:          sortedInts(f.Weeks),
		WeekRange:      f.WeekRange,
		ViewMode:       f.ViewMode,
		SingleModeWeek: f.SingleModeWeek,
		Options:        opts,
	}
	for dim, values := range f.Dimensions {
		if len(values) == 0 {
			continue
		}
		if p.Dimensions == nil {
			p.Dimensions = make(map[string][]string)
		}
		folded := make([]string, 0, len(values))
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			k := normalize.FoldKey(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			folded = append(folded, k)
		}
		sort.Strings(folded)
		p.Dimensions[dim] = folded
	}

	// Encoding a struct of plain fields cannot fail; maps encode with
	// sorted keys.
	data, _ := json.Marshal(p)
	return versionPrefix(version) + strconv.FormatUint(xxhash.Sum64(data), 16)
}

func versionPrefix(version string) string {
	return version + ":"
}

func sortedInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
