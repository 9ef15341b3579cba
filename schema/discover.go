package schema

import (
	"strings"

	"github.com/spektr-org/weekpi/normalize"
)

// ============================================================================
// HEADER DISCOVERY: How an export's columns land on Record fields
// ============================================================================
// Exports drift between systems: columns get renamed, added, dropped or
// switched to 万元. DiscoverHeaders resolves every header the same way
// Canonicalize does and classifies the columns nothing reads, so a user can
// tell an empty KPI from a missing column.
// ============================================================================

// ColumnStatus says what import does with a column.
type ColumnStatus string

const (
	// ColumnMapped columns feed a Record field.
	ColumnMapped ColumnStatus = "mapped"
	// ColumnShadowed columns resolve to a field another column supplies in
	// preference: a lower-ranked alias, a repeated header, or a 万元 alias
	// next to a yuan column.
	ColumnShadowed ColumnStatus = "shadowed"
	// ColumnUnmapped columns match no field and are ignored.
	ColumnUnmapped ColumnStatus = "unmapped"
)

// ColumnMatch describes one source column.
type ColumnMatch struct {
	Index  int          `json:"index"`
	Header string       `json:"header"`
	Status ColumnStatus `json:"status"`
	Key    string       `json:"key,omitempty"`
	Scale  float64      `json:"scale,omitempty"`
	// Kind and Samples are filled for unmapped columns only.
	Kind    normalize.Kind `json:"kind,omitempty"`
	Samples []string       `json:"samples,omitempty"`
}

// HeaderReport is the result of DiscoverHeaders.
type HeaderReport struct {
	Columns []ColumnMatch `json:"columns"`
	// Missing lists Record keys no column supplies, in Fields order.
	Missing []string `json:"missing,omitempty"`
	// MissingRequired is the subset of Missing that rejects every row.
	MissingRequired []string `json:"missingRequired,omitempty"`
}

// Unmapped returns the ignored columns.
func (r HeaderReport) Unmapped() []ColumnMatch {
	return r.withStatus(ColumnUnmapped)
}

// Shadowed returns the columns overridden by another column.
func (r HeaderReport) Shadowed() []ColumnMatch {
	return r.withStatus(ColumnShadowed)
}

func (r HeaderReport) withStatus(s ColumnStatus) []ColumnMatch {
	var out []ColumnMatch
	for _, c := range r.Columns {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// RequiredFields are the Record keys every row must carry.
var RequiredFields = []string{PolicyStartYear, WeekNumber, ThirdLevelOrganization}

// DiscoverOptions tunes DiscoverHeaders.
type DiscoverOptions struct {
	// MaxSamples caps the distinct sample values kept per unmapped column.
	MaxSamples int
	// Normalize supplies the boolean spellings and date layouts used to
	// classify unmapped columns.
	Normalize Options
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{MaxSamples: 5}
}

// DiscoverHeaders resolves headers against Fields. rows are data rows in
// header order; they are only read to classify unmapped columns. The column
// marked mapped for a field is the one Canonicalize reads; among repeated
// identical headers the first wins.
func DiscoverHeaders(headers []string, rows [][]string, opts ...DiscoverOptions) HeaderReport {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	report := HeaderReport{Columns: make([]ColumnMatch, len(headers))}
	targets := make([]headerTarget, len(headers))
	winner := make(map[string]int)

	for i, h := range headers {
		col := ColumnMatch{Index: i, Header: h, Status: ColumnUnmapped}
		t, ok := lookupHeader(h)
		if !ok || strings.TrimSpace(h) == "" {
			col.Samples = columnSamples(rows, i, opt.MaxSamples)
			col.Kind = detectKind(columnValues(rows, i), opt.Normalize)
			report.Columns[i] = col
			continue
		}
		col.Key, col.Scale, col.Status = t.key, t.scale, ColumnShadowed
		targets[i] = t
		if j, seen := winner[t.key]; !seen || headerPrecedes(h, t, headers[j], targets[j]) {
			winner[t.key] = i
		}
		report.Columns[i] = col
	}
	for _, i := range winner {
		report.Columns[i].Status = ColumnMapped
	}

	for _, f := range Fields {
		if _, ok := winner[f.Key]; !ok {
			report.Missing = append(report.Missing, f.Key)
		}
	}
	for _, key := range RequiredFields {
		if _, ok := winner[key]; !ok {
			report.MissingRequired = append(report.MissingRequired, key)
		}
	}
	return report
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// detectKind classifies a column by its non-blank values. A kind needs 80%+
// of the values to parse; booleans are tried first, then numbers, then dates.
func detectKind(values []string, opts Options) normalize.Kind {
	if len(values) == 0 {
		return normalize.KindText
	}

	raw := make([]any, len(values))
	for i, v := range values {
		raw[i] = v
	}
	parsed := func(cfg normalize.FieldConfig) int {
		n := 0
		for _, r := range normalize.NormalizeBatch(raw, cfg) {
			if r.Valid {
				n++
			}
		}
		return n
	}
	bools := parsed(normalize.Bool(normalize.BoolConfig{TrueValues: opts.TrueValues, FalseValues: opts.FalseValues}))
	nums := parsed(normalize.Number(normalize.NumberConfig{}))
	dates := parsed(normalize.Date(normalize.DateConfig{Layouts: opts.DateLayouts, Required: true}))

	threshold := int(float64(len(values)) * 0.8)
	if threshold == 0 {
		threshold = 1
	}
	switch {
	case bools >= threshold:
		return normalize.KindBool
	case nums >= threshold:
		return normalize.KindNumber
	case dates >= threshold:
		return normalize.KindDate
	default:
		return normalize.KindText
	}
}

func columnValues(rows [][]string, i int) []string {
	var out []string
	for _, row := range rows {
		if i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func columnSamples(rows [][]string, i, limit int) []string {
	if limit <= 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range columnValues(rows, i) {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
