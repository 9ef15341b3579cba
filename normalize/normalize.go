package normalize

import (
	"sort"
)

// ============================================================================
// NORMALIZATION OPERATORS: Raw values → canonical typed values
// ============================================================================
// Upstream exports mix full-width digits, several boolean spellings and many
// date layouts. Every read site goes through these operators instead of doing
// its own coercion.
//
// Operators are total: they never panic and never return an error. A bad
// value yields Result{Valid: false, Reason: "..."}; batch and object variants
// flag the bad slot and keep going.
// ============================================================================

// Kind selects which scalar operator Normalize dispatches to.
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
)

// Result wraps a normalized value with a validity flag and a diagnostic reason.
type Result[T any] struct {
	Value  T      `json:"value"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func valid[T any](v T) Result[T] {
	return Result[T]{Value: v, Valid: true}
}

func invalid[T any](reason string) Result[T] {
	var zero T
	return Result[T]{Value: zero, Valid: false, Reason: reason}
}

// FieldConfig describes how one field is normalized. Only the sub-config that
// matches Kind is consulted.
type FieldConfig struct {
	Kind   Kind         `json:"kind"`
	Text   TextConfig   `json:"text,omitempty"`
	Number NumberConfig `json:"number,omitempty"`
	Bool   BoolConfig   `json:"bool,omitempty"`
	Date   DateConfig   `json:"date,omitempty"`
}

// Text returns a FieldConfig for a text field.
func Text(cfg TextConfig) FieldConfig { return FieldConfig{Kind: KindText, Text: cfg} }

// Number returns a FieldConfig for a numeric field.
func Number(cfg NumberConfig) FieldConfig { return FieldConfig{Kind: KindNumber, Number: cfg} }

// Bool returns a FieldConfig for a boolean field.
func Bool(cfg BoolConfig) FieldConfig { return FieldConfig{Kind: KindBool, Bool: cfg} }

// Date returns a FieldConfig for a date field.
func Date(cfg DateConfig) FieldConfig { return FieldConfig{Kind: KindDate, Date: cfg} }

// Normalize applies the operator selected by cfg.Kind to value.
// An unknown kind yields an invalid result rather than a panic.
func Normalize(value any, cfg FieldConfig) Result[any] {
	switch cfg.Kind {
	case KindText, "":
		return widen(NormalizeText(value, cfg.Text))
	case KindNumber:
		return widen(NormalizeNumber(value, cfg.Number))
	case KindBool:
		return widen(NormalizeBool(value, cfg.Bool))
	case KindDate:
		return widen(NormalizeDate(value, cfg.Date))
	default:
		return invalid[any]("unknown field kind: " + string(cfg.Kind))
	}
}

func widen[T any](r Result[T]) Result[any] {
	if !r.Valid {
		return Result[any]{Valid: false, Reason: r.Reason}
	}
	return Result[any]{Value: r.Value, Valid: true}
}

// NormalizeBatch applies Normalize to each value. The output has the same
// length as the input; a bad element is marked invalid in its own slot.
func NormalizeBatch(values []any, cfg FieldConfig) []Result[any] {
	out := make([]Result[any], len(values))
	for i, v := range values {
		out[i] = Normalize(v, cfg)
	}
	return out
}

// ============================================================================
// OBJECT NORMALIZATION
// ============================================================================

// FieldError describes one field that failed normalization.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Raw    any    `json:"raw,omitempty"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ObjectResult is the outcome of NormalizeObject.
type ObjectResult struct {
	// Values holds every successfully normalized mapped field plus all unmapped
	// fields copied through unchanged. Invalid fields are absent.
	Values map[string]any `json:"values"`
	Errors []FieldError   `json:"errors,omitempty"`
}

// Valid reports whether every mapped field normalized successfully.
func (r ObjectResult) Valid() bool { return len(r.Errors) == 0 }

// NormalizeObject normalizes raw using a field → config mapping. Fields are
// processed in sorted key order so Errors is deterministic. A missing mapped
// field is normalized as nil (and therefore follows the config's empty policy).
func NormalizeObject(raw map[string]any, mapping map[string]FieldConfig) ObjectResult {
	res := ObjectResult{Values: make(map[string]any, len(raw))}

	for k, v := range raw {
		if _, mapped := mapping[k]; !mapped {
			res.Values[k] = v
		}
	}

	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, field := range keys {
		rawVal := raw[field]
		r := Normalize(rawVal, mapping[field])
		if !r.Valid {
			res.Errors = append(res.Errors, FieldError{Field: field, Reason: r.Reason, Raw: rawVal})
			continue
		}
		res.Values[field] = r.Value
	}
	return res
}
