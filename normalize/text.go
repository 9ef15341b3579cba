package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// CaseMode controls case folding for text values.
type CaseMode string

const (
	CaseNone  CaseMode = ""
	CaseLower CaseMode = "lower"
	CaseUpper CaseMode = "upper"
)

// TextConfig configures NormalizeText.
type TextConfig struct {
	Case           CaseMode `json:"case,omitempty"`
	CollapseSpaces bool     `json:"collapseSpaces,omitempty"`
	Required       bool     `json:"required,omitempty"`
	// Allowed restricts the result to an enumeration (compared after
	// normalization, case-insensitively). Empty means any value.
	Allowed []string `json:"allowed,omitempty"`
}

// NormalizeText trims, converts full-width characters to half-width and
// applies the configured case folding.
func NormalizeText(value any, cfg TextConfig) Result[string] {
	s, ok := rawText(value)
	if !ok {
		return invalid[string](fmt.Sprintf("unsupported text type %T", value))
	}

	s = Canonical(s)
	if cfg.CollapseSpaces {
		s = strings.Join(strings.Fields(s), " ")
	}

	switch cfg.Case {
	case CaseLower:
		s = cases.Lower(language.Und).String(s)
	case CaseUpper:
		s = cases.Upper(language.Und).String(s)
	}

	if s == "" {
		if cfg.Required {
			return invalid[string]("required text is empty")
		}
		return valid(s)
	}

	if len(cfg.Allowed) > 0 && !containsFold(cfg.Allowed, s) {
		return invalid[string](fmt.Sprintf("value %q not in allowed set", s))
	}
	return valid(s)
}

// Canonical trims s and narrows full-width forms ("１２３，ＡＢＣ" → "123,ABC").
func Canonical(s string) string {
	return strings.TrimSpace(width.Narrow.String(s))
}

// FoldKey returns the comparison key used for case-insensitive matching of
// categorical values.
func FoldKey(s string) string {
	return cases.Fold().String(Canonical(s))
}

// DedupeStrings normalizes each value with cfg and returns the distinct,
// non-empty results in order of first occurrence. Two values are duplicates
// when their fold keys match.
func DedupeStrings(values []string, cfg TextConfig) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		r := NormalizeText(v, cfg)
		if !r.Valid || r.Value == "" {
			continue
		}
		key := FoldKey(r.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r.Value)
	}
	return out
}

// rawText renders scalar inputs as a string. nil is the empty string.
func rawText(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

func containsFold(set []string, s string) bool {
	key := FoldKey(s)
	for _, item := range set {
		if FoldKey(item) == key {
			return true
		}
	}
	return false
}
