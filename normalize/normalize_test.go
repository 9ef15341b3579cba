package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEXT
// ============================================================================

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		value any
		cfg   TextConfig
		want  string
		valid bool
	}{
		{"trim", "  天府  ", TextConfig{}, "天府", true},
		{"full width", "ＡＢＣ１２３", TextConfig{}, "ABC123", true},
		{"lower", "MiXeD", TextConfig{Case: CaseLower}, "mixed", true},
		{"upper", "abc", TextConfig{Case: CaseUpper}, "ABC", true},
		{"collapse", "a   b\tc", TextConfig{CollapseSpaces: true}, "a b c", true},
		{"nil is empty", nil, TextConfig{}, "", true},
		{"required empty", "   ", TextConfig{Required: true}, "", false},
		{"int rendered", 42, TextConfig{}, "42", true},
		{"allowed hit", "主全", TextConfig{Allowed: []string{"主全", "交三", "单交"}}, "主全", true},
		{"allowed miss", "其他", TextConfig{Allowed: []string{"主全", "交三", "单交"}}, "", false},
		{"unsupported", []int{1}, TextConfig{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NormalizeText(tt.value, tt.cfg)
			assert.Equal(t, tt.valid, r.Valid, r.Reason)
			if tt.valid {
				assert.Equal(t, tt.want, r.Value)
			} else {
				assert.NotEmpty(t, r.Reason)
			}
		})
	}
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, FoldKey("ＳＡＭＥ"), FoldKey(" same "))
	assert.NotEqual(t, FoldKey("a"), FoldKey("b"))
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{" 天府 ", "天府", "", "Ａ", "a", "高新"}, TextConfig{})
	assert.Equal(t, []string{"天府", "A", "高新"}, got)
}

// ============================================================================
// NUMBER
// ============================================================================

func TestNormalizeNumber(t *testing.T) {
	min0 := 0.0
	max100 := 100.0

	tests := []struct {
		name  string
		value any
		cfg   NumberConfig
		want  float64
		valid bool
	}{
		{"float", 12.5, NumberConfig{}, 12.5, true},
		{"int", 7, NumberConfig{}, 7, true},
		{"string", "1234.5", NumberConfig{}, 1234.5, true},
		{"thousands", "1,234,567", NumberConfig{}, 1234567, true},
		{"full width digits", "１２３４", NumberConfig{}, 1234, true},
		{"currency", "¥ 2,000", NumberConfig{}, 2000, true},
		{"parenthesized negative", "(1,200)", NumberConfig{}, -1200, true},
		{"negative kept", "-350.25", NumberConfig{}, -350.25, true},
		{"json number", json.Number("3.5"), NumberConfig{}, 3.5, true},
		{"percent allowed", "12.5%", NumberConfig{AllowPercent: true}, 12.5, true},
		{"percent rejected", "12.5%", NumberConfig{}, 0, false},
		{"scale", "1.5", NumberConfig{Scale: 10000}, 15000, true},
		{"garbage", "abc", NumberConfig{}, 0, false},
		{"nan", math.NaN(), NumberConfig{}, 0, false},
		{"inf", math.Inf(1), NumberConfig{}, 0, false},
		{"inf string", "Inf", NumberConfig{}, 0, false},
		{"bool rejected", true, NumberConfig{}, 0, false},
		{"empty rejected", "", NumberConfig{}, 0, false},
		{"empty default", " ", NumberConfig{AllowEmpty: true, Default: 9}, 9, true},
		{"integer ok", "3", NumberConfig{Integer: true}, 3, true},
		{"integer rejects fraction", "3.2", NumberConfig{Integer: true}, 0, false},
		{"below min", -1, NumberConfig{Min: &min0}, 0, false},
		{"above max", 101, NumberConfig{Max: &max100}, 0, false},
		{"within bounds", 50, NumberConfig{Min: &min0, Max: &max100}, 50, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NormalizeNumber(tt.value, tt.cfg)
			assert.Equal(t, tt.valid, r.Valid, r.Reason)
			if tt.valid {
				assert.InDelta(t, tt.want, r.Value, 1e-9)
			} else {
				assert.NotEmpty(t, r.Reason)
				assert.Zero(t, r.Value)
			}
		})
	}
}

// ============================================================================
// BOOLEAN
// ============================================================================

func TestNormalizeBool(t *testing.T) {
	tests := []struct {
		name  string
		value any
		cfg   BoolConfig
		want  bool
		valid bool
	}{
		{"native", true, BoolConfig{}, true, true},
		{"True", "True", BoolConfig{}, true, true},
		{"chinese yes", "是", BoolConfig{}, true, true},
		{"chinese no", "否", BoolConfig{}, false, true},
		{"Y", " Y ", BoolConfig{}, true, true},
		{"full width one", "１", BoolConfig{}, true, true},
		{"int zero", 0, BoolConfig{}, false, true},
		{"float one", 1.0, BoolConfig{}, true, true},
		{"int two", 2, BoolConfig{}, false, false},
		{"unknown", "maybe", BoolConfig{}, false, false},
		{"empty rejected", "", BoolConfig{}, false, false},
		{"empty default", "", BoolConfig{AllowEmpty: true, Default: true}, true, true},
		{"custom spellings", "on", BoolConfig{TrueValues: []string{"on"}, FalseValues: []string{"off"}}, true, true},
		{"custom excludes default", "yes", BoolConfig{TrueValues: []string{"on"}, FalseValues: []string{"off"}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NormalizeBool(tt.value, tt.cfg)
			assert.Equal(t, tt.valid, r.Valid, r.Reason)
			if tt.valid {
				assert.Equal(t, tt.want, r.Value)
			}
		})
	}
}

// ============================================================================
// DATE
// ============================================================================

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name  string
		value any
		cfg   DateConfig
		want  string
		valid bool
	}{
		{"iso", "2025-03-09", DateConfig{}, "2025-03-09", true},
		{"slashes", "2025/03/09", DateConfig{}, "2025-03-09", true},
		{"short slashes", "2025/3/9", DateConfig{}, "2025-03-09", true},
		{"compact", "20250309", DateConfig{}, "2025-03-09", true},
		{"chinese", "2025年3月9日", DateConfig{}, "2025-03-09", true},
		{"with time", "2025-03-09 10:11:12", DateConfig{}, "2025-03-09", true},
		{"full width", "２０２５－０３－０９", DateConfig{}, "2025-03-09", true},
		{"time value", time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC), DateConfig{}, "2025-03-09", true},
		{"custom layout only", "09.03.2025", DateConfig{Layouts: []string{"02.01.2006"}}, "2025-03-09", true},
		{"custom layout rejects iso", "2025-03-09", DateConfig{Layouts: []string{"02.01.2006"}}, "", false},
		{"serial", 45658, DateConfig{AllowSerial: true}, "2025-01-01", true},
		{"serial string", "45658", DateConfig{AllowSerial: true}, "2025-01-01", true},
		{"serial rejected", 45658, DateConfig{}, "", false},
		{"empty optional", "", DateConfig{}, "", true},
		{"empty required", "", DateConfig{Required: true}, "", false},
		{"garbage", "not a date", DateConfig{}, "", false},
		{"invalid day", "2025-02-30", DateConfig{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NormalizeDate(tt.value, tt.cfg)
			assert.Equal(t, tt.valid, r.Valid, r.Reason)
			if tt.valid {
				assert.Equal(t, tt.want, r.Value)
			}
		})
	}
}

// ============================================================================
// DISPATCH, BATCH, OBJECT
// ============================================================================

func TestNormalize_Dispatch(t *testing.T) {
	assert.Equal(t, "x", Normalize(" x ", FieldConfig{}).Value)
	assert.Equal(t, 12.0, Normalize("12", Number(NumberConfig{})).Value)
	assert.Equal(t, true, Normalize("是", Bool(BoolConfig{})).Value)
	assert.Equal(t, "2025-01-02", Normalize("2025/01/02", Date(DateConfig{})).Value)

	r := Normalize("x", FieldConfig{Kind: "geo"})
	assert.False(t, r.Valid)
	assert.Contains(t, r.Reason, "geo")
}

func TestNormalizeBatch_OneMalformedAmongNine(t *testing.T) {
	values := []any{"1", "2", "3,000", "４", 5, 6.5, "7", "(8)", "9", "12..5"}

	var results []Result[any]
	require.NotPanics(t, func() {
		results = NormalizeBatch(values, Number(NumberConfig{}))
	})
	require.Len(t, results, len(values))

	validCount := 0
	for i, r := range results {
		if r.Valid {
			validCount++
			continue
		}
		assert.Equal(t, 9, i, "only the last slot is malformed")
		assert.NotEmpty(t, r.Reason)
		assert.Nil(t, r.Value)
	}
	assert.Equal(t, 9, validCount)
	assert.Equal(t, -8.0, results[7].Value)
}

func TestNormalizeBatch_Empty(t *testing.T) {
	assert.Empty(t, NormalizeBatch(nil, Text(TextConfig{})))
}

func TestNormalizeObject(t *testing.T) {
	raw := map[string]any{
		"third_level_organization": " 天府 ",
		"signed_premium_yuan":      "1,000",
		"policy_count":             "x",
		"is_new_energy_vehicle":    "是",
		"comment":                  "kept as is",
	}
	mapping := map[string]FieldConfig{
		"third_level_organization": Text(TextConfig{Required: true}),
		"signed_premium_yuan":      Number(NumberConfig{}),
		"policy_count":             Number(NumberConfig{Integer: true}),
		"is_new_energy_vehicle":    Bool(BoolConfig{}),
		"snapshot_date":            Date(DateConfig{Required: true}),
	}

	res := NormalizeObject(raw, mapping)

	assert.False(t, res.Valid())
	assert.Equal(t, "天府", res.Values["third_level_organization"])
	assert.Equal(t, 1000.0, res.Values["signed_premium_yuan"])
	assert.Equal(t, true, res.Values["is_new_energy_vehicle"])
	assert.Equal(t, "kept as is", res.Values["comment"])
	assert.NotContains(t, res.Values, "policy_count")
	assert.NotContains(t, res.Values, "snapshot_date")

	require.Len(t, res.Errors, 2)
	// sorted field order
	assert.Equal(t, "policy_count", res.Errors[0].Field)
	assert.Equal(t, "x", res.Errors[0].Raw)
	assert.Equal(t, "snapshot_date", res.Errors[1].Field)
	assert.Contains(t, res.Errors[1].Error(), "snapshot_date: ")
}

func TestNormalizeObject_AllValid(t *testing.T) {
	res := NormalizeObject(map[string]any{"a": "1"}, map[string]FieldConfig{"a": Number(NumberConfig{})})
	assert.True(t, res.Valid())
	assert.Equal(t, 1.0, res.Values["a"])
}
