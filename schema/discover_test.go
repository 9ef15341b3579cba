package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/weekpi/normalize"
)

// ============================================================================
// HEADER DISCOVERY TESTS
// ============================================================================

func TestDiscoverHeaders_MapsAliases(t *testing.T) {
	headers := []string{"保单年度", "周次", "三级机构", "签单保费", "跟单保费(万)", "备注", "是否续保", "录入日期", "系数"}
	rows := [][]string{
		{"2025", "1", "天府", "1000", "0.1", "首单", "是", "2025-01-03", "1.2"},
		{"2025", "1", "高新", "500", "0.05", "首单", "否", "2025-01-04", "0.9"},
		{"2025", "2", "天府", "2000", "0.2", "复核", "是", "2025-01-10", "1.1"},
	}

	report := DiscoverHeaders(headers, rows)
	require.Len(t, report.Columns, len(headers))

	assert.Equal(t, ColumnMapped, report.Columns[0].Status)
	assert.Equal(t, PolicyStartYear, report.Columns[0].Key)
	assert.Equal(t, SignedPremium, report.Columns[3].Key)

	// The 万元 alias loses to the yuan column.
	wan := report.Columns[4]
	assert.Equal(t, ColumnShadowed, wan.Status)
	assert.Equal(t, SignedPremium, wan.Key)
	assert.Equal(t, float64(wanScale), wan.Scale)
	require.Len(t, report.Shadowed(), 1)

	unmapped := report.Unmapped()
	require.Len(t, unmapped, 4)
	assert.Equal(t, "备注", unmapped[0].Header)
	assert.Equal(t, normalize.KindText, unmapped[0].Kind)
	assert.Equal(t, []string{"首单", "复核"}, unmapped[0].Samples)
	assert.Equal(t, normalize.KindBool, unmapped[1].Kind)
	assert.Equal(t, normalize.KindDate, unmapped[2].Kind)
	assert.Equal(t, normalize.KindNumber, unmapped[3].Kind)

	assert.Empty(t, report.MissingRequired)
	assert.Contains(t, report.Missing, MaturedPremium)
	assert.NotContains(t, report.Missing, SignedPremium)
}

func TestDiscoverHeaders_WanOnly(t *testing.T) {
	report := DiscoverHeaders([]string{"week_number", "满期净保费(万)"}, nil)

	assert.Equal(t, ColumnMapped, report.Columns[1].Status)
	assert.Equal(t, MaturedPremium, report.Columns[1].Key)
	assert.NotContains(t, report.Missing, MaturedPremium)
	assert.Equal(t, []string{PolicyStartYear, ThirdLevelOrganization}, report.MissingRequired)
}

func TestDiscoverHeaders_DuplicateHeader(t *testing.T) {
	report := DiscoverHeaders([]string{"周次", "Week Number"}, nil)

	assert.Equal(t, ColumnMapped, report.Columns[0].Status)
	assert.Equal(t, ColumnShadowed, report.Columns[1].Status)
	assert.Equal(t, WeekNumber, report.Columns[1].Key)
}

func TestDiscoverHeaders_AliasRankMatchesCanonicalize(t *testing.T) {
	headers := []string{"matured_premium_wan", "满期净保费", "满期保费", "周次", "周次"}
	report := DiscoverHeaders(headers, nil)

	assert.Equal(t, ColumnShadowed, report.Columns[0].Status)
	assert.Equal(t, ColumnShadowed, report.Columns[1].Status)
	assert.Equal(t, ColumnMapped, report.Columns[2].Status, "满期保费 is listed before 满期净保费")
	assert.Equal(t, ColumnMapped, report.Columns[3].Status)
	assert.Equal(t, ColumnShadowed, report.Columns[4].Status, "a repeated header keeps the first column")

	raw := map[string]any{headers[0]: "9", headers[1]: "2000", headers[2]: "1000"}
	values, _ := Canonicalize(raw)
	assert.Equal(t, raw[report.Columns[2].Header], values[MaturedPremium])
}

func TestDiscoverHeaders_Options(t *testing.T) {
	rows := [][]string{{"on"}, {"off"}, {"on"}}

	report := DiscoverHeaders([]string{"开关"}, rows, DiscoverOptions{
		MaxSamples: 1,
		Normalize:  Options{TrueValues: []string{"on"}, FalseValues: []string{"off"}},
	})
	col := report.Columns[0]
	assert.Equal(t, normalize.KindBool, col.Kind)
	assert.Equal(t, []string{"on"}, col.Samples)

	assert.Equal(t, normalize.KindText, DiscoverHeaders([]string{"开关"}, rows).Columns[0].Kind)
}

func TestDiscoverHeaders_EmptyColumn(t *testing.T) {
	report := DiscoverHeaders([]string{"空列"}, [][]string{{""}, {"  "}})
	col := report.Columns[0]
	assert.Equal(t, ColumnUnmapped, col.Status)
	assert.Equal(t, normalize.KindText, col.Kind)
	assert.Empty(t, col.Samples)
}
