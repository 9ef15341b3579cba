package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
	"github.com/spektr-org/weekpi/schema"
)

const weeklyCSV = "\xEF\xBB\xBF保单年度,周次,三级机构,险别组合,签单保费,满期净保费(万),已报告赔款,保单件数,是否新能源车\n" +
	"2025,9,天府,主全,\"1,200\",0.1,400,3,是\n" +
	"2025,9, 高新 ,交三,800,0.05,100,2,否\n" +
	",,,,,,,,\n" +
	"2025,60,天府,主全,100,0.01,0,1,否\n" +
	"2025,9,,主全,100,0.01,0,1,否\n"

func TestParseCSV(t *testing.T) {
	im, err := ParseCSV([]byte(weeklyCSV))
	require.NoError(t, err)

	assert.Equal(t, "保单年度", im.Headers[0], "BOM stripped")
	assert.Equal(t, 4, im.Rows, "blank row skipped")
	require.Equal(t, 2, im.Accepted())
	require.Len(t, im.Issues, 2)
	assert.Equal(t, 2, im.Issues[0].Row)
	assert.Equal(t, 3, im.Issues[1].Row)

	first := im.Records[0]
	assert.Equal(t, 2025, first.PolicyStartYear)
	assert.Equal(t, 9, first.WeekNumber)
	assert.Equal(t, 1200.0, first.SignedPremiumYuan)
	assert.InDelta(t, 1000, first.MaturedPremiumYuan, 1e-9)
	assert.Equal(t, int64(3), first.PolicyCount)
	assert.True(t, first.IsNewEnergyVehicle)
	assert.Equal(t, "高新", im.Records[1].ThirdLevelOrganization)
}

func TestParseCSVView_FeedsEngine(t *testing.T) {
	view, im, err := ParseCSVView([]byte(weeklyCSV))
	require.NoError(t, err)
	require.Equal(t, im.Accepted(), view.Len())

	kpi := engine.Calculate(view, engine.KPIOptions{})
	require.NotNil(t, kpi)
	assert.InDelta(t, 500.0/1500.0*100, *kpi.LossRatio, 1e-9)
}

func TestParseCSV_NoHeader(t *testing.T) {
	_, err := ParseCSV(nil)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadCSV_Options(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	data := "policy_start_year;week_number;third_level_organization;is_new_energy_vehicle\n2025;1;天府;Y\n"

	im, err := ReadCSV(strings.NewReader(data),
		WithComma(';'),
		WithSchemaOptions(schema.Options{TrueValues: []string{"Y"}, FalseValues: []string{"N"}}),
		WithLogger(logging.NewLoggerFromCore(core)),
	)
	require.NoError(t, err)
	require.Equal(t, 1, im.Accepted())
	assert.True(t, im.Records[0].IsNewEnergyVehicle)

	entries := logs.FilterMessage("csv imported").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["accepted"])
}

func TestParseCSV_ReportsColumns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	data := "周次,签单保费,渠道备注\n1,100,电销\n2,200,网销\n"

	im, err := ParseCSV([]byte(data), WithLogger(logging.NewLoggerFromCore(core)))
	require.NoError(t, err)
	assert.Zero(t, im.Accepted())

	unmapped := im.Columns.Unmapped()
	require.Len(t, unmapped, 1)
	assert.Equal(t, "渠道备注", unmapped[0].Header)
	assert.Equal(t, []string{"电销", "网销"}, unmapped[0].Samples)
	assert.Equal(t, []string{schema.PolicyStartYear, schema.ThirdLevelOrganization}, im.Columns.MissingRequired)

	assert.Equal(t, 1, logs.FilterMessage("csv lacks required columns").Len())
}

func TestParseCSV_DuplicateAliasColumns(t *testing.T) {
	data := "保单年度,周次,三级机构,满期净保费,满期保费,周次\n2025,3,天府,2000,1000,9\n"

	im, err := ParseCSV([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 1, im.Accepted())

	rec := im.Records[0]
	assert.Equal(t, 1000.0, rec.MaturedPremiumYuan)
	assert.Equal(t, 3, rec.WeekNumber, "a repeated header keeps its first column")

	assert.Equal(t, schema.ColumnMapped, im.Columns.Columns[4].Status)
	assert.Equal(t, schema.ColumnShadowed, im.Columns.Columns[3].Status)
	assert.Equal(t, schema.ColumnShadowed, im.Columns.Columns[5].Status)
}
