package engine

import (
	"github.com/spektr-org/weekpi/schema"
)

// rec builds a 2025 record with signed premium equal to matured premium,
// ten policies and one claim case.
func rec(week int, org, coverage string, matured, claim float64) schema.Record {
	return schema.Record{
		PolicyStartYear:                2025,
		WeekNumber:                     week,
		ThirdLevelOrganization:         org,
		CoverageType:                   coverage,
		TerminalSource:                 "0110融合销售",
		BusinessTypeCategory:           "非营业个人客车",
		SignedPremiumYuan:              matured,
		MaturedPremiumYuan:             matured,
		ReportedClaimPaymentYuan:       claim,
		ExpenseAmountYuan:              matured * 0.1,
		MarginalContributionAmountYuan: matured * 0.2,
		PolicyCount:                    10,
		ClaimCaseCount:                 1,
	}
}

// weeklyRecords holds weeks 1, 3 and 9 with loss ratios 40, 50 and 20.
func weeklyRecords() []schema.Record {
	return []schema.Record{
		rec(1, "天府", "主全", 1000, 500),
		rec(1, "高新", "交三", 1000, 300),
		rec(3, "天府", "主全", 1000, 500),
		rec(3, "高新", "交三", 1000, 500),
		rec(9, "天府", "主全", 1000, 200),
		rec(9, "高新", "单交", 1000, 200),
	}
}

// cumulativeRecords are year-to-date snapshots for weeks 1 and 2.
func cumulativeRecords() []schema.Record {
	w1 := rec(1, "天府", "主全", 1000, 100)
	w2 := rec(2, "天府", "主全", 2500, 500)
	w2.PolicyCount, w2.ClaimCaseCount = 25, 4
	return []schema.Record{w1, w2}
}

func weeklyView() RecordView { return BindRecords(weeklyRecords()) }

func dims(view RecordView, key string) []string {
	out := make([]string, view.Len())
	for i := range out {
		out[i] = view.Dimension(i, key)
	}
	return out
}

// inYear moves r to another policy year.
func inYear(year int, r schema.Record) schema.Record {
	r.PolicyStartYear = year
	return r
}

// yearBoundaryRecords straddle a policy year: 2024-W52, 2025-W01, 2025-W02.
func yearBoundaryRecords() []schema.Record {
	return []schema.Record{
		inYear(2024, rec(52, "天府", "主全", 1000, 900)),
		rec(1, "天府", "主全", 1000, 500),
		rec(2, "天府", "主全", 2000, 400),
	}
}
