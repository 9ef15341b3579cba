package engine

import (
	"strconv"

	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// INSURANCE BINDING: schema.Record → RecordView
// ============================================================================
// Year and week are registered twice: as dimensions (string, for grouping and
// categorical filters) and as measures (numeric, for range predicates).
// ============================================================================

var insuranceAdapter = newInsuranceAdapter()

func newInsuranceAdapter() *DomainAdapter[schema.Record] {
	a := NewDomainAdapter[schema.Record]()

	a.Dimension(schema.PolicyStartYear, func(r schema.Record) string { return strconv.Itoa(r.PolicyStartYear) }).
		Dimension(schema.WeekNumber, func(r schema.Record) string { return strconv.Itoa(r.WeekNumber) }).
		Dimension(schema.SnapshotDate, func(r schema.Record) string { return r.SnapshotDate }).
		Dimension(schema.ChengduBranch, func(r schema.Record) string { return r.ChengduBranch }).
		Dimension(schema.SecondLevelOrganization, func(r schema.Record) string { return r.SecondLevelOrganization }).
		Dimension(schema.ThirdLevelOrganization, func(r schema.Record) string { return r.ThirdLevelOrganization }).
		Dimension(schema.BusinessTypeCategory, func(r schema.Record) string { return r.BusinessTypeCategory }).
		Dimension(schema.CustomerCategory3, func(r schema.Record) string { return r.CustomerCategory3 }).
		Dimension(schema.InsuranceType, func(r schema.Record) string { return r.InsuranceType }).
		Dimension(schema.CoverageType, func(r schema.Record) string { return r.CoverageType }).
		Dimension(schema.RenewalStatus, func(r schema.Record) string { return r.RenewalStatus }).
		Dimension(schema.TerminalSource, func(r schema.Record) string { return r.TerminalSource }).
		Dimension(schema.VehicleInsuranceGrade, func(r schema.Record) string { return r.VehicleInsuranceGrade }).
		Dimension(schema.HighwayRiskGrade, func(r schema.Record) string { return r.HighwayRiskGrade }).
		Dimension(schema.LargeTruckScore, func(r schema.Record) string { return r.LargeTruckScore }).
		Dimension(schema.SmallTruckScore, func(r schema.Record) string { return r.SmallTruckScore }).
		Dimension(schema.IsNewEnergyVehicle, func(r schema.Record) string { return strconv.FormatBool(r.IsNewEnergyVehicle) }).
		Dimension(schema.IsTransferredVehicle, func(r schema.Record) string { return strconv.FormatBool(r.IsTransferredVehicle) })

	a.Measure(schema.SignedPremium, func(r schema.Record) float64 { return r.SignedPremiumYuan }).
		Measure(schema.MaturedPremium, func(r schema.Record) float64 { return r.MaturedPremiumYuan }).
		Measure(schema.ReportedClaimPayment, func(r schema.Record) float64 { return r.ReportedClaimPaymentYuan }).
		Measure(schema.ExpenseAmount, func(r schema.Record) float64 { return r.ExpenseAmountYuan }).
		Measure(schema.MarginalContribution, func(r schema.Record) float64 { return r.MarginalContributionAmountYuan }).
		Measure(schema.CommercialPremiumBeforeDiscount, func(r schema.Record) float64 { return r.CommercialPremiumBeforeDiscountYuan }).
		Measure(schema.PremiumPlan, func(r schema.Record) float64 { return r.PremiumPlanYuan }).
		Measure(schema.PolicyCount, func(r schema.Record) float64 { return float64(r.PolicyCount) }).
		Measure(schema.ClaimCaseCount, func(r schema.Record) float64 { return float64(r.ClaimCaseCount) }).
		Measure(schema.PolicyStartYear, func(r schema.Record) float64 { return float64(r.PolicyStartYear) }).
		Measure(schema.WeekNumber, func(r schema.Record) float64 { return float64(r.WeekNumber) })

	return a
}

// BindRecords exposes normalized records as a RecordView. The slice is not
// copied; callers must not mutate it while views are in use.
func BindRecords(records []schema.Record) RecordView {
	return insuranceAdapter.Bind(records)
}
