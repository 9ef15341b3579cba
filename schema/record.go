package schema

// Dimension keys.
const (
	SnapshotDate            = "snapshot_date"
	PolicyStartYear         = "policy_start_year"
	WeekNumber              = "week_number"
	ChengduBranch           = "chengdu_branch"
	SecondLevelOrganization = "second_level_organization"
	ThirdLevelOrganization  = "third_level_organization"
	BusinessTypeCategory    = "business_type_category"
	CustomerCategory3       = "customer_category_3"
	InsuranceType           = "insurance_type"
	CoverageType            = "coverage_type"
	RenewalStatus           = "renewal_status"
	TerminalSource          = "terminal_source"
	VehicleInsuranceGrade   = "vehicle_insurance_grade"
	HighwayRiskGrade        = "highway_risk_grade"
	LargeTruckScore         = "large_truck_score"
	SmallTruckScore         = "small_truck_score"
	IsNewEnergyVehicle      = "is_new_energy_vehicle"
	IsTransferredVehicle    = "is_transferred_vehicle"
)

// Measure keys.
const (
	SignedPremium                   = "signed_premium_yuan"
	MaturedPremium                  = "matured_premium_yuan"
	ReportedClaimPayment            = "reported_claim_payment_yuan"
	ExpenseAmount                   = "expense_amount_yuan"
	MarginalContribution            = "marginal_contribution_amount_yuan"
	CommercialPremiumBeforeDiscount = "commercial_premium_before_discount_yuan"
	PremiumPlan                     = "premium_plan_yuan"
	PolicyCount                     = "policy_count"
	ClaimCaseCount                  = "claim_case_count"
	RecordCount                     = "record_count"
)

// Enumerations accepted for the classified dimensions.
var (
	InsuranceTypes  = []string{"商业险", "交强险"}
	CoverageTypes   = []string{"主全", "交三", "单交"}
	RenewalStatuses = []string{"新保", "续保", "转保"}
	Grades          = []string{"A", "B", "C", "D", "E", "F", "G", "X"}
)

// Record is one normalized weekly row. Monetary values are in yuan and may be
// negative (reversals); counts are non-negative. Records are values and are
// never mutated once built by FromRaw.
type Record struct {
	SnapshotDate    string `json:"snapshot_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PolicyStartYear int    `json:"policy_start_year" validate:"min=2000,max=2100"`
	WeekNumber      int    `json:"week_number" validate:"min=1,max=53"`

	ChengduBranch           string `json:"chengdu_branch,omitempty"`
	SecondLevelOrganization string `json:"second_level_organization,omitempty"`
	ThirdLevelOrganization  string `json:"third_level_organization" validate:"required"`

	BusinessTypeCategory  string `json:"business_type_category,omitempty"`
	CustomerCategory3     string `json:"customer_category_3,omitempty"`
	InsuranceType         string `json:"insurance_type,omitempty" validate:"omitempty,oneof=商业险 交强险"`
	CoverageType          string `json:"coverage_type,omitempty" validate:"omitempty,oneof=主全 交三 单交"`
	RenewalStatus         string `json:"renewal_status,omitempty" validate:"omitempty,oneof=新保 续保 转保"`
	TerminalSource        string `json:"terminal_source,omitempty"`
	VehicleInsuranceGrade string `json:"vehicle_insurance_grade,omitempty" validate:"omitempty,oneof=A B C D E F G X"`
	HighwayRiskGrade      string `json:"highway_risk_grade,omitempty" validate:"omitempty,oneof=A B C D E F G X"`
	LargeTruckScore       string `json:"large_truck_score,omitempty"`
	SmallTruckScore       string `json:"small_truck_score,omitempty"`

	IsNewEnergyVehicle   bool `json:"is_new_energy_vehicle"`
	IsTransferredVehicle bool `json:"is_transferred_vehicle"`

	SignedPremiumYuan                   float64 `json:"signed_premium_yuan"`
	MaturedPremiumYuan                  float64 `json:"matured_premium_yuan"`
	ReportedClaimPaymentYuan            float64 `json:"reported_claim_payment_yuan"`
	ExpenseAmountYuan                   float64 `json:"expense_amount_yuan"`
	MarginalContributionAmountYuan      float64 `json:"marginal_contribution_amount_yuan"`
	CommercialPremiumBeforeDiscountYuan float64 `json:"commercial_premium_before_discount_yuan"`
	PremiumPlanYuan                     float64 `json:"premium_plan_yuan"`

	PolicyCount    int64 `json:"policy_count" validate:"gte=0"`
	ClaimCaseCount int64 `json:"claim_case_count" validate:"gte=0"`
}
