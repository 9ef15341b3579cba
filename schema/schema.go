package schema

// ============================================================================
// SCHEMA: Describes the shape of the weekly insurance dataset
// ============================================================================
// The engine uses schema metadata for dimension/measure resolution and the
// CLI prints it for `weekpi schema`. The record layout itself lives in
// record.go; header aliases in fields.go.
// ============================================================================

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`
}

// DimensionMeta describes a string field used for grouping/filtering.
type DimensionMeta struct {
	Key          string   `json:"key"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description,omitempty"`
	SampleValues []string `json:"sampleValues,omitempty"`
	Groupable    bool     `json:"groupable"`
	Filterable   bool     `json:"filterable"`
	// FilterName is the FilterState array name that targets this dimension.
	FilterName string `json:"filterName,omitempty"`
	Parent     string `json:"parent,omitempty"` // Parent dimension key for hierarchies
	IsTemporal bool   `json:"isTemporal,omitempty"`
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key                string   `json:"key"`
	DisplayName        string   `json:"displayName"`
	Description        string   `json:"description,omitempty"`
	Unit               string   `json:"unit,omitempty"` // "yuan", "count", "percent"
	IsCurrency         bool     `json:"isCurrency,omitempty"`
	IsSynthetic        bool     `json:"isSynthetic,omitempty"` // Auto-generated (e.g., record_count)
	Aggregations       []string `json:"aggregations,omitempty"`
	DefaultAggregation string   `json:"defaultAggregation,omitempty"`
}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName string, samples []string) DimensionMeta {
	return DimensionMeta{
		Key:          key,
		DisplayName:  displayName,
		SampleValues: samples,
		Groupable:    true,
		Filterable:   true,
	}
}

// DefaultMeasure creates a MeasureMeta with sensible defaults.
func DefaultMeasure(key, displayName string) MeasureMeta {
	return MeasureMeta{
		Key:                key,
		DisplayName:        displayName,
		Aggregations:       []string{"sum", "avg", "min", "max", "count"},
		DefaultAggregation: "sum",
	}
}

func yuanMeasure(key, displayName string) MeasureMeta {
	m := DefaultMeasure(key, displayName)
	m.Unit = "yuan"
	m.IsCurrency = true
	return m
}

func countMeasure(key, displayName string) MeasureMeta {
	m := DefaultMeasure(key, displayName)
	m.Unit = "count"
	return m
}

// GetDefaultMeasure returns the first measure's key, or signed premium as fallback.
func (c Config) GetDefaultMeasure() string {
	if len(c.Measures) > 0 {
		return c.Measures[0].Key
	}
	return SignedPremium
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// FilterDimension resolves a FilterState array name ("organizations") or a
// dimension key to the dimension key.
func (c Config) FilterDimension(name string) (string, bool) {
	for _, d := range c.Dimensions {
		if d.Key == name || (d.FilterName != "" && d.FilterName == name) {
			return d.Key, true
		}
	}
	return "", false
}

// ── Insurance dataset ───────────────────────────────────────────────────────

// Insurance returns the metadata of the weekly auto-insurance dataset.
func Insurance() Config {
	dim := func(key, display, filterName string, samples ...string) DimensionMeta {
		d := DefaultDimension(key, display, samples)
		d.FilterName = filterName
		return d
	}

	year := dim(PolicyStartYear, "保单年度", "years")
	year.IsTemporal = true
	week := dim(WeekNumber, "周次", "weeks")
	week.IsTemporal = true
	week.Parent = PolicyStartYear

	third := dim(ThirdLevelOrganization, "三级机构", "organizations")
	third.Parent = SecondLevelOrganization

	return Config{
		Name:        "weekly_auto_insurance",
		Version:     "1",
		Description: "Weekly cumulative auto-insurance business snapshots",
		Dimensions: []DimensionMeta{
			year,
			week,
			dim(SnapshotDate, "刷新时间", ""),
			dim(ChengduBranch, "成都中支", "branches", "成都", "中支"),
			dim(SecondLevelOrganization, "二级机构", ""),
			third,
			dim(BusinessTypeCategory, "业务类型分类", "businessTypes"),
			dim(CustomerCategory3, "客户类别3", "customerCategories"),
			dim(InsuranceType, "险种类", "insuranceTypes", InsuranceTypes...),
			dim(CoverageType, "险别组合", "coverageTypes", CoverageTypes...),
			dim(RenewalStatus, "续保情况", "renewalStatuses", RenewalStatuses...),
			dim(TerminalSource, "终端来源", "terminalSources"),
			dim(VehicleInsuranceGrade, "车险分等级", "vehicleGrades", Grades...),
			dim(HighwayRiskGrade, "高速风险等级", "highwayRiskGrades", Grades...),
			dim(LargeTruckScore, "大货车评分", ""),
			dim(SmallTruckScore, "小货车评分", ""),
			dim(IsNewEnergyVehicle, "是否新能源车", "newEnergy", "true", "false"),
			dim(IsTransferredVehicle, "是否过户车", "transferred", "true", "false"),
		},
		Measures: []MeasureMeta{
			yuanMeasure(SignedPremium, "签单保费"),
			yuanMeasure(MaturedPremium, "满期保费"),
			yuanMeasure(ReportedClaimPayment, "已报告赔款"),
			yuanMeasure(ExpenseAmount, "费用金额"),
			yuanMeasure(MarginalContribution, "边际贡献额"),
			yuanMeasure(CommercialPremiumBeforeDiscount, "商业险折前保费"),
			yuanMeasure(PremiumPlan, "保费计划"),
			countMeasure(PolicyCount, "保单件数"),
			countMeasure(ClaimCaseCount, "赔案件数"),
			{
				Key:                RecordCount,
				DisplayName:        "记录数",
				Unit:               "count",
				IsSynthetic:        true,
				Aggregations:       []string{"count"},
				DefaultAggregation: "count",
			},
		},
	}
}
