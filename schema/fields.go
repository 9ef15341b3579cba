package schema

import (
	"github.com/spektr-org/weekpi/normalize"
)

// wanScale converts columns exported in ten-thousand yuan (万元) to yuan.
const wanScale = 10000

// Field describes one Record column: its canonical key, how raw values are
// normalized, and which source headers map onto it.
type Field struct {
	Key     string         `json:"key"`
	Kind    normalize.Kind `json:"kind"`
	Aliases []string       `json:"aliases"`
	// WanAliases are headers whose values are in 万元 and get scaled to yuan.
	WanAliases []string `json:"wanAliases,omitempty"`
}

// Fields lists every Record column in export order.
var Fields = []Field{
	{Key: SnapshotDate, Kind: normalize.KindDate, Aliases: []string{"刷新时间", "Snapshot Date"}},
	{Key: PolicyStartYear, Kind: normalize.KindNumber, Aliases: []string{"保险起期", "保单年度", "Policy Start Year"}},
	{Key: BusinessTypeCategory, Kind: normalize.KindText, Aliases: []string{"业务类型分类", "Business Type Category"}},
	{Key: ChengduBranch, Kind: normalize.KindText, Aliases: []string{"成都中支", "Chengdu Branch"}},
	{Key: SecondLevelOrganization, Kind: normalize.KindText, Aliases: []string{"二级机构", "Second Level Organization"}},
	{Key: ThirdLevelOrganization, Kind: normalize.KindText, Aliases: []string{"三级机构", "Third Level Organization"}},
	{Key: CustomerCategory3, Kind: normalize.KindText, Aliases: []string{"客户类别3", "Customer Category 3"}},
	{Key: InsuranceType, Kind: normalize.KindText, Aliases: []string{"险种类", "Insurance Type"}},
	{Key: IsNewEnergyVehicle, Kind: normalize.KindBool, Aliases: []string{"是否新能源车1", "是否新能源车", "Is New Energy Vehicle"}},
	{Key: CoverageType, Kind: normalize.KindText, Aliases: []string{"交三/主全", "险别组合", "Coverage Type"}},
	{Key: IsTransferredVehicle, Kind: normalize.KindBool, Aliases: []string{"是否过户车", "Is Transferred Vehicle"}},
	{Key: RenewalStatus, Kind: normalize.KindText, Aliases: []string{"续保情况", "Renewal Status"}},
	{Key: VehicleInsuranceGrade, Kind: normalize.KindText, Aliases: []string{"车险分等级", "Vehicle Insurance Grade"}},
	{Key: HighwayRiskGrade, Kind: normalize.KindText, Aliases: []string{"高速风险等级", "Highway Risk Grade"}},
	{Key: LargeTruckScore, Kind: normalize.KindText, Aliases: []string{"大货车评分", "Large Truck Score"}},
	{Key: SmallTruckScore, Kind: normalize.KindText, Aliases: []string{"小货车评分", "Small Truck Score"}},
	{Key: TerminalSource, Kind: normalize.KindText, Aliases: []string{"终端来源", "Terminal Source"}},
	{
		Key: SignedPremium, Kind: normalize.KindNumber,
		Aliases:    []string{"签单保费", "Signed Premium"},
		WanAliases: []string{"signed_premium_wan", "跟单保费(万)", "跟单保费(Ten Thousand)"},
	},
	{
		Key: MaturedPremium, Kind: normalize.KindNumber,
		Aliases:    []string{"满期保费", "满期净保费", "Matured Premium"},
		WanAliases: []string{"matured_premium_wan", "满期净保费(万)", "满期净保费(Ten Thousand)"},
	},
	{Key: PolicyCount, Kind: normalize.KindNumber, Aliases: []string{"保单件数", "保单数", "Policy Count"}},
	{Key: ClaimCaseCount, Kind: normalize.KindNumber, Aliases: []string{"案件数", "出险次数", "Claim Case Count"}},
	{
		Key: ReportedClaimPayment, Kind: normalize.KindNumber,
		Aliases:    []string{"已报告赔款", "报案赔款", "Reported Claim Payment"},
		WanAliases: []string{"total_claim_wan", "总赔款(万)", "总赔款(Ten Thousand)"},
	},
	{Key: ExpenseAmount, Kind: normalize.KindNumber, Aliases: []string{"费用金额", "Expense Amount"}},
	{Key: CommercialPremiumBeforeDiscount, Kind: normalize.KindNumber, Aliases: []string{"商业险折前保费", "Commercial Premium Before Discount"}},
	{Key: PremiumPlan, Kind: normalize.KindNumber, Aliases: []string{"保费计划", "Premium Plan"}},
	{Key: MarginalContribution, Kind: normalize.KindNumber, Aliases: []string{"边际贡献额", "Marginal Contribution Amount"}},
	{Key: WeekNumber, Kind: normalize.KindNumber, Aliases: []string{"周次", "Week Number"}},
}

var headerIndex = buildHeaderIndex()

type headerTarget struct {
	key   string
	scale float64
	// rank orders the headers of one field: the canonical key first, then
	// Aliases, then WanAliases, each in declaration order.
	rank int
}

func buildHeaderIndex() map[string]headerTarget {
	idx := make(map[string]headerTarget)
	add := func(header, key string, scale float64, rank int) {
		folded := normalize.FoldKey(header)
		if _, ok := idx[folded]; !ok {
			idx[folded] = headerTarget{key: key, scale: scale, rank: rank}
		}
	}
	for _, f := range Fields {
		rank := 0
		add(f.Key, f.Key, 0, rank)
		for _, a := range f.Aliases {
			rank++
			add(a, f.Key, 0, rank)
		}
		for _, a := range f.WanAliases {
			rank++
			add(a, f.Key, wanScale, rank)
		}
	}
	return idx
}

func lookupHeader(header string) (headerTarget, bool) {
	t, ok := headerIndex[normalize.FoldKey(header)]
	return t, ok
}

// ResolveHeader maps a source column header (canonical key or any alias,
// case- and width-insensitive) to the Record key and the value scale to
// apply. Scale is 0 for headers that carry yuan directly.
func ResolveHeader(header string) (key string, scale float64, ok bool) {
	t, ok := lookupHeader(header)
	if !ok {
		return "", 0, false
	}
	return t.key, t.scale, true
}

// headerPrecedes reports whether header a supplies a field in preference to
// header b when both resolve to it. The lower rank wins, so any yuan header
// beats every 万元 header; headers folding to the same alias fall back to
// byte order.
func headerPrecedes(a string, ta headerTarget, b string, tb headerTarget) bool {
	if ta.rank != tb.rank {
		return ta.rank < tb.rank
	}
	return a < b
}

// Options tunes the normalization mapping used by FromRaw.
type Options struct {
	TrueValues  []string
	FalseValues []string
	DateLayouts []string
}

// FieldMapping builds the normalize mapping for every Record column.
func FieldMapping(opts Options) map[string]normalize.FieldConfig {
	zero := 0.0
	boolCfg := normalize.BoolConfig{
		TrueValues:  opts.TrueValues,
		FalseValues: opts.FalseValues,
		AllowEmpty:  true,
	}

	m := make(map[string]normalize.FieldConfig, len(Fields))
	for _, f := range Fields {
		switch f.Kind {
		case normalize.KindText:
			m[f.Key] = normalize.Text(normalize.TextConfig{CollapseSpaces: true})
		case normalize.KindBool:
			m[f.Key] = normalize.Bool(boolCfg)
		case normalize.KindDate:
			m[f.Key] = normalize.Date(normalize.DateConfig{Layouts: opts.DateLayouts, AllowSerial: true})
		case normalize.KindNumber:
			m[f.Key] = normalize.Number(normalize.NumberConfig{AllowEmpty: true})
		}
	}

	// Grades compare upper-cased.
	for _, k := range []string{VehicleInsuranceGrade, HighwayRiskGrade} {
		m[k] = normalize.Text(normalize.TextConfig{Case: normalize.CaseUpper})
	}
	m[ThirdLevelOrganization] = normalize.Text(normalize.TextConfig{CollapseSpaces: true, Required: true})
	for _, k := range []string{PolicyCount, ClaimCaseCount} {
		m[k] = normalize.Number(normalize.NumberConfig{Integer: true, Min: &zero, AllowEmpty: true})
	}
	m[PolicyStartYear] = normalize.Number(normalize.NumberConfig{Integer: true})
	m[WeekNumber] = normalize.Number(normalize.NumberConfig{Integer: true})
	return m
}
