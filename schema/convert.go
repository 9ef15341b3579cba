package schema

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spektr-org/weekpi/normalize"
)

// ============================================================================
// RAW → RECORD
// ============================================================================
// FromRaw is the single boundary between heterogeneous source rows and the
// typed Record every other package works on. It never fails hard: each
// problem is reported as a normalize.FieldError and the caller decides
// whether the row is usable.
// ============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Canonicalize renames raw columns to Record keys using ResolveHeader and
// applies 万元 scaling. Unknown columns are kept under their original name.
// When several columns resolve to one field the result does not depend on
// map order: the canonical key beats its aliases, earlier aliases beat later
// ones, and a yuan column always beats a 万元 alias.
func Canonicalize(raw map[string]any) (values map[string]any, scales map[string]float64) {
	values = make(map[string]any, len(raw))
	scales = make(map[string]float64)

	type winner struct {
		header string
		target headerTarget
	}
	winners := make(map[string]winner)

	for header, v := range raw {
		t, ok := lookupHeader(header)
		if !ok {
			values[header] = v
			continue
		}
		if w, seen := winners[t.key]; seen && !headerPrecedes(header, t, w.header, w.target) {
			continue
		}
		winners[t.key] = winner{header: header, target: t}
	}

	for key, w := range winners {
		values[key] = raw[w.header]
		if w.target.scale != 0 {
			scales[key] = w.target.scale
		}
	}
	return values, scales
}

// FromRaw converts one raw row into a Record. The returned errors cover both
// normalization failures and schema validation failures; the Record holds
// every field that could be read.
func FromRaw(raw map[string]any, opts Options) (Record, []normalize.FieldError) {
	values, scales := Canonicalize(raw)

	mapping := FieldMapping(opts)
	for key, scale := range scales {
		cfg := mapping[key]
		cfg.Number.Scale = scale
		mapping[key] = cfg
	}

	if y, ok := yearFromDate(values[PolicyStartYear]); ok {
		values[PolicyStartYear] = y
	}

	res := normalize.NormalizeObject(values, mapping)
	rec := recordFromValues(res.Values)

	errs := res.Errors
	for _, fe := range validationErrors(rec) {
		if !hasFieldError(errs, fe.Field) {
			errs = append(errs, fe)
		}
	}
	return rec, errs
}

// RowIssue reports the problems found in one input row (0-based).
type RowIssue struct {
	Row    int                    `json:"row"`
	Errors []normalize.FieldError `json:"errors"`
}

// FromRawRows converts rows with FromRaw. Rows with any error are left out
// of the returned records and reported as issues instead.
func FromRawRows(rows []map[string]any, opts Options) ([]Record, []RowIssue) {
	records := make([]Record, 0, len(rows))
	var issues []RowIssue
	for i, raw := range rows {
		rec, errs := FromRaw(raw, opts)
		if len(errs) > 0 {
			issues = append(issues, RowIssue{Row: i, Errors: errs})
			continue
		}
		records = append(records, rec)
	}
	return records, issues
}

// Validate runs the struct-level rules on a Record built elsewhere.
func Validate(rec Record) []normalize.FieldError {
	return validationErrors(rec)
}

func validationErrors(rec Record) []normalize.FieldError {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []normalize.FieldError{{Field: "record", Reason: err.Error()}}
	}
	out := make([]normalize.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		out = append(out, normalize.FieldError{Field: fe.Field(), Reason: reason, Raw: fe.Value()})
	}
	return out
}

func hasFieldError(errs []normalize.FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

// yearFromDate accepts "保险起期" style columns that carry a full date.
func yearFromDate(v any) (int, bool) {
	s, ok := v.(string)
	if !ok || len(normalize.Canonical(s)) <= 4 {
		return 0, false
	}
	d := normalize.NormalizeDate(s, normalize.DateConfig{})
	if !d.Valid || d.Value == "" {
		return 0, false
	}
	y, err := strconv.Atoi(d.Value[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}

func recordFromValues(v map[string]any) Record {
	return Record{
		SnapshotDate:    str(v, SnapshotDate),
		PolicyStartYear: int(num(v, PolicyStartYear)),
		WeekNumber:      int(num(v, WeekNumber)),

		ChengduBranch:           str(v, ChengduBranch),
		SecondLevelOrganization: str(v, SecondLevelOrganization),
		ThirdLevelOrganization:  str(v, ThirdLevelOrganization),

		BusinessTypeCategory:  str(v, BusinessTypeCategory),
		CustomerCategory3:     str(v, CustomerCategory3),
		InsuranceType:         str(v, InsuranceType),
		CoverageType:          str(v, CoverageType),
		RenewalStatus:         str(v, RenewalStatus),
		TerminalSource:        str(v, TerminalSource),
		VehicleInsuranceGrade: str(v, VehicleInsuranceGrade),
		HighwayRiskGrade:      str(v, HighwayRiskGrade),
		LargeTruckScore:       str(v, LargeTruckScore),
		SmallTruckScore:       str(v, SmallTruckScore),

		IsNewEnergyVehicle:   flag(v, IsNewEnergyVehicle),
		IsTransferredVehicle: flag(v, IsTransferredVehicle),

		SignedPremiumYuan:                   num(v, SignedPremium),
		MaturedPremiumYuan:                  num(v, MaturedPremium),
		ReportedClaimPaymentYuan:            num(v, ReportedClaimPayment),
		ExpenseAmountYuan:                   num(v, ExpenseAmount),
		MarginalContributionAmountYuan:      num(v, MarginalContribution),
		CommercialPremiumBeforeDiscountYuan: num(v, CommercialPremiumBeforeDiscount),
		PremiumPlanYuan:                     num(v, PremiumPlan),

		PolicyCount:    int64(num(v, PolicyCount)),
		ClaimCaseCount: int64(num(v, ClaimCaseCount)),
	}
}

func str(v map[string]any, key string) string {
	s, _ := v[key].(string)
	return s
}

func num(v map[string]any, key string) float64 {
	f, _ := v[key].(float64)
	return f
}

func flag(v map[string]any, key string) bool {
	b, _ := v[key].(bool)
	return b
}
