// Package weekpi computes comparable weekly KPIs for auto-insurance business data.
//
// Usage:
//
//	import (
//	    "github.com/spektr-org/weekpi/engine"
//	    "github.com/spektr-org/weekpi/schema"
//	)
//
//	records, issues := schema.FromRawRows(rows, schema.Options{})
//	view := engine.BindRecords(records)
//	report := engine.Analyze(view, engine.AnalysisRequest{
//	    Filters: filters,
//	    KPI:     engine.KPIOptions{Mode: engine.ModeCumulative},
//	})
//
// Records are normalized once at the boundary (normalize + schema). Everything
// downstream (filters, KPIs, period comparison, trend lines, scoring) is a pure
// function over the bound record view. Caching, CSV import and the CLI live in
// their own packages and are never required by the core.
package weekpi
