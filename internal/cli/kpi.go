package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/cache"
	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
)

type kpiOptions struct {
	data     dataOptions
	groupBy  string
	template string
	metric   string
	noCache  bool
}

type kpiOutput struct {
	Filters     engine.FilterState  `json:"filters"`
	Options     engine.KPIOptions   `json:"options"`
	RecordCount int                 `json:"recordCount"`
	Span        string              `json:"span,omitempty"`
	Cached      bool                `json:"cached"`
	KPI         *engine.KPIResult   `json:"kpi"`
	Headline    *engine.TextData    `json:"headline,omitempty"`
	GroupBy     string              `json:"groupBy,omitempty"`
	Breakdown   []engine.KPIGroup   `json:"breakdown,omitempty"`
	Chart       *engine.ChartConfig `json:"chart,omitempty"`
	Summary     string              `json:"summary"`
}

func newKPICmd() *cobra.Command {
	opts := &kpiOptions{}
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Compute the KPI set for the filtered records",
		Example: `  weekpi kpi -f weekly.csv --week 9 --mode cumulative
  weekpi kpi -f weekly.csv --filter organizations=天府,高新 --group-by coverageTypes -o csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKPI(cmd, opts)
		},
	}
	opts.data.register(cmd)
	cmd.Flags().StringVar(&opts.groupBy, "group-by", "", "dimension for a per-value breakdown")
	cmd.Flags().StringVar(&opts.template, "template", "", "text output template with {placeholders}")
	cmd.Flags().StringVar(&opts.metric, "metric", engine.MetricLossRatio, "headline metric, also charted across the breakdown")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the KPI cache")
	return cmd
}

func runKPI(cmd *cobra.Command, opts *kpiOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if !engine.IsMetric(opts.metric) {
		return errUnknownMetric(opts.metric)
	}
	req, err := opts.data.request(cliCtx)
	if err != nil {
		return err
	}
	req.GroupBy = opts.groupBy
	req.SkipComparison = true

	ds, err := opts.data.load(cliCtx)
	if err != nil {
		return err
	}
	engineOpts := cliCtx.Config.EngineOptions(cliCtx.Logger)

	var report *engine.Report
	analyze := func() *engine.Report {
		if report == nil {
			report = engine.Analyze(ds.View, req, engineOpts...)
		}
		return report
	}

	out := kpiOutput{Filters: req.Filters, Options: req.KPI, GroupBy: req.GroupBy}
	if cliCtx.Config.Cache.Enabled && !opts.noCache {
		kc, closeFn, err := newKPICache(cmd.Context(), cliCtx)
		if err != nil {
			return err
		}
		defer closeFn()

		key := cache.Key(ds.Version, "kpi", req.Filters, requestOptions(req))
		out.KPI, out.Cached, err = kc.GetOrCompute(cmd.Context(), key, func(context.Context) (*engine.KPIResult, error) {
			return analyze().KPI, nil
		})
		if err != nil {
			return err
		}
	} else {
		out.KPI = analyze().KPI
	}

	// The breakdown, record count and summary always come from a full run;
	// a cache hit without --group-by only needs the headline.
	if req.GroupBy != "" || !out.Cached || cliCtx.OutputFormat == "text" {
		r := analyze()
		out.RecordCount = r.RecordCount
		out.Span = r.Span
		out.Options = r.Options
		out.Breakdown = r.Breakdown
		out.Summary = r.Summary
		out.Headline = engine.BuildHeadline(r, opts.metric)
		if len(r.Breakdown) > 0 {
			out.Chart = engine.BuildKPIChart(
				engine.LabelForDimension(r.GroupBy)+engine.MetricLabel(opts.metric), r.Breakdown, opts.metric)
		}
		if opts.template != "" {
			out.Summary = engine.ResolvePlaceholders(opts.template, r)
		}
	}

	cliCtx.Logger.Debug("kpi computed",
		logging.Bool("cached", out.Cached),
		logging.Int("groups", len(out.Breakdown)),
	)

	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
		Payload: out,
		Tables:  []*engine.TableData{kpiTable(out)},
		Text:    out.Summary,
	})
}

// requestOptions folds the request-level week override into the options so
// it takes part in the cache key.
func requestOptions(req engine.AnalysisRequest) engine.KPIOptions {
	opts := req.KPI
	if req.CurrentWeek != 0 {
		opts.CurrentWeekNumber = req.CurrentWeek
	}
	return opts
}

func kpiTable(out kpiOutput) *engine.TableData {
	if len(out.Breakdown) > 0 {
		return engine.BuildKPITable("KPI 分组", out.Breakdown, out.KPI)
	}
	if out.KPI == nil {
		return &engine.TableData{Title: "KPI", Columns: []engine.Column{}, Rows: [][]string{}}
	}
	total := engine.KPIGroup{Label: "合计", Count: out.KPI.Totals.RecordCount, Result: out.KPI}
	return engine.BuildKPITable(fmt.Sprintf("KPI（%d 条记录）", out.KPI.Totals.RecordCount), []engine.KPIGroup{total}, nil)
}
