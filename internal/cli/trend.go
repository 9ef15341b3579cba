package cli

import (
	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/scoring"
)

type trendOptions struct {
	data        dataOptions
	metric      string
	incremental bool
}

type trendOutput struct {
	Metric string              `json:"metric"`
	Points []engine.TrendPoint `json:"points"`
	Line   engine.TrendLine    `json:"line"`
	Growth *engine.TextData    `json:"growth"`
	Chart  *engine.ChartConfig `json:"chart,omitempty"`

	// Scores is index-aligned with Points; it is empty for metrics
	// without score bands.
	Scores []*scoring.ScoreResult `json:"scores,omitempty"`
}

func newTrendCmd() *cobra.Command {
	opts := &trendOptions{}
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Weekly series of a metric with a least-squares trend line",
		Example: `  weekpi trend -f weekly.csv --metric combined_ratio
  weekpi trend -f weekly.csv --incremental -o csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrend(cmd, opts)
		},
	}
	opts.data.register(cmd)
	cmd.Flags().StringVar(&opts.metric, "metric", "", "metric to fit (default from config)")
	cmd.Flags().BoolVar(&opts.incremental, "incremental", false, "use week-over-week increments instead of cumulative snapshots")
	return cmd
}

func runTrend(cmd *cobra.Command, opts *trendOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	req, err := opts.data.request(cliCtx)
	if err != nil {
		return err
	}
	req.Incremental = opts.incremental
	req.SkipComparison = true

	engineOpts := cliCtx.Config.EngineOptions(cliCtx.Logger)
	if opts.metric != "" {
		if !engine.IsMetric(opts.metric) {
			return errUnknownMetric(opts.metric)
		}
		engineOpts = append(engineOpts, engine.WithTrendMetric(opts.metric))
	}

	ds, err := opts.data.load(cliCtx)
	if err != nil {
		return err
	}
	r := engine.Analyze(ds.View, req, engineOpts...)

	title := engine.MetricLabel(r.TrendMetric) + "趋势"
	out := trendOutput{
		Metric: r.TrendMetric,
		Points: r.Trend,
		Line:   r.TrendLine,
		Growth: engine.BuildGrowthText(r.Trend, r.TrendMetric),
		Chart:  engine.BuildTrendChart(title, r.Trend, r.TrendMetric, r.TrendLine),
	}
	if bands, ok := cliCtx.Config.ScoringPresets()[r.TrendMetric]; ok {
		out.Scores = scoring.CalculateScoresBatch(engine.SeriesValues(r.Trend, r.TrendMetric), bands)
	}

	text := out.Growth.Value
	if out.Growth.Growth != nil {
		text = out.Growth.Period + " " + engine.MetricLabel(r.TrendMetric) + " " + out.Growth.Value
	}

	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
		Payload: out,
		Tables:  []*engine.TableData{engine.BuildTrendTable(title, r.Trend, r.TrendMetric, r.TrendLine)},
		Text:    text,
	})
}
