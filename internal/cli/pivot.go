package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
	"github.com/spektr-org/weekpi/schema"
)

type pivotOptions struct {
	data        dataOptions
	groupBy     []string
	measure     string
	aggregation string
	sortBy      string
	limit       int
	chartType   string
}

type pivotOutput struct {
	Filters     engine.FilterState  `json:"filters"`
	Year        int                 `json:"year"`
	Week        int                 `json:"week"`
	Span        string              `json:"span"`
	RecordCount int                 `json:"recordCount"`
	GroupBy     []string            `json:"groupBy"`
	Measure     string              `json:"measure"`
	Aggregation string              `json:"aggregation"`
	Groups      []engine.Group      `json:"groups"`
	Chart       *engine.ChartConfig `json:"chart,omitempty"`
}

func newPivotCmd() *cobra.Command {
	opts := &pivotOptions{}
	cmd := &cobra.Command{
		Use:   "pivot",
		Short: "Aggregate a measure over one or two dimensions",
		Long: "pivot groups the records of the current period by up to two dimensions and\n" +
			"aggregates one measure per group. The second dimension splits every group\n" +
			"and becomes one chart series per value.",
		Example: `  weekpi pivot -f weekly.csv --group-by organizations --measure reported_claim_payment_yuan
  weekpi pivot -f weekly.csv --group-by organizations,coverageTypes --agg avg -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPivot(cmd, opts)
		},
	}
	opts.data.register(cmd)
	cmd.Flags().StringSliceVar(&opts.groupBy, "group-by", nil, "one or two dimensions, comma separated")
	cmd.Flags().StringVar(&opts.measure, "measure", schema.Insurance().GetDefaultMeasure(), "measure key to aggregate")
	cmd.Flags().StringVar(&opts.aggregation, "agg", "sum", "aggregation: "+strings.Join(engine.Aggregations, ", "))
	cmd.Flags().StringVar(&opts.sortBy, "sort", "value_desc", "group order: "+strings.Join(engine.SortModes, ", "))
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "keep the first n groups (0 keeps all)")
	cmd.Flags().StringVar(&opts.chartType, "chart", "bar", "chart type for json output: bar, line or pie")
	return cmd
}

// resolve checks the flags and maps selector names to dimension keys.
func (o *pivotOptions) resolve() ([]string, error) {
	if len(o.groupBy) > 2 {
		return nil, fmt.Errorf("--group-by takes at most two dimensions, got %d", len(o.groupBy))
	}
	dims := make([]string, 0, len(o.groupBy))
	for _, name := range o.groupBy {
		key, ok := schema.Insurance().FilterDimension(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", name)
		}
		dims = append(dims, key)
	}

	aggs := engine.MeasureAggregations(o.measure)
	if aggs == nil {
		return nil, fmt.Errorf("unknown measure %q", o.measure)
	}
	if !slices.Contains(aggs, o.aggregation) {
		return nil, fmt.Errorf("measure %s does not support %q (want %s)", o.measure, o.aggregation, strings.Join(aggs, ", "))
	}
	if !slices.Contains(engine.SortModes, o.sortBy) {
		return nil, fmt.Errorf("unknown sort %q", o.sortBy)
	}
	switch o.chartType {
	case "bar", "line", "pie":
	default:
		return nil, fmt.Errorf("unknown chart type %q", o.chartType)
	}
	return dims, nil
}

func runPivot(cmd *cobra.Command, opts *pivotOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	dims, err := opts.resolve()
	if err != nil {
		return err
	}
	req, err := opts.data.request(cliCtx)
	if err != nil {
		return err
	}

	ds, err := opts.data.load(cliCtx)
	if err != nil {
		return err
	}
	sc := engine.ResolveScope(ds.View, req.Filters, req.KPI.Year, req.CurrentWeek)
	groups := engine.GroupAndAggregate(sc.View, dims, opts.measure, opts.aggregation, opts.sortBy, opts.limit)

	title := fmt.Sprintf("%s（%s）", engine.LabelForDimension(opts.measure), engine.LabelForAggregation(opts.aggregation))
	out := pivotOutput{
		Filters:     req.Filters,
		Year:        sc.Year,
		Week:        sc.Week,
		Span:        engine.DerivePeriod(sc.View),
		RecordCount: sc.View.Len(),
		GroupBy:     dims,
		Measure:     opts.measure,
		Aggregation: opts.aggregation,
		Groups:      groups,
		Chart:       engine.BuildChart(title, opts.chartType, groups, dims, opts.aggregation),
	}

	cliCtx.Logger.Debug("pivot computed",
		logging.Int("records", out.RecordCount),
		logging.Int("groups", len(groups)),
		logging.String("measure", opts.measure),
		logging.String("aggregation", opts.aggregation),
	)

	text := fmt.Sprintf("%s %s：%d 组，%d 条记录", out.Span, title, len(groups), out.RecordCount)
	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
		Payload: out,
		Tables:  []*engine.TableData{engine.BuildGroupTable(out.Span+" "+title, groups, dims, opts.measure, opts.aggregation)},
		Text:    text,
	})
}
