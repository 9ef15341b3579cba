package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
)

type compareOptions struct {
	data     dataOptions
	template string
	all      bool
}

type compareOutput struct {
	Comparison *engine.Comparison          `json:"comparison"`
	Highlights []engine.DimensionHighlight `json:"highlights,omitempty"`
	TopMovers  []engine.DimensionHighlight `json:"topMovers,omitempty"`
	Summary    string                      `json:"summary"`
}

func newCompareCmd() *cobra.Command {
	opts := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the current week with the nearest earlier week",
		Long: "compare finds the greatest week before the current one that has data, within\n" +
			"comparison.max_jump_back weeks, and reports KPI deltas and the dimension\n" +
			"values whose claims moved the most.",
		Example: `  weekpi compare -f weekly.csv --week 9
  weekpi compare -f weekly.csv --filter organizations=天府 --mode increment -o pretty`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, opts)
		},
	}
	opts.data.register(cmd)
	cmd.Flags().StringVar(&opts.template, "template", "", "text output template with {placeholders}")
	cmd.Flags().BoolVar(&opts.all, "all-highlights", false, "list every highlight instead of the top movers")
	return cmd
}

func runCompare(cmd *cobra.Command, opts *compareOptions) error {
	cliCtx, err := GetCLIContext(cmd)
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

	r := engine.Analyze(ds.View, req, cliCtx.Config.EngineOptions(cliCtx.Logger)...)
	out := compareOutput{
		Comparison: r.Comparison,
		Highlights: r.Highlights,
		TopMovers:  r.TopMovers,
		Summary:    r.Summary,
	}
	if opts.template != "" {
		out.Summary = engine.ResolvePlaceholders(opts.template, r)
	}

	movers := r.TopMovers
	if opts.all {
		movers = r.Highlights
	}
	tables := []*engine.TableData{
		engine.BuildComparisonTable(comparisonTitle(r.Comparison), r.Comparison),
	}
	if len(movers) > 0 {
		tables = append(tables, engine.BuildHighlightTable("变化最大的维度值", movers))
	}

	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{Payload: out, Tables: tables, Text: out.Summary})
}

func comparisonTitle(c *engine.Comparison) string {
	switch {
	case c == nil:
		return "环比"
	case c.Resolved():
		return fmt.Sprintf("环比：第 %d 周 vs 第 %d 周", c.CurrentWeek, c.PreviousWeek)
	default:
		return fmt.Sprintf("环比：第 %d 周（无可比周）", c.CurrentWeek)
	}
}
