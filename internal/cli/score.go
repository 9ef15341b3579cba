package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/scoring"
)

func errUnknownMetric(m string) error {
	return fmt.Errorf("unknown metric %q", m)
}

type scoreOptions struct {
	data    dataOptions
	groupBy string
}

type scoreCard struct {
	Label    string                  `json:"label"`
	Scores   []scoring.MetricScore   `json:"scores"`
	Stats    scoring.ScoreStatistics `json:"stats"`
	Problems []scoring.Problem       `json:"problems,omitempty"`
}

func newScoreCmd() *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score KPI ratios against the predefined threshold bands",
		Long: "score maps each ratio onto a 0-100 score and a level (excellent to danger)\n" +
			"and flags values breaching the configured problem rules.",
		Example: `  weekpi score -f weekly.csv --mode cumulative
  weekpi score -f weekly.csv --group-by organizations -o table`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, opts)
		},
	}
	opts.data.register(cmd)
	cmd.Flags().StringVar(&opts.groupBy, "group-by", "", "score every value of a dimension separately")
	return cmd
}

func runScore(cmd *cobra.Command, opts *scoreOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
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
	r := engine.Analyze(ds.View, req, cliCtx.Config.EngineOptions(cliCtx.Logger)...)
	if !r.HasData() {
		return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{Payload: []scoreCard{}, Text: r.Summary})
	}

	rules := cliCtx.Config.Problems
	presets := cliCtx.Config.ScoringPresets()
	cards := []scoreCard{buildScoreCard("合计", r.KPI, presets, rules)}
	for _, g := range r.Breakdown {
		cards = append(cards, buildScoreCard(g.Label, g.Result, presets, rules))
	}

	var lines []string
	for _, c := range cards {
		line := fmt.Sprintf("%s：平均分 %s", c.Label, formatScore(c.Stats.Average))
		if len(c.Problems) > 0 {
			labels := make([]string, len(c.Problems))
			for i, p := range c.Problems {
				labels[i] = p.Label
			}
			line += "，问题：" + strings.Join(labels, "、")
		}
		lines = append(lines, line)
	}

	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
		Payload: cards,
		Tables:  []*engine.TableData{scoreTable(cards)},
		Text:    strings.Join(lines, "\n"),
	})
}

func buildScoreCard(label string, kpi *engine.KPIResult, presets map[string]scoring.ScoringConfig, rules scoring.ProblemRules) scoreCard {
	metrics := kpi.Metrics()
	scores := scoring.ScoreKPIWith(metrics, presets)
	results := make([]*scoring.ScoreResult, len(scores))
	for i, s := range scores {
		results[i] = s.Result
	}
	return scoreCard{
		Label:    label,
		Scores:   scores,
		Stats:    scoring.CalculateScoreStatistics(results),
		Problems: scoring.DetectProblems(metrics, rules),
	}
}

// scoreTable has one row per card and one "score level" column per metric.
func scoreTable(cards []scoreCard) *engine.TableData {
	table := &engine.TableData{Title: "KPI 评分", Rows: [][]string{}}
	if len(cards) == 0 {
		table.Columns = []engine.Column{}
		return table
	}

	table.Columns = []engine.Column{{Key: "label", Label: "范围", Type: "text", Align: "left"}}
	for _, s := range cards[0].Scores {
		table.Columns = append(table.Columns, engine.Column{Key: s.Metric, Label: engine.MetricLabel(s.Metric), Type: "text", Align: "right"})
	}
	table.Columns = append(table.Columns,
		engine.Column{Key: "average", Label: "平均分", Type: "number", Align: "right"},
		engine.Column{Key: "problems", Label: "问题", Type: "text", Align: "left"},
	)

	for _, c := range cards {
		row := []string{c.Label}
		for _, s := range c.Scores {
			row = append(row, formatMetricScore(s.Result))
		}
		labels := make([]string, len(c.Problems))
		for i, p := range c.Problems {
			labels[i] = p.Label
		}
		row = append(row, formatScore(c.Stats.Average), strings.Join(labels, "、"))
		table.Rows = append(table.Rows, row)
	}
	return table
}

func formatMetricScore(r *scoring.ScoreResult) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f %s", r.Score, scoring.LevelLabel(r.Level))
}

func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}
