package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/schema"
)

type optionsOptions struct {
	data       dataOptions
	dimensions []string
}

type dimensionOptions struct {
	Dimension string   `json:"dimension"`
	Label     string   `json:"label"`
	Values    []string `json:"values"`
}

func newOptionsCmd() *cobra.Command {
	opts := &optionsOptions{}
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the selectable values of each dimension under the current filters",
		Long: "options computes cascading filter options: each dimension's values are taken\n" +
			"from the records matching every other active filter.",
		Example: `  weekpi options -f weekly.csv --filter organizations=天府
  weekpi options -f weekly.csv --dimension coverageTypes --dimension weeks -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptions(cmd, opts)
		},
	}
	opts.data.register(cmd)
	cmd.Flags().StringArrayVar(&opts.dimensions, "dimension", nil, "dimension to list (repeatable; default: every filterable dimension)")
	return cmd
}

func runOptions(cmd *cobra.Command, opts *optionsOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	f, err := opts.data.filterState()
	if err != nil {
		return err
	}

	sch := schema.Insurance()
	var keys []string
	if len(opts.dimensions) == 0 {
		for _, d := range sch.Dimensions {
			if d.Filterable && d.FilterName != "" {
				keys = append(keys, d.Key)
			}
		}
	} else {
		for _, name := range opts.dimensions {
			key, ok := sch.FilterDimension(name)
			if !ok {
				return fmt.Errorf("unknown dimension %q", name)
			}
			keys = append(keys, key)
		}
	}

	ds, err := opts.data.load(cliCtx)
	if err != nil {
		return err
	}
	cascade := engine.CascadeOptions(ds.View, f, keys...)

	out := make([]dimensionOptions, 0, len(keys))
	table := &engine.TableData{
		Title: "可选值",
		Columns: []engine.Column{
			{Key: "dimension", Label: "维度", Type: "text", Align: "left"},
			{Key: "count", Label: "数量", Type: "number", Align: "right"},
			{Key: "values", Label: "可选值", Type: "text", Align: "left"},
		},
	}
	var lines []string
	for _, key := range keys {
		values := cascade[key]
		if values == nil {
			values = []string{}
		}
		label := engine.LabelForDimension(key)
		out = append(out, dimensionOptions{Dimension: key, Label: label, Values: values})
		table.Rows = append(table.Rows, []string{label, fmt.Sprintf("%d", len(values)), strings.Join(values, ", ")})
		lines = append(lines, fmt.Sprintf("%s：%s", label, strings.Join(values, "、")))
	}

	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
		Payload: out,
		Tables:  []*engine.TableData{table},
		Text:    strings.Join(lines, "\n"),
	})
}
