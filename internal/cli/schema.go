package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/schema"
)

type schemaOutput struct {
	Dataset schema.Config  `json:"dataset"`
	Fields  []schema.Field `json:"fields"`
}

// headerResolution is one header passed to `schema HEADER...`.
type headerResolution struct {
	Header string  `json:"header"`
	Key    string  `json:"key,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
	Known  bool    `json:"known"`
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [header...]",
		Short: "Print the record fields, accepted CSV headers and filter names",
		Long: "schema prints every record field with the CSV headers it accepts. Given\n" +
			"headers as arguments, it prints the field each one maps to instead.",
		Example: `  weekpi schema -o table
  weekpi schema 签单保费 "跟单保费(万)" 渠道`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return renderResolved(cmd, cliCtx, args)
			}
			ds := schema.Insurance()
			filterNames := make(map[string]string, len(ds.Dimensions))
			for _, d := range ds.Dimensions {
				filterNames[d.Key] = d.FilterName
			}

			table := &engine.TableData{
				Title: fmt.Sprintf("%s（v%s）", ds.Name, ds.Version),
				Columns: []engine.Column{
					{Key: "key", Label: "字段", Type: "text", Align: "left"},
					{Key: "kind", Label: "类型", Type: "text", Align: "left"},
					{Key: "filter", Label: "筛选名", Type: "text", Align: "left"},
					{Key: "headers", Label: "可识别表头", Type: "text", Align: "left"},
				},
				Rows: [][]string{},
			}
			var lines []string
			for _, f := range schema.Fields {
				headers := append(append([]string{}, f.Aliases...), f.WanAliases...)
				table.Rows = append(table.Rows, []string{f.Key, string(f.Kind), filterNames[f.Key], strings.Join(headers, " | ")})
				lines = append(lines, fmt.Sprintf("%s (%s): %s", f.Key, f.Kind, strings.Join(headers, ", ")))
			}

			return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
				Payload: schemaOutput{Dataset: ds, Fields: schema.Fields},
				Tables:  []*engine.TableData{table},
				Text:    strings.Join(lines, "\n"),
			})
		},
	}
}

func renderResolved(cmd *cobra.Command, cliCtx *CLIContext, headers []string) error {
	table := &engine.TableData{
		Title: "表头映射",
		Columns: []engine.Column{
			{Key: "header", Label: "表头", Type: "text", Align: "left"},
			{Key: "key", Label: "字段", Type: "text", Align: "left"},
			{Key: "scale", Label: "换算", Type: "text", Align: "right"},
		},
		Rows: [][]string{},
	}
	out := make([]headerResolution, len(headers))
	lines := make([]string, len(headers))
	for i, h := range headers {
		key, scale, ok := schema.ResolveHeader(h)
		out[i] = headerResolution{Header: h, Key: key, Scale: scale, Known: ok}

		target, factor := "(未识别)", ""
		if ok {
			target = key
		}
		if scale != 0 {
			factor = fmt.Sprintf("×%g", scale)
		}
		table.Rows = append(table.Rows, []string{h, target, factor})
		lines[i] = strings.TrimSpace(fmt.Sprintf("%s -> %s %s", h, target, factor))
	}
	return render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
		Payload: out,
		Tables:  []*engine.TableData{table},
		Text:    strings.Join(lines, "\n"),
	})
}
