package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/schema"
)

// errRejectedRows makes validate exit non-zero under --strict.
var errRejectedRows = errors.New("rows rejected")

type validateOutput struct {
	File      string   `json:"file"`
	Headers   []string `json:"headers"`
	Rows      int      `json:"rows"`
	Accepted  int      `json:"accepted"`
	Rejected  int      `json:"rejected"`
	Malformed int      `json:"malformed"`
	Years     []int    `json:"years"`
	Weeks     []int    `json:"weeks"`
	Issues    any      `json:"issues,omitempty"`

	Columns schema.HeaderReport `json:"columns"`
}

func newValidateCmd() *cobra.Command {
	var (
		file   string
		strict bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Normalize and validate a CSV export without computing KPIs",
		Example: `  weekpi validate -f weekly.csv
  weekpi validate -f weekly.csv --strict -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			data := dataOptions{File: file}
			ds, err := data.load(cliCtx)
			if err != nil {
				return err
			}
			im := ds.Import

			out := validateOutput{
				File:      file,
				Headers:   im.Headers,
				Rows:      im.Rows,
				Accepted:  im.Accepted(),
				Rejected:  len(im.Issues),
				Malformed: im.Malformed,
				Years:     engine.DistinctYears(ds.View),
				Weeks:     engine.DistinctWeeks(ds.View),
				Columns:   im.Columns,
			}
			if len(im.Issues) > 0 {
				out.Issues = im.Issues
			}

			table := &engine.TableData{
				Title: fmt.Sprintf("%s：%d 行，接受 %d，拒绝 %d", file, im.Rows, out.Accepted, out.Rejected),
				Columns: []engine.Column{
					{Key: "row", Label: "数据行", Type: "number", Align: "right"},
					{Key: "field", Label: "字段", Type: "text", Align: "left"},
					{Key: "raw", Label: "原值", Type: "text", Align: "left"},
					{Key: "reason", Label: "原因", Type: "text", Align: "left"},
				},
				Rows: [][]string{},
			}
			var lines []string
			for i, issue := range im.Issues {
				if limit > 0 && i >= limit {
					break
				}
				for _, fe := range issue.Errors {
					row := fmt.Sprintf("%d", issue.Row+1)
					raw := ""
					if fe.Raw != nil {
						raw = fmt.Sprint(fe.Raw)
					}
					table.Rows = append(table.Rows, []string{row, fe.Field, raw, fe.Reason})
					lines = append(lines, fmt.Sprintf("数据第 %s 行 %s：%s", row, fe.Field, fe.Reason))
				}
			}
			text := table.Title
			if len(lines) > 0 {
				text += "\n" + strings.Join(lines, "\n")
			}
			cols := columnTable(im.Columns)
			if len(cols.Rows) > 0 {
				text += "\n" + columnText(im.Columns)
			}

			if err := render(cmd.OutOrStdout(), cliCtx.OutputFormat, output{
				Payload: out,
				Tables:  []*engine.TableData{table, cols},
				Text:    text,
			}); err != nil {
				return err
			}
			if strict && out.Rejected > 0 {
				return fmt.Errorf("%w: %d of %d", errRejectedRows, out.Rejected, out.Rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV export to check (required)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any row is rejected")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rejected rows to list (0 for all)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// columnTable lists the columns import ignores or overrides, and the
// required fields no column supplies.
func columnTable(r schema.HeaderReport) *engine.TableData {
	table := &engine.TableData{
		Title: "表头检查",
		Columns: []engine.Column{
			{Key: "header", Label: "表头", Type: "text", Align: "left"},
			{Key: "status", Label: "状态", Type: "text", Align: "left"},
			{Key: "detail", Label: "说明", Type: "text", Align: "left"},
		},
		Rows: [][]string{},
	}
	for _, c := range r.Shadowed() {
		table.Rows = append(table.Rows, []string{c.Header, string(c.Status), "重复映射到 " + c.Key})
	}
	for _, c := range r.Unmapped() {
		detail := string(c.Kind)
		if len(c.Samples) > 0 {
			detail += "：" + strings.Join(c.Samples, "、")
		}
		table.Rows = append(table.Rows, []string{c.Header, string(c.Status), detail})
	}
	for _, key := range r.MissingRequired {
		table.Rows = append(table.Rows, []string{key, "missing", "必需字段缺失，所有行将被拒绝"})
	}
	return table
}

func columnText(r schema.HeaderReport) string {
	var parts []string
	if u := r.Unmapped(); len(u) > 0 {
		headers := make([]string, len(u))
		for i, c := range u {
			headers[i] = c.Header
		}
		parts = append(parts, "未识别列："+strings.Join(headers, "、"))
	}
	if len(r.MissingRequired) > 0 {
		parts = append(parts, "缺少必需字段："+strings.Join(r.MissingRequired, "、"))
	}
	return strings.Join(parts, "\n")
}
