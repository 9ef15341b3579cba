package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"

	"github.com/spektr-org/weekpi/engine"
)

// output is what a command hands to render: the JSON payload, the tables
// for table/csv output, and the text for text output.
type output struct {
	Payload any
	Tables  []*engine.TableData
	Text    string
}

func render(w io.Writer, format string, out output) error {
	switch format {
	case "json", "pretty":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if format == "pretty" {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(out.Payload)
	case "csv":
		cw := csv.NewWriter(w)
		for i, t := range out.Tables {
			if i > 0 {
				_ = cw.Write(nil)
			}
			writeTableCSV(cw, t)
		}
		cw.Flush()
		return cw.Error()
	case "text":
		_, err := fmt.Fprintln(w, out.Text)
		return err
	default:
		for i, t := range out.Tables {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeTable(w, t)
		}
		if len(out.Tables) == 0 && out.Text != "" {
			fmt.Fprintln(w, out.Text)
		}
		return nil
	}
}

// ============================================================================
// CSV OUTPUT: Sheets-ready rows
// ============================================================================

func writeTableCSV(cw *csv.Writer, t *engine.TableData) {
	if t == nil || len(t.Columns) == 0 {
		return
	}
	_ = cw.Write(tableHeader(t))
	for _, row := range t.Rows {
		_ = cw.Write(row)
	}
	if row := summaryRow(t); row != nil {
		_ = cw.Write(row)
	}
}

// ============================================================================
// TABLE OUTPUT: Aligned text for terminals
// ============================================================================

func writeTable(w io.Writer, t *engine.TableData) {
	if t == nil {
		return
	}
	if t.Title != "" {
		fmt.Fprintln(w, t.Title)
	}
	if len(t.Columns) == 0 {
		fmt.Fprintln(w, "(无数据)")
		if t.Summary != nil {
			for _, v := range t.Summary.Values {
				fmt.Fprintln(w, v)
			}
		}
		return
	}

	rows := [][]string{tableHeader(t)}
	rows = append(rows, t.Rows...)
	if row := summaryRow(t); row != nil {
		rows = append(rows, row)
	}

	widths := make([]int, len(t.Columns))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && displayWidth(cell) > widths[i] {
				widths[i] = displayWidth(cell)
			}
		}
	}

	for r, row := range rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(cell, widths[i], t.Columns[i].Align == "right" && r > 0)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
		if r == 0 {
			seps := make([]string, len(widths))
			for i, n := range widths {
				seps[i] = strings.Repeat("-", n)
			}
			fmt.Fprintln(w, strings.Join(seps, "  "))
		}
	}
}

func tableHeader(t *engine.TableData) []string {
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Label
	}
	return header
}

// summaryRow lays Summary.Values out by column key; the first column holds
// the summary label.
func summaryRow(t *engine.TableData) []string {
	if t.Summary == nil || len(t.Columns) == 0 {
		return nil
	}
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = t.Summary.Values[c.Key]
	}
	row[0] = t.Summary.Label
	return row
}

// displayWidth counts East Asian wide and fullwidth runes as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func pad(s string, n int, right bool) string {
	gap := n - displayWidth(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
