package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/helpers"
	"github.com/spektr-org/weekpi/internal/logging"
)

// dataOptions are the flags shared by every command that reads a CSV and
// narrows it with filters.
type dataOptions struct {
	File        string
	Delimiter   string
	Years       []int
	Weeks       []int
	WeekFrom    int
	WeekTo      int
	Filters     []string
	ViewMode    string
	Week        int
	Mode        string
	CurrentWeek int
}

func (o *dataOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.File, "file", "f", "", "weekly CSV export (required)")
	f.StringVar(&o.Delimiter, "delimiter", ",", `field delimiter: one character, or "tab"`)
	f.IntSliceVar(&o.Years, "year", nil, "policy start years to keep")
	f.IntSliceVar(&o.Weeks, "weeks", nil, "week numbers to keep")
	f.IntVar(&o.WeekFrom, "week-from", 0, "first week of an inclusive week range")
	f.IntVar(&o.WeekTo, "week-to", 0, "last week of an inclusive week range")
	f.StringArrayVar(&o.Filters, "filter", nil, "dimension filter name=v1,v2 (repeatable), e.g. organizations=天府,高新")
	f.StringVar(&o.ViewMode, "view", "", "week view for --week: single or cumulative")
	f.IntVarP(&o.Week, "week", "w", 0, "selected week for --view")
	f.StringVar(&o.Mode, "mode", "", "KPI mode: current, cumulative or increment (default from config)")
	f.IntVar(&o.CurrentWeek, "current-week", 0, "week the comparison starts from (default: latest)")
	_ = cmd.MarkFlagRequired("file")
}

// filterState builds the FilterState described by the flags.
func (o *dataOptions) filterState() (engine.FilterState, error) {
	f := engine.FilterState{Years: o.Years, Weeks: o.Weeks}
	if o.WeekFrom != 0 || o.WeekTo != 0 {
		f.WeekRange = &engine.WeekRange{From: o.WeekFrom, To: o.WeekTo}
	}
	if o.Week != 0 {
		f.SingleModeWeek = engine.Week(o.Week)
		f.ViewMode = engine.ViewSingle
	}
	switch o.ViewMode {
	case "":
	case string(engine.ViewSingle), string(engine.ViewCumulative):
		f.ViewMode = engine.ViewMode(o.ViewMode)
	default:
		return f, fmt.Errorf("unknown view %q (want single or cumulative)", o.ViewMode)
	}

	for _, arg := range o.Filters {
		name, values, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return f, fmt.Errorf("invalid filter %q (want name=v1,v2)", arg)
		}
		var selected bool
		f, selected = f.Select(strings.TrimSpace(name), strings.Split(values, ",")...)
		if !selected {
			return f, fmt.Errorf("unknown filter dimension %q", name)
		}
	}
	return f, nil
}

// kpiOptions merges the --mode flag over the configured options.
func (o *dataOptions) kpiOptions(cliCtx *CLIContext) (engine.KPIOptions, error) {
	opts := cliCtx.Config.KPIOptions()
	switch engine.KPIMode(o.Mode) {
	case "":
	case engine.ModeCurrent, engine.ModeCumulative, engine.ModeIncrement:
		opts.Mode = engine.KPIMode(o.Mode)
	default:
		return opts, fmt.Errorf("unknown mode %q (want current, cumulative or increment)", o.Mode)
	}
	return opts, nil
}

// request builds the AnalysisRequest for the flags.
func (o *dataOptions) request(cliCtx *CLIContext) (engine.AnalysisRequest, error) {
	f, err := o.filterState()
	if err != nil {
		return engine.AnalysisRequest{}, err
	}
	opts, err := o.kpiOptions(cliCtx)
	if err != nil {
		return engine.AnalysisRequest{}, err
	}
	return engine.AnalysisRequest{Filters: f, KPI: opts, CurrentWeek: o.CurrentWeek}, nil
}

// dataset is a loaded CSV.
type dataset struct {
	View    engine.RecordView
	Import  *helpers.Import
	Version string
}

// comma returns the --delimiter rune.
func (o *dataOptions) comma() (rune, error) {
	if o.Delimiter == "tab" || o.Delimiter == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(o.Delimiter)
	if size == 0 || size != len(o.Delimiter) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q (want one character or tab)", o.Delimiter)
	}
	return r, nil
}

// load reads and parses the CSV. Version hashes the content and the
// delimiter, and keys the KPI cache.
func (o *dataOptions) load(cliCtx *CLIContext) (*dataset, error) {
	comma, err := o.comma()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(o.File)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.File, err)
	}
	view, im, err := helpers.ParseCSVView(data,
		helpers.WithSchemaOptions(cliCtx.Config.SchemaOptions()),
		helpers.WithComma(comma),
		helpers.WithLogger(cliCtx.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", o.File, err)
	}
	if len(im.Issues) > 0 {
		cliCtx.Logger.Warn("rows rejected during import",
			logging.String("file", o.File),
			logging.Int("rejected", len(im.Issues)),
		)
	}
	return &dataset{
		View:    view,
		Import:  im,
		Version: contentVersion(data, comma),
	}, nil
}

func contentVersion(data []byte, comma rune) string {
	d := xxhash.New()
	_, _ = d.Write(data)
	if comma != ',' {
		_, _ = d.WriteString(string(comma))
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
