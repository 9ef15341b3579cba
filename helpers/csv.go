package helpers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
	"github.com/spektr-org/weekpi/schema"
)

// ============================================================================
// CSV HELPER: Parses weekly exports into validated Records
// ============================================================================
// Consumer reads the CSV from wherever it lives (file, object store, upload).
// This helper turns the bytes into raw rows keyed by header and hands them
// to schema.FromRawRows, which resolves aliases, normalizes and validates.
// ============================================================================

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("helpers: csv has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// discoverRows is how many data rows header discovery samples.
const discoverRows = 200

// Import is the outcome of one CSV parse.
type Import struct {
	Headers []string          `json:"headers"`
	Rows    int               `json:"rows"`
	Records []schema.Record   `json:"-"`
	Issues  []schema.RowIssue `json:"issues,omitempty"`
	// Columns reports how each header resolved onto Record fields.
	Columns schema.HeaderReport `json:"columns"`
	// Malformed counts rows the CSV reader itself rejected.
	Malformed int `json:"malformed"`
}

// Accepted is the number of rows that became Records.
func (im *Import) Accepted() int { return len(im.Records) }

// CSVOption configures ParseCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	schema schema.Options
	comma  rune
	logger logging.Logger
}

// WithSchemaOptions passes normalization settings to schema.FromRawRows.
func WithSchemaOptions(o schema.Options) CSVOption {
	return func(c *csvConfig) { c.schema = o }
}

// WithComma sets the field delimiter (default ',').
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) { c.comma = r }
}

// WithLogger sets the logger used for the import summary.
func WithLogger(l logging.Logger) CSVOption {
	return func(c *csvConfig) { c.logger = logging.OrNop(l) }
}

// ParseCSV parses CSV bytes into Records. Rows failing normalization or
// validation are reported in Import.Issues and left out of Records; row
// numbers in issues are 0-based data rows (header excluded).
func ParseCSV(data []byte, opts ...CSVOption) (*Import, error) {
	return ReadCSV(bytes.NewReader(data), opts...)
}

// ReadCSV is ParseCSV over a reader.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Import, error) {
	cfg := csvConfig{comma: ',', logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("helpers: read csv header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = string(bytes.TrimPrefix([]byte(headers[0]), utf8BOM))
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	im := &Import{Headers: headers}
	var (
		rows    []map[string]any
		samples [][]string
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			im.Malformed++
			cfg.logger.Debug("skipping malformed csv row", logging.Err(err))
			continue
		}
		if blank(row) {
			continue
		}
		if len(samples) < discoverRows {
			samples = append(samples, row)
		}

		raw := make(map[string]any, len(headers))
		for i, val := range row {
			if i >= len(headers) || headers[i] == "" {
				break
			}
			// A repeated header keeps its first column.
			if _, dup := raw[headers[i]]; dup {
				continue
			}
			raw[headers[i]] = val
		}
		rows = append(rows, raw)
	}

	im.Rows = len(rows)
	im.Records, im.Issues = schema.FromRawRows(rows, cfg.schema)

	discover := schema.DefaultDiscoverOptions()
	discover.Normalize = cfg.schema
	im.Columns = schema.DiscoverHeaders(headers, samples, discover)
	if len(im.Columns.MissingRequired) > 0 {
		cfg.logger.Warn("csv lacks required columns",
			logging.Any("fields", im.Columns.MissingRequired),
		)
	}

	cfg.logger.Info("csv imported",
		logging.Int("rows", im.Rows),
		logging.Int("accepted", im.Accepted()),
		logging.Int("rejected", len(im.Issues)),
		logging.Int("malformed", im.Malformed),
	)
	return im, nil
}

// ParseCSVView parses CSV into a RecordView (convenience wrapper).
func ParseCSVView(data []byte, opts ...CSVOption) (engine.RecordView, *Import, error) {
	im, err := ParseCSV(data, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine.BindRecords(im.Records), im, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
