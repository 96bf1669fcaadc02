package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	appstatement "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
)

// Common workbook errors
var (
	// ErrEmptyWorkbook is returned when the uploaded file has no content
	ErrEmptyWorkbook = errors.New("workbook is empty")

	// ErrNoSheets is returned when the workbook contains no sheets
	ErrNoSheets = errors.New("workbook contains no sheets")

	// ErrMissingHeader is returned when the sheet has no usable header row
	ErrMissingHeader = errors.New("workbook missing header row")
)

// ExcelReader parses xlsx workbooks into string-keyed rows. The first row
// of the sheet is the header; every later row is keyed by the normalized
// header titles.
type ExcelReader struct {
	sheetName string
}

// ReaderOption is a functional option for ExcelReader configuration
type ReaderOption func(*ExcelReader)

// WithSheetName reads the named sheet instead of the workbook's first sheet
func WithSheetName(name string) ReaderOption {
	return func(r *ExcelReader) {
		r.sheetName = name
	}
}

// NewExcelReader creates a new ExcelReader
func NewExcelReader(opts ...ReaderOption) *ExcelReader {
	reader := &ExcelReader{}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Rows parses workbook bytes into ordered data rows. Cells under an
// unnamed column are dropped, rows with no non-empty cells are skipped,
// and a header-only sheet yields zero rows. Row count limits are the
// caller's concern.
func (r *ExcelReader) Rows(data []byte) ([]appstatement.WorkbookRow, error) {
	if len(data) == 0 {
		return nil, ErrEmptyWorkbook
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := r.sheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, ErrNoSheets
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(cells) == 0 {
		return nil, ErrMissingHeader
	}

	// Duplicate titles resolve to the rightmost column.
	headers := make([]string, len(cells[0]))
	named := 0
	for i, title := range cells[0] {
		headers[i] = NormalizeHeader(title)
		if headers[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil, ErrMissingHeader
	}

	rows := make([]appstatement.WorkbookRow, 0, len(cells)-1)
	for _, record := range cells[1:] {
		row := make(appstatement.WorkbookRow, named)
		empty := true
		for i, header := range headers {
			if header == "" {
				continue
			}
			// GetRows drops trailing empty cells, so records can be
			// shorter than the header.
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			row[header] = value
			if value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// NormalizeHeader lowercases a column title and joins its words with
// underscores, so "Property Name" and "property_name" address the same
// column.
func NormalizeHeader(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "_")
}

var _ appstatement.SpreadsheetReader = (*ExcelReader)(nil)
