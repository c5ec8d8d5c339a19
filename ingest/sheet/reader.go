package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rosterline/rosterline/errors"
)

// ErrNotFound indicates the workbook file does not exist.
var ErrNotFound = errors.New("workbook not found")

// ErrInvalidFormat indicates an unsupported extension or corrupt content.
var ErrInvalidFormat = errors.New("invalid workbook format")

// MissingSheetsError reports required sheets absent from a workbook.
type MissingSheetsError struct {
	Missing   []string
	Available []string
}

func (e *MissingSheetsError) Error() string {
	return fmt.Sprintf("missing required sheets: %s. Available sheets: %s",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// MissingColumnsError reports required columns absent from a sheet.
type MissingColumnsError struct {
	Sheet     string
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("sheet '%s' missing required columns: %s. Available columns: %s",
		e.Sheet, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Workbook reads a binary spreadsheet. Row 1 of each sheet is the header
// row; data rows are normalized per Record's value rules.
type Workbook struct {
	path string
	f    *excelize.File
}

// Open opens a workbook at the given path. Returns ErrNotFound when the file
// is absent and ErrInvalidFormat for unsupported extensions or content that
// cannot be parsed.
func Open(path string) (*Workbook, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
	default:
		return nil, errors.Wrapf(ErrInvalidFormat, "unsupported extension %q", filepath.Ext(path))
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "failed to load workbook: %v", err)
	}

	return &Workbook{path: path, f: f}, nil
}

// Close releases the workbook resources.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// SheetNames returns all sheet names in the workbook.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// HasSheet reports whether the named sheet exists.
func (w *Workbook) HasSheet(name string) bool {
	for _, s := range w.SheetNames() {
		if s == name {
			return true
		}
	}
	return false
}

// ValidateRequiredSheets checks that every required sheet exists, reporting
// all absentees at once.
func (w *Workbook) ValidateRequiredSheets(required []string) error {
	var missing []string
	for _, name := range required {
		if !w.HasSheet(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingSheetsError{Missing: missing, Available: w.SheetNames()}
	}
	return nil
}

// ColumnNames returns the header names of a sheet (row 1, blanks skipped).
func (w *Workbook) ColumnNames(sheetName string) ([]string, error) {
	headers, err := w.headers(sheetName)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		if h.name != "" {
			names = append(names, h.name)
		}
	}
	return names, nil
}

// ValidateRequiredColumns checks that a sheet carries every required column,
// reporting all absentees at once.
func (w *Workbook) ValidateRequiredColumns(sheetName string, required []string) error {
	actual, err := w.ColumnNames(sheetName)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(actual))
	for _, c := range actual {
		have[c] = true
	}

	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		sorted := append([]string(nil), actual...)
		sort.Strings(sorted)
		return &MissingColumnsError{Sheet: sheetName, Missing: missing, Available: sorted}
	}
	return nil
}

// ReadSheet materializes every data row of a sheet as a Record. Fully empty
// rows are skipped; each record carries its 1-indexed sheet row number.
func (w *Workbook) ReadSheet(sheetName string) ([]Record, error) {
	if !w.HasSheet(sheetName) {
		return nil, errors.Newf("sheet '%s' not found. Available sheets: %s",
			sheetName, strings.Join(w.SheetNames(), ", "))
	}

	headers, err := w.headers(sheetName)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.Newf("sheet '%s' has no headers in first row", sheetName)
	}

	rows, err := w.f.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet '%s'", sheetName)
	}

	var records []Record
	for i := 1; i < len(rows); i++ {
		rowNum := i + 1

		fields := make(map[string]any)
		for _, h := range headers {
			if h.name == "" {
				continue
			}
			value, err := w.cellValue(sheetName, h.col, rowNum)
			if err != nil {
				return nil, errors.Wrapf(err, "sheet '%s' row %d", sheetName, rowNum)
			}
			if value != nil {
				fields[h.name] = value
			}
		}

		// Skip completely empty rows
		if len(fields) == 0 {
			continue
		}

		records = append(records, Record{Row: rowNum, Fields: fields})
	}

	return records, nil
}

// RowCount returns the number of data rows in a sheet, excluding the header.
func (w *Workbook) RowCount(sheetName string) (int, error) {
	if !w.HasSheet(sheetName) {
		return 0, errors.Newf("sheet '%s' not found", sheetName)
	}
	rows, err := w.f.GetRows(sheetName)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read sheet '%s'", sheetName)
	}
	if len(rows) <= 1 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

type header struct {
	name string
	col  int // 1-indexed column
}

func (w *Workbook) headers(sheetName string) ([]header, error) {
	if !w.HasSheet(sheetName) {
		return nil, errors.Newf("sheet '%s' not found. Available sheets: %s",
			sheetName, strings.Join(w.SheetNames(), ", "))
	}

	rows, err := w.f.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet '%s'", sheetName)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]header, 0, len(rows[0]))
	for i, raw := range rows[0] {
		headers = append(headers, header{name: strings.TrimSpace(raw), col: i + 1})
	}
	return headers, nil
}

// cellValue reads one cell and normalizes it: date-styled numbers become
// UTC-midnight time.Time, other numbers float64, bools bool, strings are
// trimmed with blanks reported as nil (absent).
func (w *Workbook) cellValue(sheetName string, col, row int) (any, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}

	cellType, err := w.f.GetCellType(sheetName, cell)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeBool:
		raw, err := w.f.GetCellValue(sheetName, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		return raw == "1" || strings.EqualFold(raw, "true"), nil

	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return w.stringValue(sheetName, cell)

	case excelize.CellTypeDate:
		// ISO 8601 typed cell (rare; produced by some writers).
		raw, err := w.f.GetCellValue(sheetName, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05", raw)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cell %s has unparseable date", cell)
		}
		return normalizeDate(t), nil

	default:
		// Numeric cells carry no type attribute; try the raw value as a
		// number first, falling back to the formatted string.
		raw, err := w.f.GetCellValue(sheetName, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		if serial, perr := strconv.ParseFloat(raw, 64); perr == nil {
			isDate, derr := w.isDateStyled(sheetName, cell)
			if derr != nil {
				return nil, derr
			}
			if isDate {
				t, terr := excelize.ExcelDateToTime(serial, false)
				if terr != nil {
					return nil, errors.Wrapf(terr, "cell %s has unparseable date serial", cell)
				}
				return normalizeDate(t), nil
			}
			return serial, nil
		}
		return w.stringValue(sheetName, cell)
	}
}

func (w *Workbook) stringValue(sheetName, cell string) (any, error) {
	formatted, err := w.f.GetCellValue(sheetName, cell)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(formatted)
	if trimmed == "" {
		return nil, nil
	}
	return trimmed, nil
}

// isDateStyled reports whether a cell's number format renders it as a
// date or datetime.
func (w *Workbook) isDateStyled(sheetName, cell string) (bool, error) {
	styleID, err := w.f.GetCellStyle(sheetName, cell)
	if err != nil {
		return false, err
	}
	style, err := w.f.GetStyle(styleID)
	if err != nil {
		return false, err
	}

	if isBuiltInDateFmt(style.NumFmt) {
		return true, nil
	}
	if style.CustomNumFmt != nil {
		return isCustomDateFmt(*style.CustomNumFmt), nil
	}
	return false, nil
}

// Built-in number format IDs that render dates or times (ECMA-376 §18.8.30).
func isBuiltInDateFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36: // locale date formats
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58: // locale date formats
		return true
	default:
		return false
	}
}

// isCustomDateFmt scans a custom number format for date/time tokens,
// ignoring bracketed sections and quoted literals.
func isCustomDateFmt(format string) bool {
	inQuote := false
	inBracket := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		case c == '\\':
			i++ // skip escaped literal
		case c == 'y' || c == 'Y' || c == 'm' || c == 'M' || c == 'd' || c == 'D' || c == 'h' || c == 'H' || c == 's' || c == 'S':
			return true
		}
	}
	return false
}

// normalizeDate truncates a timestamp to a calendar date at UTC midnight.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
