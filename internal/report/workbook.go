package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tbcheck/internal/check"
	"github.com/JonMunkholm/tbcheck/internal/table"
)

const (
	// FileName is the download name of the result workbook.
	FileName = "all_results.xlsx"

	// ContentType is the OOXML spreadsheet MIME type.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// MaxSheetNameLen is the sheet name limit of the spreadsheet format.
	MaxSheetNameLen = 31
)

// ErrNoSheets is returned when a run produced nothing to export.
var ErrNoSheets = errors.New("no results to export")

// SerializationError reports a failure while writing the workbook.
type SerializationError struct {
	Sheet string
	Err   error
}

func (e *SerializationError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("export failed: %v", e.Err)
	}
	return fmt.Sprintf("export failed on sheet %q: %v", e.Sheet, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Sheet is one exported table.
type Sheet struct {
	Name  string // unique, sanitized, at most MaxSheetNameLen runes
	Entry string // rule that produced it
	Key   string // mapping key, empty for table results
	Table *table.Table
}

// Workbook is the ordered set of sheets built from one run.
type Workbook struct {
	Sheets []Sheet
}

// BuildWorkbook adds one sheet per table result and one per mapping key.
// Messages and errors add nothing.
func BuildWorkbook(results *check.Results) *Workbook {
	wb := &Workbook{}
	names := newSheetNamer()

	for _, r := range results.All() {
		switch r.Kind {
		case check.KindTable:
			wb.Sheets = append(wb.Sheets, Sheet{
				Name:  names.next(r.Entry),
				Entry: r.Entry,
				Table: r.Table,
			})
		case check.KindMapping:
			for _, key := range r.Keys() {
				wb.Sheets = append(wb.Sheets, Sheet{
					Name:  names.next(key),
					Entry: r.Entry,
					Key:   key,
					Table: r.Mapping[key],
				})
			}
		}
	}
	return wb
}

// Len returns the number of sheets.
func (w *Workbook) Len() int {
	return len(w.Sheets)
}

// SheetNames returns the sheet names in order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Bytes serializes the workbook as xlsx.
func (w *Workbook) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo serializes the workbook as xlsx into out.
// Returns ErrNoSheets when there is nothing to write.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	if len(w.Sheets) == 0 {
		return 0, ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, &SerializationError{Err: err}
	}

	for i, s := range w.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return 0, &SerializationError{Sheet: s.Name, Err: err}
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return 0, &SerializationError{Sheet: s.Name, Err: err}
		}
		if err := writeSheet(f, s.Name, s.Table, header); err != nil {
			return 0, &SerializationError{Sheet: s.Name, Err: err}
		}
	}
	f.SetActiveSheet(0)

	n, err := f.WriteTo(out)
	if err != nil {
		return n, &SerializationError{Err: err}
	}
	return n, nil
}

// writeSheet writes the header row and then one row per table row.
func writeSheet(f *excelize.File, name string, t *table.Table, headerStyle int) error {
	if t.Width() == 0 {
		return nil
	}

	head := make([]any, t.Width())
	for j, c := range t.Columns() {
		head[j] = c
	}
	if err := f.SetSheetRow(name, "A1", &head); err != nil {
		return err
	}
	if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, row := range t.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = cellValue(v)
		}
		if err := f.SetSheetRow(name, cell, &vals); err != nil {
			return err
		}
	}
	return nil
}

// cellValue maps a table value onto what excelize writes natively.
func cellValue(v table.Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64, string, bool, time.Time:
		return x
	default:
		return table.FormatValue(x)
	}
}

// invalidSheetChars are rejected in sheet names by the spreadsheet format.
const invalidSheetChars = `:\/?*[]`

// sheetNamer hands out unique sheet names. Uniqueness is case-insensitive,
// matching how spreadsheet applications compare sheet names.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

// next sanitizes raw, truncates it to MaxSheetNameLen runes and appends
// "~n" when the result is already taken.
func (n *sheetNamer) next(raw string) string {
	base := SanitizeSheetName(raw)
	name := trimSheetEdges(truncateRunes(base, MaxSheetNameLen))
	for i := 1; n.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		name = trimSheetEdges(truncateRunes(base, MaxSheetNameLen-len(suffix))) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

// SanitizeSheetName replaces characters the format forbids and trims
// leading and trailing apostrophes and spaces. Blank names become "Sheet".
func SanitizeSheetName(raw string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, raw)
	name = trimSheetEdges(name)
	if name == "" {
		return "Sheet"
	}
	if strings.EqualFold(name, "History") {
		return name + "_"
	}
	return name
}

// trimSheetEdges strips apostrophes and spaces from both ends. A sheet
// name may not start or end with an apostrophe.
func trimSheetEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '\'' || unicode.IsSpace(r)
	})
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
