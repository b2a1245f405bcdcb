package ingest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// readXLSX reads every sheet of an OOXML workbook. Cells keep the type the
// workbook stores: text cells stay text even when they look like numbers,
// numeric cells become float64, or time.Time when formatted as a date.
func readXLSX(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := &xlsxReader{f: f, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		sh, err := r.sheet(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		sheets = append(sheets, sh)
	}
	return sheets, nil
}

type xlsxReader struct {
	f          *excelize.File
	date1904   bool
	dateStyles map[int]bool // style index -> number format shows a date
}

func (r *xlsxReader) sheet(name string) (sheet, error) {
	shown, err := r.f.GetRows(name)
	if err != nil {
		return sheet{}, err
	}
	raw, err := r.f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return sheet{}, err
	}

	values := make([][]table.Value, len(shown))
	for i, row := range shown {
		values[i] = make([]table.Value, len(row))
		for j, text := range row {
			if strings.TrimSpace(text) == "" {
				continue
			}
			rawText := text
			if i < len(raw) && j < len(raw[i]) {
				rawText = raw[i][j]
			}
			v, err := r.cell(name, i, j, text, rawText)
			if err != nil {
				return sheet{}, err
			}
			values[i][j] = v
		}
	}
	return sheet{name: name, grid: shown, values: values}, nil
}

// cell types one non-blank cell at zero-based row i, column j.
func (r *xlsxReader) cell(name string, i, j int, shown, raw string) (table.Value, error) {
	axis, err := excelize.CoordinatesToCellName(j+1, i+1)
	if err != nil {
		return nil, err
	}
	typ, err := r.f.GetCellType(name, axis)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return shown, nil
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, nil
		}
		if t, ok := parseDate(raw); ok {
			return t, nil
		}
		return shown, nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return parseCell(shown), nil
	}
	isDate, err := r.dateStyled(name, axis)
	if err != nil {
		return nil, err
	}
	if isDate {
		if t, err := excelize.ExcelDateToTime(n, r.date1904); err == nil {
			return t, nil
		}
	}
	return n, nil
}

// dateStyled reports whether the cell's number format displays a date or time.
func (r *xlsxReader) dateStyled(name, axis string) (bool, error) {
	idx, err := r.f.GetCellStyle(name, axis)
	if err != nil {
		return false, err
	}
	if v, ok := r.dateStyles[idx]; ok {
		return v, nil
	}
	style, err := r.f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	v := isDateNumFmt(style.NumFmt)
	if style.CustomNumFmt != nil {
		v = isDateFormatCode(*style.CustomNumFmt)
	}
	r.dateStyles[idx] = v
	return v, nil
}

// isDateNumFmt reports whether a built-in number format id is a date or time.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format shows date or
// time parts. Quoted literals, escapes and [..] sections (colors, locales,
// conditions) are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"':
			for i++; i < len(code) && code[i] != '"'; i++ {
			}
		case '[':
			for i++; i < len(code) && code[i] != ']'; i++ {
			}
		case '\\', '_', '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydhs")
}
