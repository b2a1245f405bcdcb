package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// thousandsRegex matches numbers grouped with commas, e.g. 1,234,567.89.
var thousandsRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// TwoDigitYearPivot decides the century of two-digit years: a year that would
// land more than this many years in the future is moved back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
		"1/2/06 15:04", "1/2/06 15:04:05", "2-Jan-06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00", "2006-01-02 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"1/2/2006 15:04", "1/2/2006 15:04:05",
		"Jan 2, 2006", "2 Jan 2006", "02-Jan-2006",
	}
)

// buildTable turns a raw grid of cell text into a Table.
func buildTable(grid [][]string) *table.Table {
	return sheet{grid: grid}.build()
}

// build turns the sheet into a Table: the first non-blank row is the
// header, blank rows are dropped and every cell is typed.
func (sh sheet) build() *table.Table {
	keep := make([]int, 0, len(sh.grid))
	width := 0
	for i, r := range sh.grid {
		if isBlankRow(r) {
			continue
		}
		keep = append(keep, i)
		width = max(width, len(r))
	}
	if len(keep) == 0 {
		return table.Empty()
	}

	header := headerNames(sh.grid[keep[0]], width)
	rows := make([][]table.Value, 0, len(keep)-1)
	for _, i := range keep[1:] {
		row := make([]table.Value, width)
		for j, text := range sh.grid[i] {
			row[j] = sh.value(i, j, text)
		}
		rows = append(rows, row)
	}
	return table.New(header, rows)
}

// value returns the typed cell at row i, column j. Cells the file typed
// itself come from values; the rest are typed from their text.
func (sh sheet) value(i, j int, text string) table.Value {
	if sh.values == nil {
		return parseCell(text)
	}
	if i < len(sh.values) && j < len(sh.values[i]) {
		return sh.values[i][j]
	}
	return nil
}

// headerNames names every column: blanks become "Unnamed: i",
// repeats get a ".n" suffix.
func headerNames(raw []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for j := 0; j < width; j++ {
		name := ""
		if j < len(raw) {
			name = strings.TrimSpace(raw[j])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", j)
		}
		base := name
		for seen[name] > 0 {
			name = fmt.Sprintf("%s.%d", base, seen[base])
			seen[base]++
		}
		seen[name]++
		names[j] = name
	}
	return names
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseCell types a single cell.
func parseCell(s string) table.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if f, ok := parseNumber(s); ok {
		return f
	}
	if t, ok := parseDate(s); ok {
		return t
	}
	return s
}

// parseNumber accepts plain numbers plus currency symbols, thousands
// separators and accounting-style negatives "(123.45)".
func parseNumber(s string) (float64, bool) {
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "\u20ac")
	s = strings.TrimPrefix(s, "\u00a3")
	s = strings.TrimSpace(s)

	if thousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// parseDate tries the known layouts, four-digit years first.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}
