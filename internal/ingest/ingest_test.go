package ingest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// workbook builds an xlsx file with one sheet per name, each holding rows.
func workbook(t *testing.T, sheets []string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for r, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOpen_XLSX_AllSheetsInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d sheets", n), func(t *testing.T) {
			var names []string
			for i := 0; i < n; i++ {
				names = append(names, fmt.Sprintf("TB %d", i+1))
			}
			data := workbook(t, names, [][]any{{"account", "amount"}, {"1000", 10}})

			src, err := OpenNamed("tb.xlsx", data)
			if err != nil {
				t.Fatalf("OpenNamed() error = %v", err)
			}
			if diff := cmp.Diff(names, src.SheetNames()); diff != "" {
				t.Errorf("SheetNames() mismatch (-want +got):\n%s", diff)
			}
			if got := src.DefaultSheet(); got != names[0] {
				t.Errorf("DefaultSheet() = %q, want %q", got, names[0])
			}
		})
	}
}

func TestOpen_XLSX_Table(t *testing.T) {
	data := workbook(t, []string{"Data"}, [][]any{
		{"column1", "column2", "column3"},
		{"a", "x", 1},
		{"b", "y", -2.5},
	})

	src, err := Open(data, KindXLSX)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	tb, err := src.Table("Data")
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	want := [][]table.Value{{"a", "x", float64(1)}, {"b", "y", -2.5}}
	if diff := cmp.Diff(want, tb.Rows()); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}

	if _, err := src.Table("Q4"); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("Table(Q4) error = %v, want ErrSheetNotFound", err)
	}
}

func TestOpen_XLSX_KeepsCellTypes(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	dateFmt := "dd/mm/yyyy"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		t.Fatal(err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		t.Fatal(err)
	}

	cells := map[string]any{
		"A1": "patient_id", "B1": "visit", "C1": "paid",
		"A2": "00123", "B2": 38719, "C2": true,
		"A3": "TRUE", "B3": 1234.5, "C3": "(2.50)",
	}
	for axis, v := range cells {
		if err := f.SetCellValue("Sheet1", axis, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SetCellStyle("Sheet1", "B2", "B2", dateStyle); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle("Sheet1", "B3", "B3", moneyStyle); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	src, err := Open(buf.Bytes(), KindXLSX)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	tb, err := src.Table("")
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	want := [][]table.Value{
		{"00123", time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"TRUE", 1234.5, "(2.50)"},
	}
	if diff := cmp.Diff(want, tb.Rows()); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"dd/mm/yyyy", true},
		{"m/d/yy h:mm", true},
		{"hh:mm:ss", true},
		{"#,##0.00", false},
		{"0.00%", false},
		{`"days" 0`, false},
		{"[Red]#,##0;[Blue](#,##0)", false},
		{`$#,##0.00_);($#,##0.00)`, false},
		{"General", false},
	}
	for _, tt := range tests {
		if got := isDateFormatCode(tt.code); got != tt.want {
			t.Errorf("isDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestOpen_CSV(t *testing.T) {
	data := []byte("\ufeffcolumn1,column2,column3\na,x,1\n,,\nb,\"y, z\",(2.50)\n")

	src, err := OpenNamed("data.CSV", data)
	if err != nil {
		t.Fatalf("OpenNamed() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Sheet1"}, src.SheetNames()); diff != "" {
		t.Errorf("SheetNames() mismatch (-want +got):\n%s", diff)
	}

	tb, err := src.Table("")
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if diff := cmp.Diff([]string{"column1", "column2", "column3"}, tb.Columns()); diff != "" {
		t.Errorf("Columns() mismatch, BOM not stripped? (-want +got):\n%s", diff)
	}
	want := [][]table.Value{{"a", "x", float64(1)}, {"b", "y, z", -2.5}}
	if diff := cmp.Diff(want, tb.Rows()); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{"empty", "a.csv", nil, ErrEmptyFile},
		{"unsupported", "a.pdf", []byte("x"), ErrUnsupportedKind},
		{"no extension", "data", []byte("x"), ErrUnsupportedKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenNamed(tt.file, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("OpenNamed() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpen_Unreadable(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"corrupt xlsx", "a.xlsx", []byte("definitely not a zip archive")},
		{"corrupt xls", "a.xls", []byte("definitely not a BIFF workbook")},
		{"invalid utf-8", "a.csv", []byte("a,b\n\xff\xfe,1\n")},
		{"stray quote", "a.csv", []byte("a,b\n\"x,1\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenNamed(tt.file, tt.data)
			var ue *UnreadableFileError
			if !errors.As(err, &ue) {
				t.Fatalf("OpenNamed() error = %v, want *UnreadableFileError", err)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	src, err := Open([]byte("n\n1\n2\n3\n4\n"), KindCSV)
	if err != nil {
		t.Fatal(err)
	}
	tb, _ := src.Table("")
	if got := Preview(tb, 2).Len(); got != 2 {
		t.Errorf("Preview(2).Len() = %d, want 2", got)
	}
	if got := tb.Len(); got != 4 {
		t.Errorf("source table changed by Preview: Len() = %d", got)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    FileKind
		wantErr bool
	}{
		{".xlsx", KindXLSX, false},
		{"XLS", KindXLS, false},
		{" csv ", KindCSV, false},
		{"xlsm", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v, want %q, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
	if !KindXLS.IsSpreadsheet() || KindCSV.IsSpreadsheet() {
		t.Error("IsSpreadsheet() wrong")
	}
}

func TestBuildTable_Headers(t *testing.T) {
	tb := buildTable([][]string{
		{"a", "", "a", "a"},
		{"1", "2", "3", "4", "5"},
	})
	want := []string{"a", "Unnamed: 1", "a.1", "a.2", "Unnamed: 4"}
	if diff := cmp.Diff(want, tb.Columns()); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTable_Empty(t *testing.T) {
	tb := buildTable([][]string{{"", " "}, nil})
	if tb.Width() != 0 || tb.Len() != 0 {
		t.Errorf("buildTable(blank) = %s, want empty", tb)
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want table.Value
	}{
		{"", nil},
		{"  ", nil},
		{"TRUE", true},
		{"false", false},
		{"42", float64(42)},
		{"-3.5e2", float64(-350)},
		{"$1,234.50", 1234.5},
		{"(100)", float64(-100)},
		{"\u20ac7", float64(7)},
		{"1,2", "1,2"},
		{"2024-03-31", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"3/31/2024", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"31-Mar-24", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"Cash", "Cash"},
	}
	for _, tt := range tests {
		got := parseCell(tt.in)
		if !table.ValuesEqual(got, tt.want) {
			t.Errorf("parseCell(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate_TwoDigitPivot(t *testing.T) {
	got, ok := parseDate("1/2/99")
	if !ok {
		t.Fatal("parseDate(1/2/99) failed")
	}
	if got.Year() != 1999 {
		t.Errorf("year = %d, want 1999", got.Year())
	}
}
