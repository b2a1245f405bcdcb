package ingest

import (
	"fmt"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// sheet is one parsed sheet: its name and raw cell text, row-major.
// Formats that store cell types fill values, aligned with grid; a nil
// values means every cell is typed from its text.
type sheet struct {
	name   string
	grid   [][]string
	values [][]table.Value
}

// Source is a parsed data file. It is safe to call Table repeatedly;
// each call builds a fresh Table.
type Source struct {
	Kind   FileKind
	sheets []sheet
}

// Open parses data as the given kind.
// Parse failures are returned as *UnreadableFileError.
func Open(data []byte, kind FileKind) (*Source, error) {
	if len(data) == 0 {
		return nil, unreadable(kind, ErrEmptyFile)
	}

	var (
		sheets []sheet
		err    error
	)
	switch kind {
	case KindXLSX:
		sheets, err = readXLSX(data)
	case KindXLS:
		sheets, err = readXLS(data)
	case KindCSV:
		sheets, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return nil, unreadable(kind, err)
	}
	if len(sheets) == 0 {
		return nil, unreadable(kind, fmt.Errorf("no sheets in file"))
	}

	return &Source{Kind: kind, sheets: sheets}, nil
}

// OpenNamed is Open with the kind taken from the file name's extension.
func OpenNamed(name string, data []byte) (*Source, error) {
	kind, err := KindFromName(name)
	if err != nil {
		return nil, err
	}
	return Open(data, kind)
}

// SheetNames returns the sheet names in file order.
func (s *Source) SheetNames() []string {
	names := make([]string, len(s.sheets))
	for i, sh := range s.sheets {
		names[i] = sh.name
	}
	return names
}

// DefaultSheet returns the name of the first sheet.
func (s *Source) DefaultSheet() string {
	return s.sheets[0].name
}

// Table builds the Table for the named sheet.
// An empty name selects the first sheet.
func (s *Source) Table(name string) (*table.Table, error) {
	if name == "" {
		return s.sheets[0].build(), nil
	}
	for _, sh := range s.sheets {
		if sh.name == name {
			return sh.build(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q (available: %v)", ErrSheetNotFound, name, s.SheetNames())
}

// Preview returns at most n rows of t for display.
func Preview(t *table.Table, n int) *table.Table {
	return t.Head(n)
}
