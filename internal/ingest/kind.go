package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileKind is the declared format of an uploaded data file.
type FileKind string

const (
	KindXLSX FileKind = "xlsx"
	KindXLS  FileKind = "xls"
	KindCSV  FileKind = "csv"
)

// IsSpreadsheet reports whether the kind can hold more than one sheet.
func (k FileKind) IsSpreadsheet() bool {
	return k == KindXLSX || k == KindXLS
}

// ParseKind validates a kind given by name (case-insensitive, optional dot).
func ParseKind(s string) (FileKind, error) {
	switch k := FileKind(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); k {
	case KindXLSX, KindXLS, KindCSV:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// KindFromName derives the file kind from a file name's extension.
func KindFromName(name string) (FileKind, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedKind, name)
	}
	return ParseKind(ext)
}
