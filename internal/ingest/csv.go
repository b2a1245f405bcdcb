package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"
)

// csvSheetName is the single sheet name reported for delimited text.
const csvSheetName = "Sheet1"

var errInvalidUTF8 = errors.New("encoding error: file is not valid UTF-8")

// readCSV parses comma-separated text. A leading UTF-8 BOM is skipped.
// Ragged rows are allowed; stray quotes are not.
func readCSV(data []byte) ([]sheet, error) {
	if !utf8.Valid(data) {
		return nil, errInvalidUTF8
	}

	r := csv.NewReader(newBOMSkippingReader(bytes.NewReader(data)))
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	var grid [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		grid = append(grid, rec)
	}
	return []sheet{{name: csvSheetName, grid: grid}}, nil
}
