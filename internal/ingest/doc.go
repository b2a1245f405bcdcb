// Package ingest reads uploaded data files into tables.
//
// Three file kinds are supported: OOXML workbooks (.xlsx), legacy binary
// workbooks (.xls) and comma-separated text (.csv). A file is parsed once by
// [Open]; the resulting [Source] lists its sheets in file order and builds a
// [table.Table] for whichever sheet the caller picks. An empty sheet name
// selects the first sheet.
//
// # Header and cell handling
//
// The first row of a sheet is its header. Blank header cells are named
// "Unnamed: <position>" and repeated names get ".1", ".2" suffixes so every
// column is addressable. Rows with no non-blank cells are dropped.
//
// Cells are typed on load:
//
//   - blank text becomes nil
//   - TRUE / FALSE (any case) becomes a bool
//   - numbers, including thousands separators, currency symbols and
//     accounting parentheses, become float64
//   - recognised date layouts become time.Time
//   - anything else stays a trimmed string
//
// Nothing is written to disk while loading.
package ingest
