package core

import (
	"time"

	"github.com/JonMunkholm/tbcheck/internal/report"
)

// SheetPreview is the head of one sheet, ready for display.
type SheetPreview struct {
	Name     string     `json:"name"`
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"rowCount"`
}

// Inspection lists the sheets of an uploaded data file with a preview of each.
type Inspection struct {
	FileName string         `json:"fileName"`
	Kind     string         `json:"kind"`
	Sheets   []SheetPreview `json:"sheets"`
	Missing  []string       `json:"missing,omitempty"` // expected sheets the file lacks
}

// SheetNames returns the sheet names in file order.
func (in *Inspection) SheetNames() []string {
	names := make([]string, len(in.Sheets))
	for i, s := range in.Sheets {
		names[i] = s.Name
	}
	return names
}

// RulesInfo describes the entries found in a rule source.
type RulesInfo struct {
	Origin  string   `json:"origin"`
	Mode    string   `json:"mode"`
	Entries []string `json:"entries"`
}

// RunRequest is everything one run needs. Empty Rules selects the built-in
// default rule set; empty Mode selects the configured discovery mode.
type RunRequest struct {
	DataName  string
	Data      []byte
	RulesName string
	Rules     []byte
	Sheet     string
	Mode      string
	Allow     []string
}

// Download describes the workbook a run produced.
type Download struct {
	FileName  string    `json:"fileName"`
	Sheets    []string  `json:"sheets"`
	Size      int       `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RunResult is the outcome of a run that got past loading. Rule failures are
// inside Report; a workbook problem is in ExportError and does not hide the
// report.
type RunResult struct {
	ID          string         `json:"id"`
	DataFile    string         `json:"dataFile"`
	Sheet       string         `json:"sheet"`
	RulesOrigin string         `json:"rulesOrigin"`
	Mode        string         `json:"mode"`
	Entries     []string       `json:"entries"`
	Rows        int            `json:"rows"`
	Report      *report.Report `json:"report"`
	Download    *Download      `json:"download,omitempty"`
	ExportError error          `json:"-"`
	Export      *UserMessage   `json:"exportError,omitempty"`
	Output      string         `json:"output,omitempty"`
	Duration    time.Duration  `json:"-"`
	DurationMS  int64          `json:"durationMs"`
}
