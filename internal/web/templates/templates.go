// Package templates holds the HTML views of the web UI as templ components.
// Page renders the upload form; the rest are HTMX fragments.
package templates

//go:generate templ generate

import (
	"fmt"

	"github.com/JonMunkholm/tbcheck/internal/core"
	"github.com/JonMunkholm/tbcheck/internal/report"
)

// PageParams configures the upload page.
type PageParams struct {
	Modes       []string
	DefaultMode string
	MaxFileMB   int64
	Allowed     []string // importable packages for rule files
}

func statusClass(s report.Status) string {
	switch s {
	case report.StatusPass, report.StatusPassThrough:
		return "ok"
	case report.StatusFail:
		return "warn"
	case report.StatusError:
		return "err"
	default:
		return "info"
	}
}

func downloadURL(runID string) string {
	return "/api/runs/" + runID + "/download"
}

// runTarget names the checked data as "file / sheet", or just the file for
// single-sheet inputs.
func runTarget(dataFile, sheet string) string {
	if sheet == "" {
		return dataFile
	}
	return dataFile + " / " + sheet
}

func runLine(res *core.RunResult) string {
	return fmt.Sprintf("%s checked with %s in %d ms.", plural(res.Rows, "row"), res.RulesOrigin, res.DurationMS)
}

func sheetSummary(s core.SheetPreview) string {
	return fmt.Sprintf("%s: %s, %s", s.Name, plural(s.RowCount, "row"), plural(len(s.Columns), "column"))
}

func failingRows(sec report.Section) string {
	msg := plural(sec.RowCount, "failing row")
	if sec.Truncated {
		msg += fmt.Sprintf(", first %d shown", len(sec.Rows))
	}
	return msg
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
