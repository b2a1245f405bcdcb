// Package report turns check results into something people can read:
// display sections for the screen and a multi-sheet workbook for download.
package report

import (
	"fmt"

	"github.com/JonMunkholm/tbcheck/internal/check"
	"github.com/JonMunkholm/tbcheck/internal/table"
)

// Status is the display state of one section.
type Status string

const (
	StatusPass        Status = "pass"         // no failing rows
	StatusFail        Status = "fail"         // failing rows to show
	StatusPassThrough Status = "pass-through" // the rule handed back the whole data set
	StatusMessage     Status = "message"
	StatusError       Status = "error"
)

// DefaultPreviewRows caps the rows copied into a section.
const DefaultPreviewRows = 50

// Section is one display unit: a rule's table, one key of a rule's mapping,
// a message or an error.
type Section struct {
	Entry     string     `json:"entry"`
	Key       string     `json:"key,omitempty"`
	Title     string     `json:"title"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Columns   []string   `json:"columns,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	RowCount  int        `json:"rowCount"`
	Truncated bool       `json:"truncated,omitempty"`
}

// Report is the rendered form of a whole run.
type Report struct {
	Sections []Section `json:"sections"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Messages int       `json:"messages"`
	Errors   int       `json:"errors"`
}

// Options tunes rendering.
type Options struct {
	MaxRows int          // preview rows per section; 0 selects DefaultPreviewRows
	Input   *table.Table // the checked table, used to spot pass-through results
}

// Render builds one section per table, per mapping key (sorted), per message
// and per error, in result order.
func Render(results *check.Results, opts Options) *Report {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultPreviewRows
	}

	sole, isSole := results.Sole()
	passThrough := isSole && opts.Input != nil && !sole.IsEmpty() && sole.Equal(opts.Input)

	rep := &Report{}
	for _, r := range results.All() {
		switch r.Kind {
		case check.KindTable:
			s := tableSection(r.Entry, "", r.Table, opts.MaxRows)
			if passThrough {
				s.Status = StatusPassThrough
				s.Message = "No failing rows; the rule returned the full data set"
			}
			rep.add(s)

		case check.KindMapping:
			if len(r.Mapping) == 0 {
				rep.add(Section{Entry: r.Entry, Title: r.Entry, Status: StatusPass, Message: "No checks reported"})
			}
			for _, key := range r.Keys() {
				rep.add(tableSection(r.Entry, key, r.Mapping[key], opts.MaxRows))
			}

		case check.KindMessage:
			rep.add(Section{Entry: r.Entry, Title: r.Entry, Status: StatusMessage, Message: r.Message})

		case check.KindError:
			msg := "rule failed"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			rep.add(Section{Entry: r.Entry, Title: r.Entry, Status: StatusError, Message: msg})

		default:
			rep.add(Section{
				Entry:   r.Entry,
				Title:   r.Entry,
				Status:  StatusError,
				Message: fmt.Sprintf("unknown result kind %s", r.Kind),
			})
		}
	}
	return rep
}

func (rep *Report) add(s Section) {
	switch s.Status {
	case StatusPass, StatusPassThrough:
		rep.Passed++
	case StatusFail:
		rep.Failed++
	case StatusMessage:
		rep.Messages++
	case StatusError:
		rep.Errors++
	}
	rep.Sections = append(rep.Sections, s)
}

// tableSection renders a failing-rows table; empty tables pass.
func tableSection(entry, key string, t *table.Table, maxRows int) Section {
	title := entry
	if key != "" {
		title = key
	}
	s := Section{
		Entry:    entry,
		Key:      key,
		Title:    title,
		Columns:  t.Columns(),
		RowCount: t.Len(),
	}
	if t.IsEmpty() {
		s.Status = StatusPass
		s.Message = "All checks passed"
		return s
	}

	s.Status = StatusFail
	s.Message = fmt.Sprintf("%d row(s) failed", t.Len())
	s.Rows = FormatRows(t.Head(maxRows))
	s.Truncated = t.Len() > maxRows
	return s
}

// FormatRows renders every cell of t as display text.
func FormatRows(t *table.Table) [][]string {
	out := make([][]string, t.Len())
	for i, row := range t.Rows() {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = table.FormatValue(v)
		}
		out[i] = cells
	}
	return out
}
