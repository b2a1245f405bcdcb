package report

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/tbcheck/internal/check"
	"github.com/JonMunkholm/tbcheck/internal/table"
)

func TestRender_Statuses(t *testing.T) {
	results := check.NewResults(
		check.TableResult("Negatives", rowsTable(2)),
		check.TableResult("Blanks", table.Empty("account")),
		check.MappingResult("Multi", map[string]*table.Table{"b": rowsTable(1), "a": nil}),
		check.MessageResult("Note", "Error: missing required columns: column3"),
		check.ErrorResult("Broken", errors.New("boom")),
	)

	rep := Render(results, Options{})

	var got []Status
	var titles []string
	for _, s := range rep.Sections {
		got = append(got, s.Status)
		titles = append(titles, s.Title)
	}
	want := []Status{StatusFail, StatusPass, StatusPass, StatusFail, StatusMessage, StatusError}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Negatives", "Blanks", "a", "b", "Note", "Broken"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if rep.Passed != 2 || rep.Failed != 2 || rep.Messages != 1 || rep.Errors != 1 {
		t.Errorf("counts = %+v", rep)
	}
}

func TestRender_Truncates(t *testing.T) {
	rep := Render(check.NewResults(check.TableResult("Big", rowsTable(10))), Options{MaxRows: 3})
	s := rep.Sections[0]
	if len(s.Rows) != 3 || !s.Truncated || s.RowCount != 10 {
		t.Errorf("section = %d rows, truncated %v, count %d; want 3, true, 10", len(s.Rows), s.Truncated, s.RowCount)
	}
	if diff := cmp.Diff([]string{"acct", "-1"}, s.Rows[0]); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_PassThrough(t *testing.T) {
	input := rowsTable(2)

	rep := Render(check.NewResults(check.TableResult("CheckRules", input)), Options{Input: input})
	if got := rep.Sections[0].Status; got != StatusPassThrough {
		t.Errorf("Status = %q, want pass-through", got)
	}

	// A filtered subset is a real failure, not pass-through.
	sub := input.Head(1)
	rep = Render(check.NewResults(check.TableResult("CheckRules", sub)), Options{Input: input})
	if got := rep.Sections[0].Status; got != StatusFail {
		t.Errorf("Status = %q, want fail", got)
	}

	// With several rules, an identical table is still reported as failing rows.
	rep = Render(check.NewResults(
		check.TableResult("A", input),
		check.MessageResult("B", "x"),
	), Options{Input: input})
	if got := rep.Sections[0].Status; got != StatusFail {
		t.Errorf("Status = %q, want fail", got)
	}
}

func TestRender_EmptyMapping(t *testing.T) {
	rep := Render(check.NewResults(check.MappingResult("M", nil)), Options{})
	if len(rep.Sections) != 1 || rep.Sections[0].Status != StatusPass {
		t.Errorf("sections = %+v, want one pass section", rep.Sections)
	}
}
