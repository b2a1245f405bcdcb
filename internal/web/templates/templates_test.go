package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tbcheck/internal/core"
	"github.com/JonMunkholm/tbcheck/internal/report"
	"github.com/JonMunkholm/tbcheck/internal/store"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return b.String()
}

func TestPage(t *testing.T) {
	out := render(t, Page(PageParams{
		Modes:       []string{"prefix", "fixed-name"},
		DefaultMode: "fixed-name",
		MaxFileMB:   25,
		Allowed:     []string{"strings", "github.com/JonMunkholm/tbcheck/table"},
	}))

	for _, want := range []string{
		`<!doctype html>`,
		`up to 25 MB`,
		`<option value="prefix">prefix</option>`,
		`<option value="fixed-name" selected>fixed-name</option>`,
		`<li><code>github.com/JonMunkholm/tbcheck/table</code></li>`,
		`hx-post="/api/run"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestErrorAlert(t *testing.T) {
	tests := []struct {
		name    string
		msg     core.UserMessage
		want    []string
		notWant []string
	}{
		{
			name:    "escapes text",
			msg:     core.UserMessage{Message: "bad <script>", Code: "RULES_COMPILE", Detail: "rules.go:3:1: x & y"},
			want:    []string{"bad &lt;script&gt;", "<small>(RULES_COMPILE)</small>", "<pre>rules.go:3:1: x &amp; y</pre>"},
			notWant: []string{"<script>", "<p>"},
		},
		{
			name:    "action only",
			msg:     core.UserMessage{Message: "Upload failed", Action: "Try again."},
			want:    []string{`role="alert"`, "<p>Try again.</p>"},
			notWant: []string{"<small>", "<pre>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(t, ErrorAlert(tt.msg))
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output does not contain %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestInspection(t *testing.T) {
	in := &core.Inspection{
		FileName: "tb.xlsx",
		Missing:  []string{"Patient Data"},
		Sheets: []core.SheetPreview{
			{Name: "Screening", Columns: []string{"id", "age"}, Rows: [][]string{{"1", "34"}}, RowCount: 1},
			{Name: "Visit Data", Columns: []string{"id"}, RowCount: 0},
		},
	}
	out := render(t, Inspection(in))

	for _, want := range []string{
		"Expected sheet <code>Patient Data</code> not found in tb.xlsx.",
		`<select name="sheet" form="run-form">`,
		`<details open><summary>Screening: 1 row, 2 columns</summary>`,
		`<details><summary>Visit Data: 0 rows, 1 column</summary>`,
		"<td>34</td>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	single := render(t, Inspection(&core.Inspection{FileName: "tb.csv", Sheets: in.Sheets[:1]}))
	if strings.Contains(single, "<select") {
		t.Errorf("single-sheet inspection offers a sheet choice:\n%s", single)
	}
}

func TestRunReport(t *testing.T) {
	base := func() *core.RunResult {
		return &core.RunResult{
			ID:          "r1",
			DataFile:    "tb.xlsx",
			Sheet:       "Screening",
			RulesOrigin: "built-in rules",
			Rows:        2,
			DurationMS:  12,
			Report: &report.Report{
				Failed: 1,
				Sections: []report.Section{{
					Title:     "Negative ages",
					Status:    report.StatusFail,
					Columns:   []string{"id", "age"},
					Rows:      [][]string{{"7", "-3"}},
					RowCount:  4,
					Truncated: true,
				}},
			},
		}
	}

	tests := []struct {
		name   string
		modify func(*core.RunResult)
		want   []string
	}{
		{
			name: "download",
			modify: func(r *core.RunResult) {
				r.Download = &core.Download{FileName: "all_results.xlsx", Sheets: []string{"Negative ages"}}
			},
			want: []string{
				`<a href="/api/runs/r1/download" download="all_results.xlsx">Download all_results.xlsx</a> (1 sheet)`,
				"tb.xlsx / Screening: 2 rows checked with built-in rules in 12 ms.",
				`<h3 class="warn">Negative ages</h3>`,
				"4 failing rows, first 1 shown",
			},
		},
		{
			name: "export error",
			modify: func(r *core.RunResult) {
				r.Export = &core.UserMessage{Message: "Could not build the results workbook", Code: "EXPORT"}
			},
			want: []string{`role="alert"`, "Could not build the results workbook"},
		},
		{
			name:   "nothing to download",
			modify: func(r *core.RunResult) {},
			want:   []string{"nothing to download"},
		},
		{
			name: "rule output",
			modify: func(r *core.RunResult) {
				r.Output = "checked <42> rows\n"
			},
			want: []string{"<pre>checked &lt;42&gt; rows\n</pre>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := base()
			tt.modify(res)
			out := render(t, RunReport(res))
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output does not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestHistory(t *testing.T) {
	if out := render(t, History(nil)); !strings.Contains(out, "No runs yet.") {
		t.Errorf("empty history = %s", out)
	}

	out := render(t, History([]store.RunSummary{
		{StartedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), DataFile: "a.csv", RulesFile: "rules.go", Mode: "prefix", Entries: make([]store.EntryStatus, 3)},
		{StartedAt: time.Date(2026, 3, 1, 9, 31, 0, 0, time.UTC), DataFile: "b.xlsx", Sheet: "S1", Error: "timed out"},
	}))
	for _, want := range []string{
		"<td>2026-03-01 09:30:00</td>",
		`<span class="ok">3 rules</span>`,
		"<td>b.xlsx / S1</td>",
		`<span class="err">timed out</span>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "No runs yet.") {
		t.Error("non-empty history shows the empty row")
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 rows"},
		{1, "1 row"},
		{12, "12 rows"},
	}
	for _, tt := range tests {
		if got := plural(tt.n, "row"); got != tt.want {
			t.Errorf("plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
