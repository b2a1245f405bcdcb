package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tbcheck/internal/config"
	"github.com/JonMunkholm/tbcheck/internal/ingest"
	"github.com/JonMunkholm/tbcheck/internal/logging"
	"github.com/JonMunkholm/tbcheck/internal/report"
	"github.com/JonMunkholm/tbcheck/internal/rules"
	"github.com/JonMunkholm/tbcheck/internal/store"
)

func newTestService(t *testing.T, vars map[string]string) (*Service, *store.Memory) {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("config.LoadFrom() error = %v", err)
	}
	hist := store.NewMemory(10)
	svc, err := NewService(cfg, hist)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, hist
}

const (
	csvWithNegatives = "column1,column2,column3\na,x,1\nb,y,-2\nc,z,-3\n"
	csvAllPositive   = "column1,column2,column3\na,x,1\nb,y,2\n"
	csvMissingColumn = "column1,column2\na,x\n"
)

func TestService_RunDefaultRules_FailedValidation(t *testing.T) {
	svc, hist := newTestService(t, nil)

	res, err := svc.Run(context.Background(), RunRequest{DataName: "data.csv", Data: []byte(csvWithNegatives)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RulesOrigin != rules.BuiltinOrigin {
		t.Errorf("RulesOrigin = %q, want %q", res.RulesOrigin, rules.BuiltinOrigin)
	}
	if res.Report.Failed != 1 {
		t.Errorf("Report.Failed = %d, want 1", res.Report.Failed)
	}
	if res.Download == nil {
		t.Fatal("Download = nil, want workbook")
	}
	if diff := cmp.Diff([]string{"Failed Validation"}, res.Download.Sheets); diff != "" {
		t.Errorf("Download.Sheets mismatch (-want +got):\n%s", diff)
	}

	a, err := svc.Artifact(res.ID)
	if err != nil {
		t.Fatalf("Artifact() error = %v", err)
	}
	if a.FileName != report.FileName {
		t.Errorf("FileName = %q, want %q", a.FileName, report.FileName)
	}

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Failed Validation")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("sheet rows = %d, want header + 2", len(rows))
	}

	if hist.Len() != 1 {
		t.Errorf("history Len() = %d, want 1", hist.Len())
	}
}

func TestService_RunDefaultRules_PassThrough(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.Run(context.Background(), RunRequest{DataName: "data.csv", Data: []byte(csvAllPositive)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Report.Sections) != 1 {
		t.Fatalf("Sections = %d, want 1", len(res.Report.Sections))
	}
	if got := res.Report.Sections[0].Status; got != report.StatusPassThrough {
		t.Errorf("Status = %q, want %q", got, report.StatusPassThrough)
	}
	if res.Download == nil || len(res.Download.Sheets) != 1 {
		t.Fatalf("Download = %+v, want one sheet", res.Download)
	}
}

func TestService_RunDefaultRules_MissingColumnHasNoDownload(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.Run(context.Background(), RunRequest{DataName: "data.csv", Data: []byte(csvMissingColumn)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Download != nil {
		t.Errorf("Download = %+v, want nil", res.Download)
	}
	if res.Report.Messages != 1 {
		t.Errorf("Report.Messages = %d, want 1", res.Report.Messages)
	}
}

func TestService_RunIsolatesFailingRule(t *testing.T) {
	svc, hist := newTestService(t, nil)

	src := []byte(`package rules

import "tbcheck/table"

func Broken(t *table.Table) any {
	panic("boom")
}

func Negative(t *table.Table) any {
	return t.Filter(func(r table.Row) bool {
		v, _ := r.Float("column3")
		return v < 0
	})
}
`)
	res, err := svc.Run(context.Background(), RunRequest{
		DataName:  "data.csv",
		Data:      []byte(csvWithNegatives),
		RulesName: "rules.go",
		Rules:     src,
		Mode:      "discover-all",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Broken", "Negative"}, res.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
	if res.Report.Errors != 1 || res.Report.Failed != 1 {
		t.Errorf("Report errors/failed = %d/%d, want 1/1", res.Report.Errors, res.Report.Failed)
	}
	if res.Download == nil || len(res.Download.Sheets) != 1 {
		t.Fatalf("Download = %+v, want one sheet", res.Download)
	}

	runs, _ := hist.Recent(context.Background(), 1)
	if len(runs) != 1 || len(runs[0].Entries) != 2 {
		t.Fatalf("history = %+v, want one run with two entries", runs)
	}
	if runs[0].Mode != "discover-all" {
		t.Errorf("history Mode = %q, want discover-all", runs[0].Mode)
	}
}

func TestService_RunFatalErrors(t *testing.T) {
	svc, hist := newTestService(t, map[string]string{"UPLOAD_MAX_FILE_SIZE": "64"})

	tests := []struct {
		name     string
		req      RunRequest
		wantCode string
	}{
		{"no file", RunRequest{}, "FILE004"},
		{"too large", RunRequest{DataName: "d.csv", Data: bytes.Repeat([]byte("a"), 65)}, "FILE001"},
		{"unsupported", RunRequest{DataName: "d.pdf", Data: []byte("x")}, "FILE006"},
		{"corrupt xlsx", RunRequest{DataName: "d.xlsx", Data: []byte("not a zip")}, "FILE002"},
		{"missing sheet", RunRequest{DataName: "d.csv", Data: []byte("a\n1\n"), Sheet: "Q4"}, "FILE007"},
		{"syntax error", RunRequest{DataName: "d.csv", Data: []byte("a\n1\n"), RulesName: "r.go", Rules: []byte("func (")}, "RULE001"},
		{"forbidden import", RunRequest{DataName: "d.csv", Data: []byte("a\n1\n"), RulesName: "r.go", Rules: []byte("import \"os\"\n")}, "RULE002"},
		{"missing entry", RunRequest{DataName: "d.csv", Data: []byte("a\n1\n"), RulesName: "r.go", Rules: []byte("func helper() {}\n")}, "RULE003"},
		{"bad mode", RunRequest{DataName: "d.csv", Data: []byte("a\n1\n"), Mode: "everything"}, "RULE006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Run(context.Background(), tt.req)
			if err == nil {
				t.Fatalf("Run() = %+v, want error", res)
			}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", err, got, tt.wantCode)
			}
		})
	}

	runs, _ := hist.Recent(context.Background(), 0)
	for _, r := range runs {
		if r.Error == "" {
			t.Errorf("history entry %s has no error", r.ID)
		}
	}
}

func TestService_RunTooManyRuns(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"RUN_MAX_CONCURRENT": "1",
		"RUN_MAX_WAIT_TIME":  "50ms",
	})

	if !svc.limiter.TryAcquire() {
		t.Fatal("TryAcquire() failed")
	}
	defer svc.limiter.Release()

	_, err := svc.Run(context.Background(), RunRequest{DataName: "data.csv", Data: []byte(csvAllPositive)})
	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("Run() error = %v, want ErrTooManyRuns", err)
	}
}

func TestService_Inspect(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{"UPLOAD_PREVIEW_ROWS": "1"})

	in, err := svc.Inspect(context.Background(), "data.csv", []byte(csvWithNegatives))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Sheet1"}, in.SheetNames()); diff != "" {
		t.Errorf("SheetNames mismatch (-want +got):\n%s", diff)
	}
	sh := in.Sheets[0]
	if sh.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", sh.RowCount)
	}
	if diff := cmp.Diff([][]string{{"a", "x", "1"}}, sh.Rows); diff != "" {
		t.Errorf("preview Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestService_InspectReportsMissingExpectedSheets(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"UPLOAD_EXPECTED_SHEETS": "Screening, Patient Data, Visit Data",
	})

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Screening"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Visit Data", "Dropdown"} {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		if err := f.SetCellValue(name, "A1", "id"); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SetCellValue("Screening", "A1", "id"); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	in, err := svc.Inspect(context.Background(), "tb.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Screening", "Visit Data", "Dropdown"}, in.SheetNames()); diff != "" {
		t.Errorf("SheetNames mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Patient Data"}, in.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
}

func TestService_InspectUnreadable(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Inspect(context.Background(), "data.xlsx", []byte("garbage"))
	var fileErr *ingest.UnreadableFileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("Inspect() error = %v, want *ingest.UnreadableFileError", err)
	}
}

func TestService_ListRules(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info, err := svc.ListRules(ctx, "", nil, "", nil)
	if err != nil {
		t.Fatalf("ListRules(default) error = %v", err)
	}
	if diff := cmp.Diff([]string{"CheckRules"}, info.Entries); diff != "" {
		t.Errorf("default Entries mismatch (-want +got):\n%s", diff)
	}

	src := []byte("package x\n\nimport \"tbcheck/table\"\n\nfunc A(t *table.Table) any { return nil }\nfunc b(t *table.Table) any { return nil }\nfunc C(t *table.Table) any { return nil }\n")

	info, err = svc.ListRules(ctx, "r.go", src, "discover-all", nil)
	if err != nil {
		t.Fatalf("ListRules(discover-all) error = %v", err)
	}
	if diff := cmp.Diff([]string{"A", "C"}, info.Entries); diff != "" {
		t.Errorf("discover-all Entries mismatch (-want +got):\n%s", diff)
	}

	info, err = svc.ListRules(ctx, "r.go", src, "allow-list", []string{"C"})
	if err != nil {
		t.Fatalf("ListRules(allow-list) error = %v", err)
	}
	if diff := cmp.Diff([]string{"C"}, info.Entries); diff != "" {
		t.Errorf("allow-list Entries mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.ListRules(ctx, "r.go", src, "allow-list", nil); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ListRules(allow-list, no names) error = %v, want ErrUnknownMode", err)
	}
}

func TestService_ArtifactUnknownID(t *testing.T) {
	svc, _ := newTestService(t, nil)

	for _, id := range []string{"not-a-uuid", "6f1c1e36-4a36-4c1c-9c1f-7d2f0f6b2a11"} {
		if _, err := svc.Artifact(id); !errors.Is(err, ErrArtifactNotFound) {
			t.Errorf("Artifact(%q) error = %v, want ErrArtifactNotFound", id, err)
		}
	}
}

func TestService_RunLogsClientMetadata(t *testing.T) {
	svc, _ := newTestService(t, nil)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "info", "text"))
	defer slog.SetDefault(prev)

	ctx := ContextWithIPAddress(context.Background(), "203.0.113.7")
	ctx = ContextWithUserAgent(ctx, "curl/8.5.0")
	if _, err := svc.Run(ctx, RunRequest{DataName: "data.csv", Data: []byte(csvAllPositive)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var started string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `msg="run started"`) {
			started = line
			break
		}
	}
	if started == "" {
		t.Fatalf("no run started line in log:\n%s", buf.String())
	}
	for _, want := range []string{"client_ip=203.0.113.7", "user_agent=curl/8.5.0"} {
		if !strings.Contains(started, want) {
			t.Errorf("run started line = %q, want %s", started, want)
		}
	}
}
