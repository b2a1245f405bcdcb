package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tbcheck/internal/config"
)

func init() {
	loadConfig = func() (*config.Config, error) {
		return config.LoadFrom(func(string) (string, bool) { return "", false })
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSheetsCmd(t *testing.T) {
	data := writeFile(t, t.TempDir(), "data.csv", "column1,column2,column3\na,x,1\n")

	out, err := execute(t, "sheets", data)
	if err != nil {
		t.Fatalf("sheets failed: %v", err)
	}
	if !strings.Contains(out, "Sheet1") || !strings.Contains(out, "1 rows") {
		t.Errorf("sheets output = %q, want Sheet1 with 1 row", out)
	}
}

func TestPreviewCmd_UnknownSheet(t *testing.T) {
	data := writeFile(t, t.TempDir(), "data.csv", "a,b\n1,2\n")

	_, err := execute(t, "preview", data, "--sheet", "Q4")
	if err == nil || !strings.Contains(err.Error(), "Sheet1") {
		t.Errorf("preview error = %v, want it to list available sheets", err)
	}
}

func TestRunCmd_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.csv", "column1,column2,column3\na,x,1\nb,y,-2\n")
	outPath := filepath.Join(dir, "all_results.xlsx")

	out, err := execute(t, "run", data, "--out", outPath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Failed Validation") {
		t.Errorf("run output missing section title:\n%s", out)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 1 || got[0] != "Failed Validation" {
		t.Errorf("sheets = %v, want [Failed Validation]", got)
	}
}

func TestRunCmd_MessageOnly(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.csv", "column1,column2\na,x\n")
	outPath := filepath.Join(dir, "all_results.xlsx")

	out, err := execute(t, "run", data, "--out", outPath, "--strict")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "no workbook written") || !strings.Contains(out, "column3") {
		t.Errorf("run output = %q, want missing-column message and no-workbook notice", out)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Errorf("workbook written for a run without result tables")
	}
}

func TestRunCmd_Strict(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.csv", "column1,column2,column3\na,x,-1\n")

	_, err := execute(t, "run", data, "--out", filepath.Join(dir, "out.xlsx"), "--strict")
	if !errors.Is(err, errChecksFailed) {
		t.Errorf("run --strict error = %v, want errChecksFailed", err)
	}
}

func TestRunCmd_ForbiddenImport(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.csv", "a\n1\n")
	rules := writeFile(t, dir, "rules.go", "import \"os\"\n\nfunc CheckRules(t *table.Table) any { return os.Args }\n")

	_, err := execute(t, "run", data, "--rules", rules)
	if err == nil || !strings.Contains(err.Error(), "RULE002") {
		t.Errorf("run error = %v, want RULE002", err)
	}
}

func TestRulesCmd(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.go", `package rules

import "tbcheck/table"

func NoBlanks(t *table.Table) any { return t }
func Totals(t *table.Table) any { return "ok" }
func helper() {}
`)

	out, err := execute(t, "rules", rules, "--mode", "discover-all")
	if err != nil {
		t.Fatalf("rules failed: %v", err)
	}
	for _, want := range []string{"NoBlanks", "Totals", "discover-all"} {
		if !strings.Contains(out, want) {
			t.Errorf("rules output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "helper") {
		t.Errorf("rules output lists unexported helper:\n%s", out)
	}
}

func TestRulesCmd_PrintDefault(t *testing.T) {
	out, err := execute(t, "rules", "--print-default")
	if err != nil {
		t.Fatalf("rules failed: %v", err)
	}
	if !strings.Contains(out, "func CheckRules") {
		t.Errorf("default rules output missing CheckRules")
	}
}

func TestBatchCmd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.csv", "column1,column2,column3\na,x,1\nb,y,-2\n")
	writeFile(t, dir, "bad.csv", "a,b\n\"x,1\n")
	profilePath := writeFile(t, dir, "batch.yaml", `
version: "1"
runs:
  - data: good.csv
    out: out/good.xlsx
  - data: bad.csv
`)

	out, err := execute(t, "batch", profilePath)
	if !errors.Is(err, errBatchFailed) {
		t.Fatalf("batch error = %v, want errBatchFailed", err)
	}
	if !strings.Contains(out, "### good") || !strings.Contains(out, "### bad") {
		t.Errorf("batch output missing run headers:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "good.xlsx")); err != nil {
		t.Errorf("good run workbook not written: %v", err)
	}

	// The failing rows alone do not fail the batch under the default fail_on.
	out, err = execute(t, "batch", profilePath, "--only", "good")
	if err != nil {
		t.Errorf("batch --only good error = %v\n%s", err, out)
	}
}

func TestHistoryCmd_PersistsWithSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HISTORY_DB_PATH", filepath.Join(dir, "runs.db"))
	prev := loadConfig
	loadConfig = config.Load
	defer func() { loadConfig = prev }()

	data := writeFile(t, dir, "data.csv", "column1,column2,column3\na,x,-1\n")
	if _, err := execute(t, "run", data, "--out", filepath.Join(dir, "r.xlsx")); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "data.csv") || !strings.Contains(out, "builtin") {
		t.Errorf("history output = %q, want the recorded run", out)
	}
}
