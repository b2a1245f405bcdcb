package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const sample = `
version: "1"
defaults:
  rules: rules/tb_rules.go
  mode: discover-all
runs:
  - data: data/q3.xlsx
    sheet: TB
  - name: q4
    data: data/q4.csv
    mode: allow-list
    allow: [Negatives]
    out: out/q4.xlsx
    fail_on: failures
`

func TestParse_AppliesDefaults(t *testing.T) {
	p, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Run{
		{
			Name:   "q3",
			Data:   "data/q3.xlsx",
			Sheet:  "TB",
			Rules:  "rules/tb_rules.go",
			Mode:   "discover-all",
			Out:    "q3_results.xlsx",
			FailOn: FailOnErrors,
		},
		{
			Name:   "q4",
			Data:   "data/q4.csv",
			Rules:  "rules/tb_rules.go",
			Mode:   "allow-list",
			Allow:  []string{"Negatives"},
			Out:    "out/q4.xlsx",
			FailOn: FailOnFailures,
		},
	}
	if diff := cmp.Diff(want, p.Runs, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Runs mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no runs", "version: \"1\"\n", "no runs defined"},
		{"bad version", "version: \"2\"\nruns:\n  - data: a.csv\n", "unsupported version"},
		{"missing data", "runs:\n  - name: x\n", "data is required"},
		{"duplicate", "runs:\n  - data: a.csv\n  - data: b/a.csv\n", "duplicate name"},
		{"bad mode", "runs:\n  - data: a.csv\n    mode: all\n", "unknown discovery mode"},
		{"allow-list without names", "runs:\n  - data: a.csv\n    mode: allow-list\n", "needs allow"},
		{"bad fail_on", "runs:\n  - data: a.csv\n    fail_on: sometimes\n", "fail_on"},
		{"unknown key", "runs:\n  - data: a.csv\n    sheeet: TB\n", "sheeet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte("runs:\n  - data: q4.csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := p.Resolve(p.Runs[0].Data), filepath.Join(dir, "q4.csv"); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	if got := p.Resolve(""); got != "" {
		t.Errorf("Resolve(\"\") = %q, want empty", got)
	}
	if got := p.Resolve("/abs/x.csv"); got != "/abs/x.csv" {
		t.Errorf("Resolve(abs) = %q", got)
	}
}

func TestFailOn_Failed(t *testing.T) {
	tests := []struct {
		f              FailOn
		failures, errs int
		want           bool
	}{
		{FailOnErrors, 3, 0, false},
		{FailOnErrors, 0, 1, true},
		{FailOnFailures, 1, 0, true},
		{FailOnFailures, 0, 0, false},
		{FailOnNever, 5, 5, false},
	}
	for _, tt := range tests {
		if got := tt.f.Failed(tt.failures, tt.errs); got != tt.want {
			t.Errorf("%s.Failed(%d, %d) = %v, want %v", tt.f, tt.failures, tt.errs, got, tt.want)
		}
	}
}
