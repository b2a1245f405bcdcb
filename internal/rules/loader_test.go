package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

func tb(rows ...[]table.Value) *table.Table {
	return table.New([]string{"column1", "column2", "column3"}, rows)
}

func mustLoad(t *testing.T, l *Loader, src string) *RuleSet {
	t.Helper()
	rs, err := l.Load(context.Background(), "rules.go", []byte(src))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return rs
}

func call(t *testing.T, rs *RuleSet, name string, in *table.Table) any {
	t.Helper()
	for _, e := range rs.Entries {
		if e.Name == name {
			v, err := e.Func(in)
			if err != nil {
				t.Fatalf("%s() error = %v", name, err)
			}
			return v
		}
	}
	t.Fatalf("entry %s not loaded; have %v", name, rs.Names())
	return nil
}

func TestLoadDefault(t *testing.T) {
	rs, err := NewLoader(Options{Mode: ModeDiscoverAll}).Load(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if rs.Origin != BuiltinOrigin || rs.Mode != ModeFixedName {
		t.Errorf("origin/mode = %q/%q, want builtin/fixed-name", rs.Origin, rs.Mode)
	}
	if diff := cmp.Diff([]string{"CheckRules"}, rs.Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}

	t.Run("negative rows fail", func(t *testing.T) {
		in := tb([]table.Value{"a", "x", 1}, []table.Value{"b", "y", -2}, []table.Value{"c", "z", -3})
		got, ok := call(t, rs, "CheckRules", in).(map[string]*table.Table)
		if !ok {
			t.Fatalf("result type %T, want map[string]*table.Table", got)
		}
		failed := got["Failed Validation"]
		if failed.Len() != 2 {
			t.Errorf("Failed Validation rows = %d, want 2", failed.Len())
		}
		if diff := cmp.Diff(in.Columns(), failed.Columns()); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("all positive passes through", func(t *testing.T) {
		in := tb([]table.Value{"a", "x", 1}, []table.Value{"b", "y", 2})
		got, ok := call(t, rs, "CheckRules", in).(*table.Table)
		if !ok || !got.Equal(in) {
			t.Errorf("result = %v, want the input table", got)
		}
	})

	t.Run("missing column is a message", func(t *testing.T) {
		in := table.New([]string{"column1", "column2"}, [][]table.Value{{"a", "x"}})
		got, ok := call(t, rs, "CheckRules", in).(string)
		if !ok || !strings.Contains(got, "column3") {
			t.Errorf("result = %#v, want message naming column3", got)
		}
	})

	t.Run("text in column3 is ignored", func(t *testing.T) {
		in := tb([]table.Value{"a", "x", "n/a"})
		if _, ok := call(t, rs, "CheckRules", in).(*table.Table); !ok {
			t.Error("non-numeric column3 should not fail")
		}
	})
}

func TestLoad_FixedNameOrder(t *testing.T) {
	src := `package rules

import "tbcheck/table"

func ApplyRules(t *table.Table) any { return "apply" }
func check_rules(t *table.Table) any { return "snake" }
`
	rs := mustLoad(t, NewLoader(Options{}), src)
	if diff := cmp.Diff([]string{"check_rules"}, rs.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_DiscoverAll(t *testing.T) {
	src := `package rules

import (
	"fmt"

	"tbcheck/table"
)

func Negatives(t *table.Table) any {
	return t.Filter(func(r table.Row) bool {
		v, ok := r.Float("column3")
		return ok && v < 0
	})
}

func Totals(t *table.Table) (any, error) {
	fmt.Println("rows:", t.Len())
	return map[string]*table.Table{"Empty": table.Empty("column1")}, nil
}

func WrongShape(n int) int { return n }

func helper() string { return "not a rule" }
`
	rs := mustLoad(t, NewLoader(Options{Mode: ModeDiscoverAll}), src)

	if diff := cmp.Diff([]string{"Negatives", "Totals", "WrongShape"}, rs.Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}

	in := tb([]table.Value{"a", "x", -1}, []table.Value{"b", "y", 5})
	neg := call(t, rs, "Negatives", in).(*table.Table)
	if neg.Len() != 1 {
		t.Errorf("Negatives rows = %d, want 1", neg.Len())
	}

	call(t, rs, "Totals", in)
	if got := rs.Output(); !strings.Contains(got, "rows: 2") {
		t.Errorf("Output() = %q, want captured print", got)
	}

	for _, e := range rs.Entries {
		if e.Name == "WrongShape" {
			if _, err := e.Func(in); err == nil || !strings.Contains(err.Error(), "incorrect signature") {
				t.Errorf("WrongShape error = %v, want signature error", err)
			}
		}
	}
}

func TestLoad_AllowList(t *testing.T) {
	src := `package rules

import "tbcheck/table"

func A(t *table.Table) any { return "a" }
func B(t *table.Table) any { return "b" }
func C(t *table.Table) any { return "c" }
`
	l := NewLoader(Options{Mode: ModeAllowList, Allow: []string{"C", "A"}})
	rs := mustLoad(t, l, src)
	if diff := cmp.Diff([]string{"A", "C"}, rs.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	_, err := l.WithMode(ModeAllowList, []string{"A", "Z"}).Load(context.Background(), "rules.go", []byte(src))
	var missing *MissingEntryPointError
	if !errors.As(err, &missing) || !cmp.Equal(missing.Want, []string{"Z"}) {
		t.Errorf("Load() error = %v, want missing Z", err)
	}
}

func TestLoad_NoPackageClause(t *testing.T) {
	src := `import "tbcheck/table"

func CheckRules(t *table.Table) any { return t.Len() }
`
	rs := mustLoad(t, NewLoader(Options{}), src)
	if got := call(t, rs, "CheckRules", tb()); got != 0 {
		t.Errorf("CheckRules() = %v, want 0", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		src       string
		wantStage string
		wantMiss  bool
	}{
		{
			name:      "syntax error",
			src:       "package rules\n\nfunc CheckRules(t *table.Table any {\n",
			wantStage: StageParse,
		},
		{
			name:      "forbidden import",
			src:       "package rules\n\nimport \"os\"\n\nfunc CheckRules() any { return os.Args }\n",
			wantStage: StageImports,
		},
		{
			name:      "network import",
			src:       "package rules\n\nimport \"net/http\"\n\nvar _ = http.Get\n",
			wantStage: StageImports,
		},
		{
			name:      "undefined name",
			src:       "package rules\n\nimport \"tbcheck/table\"\n\nfunc CheckRules(t *table.Table) any { return nope }\n",
			wantStage: StageEvaluate,
		},
		{
			name:      "fixed-name wrong signature",
			src:       "package rules\n\nfunc CheckRules(s string) any { return s }\n",
			wantStage: StageEntry,
		},
		{
			name:      "too large",
			opts:      Options{MaxSourceSize: 10},
			src:       "package rules\n\nfunc CheckRules() {}\n",
			wantStage: StageParse,
		},
		{
			name:     "missing entry point",
			src:      "package rules\n\nfunc helper() {}\n",
			wantMiss: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.opts).Load(context.Background(), "rules.go", []byte(tt.src))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if tt.wantMiss {
				var missing *MissingEntryPointError
				if !errors.As(err, &missing) {
					t.Errorf("Load() error = %v, want *MissingEntryPointError", err)
				}
				return
			}
			var lerr *RuleLoadError
			if !errors.As(err, &lerr) {
				t.Fatalf("Load() error = %v, want *RuleLoadError", err)
			}
			if lerr.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q (%v)", lerr.Stage, tt.wantStage, err)
			}
		})
	}
}

func TestLoad_ExtraImportAllowed(t *testing.T) {
	src := `package rules

import (
	"hash/crc32"

	"tbcheck/table"
)

func CheckRules(t *table.Table) any { return crc32.ChecksumIEEE([]byte("x")) > 0 }
`
	_, err := NewLoader(Options{}).Load(context.Background(), "rules.go", []byte(src))
	if err == nil {
		t.Fatal("hash/crc32 accepted without being allowed")
	}

	l := NewLoader(Options{AllowedImports: append(append([]string(nil), DefaultAllowedImports...), "hash/crc32")})
	rs := mustLoad(t, l, src)
	if got := call(t, rs, "CheckRules", tb()); got != true {
		t.Errorf("CheckRules() = %v, want true", got)
	}
}

func TestLoad_TopLevelLoopTimesOut(t *testing.T) {
	src := `package rules

import "tbcheck/table"

var _ = spin(0)

func spin(n int) int {
	for n >= 0 {
		n = n % 2
	}
	return n
}

func CheckRules(t *table.Table) any { return nil }
`
	l := NewLoader(Options{LoadTimeout: 200 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "rules.go", []byte(src))
		done <- err
	}()

	select {
	case err := <-done:
		var lerr *RuleLoadError
		if !errors.As(err, &lerr) {
			t.Fatalf("Load() error = %v, want *RuleLoadError", err)
		}
		if lerr.Stage != StageEvaluate {
			t.Errorf("Stage = %q, want %q", lerr.Stage, StageEvaluate)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Load() error = %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Load() did not return for a never-ending top-level initializer")
	}
}

func TestLoad_IndependentRuns(t *testing.T) {
	src := `package rules

import "tbcheck/table"

var calls int

func CheckRules(t *table.Table) any {
	calls++
	return calls
}
`
	l := NewLoader(Options{})
	for i := 0; i < 2; i++ {
		rs := mustLoad(t, l, src)
		if got := call(t, rs, "CheckRules", tb()); got != 1 {
			t.Errorf("load %d: CheckRules() = %v, want 1; state leaked between loads", i, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DiscoveryMode
		wantErr bool
	}{
		{"", ModeFixedName, false},
		{"fixed-name", ModeFixedName, false},
		{"discover-all", ModeDiscoverAll, false},
		{"allow-list", ModeAllowList, false},
		{"everything", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v, want %q, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestBuiltinSource_IsCopy(t *testing.T) {
	a := BuiltinSource()
	a[0] = 'X'
	if BuiltinSource()[0] == 'X' {
		t.Error("BuiltinSource() exposed the embedded bytes")
	}
}
