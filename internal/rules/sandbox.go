package rules

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultAllowedImports lists the packages a rule source may import.
// Anything touching the file system, network, processes or memory layout is
// left out on purpose.
var DefaultAllowedImports = []string{
	"bytes",
	"encoding/json",
	"errors",
	"fmt",
	"maps",
	"math",
	"regexp",
	"slices",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
	TableImportPath,
}

// maxOutputBytes caps the captured stdout/stderr of one rule source.
const maxOutputBytes = 64 << 10

// preparedSource is a parsed rule source ready for evaluation.
type preparedSource struct {
	code  string
	funcs []string // top-level functions, declaration order
}

// prepare parses src, enforces the import allow-list and rewrites the
// package clause so the interpreter always sees package main.
// A missing package clause is tolerated.
func prepare(origin string, src []byte, allowed map[string]bool) (*preparedSource, error) {
	fset := token.NewFileSet()

	if _, err := parser.ParseFile(fset, origin, src, parser.PackageClauseOnly); err != nil {
		src = append([]byte("package main\n\n"), src...)
	}

	file, err := parser.ParseFile(fset, origin, src, parser.ParseComments|parser.AllErrors)
	if err != nil {
		return nil, &RuleLoadError{Source: origin, Stage: StageParse, Err: err}
	}

	var forbidden []string
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, &RuleLoadError{Source: origin, Stage: StageParse, Err: err}
		}
		if !allowed[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		return nil, &RuleLoadError{
			Source: origin,
			Stage:  StageImports,
			Err: fmt.Errorf("forbidden imports %s (allowed: %s)",
				strings.Join(forbidden, ", "), strings.Join(sortedKeys(allowed), ", ")),
		}
	}

	var funcs []string
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil {
			continue
		}
		switch fd.Name.Name {
		case "init", "main", "_":
			continue
		}
		funcs = append(funcs, fd.Name.Name)
	}

	file.Name.Name = "main"
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, &RuleLoadError{Source: origin, Stage: StageParse, Err: err}
	}

	return &preparedSource{code: buf.String(), funcs: funcs}, nil
}

// newInterpreter returns a restricted interpreter that knows the standard
// library and the table package, with its output sent to out.
func newInterpreter(out io.Writer) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{
		Stdout: out,
		Stderr: out,
		Env:    []string{},
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if err := i.Use(tableSymbols); err != nil {
		return nil, fmt.Errorf("load table symbols: %w", err)
	}
	return i, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
