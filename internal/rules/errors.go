package rules

import (
	"fmt"
	"strings"
)

// Load stages reported in RuleLoadError.
const (
	StageParse    = "parse"
	StageImports  = "imports"
	StageEvaluate = "evaluate"
	StageEntry    = "entry"
)

// RuleLoadError wraps any failure while a rule source is parsed or its
// top-level declarations are evaluated. It is fatal for the run.
type RuleLoadError struct {
	Source string
	Stage  string
	Err    error
}

func (e *RuleLoadError) Error() string {
	return fmt.Sprintf("rule load error in %s (%s): %v", e.Source, e.Stage, e.Err)
}

func (e *RuleLoadError) Unwrap() error {
	return e.Err
}

// MissingEntryPointError is returned when the required entry point (or an
// allow-listed name) is not defined by the rule source.
type MissingEntryPointError struct {
	Source string
	Want   []string
}

func (e *MissingEntryPointError) Error() string {
	return fmt.Sprintf("missing entry point in %s: expected one of %s",
		e.Source, strings.Join(e.Want, ", "))
}
