// Package rules loads user-supplied validation rules.
//
// A rule source is a Go file. It is run by the yaegi interpreter, not
// compiled into the host, and every rule it exposes has the shape
//
//	func(t *table.Table) any
//	func(t *table.Table) (any, error)
//
// where the table package is imported as "tbcheck/table". A rule returns one
// of: a *table.Table of failing rows (empty means pass), a
// map[string]*table.Table when one function performs several named checks, a
// string message, or an error.
//
// # Discovery
//
// [ModeFixedName] looks for a single entry point, CheckRules (ApplyRules in
// older sources; the snake_case spellings are accepted too). [ModeDiscoverAll]
// turns every exported top-level function into a rule, in declaration order;
// unexported functions are helpers. [ModeAllowList] is ModeDiscoverAll limited
// to an explicit list of names.
//
// # Trust boundary
//
// Loading a rule source runs code supplied by whoever uploaded it, with the
// privileges of this process. The interpreter narrows that: imports are
// checked against an allow-list of side-effect free standard library packages
// (no os, net, os/exec, syscall, unsafe or reflect), yaegi runs in restricted
// mode, and stdout/stderr are captured instead of reaching the host. This is
// a reduction of the attack surface, not a sandbox: CPU and memory use are
// bounded only by timeouts, Options.LoadTimeout while top-level declarations
// are evaluated and the executor's timeout while a rule runs.
//
// Sources are evaluated from memory and are never written to disk.
package rules
