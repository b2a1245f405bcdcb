// Package check runs a RuleSet against a Table and classifies what each rule
// returned.
package check

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// Kind tags the variant held by a Result.
type Kind int

const (
	KindTable   Kind = iota + 1 // failing rows; empty means the rule passed
	KindMapping                 // named failing-row tables from one rule
	KindMessage                 // plain text
	KindError                   // the rule failed to run
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindMapping:
		return "mapping"
	case KindMessage:
		return "message"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is the outcome of one rule. Exactly one payload field is set,
// selected by Kind.
type Result struct {
	Entry    string
	Kind     Kind
	Table    *table.Table
	Mapping  map[string]*table.Table
	Message  string
	Err      error
	Duration time.Duration
}

// RuleExecutionError wraps an error, panic or timeout raised by one rule.
type RuleExecutionError struct {
	Entry string
	Err   error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %s failed: %v", e.Entry, e.Err)
}

func (e *RuleExecutionError) Unwrap() error {
	return e.Err
}

// TableResult builds a KindTable result. A nil table counts as empty.
func TableResult(entry string, t *table.Table) Result {
	if t == nil {
		t = table.Empty()
	}
	return Result{Entry: entry, Kind: KindTable, Table: t}
}

// MappingResult builds a KindMapping result. Nil tables count as empty.
func MappingResult(entry string, m map[string]*table.Table) Result {
	cp := make(map[string]*table.Table, len(m))
	for k, t := range m {
		if t == nil {
			t = table.Empty()
		}
		cp[k] = t
	}
	return Result{Entry: entry, Kind: KindMapping, Mapping: cp}
}

// MessageResult builds a KindMessage result.
func MessageResult(entry, msg string) Result {
	return Result{Entry: entry, Kind: KindMessage, Message: msg}
}

// ErrorResult builds a KindError result wrapping err as a RuleExecutionError.
func ErrorResult(entry string, err error) Result {
	var rerr *RuleExecutionError
	if !errors.As(err, &rerr) {
		rerr = &RuleExecutionError{Entry: entry, Err: err}
	}
	return Result{Entry: entry, Kind: KindError, Err: rerr}
}

// Classify turns whatever a rule returned into a Result.
func Classify(entry string, v any, err error) Result {
	if err != nil {
		return ErrorResult(entry, err)
	}

	switch x := v.(type) {
	case *table.Table:
		return TableResult(entry, x)
	case map[string]*table.Table:
		return MappingResult(entry, x)
	case map[string]any:
		m := make(map[string]*table.Table, len(x))
		for k, val := range x {
			t, ok := val.(*table.Table)
			if !ok && val != nil {
				return ErrorResult(entry, fmt.Errorf("mapping value %q has unsupported type %T", k, val))
			}
			m[k] = t
		}
		return MappingResult(entry, m)
	case error:
		return ErrorResult(entry, x)
	case string:
		return MessageResult(entry, x)
	case fmt.Stringer:
		return MessageResult(entry, x.String())
	case nil:
		return MessageResult(entry, "rule returned no result")
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return MessageResult(entry, fmt.Sprint(x))
	default:
		return ErrorResult(entry, fmt.Errorf("unsupported result type %T", v))
	}
}

// Keys returns the mapping keys in sorted order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r.Mapping))
	for k := range r.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Failed reports whether the result holds at least one failing row.
func (r Result) Failed() bool {
	switch r.Kind {
	case KindTable:
		return !r.Table.IsEmpty()
	case KindMapping:
		for _, t := range r.Mapping {
			if !t.IsEmpty() {
				return true
			}
		}
	}
	return false
}

// Results is the ordered set of Results from one execution.
type Results struct {
	items []Result
	index map[string]int
}

func newResults(n int) *Results {
	return &Results{
		items: make([]Result, 0, n),
		index: make(map[string]int, n),
	}
}

// NewResults builds Results from already classified values, keeping order.
// A later result for the same entry replaces the earlier one.
func NewResults(items ...Result) *Results {
	rs := newResults(len(items))
	for _, r := range items {
		rs.add(r)
	}
	return rs
}

func (rs *Results) add(r Result) {
	if i, ok := rs.index[r.Entry]; ok {
		rs.items[i] = r
		return
	}
	rs.index[r.Entry] = len(rs.items)
	rs.items = append(rs.items, r)
}

// All returns the results in execution order.
func (rs *Results) All() []Result {
	return append([]Result(nil), rs.items...)
}

// Len returns the number of results.
func (rs *Results) Len() int {
	return len(rs.items)
}

// Names returns the entry names in execution order.
func (rs *Results) Names() []string {
	names := make([]string, len(rs.items))
	for i, r := range rs.items {
		names[i] = r.Entry
	}
	return names
}

// Get returns the result for an entry.
func (rs *Results) Get(entry string) (Result, bool) {
	i, ok := rs.index[entry]
	if !ok {
		return Result{}, false
	}
	return rs.items[i], true
}

// Errors returns the KindError results.
func (rs *Results) Errors() []Result {
	var out []Result
	for _, r := range rs.items {
		if r.Kind == KindError {
			out = append(out, r)
		}
	}
	return out
}

// Sole returns the table when exactly one rule ran and it returned a bare
// Table, the pass-through case of single entry point rule sets.
func (rs *Results) Sole() (*table.Table, bool) {
	if len(rs.items) != 1 || rs.items[0].Kind != KindTable {
		return nil, false
	}
	return rs.items[0].Table, true
}
