package check

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/JonMunkholm/tbcheck/internal/logging"
	"github.com/JonMunkholm/tbcheck/internal/rules"
	"github.com/JonMunkholm/tbcheck/internal/table"
)

// Executor runs every entry of a RuleSet against one Table.
type Executor struct {
	// Timeout bounds a single rule. Zero runs rules inline with no limit.
	Timeout time.Duration
}

// NewExecutor creates an Executor with a per-rule timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{Timeout: timeout}
}

// Execute invokes each entry in RuleSet order. Every entry receives the same
// Table; an entry that errors, panics or times out becomes a KindError result
// and the remaining entries still run.
func (e *Executor) Execute(ctx context.Context, t *table.Table, rs *rules.RuleSet) *Results {
	logger := logging.FromContext(ctx)
	results := newResults(rs.Len())

	for _, entry := range rs.Entries {
		start := time.Now()
		r := e.invoke(ctx, t, entry)
		r.Duration = time.Since(start)

		if r.Kind == KindError {
			logger.Warn("rule failed", "rule", entry.Name, "error", r.Err)
		} else {
			logger.Debug("rule finished",
				"rule", entry.Name,
				"kind", r.Kind.String(),
				"duration_ms", r.Duration.Milliseconds(),
			)
		}
		results.add(r)
	}
	return results
}

// invoke runs one entry, converting panics and timeouts into errors.
func (e *Executor) invoke(ctx context.Context, t *table.Table, entry rules.Entry) Result {
	if err := ctx.Err(); err != nil {
		return ErrorResult(entry.Name, err)
	}
	if entry.Func == nil {
		return ErrorResult(entry.Name, fmt.Errorf("rule has no function"))
	}
	if e.Timeout <= 0 {
		return call(entry, t)
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- call(entry, t)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return ErrorResult(entry.Name, fmt.Errorf("rule timed out after %s: %w", e.Timeout, ctx.Err()))
	}
}

// call invokes the rule and classifies its return value.
func call(entry rules.Entry, t *table.Table) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			slog.Debug("rule panicked", "rule", entry.Name, "stack", string(debug.Stack()))
			r = ErrorResult(entry.Name, fmt.Errorf("panic: %v", p))
		}
	}()
	v, err := entry.Func(t)
	return Classify(entry.Name, v, err)
}
