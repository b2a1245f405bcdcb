package rules

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/JonMunkholm/tbcheck/internal/logging"
	"github.com/JonMunkholm/tbcheck/internal/table"
)

// Options configures a Loader. Zero values select the defaults.
type Options struct {
	Mode           DiscoveryMode
	EntryPoints    []string // fixed-name candidates, tried in order
	Allow          []string // names run by ModeAllowList
	AllowedImports []string
	MaxSourceSize  int64         // bytes; 0 means unlimited
	LoadTimeout    time.Duration // bounds evaluating top-level declarations; 0 means unlimited
}

// Loader turns rule sources into RuleSets.
type Loader struct {
	opts    Options
	allowed map[string]bool
}

// NewLoader creates a Loader with the given options.
func NewLoader(opts Options) *Loader {
	if opts.Mode == "" {
		opts.Mode = ModeFixedName
	}
	if len(opts.EntryPoints) == 0 {
		opts.EntryPoints = DefaultEntryPoints
	}
	if len(opts.AllowedImports) == 0 {
		opts.AllowedImports = DefaultAllowedImports
	}

	allowed := make(map[string]bool, len(opts.AllowedImports)+1)
	for _, p := range opts.AllowedImports {
		allowed[p] = true
	}
	allowed[TableImportPath] = true

	return &Loader{opts: opts, allowed: allowed}
}

// Mode returns the configured discovery mode.
func (l *Loader) Mode() DiscoveryMode {
	return l.opts.Mode
}

// WithMode returns a copy of the loader using a different discovery mode and,
// for ModeAllowList, the given names.
func (l *Loader) WithMode(mode DiscoveryMode, allow []string) *Loader {
	c := *l
	c.opts.Mode = mode
	if allow != nil {
		c.opts.Allow = allow
	}
	return &c
}

// Load builds a RuleSet from an uploaded source. An empty source selects the
// built-in default rule set.
func (l *Loader) Load(ctx context.Context, origin string, src []byte) (*RuleSet, error) {
	if len(src) == 0 {
		return l.LoadDefault(ctx)
	}
	return l.load(ctx, origin, src)
}

func (l *Loader) load(ctx context.Context, origin string, src []byte) (rs *RuleSet, err error) {
	logger := logging.WithFields(ctx, "rules", origin, "mode", l.opts.Mode)
	start := time.Now()

	if l.opts.MaxSourceSize > 0 && int64(len(src)) > l.opts.MaxSourceSize {
		return nil, &RuleLoadError{
			Source: origin,
			Stage:  StageParse,
			Err:    fmt.Errorf("rule file too large: %d bytes exceeds %d", len(src), l.opts.MaxSourceSize),
		}
	}

	prepared, err := prepare(origin, src, l.allowed)
	if err != nil {
		logger.Warn("rule source rejected", "error", err)
		return nil, err
	}

	names, err := l.selectEntries(origin, prepared.funcs)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			rs, err = nil, &RuleLoadError{Source: origin, Stage: StageEvaluate, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out := &outputBuffer{max: maxOutputBytes}
	i, err := newInterpreter(out)
	if err != nil {
		return nil, &RuleLoadError{Source: origin, Stage: StageEvaluate, Err: err}
	}

	evalCtx := ctx
	if l.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, l.opts.LoadTimeout)
		defer cancel()
	}
	if _, err := i.EvalWithContext(evalCtx, prepared.code); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("top-level declarations did not finish within %s: %w", l.opts.LoadTimeout, err)
		}
		logger.Warn("rule source failed to evaluate", "error", err)
		return nil, &RuleLoadError{Source: origin, Stage: StageEvaluate, Err: err}
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		v, err := i.Eval("main." + name)
		if err != nil {
			return nil, &RuleLoadError{Source: origin, Stage: StageEntry, Err: err}
		}

		fn, err := adapt(v)
		if err != nil {
			if l.opts.Mode == ModeFixedName {
				return nil, &RuleLoadError{Source: origin, Stage: StageEntry, Err: fmt.Errorf("%s: %w", name, err)}
			}
			fn = signatureMismatch(err)
		}
		entries = append(entries, Entry{Name: name, Func: fn})
	}

	logger.Info("rules loaded",
		"entries", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &RuleSet{
		Origin:  origin,
		Mode:    l.opts.Mode,
		Entries: entries,
		output:  out,
	}, nil
}

// selectEntries picks entry names from the declared functions according to
// the discovery mode.
func (l *Loader) selectEntries(origin string, funcs []string) ([]string, error) {
	switch l.opts.Mode {
	case ModeDiscoverAll:
		var names []string
		for _, f := range funcs {
			if isPublic(f) {
				names = append(names, f)
			}
		}
		return names, nil

	case ModeAllowList:
		var missing []string
		for _, want := range l.opts.Allow {
			if !slices.Contains(funcs, want) {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			return nil, &MissingEntryPointError{Source: origin, Want: missing}
		}
		var names []string
		for _, f := range funcs {
			if slices.Contains(l.opts.Allow, f) {
				names = append(names, f)
			}
		}
		return names, nil

	default:
		for _, want := range l.opts.EntryPoints {
			if slices.Contains(funcs, want) {
				return []string{want}, nil
			}
		}
		return nil, &MissingEntryPointError{Source: origin, Want: l.opts.EntryPoints}
	}
}

// isPublic reports whether a function name is a rule rather than a helper.
// Unexported names are the reserved marker for helpers.
func isPublic(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// adapt wraps an interpreted function value as a Func.
func adapt(v reflect.Value) (Func, error) {
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function")
	}

	t := v.Type()
	if t.IsVariadic() || t.NumIn() != 1 || t.In(0) != tableType {
		return nil, fmt.Errorf("incorrect signature %s (want func(*table.Table) any)", t)
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("incorrect signature %s (want func(*table.Table) any or (any, error))", t)
	}

	return func(tb *table.Table) (any, error) {
		out := v.Call([]reflect.Value{reflect.ValueOf(tb)})
		var err error
		if len(out) == 2 {
			err, _ = out[1].Interface().(error)
		}
		return out[0].Interface(), err
	}, nil
}

// signatureMismatch is the Func used for discovered functions that cannot be
// called as rules; running it reports the problem as that entry's error.
func signatureMismatch(cause error) Func {
	return func(*table.Table) (any, error) {
		return nil, cause
	}
}
