package rules

import (
	"context"
	_ "embed"
)

// BuiltinOrigin names the rule set used when no rule file is uploaded.
const BuiltinOrigin = "builtin"

//go:embed defaults/check_rules.gotxt
var builtinSource []byte

// BuiltinSource returns the Go source of the default rule set.
func BuiltinSource() []byte {
	return append([]byte(nil), builtinSource...)
}

// LoadDefault loads the built-in rule set. It always uses fixed-name
// discovery, whatever mode the loader was configured with.
func (l *Loader) LoadDefault(ctx context.Context) (*RuleSet, error) {
	fixed := *l
	fixed.opts.Mode = ModeFixedName
	return fixed.load(ctx, BuiltinOrigin, builtinSource)
}
