package rules

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// DiscoveryMode selects how entry points are found in a rule source.
type DiscoveryMode string

const (
	ModeFixedName   DiscoveryMode = "fixed-name"
	ModeDiscoverAll DiscoveryMode = "discover-all"
	ModeAllowList   DiscoveryMode = "allow-list"
)

// ParseMode validates a discovery mode name. Empty selects ModeFixedName.
func ParseMode(s string) (DiscoveryMode, error) {
	switch m := DiscoveryMode(s); m {
	case "":
		return ModeFixedName, nil
	case ModeFixedName, ModeDiscoverAll, ModeAllowList:
		return m, nil
	default:
		return "", fmt.Errorf("unknown discovery mode %q (want %s, %s or %s)",
			s, ModeFixedName, ModeDiscoverAll, ModeAllowList)
	}
}

// DefaultEntryPoints are tried in order by ModeFixedName.
var DefaultEntryPoints = []string{"CheckRules", "check_rules", "ApplyRules", "apply_rules"}

// Func is the host-side shape of every rule.
type Func func(t *table.Table) (any, error)

// Entry is one named rule of a RuleSet.
type Entry struct {
	Name string
	Func Func
}

// RuleSet is the ordered collection of rules discovered in one source.
// It is built once per run and discarded afterwards.
type RuleSet struct {
	Origin  string
	Mode    DiscoveryMode
	Entries []Entry

	output *outputBuffer
}

// NewRuleSet builds a RuleSet from host functions.
func NewRuleSet(origin string, entries ...Entry) *RuleSet {
	return &RuleSet{Origin: origin, Mode: ModeDiscoverAll, Entries: entries}
}

// Names returns the entry names in execution order.
func (rs *RuleSet) Names() []string {
	names := make([]string, len(rs.Entries))
	for i, e := range rs.Entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entries.
func (rs *RuleSet) Len() int {
	return len(rs.Entries)
}

// Output returns everything the rule source printed so far.
func (rs *RuleSet) Output() string {
	if rs.output == nil {
		return ""
	}
	return rs.output.String()
}

// outputBuffer collects interpreter stdout/stderr. A timed-out rule may keep
// writing after the executor has moved on, hence the lock.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
