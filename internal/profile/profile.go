// Package profile reads batch run profiles: YAML files naming several data
// files to check, each with its own rules, sheet and discovery settings.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/tbcheck/internal/rules"
)

// CurrentVersion is the profile format version this package reads.
const CurrentVersion = "1"

// FailOn decides when a run counts as failed for the batch exit status.
type FailOn string

const (
	FailOnErrors   FailOn = "errors"   // rule errors only
	FailOnFailures FailOn = "failures" // failing rows or rule errors
	FailOnNever    FailOn = "never"
)

// Profile is a parsed batch profile.
type Profile struct {
	Version  string   `yaml:"version"`
	Defaults Defaults `yaml:"defaults,omitempty"`
	Runs     []Run    `yaml:"runs"`

	dir string
}

// Defaults apply to every run that leaves the field empty.
type Defaults struct {
	Rules  string   `yaml:"rules,omitempty"`
	Mode   string   `yaml:"mode,omitempty"`
	Allow  []string `yaml:"allow,omitempty"`
	FailOn FailOn   `yaml:"fail_on,omitempty"`
}

// Run is one data file to check.
type Run struct {
	Name   string   `yaml:"name"`
	Data   string   `yaml:"data"`
	Sheet  string   `yaml:"sheet,omitempty"`
	Rules  string   `yaml:"rules,omitempty"` // empty selects the built-in rules
	Mode   string   `yaml:"mode,omitempty"`
	Allow  []string `yaml:"allow,omitempty"`
	Out    string   `yaml:"out,omitempty"` // workbook path; default <name>_results.xlsx
	FailOn FailOn   `yaml:"fail_on,omitempty"`
}

// Load reads and validates the profile at path. Relative paths inside the
// profile are resolved against the profile's directory.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Parse decodes and validates a profile. Unknown keys are rejected so a
// misspelt setting does not silently fall back to a default.
func Parse(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyDefaults() {
	if p.Defaults.FailOn == "" {
		p.Defaults.FailOn = FailOnErrors
	}
	for i := range p.Runs {
		r := &p.Runs[i]
		if r.Name == "" {
			base := filepath.Base(r.Data)
			r.Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if r.Rules == "" {
			r.Rules = p.Defaults.Rules
		}
		if r.Mode == "" {
			r.Mode = p.Defaults.Mode
		}
		if r.Allow == nil {
			r.Allow = p.Defaults.Allow
		}
		if r.FailOn == "" {
			r.FailOn = p.Defaults.FailOn
		}
		if r.Out == "" {
			r.Out = r.Name + "_results.xlsx"
		}
	}
}

// Validate reports every problem in the profile at once.
func (p *Profile) Validate() error {
	var errs []error

	if p.Version != "" && p.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported version %q (want %q)", p.Version, CurrentVersion))
	}
	if len(p.Runs) == 0 {
		errs = append(errs, errors.New("no runs defined"))
	}

	names := make(map[string]bool, len(p.Runs))
	for i, r := range p.Runs {
		label := fmt.Sprintf("runs[%d]", i)
		if r.Name != "" {
			label = fmt.Sprintf("run %q", r.Name)
		}
		if r.Data == "" {
			errs = append(errs, fmt.Errorf("%s: data is required", label))
		}
		if names[r.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name", label))
		}
		names[r.Name] = true

		mode, err := rules.ParseMode(r.Mode)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		} else if mode == rules.ModeAllowList && len(r.Allow) == 0 {
			errs = append(errs, fmt.Errorf("%s: allow-list mode needs allow", label))
		}

		switch r.FailOn {
		case FailOnErrors, FailOnFailures, FailOnNever:
		default:
			errs = append(errs, fmt.Errorf("%s: fail_on must be errors, failures or never, got %q", label, r.FailOn))
		}
	}
	return errors.Join(errs...)
}

// Resolve returns path made absolute against the profile's directory.
// Empty paths stay empty.
func (p *Profile) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}

// Failed reports whether a run with the given counts fails under f.
func (f FailOn) Failed(failures, errs int) bool {
	switch f {
	case FailOnNever:
		return false
	case FailOnFailures:
		return failures > 0 || errs > 0
	default:
		return errs > 0
	}
}
