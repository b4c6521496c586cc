package project

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"failkit/internal/diag"
	"failkit/internal/gate"
	"failkit/internal/rules"
)

// RulesSection configures per-rule policy.
type RulesSection struct {
	// Disabled lists rule ids ("FK005") that produce no issues.
	Disabled []string `toml:"disabled"`
	// Severity maps rule ids to an override ("error", "warning", "info",
	// "hint").
	Severity map[string]string `toml:"severity"`
}

// WindowsSection configures the proximity windows in lines.
type WindowsSection struct {
	Receipt    int `toml:"receipt"`
	Error      int `toml:"error"`
	Resilience int `toml:"resilience"`
}

// CheckSection configures the tree walk.
type CheckSection struct {
	// Exclude holds doublestar globs relative to the project root.
	Exclude []string `toml:"exclude"`
	// IncludeTests keeps files following test-file conventions in walks.
	IncludeTests bool `toml:"include-tests"`
}

// GatesSection configures the runtime response gate.
type GatesSection struct {
	EnforceReceipts     bool     `toml:"enforce-receipts"`
	EnforceToolFailures bool     `toml:"enforce-tool-failures"`
	EnforceEscalation   bool     `toml:"enforce-escalation"`
	// ExtraVerbs extends the built-in action-claim verb list.
	ExtraVerbs []string `toml:"extra-verbs"`
}

// Config is a parsed manifest. Load validates rule ids, severities, windows
// and globs up front so the accessors never fail.
type Config struct {
	Rules   RulesSection   `toml:"rules"`
	Windows WindowsSection `toml:"windows"`
	Check   CheckSection   `toml:"check"`
	Gates   GatesSection   `toml:"gates"`

	path     string
	disabled map[diag.Code]bool
	severity map[diag.Code]diag.Severity
}

// Default returns the built-in configuration used when no manifest exists.
func Default() *Config {
	w := rules.DefaultWindows()
	return &Config{
		Windows: WindowsSection{Receipt: w.Receipt, Error: w.Error, Resilience: w.Resilience},
		Check:   CheckSection{IncludeTests: true},
		Gates: GatesSection{
			EnforceReceipts:     true,
			EnforceToolFailures: true,
			EnforceEscalation:   true,
		},
	}
}

// Load parses and validates the manifest at path. Absent keys keep their
// defaults; unknown keys are rejected rather than silently ignored.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if und := meta.Undecoded(); len(und) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, und[0].String())
	}
	cfg.path = path
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir finds and loads the nearest manifest at or above startDir,
// falling back to built-in defaults when none exists.
func LoadFromDir(startDir string) (*Config, error) {
	path, ok, err := FindFailkitToml(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) validate() error {
	c.disabled = make(map[diag.Code]bool, len(c.Rules.Disabled))
	for _, id := range c.Rules.Disabled {
		code := diag.ParseCode(id)
		if code == diag.CodeNone {
			return fmt.Errorf("[rules] disabled: unknown rule %q", id)
		}
		c.disabled[code] = true
	}
	c.severity = make(map[diag.Code]diag.Severity, len(c.Rules.Severity))
	for id, name := range c.Rules.Severity {
		code := diag.ParseCode(id)
		if code == diag.CodeNone {
			return fmt.Errorf("[rules] severity: unknown rule %q", id)
		}
		sev, ok := diag.ParseSeverity(name)
		if !ok {
			return fmt.Errorf("[rules] severity: unknown severity %q for %s", name, code.ID())
		}
		c.severity[code] = sev
	}
	if c.Windows.Receipt < 0 || c.Windows.Error < 0 || c.Windows.Resilience < 0 {
		return errors.New("[windows] values must be non-negative")
	}
	for _, pat := range c.Check.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("[check] exclude: invalid pattern %q", pat)
		}
	}
	return nil
}

// Path reports where the config was loaded from; empty for built-in
// defaults.
func (c *Config) Path() string { return c.path }

// DisabledCodes returns the parsed disable set; nil means nothing disabled.
func (c *Config) DisabledCodes() map[diag.Code]bool { return c.disabled }

// SeverityOverrides returns the parsed per-rule severity overrides.
func (c *Config) SeverityOverrides() map[diag.Code]diag.Severity { return c.severity }

// RuleWindows converts the windows section into scanner form.
func (c *Config) RuleWindows() rules.Windows {
	return rules.Windows{
		Receipt:    c.Windows.Receipt,
		Error:      c.Windows.Error,
		Resilience: c.Windows.Resilience,
	}
}

// GateConfig converts the gates section into runtime gate form. Extra
// escalation patterns have no manifest key; set them programmatically.
func (c *Config) GateConfig() gate.Config {
	return gate.Config{
		EnforceReceipts:     c.Gates.EnforceReceipts,
		EnforceToolFailures: c.Gates.EnforceToolFailures,
		EnforceEscalation:   c.Gates.EnforceEscalation,
		ExtraVerbs:          c.Gates.ExtraVerbs,
	}
}
