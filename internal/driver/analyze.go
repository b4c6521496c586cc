// Package driver orchestrates analysis runs: it walks source trees, loads
// units, fans scanners out across files, consults the result cache and folds
// per-file issues into one deterministic report. Everything policy-shaped
// (disabled rules, severity overrides, issue caps) is applied here so the
// scanners themselves stay config-free.
package driver

import (
	"math"

	"failkit/internal/diag"
	"failkit/internal/fix"
	"failkit/internal/rules"
	"failkit/internal/scan"
	"failkit/internal/source"
)

// Options carries the per-run analysis policy.
type Options struct {
	// Windows overrides the proximity windows; the zero value selects the
	// defaults.
	Windows rules.Windows
	// Disabled rules produce no issues.
	Disabled map[diag.Code]bool
	// Severities overrides the reported severity per rule.
	Severities map[diag.Code]diag.Severity
	// MaxIssues caps the merged bag; 0 means no cap.
	MaxIssues int
	// WithFixes attaches remediation candidates to surviving issues.
	WithFixes bool
}

func (o Options) windows() rules.Windows {
	if o.Windows == (rules.Windows{}) {
		return rules.DefaultWindows()
	}
	return o.Windows
}

func (o Options) bagCap() uint16 {
	if o.MaxIssues <= 0 {
		return 0
	}
	if o.MaxIssues > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(o.MaxIssues)
}

// Analyze runs every scanner over one loaded unit and applies the policy in
// opts. It performs no IO and consults no cache, which makes it the building
// block for both the parallel Check path and editor-driven reanalysis.
func Analyze(u *source.Unit, opts Options) *diag.Bag {
	issues := finish(scan.Run(u, scan.All(), opts.windows()), opts)
	bag := diag.NewBag(opts.bagCap())
	for _, iss := range issues {
		bag.Add(iss)
	}
	return bag
}

// finish applies the run policy to raw scan output: drops disabled rules,
// rewrites overridden severities and, when requested, attaches remediations.
// Raw output is what the cache stores, so this must stay cheap and
// deterministic.
func finish(raw []*diag.Issue, opts Options) []*diag.Issue {
	if len(raw) == 0 {
		return nil
	}
	kept := make([]*diag.Issue, 0, len(raw))
	for _, iss := range raw {
		if opts.Disabled[iss.Code] {
			continue
		}
		if sev, ok := opts.Severities[iss.Code]; ok {
			iss.Severity = sev
		}
		kept = append(kept, iss)
	}
	if opts.WithFixes {
		fix.Attach(kept)
	}
	return kept
}
