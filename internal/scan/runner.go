package scan

import (
	"fmt"
	"os"

	"failkit/internal/diag"
	"failkit/internal/directive"
	"failkit/internal/rules"
	"failkit/internal/source"
)

// All returns the stock scanners in fixed order. The order only matters for
// tie-breaking equal findings in the merge; detection is order-independent.
func All() []Scanner {
	return []Scanner{LangChain{}, CrewAI{}, AutoGen{}, Credentials{}}
}

// Run analyzes one unit with the given scanners and returns the merged,
// ordered findings. Non-Python units yield nothing. A panicking scanner is
// isolated: it logs to stderr and contributes zero issues.
func Run(u *source.Unit, scanners []Scanner, w rules.Windows) []*diag.Issue {
	if u == nil || !source.IsPythonPath(u.Path) {
		return nil
	}
	ctx := NewContext(u, w)
	var all []*diag.Issue
	for _, s := range scanners {
		if !s.Gate(u) {
			continue
		}
		all = append(all, runOne(s, ctx, u)...)
	}
	return Merge(u, all)
}

func runOne(s Scanner, ctx *Context, u *source.Unit) (issues []*diag.Issue) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "scan: scanner %s failed on %s: %v\n", s.Name(), u.Path, r)
			issues = nil
		}
	}()
	return s.Scan(ctx, u)
}

// Merge flattens per-scanner findings into one deterministic list:
// suppression re-checked as a safety net, exact (code, location) duplicates
// collapsed, ascending by position.
func Merge(u *source.Unit, issues []*diag.Issue) []*diag.Issue {
	bag := diag.NewBag(0)
	for _, iss := range issues {
		if iss == nil {
			continue
		}
		line := u.Resolve(iss.Primary.Start).Line
		if directive.SuppressedAt(u, line, iss.Code) {
			continue
		}
		bag.Add(iss)
	}
	bag.Sort()
	bag.Dedup()
	return bag.Items()
}
