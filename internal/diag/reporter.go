package diag

import "failkit/internal/source"

// Reporter receives finished issues. Scanners report through this
// interface so collection, deduplication and capping stay composable.
type Reporter interface {
	Report(issue *Issue)
}

// BagReporter collects reported issues into a bag.
type BagReporter struct {
	Bag *Bag
}

func (r *BagReporter) Report(issue *Issue) {
	if r == nil || r.Bag == nil {
		return
	}
	r.Bag.Add(issue)
}

// DedupReporter drops exact repeats before they reach the next reporter.
// The key includes the message so two distinct findings that happen to
// share a location both survive.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

type dedupKey struct {
	code  Code
	sev   Severity
	unit  source.UnitID
	start uint32
	end   uint32
	msg   string
}

// NewDedupReporter wraps next with duplicate suppression.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}, 16),
	}
}

func (r *DedupReporter) Report(issue *Issue) {
	if issue == nil || r.next == nil {
		return
	}
	k := dedupKey{
		code:  issue.Code,
		sev:   issue.Severity,
		unit:  issue.Primary.Unit,
		start: issue.Primary.Start,
		end:   issue.Primary.End,
		msg:   issue.Message,
	}
	if _, dup := r.seen[k]; dup {
		return
	}
	r.seen[k] = struct{}{}
	r.next.Report(issue)
}
