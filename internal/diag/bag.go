package diag

import "sort"

// Bag collects the issues of one analysis pass, capped at max items so a
// pathological file cannot flood a session.
type Bag struct {
	items []*Issue
	max   uint16
}

// NewBag creates a bag holding at most max issues. max of 0 means no cap.
func NewBag(max uint16) *Bag {
	return &Bag{items: make([]*Issue, 0, 16), max: max}
}

// Add appends an issue, respecting the cap. Returns false once full.
func (b *Bag) Add(issue *Issue) bool {
	if issue == nil {
		return false
	}
	if b.max > 0 && len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, issue)
	return true
}

// Len reports the number of collected issues.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items exposes the collected issues. Callers must not mutate the slice.
func (b *Bag) Items() []*Issue {
	if b == nil {
		return nil
	}
	return b.items
}

// HasErrors reports whether any issue is an error.
func (b *Bag) HasErrors() bool {
	for _, it := range b.Items() {
		if it.Severity == SevError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any issue is a warning.
func (b *Bag) HasWarnings() bool {
	for _, it := range b.Items() {
		if it.Severity == SevWarning {
			return true
		}
	}
	return false
}

// Merge appends every issue of other, respecting the cap.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	for _, it := range other.items {
		if !b.Add(it) {
			return
		}
	}
}

// Sort orders issues by unit, start offset, end offset, severity
// (errors first), then code. The sort is stable so equal keys keep their
// arrival order, which keeps output reproducible across runs.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		a, c := b.items[i], b.items[j]
		if a.Primary.Unit != c.Primary.Unit {
			return a.Primary.Unit < c.Primary.Unit
		}
		if a.Primary.Start != c.Primary.Start {
			return a.Primary.Start < c.Primary.Start
		}
		if a.Primary.End != c.Primary.End {
			return a.Primary.End < c.Primary.End
		}
		if a.Severity != c.Severity {
			return a.Severity > c.Severity
		}
		return a.Code < c.Code
	})
}

// Dedup removes exact (code, location) repeats, keeping the first. Two
// dialect gates matching one ambiguous file is the usual producer of such
// repeats. Call after Sort for deterministic survivors.
func (b *Bag) Dedup() {
	if len(b.items) < 2 {
		return
	}
	type key struct {
		code  Code
		unit  uint32
		start uint32
		end   uint32
	}
	seen := make(map[key]struct{}, len(b.items))
	out := b.items[:0]
	for _, it := range b.items {
		k := key{
			code:  it.Code,
			unit:  uint32(it.Primary.Unit),
			start: it.Primary.Start,
			end:   it.Primary.End,
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	b.items = out
}
