package dialect

import "failkit/internal/source"

// Hint is a small piece of evidence suggesting a particular framework.
// It is not itself a finding; it feeds classification before the scanners
// decide what to look for.
type Hint struct {
	Framework Framework
	Score     int
	Reason    string
	Span      source.Span
}

// Evidence aggregates per-unit hints collected while walking lines.
type Evidence struct {
	hints []Hint
}

// NewEvidence creates a new Evidence container.
func NewEvidence() *Evidence {
	return &Evidence{
		hints: make([]Hint, 0, 16),
	}
}

// Add appends a hint to the evidence collection.
func (e *Evidence) Add(h Hint) {
	if e == nil {
		return
	}
	e.hints = append(e.hints, h)
}

// Hints returns the collected hints.
func (e *Evidence) Hints() []Hint {
	if e == nil {
		return nil
	}
	return e.hints
}
