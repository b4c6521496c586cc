package source

import "fmt"

// Span is a half-open byte range [Start, End) inside one unit.
type Span struct {
	Unit  UnitID
	Start uint32
	End   uint32
}

// NewSpan builds a span, swapping the bounds if they arrive reversed.
func NewSpan(unit UnitID, start, end uint32) Span {
	if end < start {
		start, end = end, start
	}
	return Span{Unit: unit, Start: start, End: end}
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool { return s.End <= s.Start }

// Len returns the number of bytes covered.
func (s Span) Len() uint32 {
	if s.Empty() {
		return 0
	}
	return s.End - s.Start
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset uint32) bool {
	return offset >= s.Start && offset < s.End
}

// Cover returns the minimal span containing both s and other.
// Spans from different units are not coverable; s wins.
func (s Span) Cover(other Span) Span {
	if s.Unit != other.Unit {
		return s
	}
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("unit=%d [%d..%d)", s.Unit, s.Start, s.End)
}
