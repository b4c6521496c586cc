package testkit

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"failkit/internal/diag"
	"failkit/internal/source"
)

// CheckIssueInvariants runs a minimal set of invariants on a scan result:
// 1) every issue carries a registered code, and its category matches it
// 2) every primary span points into u and lies within its content bounds
// 3) every note span does the same
func CheckIssueInvariants(bag *diag.Bag, u *source.Unit) error {
	if bag == nil || u == nil {
		return fmt.Errorf("nil bag or unit")
	}
	lenContent, err := safecast.Conv[uint32](len(u.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}

	codes := diag.Codes()
	for i, iss := range bag.Items() {
		if iss == nil {
			return fmt.Errorf("nil issue at index %d", i)
		}
		if !slices.Contains(codes, iss.Code) {
			return fmt.Errorf("issue %d has unregistered code %d", i, iss.Code)
		}
		if iss.Category != iss.Code.Category() {
			return fmt.Errorf("issue %d category mismatch: got=%v want=%v",
				i, iss.Category, iss.Code.Category())
		}
		if iss.Severity > diag.SevError {
			return fmt.Errorf("issue %d severity out of range: %d", i, iss.Severity)
		}
		if err := checkSpan(iss.Primary, u, lenContent); err != nil {
			return fmt.Errorf("issue %d primary: %w", i, err)
		}
		for j, note := range iss.Notes {
			if err := checkSpan(note.Span, u, lenContent); err != nil {
				return fmt.Errorf("issue %d note %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func checkSpan(sp source.Span, u *source.Unit, lenContent uint32) error {
	if sp.Unit != u.ID {
		return fmt.Errorf("span unit mismatch: got=%d want=%d", sp.Unit, u.ID)
	}
	if sp.End < sp.Start {
		return fmt.Errorf("inverted span: %v", sp)
	}
	if sp.End > lenContent {
		return fmt.Errorf("span end beyond content: %d > %d", sp.End, lenContent)
	}
	return nil
}
