package diag

import "failkit/internal/source"

// TextEdit replaces the bytes of Span with NewText. An insertion uses an
// empty span at the insertion point. OldText, when non-empty, is a guard:
// the apply engine compares it against the current bytes of Span and skips
// the edit on mismatch, so fixes computed against stale text never corrupt
// a file.
type TextEdit struct {
	Span    source.Span
	NewText string
	OldText string
}

// FixKind classifies a fix for clients that group actions.
type FixKind uint8

const (
	FixKindQuickFix FixKind = iota
	FixKindRefactor
	FixKindSuppress
)

func (k FixKind) String() string {
	switch k {
	case FixKindRefactor:
		return "refactor"
	case FixKindSuppress:
		return "suppress"
	default:
		return "quickfix"
	}
}

// FixApplicability states how much trust an automated apply may place in
// the fix. Batch apply (--all) takes only AlwaysSafe fixes.
type FixApplicability uint8

const (
	ApplicabilityAlwaysSafe FixApplicability = iota
	ApplicabilitySafeWithHeuristics
	ApplicabilityManualReview
)

func (a FixApplicability) String() string {
	switch a {
	case ApplicabilityAlwaysSafe:
		return "always-safe"
	case ApplicabilitySafeWithHeuristics:
		return "safe-with-heuristics"
	default:
		return "manual-review"
	}
}

// FixBuildContext is what a lazy fix gets to work with when it finally
// builds its edits.
type FixBuildContext struct {
	Units *source.UnitSet
}

// FixThunk lazily builds the edits of a fix against current text.
type FixThunk func(FixBuildContext) ([]TextEdit, error)

// Fix is one remediation candidate attached to an issue. Either Edits or
// Thunk is set; Resolve materializes both forms.
type Fix struct {
	ID            string
	Title         string
	Kind          FixKind
	Applicability FixApplicability
	IsPreferred   bool
	Edits         []TextEdit
	Thunk         FixThunk
}

// ResolvedFix is a fix with its edits materialized.
type ResolvedFix struct {
	ID            string
	Title         string
	Kind          FixKind
	Applicability FixApplicability
	IsPreferred   bool
	Edits         []TextEdit
}

// Resolve materializes the fix's edits. A thunk error leaves the edits
// empty; callers report the fix as unbuildable rather than failing the
// whole pass.
func (f *Fix) Resolve(ctx FixBuildContext) (ResolvedFix, error) {
	out := ResolvedFix{
		ID:            f.ID,
		Title:         f.Title,
		Kind:          f.Kind,
		Applicability: f.Applicability,
		IsPreferred:   f.IsPreferred,
	}
	if f.Thunk != nil {
		edits, err := f.Thunk(ctx)
		if err != nil {
			return out, err
		}
		out.Edits = edits
		return out, nil
	}
	out.Edits = append([]TextEdit(nil), f.Edits...)
	return out, nil
}
