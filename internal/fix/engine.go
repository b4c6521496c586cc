package fix

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"failkit/internal/diag"
	"failkit/internal/source"
)

// ErrNoFixes is returned when no fixes were applied.
var ErrNoFixes = errors.New("no applicable fixes found")

// ApplyMode determines selection strategy for fixes.
type ApplyMode uint8

const (
	ApplyModeOnce ApplyMode = iota
	ApplyModeAll
	ApplyModeID
)

// ApplyOptions configures how fixes are selected.
type ApplyOptions struct {
	Mode     ApplyMode
	TargetID string
}

// AppliedFix records a successfully applied fix.
type AppliedFix struct {
	ID            string
	Title         string
	Code          diag.Code
	Message       string
	Applicability diag.FixApplicability
	PrimaryPath   string
	EditCount     int
}

// SkippedFix captures a skipped or failed fix with a reason.
type SkippedFix struct {
	ID     string
	Title  string
	Reason string
}

// FileChange summarises modifications performed on a file.
type FileChange struct {
	Path      string
	EditCount int
}

// ApplyResult aggregates applied fixes, skipped ones, and file changes.
type ApplyResult struct {
	Applied     []AppliedFix
	Skipped     []SkippedFix
	FileChanges []FileChange
}

type candidate struct {
	issue *diag.Issue
	fix   diag.ResolvedFix
	order int
}

// Apply collects fixes from issues, selects a subset according to opts, and
// applies them to the units' backing files.
func Apply(units *source.UnitSet, issues []*diag.Issue, opts ApplyOptions) (*ApplyResult, error) {
	result := &ApplyResult{
		Applied:     make([]AppliedFix, 0),
		Skipped:     make([]SkippedFix, 0),
		FileChanges: make([]FileChange, 0),
	}
	if units == nil {
		return result, fmt.Errorf("fix: unit set is nil")
	}

	ctx := diag.FixBuildContext{Units: units}
	candidates, buildSkips := gatherCandidates(ctx, issues)
	result.Skipped = append(result.Skipped, buildSkips...)

	if len(candidates) == 0 {
		return result, ErrNoFixes
	}

	sortCandidates(candidates)

	selected, selectionSkips := selectCandidates(candidates, opts)
	result.Skipped = append(result.Skipped, selectionSkips...)

	if len(selected) == 0 {
		return result, ErrNoFixes
	}

	applied, skippedDuringApply, changes, err := applyCandidates(units, selected)
	result.Applied = append(result.Applied, applied...)
	result.Skipped = append(result.Skipped, skippedDuringApply...)
	result.FileChanges = append(result.FileChanges, changes...)

	if err != nil {
		return result, err
	}
	if len(result.Applied) == 0 {
		return result, ErrNoFixes
	}
	return result, nil
}

// gatherCandidates materializes every fix attached to the issues and reports
// any skips encountered. Fixes whose thunks fail to build or that build zero
// edits become SkippedFix entries instead of candidates, as does a second
// fix carrying an ID already seen. A fix with an empty ID gets one
// synthesized from the issue code, unit, start offset, and the fix index.
// Each candidate carries a monotonically increasing order value so the later
// stable sort is deterministic.
func gatherCandidates(ctx diag.FixBuildContext, issues []*diag.Issue) ([]candidate, []SkippedFix) {
	cands := make([]candidate, 0)
	skips := make([]SkippedFix, 0)
	seen := make(map[string]bool)

	order := 0
	for _, iss := range issues {
		if iss == nil || len(iss.Fixes) == 0 {
			continue
		}
		for idx, f := range iss.Fixes {
			if f == nil {
				continue
			}
			resolved, err := f.Resolve(ctx)
			if err != nil {
				skips = append(skips, SkippedFix{
					ID:     resolved.ID,
					Title:  resolved.Title,
					Reason: fmt.Sprintf("failed to build edits: %v", err),
				})
				continue
			}
			if len(resolved.Edits) == 0 {
				skips = append(skips, SkippedFix{
					ID:     resolved.ID,
					Title:  resolved.Title,
					Reason: "fix has no edits",
				})
				continue
			}
			if resolved.ID == "" {
				resolved.ID = fmt.Sprintf("%s-%d-%d-%d", iss.Code.ID(), iss.Primary.Unit, iss.Primary.Start, idx)
			}
			if seen[resolved.ID] {
				skips = append(skips, SkippedFix{
					ID:     resolved.ID,
					Title:  resolved.Title,
					Reason: "duplicate fix id",
				})
				continue
			}
			seen[resolved.ID] = true
			cands = append(cands, candidate{
				issue: iss,
				fix:   resolved,
				order: order,
			})
			order++
		}
	}
	return cands, skips
}

// sortCandidates sorts the candidate slice in-place to produce a deterministic
// selection order. The keys, in precedence order: unit, span start, span end,
// insertion order, issue code, preference (preferred first), fix ID, title.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := candidates[i].issue, candidates[j].issue
		if di.Primary.Unit != dj.Primary.Unit {
			return di.Primary.Unit < dj.Primary.Unit
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if candidates[i].order != candidates[j].order {
			return candidates[i].order < candidates[j].order
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		if candidates[i].fix.IsPreferred != candidates[j].fix.IsPreferred {
			return candidates[i].fix.IsPreferred && !candidates[j].fix.IsPreferred
		}
		if candidates[i].fix.ID != candidates[j].fix.ID {
			return candidates[i].fix.ID < candidates[j].fix.ID
		}
		return candidates[i].fix.Title < candidates[j].fix.Title
	})
}

func selectCandidates(candidates []candidate, opts ApplyOptions) ([]candidate, []SkippedFix) {
	switch opts.Mode {
	case ApplyModeID:
		for _, cand := range candidates {
			if cand.fix.ID == opts.TargetID {
				return []candidate{cand}, nil
			}
		}
		return nil, []SkippedFix{{
			ID:     opts.TargetID,
			Reason: "fix id not found",
		}}
	case ApplyModeAll:
		selected := make([]candidate, 0, len(candidates))
		skipped := make([]SkippedFix, 0)
		for _, cand := range candidates {
			if cand.fix.Applicability == diag.ApplicabilityAlwaysSafe {
				selected = append(selected, cand)
				continue
			}
			skipped = append(skipped, SkippedFix{
				ID:     cand.fix.ID,
				Title:  cand.fix.Title,
				Reason: fmt.Sprintf("applicability is %s", cand.fix.Applicability.String()),
			})
		}
		return selected, skipped
	case ApplyModeOnce:
		var selected []candidate
		var fallback *candidate
		for i := range candidates {
			cand := candidates[i]
			if cand.fix.Kind == diag.FixKindSuppress {
				// Suppressions are offered, never picked by default.
				continue
			}
			if cand.fix.Applicability == diag.ApplicabilityAlwaysSafe {
				selected = []candidate{cand}
				break
			}
			if fallback == nil {
				tmp := cand
				fallback = &tmp
			}
		}
		if len(selected) == 0 && fallback != nil {
			selected = []candidate{*fallback}
		}
		return selected, nil
	default:
		return nil, nil
	}
}

func applyCandidates(units *source.UnitSet, selected []candidate) ([]AppliedFix, []SkippedFix, []FileChange, error) {
	buffers := make(map[source.UnitID][]byte)
	appliedEdits := make(map[source.UnitID][]diag.TextEdit)
	unitEditCount := make(map[source.UnitID]int)
	dirtyUnits := make(map[source.UnitID]bool)

	applied := make([]AppliedFix, 0, len(selected))
	skipped := make([]SkippedFix, 0)

	baseDir := units.BaseDir()

	for _, cand := range selected {
		buckets := groupEditsByUnit(cand.fix.Edits)
		stagedBuffers := make(map[source.UnitID][]byte)
		stagedEdits := make(map[source.UnitID][]diag.TextEdit)
		totalEdits := 0
		var skipReason string

		stagedApplied := make(map[source.UnitID][]diag.TextEdit)

		for unitID, edits := range buckets {
			unit := units.Get(unitID)
			if unit == nil {
				skipReason = "edit targets an unknown unit"
				break
			}
			if unit.Virtual() {
				skipReason = "target unit is virtual"
				break
			}

			if conflictsWithExisting(appliedEdits[unitID], edits) {
				skipReason = fmt.Sprintf("conflicts with previously applied edits in %s", unit.FormatPath(source.PathAuto, baseDir))
				break
			}

			base := buffers[unitID]
			if base == nil {
				base = append([]byte(nil), unit.Content...)
			}
			working := append([]byte(nil), base...)

			sort.SliceStable(edits, func(i, j int) bool {
				if edits[i].Span.Start == edits[j].Span.Start {
					return edits[i].Span.End > edits[j].Span.End
				}
				return edits[i].Span.Start > edits[j].Span.Start
			})

			existingApplied := append([]diag.TextEdit(nil), appliedEdits[unitID]...)

			for _, edit := range edits {
				start := int(edit.Span.Start) + cumulativeDelta(existingApplied, int(edit.Span.Start))
				end := int(edit.Span.End) + cumulativeDelta(existingApplied, int(edit.Span.End))
				if start < 0 || end < start || end > len(working) {
					skipReason = "edit span out of range"
					break
				}
				if edit.OldText != "" && string(working[start:end]) != edit.OldText {
					skipReason = "existing text does not match expected content"
					break
				}
				suffix := append([]byte(nil), working[end:]...)
				working = append(append(working[:start], []byte(edit.NewText)...), suffix...)
				existingApplied = insertEditSorted(existingApplied, edit)
			}
			if skipReason != "" {
				break
			}
			stagedBuffers[unitID] = working
			copied := make([]diag.TextEdit, len(edits))
			copy(copied, edits)
			stagedEdits[unitID] = copied
			stagedApplied[unitID] = existingApplied
			totalEdits += len(edits)
		}

		if skipReason != "" {
			skipped = append(skipped, SkippedFix{
				ID:     cand.fix.ID,
				Title:  cand.fix.Title,
				Reason: skipReason,
			})
			continue
		}

		for unitID, buf := range stagedBuffers {
			buffers[unitID] = buf
			appliedEdits[unitID] = stagedApplied[unitID]
			unitEditCount[unitID] += len(stagedEdits[unitID])
			dirtyUnits[unitID] = true
		}

		applied = append(applied, AppliedFix{
			ID:            cand.fix.ID,
			Title:         cand.fix.Title,
			Code:          cand.issue.Code,
			Message:       cand.issue.Message,
			Applicability: cand.fix.Applicability,
			PrimaryPath:   formatUnitPath(units, cand.issue.Primary.Unit),
			EditCount:     totalEdits,
		})
	}

	if len(applied) == 0 {
		return applied, skipped, nil, nil
	}

	fileChanges := make([]FileChange, 0, len(dirtyUnits))
	for unitID := range dirtyUnits {
		buf := buffers[unitID]
		unit := units.Get(unitID)

		mode := os.FileMode(0o644)
		if info, err := os.Stat(unit.Path); err == nil {
			mode = info.Mode()
		}

		if err := os.WriteFile(unit.Path, buf, mode); err != nil {
			return applied, skipped, fileChanges, fmt.Errorf("write %s: %w", unit.Path, err)
		}

		fileChanges = append(fileChanges, FileChange{
			Path:      unit.FormatPath(source.PathRelative, baseDir),
			EditCount: unitEditCount[unitID],
		})
	}

	sort.SliceStable(fileChanges, func(i, j int) bool {
		return fileChanges[i].Path < fileChanges[j].Path
	})

	return applied, skipped, fileChanges, nil
}

func conflictsWithExisting(existing []diag.TextEdit, edits []diag.TextEdit) bool {
	for _, prev := range existing {
		for _, cand := range edits {
			if spansConflict(prev, cand) {
				return true
			}
		}
	}
	return false
}

// spansConflict reports whether two text edits' spans overlap. Spans are
// half-open intervals [Start, End). Two zero-length edits never conflict; a
// zero-length edit conflicts with a non-zero span when its position falls
// inside that span; two non-zero spans conflict on any overlap.
func spansConflict(a, b diag.TextEdit) bool {
	aStart, aEnd := a.Span.Start, a.Span.End
	bStart, bEnd := b.Span.Start, b.Span.End

	if aStart == aEnd && bStart == bEnd {
		return false
	}
	if aStart == aEnd {
		return bStart <= aStart && aStart < bEnd
	}
	if bStart == bEnd {
		return aStart <= bStart && bStart < aEnd
	}
	return aStart < bEnd && bStart < aEnd
}

func groupEditsByUnit(edits []diag.TextEdit) map[source.UnitID][]diag.TextEdit {
	buckets := make(map[source.UnitID][]diag.TextEdit)
	for _, edit := range edits {
		buckets[edit.Span.Unit] = append(buckets[edit.Span.Unit], edit)
	}
	return buckets
}

// cumulativeDelta sums the length deltas of edits already applied at or
// before pos, translating an offset in the original text to the working
// buffer.
func cumulativeDelta(edits []diag.TextEdit, pos int) int {
	delta := 0
	for _, e := range edits {
		eStart := int(e.Span.Start)
		if eStart > pos {
			break
		}
		eEnd := int(e.Span.End)
		length := eEnd - eStart
		change := len(e.NewText) - length
		if eEnd <= pos {
			delta += change
		}
	}
	return delta
}

func insertEditSorted(edits []diag.TextEdit, edit diag.TextEdit) []diag.TextEdit {
	insertIdx := sort.Search(len(edits), func(i int) bool {
		if edits[i].Span.Start == edit.Span.Start {
			return edits[i].Span.End >= edit.Span.End
		}
		return edits[i].Span.Start > edit.Span.Start
	})
	edits = append(edits, diag.TextEdit{})
	copy(edits[insertIdx+1:], edits[insertIdx:])
	edits[insertIdx] = edit
	return edits
}

func formatUnitPath(units *source.UnitSet, id source.UnitID) string {
	unit := units.Get(id)
	if unit == nil {
		return ""
	}
	return unit.FormatPath(source.PathAuto, units.BaseDir())
}
