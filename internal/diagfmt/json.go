package diagfmt

import (
	"encoding/json"
	"io"
	"sort"

	"failkit/internal/diag"
	"failkit/internal/source"
)

// LocationJSON is a file location in machine output. Byte offsets are
// authoritative; line/col are included on request for human tooling.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

// NoteJSON is a secondary note attached to a diagnostic.
type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

// FixEditJSON is one text edit of a fix.
type FixEditJSON struct {
	Location    LocationJSON `json:"location"`
	NewText     string       `json:"new_text"`
	OldText     string       `json:"old_text,omitempty"`
	BeforeLines []string     `json:"before_lines,omitempty"`
	AfterLines  []string     `json:"after_lines,omitempty"`
}

// FixJSON is one remediation candidate.
type FixJSON struct {
	ID            string        `json:"id,omitempty"`
	Title         string        `json:"title"`
	Kind          string        `json:"kind"`
	Applicability string        `json:"applicability"`
	IsPreferred   bool          `json:"is_preferred,omitempty"`
	BuildError    string        `json:"build_error,omitempty"`
	Edits         []FixEditJSON `json:"edits,omitempty"`
}

// DiagnosticJSON is the machine projection of one issue.
type DiagnosticJSON struct {
	Severity string            `json:"severity"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category,omitempty"`
	Dialect  string            `json:"dialect,omitempty"`
	Pattern  string            `json:"pattern,omitempty"`
	Location LocationJSON      `json:"location"`
	Meta     map[string]string `json:"meta,omitempty"`
	Notes    []NoteJSON        `json:"notes,omitempty"`
	Fixes    []FixJSON         `json:"fixes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON format.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

func makeLocation(span source.Span, units *source.UnitSet, pathMode PathMode, includePositions bool) LocationJSON {
	u := units.Get(span.Unit)

	loc := LocationJSON{
		File:      renderPath(u, units, pathMode),
		StartByte: span.Start,
		EndByte:   span.End,
	}

	if includePositions && u != nil {
		startPos, endPos := units.Resolve(span)
		loc.StartLine = startPos.Line
		loc.StartCol = startPos.Col
		loc.EndLine = endPos.Line
		loc.EndCol = endPos.Col
	}

	return loc
}

// orderFixes returns the fixes in the order clients should offer them:
// preferred first, then safest applicability, kind, title, id.
func orderFixes(fixes []*diag.Fix) []*diag.Fix {
	out := append([]*diag.Fix(nil), fixes...)
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i], out[j]
		if fi.IsPreferred != fj.IsPreferred {
			return fi.IsPreferred
		}
		if fi.Applicability != fj.Applicability {
			return fi.Applicability < fj.Applicability
		}
		if fi.Kind != fj.Kind {
			return fi.Kind < fj.Kind
		}
		if fi.Title != fj.Title {
			return fi.Title < fj.Title
		}
		return fi.ID < fj.ID
	})
	return out
}

// BuildDiagnosticsOutput assembles the JSON structure without serializing.
// Issues come out in bag order; call bag.Sort() first for stable output.
func BuildDiagnosticsOutput(bag *diag.Bag, units *source.UnitSet, opts JSONOpts) (DiagnosticsOutput, error) {
	items := bag.Items()
	maxItems := len(items)
	if opts.Max > 0 && opts.Max < maxItems {
		maxItems = opts.Max
	}

	diagnostics := make([]DiagnosticJSON, 0, maxItems)

	for i := range maxItems {
		iss := items[i]

		diagJSON := DiagnosticJSON{
			Severity: iss.Severity.String(),
			Code:     iss.Code.ID(),
			Message:  iss.Message,
			Dialect:  iss.Dialect,
			Pattern:  iss.Pattern,
			Location: makeLocation(iss.Primary, units, opts.PathMode, opts.IncludePositions),
		}
		if iss.Category != diag.CategoryNone {
			diagJSON.Category = iss.Category.String()
		}
		if len(iss.Meta) > 0 {
			diagJSON.Meta = make(map[string]string, len(iss.Meta))
			for k, v := range iss.Meta {
				diagJSON.Meta[k] = v
			}
		}

		if opts.IncludeNotes && len(iss.Notes) > 0 {
			diagJSON.Notes = make([]NoteJSON, len(iss.Notes))
			for j, note := range iss.Notes {
				diagJSON.Notes[j] = NoteJSON{
					Message:  note.Msg,
					Location: makeLocation(note.Span, units, opts.PathMode, opts.IncludePositions),
				}
			}
		}

		if opts.IncludeFixes && len(iss.Fixes) > 0 {
			ctx := diag.FixBuildContext{Units: units}
			fixes := orderFixes(iss.Fixes)
			diagJSON.Fixes = make([]FixJSON, 0, len(fixes))
			for _, fix := range fixes {
				resolved, err := fix.Resolve(ctx)
				fixJSON := FixJSON{
					ID:            resolved.ID,
					Title:         resolved.Title,
					Kind:          resolved.Kind.String(),
					Applicability: resolved.Applicability.String(),
					IsPreferred:   resolved.IsPreferred,
				}
				if err != nil {
					fixJSON.BuildError = err.Error()
				} else if len(resolved.Edits) > 0 {
					fixJSON.Edits = make([]FixEditJSON, len(resolved.Edits))
					for k, edit := range resolved.Edits {
						editJSON := FixEditJSON{
							Location: makeLocation(edit.Span, units, opts.PathMode, opts.IncludePositions),
							NewText:  edit.NewText,
							OldText:  edit.OldText,
						}
						if opts.IncludePreviews {
							if preview, err := buildFixEditPreview(units, edit); err == nil {
								editJSON.BeforeLines = append([]string(nil), preview.before...)
								editJSON.AfterLines = append([]string(nil), preview.after...)
							}
						}
						fixJSON.Edits[k] = editJSON
					}
				}
				diagJSON.Fixes = append(diagJSON.Fixes, fixJSON)
			}
		}

		diagnostics = append(diagnostics, diagJSON)
	}

	return DiagnosticsOutput{
		Diagnostics: diagnostics,
		Count:       len(diagnostics),
	}, nil
}

// JSON writes the machine format: an object with the diagnostics array and a
// count, with locations, notes and fixes per options.
func JSON(w io.Writer, bag *diag.Bag, units *source.UnitSet, opts JSONOpts) error {
	output, err := BuildDiagnosticsOutput(bag, units, opts)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
