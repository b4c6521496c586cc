package diagfmt

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"failkit/internal/diag"
	"failkit/internal/source"
)

type fixEditPreview struct {
	before []string
	after  []string
}

// buildFixEditPreview renders the lines an edit touches before and after the
// edit, so clients can show a diff without applying anything.
func buildFixEditPreview(units *source.UnitSet, edit diag.TextEdit) (fixEditPreview, error) {
	if units == nil {
		return fixEditPreview{}, fmt.Errorf("nil unit set")
	}
	u := units.Get(edit.Span.Unit)
	if u == nil {
		return fixEditPreview{}, fmt.Errorf("unit %d not found", edit.Span.Unit)
	}

	contentLen, err := safecast.Conv[uint32](len(u.Content))
	if err != nil {
		return fixEditPreview{}, fmt.Errorf("content length overflow: %w", err)
	}
	if edit.Span.End < edit.Span.Start || edit.Span.End > contentLen {
		return fixEditPreview{}, fmt.Errorf("edit span %d..%d out of range", edit.Span.Start, edit.Span.End)
	}

	startPos := u.Resolve(edit.Span.Start)
	endPos := u.Resolve(edit.Span.End)
	endLine := max(endPos.Line, startPos.Line)

	blockStart := u.LineStart(startPos.Line)
	blockEnd := max(u.LineEnd(endLine), blockStart)

	original := string(u.Content[blockStart:blockEnd])
	relStart := int(edit.Span.Start - blockStart)
	relEnd := min(int(edit.Span.End-blockStart), len(original))

	var after strings.Builder
	after.Grow(len(original) + len(edit.NewText))
	after.WriteString(original[:relStart])
	after.WriteString(edit.NewText)
	after.WriteString(original[relEnd:])

	return fixEditPreview{
		before: splitPreviewLines(original),
		after:  splitPreviewLines(after.String()),
	}, nil
}

func splitPreviewLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
