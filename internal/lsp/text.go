package lsp

import "unicode/utf8"

// applyChanges folds content-change events into text. A change without a
// range replaces the whole document; ranged changes splice at the UTF-16
// positions the protocol counts in.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := offsetForPosition(text, change.Range.End)
		if start > len(text) {
			start = len(text)
		}
		if end < start {
			end = start
		}
		if end > len(text) {
			end = len(text)
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition maps a protocol position to a byte offset in text.
// Characters count UTF-16 code units, so astral-plane runes cost two.
// Lines past the end clamp to len(text); columns clamp to the line end.
func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	i, line := 0, 0
	for i < len(text) && line < pos.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < pos.Line {
		return len(text)
	}
	col := 0
	for i < len(text) && text[i] != '\n' && col < pos.Character {
		r, size := utf8.DecodeRuneInString(text[i:])
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		if col+units > pos.Character {
			break
		}
		col += units
		i += size
	}
	return i
}
