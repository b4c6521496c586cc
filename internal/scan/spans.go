package scan

import (
	"strings"

	"failkit/internal/source"
)

const (
	// argSpanLineBudget bounds how many lines one argument list may span.
	argSpanLineBudget = 30
	// funcBodyLineBudget and classBodyLineBudget bound body spans.
	funcBodyLineBudget  = 50
	classBodyLineBudget = 100
	// decoratorReach bounds how far below a decorator the def header may sit.
	decoratorReach = 5
)

// ArgSpan returns the text of a call's argument list, starting at the
// opening parenthesis at 0-based byte column openCol of the 1-based line.
// Parentheses inside string literals do not count. An unterminated list is
// cut at the budget; the function never fails.
func ArgSpan(u *source.Unit, line uint32, openCol int) (string, source.Span) {
	start := u.LineStart(line) + uint32(openCol)
	empty := source.NewSpan(u.ID, start, start)
	if int(start) >= len(u.Content) || u.Content[start] != '(' {
		return "", empty
	}

	limitLine := int(line) + argSpanLineBudget
	var limit uint32
	if limitLine >= u.LineCount() {
		limit = uint32(len(u.Content))
	} else {
		limit = u.LineEnd(uint32(limitLine))
	}

	depth := 0
	var quote byte
	for pos := start; pos < limit; pos++ {
		c := u.Content[pos]
		if quote != 0 {
			switch c {
			case '\\':
				pos++
			case quote, '\n':
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end := pos + 1
				return string(u.Content[start:end]), source.NewSpan(u.ID, start, end)
			}
		}
	}
	return string(u.Content[start:limit]), source.NewSpan(u.ID, start, limit)
}

// BodySpan returns the indented body under a def/class header at the
// 1-based line: every following line strictly more indented than the
// header, blanks included, up to budget lines.
func BodySpan(u *source.Unit, header uint32, budget int) (string, source.Span) {
	headIndent := indentWidth(u.Line(header))
	first := header + 1
	last := header
	count := 0
	for n := first; int(n) <= u.LineCount() && count < budget; n++ {
		line := u.Line(n)
		if strings.TrimSpace(line) == "" {
			last = n
			count++
			continue
		}
		if indentWidth(line) <= headIndent {
			break
		}
		last = n
		count++
	}
	if last < first {
		pos := u.LineEnd(header)
		return "", source.NewSpan(u.ID, pos, pos)
	}
	start := u.LineStart(first)
	end := u.LineEnd(last)
	return string(u.Content[start:end]), source.NewSpan(u.ID, start, end)
}

// nextDef finds the def header a decorator at the 1-based line applies to,
// skipping stacked decorators and comments, within decoratorReach lines.
func nextDef(u *source.Unit, line uint32) (uint32, bool) {
	for n := line + 1; int(n) <= u.LineCount() && n <= line+decoratorReach; n++ {
		trimmed := strings.TrimSpace(u.Line(n))
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@"):
			continue
		case strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def "):
			return n, true
		default:
			return 0, false
		}
	}
	return 0, false
}
