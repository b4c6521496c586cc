package scan

import (
	"strings"

	"failkit/internal/source"
)

// BlockIndex records, per line, whether the line sits inside a try
// statement's extent. It is indentation-based: a try: at indent I covers
// every following line more indented than I, and its except/else/finally
// clauses at indent I keep the statement open. A dedent to I or below on
// any other line closes it.
//
// The index is approximate the same way every heuristic here is: it does
// not see line continuations or triple-quoted strings. Protection decisions
// stay advisory.
type BlockIndex struct {
	inside []bool
}

// NewBlockIndex computes the index for one unit in a single pass.
func NewBlockIndex(u *source.Unit) *BlockIndex {
	n := 0
	if u != nil {
		n = u.LineCount()
	}
	idx := &BlockIndex{inside: make([]bool, n+1)}
	var stack []int
	for ln := 1; ln <= n; ln++ {
		line := u.Line(uint32(ln))
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			// Blank and comment lines never dedent a block.
			idx.inside[ln] = len(stack) > 0
			continue
		}
		ind := indentWidth(line)
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if ind > top {
				break
			}
			if ind == top && isHandlerClause(trimmed) {
				break
			}
			stack = stack[:len(stack)-1]
		}
		idx.inside[ln] = len(stack) > 0
		if isTryHeader(trimmed) {
			stack = append(stack, ind)
		}
	}
	return idx
}

// Protected reports whether the 1-based line sits inside a try extent.
func (b *BlockIndex) Protected(line uint32) bool {
	if b == nil || line == 0 || int(line) >= len(b.inside) {
		return false
	}
	return b.inside[line]
}

func isTryHeader(trimmed string) bool {
	return strings.HasPrefix(trimmed, "try:") || strings.HasPrefix(trimmed, "try :")
}

func isHandlerClause(trimmed string) bool {
	return strings.HasPrefix(trimmed, "except") ||
		strings.HasPrefix(trimmed, "finally") ||
		strings.HasPrefix(trimmed, "else")
}

// indentWidth counts the leading whitespace bytes of a line.
func indentWidth(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			return i
		}
	}
	return len(line)
}
