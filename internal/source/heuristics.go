package source

import (
	"path/filepath"
	"strings"
)

// The predicates in this file are textual heuristics, not a lexer. They are
// best-effort by contract: the quote counter can misjudge triple-quoted
// strings and unusual escaping, and the comment scanner trusts it. Callers
// treat the answers as advisory, the same way every finding is advisory.

// CommentStart returns the byte index of the '#' that starts a comment on
// the line, or -1 when the line has no comment. Hashes that the string
// heuristic places inside a literal do not count.
func CommentStart(line string) int {
	inSingle := false
	inDouble := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return i
			}
		}
	}
	return -1
}

// InComment reports whether the byte column col (0-based) on the line falls
// inside a comment.
func InComment(line string, col int) bool {
	cs := CommentStart(line)
	return cs >= 0 && col >= cs
}

// InString reports whether the byte column col (0-based) on the line falls
// inside a string literal, by counting unescaped quote delimiters to its
// left. An odd count of either quote kind means "inside". Approximate; see
// the package note above.
func InString(line string, col int) bool {
	if col > len(line) {
		col = len(line)
	}
	singles := 0
	doubles := 0
	for i := 0; i < col; i++ {
		switch line[i] {
		case '\\':
			i++
		case '\'':
			singles++
		case '"':
			doubles++
		}
	}
	return singles%2 == 1 || doubles%2 == 1
}

// IsPythonPath reports whether path names a Python source file.
func IsPythonPath(path string) bool {
	return strings.HasSuffix(path, ".py")
}

// IsTestPath reports whether path follows a test-file convention:
// a test_ basename prefix, a _test.py or .spec.py suffix, or a tests /
// __tests__ directory component.
func IsTestPath(path string) bool {
	slashed := filepath.ToSlash(path)
	base := strings.ToLower(filepath.Base(slashed))
	if strings.HasPrefix(base, "test_") {
		return true
	}
	if strings.HasSuffix(base, "_test.py") || strings.HasSuffix(base, ".spec.py") {
		return true
	}
	lower := strings.ToLower(slashed)
	return strings.Contains(lower, "/tests/") ||
		strings.Contains(lower, "/__tests__/") ||
		strings.HasPrefix(lower, "tests/") ||
		strings.HasPrefix(lower, "__tests__/")
}
