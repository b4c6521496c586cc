// Package directive recognizes inline suppression markers. A finding is
// silenced by a comment on its own line or the line immediately before it.
// Four spellings are honored, all case-insensitive:
//
//	# fail-kit-disable              silence every rule on the line
//	# fail-kit-disable: FK001       silence listed rules (comma/space list)
//	# failkit-ignore                silence every rule
//	# noqa / # noqa: FK001          lint-style spelling, bare form silences all
//	# type: ignore[failkit]         typing-style spelling, silences all
//
// Suppression happens before an issue is constructed; a suppressed finding
// never reaches a reporter.
package directive

import (
	"regexp"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/source"
)

// Directive is one parsed suppression marker.
type Directive struct {
	// All is set for the bare forms that silence every rule.
	All bool
	// Codes lists the rules a scoped form silences.
	Codes []diag.Code
}

var (
	reDisable    = regexp.MustCompile(`(?i)#\s*fail-?kit-disable\b(\s*:\s*[a-z0-9,\s]+)?`)
	reIgnore     = regexp.MustCompile(`(?i)#\s*fail-?kit[-:]\s*ignore\b`)
	reNoqa       = regexp.MustCompile(`(?i)#\s*noqa\b(\s*:\s*[a-z0-9,\s]+)?`)
	reTypeIgnore = regexp.MustCompile(`(?i)#\s*type:\s*ignore\[\s*failkit\s*\]`)
)

// ParseLine extracts a suppression directive from one source line.
// The second return is false when the line carries none.
func ParseLine(line string) (Directive, bool) {
	if !strings.Contains(line, "#") {
		return Directive{}, false
	}
	if reTypeIgnore.MatchString(line) || reIgnore.MatchString(line) {
		return Directive{All: true}, true
	}
	if m := reDisable.FindStringSubmatch(line); m != nil {
		if m[1] == "" {
			return Directive{All: true}, true
		}
		codes := parseCodeList(m[1])
		if len(codes) == 0 {
			// A scoped disable naming no known rule silences nothing.
			return Directive{}, false
		}
		return Directive{Codes: codes}, true
	}
	if m := reNoqa.FindStringSubmatch(line); m != nil {
		if m[1] == "" {
			return Directive{All: true}, true
		}
		codes := parseCodeList(m[1])
		if len(codes) == 0 {
			// noqa scoped to another tool's rules is not ours to honor.
			return Directive{}, false
		}
		return Directive{Codes: codes}, true
	}
	return Directive{}, false
}

func parseCodeList(list string) []diag.Code {
	list = strings.TrimLeft(list, ": \t")
	parts := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	codes := make([]diag.Code, 0, len(parts))
	for _, p := range parts {
		if c := diag.ParseCode(p); c != diag.CodeNone {
			codes = append(codes, c)
		}
	}
	return codes
}

// Matches reports whether the directive silences code.
func (d Directive) Matches(code diag.Code) bool {
	if d.All {
		return true
	}
	for _, c := range d.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// SuppressedAt reports whether a finding of code at the 1-based line is
// silenced by a directive on that line or the line before.
func SuppressedAt(u *source.Unit, line uint32, code diag.Code) bool {
	if u == nil || line == 0 {
		return false
	}
	if d, ok := ParseLine(u.Line(line)); ok && d.Matches(code) {
		return true
	}
	if line > 1 {
		if d, ok := ParseLine(u.Line(line - 1)); ok && d.Matches(code) {
			return true
		}
	}
	return false
}
