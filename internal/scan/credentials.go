package scan

import (
	"strings"

	"failkit/internal/diag"
	"failkit/internal/dialect"
	"failkit/internal/rules"
	"failkit/internal/source"
)

// Credentials scans every Python unit for credential-shaped literals. It has
// no framework gate.
type Credentials struct{}

func (Credentials) Name() string { return "credentials" }

func (Credentials) Framework() dialect.Framework { return dialect.FrameworkUnknown }

func (Credentials) Gate(u *source.Unit) bool { return u != nil }

func (s Credentials) Scan(ctx *Context, u *source.Unit) []*diag.Issue {
	var out []*diag.Issue
	for n := uint32(1); int(n) <= u.LineCount(); n++ {
		line := u.Line(n)
		if line == "" {
			continue
		}
		// At most one finding per line; table order makes the vendor token
		// shape win over the generic assignment shape.
		p, loc, ok := rules.FirstMatch(rules.SecretPatterns, line)
		if !ok {
			continue
		}
		if source.InComment(line, loc[0]) {
			continue
		}
		if rules.AnyIn(rules.EnvLookupPatterns, line) {
			continue
		}
		if lit := quotedInner(line[loc[0]:loc[1]]); lit != "" && rules.IsTemplatePlaceholder(lit) {
			continue
		}
		start := u.LineStart(n) + uint32(loc[0])
		site := Site{
			Line: n,
			Col:  loc[0],
			Span: source.NewSpan(u.ID, start, u.LineStart(n)+uint32(loc[1])),
			Text: line[loc[0]:loc[1]],
		}
		before := len(out)
		out = emit(out, u, site, diag.SevWarning, diag.HardcodedCredential,
			"hardcoded credential: "+p.Description, s.Name(), p.Name)
		if len(out) > before {
			if v := assignedIdent(line, loc); v != "" {
				out[len(out)-1].WithMeta("variable", v)
			}
		}
	}
	return out
}

// assignedIdent returns the identifier a secret match assigns to, or "" for
// bare literals. Assignment-shaped matches start at the variable; vendor
// token matches start at the literal, so the text before them is checked
// for a trailing assignment. Only the name reaches metadata, never the
// value.
func assignedIdent(line string, loc []int) string {
	match := line[loc[0]:loc[1]]
	if v := identPrefix(match); v != "" {
		rest := strings.TrimLeft(match[len(v):], " \t")
		if rest != "" && (rest[0] == '=' || rest[0] == ':') {
			return v
		}
	}
	pre := strings.TrimRight(line[:loc[0]], " \t'\"")
	if pre == "" {
		return ""
	}
	sep := pre[len(pre)-1]
	if sep != '=' && sep != ':' {
		return ""
	}
	pre = strings.TrimRight(pre[:len(pre)-1], " \t'\"")
	return identAtEnd(pre)
}

// identPrefix returns the identifier prefix of s.
func identPrefix(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	return s[:i]
}

// identAtEnd returns the identifier suffix of s, or "" when s does not end
// in one.
func identAtEnd(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			i--
			continue
		}
		break
	}
	if i == len(s) || s[i] >= '0' && s[i] <= '9' {
		return ""
	}
	return s[i:]
}

// quotedInner returns the text between the first and last quote of s, or ""
// when s holds no quoted literal.
func quotedInner(s string) string {
	first := strings.IndexAny(s, `'"`)
	last := strings.LastIndexAny(s, `'"`)
	if first < 0 || last <= first {
		return ""
	}
	return s[first+1 : last]
}
