package scan

import (
	"regexp"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/dialect"
	"failkit/internal/directive"
	"failkit/internal/rules"
	"failkit/internal/source"
)

// Scanner examines one unit for one dialect's integrity gaps.
type Scanner interface {
	// Name tags findings ("langchain", "crewai", "autogen", "credentials").
	Name() string
	// Framework the scanner interprets; FrameworkUnknown for generic scanners.
	Framework() dialect.Framework
	// Gate decides cheaply whether Scan is worth running on the unit.
	Gate(u *source.Unit) bool
	// Scan walks the unit and returns its findings. Stateless, never fails.
	Scan(ctx *Context, u *source.Unit) []*diag.Issue
}

// Context carries per-unit derived state shared by all scanners of one pass.
type Context struct {
	Windows rules.Windows
	Blocks  *BlockIndex
}

// NewContext builds the shared state for one unit.
func NewContext(u *source.Unit, w rules.Windows) *Context {
	return &Context{Windows: w, Blocks: NewBlockIndex(u)}
}

// Site is one candidate location: a pattern match on one line.
type Site struct {
	Line uint32
	Col  int
	Span source.Span
	Text string
}

// sitesOf collects at most one site per line for re, skipping matches that
// the comment heuristic places inside a comment.
func sitesOf(u *source.Unit, re *regexp.Regexp) []Site {
	var out []Site
	for n := uint32(1); int(n) <= u.LineCount(); n++ {
		line := u.Line(n)
		loc := re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if source.InComment(line, loc[0]) {
			continue
		}
		start := u.LineStart(n) + uint32(loc[0])
		end := u.LineStart(n) + uint32(loc[1])
		out = append(out, Site{
			Line: n,
			Col:  loc[0],
			Span: source.NewSpan(u.ID, start, end),
			Text: line[loc[0]:loc[1]],
		})
	}
	return out
}

// lineSite builds a site covering the trimmed content of one line, for
// findings anchored at a header rather than at a pattern match.
func lineSite(u *source.Unit, line uint32) Site {
	text := u.Line(line)
	ind := indentWidth(text)
	start := u.LineStart(line) + uint32(ind)
	return Site{
		Line: line,
		Col:  ind,
		Span: source.NewSpan(u.ID, start, u.LineEnd(line)),
		Text: strings.TrimSpace(text),
	}
}

// emit appends a finding for the site unless a suppression directive on the
// site's line or the line before covers the code. Call-shaped sites carry
// their construct name as metadata.
func emit(out []*diag.Issue, u *source.Unit, site Site, sev diag.Severity, code diag.Code, msg, dialectName, pattern string) []*diag.Issue {
	if directive.SuppressedAt(u, site.Line, code) {
		return out
	}
	iss := diag.New(sev, code, site.Span, msg).WithDialect(dialectName).WithPattern(pattern)
	if name := constructOf(site.Text); name != "" {
		iss.WithMeta("construct", name)
	}
	return append(out, iss)
}

var constructShape = regexp.MustCompile(`^[@A-Za-z_][A-Za-z0-9_. ]*$`)

// constructOf trims a call-shaped match to the name before its opening
// paren. Matches without a paren, or whose head is not a bare identifier
// chain, yield "" so literal fragments never reach issue metadata.
func constructOf(text string) string {
	i := strings.IndexByte(text, '(')
	if i < 0 {
		return ""
	}
	name := strings.TrimLeft(strings.TrimSpace(text[:i]), ".")
	if name == "" || !constructShape.MatchString(name) {
		return ""
	}
	return name
}

// windowAfter reports pattern evidence anywhere in lines [line, line+n].
func windowAfter(u *source.Unit, line uint32, n int, pats []rules.Pattern) bool {
	last := int(line) + n
	for ln := int(line); ln <= last && ln <= u.LineCount(); ln++ {
		if rules.AnyIn(pats, u.Line(uint32(ln))) {
			return true
		}
	}
	return false
}

// windowAround reports pattern evidence anywhere in lines [line-n, line+n].
func windowAround(u *source.Unit, line uint32, n int, pats []rules.Pattern) bool {
	first := int(line) - n
	if first < 1 {
		first = 1
	}
	last := int(line) + n
	for ln := first; ln <= last && ln <= u.LineCount(); ln++ {
		if rules.AnyIn(pats, u.Line(uint32(ln))) {
			return true
		}
	}
	return false
}

// siteArgs extracts the argument list of a call site whose matched text ends
// at the opening parenthesis. The span locates the list in the unit so
// in-args evidence can be annotated by position.
func siteArgs(u *source.Unit, site Site) (string, source.Span, bool) {
	if site.Text == "" || site.Text[len(site.Text)-1] != '(' {
		return "", source.Span{}, false
	}
	text, span := ArgSpan(u, site.Line, site.Col+len(site.Text)-1)
	if text == "" {
		return "", source.Span{}, false
	}
	return text, span, true
}

// noteSpan locates re's first match inside an argument list and returns its
// unit span. args must be the text ArgSpan returned for at.
func noteSpan(args string, at source.Span, re *regexp.Regexp) (source.Span, bool) {
	loc := re.FindStringIndex(args)
	if loc == nil {
		return source.Span{}, false
	}
	return source.NewSpan(at.Unit, at.Start+uint32(loc[0]), at.Start+uint32(loc[1])), true
}

// protectedSite reports whether the site is covered by failure isolation:
// an enclosing try body, or configuration-level handler evidence in the
// argument span or the error window.
func protectedSite(ctx *Context, u *source.Unit, site Site) bool {
	if ctx.Blocks.Protected(site.Line) {
		return true
	}
	if args, _, ok := siteArgs(u, site); ok && rules.AnyIn(rules.HandlerConfigPatterns, args) {
		return true
	}
	return windowAround(u, site.Line, ctx.Windows.Error, rules.HandlerConfigPatterns)
}
