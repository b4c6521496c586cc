package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"failkit/internal/diag"
	"failkit/internal/source"
)

const gutterWidth = 7 // "%4d | "

// palette holds the colorizers pretty output uses. Color is forced on or
// off per options, independent of terminal detection.
type palette struct {
	severity map[diag.Severity]*color.Color
	location *color.Color
	add      *color.Color
	del      *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		severity: map[diag.Severity]*color.Color{
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevInfo:    color.New(color.FgBlue, color.Bold),
			diag.SevHint:    color.New(color.FgCyan, color.Bold),
		},
		location: color.New(color.Bold),
		add:      color.New(color.FgGreen),
		del:      color.New(color.FgRed),
	}
	all := []*color.Color{p.location, p.add, p.del}
	for _, c := range p.severity {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *palette) sev(s diag.Severity) *color.Color {
	if c, ok := p.severity[s]; ok {
		return c
	}
	return p.location
}

// Pretty renders issues in a human-readable compiler style. It walks
// bag.Items() in order; call bag.Sort() first for position-sorted output.
// Each issue prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by a source snippet with a caret under the flagged span, then
// notes and fixes when the options enable them.
func Pretty(w io.Writer, bag *diag.Bag, units *source.UnitSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, iss := range bag.Items() {
		writePrettyIssue(w, iss, units, opts, p)
	}
}

func writePrettyIssue(w io.Writer, iss *diag.Issue, units *source.UnitSet, opts PrettyOpts, p *palette) {
	u := units.Get(iss.Primary.Unit)
	start, _ := units.Resolve(iss.Primary)
	loc := fmt.Sprintf("%s:%d:%d", renderPath(u, units, opts.PathMode), start.Line, start.Col)

	sev := p.sev(iss.Severity)
	fmt.Fprintf(w, "%s: %s %s: %s\n",
		p.location.Sprint(loc),
		sev.Sprint(iss.Severity.String()),
		sev.Sprint(iss.Code.ID()),
		iss.Message,
	)

	if u != nil && opts.Context >= 0 {
		writeSnippet(w, u, iss, start.Line, opts, p)
	}

	if opts.ShowNotes {
		for _, note := range iss.Notes {
			nu := units.Get(note.Span.Unit)
			nStart, _ := units.Resolve(note.Span)
			fmt.Fprintf(w, "  note: %s:%d:%d: %s\n",
				renderPath(nu, units, opts.PathMode), nStart.Line, nStart.Col, note.Msg)
		}
	}

	if opts.ShowFixes && len(iss.Fixes) > 0 {
		writeFixes(w, iss, units, opts, p)
	}
}

func writeSnippet(w io.Writer, u *source.Unit, iss *diag.Issue, primaryLine uint32, opts PrettyOpts, p *palette) {
	lineCount := uint32(u.LineCount())
	if primaryLine == 0 || primaryLine > lineCount {
		return
	}

	first := primaryLine
	last := primaryLine
	if opts.Context > 0 {
		ctx := uint32(opts.Context)
		if first > ctx {
			first -= ctx
		} else {
			first = 1
		}
		last = min(primaryLine+ctx, lineCount)
	}

	avail := 0
	if opts.Width > gutterWidth {
		avail = int(opts.Width) - gutterWidth
	}

	for n := first; n <= last; n++ {
		text := u.Line(n)
		if avail > 0 {
			text = runewidth.Truncate(text, avail, "...")
		}
		fmt.Fprintf(w, "%4d | %s\n", n, text)
		if n == primaryLine {
			writeCaret(w, u, iss.Primary, n, avail, p.sev(iss.Severity))
		}
	}
}

func writeCaret(w io.Writer, u *source.Unit, span source.Span, line uint32, avail int, c *color.Color) {
	lineStart := u.LineStart(line)
	lineEnd := u.LineEnd(line)

	from := min(max(span.Start, lineStart), lineEnd)
	to := min(max(span.End, from), lineEnd)

	prefix := runewidth.StringWidth(string(u.Content[lineStart:from]))
	mark := max(runewidth.StringWidth(string(u.Content[from:to])), 1)

	caret := strings.Repeat(" ", prefix) + "^" + strings.Repeat("~", mark-1)
	if avail > 0 {
		caret = runewidth.Truncate(caret, avail, "")
	}
	fmt.Fprintf(w, "     | %s\n", c.Sprint(caret))
}

func writeFixes(w io.Writer, iss *diag.Issue, units *source.UnitSet, opts PrettyOpts, p *palette) {
	ctx := diag.FixBuildContext{Units: units}
	for i, fix := range orderFixes(iss.Fixes) {
		resolved, err := fix.Resolve(ctx)

		tags := []string{
			"kind=" + resolved.Kind.String(),
			"applicability=" + resolved.Applicability.String(),
		}
		if resolved.IsPreferred {
			tags = append(tags, "preferred")
		}
		if resolved.ID != "" {
			tags = append(tags, "id="+resolved.ID)
		}
		fmt.Fprintf(w, "  fix #%d: %s (%s)\n", i+1, resolved.Title, strings.Join(tags, ", "))

		if err != nil {
			fmt.Fprintf(w, "      unbuildable: %v\n", err)
			continue
		}

		for _, edit := range resolved.Edits {
			eu := units.Get(edit.Span.Unit)
			eStart, _ := units.Resolve(edit.Span)
			text := edit.NewText
			if runewidth.StringWidth(text) > 48 {
				text = runewidth.Truncate(text, 45, "...")
			}
			fmt.Fprintf(w, "      apply=%q at %s:%d:%d\n",
				text, renderPath(eu, units, opts.PathMode), eStart.Line, eStart.Col)

			if opts.ShowPreview {
				preview, perr := buildFixEditPreview(units, edit)
				if perr != nil {
					continue
				}
				fmt.Fprintf(w, "      preview:\n")
				for _, line := range preview.before {
					fmt.Fprintf(w, "        %s\n", p.del.Sprint("- "+line))
				}
				for _, line := range preview.after {
					fmt.Fprintf(w, "        %s\n", p.add.Sprint("+ "+line))
				}
			}
		}
	}
}
