package fix

import (
	"fmt"
	"regexp"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/scan"
	"failkit/internal/source"
)

var (
	reDefHeader    = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)`)
	reCallHead     = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)\s*\(`)
	reAssignHead   = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=[^=]`)
	reSecretLine   = regexp.MustCompile(`^(\s*)([A-Za-z_][A-Za-z0-9_.]*)\s*=\s*['"].*['"]\s*(?:#.*)?$`)
	reVerboseTrue  = regexp.MustCompile(`verbose\s*=\s*True`)
	reCodeExecDict = regexp.MustCompile(`code_execution_config\s*=\s*\{`)
)

// Attach synthesizes remediation candidates for every issue, appending them
// in place. It does not deduplicate; call it once per scan.
func Attach(issues []*diag.Issue) {
	for _, iss := range issues {
		if iss == nil {
			continue
		}
		for _, f := range Remedies(iss) {
			iss.AddFix(f)
		}
	}
}

// Remedies builds the remediation candidates for one issue. Every fix is
// thunk-backed: edits are synthesized against the unit revision current at
// apply time, and a site that no longer matches yields no edits rather than
// an error. Each issue also gets a suppression action.
func Remedies(iss *diag.Issue) []*diag.Fix {
	if iss == nil {
		return nil
	}
	out := make([]*diag.Fix, 0, 2)
	if f := primaryRemedy(iss); f != nil {
		out = append(out, f)
	}
	out = append(out, suppressRemedy(iss))
	return out
}

func primaryRemedy(iss *diag.Issue) *diag.Fix {
	switch iss.Code {
	case diag.MissingReceipt:
		return receiptRemedy(iss)
	case diag.MissingErrorHandling:
		return tryWrapRemedy(iss)
	case diag.SecretExposure:
		return exposureRemedy(iss)
	case diag.UnconfirmedSideEffect:
		return confirmationRemedy(iss)
	case diag.MissingResilience:
		return resilienceRemedy(iss)
	case diag.HardcodedCredential:
		return envLookupRemedy(iss)
	case diag.MissingTerminationBound:
		return boundRemedy(iss)
	default:
		return nil
	}
}

// receiptRemedy inserts a receipt-construction call after the flagged
// statement, or as the first statement of a flagged tool body.
func receiptRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	switch iss.Pattern {
	case "base-tool-class":
		// Picking a method body inside a class is guesswork.
		return nil
	case "tool-decorator", "tool-registration":
		f := Lazy("record a receipt at the top of the tool body",
			func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
				u, line, ok := issueLine(ctx, span)
				if !ok {
					return nil, nil
				}
				m := reDefHeader.FindStringSubmatch(u.Line(line))
				if m == nil {
					return nil, nil
				}
				end := statementEnd(u, line)
				if headerHasInlineBody(u, end) {
					return nil, nil
				}
				insAfter := end
				if d := docstringEnd(u, end+1); d != 0 {
					insAfter = d
				}
				body := m[1] + "    "
				text := "\n" + body + "failkit.create_receipt(action_id=failkit.new_action_id(), input_hash=failkit.hash_data(locals()))"
				at := u.LineEnd(insAfter)
				return []diag.TextEdit{{Span: source.NewSpan(u.ID, at, at), NewText: text}}, nil
			},
			WithID(remedyID(iss.Code, "receipt", span)), Preferred())
		return &f
	default:
		f := Lazy("record a receipt after this call",
			func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
				u, line, ok := issueLine(ctx, span)
				if !ok {
					return nil, nil
				}
				head := u.Line(line)
				end := statementEnd(u, line)
				call := "failkit.create_receipt(action_id=failkit.new_action_id())"
				if m := reAssignHead.FindStringSubmatch(head); m != nil {
					call = fmt.Sprintf("failkit.create_receipt(action_id=failkit.new_action_id(), output_hash=failkit.hash_data(%s))", m[1])
				}
				text := "\n" + indentOf(head) + call
				at := u.LineEnd(end)
				return []diag.TextEdit{{Span: source.NewSpan(u.ID, at, at), NewText: text}}, nil
			},
			WithID(remedyID(iss.Code, "receipt", span)), Preferred())
		return &f
	}
}

// tryWrapRemedy rewrites the flagged statement into a try block with a
// handler that records the failure and re-raises.
func tryWrapRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	f := Lazy("wrap in try/except and record the failure",
		func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
			u, line, ok := issueLine(ctx, span)
			if !ok {
				return nil, nil
			}
			head := u.Line(line)
			indent := indentOf(head)
			end := statementEnd(u, line)

			start := u.LineStart(line)
			stop := u.LineEnd(end)
			old := string(u.Content[start:stop])

			action := "call"
			if m := reCallHead.FindStringSubmatch(head); m != nil {
				action = m[1]
			}

			var b strings.Builder
			b.WriteString(indent + "try:\n")
			for n := line; n <= end; n++ {
				b.WriteString("    " + u.Line(n))
				b.WriteByte('\n')
			}
			b.WriteString(indent + "except Exception as exc:\n")
			b.WriteString(indent + "    failkit.record_failure(action=\"" + action + "\", error=exc)\n")
			b.WriteString(indent + "    raise")

			edit := diag.TextEdit{Span: source.NewSpan(u.ID, start, stop), NewText: b.String(), OldText: old}
			return []diag.TextEdit{edit}, nil
		},
		WithID(remedyID(iss.Code, "trywrap", span)), WithKind(diag.FixKindRefactor), Preferred())
	return &f
}

// exposureRemedy flips the leaking toggle: verbose logging off for crew
// agents, docker isolation on for code-executing agents.
func exposureRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	switch iss.Dialect {
	case "crewai":
		f := Lazy("turn off verbose prompt logging",
			func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
				u, line, ok := issueLine(ctx, span)
				if !ok {
					return nil, nil
				}
				argText, argSpan := siteArgSpan(u, line)
				if argText == "" {
					return nil, nil
				}
				loc := reVerboseTrue.FindStringIndex(argText)
				if loc == nil {
					return nil, nil
				}
				s := argSpan.Start + uint32(loc[0])
				e := argSpan.Start + uint32(loc[1])
				edit := diag.TextEdit{Span: source.NewSpan(u.ID, s, e), NewText: "verbose=False", OldText: argText[loc[0]:loc[1]]}
				return []diag.TextEdit{edit}, nil
			},
			WithID(remedyID(iss.Code, "verbose", span)), Preferred())
		return &f
	case "autogen":
		f := Lazy("run generated code inside docker",
			func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
				u, line, ok := issueLine(ctx, span)
				if !ok {
					return nil, nil
				}
				argText, argSpan := siteArgSpan(u, line)
				if argText == "" {
					return nil, nil
				}
				loc := reCodeExecDict.FindStringIndex(argText)
				if loc == nil {
					return nil, nil
				}
				at := argSpan.Start + uint32(loc[1])
				return []diag.TextEdit{{Span: source.NewSpan(u.ID, at, at), NewText: `"use_docker": True, `}}, nil
			},
			WithID(remedyID(iss.Code, "docker", span)), Preferred())
		return &f
	default:
		return nil
	}
}

// confirmationRemedy gates the destructive tool body behind a confirmation
// check that raises a structured block record when withheld.
func confirmationRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	f := Lazy("require confirmation before the destructive action",
		func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
			u, line, ok := issueLine(ctx, span)
			if !ok {
				return nil, nil
			}
			m := reDefHeader.FindStringSubmatch(u.Line(line))
			if m == nil {
				return nil, nil
			}
			end := statementEnd(u, line)
			if headerHasInlineBody(u, end) {
				return nil, nil
			}
			insAfter := end
			if d := docstringEnd(u, end+1); d != 0 {
				insAfter = d
			}
			body := m[1] + "    "
			name := m[2]
			text := "\n" + body + fmt.Sprintf("if not failkit.confirm_action(%q):", name) +
				"\n" + body + "    " + fmt.Sprintf("raise failkit.ActionBlocked(%q)", name)
			at := u.LineEnd(insAfter)
			return []diag.TextEdit{{Span: source.NewSpan(u.ID, at, at), NewText: text}}, nil
		},
		WithID(remedyID(iss.Code, "confirm", span)), Preferred())
	return &f
}

// resilienceRemedy leaves a scaffold note above the flagged call.
func resilienceRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	f := Lazy("leave a timeout and retry scaffold note",
		func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
			u, line, ok := issueLine(ctx, span)
			if !ok {
				return nil, nil
			}
			indent := indentOf(u.Line(line))
			text := indent + "# wrap with a timeout and retry policy before shipping, e.g. tenacity:\n" +
				indent + "#   @retry(stop=stop_after_attempt(3), wait=wait_exponential())\n"
			at := u.LineStart(line)
			return []diag.TextEdit{{Span: source.NewSpan(u.ID, at, at), NewText: text}}, nil
		},
		WithID(remedyID(iss.Code, "retry", span)))
	return &f
}

// envLookupRemedy replaces a whole-line literal assignment with an
// environment lookup plus a presence check. Any other shape yields nothing.
func envLookupRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	f := Lazy("read the credential from the environment",
		func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
			u, line, ok := issueLine(ctx, span)
			if !ok {
				return nil, nil
			}
			head := u.Line(line)
			m := reSecretLine.FindStringSubmatch(head)
			if m == nil {
				return nil, nil
			}
			indent, target := m[1], m[2]
			key := strings.ToUpper(target[strings.LastIndexByte(target, '.')+1:])
			start := u.LineStart(line)
			stop := u.LineEnd(line)
			text := indent + target + " = os.environ.get(\"" + key + "\")\n" +
				indent + "if not " + target + ":\n" +
				indent + "    raise RuntimeError(\"" + key + " is not set\")"
			edit := diag.TextEdit{Span: source.NewSpan(u.ID, start, stop), NewText: text, OldText: head}
			return []diag.TextEdit{edit}, nil
		},
		WithID(remedyID(iss.Code, "env", span)), Preferred())
	return &f
}

// boundRemedy appends the missing bound argument inside the call's argument
// list, rewriting the closing parenthesis so the guard still holds.
func boundRemedy(iss *diag.Issue) *diag.Fix {
	var title, arg string
	switch {
	case iss.Pattern == "chat-initiation":
		title, arg = "bound the conversation to 10 turns", "max_turns=10"
	case iss.Pattern == "group-chat":
		title, arg = "bound the group chat to 20 rounds", "max_round=20"
	case strings.Contains(iss.Message, "human input"):
		title, arg = "require human input on the proxy agent", `human_input_mode="ALWAYS"`
	case iss.Pattern == "agent-constructor":
		title, arg = "bound consecutive auto-replies to 5", "max_consecutive_auto_reply=5"
	default:
		return nil
	}
	span := iss.Primary
	f := Lazy(title,
		func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
			u, line, ok := issueLine(ctx, span)
			if !ok {
				return nil, nil
			}
			argText, argSpan := siteArgSpan(u, line)
			if argText == "" || argText[len(argText)-1] != ')' {
				return nil, nil
			}
			closeOff := argSpan.End - 1
			insert := ", " + arg
			switch lastNonSpace(argText[:len(argText)-1]) {
			case '(':
				insert = arg
			case ',':
				insert = " " + arg
			}
			edit := diag.TextEdit{Span: source.NewSpan(u.ID, closeOff, closeOff+1), NewText: insert + ")", OldText: ")"}
			return []diag.TextEdit{edit}, nil
		},
		WithID(remedyID(iss.Code, "bound", span)), Preferred())
	return &f
}

// suppressRemedy offers the universal escape hatch: a scoped disable
// directive on the preceding line, indentation-matched.
func suppressRemedy(iss *diag.Issue) *diag.Fix {
	span := iss.Primary
	code := iss.Code
	f := Lazy(fmt.Sprintf("suppress %s on this line", code.ID()),
		func(ctx diag.FixBuildContext) ([]diag.TextEdit, error) {
			u, line, ok := issueLine(ctx, span)
			if !ok {
				return nil, nil
			}
			indent := indentOf(u.Line(line))
			text := indent + "# fail-kit-disable: " + code.ID() + "\n"
			at := u.LineStart(line)
			return []diag.TextEdit{{Span: source.NewSpan(u.ID, at, at), NewText: text}}, nil
		},
		WithID(remedyID(code, "suppress", span)),
		WithKind(diag.FixKindSuppress),
		WithApplicability(diag.ApplicabilityManualReview))
	return &f
}

func remedyID(code diag.Code, slug string, span source.Span) string {
	return fmt.Sprintf("%s-%s-%d-%d", strings.ToLower(code.ID()), slug, span.Unit, span.Start)
}

// issueLine maps an issue's primary span to its unit and 1-based line.
// A stale span that no longer fits the unit reports not-ok.
func issueLine(ctx diag.FixBuildContext, span source.Span) (*source.Unit, uint32, bool) {
	u := ctx.Units.Get(span.Unit)
	if u == nil || int(span.Start) >= len(u.Content) {
		return nil, 0, false
	}
	line := u.Resolve(span.Start).Line
	if line == 0 || int(line) > u.LineCount() {
		return nil, 0, false
	}
	return u, line, true
}

func indentOf(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

// statementEnd returns the last line of the statement opening at the 1-based
// line, following the argument list of its first call if any.
func statementEnd(u *source.Unit, line uint32) uint32 {
	col := strings.IndexByte(u.Line(line), '(')
	if col < 0 {
		return line
	}
	_, span := scan.ArgSpan(u, line, col)
	if span.Empty() {
		return line
	}
	return u.Resolve(span.End - 1).Line
}

// siteArgSpan returns the argument list of the call on the 1-based line,
// starting at the line's first opening parenthesis.
func siteArgSpan(u *source.Unit, line uint32) (string, source.Span) {
	col := strings.IndexByte(u.Line(line), '(')
	if col < 0 {
		return "", source.Span{}
	}
	return scan.ArgSpan(u, line, col)
}

// headerHasInlineBody reports whether the header line carries its body after
// the colon, which leaves no line to insert into.
func headerHasInlineBody(u *source.Unit, endLine uint32) bool {
	text := u.Line(endLine)
	idx := strings.LastIndexByte(text, ':')
	if idx < 0 {
		return false
	}
	rest := strings.TrimSpace(text[idx+1:])
	return rest != "" && !strings.HasPrefix(rest, "#")
}

// docstringEnd returns the last line of a docstring opening at the 1-based
// line, or zero when the line opens none or the closing quote is not nearby.
func docstringEnd(u *source.Unit, line uint32) uint32 {
	trimmed := strings.TrimSpace(u.Line(line))
	var q string
	switch {
	case strings.HasPrefix(trimmed, `"""`):
		q = `"""`
	case strings.HasPrefix(trimmed, "'''"):
		q = "'''"
	default:
		return 0
	}
	if strings.Contains(trimmed[3:], q) {
		return line
	}
	for n := line + 1; int(n) <= u.LineCount() && n <= line+20; n++ {
		if strings.Contains(u.Line(n), q) {
			return n
		}
	}
	return 0
}

func lastNonSpace(s string) byte {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return s[i]
		}
	}
	return 0
}
