package scan

import (
	"regexp"

	"failkit/internal/diag"
	"failkit/internal/dialect"
	"failkit/internal/rules"
	"failkit/internal/source"
)

var (
	cwKickoff = regexp.MustCompile(`\b\w*crew\w*\s*\.\s*(?:kickoff_for_each|kickoff_async|kickoff)\s*\(` +
		`|\bCrew\s*\([^)]*\)\s*\.\s*kickoff`)
	cwTask          = regexp.MustCompile(`\bTask\s*\(`)
	cwAgent         = regexp.MustCompile(`\bAgent\s*\(`)
	cwToolDecorator = regexp.MustCompile(`^\s*@tool\b`)

	cwTaskErrorArg = regexp.MustCompile(`\b(?:on_error|error_callback|callback)\s*=`)
	cwTaskSync     = regexp.MustCompile(`async_execution\s*=\s*False`)
	cwTaskOutput   = regexp.MustCompile(`\b(?:expected_output|output_pydantic|output_json|output_file)\s*=`)
	cwAgentMemory  = regexp.MustCompile(`\bmemory\s*=`)
	cwAgentVerbose = regexp.MustCompile(`verbose\s*=\s*True`)
)

// CrewAI scans crew kickoffs, task and agent constructors, and tool bodies.
type CrewAI struct{}

func (CrewAI) Name() string { return "crewai" }

func (CrewAI) Framework() dialect.Framework { return dialect.FrameworkCrewAI }

func (CrewAI) Gate(u *source.Unit) bool {
	return dialect.UsesFramework(u, dialect.FrameworkCrewAI)
}

func (s CrewAI) Scan(ctx *Context, u *source.Unit) []*diag.Issue {
	var out []*diag.Issue

	for _, site := range sitesOf(u, cwKickoff) {
		if !windowAfter(u, site.Line, ctx.Windows.Receipt, rules.ReceiptPatterns) {
			out = emit(out, u, site, diag.SevError, diag.MissingReceipt,
				"crew kickoff leaves no receipt", s.Name(), "crew-kickoff")
		}
		if !protectedSite(ctx, u, site) {
			out = emit(out, u, site, diag.SevWarning, diag.MissingErrorHandling,
				"unprotected crew kickoff", s.Name(), "crew-kickoff")
		}
	}

	for _, site := range sitesOf(u, cwTask) {
		args, _, ok := siteArgs(u, site)
		if !ok {
			continue
		}
		if !cwTaskErrorArg.MatchString(args) && !cwTaskSync.MatchString(args) {
			out = emit(out, u, site, diag.SevWarning, diag.TaskMissingErrorHandler,
				"task has no error callback", s.Name(), "task-constructor")
		}
		if !cwTaskOutput.MatchString(args) {
			out = emit(out, u, site, diag.SevInfo, diag.MissingReceipt,
				"task declares no expected output", s.Name(), "task-constructor")
		}
	}

	for _, site := range sitesOf(u, cwAgent) {
		args, argsAt, ok := siteArgs(u, site)
		if !ok {
			continue
		}
		if !cwAgentMemory.MatchString(args) {
			out = emit(out, u, site, diag.SevInfo, diag.MissingProvenance,
				"agent keeps no memory", s.Name(), "agent-constructor")
		}
		if cwAgentVerbose.MatchString(args) && !source.IsTestPath(u.Path) {
			before := len(out)
			out = emit(out, u, site, diag.SevWarning, diag.SecretExposure,
				"verbose agent leaks prompts outside tests", s.Name(), "agent-constructor")
			if len(out) > before {
				if sp, found := noteSpan(args, argsAt, cwAgentVerbose); found {
					out[len(out)-1].AddNote(sp, "verbose=True set here")
				}
			}
		}
	}

	for _, site := range sitesOf(u, cwToolDecorator) {
		def, ok := nextDef(u, site.Line)
		if !ok {
			continue
		}
		body, _ := BodySpan(u, def, funcBodyLineBudget)
		if body == "" {
			continue
		}
		if rules.AnyIn(rules.DestructiveBodyPatterns, body) && !rules.AnyIn(rules.ConfirmationPatterns, body) {
			out = emit(out, u, lineSite(u, def), diag.SevWarning, diag.UnconfirmedSideEffect,
				"destructive tool call without confirmation", s.Name(), "tool-decorator")
		}
	}

	return out
}
