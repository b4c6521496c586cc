package scan

import (
	"regexp"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/dialect"
	"failkit/internal/rules"
	"failkit/internal/source"
)

var (
	agAgentCtor = regexp.MustCompile(`\b(?:UserProxyAgent|AssistantAgent|ConversableAgent)\s*\(`)
	agInitiate  = regexp.MustCompile(`\.\s*(?:a_initiate_chat|initiate_chats|initiate_chat)\s*\(`)
	agRegister  = regexp.MustCompile(`\.\s*register_for_(?:execution|llm)\s*\(|\bregister_function\s*\(`)
	agGroupChat = regexp.MustCompile(`\bGroupChat\s*\(`)

	agHumanInput     = regexp.MustCompile(`human_input_mode\s*=`)
	agMaxConsecutive = regexp.MustCompile(`max_consecutive_auto_reply\s*=`)
	agCodeExec       = regexp.MustCompile(`code_execution_config\s*=`)
	agUseDocker      = regexp.MustCompile(`use_docker`)
	agMaxTurns       = regexp.MustCompile(`max_turns\s*=\s*[1-9]`)
	agMaxRound       = regexp.MustCompile(`max_round\s*=`)
	agAdminName      = regexp.MustCompile(`admin_name\s*=`)
)

// AutoGen scans conversable-agent constructors, chat initiations, tool
// registrations, and group chats.
type AutoGen struct{}

func (AutoGen) Name() string { return "autogen" }

func (AutoGen) Framework() dialect.Framework { return dialect.FrameworkAutoGen }

func (AutoGen) Gate(u *source.Unit) bool {
	return dialect.UsesFramework(u, dialect.FrameworkAutoGen)
}

func (s AutoGen) Scan(ctx *Context, u *source.Unit) []*diag.Issue {
	var out []*diag.Issue

	for _, site := range sitesOf(u, agAgentCtor) {
		args, argsAt, ok := siteArgs(u, site)
		if !ok {
			continue
		}
		// One FK009 per constructor site: the missing human-input gate
		// outranks the missing auto-reply bound.
		isProxy := strings.HasPrefix(site.Text, "UserProxyAgent")
		switch {
		case isProxy && !agHumanInput.MatchString(args):
			out = emit(out, u, site, diag.SevWarning, diag.MissingTerminationBound,
				"user proxy agent without human input mode", s.Name(), "agent-constructor")
		case !agMaxConsecutive.MatchString(args):
			out = emit(out, u, site, diag.SevInfo, diag.MissingTerminationBound,
				"agent allows unbounded auto-replies", s.Name(), "agent-constructor")
		}
		if agCodeExec.MatchString(args) && !agUseDocker.MatchString(args) {
			before := len(out)
			out = emit(out, u, site, diag.SevWarning, diag.SecretExposure,
				"code execution without docker isolation", s.Name(), "agent-constructor")
			if len(out) > before {
				if sp, found := noteSpan(args, argsAt, agCodeExec); found {
					out[len(out)-1].AddNote(sp, "code execution configured here")
				}
			}
		}
	}

	for _, site := range sitesOf(u, agInitiate) {
		args, _, ok := siteArgs(u, site)
		if !ok || !agMaxTurns.MatchString(args) {
			out = emit(out, u, site, diag.SevWarning, diag.MissingTerminationBound,
				"conversation has no turn limit", s.Name(), "chat-initiation")
		}
		if !protectedSite(ctx, u, site) {
			out = emit(out, u, site, diag.SevWarning, diag.MissingErrorHandling,
				"unprotected conversation initiation", s.Name(), "chat-initiation")
		}
		if !windowAfter(u, site.Line, ctx.Windows.Receipt, rules.ReceiptPatterns) {
			out = emit(out, u, site, diag.SevError, diag.MissingReceipt,
				"conversation leaves no receipt", s.Name(), "chat-initiation")
		}
	}

	for _, site := range sitesOf(u, agRegister) {
		def, ok := nextDef(u, site.Line)
		if !ok {
			continue
		}
		body, _ := BodySpan(u, def, funcBodyLineBudget)
		if !rules.AnyIn(rules.ReceiptPatterns, body) {
			out = emit(out, u, lineSite(u, def), diag.SevWarning, diag.MissingReceipt,
				"registered tool records no receipt", s.Name(), "tool-registration")
		}
		if body != "" && rules.AnyIn(rules.DestructiveBodyPatterns, body) &&
			!rules.AnyIn(rules.ConfirmationPatterns, body) {
			out = emit(out, u, lineSite(u, def), diag.SevWarning, diag.UnconfirmedSideEffect,
				"destructive tool call without confirmation", s.Name(), "tool-registration")
		}
	}

	for _, site := range sitesOf(u, agGroupChat) {
		args, _, ok := siteArgs(u, site)
		if !ok || !agMaxRound.MatchString(args) {
			out = emit(out, u, site, diag.SevWarning, diag.MissingTerminationBound,
				"group chat has no round limit", s.Name(), "group-chat")
		}
		if ok && !agAdminName.MatchString(args) {
			out = emit(out, u, site, diag.SevInfo, diag.MissingProvenance,
				"group chat has no admin", s.Name(), "group-chat")
		}
	}

	return out
}
