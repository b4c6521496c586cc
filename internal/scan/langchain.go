package scan

import (
	"bytes"
	"regexp"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/dialect"
	"failkit/internal/rules"
	"failkit/internal/source"
)

// Call-shape patterns. Name-based alternatives keep the site families
// disjoint: an executor is not a chain is not a bare model.
var (
	lcAgentExec = regexp.MustCompile(`\b(?:agent_executor|executor|agent)\s*\.\s*(?:invoke|ainvoke|run)\s*\(` +
		`|\bAgentExecutor\s*\([^)]*\)\s*\.\s*(?:invoke|ainvoke|run)\s*\(`)
	lcToolDecorator = regexp.MustCompile(`^\s*@tool\b`)
	lcBaseToolClass = regexp.MustCompile(`^\s*class\s+\w+\s*\([^)]*\bBaseTool\b`)
	lcChainInvoke   = regexp.MustCompile(`\b\w*chain\w*\s*\.\s*(?:invoke|ainvoke)\s*\(` +
		`|\.pipe\s*\([^)]*\)\s*\.\s*invoke\s*\(` +
		`|\bRunnableSequence\s*\([^)]*\)\s*\.\s*invoke\s*\(`)
	lcLLMInvoke = regexp.MustCompile(`\b(?:llm|chat_model|model|chat)\s*\.\s*(?:invoke|ainvoke)\s*\(` +
		`|\bChat[A-Z]\w*\s*\([^)]*\)\s*\.\s*(?:invoke|ainvoke)\s*\(`)
	lcStream = regexp.MustCompile(`\.\s*(?:stream|astream)\s*\(`)
)

var receiptToolBase = []byte("ReceiptGeneratingTool")

// LangChain scans executor, chain, tool, and model constructs.
type LangChain struct{}

func (LangChain) Name() string { return "langchain" }

func (LangChain) Framework() dialect.Framework { return dialect.FrameworkLangChain }

func (LangChain) Gate(u *source.Unit) bool {
	return dialect.UsesFramework(u, dialect.FrameworkLangChain)
}

func (s LangChain) Scan(ctx *Context, u *source.Unit) []*diag.Issue {
	var out []*diag.Issue

	for _, site := range sitesOf(u, lcAgentExec) {
		if !windowAfter(u, site.Line, ctx.Windows.Receipt, rules.ReceiptPatterns) {
			out = emit(out, u, site, diag.SevError, diag.MissingReceipt,
				"agent execution leaves no receipt", s.Name(), "agent-execution")
		}
		if !protectedSite(ctx, u, site) {
			out = emit(out, u, site, diag.SevWarning, diag.MissingErrorHandling,
				"unprotected agent execution", s.Name(), "agent-execution")
		}
	}

	for _, site := range sitesOf(u, lcToolDecorator) {
		def, ok := nextDef(u, site.Line)
		if !ok {
			continue
		}
		body, _ := BodySpan(u, def, funcBodyLineBudget)
		if !rules.AnyIn(rules.ReceiptPatterns, body) {
			out = emit(out, u, lineSite(u, def), diag.SevWarning, diag.MissingReceipt,
				"tool function records no receipt", s.Name(), "tool-decorator")
		}
	}

	if !bytes.Contains(u.Content, receiptToolBase) {
		for _, site := range sitesOf(u, lcBaseToolClass) {
			body, _ := BodySpan(u, site.Line, classBodyLineBudget)
			if !rules.AnyIn(rules.ReceiptPatterns, body) {
				out = emit(out, u, site, diag.SevWarning, diag.MissingReceipt,
					"tool class records no receipt", s.Name(), "base-tool-class")
			}
		}
	}

	for _, site := range sitesOf(u, lcChainInvoke) {
		if !protectedSite(ctx, u, site) {
			out = emit(out, u, site, diag.SevWarning, diag.MissingErrorHandling,
				"unprotected chain invocation", s.Name(), "chain-invocation")
		}
	}

	for _, site := range sitesOf(u, lcLLMInvoke) {
		if !windowAround(u, site.Line, ctx.Windows.Resilience, rules.ResiliencePatterns) {
			out = emit(out, u, site, diag.SevInfo, diag.MissingResilience,
				"llm call without timeout, retry, or fallback", s.Name(), "llm-call")
		}
	}

	for _, site := range sitesOf(u, lcStream) {
		lower := strings.ToLower(u.Line(site.Line))
		if strings.Contains(lower, "config") || strings.Contains(lower, "settings") {
			continue
		}
		if !protectedSite(ctx, u, site) {
			out = emit(out, u, site, diag.SevInfo, diag.MissingErrorHandling,
				"unprotected streaming call", s.Name(), "stream-call")
		}
	}

	return out
}
