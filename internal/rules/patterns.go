// Package rules is the static catalog behind every scanner: the pattern
// families candidate sites are recognized with, the evidence idioms that
// clear or confirm a finding, and the explanation records served for each
// rule code. Everything here is compiled once and read-only, safe to share
// across concurrent analyses.
package rules

import (
	"regexp"

	"failkit/internal/diag"
)

// Family groups patterns by what their match means.
type Family uint8

const (
	FamilySecret Family = iota
	FamilyLLMCall
	FamilyToolCall
	FamilySideEffect
	FamilyResilience
	FamilyReceiptEvidence
	FamilyErrorEvidence
	FamilyConfirmation
	FamilyEnvLookup
)

func (f Family) String() string {
	switch f {
	case FamilySecret:
		return "secret"
	case FamilyLLMCall:
		return "llm-call"
	case FamilyToolCall:
		return "tool-call"
	case FamilySideEffect:
		return "side-effect"
	case FamilyResilience:
		return "resilience"
	case FamilyReceiptEvidence:
		return "receipt-evidence"
	case FamilyErrorEvidence:
		return "error-evidence"
	case FamilyConfirmation:
		return "confirmation"
	case FamilyEnvLookup:
		return "env-lookup"
	default:
		return "unknown"
	}
}

// Pattern is one textual matcher in the catalog.
type Pattern struct {
	Name        string
	Family      Family
	Re          *regexp.Regexp
	Description string
	// Severity applies to patterns that directly produce findings
	// (the secret family); evidence patterns leave it at the zero Hint.
	Severity diag.Severity
}

// SecretPatterns recognize credential-shaped literals: vendor token shapes
// first, generic suspicious assignments after, so the more specific name
// wins when several would match one line.
var SecretPatterns = []Pattern{
	{
		Name:        "stripe-secret-key",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`sk[-_](?:live|test)[-_][a-zA-Z0-9]{20,}`),
		Description: "Stripe secret key",
		Severity:    diag.SevWarning,
	},
	{
		Name:        "aws-access-key",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		Description: "AWS access key id",
		Severity:    diag.SevWarning,
	},
	{
		Name:        "openai-api-key",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),
		Description: "OpenAI API key",
		Severity:    diag.SevWarning,
	},
	{
		Name:        "github-token",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`gh[po]_[a-zA-Z0-9]{36}`),
		Description: "GitHub token",
		Severity:    diag.SevWarning,
	},
	{
		Name:        "password-assignment",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`password\s*=\s*['"][^'"]{6,}['"]`),
		Description: "password assigned a literal",
		Severity:    diag.SevWarning,
	},
	{
		Name:        "api-key-assignment",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`api[_-]?key\s*=\s*['"][^'"]{20,}['"]`),
		Description: "API key assigned a literal",
		Severity:    diag.SevWarning,
	},
	{
		Name:        "secret-key-assignment",
		Family:      FamilySecret,
		Re:          regexp.MustCompile(`secret[_-]?key\s*=\s*['"][^'"]{10,}['"]`),
		Description: "secret key assigned a literal",
		Severity:    diag.SevWarning,
	},
}

// LLMCallPatterns recognize model invocations across providers.
var LLMCallPatterns = []Pattern{
	{Name: "openai-chat", Family: FamilyLLMCall, Re: regexp.MustCompile(`openai\.chat\.completions\.create`)},
	{Name: "openai-client-chat", Family: FamilyLLMCall, Re: regexp.MustCompile(`client\.chat\.completions\.create`)},
	{Name: "anthropic-messages", Family: FamilyLLMCall, Re: regexp.MustCompile(`anthropic\.messages\.create`)},
	{Name: "generic-invoke", Family: FamilyLLMCall, Re: regexp.MustCompile(`\.invoke\s*\(`)},
	{Name: "generic-complete", Family: FamilyLLMCall, Re: regexp.MustCompile(`\.complete\s*\(`)},
	{Name: "generic-generate", Family: FamilyLLMCall, Re: regexp.MustCompile(`\.generate\s*\(`)},
}

// ToolCallPatterns recognize calls with external side effects.
var ToolCallPatterns = []Pattern{
	{Name: "db-execute", Family: FamilyToolCall, Re: regexp.MustCompile(`\.execute\s*\(`), Description: "database statement"},
	{Name: "db-commit", Family: FamilyToolCall, Re: regexp.MustCompile(`\.commit\s*\(`), Description: "database commit"},
	{Name: "http-mutation", Family: FamilyToolCall, Re: regexp.MustCompile(`(?:requests|httpx|aiohttp)\.(?:post|put|delete|patch)\s*\(`), Description: "HTTP mutation"},
	{Name: "file-write", Family: FamilyToolCall, Re: regexp.MustCompile(`open\s*\([^)]*['"][wa]b?['"]`), Description: "file write"},
	{Name: "file-delete", Family: FamilyToolCall, Re: regexp.MustCompile(`os\.(?:remove|unlink|rmdir)\s*\(`), Description: "file delete"},
	{Name: "tree-mutation", Family: FamilyToolCall, Re: regexp.MustCompile(`shutil\.(?:rmtree|move|copy)\s*\(`), Description: "directory mutation"},
	{Name: "send-email", Family: FamilyToolCall, Re: regexp.MustCompile(`send_email\s*\(`), Description: "outbound email"},
	{Name: "send-message", Family: FamilyToolCall, Re: regexp.MustCompile(`\.send_message\s*\(`), Description: "outbound message"},
	{Name: "stripe-payment", Family: FamilyToolCall, Re: regexp.MustCompile(`stripe\.(?:PaymentIntent|Charge|Payout)\.create`), Description: "payment"},
}

// SideEffectPatterns recognize generic destructive calls inside tool bodies.
var SideEffectPatterns = []Pattern{
	{Name: "delete-call", Family: FamilySideEffect, Re: regexp.MustCompile(`\.delete\s*\(`)},
	{Name: "destroy-call", Family: FamilySideEffect, Re: regexp.MustCompile(`\.destroy\s*\(`)},
	{Name: "drop-call", Family: FamilySideEffect, Re: regexp.MustCompile(`\.drop\s*\(`)},
	{Name: "truncate-call", Family: FamilySideEffect, Re: regexp.MustCompile(`\.truncate\s*\(`)},
	{Name: "publish-call", Family: FamilySideEffect, Re: regexp.MustCompile(`\.publish\s*\(`)},
}

// DestructiveBodyPatterns recognize destructive operations inside tool
// bodies: the side-effect family plus concrete filesystem deletion, HTTP
// deletion, and process execution.
var DestructiveBodyPatterns = append(append([]Pattern{}, SideEffectPatterns...),
	Pattern{Name: "file-delete", Family: FamilyToolCall, Re: regexp.MustCompile(`os\.(?:remove|unlink|rmdir)\s*\(`)},
	Pattern{Name: "tree-delete", Family: FamilyToolCall, Re: regexp.MustCompile(`shutil\.(?:rmtree|move)\s*\(`)},
	Pattern{Name: "http-delete", Family: FamilyToolCall, Re: regexp.MustCompile(`(?:requests|httpx|aiohttp)\.delete\s*\(`)},
	Pattern{Name: "proc-exec", Family: FamilyToolCall, Re: regexp.MustCompile(`subprocess\.(?:run|call|Popen)\s*\(|os\.system\s*\(`)},
)

// ResiliencePatterns are the evidence that an LLM call defends itself.
var ResiliencePatterns = []Pattern{
	{Name: "timeout", Family: FamilyResilience, Re: regexp.MustCompile(`timeout\s*=\s*\d+`)},
	{Name: "max-retries", Family: FamilyResilience, Re: regexp.MustCompile(`max_retries\s*=\s*\d+`)},
	{Name: "retry-decorator", Family: FamilyResilience, Re: regexp.MustCompile(`@retry\s*\(`)},
	{Name: "with-retry", Family: FamilyResilience, Re: regexp.MustCompile(`with_retry\s*\(`)},
	{Name: "fallback", Family: FamilyResilience, Re: regexp.MustCompile(`fallback\s*=`)},
}

// ReceiptPatterns are the evidence that an action produces an audit record.
var ReceiptPatterns = []Pattern{
	{Name: "create-receipt", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)create_receipt`)},
	{Name: "generate-receipt", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)generate_receipt`)},
	{Name: "receipt-tool-base", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`ReceiptGeneratingTool`)},
	{Name: "action-id-field", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)action_id\s*[=:]`)},
	{Name: "input-hash-field", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)input_hash\s*[=:]`)},
	{Name: "output-hash-field", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)output_hash\s*[=:]`)},
	{Name: "hash-data-call", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)hash_data\s*\(`)},
	{Name: "audit-logger", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`AuditLogger\.`)},
	{Name: "failkit-sdk", Family: FamilyReceiptEvidence, Re: regexp.MustCompile(`(?i)failkit\.`)},
}

// ErrorEvidencePatterns are the protected-block and handler idioms.
var ErrorEvidencePatterns = []Pattern{
	{Name: "try-block", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`\btry\s*:`)},
	{Name: "except-clause", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`\bexcept\b`)},
	{Name: "catch-call", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`\.catch\s*\(`)},
	{Name: "parsing-handler", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`handle_parsing_errors\s*=`)},
	{Name: "on-error-handler", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`on_error\s*=`)},
	{Name: "error-handler", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`error_handler`)},
}

// HandlerConfigPatterns is the subset of error evidence that lives in call
// configuration rather than in control flow. Protection by control flow is
// judged by the enclosing-block tracker, not by these.
var HandlerConfigPatterns = []Pattern{
	{Name: "parsing-handler", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`handle_parsing_errors\s*=`)},
	{Name: "on-error-handler", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`on_error\s*=`)},
	{Name: "error-handler", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`error_handler`)},
	{Name: "callbacks", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`callbacks\s*=`)},
	{Name: "catch-call", Family: FamilyErrorEvidence, Re: regexp.MustCompile(`\.catch\s*\(`)},
}

// ConfirmationPatterns are the authorization gates destructive tool bodies
// are expected to pass through.
var ConfirmationPatterns = []Pattern{
	{Name: "confirm-call", Family: FamilyConfirmation, Re: regexp.MustCompile(`\bconfirm\s*\(`)},
	{Name: "confirm-action", Family: FamilyConfirmation, Re: regexp.MustCompile(`confirm_action`)},
	{Name: "is-authorized", Family: FamilyConfirmation, Re: regexp.MustCompile(`is_authorized`)},
	{Name: "has-permission", Family: FamilyConfirmation, Re: regexp.MustCompile(`has_permission`)},
	{Name: "policy-allow", Family: FamilyConfirmation, Re: regexp.MustCompile(`policy\.allow`)},
	{Name: "user-confirm", Family: FamilyConfirmation, Re: regexp.MustCompile(`user_confirm`)},
	{Name: "human-input", Family: FamilyConfirmation, Re: regexp.MustCompile(`human_input`)},
}

// EnvLookupPatterns clear a hardcoded-credential finding when the same line
// already consults the environment or a secret store.
var EnvLookupPatterns = []Pattern{
	{Name: "os-environ", Family: FamilyEnvLookup, Re: regexp.MustCompile(`os\.environ`)},
	{Name: "getenv", Family: FamilyEnvLookup, Re: regexp.MustCompile(`getenv\s*\(`)},
	{Name: "env-subscript", Family: FamilyEnvLookup, Re: regexp.MustCompile(`\benv\[`)},
	{Name: "secret-manager", Family: FamilyEnvLookup, Re: regexp.MustCompile(`(?i)secret_?manager`)},
	{Name: "vault", Family: FamilyEnvLookup, Re: regexp.MustCompile(`(?i)\bvault\b`)},
}

// templatePlaceholder matches literals that are configuration templates
// (${VAR} or {{var}}) rather than real credentials.
var templatePlaceholder = regexp.MustCompile(`^\s*(?:\$\{.*\}|\{\{.*\}\})\s*$`)

// IsTemplatePlaceholder reports whether the literal body is a template
// placeholder rather than a real value.
func IsTemplatePlaceholder(literal string) bool {
	return templatePlaceholder.MatchString(literal)
}

// AnyIn reports whether any pattern of the set matches the text.
func AnyIn(patterns []Pattern, text string) bool {
	for i := range patterns {
		if patterns[i].Re.MatchString(text) {
			return true
		}
	}
	return false
}

// FirstMatch returns the first pattern of the set matching the line along
// with the match's byte index range. Table order is the precedence order.
func FirstMatch(patterns []Pattern, line string) (Pattern, []int, bool) {
	for i := range patterns {
		if loc := patterns[i].Re.FindStringIndex(line); loc != nil {
			return patterns[i], loc, true
		}
	}
	return Pattern{}, nil, false
}

// Windows bounds the line ranges evidence is searched in.
type Windows struct {
	Receipt    int
	Error      int
	Resilience int
}

// DefaultWindows returns the stock evidence windows.
func DefaultWindows() Windows {
	return Windows{Receipt: 15, Error: 10, Resilience: 20}
}
