package rules

import (
	"fmt"

	"failkit/internal/diag"
)

// CatalogRevision is bumped whenever pattern tables or scanner logic change
// in a way that affects produced issues. Cached analysis results embed it so
// stale entries are discarded after an upgrade.
const CatalogRevision = 1

// Info is the explanation record for one rule code. It backs the `rules`
// subcommand and LSP hover content.
type Info struct {
	Code            diag.Code
	Title           string
	Category        diag.Category
	DefaultSeverity diag.Severity
	Description     string
	Remediation     string
	DocsURL         string
}

var registry = map[diag.Code]Info{
	diag.MissingReceipt: {
		Code:            diag.MissingReceipt,
		Title:           "Missing receipt",
		Category:        diag.CategoryReceipt,
		DefaultSeverity: diag.SevError,
		Description: "An agent action (LLM call, tool execution, or framework " +
			"invocation) runs without producing a verifiable receipt. Nothing " +
			"records what the agent did, with which inputs, producing which " +
			"outputs.",
		Remediation: "Emit a receipt around the action: record an action id, a " +
			"hash of the inputs, and a hash of the outputs, or route the call " +
			"through a receipt-generating wrapper.",
		DocsURL: "https://fail-kit.dev/rules/fk001",
	},
	diag.MissingErrorHandling: {
		Code:            diag.MissingErrorHandling,
		Title:           "Missing error handling",
		Category:        diag.CategoryErrorHandling,
		DefaultSeverity: diag.SevWarning,
		Description: "A fallible agent operation runs outside any protected " +
			"block and without a configured error handler. A provider timeout " +
			"or tool failure propagates as an unhandled crash.",
		Remediation: "Wrap the operation in a try/except block or configure the " +
			"framework's error handler for it.",
		DocsURL: "https://fail-kit.dev/rules/fk002",
	},
	diag.SecretExposure: {
		Code:            diag.SecretExposure,
		Title:           "Secret exposure",
		Category:        diag.CategorySecurity,
		DefaultSeverity: diag.SevWarning,
		Description: "The configuration can leak secrets or sensitive state: a " +
			"verbose agent echoes prompts and intermediate results into logs, or " +
			"generated code executes outside a container with full host access.",
		Remediation: "Disable verbose output outside tests and run generated " +
			"code inside a container.",
		DocsURL: "https://fail-kit.dev/rules/fk003",
	},
	diag.UnconfirmedSideEffect: {
		Code:            diag.UnconfirmedSideEffect,
		Title:           "Side effect without confirmation",
		Category:        diag.CategorySideEffect,
		DefaultSeverity: diag.SevWarning,
		Description: "A tool performs a destructive operation (delete, drop, " +
			"payment, outbound message) without a confirmation or authorization " +
			"gate. The agent can trigger irreversible effects autonomously.",
		Remediation: "Guard the destructive call behind an explicit confirmation " +
			"or authorization check before it executes.",
		DocsURL: "https://fail-kit.dev/rules/fk004",
	},
	diag.MissingResilience: {
		Code:            diag.MissingResilience,
		Title:           "Missing LLM resilience",
		Category:        diag.CategoryResilience,
		DefaultSeverity: diag.SevInfo,
		Description: "An LLM call has no timeout, retry, or fallback configured " +
			"nearby. A slow or failing provider stalls the agent indefinitely.",
		Remediation: "Configure a timeout and retry policy on the call, or " +
			"register a fallback model.",
		DocsURL: "https://fail-kit.dev/rules/fk005",
	},
	diag.MissingProvenance: {
		Code:            diag.MissingProvenance,
		Title:           "Missing provenance metadata",
		Category:        diag.CategoryProvenance,
		DefaultSeverity: diag.SevInfo,
		Description: "An agent or task is constructed without traceability " +
			"metadata (memory, step callbacks, audit hooks). Its decisions " +
			"cannot be reconstructed afterwards.",
		Remediation: "Attach memory or a step callback so each decision leaves " +
			"a reviewable trace.",
		DocsURL: "https://fail-kit.dev/rules/fk006",
	},
	diag.HardcodedCredential: {
		Code:            diag.HardcodedCredential,
		Title:           "Hardcoded credential",
		Category:        diag.CategorySecurity,
		DefaultSeverity: diag.SevWarning,
		Description: "A credential-shaped literal is embedded in source. Anyone " +
			"with repository access holds the key, and rotation requires a code " +
			"change.",
		Remediation: "Move the secret to the environment or a secret manager " +
			"and read it at runtime.",
		DocsURL: "https://fail-kit.dev/rules/fk007",
	},
	diag.TaskMissingErrorHandler: {
		Code:            diag.TaskMissingErrorHandler,
		Title:           "Task missing error handler",
		Category:        diag.CategoryErrorHandling,
		DefaultSeverity: diag.SevWarning,
		Description: "A task definition wires no error callback or guardrail. " +
			"When the task fails, downstream tasks consume its partial output " +
			"as if it had succeeded.",
		Remediation: "Set an error callback or guardrail on the task so failure " +
			"stops the pipeline visibly.",
		DocsURL: "https://fail-kit.dev/rules/fk008",
	},
	diag.MissingTerminationBound: {
		Code:            diag.MissingTerminationBound,
		Title:           "Missing termination bound",
		Category:        diag.CategoryAgentSafety,
		DefaultSeverity: diag.SevWarning,
		Description: "An agent conversation or group chat has no iteration " +
			"bound. Two agents deferring to each other loop until the budget, " +
			"not the logic, stops them.",
		Remediation: "Set an explicit turn or round limit on the conversation.",
		DocsURL: "https://fail-kit.dev/rules/fk009",
	},
}

// Describe returns the explanation record for a code. Unknown codes get a
// minimal stub so callers render something rather than panic.
func Describe(code diag.Code) Info {
	if info, ok := registry[code]; ok {
		return info
	}
	return Info{
		Code:        code,
		Title:       code.Title(),
		Description: fmt.Sprintf("no registered description for %s", code.ID()),
	}
}

// All returns every registered rule in code order.
func All() []Info {
	out := make([]Info, 0, len(registry))
	for _, code := range diag.Codes() {
		if info, ok := registry[code]; ok {
			out = append(out, info)
		}
	}
	return out
}
