package diag

import "fmt"

// Code identifies one audit rule. The numeric value is part of the public
// contract: FK001 stays FK001 forever. New rules extend the enumeration.
type Code uint16

const (
	CodeNone Code = 0

	// MissingReceipt fires when an agent or tool execution produces no
	// verifiable evidence of the action it claims to take.
	MissingReceipt Code = 1
	// MissingErrorHandling fires when an execution call is not protected by
	// error handling.
	MissingErrorHandling Code = 2
	// SecretExposure fires on insecure configuration that can leak secrets
	// or sensitive state (verbose agents, container-less code execution).
	SecretExposure Code = 3
	// UnconfirmedSideEffect fires when a destructive operation runs without
	// a confirmation or authorization gate.
	UnconfirmedSideEffect Code = 4
	// MissingResilience fires when an LLM call configures no timeout, retry
	// or fallback.
	MissingResilience Code = 5
	// MissingProvenance fires when agent or task construction omits
	// traceability metadata.
	MissingProvenance Code = 6
	// HardcodedCredential fires on credential-shaped literals in source.
	HardcodedCredential Code = 7
	// TaskMissingErrorHandler fires when a task definition wires no error
	// callback.
	TaskMissingErrorHandler Code = 8
	// MissingTerminationBound fires when a conversation or group chat has
	// no turn limit.
	MissingTerminationBound Code = 9
)

// Category groups rules for filtering and downstream metadata.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryReceipt
	CategoryErrorHandling
	CategorySecurity
	CategorySideEffect
	CategoryResilience
	CategoryProvenance
	CategoryAgentSafety
)

func (c Category) String() string {
	switch c {
	case CategoryReceipt:
		return "receipt"
	case CategoryErrorHandling:
		return "error-handling"
	case CategorySecurity:
		return "security"
	case CategorySideEffect:
		return "side-effect"
	case CategoryResilience:
		return "resilience"
	case CategoryProvenance:
		return "provenance"
	case CategoryAgentSafety:
		return "agent-safety"
	default:
		return "none"
	}
}

var codeTitles = map[Code]string{
	MissingReceipt:          "Missing receipt",
	MissingErrorHandling:    "Missing error handling",
	SecretExposure:          "Secret exposure",
	UnconfirmedSideEffect:   "Side effect without confirmation",
	MissingResilience:       "Missing LLM resilience",
	MissingProvenance:       "Missing provenance metadata",
	HardcodedCredential:     "Hardcoded credential",
	TaskMissingErrorHandler: "Task missing error handler",
	MissingTerminationBound: "Missing termination bound",
}

var codeCategories = map[Code]Category{
	MissingReceipt:          CategoryReceipt,
	MissingErrorHandling:    CategoryErrorHandling,
	SecretExposure:          CategorySecurity,
	UnconfirmedSideEffect:   CategorySideEffect,
	MissingResilience:       CategoryResilience,
	MissingProvenance:       CategoryProvenance,
	HardcodedCredential:     CategorySecurity,
	TaskMissingErrorHandler: CategoryErrorHandling,
	MissingTerminationBound: CategoryAgentSafety,
}

// ID returns the stable external identifier, e.g. "FK001".
func (c Code) ID() string {
	return fmt.Sprintf("FK%03d", uint16(c))
}

// Title returns the short human title for the code.
func (c Code) Title() string {
	if t, ok := codeTitles[c]; ok {
		return t
	}
	return "Unknown rule"
}

// Category returns the rule family the code belongs to.
func (c Code) Category() Category {
	return codeCategories[c]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// Codes lists every registered rule code in ascending order.
func Codes() []Code {
	return []Code{
		MissingReceipt,
		MissingErrorHandling,
		SecretExposure,
		UnconfirmedSideEffect,
		MissingResilience,
		MissingProvenance,
		HardcodedCredential,
		TaskMissingErrorHandler,
		MissingTerminationBound,
	}
}

// ParseCode resolves an external identifier like "FK003" (case-insensitive)
// back to its Code. Returns CodeNone when the identifier is unknown.
func ParseCode(id string) Code {
	var n uint16
	if len(id) != 5 {
		return CodeNone
	}
	if (id[0] != 'F' && id[0] != 'f') || (id[1] != 'K' && id[1] != 'k') {
		return CodeNone
	}
	for _, ch := range id[2:] {
		if ch < '0' || ch > '9' {
			return CodeNone
		}
		n = n*10 + uint16(ch-'0')
	}
	code := Code(n)
	if _, ok := codeTitles[code]; !ok {
		return CodeNone
	}
	return code
}
