// Package gate screens agent responses at runtime: claims of completed
// actions must be backed by receipts, tool failures cannot pass silently,
// and high-stakes language must carry an escalation flag. It is the dynamic
// counterpart to the static source checks.
package gate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"failkit/internal/receipt"
)

// Gate names, one per check.
const (
	GateActionReceipts = "action-receipts"
	GateToolFailures   = "tool-failures"
	GateEscalation     = "escalation"
)

// Decisions carried in response envelopes and suggested by violations.
const (
	DecisionPass        = "PASS"
	DecisionFail        = "FAIL"
	DecisionAbstain     = "ABSTAIN"
	DecisionNeedsReview = "NEEDS_REVIEW"
)

// Config selects which gates run. It mirrors the [gates] manifest section.
type Config struct {
	EnforceReceipts     bool
	EnforceToolFailures bool
	EnforceEscalation   bool
	// ExtraVerbs extends the built-in action-claim verb list; entries are
	// matched literally on word boundaries.
	ExtraVerbs []string
	// ExtraPatterns extends the built-in escalation regexps.
	ExtraPatterns []string
}

// DefaultConfig enables every gate.
func DefaultConfig() Config {
	return Config{
		EnforceReceipts:     true,
		EnforceToolFailures: true,
		EnforceEscalation:   true,
	}
}

// Violation identifies one failed gate and the safe decision that should
// replace the response's own.
type Violation struct {
	Gate     string `json:"gate"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
	Decision string `json:"decision"`
}

// String renders the violation for logs.
func (v Violation) String() string {
	if v.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", v.Gate, v.Reason, v.Detail)
	}
	return fmt.Sprintf("%s: %s", v.Gate, v.Reason)
}

// Response is the agent reply envelope the gates inspect.
type Response struct {
	Outputs Outputs  `json:"outputs"`
	Policy  Policy   `json:"policy"`
	Actions []Action `json:"actions"`
}

// Outputs holds the user-facing part of a response.
type Outputs struct {
	FinalText string `json:"final_text"`
	Decision  string `json:"decision"`
}

// Policy carries the response's own safety flags.
type Policy struct {
	Refuse   bool     `json:"refuse"`
	Abstain  bool     `json:"abstain"`
	Escalate bool     `json:"escalate"`
	Reasons  []string `json:"reasons"`
}

// Action is the receipt projection carried inline in a response.
type Action struct {
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	LatencyMS  int64  `json:"latency_ms"`
	InputHash  string `json:"input_hash"`
	OutputHash string `json:"output_hash"`
}

var defaultVerbs = []string{
	"sent", "send", "emailed", "email",
	"updated", "update", "modified", "modify",
	"deleted", "delete", "removed", "remove",
	"created", "create", "added", "add",
	"transferred", "transfer", "moved", "move",
	"scheduled", "schedule", "booked", "book",
	"cancelled", "cancel", "revoked", "revoke",
}

var defaultEscalationPatterns = []string{
	`transfer.*money`,
	`send.*payment`,
	`withdraw`,
	`purchase`,
	`sign.*contract`,
	`legal.*document`,
	`terminate.*agreement`,
	`go to hell`,
	`fuck`,
	`fire.*employee`,
	`social security`,
	`credit card`,
	`password`,
	`ignore.*previous instructions`,
	`(?:grant|elevate|escalate).*(?:privilege|admin|root)`,
}

type pattern struct {
	src string
	re  *regexp.Regexp
}

// Gate holds a compiled configuration; build one with New and reuse it.
type Gate struct {
	cfg      Config
	verbs    *regexp.Regexp
	patterns []pattern
}

// New compiles the verb and escalation matchers for cfg.
func New(cfg Config) (*Gate, error) {
	verbs := append(slices.Clone(defaultVerbs), cfg.ExtraVerbs...)
	quoted := make([]string, len(verbs))
	for i, v := range verbs {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(v))
	}
	verbRE := regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)

	srcs := append(slices.Clone(defaultEscalationPatterns), cfg.ExtraPatterns...)
	patterns := make([]pattern, 0, len(srcs))
	for _, src := range srcs {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("invalid escalation pattern %q: %w", src, err)
		}
		patterns = append(patterns, pattern{src: src, re: re})
	}
	return &Gate{cfg: cfg, verbs: verbRE, patterns: patterns}, nil
}

// Inspect parses an agent response and applies the configured gates.
// Receipts are the out-of-band proofs collected for this exchange.
func (g *Gate) Inspect(responseJSON []byte, receipts ...receipt.Receipt) ([]Violation, error) {
	var resp Response
	if err := json.Unmarshal(responseJSON, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return g.InspectResponse(resp, "", receipts...), nil
}

// InspectResponse applies the gates to a parsed response. userInput is the
// request text that produced it and may be empty when unavailable. Text is
// NFC-normalized before matching. Violations come back in gate order.
func (g *Gate) InspectResponse(resp Response, userInput string, receipts ...receipt.Receipt) []Violation {
	var vios []Violation
	text := norm.NFC.String(resp.Outputs.FinalText)

	if g.cfg.EnforceReceipts {
		if verb := g.verbs.FindString(strings.ToLower(text)); verb != "" && !hasProof(resp, receipts) {
			vios = append(vios, Violation{
				Gate:     GateActionReceipts,
				Reason:   "claimed action without receipt",
				Detail:   verb,
				Decision: DecisionAbstain,
			})
		}
	}

	if g.cfg.EnforceToolFailures {
		if tool, failed := failedTool(resp, receipts); failed && resp.Outputs.Decision == DecisionPass {
			vios = append(vios, Violation{
				Gate:     GateToolFailures,
				Reason:   "tool failure detected",
				Detail:   tool,
				Decision: DecisionFail,
			})
		}
	}

	if g.cfg.EnforceEscalation && !resp.Policy.Escalate {
		if pat := g.escalationHit(norm.NFC.String(userInput)); pat != "" {
			vios = append(vios, Violation{
				Gate:     GateEscalation,
				Reason:   "high-stakes request detected",
				Detail:   pat,
				Decision: DecisionNeedsReview,
			})
		} else if pat := g.escalationHit(text); pat != "" {
			vios = append(vios, Violation{
				Gate:     GateEscalation,
				Reason:   "high-stakes content detected",
				Detail:   pat,
				Decision: DecisionNeedsReview,
			})
		}
	}
	return vios
}

// hasProof accepts inline actions or any valid success receipt.
func hasProof(resp Response, receipts []receipt.Receipt) bool {
	if len(resp.Actions) > 0 {
		return true
	}
	for _, r := range receipts {
		if r.Status == receipt.StatusSuccess && len(r.Problems()) == 0 {
			return true
		}
	}
	return false
}

func failedTool(resp Response, receipts []receipt.Receipt) (string, bool) {
	for _, a := range resp.Actions {
		if a.Status == string(receipt.StatusFailed) {
			return a.Tool, true
		}
	}
	for _, r := range receipts {
		if r.Status == receipt.StatusFailed {
			return r.ToolName, true
		}
	}
	return "", false
}

func (g *Gate) escalationHit(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range g.patterns {
		if p.re.MatchString(text) {
			return p.src
		}
	}
	return ""
}
