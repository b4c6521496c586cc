// Package receipt implements the verifiable action receipt schema: every
// agent action records an id, the tool, a timestamp, a status and content
// hashes of its input and output payloads.
package receipt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Status reports how an action concluded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Receipt records one verifiable agent action.
type Receipt struct {
	ActionID     string         `json:"action_id"`
	ToolName     string         `json:"tool_name"`
	Timestamp    string         `json:"timestamp"`
	Status       Status         `json:"status"`
	InputHash    string         `json:"input_hash"`
	OutputHash   string         `json:"output_hash"`
	TraceID      string         `json:"trace_id,omitempty"`
	LatencyMS    int64          `json:"latency_ms,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ErrInvalid marks schema violations; errors from Validate and Decode wrap
// it.
var ErrInvalid = errors.New("invalid receipt")

var (
	reActionID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	reHash     = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)
)

// NewActionID returns a fresh action identifier.
func NewActionID() string {
	id := uuid.New()
	return "act_" + hex.EncodeToString(id[:])
}

// Option adjusts optional receipt fields at construction.
type Option func(*Receipt)

// WithTraceID links the receipt to a trace.
func WithTraceID(id string) Option {
	return func(r *Receipt) { r.TraceID = id }
}

// WithLatency records the action duration.
func WithLatency(d time.Duration) Option {
	return func(r *Receipt) { r.LatencyMS = d.Milliseconds() }
}

// WithMetadata attaches free-form annotations.
func WithMetadata(m map[string]any) Option {
	return func(r *Receipt) { r.Metadata = m }
}

// Failed marks the action as failed with its error message.
func Failed(msg string) Option {
	return func(r *Receipt) {
		r.Status = StatusFailed
		r.ErrorMessage = msg
	}
}

// New builds a success receipt for one tool invocation, hashing the input
// and output payloads. Options adjust status and optional fields.
func New(toolName string, input, output any, opts ...Option) (Receipt, error) {
	inHash, err := HashData(input)
	if err != nil {
		return Receipt{}, fmt.Errorf("hash input: %w", err)
	}
	outHash, err := HashData(output)
	if err != nil {
		return Receipt{}, fmt.Errorf("hash output: %w", err)
	}
	r := Receipt{
		ActionID:   NewActionID(),
		ToolName:   toolName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Status:     StatusSuccess,
		InputHash:  inHash,
		OutputHash: outHash,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r, nil
}

// HashData hashes any JSON-serializable value as "sha256:<hex>" over its
// canonical form: object keys sorted, compact separators, strings
// NFC-normalized. Equal values hash equally regardless of field order or
// Unicode composition.
func HashData(v any) (string, error) {
	blob, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(blob)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// canonicalJSON round-trips v through a generic tree so maps marshal with
// sorted keys at every level; UseNumber keeps integer literals verbatim.
func canonicalJSON(v any) ([]byte, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeTree(tree))
}

func normalizeTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[norm.NFC.String(k)] = normalizeTree(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeTree(t[i])
		}
		return t
	case string:
		return norm.NFC.String(t)
	default:
		return v
	}
}

// Problems checks a wire-form receipt against the schema, one message per
// violation. Empty means valid. Non-string values degrade to "missing".
func Problems(m map[string]any) []string {
	get := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return fieldProblems(
		get("action_id"), get("tool_name"), get("timestamp"),
		get("status"), get("input_hash"), get("output_hash"),
	)
}

// Problems lists schema violations on a typed receipt.
func (r Receipt) Problems() []string {
	return fieldProblems(
		r.ActionID, r.ToolName, r.Timestamp,
		string(r.Status), r.InputHash, r.OutputHash,
	)
}

func fieldProblems(actionID, toolName, timestamp, status, inputHash, outputHash string) []string {
	var probs []string
	for _, f := range []struct{ name, val string }{
		{"action_id", actionID},
		{"tool_name", toolName},
		{"timestamp", timestamp},
		{"status", status},
		{"input_hash", inputHash},
		{"output_hash", outputHash},
	} {
		if f.val == "" {
			probs = append(probs, "missing "+f.name)
		}
	}
	if actionID != "" && !reActionID.MatchString(actionID) {
		probs = append(probs, "invalid action_id format")
	}
	if timestamp != "" && !validTimestamp(timestamp) {
		probs = append(probs, "invalid timestamp format (must be ISO-8601)")
	}
	if status != "" && status != string(StatusSuccess) && status != string(StatusFailed) {
		probs = append(probs, `invalid status (must be "success" or "failed")`)
	}
	if inputHash != "" && !reHash.MatchString(inputHash) {
		probs = append(probs, "invalid input_hash format (must be sha256:...)")
	}
	if outputHash != "" && !reHash.MatchString(outputHash) {
		probs = append(probs, "invalid output_hash format (must be sha256:...)")
	}
	return probs
}

func validTimestamp(ts string) bool {
	if _, err := time.Parse(time.RFC3339, ts); err == nil {
		return true
	}
	// Zone-less ISO-8601 is accepted too.
	_, err := time.Parse("2006-01-02T15:04:05", ts)
	return err == nil
}

// Validate folds Problems into one branchable error; nil when valid.
func Validate(m map[string]any) error {
	probs := Problems(m)
	if len(probs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(probs, "; "))
}

// Decode parses wire JSON into a Receipt, validating the schema.
func Decode(data []byte) (Receipt, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Receipt{}, fmt.Errorf("parse receipt: %w", err)
	}
	if err := Validate(m); err != nil {
		return Receipt{}, err
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return Receipt{}, fmt.Errorf("parse receipt: %w", err)
	}
	return r, nil
}

// Match reports whether two receipts describe the same action: equal tool
// name and equal input and output hashes.
func Match(a, b Receipt) bool {
	return a.ToolName == b.ToolName &&
		a.InputHash == b.InputHash &&
		a.OutputHash == b.OutputHash
}

// ProvesAction reports whether r is a valid success receipt for toolName.
func ProvesAction(r Receipt, toolName string) bool {
	return r.ToolName == toolName &&
		r.Status == StatusSuccess &&
		len(r.Problems()) == 0
}

// VerifyHashes reports whether the receipt's hashes match the actual
// payloads, for replay verification.
func VerifyHashes(r Receipt, input, output any) (bool, error) {
	inHash, err := HashData(input)
	if err != nil {
		return false, err
	}
	outHash, err := HashData(output)
	if err != nil {
		return false, err
	}
	return r.InputHash == inHash && r.OutputHash == outHash, nil
}
