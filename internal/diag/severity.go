package diag

import "strings"

// Severity ranks how loudly an issue is reported. Higher values sort first.
type Severity uint8

const (
	SevHint Severity = iota
	SevInfo
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInfo:
		return "INFO"
	case SevHint:
		return "HINT"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity resolves a severity name from config or flag values,
// case-insensitive. "warn" is accepted as a synonym for "warning".
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToLower(name) {
	case "error":
		return SevError, true
	case "warning", "warn":
		return SevWarning, true
	case "info":
		return SevInfo, true
	case "hint":
		return SevHint, true
	default:
		return SevHint, false
	}
}
