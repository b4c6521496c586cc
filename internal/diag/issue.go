package diag

import "failkit/internal/source"

// Note attaches a secondary location and message to an issue.
type Note struct {
	Span source.Span
	Msg  string
}

// Issue is one rule firing at one location in one source unit.
type Issue struct {
	Severity Severity
	Code     Code
	Category Category
	Message  string
	Primary  source.Span
	// Dialect names the framework scanner that produced the issue
	// ("langchain", "crewai", "autogen"); empty for dialect-free rules.
	Dialect string
	// Pattern names the catalog pattern that matched, for downstream
	// tooling that keys remediation or docs off it.
	Pattern string
	Notes   []Note
	Fixes   []*Fix
	// Meta carries free-form annotations that ride along into the
	// projected diagnostic's data object.
	Meta map[string]string
}

// New builds an issue. The category is derived from the code; override the
// field afterwards only for codes outside the registry.
func New(severity Severity, code Code, primary source.Span, message string) *Issue {
	return &Issue{
		Severity: severity,
		Code:     code,
		Category: code.Category(),
		Message:  message,
		Primary:  primary,
	}
}

// WithDialect tags the issue with the scanner dialect and returns it.
func (i *Issue) WithDialect(dialect string) *Issue {
	i.Dialect = dialect
	return i
}

// WithPattern tags the issue with the matched pattern name and returns it.
func (i *Issue) WithPattern(name string) *Issue {
	i.Pattern = name
	return i
}

// WithMeta adds one annotation, allocating the map on first use.
func (i *Issue) WithMeta(key, value string) *Issue {
	if i.Meta == nil {
		i.Meta = make(map[string]string, 4)
	}
	i.Meta[key] = value
	return i
}

// AddNote appends a secondary note.
func (i *Issue) AddNote(span source.Span, msg string) {
	i.Notes = append(i.Notes, Note{Span: span, Msg: msg})
}

// AddFix appends a remediation candidate.
func (i *Issue) AddFix(fix *Fix) {
	if fix != nil {
		i.Fixes = append(i.Fixes, fix)
	}
}
