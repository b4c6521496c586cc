package lsp

import (
	"path/filepath"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/driver"
	"failkit/internal/source"
)

// document is the server-side copy of one open file together with its last
// analysis. unit and bag are nil for files the scanner does not cover.
type document struct {
	version int
	text    string
	set     *source.UnitSet
	unit    *source.Unit
	bag     *diag.Bag
}

// canonicalURI normalizes a file URI so didOpen/didChange/didClose land on
// the same document key regardless of percent-encoding or relative
// segments. Returns "" for URIs that do not name a file.
func canonicalURI(uri string) string {
	path := uriToPath(uri)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	return pathToURI(path)
}

// upsertDocLocked replaces the stored text for uri and re-analyzes it.
// Callers hold s.mu.
func (s *Server) upsertDocLocked(uri, text string, version int) *document {
	doc := &document{
		version: version,
		text:    text,
	}
	path := uriToPath(uri)
	if path != "" && source.IsPythonPath(path) {
		set := source.NewUnitSet()
		id := set.AddVirtual(path, []byte(text))
		doc.set = set
		doc.unit = set.Get(id)
		doc.bag = driver.Analyze(doc.unit, s.analysis)
	}
	s.docs[uri] = doc
	return doc
}

// diagnosticsForLocked projects a document's bag into wire diagnostics,
// capped at maxDiagnostics. Callers hold s.mu.
func (s *Server) diagnosticsForLocked(doc *document) []lspDiagnostic {
	if doc == nil || doc.bag == nil || doc.unit == nil {
		return nil
	}
	issues := doc.bag.Items()
	list := make([]lspDiagnostic, 0, len(issues))
	for _, iss := range issues {
		if len(list) >= s.maxDiagnostics {
			break
		}
		list = append(list, projectIssue(doc.unit, iss))
	}
	return list
}

func projectIssue(u *source.Unit, iss *diag.Issue) lspDiagnostic {
	d := lspDiagnostic{
		Range:    rangeForSpan(u, iss.Primary),
		Severity: lspSeverity(iss.Severity),
		Code:     iss.Code.ID(),
		Source:   "failkit",
		Message:  "[" + iss.Code.ID() + "] " + iss.Message,
		Data: &diagnosticData{
			RuleID:   iss.Code.ID(),
			Category: iss.Category.String(),
			Dialect:  iss.Dialect,
			Pattern:  iss.Pattern,
		},
	}
	return d
}

func lspSeverity(sev diag.Severity) int {
	switch sev {
	case diag.SevError:
		return 1
	case diag.SevWarning:
		return 2
	case diag.SevInfo:
		return 3
	default:
		return 4
	}
}

// ruleIDFromWire accepts "FK001" or "[FK001] ..." and returns the bare id.
func ruleIDFromWire(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if end := strings.IndexByte(s, ']'); end > 0 {
			return s[1:end]
		}
	}
	return s
}
