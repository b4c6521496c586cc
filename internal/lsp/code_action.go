package lsp

import (
	"encoding/json"

	"failkit/internal/diag"
	"failkit/internal/fix"
	"failkit/internal/source"
)

func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)
	s.mu.Lock()
	doc := s.docs[uri]
	actions := []codeAction{}
	if doc != nil && doc.unit != nil && doc.bag != nil {
		actions = s.codeActionsLocked(uri, doc, params)
	}
	s.mu.Unlock()
	return s.sendResponse(msg.ID, actions)
}

// codeActionsLocked offers fixes for the issues the request names. The
// client echoes our own diagnostics back in the context; those are matched
// by rule id and range. Requests without context diagnostics fall back to
// every issue overlapping the requested range. Callers hold s.mu.
func (s *Server) codeActionsLocked(uri string, doc *document, params codeActionParams) []codeAction {
	targets := issuesForContext(doc, params.Context.Diagnostics)
	if len(targets) == 0 {
		targets = issuesInRange(doc, params.Range)
	}
	actions := []codeAction{}
	for _, iss := range targets {
		wire := projectIssue(doc.unit, iss)
		for _, f := range fix.Remedies(iss) {
			rf, err := f.Resolve(diag.FixBuildContext{Units: doc.set})
			if err != nil {
				s.logf("fix %s did not build: %v", f.ID, err)
				continue
			}
			if len(rf.Edits) == 0 {
				continue
			}
			edits := make([]textEdit, 0, len(rf.Edits))
			for _, e := range rf.Edits {
				edits = append(edits, textEdit{
					Range:   rangeForSpan(doc.unit, e.Span),
					NewText: e.NewText,
				})
			}
			actions = append(actions, codeAction{
				Title:       rf.Title,
				Kind:        "quickfix",
				Diagnostics: []lspDiagnostic{wire},
				IsPreferred: rf.IsPreferred,
				Edit: &workspaceEdit{
					Changes: map[string][]textEdit{uri: edits},
				},
			})
		}
	}
	return actions
}

func issuesForContext(doc *document, diags []lspDiagnostic) []*diag.Issue {
	var out []*diag.Issue
	for _, d := range diags {
		if d.Source != "failkit" {
			continue
		}
		want := d.Code
		if want == "" {
			want = ruleIDFromWire(d.Message)
		}
		for _, iss := range doc.bag.Items() {
			if iss.Code.ID() != want {
				continue
			}
			if rangeForSpan(doc.unit, iss.Primary) != d.Range {
				continue
			}
			out = append(out, iss)
			break
		}
	}
	return out
}

func issuesInRange(doc *document, r lspRange) []*diag.Issue {
	start := offsetForPositionInUnit(doc.unit, r.Start)
	end := offsetForPositionInUnit(doc.unit, r.End)
	if end < start {
		start, end = end, start
	}
	req := source.Span{Unit: doc.unit.ID, Start: start, End: end}
	var out []*diag.Issue
	for _, iss := range doc.bag.Items() {
		if spansOverlap(iss.Primary, req) {
			out = append(out, iss)
		}
	}
	return out
}

// spansOverlap treats the cursor (an empty request span) as overlapping any
// issue span that touches it.
func spansOverlap(a, b source.Span) bool {
	if b.Empty() {
		return spanTouches(a, b.Start)
	}
	return a.Start < b.End && b.Start < a.End
}
