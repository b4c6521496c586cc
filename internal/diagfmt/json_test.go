package diagfmt

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"failkit/internal/diag"
	"failkit/internal/source"
)

func TestJSONBasic(t *testing.T) {
	units := source.NewUnitSet()
	content := []byte("import openai\n\napi_key = \"sk-proj-abc123def456\"\n")
	id := units.AddVirtual("config.py", content)

	bag := diag.NewBag(10)
	iss := diag.New(
		diag.SevWarning,
		diag.HardcodedCredential,
		source.Span{Unit: id, Start: 25, End: 47},
		"hardcoded openai api key in assignment",
	).WithPattern("openai-key")
	bag.Add(iss)

	var buf bytes.Buffer
	opts := JSONOpts{
		IncludePositions: true,
		PathMode:         PathModeBasename,
	}

	if err := JSON(&buf, bag, units, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v\noutput: %s", err, buf.String())
	}

	if output.Count != 1 {
		t.Errorf("expected count=1, got %d", output.Count)
	}
	if len(output.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(output.Diagnostics))
	}

	d := output.Diagnostics[0]
	if d.Severity != "WARNING" {
		t.Errorf("expected severity=WARNING, got %s", d.Severity)
	}
	if d.Code != "FK007" {
		t.Errorf("expected code=FK007, got %s", d.Code)
	}
	if d.Category != "security" {
		t.Errorf("expected category=security, got %s", d.Category)
	}
	if d.Pattern != "openai-key" {
		t.Errorf("expected pattern=openai-key, got %s", d.Pattern)
	}
	if d.Message != "hardcoded openai api key in assignment" {
		t.Errorf("unexpected message: %s", d.Message)
	}
	if d.Location.File != "config.py" {
		t.Errorf("expected file=config.py, got %s", d.Location.File)
	}
	if d.Location.StartByte != 25 {
		t.Errorf("expected start_byte=25, got %d", d.Location.StartByte)
	}
	if d.Location.EndByte != 47 {
		t.Errorf("expected end_byte=47, got %d", d.Location.EndByte)
	}
	if d.Location.StartLine != 3 {
		t.Errorf("expected start_line=3, got %d", d.Location.StartLine)
	}
	if d.Location.StartCol != 11 {
		t.Errorf("expected start_col=11, got %d", d.Location.StartCol)
	}
}

func TestJSONWithNotesAndFixes(t *testing.T) {
	units := source.NewUnitSet()
	content := []byte("result = agent.run(query)\n")
	id := units.AddVirtual("app.py", content)

	bag := diag.NewBag(10)
	iss := diag.New(
		diag.SevError,
		diag.MissingReceipt,
		source.Span{Unit: id, Start: 9, End: 25},
		"agent call produces no receipt",
	).WithDialect("langchain").WithPattern("agent-execution").WithMeta("construct", "run")
	iss.AddNote(
		source.Span{Unit: id, Start: 0, End: 6},
		"the result is never hashed into a receipt",
	)
	iss.AddFix(&diag.Fix{
		Title: "record a receipt after the call",
		Edits: []diag.TextEdit{{
			Span:    source.Span{Unit: id, Start: 25, End: 25},
			NewText: "\nfailkit.create_receipt(action_id=failkit.new_action_id(), output_hash=failkit.hash_data(result))",
		}},
	})
	bag.Add(iss)

	var buf bytes.Buffer
	opts := JSONOpts{
		IncludePositions: true,
		PathMode:         PathModeBasename,
		IncludeNotes:     true,
		IncludeFixes:     true,
	}

	if err := JSON(&buf, bag, units, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	if len(output.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(output.Diagnostics))
	}
	d := output.Diagnostics[0]

	if d.Dialect != "langchain" {
		t.Errorf("expected dialect=langchain, got %s", d.Dialect)
	}
	if d.Meta["construct"] != "run" {
		t.Errorf("expected meta construct=run, got %v", d.Meta)
	}

	if len(d.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(d.Notes))
	}
	note := d.Notes[0]
	if note.Message != "the result is never hashed into a receipt" {
		t.Errorf("unexpected note message: %s", note.Message)
	}
	if note.Location.StartByte != 0 || note.Location.EndByte != 6 {
		t.Errorf("unexpected note location: %+v", note.Location)
	}

	if len(d.Fixes) != 1 {
		t.Fatalf("expected 1 fix, got %d", len(d.Fixes))
	}
	fix := d.Fixes[0]
	if fix.Title != "record a receipt after the call" {
		t.Errorf("unexpected fix title: %s", fix.Title)
	}
	if fix.Kind != "quickfix" {
		t.Errorf("expected kind quickfix, got %s", fix.Kind)
	}
	if fix.Applicability != "always-safe" {
		t.Errorf("expected applicability always-safe, got %s", fix.Applicability)
	}
	if fix.IsPreferred {
		t.Error("expected is_preferred to be false")
	}
	if fix.BuildError != "" {
		t.Errorf("unexpected build error: %s", fix.BuildError)
	}
	if len(fix.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(fix.Edits))
	}
	edit := fix.Edits[0]
	if !strings.Contains(edit.NewText, "failkit.create_receipt(") {
		t.Errorf("unexpected new_text: %s", edit.NewText)
	}
	if edit.OldText != "" {
		t.Errorf("expected empty old_text, got %s", edit.OldText)
	}
}

func TestJSONWithoutPositions(t *testing.T) {
	units := source.NewUnitSet()
	id := units.AddVirtual("app.py", []byte("llm.invoke(prompt)\n"))

	bag := diag.NewBag(10)
	bag.Add(diag.New(
		diag.SevInfo,
		diag.MissingResilience,
		source.Span{Unit: id, Start: 0, End: 18},
		"llm call without timeout or retry",
	))

	var buf bytes.Buffer
	opts := JSONOpts{PathMode: PathModeBasename}

	if err := JSON(&buf, bag, units, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	d := output.Diagnostics[0]
	if d.Location.StartLine != 0 {
		t.Errorf("expected start_line to be omitted, got %d", d.Location.StartLine)
	}
	if d.Location.EndByte != 18 {
		t.Errorf("expected end_byte=18, got %d", d.Location.EndByte)
	}
}

func TestJSONMaxLimit(t *testing.T) {
	units := source.NewUnitSet()
	id := units.AddVirtual("app.py", []byte("query = load()\n"))

	bag := diag.NewBag(10)
	for i := range 5 {
		bag.Add(diag.New(
			diag.SevWarning,
			diag.MissingErrorHandling,
			source.Span{Unit: id, Start: uint32(i), End: uint32(i + 1)},
			"unprotected call",
		))
	}

	var buf bytes.Buffer
	opts := JSONOpts{PathMode: PathModeBasename, Max: 3}

	if err := JSON(&buf, bag, units, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	if output.Count != 3 {
		t.Errorf("expected count=3, got %d", output.Count)
	}
	if len(output.Diagnostics) != 3 {
		t.Errorf("expected 3 diagnostics, got %d", len(output.Diagnostics))
	}
}

func TestJSONPathModes(t *testing.T) {
	units := source.NewUnitSet()
	units.SetBaseDir("/work/agents")
	id := units.AddVirtual("/work/agents/src/pipeline.py", []byte("x = 1\n"))

	bag := diag.NewBag(10)
	bag.Add(diag.New(
		diag.SevWarning,
		diag.MissingErrorHandling,
		source.Span{Unit: id, Start: 0, End: 1},
		"unprotected call",
	))

	tests := []struct {
		name     string
		pathMode PathMode
		expected string
	}{
		{"Absolute", PathModeAbsolute, "/work/agents/src/pipeline.py"},
		{"Relative", PathModeRelative, "src/pipeline.py"},
		{"Basename", PathModeBasename, "pipeline.py"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := JSON(&buf, bag, units, JSONOpts{PathMode: tt.pathMode}); err != nil {
				t.Fatalf("JSON() error: %v", err)
			}

			var output DiagnosticsOutput
			if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
				t.Fatalf("invalid JSON output: %v", err)
			}

			if got := output.Diagnostics[0].Location.File; got != tt.expected {
				t.Errorf("expected file=%s, got %s", tt.expected, got)
			}
		})
	}
}

func TestJSONFixPreview(t *testing.T) {
	units := source.NewUnitSet()
	content := []byte("status = tool.run(target)\n")
	id := units.AddVirtual("worker.py", content)

	bag := diag.NewBag(2)
	iss := diag.New(
		diag.SevError,
		diag.MissingReceipt,
		source.Span{Unit: id, Start: 9, End: 25},
		"tool call produces no receipt",
	)
	iss.AddFix(&diag.Fix{
		Title: "record a receipt after the call",
		Edits: []diag.TextEdit{{
			Span:    source.Span{Unit: id, Start: 25, End: 25},
			NewText: "\nfailkit.create_receipt(action_id=failkit.new_action_id(), output_hash=failkit.hash_data(status))",
		}},
	})
	bag.Add(iss)

	var buf bytes.Buffer
	opts := JSONOpts{
		PathMode:        PathModeBasename,
		IncludeFixes:    true,
		IncludePreviews: true,
	}

	if err := JSON(&buf, bag, units, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	edits := output.Diagnostics[0].Fixes[0].Edits
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}

	edit := edits[0]
	if len(edit.BeforeLines) != 1 || edit.BeforeLines[0] != "status = tool.run(target)" {
		t.Errorf("unexpected before lines: %q", edit.BeforeLines)
	}
	if len(edit.AfterLines) != 2 {
		t.Fatalf("expected 2 after lines, got %q", edit.AfterLines)
	}
	if edit.AfterLines[0] != "status = tool.run(target)" {
		t.Errorf("unexpected first after line: %q", edit.AfterLines[0])
	}
	if !strings.HasPrefix(edit.AfterLines[1], "failkit.create_receipt(") {
		t.Errorf("unexpected second after line: %q", edit.AfterLines[1])
	}
}

func TestJSONSurfacesBuildError(t *testing.T) {
	units := source.NewUnitSet()
	id := units.AddVirtual("app.py", []byte("result = agent.run(query)\n"))

	bag := diag.NewBag(2)
	iss := diag.New(
		diag.SevError,
		diag.MissingReceipt,
		source.Span{Unit: id, Start: 9, End: 25},
		"agent call produces no receipt",
	)
	iss.AddFix(&diag.Fix{
		Title: "record a receipt after the call",
		Thunk: func(diag.FixBuildContext) ([]diag.TextEdit, error) {
			return nil, errors.New("target moved")
		},
	})
	bag.Add(iss)

	var buf bytes.Buffer
	if err := JSON(&buf, bag, units, JSONOpts{PathMode: PathModeBasename, IncludeFixes: true}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	fix := output.Diagnostics[0].Fixes[0]
	if fix.BuildError != "target moved" {
		t.Errorf("expected build_error=target moved, got %q", fix.BuildError)
	}
	if len(fix.Edits) != 0 {
		t.Errorf("expected no edits on a failed build, got %d", len(fix.Edits))
	}
}
