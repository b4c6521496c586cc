package fix

import (
	"sort"
	"strings"
	"testing"

	"failkit/internal/diag"
	"failkit/internal/rules"
	"failkit/internal/scan"
	"failkit/internal/source"
)

const bareAgent = `import langchain

def handle(query):
    result = agent_executor.invoke({"input": query})
    return result
`

func pyUnit(t *testing.T, units *source.UnitSet, path, text string) *source.Unit {
	t.Helper()
	id := units.AddVirtual(path, []byte(text))
	return units.Get(id)
}

func scanUnit(u *source.Unit) []*diag.Issue {
	return scan.Run(u, scan.All(), rules.DefaultWindows())
}

func rescan(t *testing.T, path, text string) []*diag.Issue {
	t.Helper()
	units := source.NewUnitSet()
	return scanUnit(pyUnit(t, units, path, text))
}

func findCode(t *testing.T, issues []*diag.Issue, code diag.Code) *diag.Issue {
	t.Helper()
	for _, iss := range issues {
		if iss.Code == code {
			return iss
		}
	}
	t.Fatalf("no %s issue in %d issues", code.ID(), len(issues))
	return nil
}

func codeCount(issues []*diag.Issue, code diag.Code) int {
	n := 0
	for _, iss := range issues {
		if iss.Code == code {
			n++
		}
	}
	return n
}

func resolveEdits(t *testing.T, units *source.UnitSet, f *diag.Fix) []diag.TextEdit {
	t.Helper()
	resolved, err := f.Resolve(diag.FixBuildContext{Units: units})
	if err != nil {
		t.Fatalf("resolve %s: %v", f.Title, err)
	}
	return resolved.Edits
}

// patched applies edits to the unit's content in descending start order,
// honoring OldText guards, and returns the new text.
func patched(t *testing.T, u *source.Unit, edits []diag.TextEdit) string {
	t.Helper()
	buf := append([]byte(nil), u.Content...)
	sorted := append([]diag.TextEdit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start > sorted[j].Span.Start })
	for _, e := range sorted {
		start, end := int(e.Span.Start), int(e.Span.End)
		if end > len(buf) {
			t.Fatalf("edit out of range: [%d,%d) in %d bytes", start, end, len(buf))
		}
		if e.OldText != "" && string(buf[start:end]) != e.OldText {
			t.Fatalf("guard mismatch at [%d,%d): have %q want %q", start, end, buf[start:end], e.OldText)
		}
		buf = append(buf[:start], append([]byte(e.NewText), buf[end:]...)...)
	}
	return string(buf)
}

func TestReceiptRemedyInsertsAfterCall(t *testing.T) {
	units := source.NewUnitSet()
	u := pyUnit(t, units, "agent.py", bareAgent)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.MissingReceipt)
	remedies := Remedies(iss)
	if len(remedies) != 2 {
		t.Fatalf("expected primary + suppression, got %d remedies", len(remedies))
	}
	if remedies[1].Kind != diag.FixKindSuppress {
		t.Errorf("expected trailing suppression, got kind %v", remedies[1].Kind)
	}

	edits := resolveEdits(t, units, remedies[0])
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}
	if edits[0].Span.Start != u.LineEnd(4) || !edits[0].Span.Empty() {
		t.Fatalf("expected insertion at end of line 4, got %v", edits[0].Span)
	}
	if !strings.Contains(edits[0].NewText, "output_hash=failkit.hash_data(result)") {
		t.Fatalf("receipt snippet misses the assignment target: %q", edits[0].NewText)
	}

	after := rescan(t, "agent.py", patched(t, u, edits))
	if codeCount(after, diag.MissingReceipt) != 0 {
		t.Error("receipt finding must clear after the insert")
	}
	if codeCount(after, diag.MissingErrorHandling) != 1 {
		t.Error("the unrelated protection finding must survive")
	}
}

func TestTryWrapRemedyProtectsSite(t *testing.T) {
	units := source.NewUnitSet()
	u := pyUnit(t, units, "agent.py", bareAgent)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.MissingErrorHandling)
	remedies := Remedies(iss)
	if remedies[0].Kind != diag.FixKindRefactor {
		t.Errorf("expected refactor kind, got %v", remedies[0].Kind)
	}

	edits := resolveEdits(t, units, remedies[0])
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}
	if edits[0].OldText != `    result = agent_executor.invoke({"input": query})` {
		t.Fatalf("guard must cover the original statement, got %q", edits[0].OldText)
	}
	want := "    try:\n" +
		"        result = agent_executor.invoke({\"input\": query})\n" +
		"    except Exception as exc:\n" +
		"        failkit.record_failure(action=\"agent_executor.invoke\", error=exc)\n" +
		"        raise"
	if edits[0].NewText != want {
		t.Fatalf("rewrite mismatch:\nhave %q\nwant %q", edits[0].NewText, want)
	}

	// The handler's failkit call doubles as receipt evidence inside the
	// trailing window, so the wrap clears both findings.
	after := rescan(t, "agent.py", patched(t, u, edits))
	if len(after) != 0 {
		t.Fatalf("expected a clean rescan, got %d issues", len(after))
	}
}

func TestEnvLookupRemedyRewritesAssignment(t *testing.T) {
	text := "import os\n\napi_key = \"sk-" + strings.Repeat("a", 32) + "\"\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "settings.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.HardcodedCredential)
	edits := resolveEdits(t, units, Remedies(iss)[0])
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}
	want := "api_key = os.environ.get(\"API_KEY\")\n" +
		"if not api_key:\n" +
		"    raise RuntimeError(\"API_KEY is not set\")"
	if edits[0].NewText != want {
		t.Fatalf("rewrite mismatch:\nhave %q\nwant %q", edits[0].NewText, want)
	}

	after := rescan(t, "settings.py", patched(t, u, edits))
	if codeCount(after, diag.HardcodedCredential) != 0 {
		t.Error("credential finding must clear after the env rewrite")
	}
}

func TestEnvLookupRemedySkipsNonAssignmentShapes(t *testing.T) {
	text := "import os\n\nclient = OpenAI(api_key=\"sk-" + strings.Repeat("a", 32) + "\")\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "settings.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.HardcodedCredential)
	edits := resolveEdits(t, units, Remedies(iss)[0])
	if len(edits) != 0 {
		t.Fatalf("keyword-argument shape must yield no edits, got %+v", edits)
	}
}

func TestBoundRemedyAppendsTurnLimit(t *testing.T) {
	text := "import autogen\n\n" +
		"user_proxy = autogen.UserProxyAgent(\"user\", human_input_mode=\"NEVER\", max_consecutive_auto_reply=3)\n" +
		"user_proxy.initiate_chat(assistant, message=\"go\")\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "chat.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.MissingTerminationBound)
	fix := Remedies(iss)[0]
	if fix.Title != "bound the conversation to 10 turns" {
		t.Fatalf("unexpected remedy title %q", fix.Title)
	}
	edits := resolveEdits(t, units, fix)
	if len(edits) != 1 || edits[0].OldText != ")" {
		t.Fatalf("expected a close-paren rewrite, got %+v", edits)
	}

	after := rescan(t, "chat.py", patched(t, u, edits))
	if codeCount(after, diag.MissingTerminationBound) != 0 {
		t.Error("termination finding must clear once max_turns is present")
	}
}

func TestBoundRemedyHumanInputCascade(t *testing.T) {
	text := "import autogen\n\nproxy = autogen.UserProxyAgent(\"user\")\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "proxy.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.MissingTerminationBound)
	if iss.Severity != diag.SevWarning {
		t.Fatalf("expected the human-input warning first, got %v", iss.Severity)
	}
	fix := Remedies(iss)[0]
	if fix.Title != "require human input on the proxy agent" {
		t.Fatalf("unexpected remedy title %q", fix.Title)
	}
	step1 := patched(t, u, resolveEdits(t, units, fix))
	if !strings.Contains(step1, `human_input_mode="ALWAYS"`) {
		t.Fatalf("patched ctor misses the mode argument: %q", step1)
	}

	// The warning clears; the softer auto-reply bound surfaces next.
	units2 := source.NewUnitSet()
	u2 := pyUnit(t, units2, "proxy.py", step1)
	second := scanUnit(u2)
	iss2 := findCode(t, second, diag.MissingTerminationBound)
	if iss2.Severity != diag.SevInfo || !strings.Contains(iss2.Message, "unbounded auto-replies") {
		t.Fatalf("expected the auto-reply info finding, got %v %q", iss2.Severity, iss2.Message)
	}

	fix2 := Remedies(iss2)[0]
	if fix2.Title != "bound consecutive auto-replies to 5" {
		t.Fatalf("unexpected remedy title %q", fix2.Title)
	}
	step2 := patched(t, u2, resolveEdits(t, units2, fix2))
	final := rescan(t, "proxy.py", step2)
	if len(final) != 0 {
		t.Fatalf("expected a clean rescan after both bounds, got %d issues", len(final))
	}
}

func TestConfirmationRemedyGuardsToolBody(t *testing.T) {
	text := "from crewai import Agent\nimport shutil\n\n" +
		"@tool\ndef wipe_dir(path):\n    shutil.rmtree(path)\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "tools.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.UnconfirmedSideEffect)
	edits := resolveEdits(t, units, Remedies(iss)[0])
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}
	want := "\n    if not failkit.confirm_action(\"wipe_dir\"):\n" +
		"        raise failkit.ActionBlocked(\"wipe_dir\")"
	if edits[0].NewText != want {
		t.Fatalf("guard mismatch:\nhave %q\nwant %q", edits[0].NewText, want)
	}
	if edits[0].Span.Start != u.LineEnd(5) {
		t.Fatalf("expected insertion after the def header, got %v", edits[0].Span)
	}

	after := rescan(t, "tools.py", patched(t, u, edits))
	if codeCount(after, diag.UnconfirmedSideEffect) != 0 {
		t.Error("side-effect finding must clear once the guard is present")
	}
}

func TestExposureRemedyFlipsVerbose(t *testing.T) {
	text := "from crewai import Agent\n\nagent = Agent(role=\"analyst\", verbose=True)\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "crew.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.SecretExposure)
	edits := resolveEdits(t, units, Remedies(iss)[0])
	if len(edits) != 1 || edits[0].NewText != "verbose=False" || edits[0].OldText != "verbose=True" {
		t.Fatalf("expected a verbose toggle rewrite, got %+v", edits)
	}

	after := rescan(t, "crew.py", patched(t, u, edits))
	if codeCount(after, diag.SecretExposure) != 0 {
		t.Error("exposure finding must clear once verbose is off")
	}
	if codeCount(after, diag.MissingProvenance) != 1 {
		t.Error("the unrelated memory finding must survive")
	}
}

func TestExposureRemedyAddsDockerIsolation(t *testing.T) {
	text := "import autogen\n\n" +
		"runner = autogen.AssistantAgent(\"runner\", max_consecutive_auto_reply=2, code_execution_config={\"work_dir\": \"wd\"})\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "runner.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.SecretExposure)
	edits := resolveEdits(t, units, Remedies(iss)[0])
	if len(edits) != 1 || edits[0].NewText != `"use_docker": True, ` {
		t.Fatalf("expected a docker insertion, got %+v", edits)
	}

	out := patched(t, u, edits)
	if !strings.Contains(out, `code_execution_config={"use_docker": True, "work_dir": "wd"}`) {
		t.Fatalf("patched ctor misses the docker key: %q", out)
	}
	if after := rescan(t, "runner.py", out); len(after) != 0 {
		t.Fatalf("expected a clean rescan, got %d issues", len(after))
	}
}

func TestResilienceRemedyLeavesNote(t *testing.T) {
	text := "from langchain_openai import ChatOpenAI\n\nllm = ChatOpenAI()\nanswer = llm.invoke(prompt)\n"
	units := source.NewUnitSet()
	u := pyUnit(t, units, "ask.py", text)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.MissingResilience)
	edits := resolveEdits(t, units, Remedies(iss)[0])
	if len(edits) != 1 || edits[0].Span.Start != u.LineStart(4) {
		t.Fatalf("expected an insertion above the call, got %+v", edits)
	}
	if !strings.Contains(edits[0].NewText, "tenacity") {
		t.Fatalf("scaffold note misses the library hint: %q", edits[0].NewText)
	}

	if after := rescan(t, "ask.py", patched(t, u, edits)); len(after) != 0 {
		t.Fatalf("expected a clean rescan, got %d issues", len(after))
	}
}

func TestSuppressRemedyScopedDirective(t *testing.T) {
	units := source.NewUnitSet()
	u := pyUnit(t, units, "agent.py", bareAgent)
	issues := scanUnit(u)

	iss := findCode(t, issues, diag.MissingReceipt)
	remedies := Remedies(iss)
	sup := remedies[len(remedies)-1]
	if sup.Kind != diag.FixKindSuppress || sup.Applicability != diag.ApplicabilityManualReview {
		t.Fatalf("unexpected suppression metadata: %+v", sup)
	}

	edits := resolveEdits(t, units, sup)
	if len(edits) != 1 || edits[0].NewText != "    # fail-kit-disable: FK001\n" {
		t.Fatalf("unexpected directive edit: %+v", edits)
	}

	after := rescan(t, "agent.py", patched(t, u, edits))
	if codeCount(after, diag.MissingReceipt) != 0 {
		t.Error("suppressed rule must stay silent")
	}
	if codeCount(after, diag.MissingErrorHandling) != 1 {
		t.Error("the directive is scoped; other rules must survive")
	}
}

func TestStaleIssueYieldsNoEdits(t *testing.T) {
	units := source.NewUnitSet()
	u := pyUnit(t, units, "small.py", "x = 1\n")

	iss := diag.New(diag.SevWarning, diag.MissingErrorHandling,
		source.NewSpan(u.ID, 5000, 5008), "unprotected agent execution")
	for _, f := range Remedies(iss) {
		edits := resolveEdits(t, units, f)
		if len(edits) != 0 {
			t.Errorf("stale span must yield no edits for %q, got %d", f.Title, len(edits))
		}
	}
}

func TestRemedySetShrinksToSuppression(t *testing.T) {
	units := source.NewUnitSet()
	u := pyUnit(t, units, "tasks.py", "from crewai import Task\n\nt = Task(description=\"d\")\n")

	iss := diag.New(diag.SevWarning, diag.TaskMissingErrorHandler,
		source.NewSpan(u.ID, 30, 35), "task has no error callback")
	remedies := Remedies(iss)
	if len(remedies) != 1 || remedies[0].Kind != diag.FixKindSuppress {
		t.Fatalf("rules without a synthesizer offer only suppression, got %d remedies", len(remedies))
	}
}

func TestApplyPipelineEndToEnd(t *testing.T) {
	units := source.NewUnitSet()
	u := diskUnit(t, units, "agent.py", bareAgent)

	issues := scanUnit(u)
	Attach(issues)

	result, err := Apply(units, issues, ApplyOptions{Mode: ApplyModeOnce})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("expected one applied fix, got %+v", result.Applied)
	}
	if !strings.HasPrefix(result.Applied[0].ID, "fk001-receipt") {
		t.Fatalf("expected the receipt remedy to win, got %q", result.Applied[0].ID)
	}
	if result.Applied[0].Code != diag.MissingReceipt {
		t.Fatalf("expected FK001, got %v", result.Applied[0].Code)
	}

	raw := readBack(t, u)
	if !strings.Contains(raw, "failkit.create_receipt(") {
		t.Fatalf("file on disk misses the receipt call:\n%s", raw)
	}

	after := rescan(t, "agent.py", raw)
	if codeCount(after, diag.MissingReceipt) != 0 {
		t.Error("receipt finding must clear after apply")
	}
	if codeCount(after, diag.MissingErrorHandling) != 1 {
		t.Error("protection finding must survive the single apply")
	}
}
