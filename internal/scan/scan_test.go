package scan

import (
	"strings"
	"testing"

	"failkit/internal/diag"
	"failkit/internal/dialect"
	"failkit/internal/rules"
	"failkit/internal/source"
)

func runOn(t *testing.T, path, text string) []*diag.Issue {
	t.Helper()
	return Run(unitOf(t, path, text), All(), rules.DefaultWindows())
}

func codesOf(issues []*diag.Issue) []diag.Code {
	out := make([]diag.Code, 0, len(issues))
	for _, iss := range issues {
		out = append(out, iss.Code)
	}
	return out
}

func countCode(issues []*diag.Issue, code diag.Code) int {
	n := 0
	for _, iss := range issues {
		if iss.Code == code {
			n++
		}
	}
	return n
}

const bareInvocation = `from langchain.agents import AgentExecutor

def run(agent_executor, query):
    result = agent_executor.invoke({"input": query})
    return result
`

func TestAgentInvocationWithoutReceiptOrProtection(t *testing.T) {
	issues := runOn(t, "agent.py", bareInvocation)
	if len(issues) != 2 {
		t.Fatalf("got %d issues %v, want exactly 2", len(issues), codesOf(issues))
	}
	if issues[0].Code != diag.MissingReceipt || issues[0].Severity != diag.SevError {
		t.Fatalf("first issue %v %v, want FK001 error", issues[0].Code, issues[0].Severity)
	}
	if issues[1].Code != diag.MissingErrorHandling || issues[1].Severity != diag.SevWarning {
		t.Fatalf("second issue %v %v, want FK002 warning", issues[1].Code, issues[1].Severity)
	}
	u := unitOf(t, "agent.py", bareInvocation)
	for _, iss := range issues {
		pos := u.Resolve(iss.Primary.Start)
		if pos.Line != 4 {
			t.Errorf("%s anchored at line %d, want 4", iss.Code.ID(), pos.Line)
		}
		if iss.Dialect != "langchain" {
			t.Errorf("%s dialect %q, want langchain", iss.Code.ID(), iss.Dialect)
		}
	}
}

func TestProtectedInvocationWithReceiptIsClean(t *testing.T) {
	issues := runOn(t, "agent.py", `from langchain.agents import AgentExecutor
import failkit

def run(agent_executor, query):
    try:
        result = agent_executor.invoke({"input": query})
        failkit.create_receipt(action_id=new_id(), input_hash=failkit.hash_data(query), output_hash=failkit.hash_data(result))
    except Exception as exc:
        failkit.log_failure(exc)
        raise
    return result
`)
	if len(issues) != 0 {
		t.Fatalf("got %v, want no findings", codesOf(issues))
	}
}

func TestReceiptOutsideWindowRestoresFinding(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("from langchain.agents import AgentExecutor\n\n")
	sb.WriteString("def run(agent_executor, query):\n")
	sb.WriteString("    try:\n")
	sb.WriteString("        result = agent_executor.invoke({\"input\": query})\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("        step()\n")
	}
	sb.WriteString("        create_receipt(result)\n")
	sb.WriteString("    except Exception:\n")
	sb.WriteString("        raise\n")
	issues := runOn(t, "agent.py", sb.String())
	if countCode(issues, diag.MissingReceipt) != 1 {
		t.Fatalf("receipt 20 lines below the call must not count, got %v", codesOf(issues))
	}
}

func TestConversationWithoutTurnLimit(t *testing.T) {
	issues := runOn(t, "chat.py", `import autogen

def chat(user_proxy, assistant):
    user_proxy.initiate_chat(assistant, message="hello")
`)
	if got := countCode(issues, diag.MissingTerminationBound); got != 1 {
		t.Fatalf("got %d FK009, want exactly 1 (%v)", got, codesOf(issues))
	}

	issues = runOn(t, "chat.py", `import autogen

def chat(user_proxy, assistant):
    user_proxy.initiate_chat(assistant, message="hello", max_turns=10)
`)
	if got := countCode(issues, diag.MissingTerminationBound); got != 0 {
		t.Fatalf("positive max_turns must clear FK009, got %d (%v)", got, codesOf(issues))
	}
}

func TestZeroTurnLimitStillFires(t *testing.T) {
	issues := runOn(t, "chat.py", `import autogen

user_proxy.initiate_chat(assistant, max_turns=0)
`)
	if got := countCode(issues, diag.MissingTerminationBound); got != 1 {
		t.Fatalf("max_turns=0 is not a bound, got %d FK009", got)
	}
}

func TestHardcodedCredential(t *testing.T) {
	issues := runOn(t, "settings.py", `api_key = "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
`)
	if len(issues) != 1 {
		t.Fatalf("got %v, want exactly one finding", codesOf(issues))
	}
	iss := issues[0]
	if iss.Code != diag.HardcodedCredential || iss.Severity != diag.SevWarning {
		t.Fatalf("got %v %v, want FK007 warning", iss.Code, iss.Severity)
	}
	if iss.Pattern != "openai-api-key" {
		t.Fatalf("pattern %q, want the vendor shape to win", iss.Pattern)
	}
	if strings.Contains(iss.Message, "sk-aaaa") {
		t.Fatalf("message echoes the secret: %q", iss.Message)
	}
}

func TestCredentialEnvLookupExemption(t *testing.T) {
	issues := runOn(t, "settings.py", `api_key = os.environ.get("OPENAI_API_KEY", "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
`)
	if len(issues) != 0 {
		t.Fatalf("env-lookup line must be exempt, got %v", codesOf(issues))
	}
}

func TestCredentialTemplatePlaceholderExemption(t *testing.T) {
	issues := runOn(t, "settings.py", `api_key = "${OPENAI_API_KEY_FROM_DEPLOY_ENV}"
`)
	if len(issues) != 0 {
		t.Fatalf("template placeholder must be exempt, got %v", codesOf(issues))
	}
}

func TestCredentialInCommentExemption(t *testing.T) {
	issues := runOn(t, "settings.py", `# example: api_key = "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
x = 1
`)
	if len(issues) != 0 {
		t.Fatalf("commented example must be exempt, got %v", codesOf(issues))
	}
}

func TestDialectGating(t *testing.T) {
	// AutoGen call shapes without an autogen import: the scanner never runs.
	issues := runOn(t, "chat.py", `def chat(user_proxy, assistant):
    user_proxy.initiate_chat(assistant)
`)
	if len(issues) != 0 {
		t.Fatalf("gated-out scanner produced %v", codesOf(issues))
	}
}

func TestNonPythonUnitIgnored(t *testing.T) {
	issues := runOn(t, "notes.txt", bareInvocation)
	if len(issues) != 0 {
		t.Fatalf("non-python unit produced %v", codesOf(issues))
	}
}

func TestSuppressionDirectives(t *testing.T) {
	issues := runOn(t, "agent.py", `from langchain.agents import AgentExecutor

def run(agent_executor, query):
    result = agent_executor.invoke({"input": query})  # noqa: FK001
    return result
`)
	if countCode(issues, diag.MissingReceipt) != 0 {
		t.Fatalf("noqa: FK001 ignored, got %v", codesOf(issues))
	}
	if countCode(issues, diag.MissingErrorHandling) != 1 {
		t.Fatalf("scoped directive must keep FK002, got %v", codesOf(issues))
	}

	issues = runOn(t, "agent.py", `from langchain.agents import AgentExecutor

def run(agent_executor, query):
    # fail-kit-disable
    result = agent_executor.invoke({"input": query})
    return result
`)
	if len(issues) != 0 {
		t.Fatalf("blanket directive on previous line ignored: %v", codesOf(issues))
	}
}

func TestHandlerConfigClearsProtectionOnly(t *testing.T) {
	issues := runOn(t, "agent.py", `from langchain.agents import AgentExecutor

result = agent_executor.invoke({"input": q}, handle_parsing_errors=True)
`)
	if countCode(issues, diag.MissingErrorHandling) != 0 {
		t.Fatalf("handler config must clear FK002, got %v", codesOf(issues))
	}
	if countCode(issues, diag.MissingReceipt) != 1 {
		t.Fatalf("handler config must not clear FK001, got %v", codesOf(issues))
	}
}

func TestCrewTaskFindings(t *testing.T) {
	issues := runOn(t, "crew.py", `from crewai import Crew, Task

task = Task(
    description="summarize",
)
`)
	if countCode(issues, diag.TaskMissingErrorHandler) != 1 {
		t.Fatalf("task without callback must flag FK008, got %v", codesOf(issues))
	}
	if countCode(issues, diag.MissingReceipt) != 1 {
		t.Fatalf("task without expected_output must flag FK001 info, got %v", codesOf(issues))
	}

	issues = runOn(t, "crew.py", `from crewai import Crew, Task

task = Task(
    description="summarize",
    expected_output="a short summary",
    error_callback=handle_failure,
)
`)
	if len(issues) != 0 {
		t.Fatalf("configured task must be clean, got %v", codesOf(issues))
	}
}

func TestCrewVerboseAgentOutsideTests(t *testing.T) {
	text := `from crewai import Agent

agent = Agent(role="analyst", verbose=True, memory=True)
`
	issues := runOn(t, "crew.py", text)
	if countCode(issues, diag.SecretExposure) != 1 {
		t.Fatalf("verbose agent must flag FK003, got %v", codesOf(issues))
	}
	issues = runOn(t, "tests/test_crew.py", text)
	if countCode(issues, diag.SecretExposure) != 0 {
		t.Fatalf("verbose agent in a test file is fine, got %v", codesOf(issues))
	}
}

func TestCrewDestructiveToolWithoutConfirmation(t *testing.T) {
	issues := runOn(t, "crew.py", `from crewai import Agent
from crewai_tools import tool

@tool
def purge(path):
    shutil.rmtree(path)
`)
	if countCode(issues, diag.UnconfirmedSideEffect) != 1 {
		t.Fatalf("destructive tool must flag FK004, got %v", codesOf(issues))
	}

	issues = runOn(t, "crew.py", `from crewai import Agent
from crewai_tools import tool

@tool
def purge(path):
    if not confirm_action("purge", path):
        return "blocked"
    shutil.rmtree(path)
`)
	if countCode(issues, diag.UnconfirmedSideEffect) != 0 {
		t.Fatalf("confirmed tool must pass, got %v", codesOf(issues))
	}
}

func TestAutoGenAgentConstructors(t *testing.T) {
	issues := runOn(t, "chat.py", `import autogen

proxy = autogen.UserProxyAgent(name="ops", code_execution_config={"work_dir": "wd"})
`)
	if countCode(issues, diag.MissingTerminationBound) != 1 {
		t.Fatalf("proxy without human_input_mode must flag one FK009, got %v", codesOf(issues))
	}
	if countCode(issues, diag.SecretExposure) != 1 {
		t.Fatalf("code execution without docker must flag FK003, got %v", codesOf(issues))
	}

	issues = runOn(t, "chat.py", `import autogen

proxy = autogen.UserProxyAgent(name="ops", human_input_mode="ALWAYS", max_consecutive_auto_reply=5)
`)
	if countCode(issues, diag.MissingTerminationBound) != 0 {
		t.Fatalf("bounded proxy must be clean, got %v", codesOf(issues))
	}
}

func TestGroupChatFindings(t *testing.T) {
	issues := runOn(t, "chat.py", `import autogen

chat = GroupChat(agents=agents, messages=[])
`)
	if countCode(issues, diag.MissingTerminationBound) != 1 {
		t.Fatalf("group chat without max_round must flag FK009, got %v", codesOf(issues))
	}
	if countCode(issues, diag.MissingProvenance) != 1 {
		t.Fatalf("group chat without admin_name must flag FK006, got %v", codesOf(issues))
	}

	issues = runOn(t, "chat.py", `import autogen

chat = GroupChat(agents=agents, messages=[], max_round=20, admin_name="lead")
`)
	if len(issues) != 0 {
		t.Fatalf("configured group chat must be clean, got %v", codesOf(issues))
	}
}

func TestIdempotence(t *testing.T) {
	set := source.NewUnitSet()
	id := set.AddVirtual("agent.py", []byte(bareInvocation))
	u := set.Get(id)

	first := diag.NewBag(0)
	for _, iss := range Run(u, All(), rules.DefaultWindows()) {
		first.Add(iss)
	}
	second := diag.NewBag(0)
	for _, iss := range Run(u, All(), rules.DefaultWindows()) {
		second.Add(iss)
	}
	a := diag.FormatGoldenIssues(first, set)
	b := diag.FormatGoldenIssues(second, set)
	if a != b {
		t.Fatalf("two runs over the same text diverge:\n%s\nvs\n%s", a, b)
	}
}

func TestMergeDedupAndSuppressionSafetyNet(t *testing.T) {
	u := unitOf(t, "agent.py", "x = 1  # noqa: FK005\ny = 2\n")
	span := source.NewSpan(u.ID, 0, 1)
	dup1 := diag.New(diag.SevWarning, diag.MissingErrorHandling, span, "m")
	dup2 := diag.New(diag.SevWarning, diag.MissingErrorHandling, span, "m")
	suppressed := diag.New(diag.SevInfo, diag.MissingResilience, span, "m")
	merged := Merge(u, []*diag.Issue{dup1, suppressed, dup2, nil})
	if len(merged) != 1 {
		t.Fatalf("got %d issues, want 1 after dedup+suppression", len(merged))
	}
	if merged[0].Code != diag.MissingErrorHandling {
		t.Fatalf("survivor %v, want FK002", merged[0].Code)
	}
}

type panicScanner struct{}

func (panicScanner) Name() string                 { return "panics" }
func (panicScanner) Framework() dialect.Framework { return dialect.FrameworkUnknown }
func (panicScanner) Gate(u *source.Unit) bool     { return true }
func (panicScanner) Scan(ctx *Context, u *source.Unit) []*diag.Issue {
	panic("boom")
}

func TestScannerPanicIsolation(t *testing.T) {
	u := unitOf(t, "settings.py", `api_key = "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
`)
	issues := Run(u, []Scanner{panicScanner{}, Credentials{}}, rules.DefaultWindows())
	if countCode(issues, diag.HardcodedCredential) != 1 {
		t.Fatalf("panicking scanner must not take down the pass, got %v", codesOf(issues))
	}
}

func TestMalformedSourceDegradesToZero(t *testing.T) {
	issues := runOn(t, "broken.py", "\x00\x01\x02((((((\n\"unterminated\n")
	if len(issues) != 0 {
		t.Fatalf("malformed source produced %v", codesOf(issues))
	}
}

func TestCallSitesCarryConstructMetadata(t *testing.T) {
	issues := runOn(t, "agent.py", bareInvocation)
	if len(issues) != 2 {
		t.Fatalf("got %d issues %v, want 2", len(issues), codesOf(issues))
	}
	for _, iss := range issues {
		if got := iss.Meta["construct"]; got != "agent_executor.invoke" {
			t.Errorf("%s construct meta %q, want agent_executor.invoke", iss.Code.ID(), got)
		}
	}
}

func TestCredentialFindingNamesVariableOnly(t *testing.T) {
	issues := runOn(t, "settings.py", `api_key = "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
`)
	if len(issues) != 1 || issues[0].Code != diag.HardcodedCredential {
		t.Fatalf("got %v, want exactly one FK007", codesOf(issues))
	}
	iss := issues[0]
	if got := iss.Meta["variable"]; got != "api_key" {
		t.Errorf("variable meta %q, want api_key", got)
	}
	for k, v := range iss.Meta {
		if strings.Contains(v, "sk-aaa") {
			t.Errorf("meta %q leaks the secret literal: %q", k, v)
		}
	}
	if strings.Contains(iss.Message, "sk-aaa") {
		t.Errorf("message leaks the secret literal: %q", iss.Message)
	}
}

func TestVerboseFindingAnnotatesFlagPosition(t *testing.T) {
	text := `from crewai import Agent

agent = Agent(role="analyst", verbose=True, memory=True)
`
	issues := runOn(t, "crew.py", text)
	var verbose *diag.Issue
	for _, iss := range issues {
		if iss.Code == diag.SecretExposure {
			verbose = iss
		}
	}
	if verbose == nil {
		t.Fatalf("no FK003 in %v", codesOf(issues))
	}
	if len(verbose.Notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(verbose.Notes))
	}
	n := verbose.Notes[0]
	u := unitOf(t, "crew.py", text)
	if got := string(u.Content[n.Span.Start:n.Span.End]); got != "verbose=True" {
		t.Errorf("note covers %q, want verbose=True", got)
	}
	if pos := u.Resolve(n.Span.Start); pos.Line != 3 {
		t.Errorf("note anchored at line %d, want 3", pos.Line)
	}
}

func TestCodeExecFindingAnnotatesConfigPosition(t *testing.T) {
	issues := runOn(t, "chat.py", `import autogen

proxy = autogen.UserProxyAgent(name="ops", code_execution_config={"work_dir": "wd"})
`)
	for _, iss := range issues {
		if iss.Code != diag.SecretExposure {
			continue
		}
		if len(iss.Notes) != 1 {
			t.Fatalf("FK003 carries %d notes, want 1", len(iss.Notes))
		}
		if !strings.Contains(iss.Notes[0].Msg, "code execution") {
			t.Errorf("note message %q, want code execution pointer", iss.Notes[0].Msg)
		}
		return
	}
	t.Fatalf("no FK003 in %v", codesOf(issues))
}
