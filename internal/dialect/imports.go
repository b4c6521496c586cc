package dialect

import (
	"strings"

	"failkit/internal/source"
)

// importScanBudget bounds how deep into a unit import evidence is collected.
// Framework imports live near the top of a file; scanning further buys noise,
// not signal.
const importScanBudget = 100

type importSignal struct {
	Framework Framework
	Score     int
	Reason    string
}

var importSignals = map[string][]importSignal{
	// LangChain and its split-out distributions.
	"langchain":           {{Framework: FrameworkLangChain, Score: 6, Reason: "import of `langchain`"}},
	"langchain_core":      {{Framework: FrameworkLangChain, Score: 6, Reason: "import of `langchain_core`"}},
	"langchain_community": {{Framework: FrameworkLangChain, Score: 5, Reason: "import of `langchain_community`"}},
	"langchain_openai":    {{Framework: FrameworkLangChain, Score: 5, Reason: "import of `langchain_openai`"}},
	"langgraph":           {{Framework: FrameworkLangChain, Score: 4, Reason: "import of `langgraph`"}},

	// CrewAI.
	"crewai":       {{Framework: FrameworkCrewAI, Score: 6, Reason: "import of `crewai`"}},
	"crewai_tools": {{Framework: FrameworkCrewAI, Score: 5, Reason: "import of `crewai_tools`"}},

	// AutoGen under its several package names.
	"autogen":           {{Framework: FrameworkAutoGen, Score: 6, Reason: "import of `autogen`"}},
	"pyautogen":         {{Framework: FrameworkAutoGen, Score: 5, Reason: "import of `pyautogen`"}},
	"autogen_agentchat": {{Framework: FrameworkAutoGen, Score: 5, Reason: "import of `autogen_agentchat`"}},
	"ag2":               {{Framework: FrameworkAutoGen, Score: 4, Reason: "import of `ag2`"}},
}

// ImportRoot extracts the root module of a Python import line, or "" when
// the line is not an import. `import a.b as c` and `from a.b import c` both
// yield "a".
func ImportRoot(line string) string {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "import ")
	if !ok {
		rest, ok = strings.CutPrefix(trimmed, "from ")
		if !ok {
			return ""
		}
	}
	rest = strings.TrimSpace(rest)
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '.', ' ', ',', ';', '\t', '(':
			return rest[:i]
		}
	}
	return rest
}

// RecordImports walks the top of the unit and collects import evidence.
func RecordImports(e *Evidence, u *source.Unit) {
	if e == nil || u == nil {
		return
	}
	limit := u.LineCount()
	if limit > importScanBudget {
		limit = importScanBudget
	}
	for n := 1; n <= limit; n++ {
		line := u.Line(uint32(n))
		root := ImportRoot(line)
		if root == "" {
			continue
		}
		for _, sig := range importSignals[root] {
			idx := strings.Index(line, root)
			if idx < 0 {
				idx = 0
			}
			start := u.LineStart(uint32(n)) + uint32(idx)
			e.Add(Hint{
				Framework: sig.Framework,
				Score:     sig.Score,
				Reason:    sig.Reason,
				Span:      source.NewSpan(u.ID, start, start+uint32(len(root))),
			})
		}
	}
}

// UsesFramework reports whether the unit imports one of the framework's
// characteristic modules. This is the scanners' gate: exact, cheap, and
// independent of classification scoring.
func UsesFramework(u *source.Unit, f Framework) bool {
	if u == nil || f == FrameworkUnknown {
		return false
	}
	limit := u.LineCount()
	if limit > importScanBudget {
		limit = importScanBudget
	}
	for n := 1; n <= limit; n++ {
		root := ImportRoot(u.Line(uint32(n)))
		if root == "" {
			continue
		}
		for _, sig := range importSignals[root] {
			if sig.Framework == f {
				return true
			}
		}
	}
	return false
}
