package dialect

import (
	"strings"

	"failkit/internal/source"
)

type constructSignal struct {
	Framework Framework
	Score     int
	Reason    string
}

// constructSignals maps characteristic API surface to framework evidence.
// Scores stay below import scores: a stray `Agent(` proves less than an
// import line. Ambiguous names carry a signal for every framework that
// exposes them.
var constructSignals = map[string][]constructSignal{
	"AgentExecutor":    {{Framework: FrameworkLangChain, Score: 3, Reason: "langchain `AgentExecutor`"}},
	"initialize_agent": {{Framework: FrameworkLangChain, Score: 3, Reason: "langchain `initialize_agent`"}},
	"LLMChain":         {{Framework: FrameworkLangChain, Score: 3, Reason: "langchain `LLMChain`"}},
	"@tool": {
		{Framework: FrameworkLangChain, Score: 2, Reason: "`@tool` decorator"},
		{Framework: FrameworkCrewAI, Score: 1, Reason: "`@tool` decorator"},
	},
	"BaseTool": {
		{Framework: FrameworkLangChain, Score: 2, Reason: "`BaseTool` subclass"},
		{Framework: FrameworkCrewAI, Score: 1, Reason: "`BaseTool` subclass"},
	},

	"Crew(":     {{Framework: FrameworkCrewAI, Score: 3, Reason: "crewai `Crew(`"}},
	".kickoff":  {{Framework: FrameworkCrewAI, Score: 3, Reason: "crewai `.kickoff`"}},
	"Process.":  {{Framework: FrameworkCrewAI, Score: 2, Reason: "crewai `Process`"}},

	"UserProxyAgent": {{Framework: FrameworkAutoGen, Score: 3, Reason: "autogen `UserProxyAgent`"}},
	"AssistantAgent": {{Framework: FrameworkAutoGen, Score: 2, Reason: "autogen `AssistantAgent`"}},
	"GroupChat":      {{Framework: FrameworkAutoGen, Score: 3, Reason: "autogen `GroupChat`"}},
	"initiate_chat":  {{Framework: FrameworkAutoGen, Score: 3, Reason: "autogen `initiate_chat`"}},
	"register_function": {
		{Framework: FrameworkAutoGen, Score: 2, Reason: "autogen `register_function`"},
	},
}

// RecordConstructs walks every line of the unit and collects construct
// evidence. One hint per (line, construct): repeated mentions on a line
// score once.
func RecordConstructs(e *Evidence, u *source.Unit) {
	if e == nil || u == nil {
		return
	}
	for n := 1; n <= u.LineCount(); n++ {
		line := u.Line(uint32(n))
		if line == "" {
			continue
		}
		for needle, signals := range constructSignals {
			idx := strings.Index(line, needle)
			if idx < 0 {
				continue
			}
			start := u.LineStart(uint32(n)) + uint32(idx)
			span := source.NewSpan(u.ID, start, start+uint32(len(needle)))
			for _, sig := range signals {
				e.Add(Hint{
					Framework: sig.Framework,
					Score:     sig.Score,
					Reason:    sig.Reason,
					Span:      span,
				})
			}
		}
	}
}
