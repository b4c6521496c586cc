package dialect

// Profile carries presentation metadata for a framework. It is used when
// rendering findings and hover content; it must never affect detection.
type Profile struct {
	Name        string
	Display     string
	ImportRoots []string
	Blurb       string
}

func ProfileFor(f Framework) Profile {
	switch f {
	case FrameworkLangChain:
		return Profile{
			Name:        "langchain",
			Display:     "LangChain",
			ImportRoots: []string{"langchain", "langchain_core", "langchain_community", "langchain_openai", "langgraph"},
			Blurb:       "agent executors, chains, and @tool functions",
		}
	case FrameworkCrewAI:
		return Profile{
			Name:        "crewai",
			Display:     "CrewAI",
			ImportRoots: []string{"crewai", "crewai_tools"},
			Blurb:       "crews, tasks, and role-based agents",
		}
	case FrameworkAutoGen:
		return Profile{
			Name:        "autogen",
			Display:     "AutoGen",
			ImportRoots: []string{"autogen", "pyautogen", "autogen_agentchat", "ag2"},
			Blurb:       "conversable agents and group chats",
		}
	default:
		return Profile{
			Name:    "unknown",
			Display: "unknown framework",
		}
	}
}
