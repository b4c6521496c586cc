package dialect

import "fmt"

// Framework identifies an agent framework a Python file may target.
type Framework uint8

const (
	FrameworkUnknown Framework = iota
	FrameworkLangChain
	FrameworkCrewAI
	FrameworkAutoGen

	frameworkCount
)

func (f Framework) String() string {
	switch f {
	case FrameworkLangChain:
		return "langchain"
	case FrameworkCrewAI:
		return "crewai"
	case FrameworkAutoGen:
		return "autogen"
	default:
		return "unknown"
	}
}

func (f Framework) GoString() string {
	return fmt.Sprintf("Framework(%s)", f.String())
}

// Frameworks lists every known framework in declaration order.
func Frameworks() []Framework {
	return []Framework{FrameworkLangChain, FrameworkCrewAI, FrameworkAutoGen}
}
