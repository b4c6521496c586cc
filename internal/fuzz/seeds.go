package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const maxFuzzInput = 64 << 10 // 64 KiB

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	addSnippetSeeds(f)
}

// addTestdataSeeds walks the repository testdata tree and feeds every Python
// file to the corpus. Missing testdata is fine; the snippets below keep the
// corpus non-empty.
func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".py" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

// addSnippetSeeds seeds the corpus with the shapes the scanners care about:
// framework imports, credential literals, protected and unprotected call
// sites, receipt evidence, suppressions and encoding oddities.
func addSnippetSeeds(f *testing.F) {
	snippets := []string{
		"",
		"\n",
		"# just a comment\n",
		"from langchain.agents import AgentExecutor\n\nexecutor = AgentExecutor(agent=agent, tools=tools)\nresult = executor.invoke({\"input\": question})\n",
		"from crewai import Agent, Crew\n\ncrew = Crew(agents=[researcher], tasks=[task], verbose=True)\nout = crew.kickoff()\n",
		"import autogen\n\nassistant = autogen.AssistantAgent(\"helper\")\nuser = autogen.UserProxyAgent(\"user\", code_execution_config={\"use_docker\": False})\nuser.initiate_chat(assistant, message=\"go\")\n",
		"api_key = \"sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\"\npassword = \"hunter2hunter2\"\n",
		"key = os.environ.get(\"OPENAI_API_KEY\")\n",
		"try:\n    tool.run(payload)\nexcept Exception as exc:\n    log.error(exc)\n    raise\n",
		"import failkit\n\nfailkit.create_receipt(action_id=aid, input_hash=h)\n",
		"chain.run(q)  # fail-kit-disable: FK001\n",
		"@retry(stop=stop_after_attempt(3))\ndef call_model(prompt):\n    return llm.invoke(prompt)\n",
		"def deep():\n" + deepIndent(40) + "x = 1\n",
		"s = \"unterminated\nnext_line()\n",
		"emoji = \"\U0001F600\"  # mixed width\r\nchain.run(emoji)\r\n",
		"\uFEFFfrom langchain import LLMChain\n",
	}
	for _, s := range snippets {
		f.Add(clampSeed([]byte(s)))
	}
}

func deepIndent(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += "    "
	}
	return out
}

func clampSeed(src []byte) []byte {
	if len(src) > maxFuzzInput {
		src = src[:maxFuzzInput]
	}
	return append([]byte(nil), src...)
}
