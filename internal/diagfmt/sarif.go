package diagfmt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"failkit/internal/diag"
	"failkit/internal/rules"
	"failkit/internal/source"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"

	defaultToolName = "failkit"
	defaultToolURI  = "https://fail-kit.dev"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	ShortDescription     sarifText          `json:"shortDescription"`
	FullDescription      *sarifText         `json:"fullDescription,omitempty"`
	Help                 *sarifText         `json:"help,omitempty"`
	HelpURI              string             `json:"helpUri,omitempty"`
	DefaultConfiguration sarifConfiguration `json:"defaultConfiguration"`
	Properties           map[string]any     `json:"properties,omitempty"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifConfiguration struct {
	Level string `json:"level"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool     `json:"executionSuccessful"`
	Arguments           []string `json:"arguments,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifText         `json:"message"`
	Locations           []sarifLocation   `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
}

// Sarif writes the bag as a SARIF 2.1.0 log with one run. The driver's rule
// table comes from the rule registry, so result ruleIndex values stay valid
// regardless of which rules actually fired.
func Sarif(w io.Writer, bag *diag.Bag, units *source.UnitSet, meta SarifRunMeta) error {
	driver := sarifDriver{
		Name:           meta.ToolName,
		Version:        meta.ToolVersion,
		InformationURI: defaultToolURI,
	}
	if driver.Name == "" {
		driver.Name = defaultToolName
	}

	ruleIndex := make(map[diag.Code]int)
	for i, info := range rules.All() {
		ruleIndex[info.Code] = i
		driver.Rules = append(driver.Rules, sarifRule{
			ID:                   info.Code.ID(),
			Name:                 sarifRuleName(info.Title),
			ShortDescription:     sarifText{Text: info.Title},
			FullDescription:      &sarifText{Text: info.Description},
			Help:                 &sarifText{Text: info.Remediation},
			HelpURI:              info.DocsURL,
			DefaultConfiguration: sarifConfiguration{Level: sarifLevel(info.DefaultSeverity)},
			Properties:           map[string]any{"category": info.Category.String()},
		})
	}

	results := make([]sarifResult, 0, bag.Len())
	for _, iss := range bag.Items() {
		u := units.Get(iss.Primary.Unit)
		start, end := units.Resolve(iss.Primary)

		uri := "<unknown>"
		if u != nil {
			uri = u.FormatPath(source.PathRelative, units.BaseDir())
		}

		idx, known := ruleIndex[iss.Code]
		if !known {
			idx = -1
		}

		result := sarifResult{
			RuleID:    iss.Code.ID(),
			RuleIndex: idx,
			Level:     sarifLevel(iss.Severity),
			Message:   sarifText{Text: iss.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: uri},
					Region: sarifRegion{
						StartLine:   start.Line,
						StartColumn: start.Col,
						EndLine:     end.Line,
						EndColumn:   end.Col,
					},
				},
			}},
			PartialFingerprints: map[string]string{
				"primaryLocationLineHash/v1": lineHash(u, iss.Primary, iss.Code),
			},
		}

		props := make(map[string]any)
		if iss.Dialect != "" {
			props["dialect"] = iss.Dialect
		}
		if iss.Pattern != "" {
			props["pattern"] = iss.Pattern
		}
		if iss.Category != diag.CategoryNone {
			props["category"] = iss.Category.String()
		}
		if len(props) > 0 {
			result.Properties = props
		}

		results = append(results, result)
	}

	log := sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool:        sarifTool{Driver: driver},
			Invocations: []sarifInvocation{{ExecutionSuccessful: true, Arguments: meta.InvocationArgs}},
			Results:     results,
		}},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}

// sarifLevel maps severities onto the SARIF level enum; hints and infos both
// land on "note", the mildest level SARIF defines.
func sarifLevel(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

// sarifRuleName derives the PascalCase rule name viewers display, keeping
// acronyms intact: "Missing LLM resilience" -> "MissingLLMResilience".
func sarifRuleName(title string) string {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return r == ' ' || r == '-'
	})
	var b strings.Builder
	for _, w := range words {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

// lineHash fingerprints a result by rule and flagged line content, staying
// stable when unrelated edits shift line numbers.
func lineHash(u *source.Unit, span source.Span, code diag.Code) string {
	line := ""
	if u != nil {
		line = u.Line(u.Resolve(span.Start).Line)
	}
	sum := sha256.Sum256([]byte(code.ID() + "\x00" + line))
	return hex.EncodeToString(sum[:8])
}
