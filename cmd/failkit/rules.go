package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"failkit/internal/diag"
	"failkit/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [rule-id]",
	Short: "List the audit rules or describe one in detail",
	Long:  `List every audit rule with its default severity and category, or describe a single rule (e.g. "failkit rules FK007")`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().String("format", "pretty", "output format (pretty|json|yaml)")
}

// ruleDoc is the serializable view of one rule for json and yaml output.
type ruleDoc struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Category    string `json:"category" yaml:"category"`
	Severity    string `json:"severity" yaml:"severity"`
	Description string `json:"description" yaml:"description"`
	Remediation string `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	DocsURL     string `json:"docs_url,omitempty" yaml:"docs-url,omitempty"`
}

func runRules(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))

	infos := rules.All()
	detailed := false
	if len(args) > 0 {
		code := diag.ParseCode(args[0])
		if code == diag.CodeNone {
			return fmt.Errorf("unknown rule id: %s", args[0])
		}
		infos = []rules.Info{rules.Describe(code)}
		detailed = true
	}

	switch format {
	case "pretty":
		renderRulesPretty(infos, detailed, useColor)
	case "json":
		docs := make([]ruleDoc, 0, len(infos))
		for _, info := range infos {
			docs = append(docs, docForRule(info))
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(docs); err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
	case "yaml":
		docs := make([]ruleDoc, 0, len(infos))
		for _, info := range infos {
			docs = append(docs, docForRule(info))
		}
		data, err := yaml.Marshal(docs)
		if err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}

func docForRule(info rules.Info) ruleDoc {
	return ruleDoc{
		ID:          info.Code.ID(),
		Title:       info.Title,
		Category:    info.Category.String(),
		Severity:    strings.ToLower(info.DefaultSeverity.String()),
		Description: info.Description,
		Remediation: info.Remediation,
		DocsURL:     info.DocsURL,
	}
}

func renderRulesPretty(infos []rules.Info, detailed bool, useColor bool) {
	bold := color.New(color.Bold)
	bold.DisableColor()
	if useColor {
		bold.EnableColor()
	}

	if !detailed {
		for _, info := range infos {
			fmt.Fprintf(os.Stdout, "%s  %-7s  %-14s  %s\n",
				bold.Sprint(info.Code.ID()),
				strings.ToLower(info.DefaultSeverity.String()),
				info.Category.String(),
				info.Title,
			)
		}
		return
	}

	for _, info := range infos {
		fmt.Fprintf(os.Stdout, "%s: %s\n", bold.Sprint(info.Code.ID()), info.Title)
		fmt.Fprintf(os.Stdout, "  category: %s\n", info.Category.String())
		fmt.Fprintf(os.Stdout, "  severity: %s\n", strings.ToLower(info.DefaultSeverity.String()))
		if info.Description != "" {
			fmt.Fprintf(os.Stdout, "\n  %s\n", info.Description)
		}
		if info.Remediation != "" {
			fmt.Fprintf(os.Stdout, "\n  remediation: %s\n", info.Remediation)
		}
		if info.DocsURL != "" {
			fmt.Fprintf(os.Stdout, "  docs: %s\n", info.DocsURL)
		}
	}
}
