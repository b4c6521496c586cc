package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"failkit/internal/diag"
	"failkit/internal/diagfmt"
	"failkit/internal/driver"
	"failkit/internal/observ"
	"failkit/internal/project"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [path ...]",
	Short: "Scan agent source files for audit findings",
	Long:  `Run every audit rule over the given files or directories (default ".") and report findings in the chosen output format`,
	Args:  cobra.ArbitraryArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|sarif|short)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	checkCmd.Flags().Bool("no-warnings", false, "ignore warnings in findings")
	checkCmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
	checkCmd.Flags().Bool("with-notes", false, "include finding notes in output")
	checkCmd.Flags().Bool("suggest", false, "include fix suggestions in output")
	checkCmd.Flags().Bool("preview", false, "preview fixed lines without modifying files")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().StringArray("exclude", nil, "glob pattern to exclude, relative to the working directory (repeatable)")
	checkCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	checkCmd.Flags().Bool("no-cache", false, "disable the persistent scan cache")
}

// runCheck executes the "check" command: it resolves flags and project
// configuration, runs the parallel scan over the requested paths, renders
// the merged findings and exits non-zero when any finding is an error.
func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	noWarnings, err := cmd.Flags().GetBool("no-warnings")
	if err != nil {
		return fmt.Errorf("failed to get no-warnings flag: %w", err)
	}

	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}

	if noWarnings && warningsAsErrors {
		return fmt.Errorf("no-warnings and warnings-as-errors flags cannot be used together")
	}

	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}

	suggest, err := cmd.Flags().GetBool("suggest")
	if err != nil {
		return fmt.Errorf("failed to get suggest flag: %w", err)
	}

	preview, err := cmd.Flags().GetBool("preview")
	if err != nil {
		return fmt.Errorf("failed to get preview flag: %w", err)
	}

	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}

	excludes, err := cmd.Flags().GetStringArray("exclude")
	if err != nil {
		return fmt.Errorf("failed to get exclude flag: %w", err)
	}

	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	baseDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}
	cfg, err := project.LoadFromDir(baseDir)
	if err != nil {
		return fmt.Errorf("failed to load project config: %w", err)
	}

	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	showFixes := suggest || preview
	req := driver.CheckRequest{
		Paths:     paths,
		BaseDir:   baseDir,
		Jobs:      jobs,
		Exclude:   append(append([]string{}, cfg.Check.Exclude...), excludes...),
		SkipTests: !cfg.Check.IncludeTests,
		Options: driver.Options{
			Windows:    cfg.RuleWindows(),
			Disabled:   cfg.DisabledCodes(),
			Severities: cfg.SeverityOverrides(),
			MaxIssues:  maxDiagnostics,
			WithFixes:  showFixes,
		},
	}

	if !noCache {
		cache, cacheErr := driver.OpenCache("failkit")
		if cacheErr != nil {
			fmt.Fprintf(os.Stderr, "failkit: cache disabled: %v\n", cacheErr)
		} else {
			req.Cache = cache
		}
	}

	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
		req.Timer = timer
	}

	var res *driver.CheckResult
	if shouldUseTUI(mode) && format == "pretty" && !quiet {
		res, err = runCheckWithUI(cmd.Context(), "failkit check", req)
	} else {
		res, err = driver.Check(cmd.Context(), req)
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	for _, fr := range res.Files {
		if fr.Err != nil {
			fmt.Fprintf(os.Stderr, "failkit: %s: %v\n", fr.Path, fr.Err)
		}
	}

	bag := applyWarningPolicy(res.Bag, noWarnings, warningsAsErrors)

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}

	switch format {
	case "pretty":
		opts := diagfmt.PrettyOpts{
			Color:       useColor,
			Context:     2,
			PathMode:    pathMode,
			ShowNotes:   withNotes,
			ShowFixes:   showFixes,
			ShowPreview: preview,
		}
		diagfmt.Pretty(os.Stdout, bag, res.Units, opts)
	case "short":
		output := diag.FormatGoldenIssues(bag, res.Units)
		if output != "" {
			fmt.Fprintln(os.Stdout, output)
		}
	case "json":
		jsonOpts := diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pathMode,
			IncludeNotes:     withNotes,
			IncludeFixes:     showFixes,
			IncludePreviews:  preview,
		}
		if err := diagfmt.JSON(os.Stdout, bag, res.Units, jsonOpts); err != nil {
			return fmt.Errorf("failed to format findings: %w", err)
		}
	case "sarif":
		meta := diagfmt.SarifRunMeta{
			ToolName:       "failkit",
			ToolVersion:    plainVersion(),
			InvocationArgs: os.Args[1:],
		}
		if err := diagfmt.Sarif(os.Stdout, bag, res.Units, meta); err != nil {
			return fmt.Errorf("failed to format findings: %w", err)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if timer != nil {
		fmt.Fprint(os.Stderr, timer.Summary())
	}

	if bag.HasErrors() {
		// Suppress cobra usage output; the findings were already printed.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return errFindings
	}
	return nil
}

// applyWarningPolicy adjusts the merged bag per the warning flags. Promotion
// mutates issues in place; dropping rebuilds the bag so the positional order
// survives.
func applyWarningPolicy(bag *diag.Bag, noWarnings, warningsAsErrors bool) *diag.Bag {
	if bag == nil || (!noWarnings && !warningsAsErrors) {
		return bag
	}
	if warningsAsErrors {
		for _, iss := range bag.Items() {
			if iss.Severity == diag.SevWarning {
				iss.Severity = diag.SevError
			}
		}
		return bag
	}
	kept := diag.NewBag(0)
	for _, iss := range bag.Items() {
		if iss.Severity == diag.SevWarning {
			continue
		}
		kept.Add(iss)
	}
	return kept
}
