package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"failkit/internal/diagfmt"
	"failkit/internal/driver"
	"failkit/internal/fix"
	"failkit/internal/project"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] <file.py|directory>",
	Short: "Apply available fixes to agent source files",
	Long:  "Run the audit scan, surface available fixes, and apply them according to the chosen strategy.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().Bool("all", false, "apply all safe fixes")
	fixCmd.Flags().Bool("once", false, "apply the first available fix (default)")
	fixCmd.Flags().String("id", "", "apply fix with a specific identifier")
	fixCmd.Flags().Bool("dry-run", false, "show would-be fixes without modifying files")
}

func runFix(cmd *cobra.Command, args []string) error {
	targetPath := args[0]

	applyAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	applyOnceFlag, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}
	targetID, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	if targetID != "" && (applyAll || applyOnceFlag) {
		return fmt.Errorf("--id cannot be combined with --all or --once")
	}
	if applyAll && applyOnceFlag {
		return fmt.Errorf("--all and --once are mutually exclusive")
	}

	mode := fix.ApplyModeOnce
	if targetID != "" {
		mode = fix.ApplyModeID
	} else if applyAll {
		mode = fix.ApplyModeAll
	}
	opts := fix.ApplyOptions{
		Mode:     mode,
		TargetID: targetID,
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}

	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := os.Stat(targetPath)
	if err != nil {
		return fmt.Errorf("fix: %w", err)
	}

	// Fix ids are derived from one file's findings, so they cannot address
	// a whole tree.
	if info.IsDir() && targetID != "" {
		return fmt.Errorf("fix: id can only be used with a single file")
	}

	baseDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("fix: failed to resolve working directory: %w", err)
	}
	cfg, err := project.LoadFromDir(baseDir)
	if err != nil {
		return fmt.Errorf("fix: failed to load project config: %w", err)
	}

	req := driver.CheckRequest{
		Paths:     []string{targetPath},
		BaseDir:   baseDir,
		Exclude:   cfg.Check.Exclude,
		SkipTests: !cfg.Check.IncludeTests,
		Options: driver.Options{
			Windows:    cfg.RuleWindows(),
			Disabled:   cfg.DisabledCodes(),
			Severities: cfg.SeverityOverrides(),
			MaxIssues:  maxDiagnostics,
			WithFixes:  true,
		},
	}

	res, err := driver.Check(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("fix: check failed: %w", err)
	}

	if dryRun {
		colorFlag, colorErr := cmd.Root().PersistentFlags().GetString("color")
		if colorErr != nil {
			return colorErr
		}
		useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))
		diagfmt.Pretty(os.Stdout, res.Bag, res.Units, diagfmt.PrettyOpts{
			Color:       useColor,
			Context:     2,
			ShowFixes:   true,
			ShowPreview: true,
		})
		fmt.Fprintln(os.Stdout, "Dry run: no files were modified.")
		return nil
	}

	applyRes, applyErr := fix.Apply(res.Units, res.Bag.Items(), opts)
	return handleApplyResult(applyRes, applyErr)
}

func handleApplyResult(res *fix.ApplyResult, applyErr error) error {
	if res == nil {
		return applyErr
	}
	var printErr error

	if len(res.Applied) > 0 {
		_, printErr = fmt.Fprintf(os.Stdout, "Applied %d fix(es):\n", len(res.Applied))
		if printErr != nil {
			return printErr
		}
		for _, item := range res.Applied {
			location := item.PrimaryPath
			if location == "" {
				location = "(unknown location)"
			}
			_, printErr = fmt.Fprintf(
				os.Stdout,
				"  %s [%s] - %s (%d edits, %s)\n",
				item.Title,
				item.ID,
				location,
				item.EditCount,
				item.Applicability.String(),
			)
			if printErr != nil {
				return printErr
			}
		}
	}

	if len(res.FileChanges) > 0 {
		_, printErr = fmt.Fprintln(os.Stdout, "Updated files:")
		if printErr != nil {
			return printErr
		}
		for _, change := range res.FileChanges {
			_, printErr = fmt.Fprintf(os.Stdout, "  %s (%d edits)\n", change.Path, change.EditCount)
			if printErr != nil {
				return printErr
			}
		}
	}

	if len(res.Skipped) > 0 {
		_, printErr = fmt.Fprintln(os.Stdout, "Skipped fixes:")
		if printErr != nil {
			return printErr
		}
		for _, skip := range res.Skipped {
			id := skip.ID
			if id == "" {
				id = "(unnamed)"
			}
			if skip.Title != "" {
				_, printErr = fmt.Fprintf(os.Stdout, "  %s [%s]: %s\n", skip.Title, id, skip.Reason)
				if printErr != nil {
					return printErr
				}
			} else {
				_, printErr = fmt.Fprintf(os.Stdout, "  [%s]: %s\n", id, skip.Reason)
				if printErr != nil {
					return printErr
				}
			}
		}
	}

	if applyErr != nil {
		if errors.Is(applyErr, fix.ErrNoFixes) && len(res.Applied) == 0 {
			_, printErr = fmt.Fprintln(os.Stdout, "No applicable fixes found.")
			if printErr != nil {
				return printErr
			}
			return nil
		}
		return applyErr
	}

	if len(res.Applied) == 0 {
		_, printErr = fmt.Fprintln(os.Stdout, "No fixes applied.")
		if printErr != nil {
			return printErr
		}
	}
	return nil
}
