package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"failkit/internal/diagfmt"
	"failkit/internal/driver"
	"failkit/internal/project"
	"failkit/internal/source"
)

var watchCmd = &cobra.Command{
	Use:          "watch [flags] [path ...]",
	Short:        "Re-run the audit scan whenever agent sources change",
	Long:         `Watch the given files or directories (default ".") and re-run the audit scan after every change. A manifest edit reloads the project configuration`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runWatch,
}

// watchSettle is how long the watcher waits after the last event before
// rescanning, so editor save bursts produce one run.
const watchSettle = 250 * time.Millisecond

func runWatch(cmd *cobra.Command, args []string) error {
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
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

	req := driver.CheckRequest{
		Paths:   paths,
		BaseDir: baseDir,
	}
	applyWatchConfig(&req, cfg, maxDiagnostics)

	if cache, cacheErr := driver.OpenCache("failkit"); cacheErr != nil {
		fmt.Fprintf(os.Stderr, "failkit: cache disabled: %v\n", cacheErr)
	} else {
		req.Cache = cache
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil {
			return fmt.Errorf("failed to stat path: %w", statErr)
		}
		if !info.IsDir() {
			if addErr := watcher.Add(filepath.Dir(p)); addErr != nil {
				return fmt.Errorf("failed to watch %s: %w", p, addErr)
			}
			continue
		}
		if addErr := addWatchTree(watcher, p); addErr != nil {
			return fmt.Errorf("failed to watch %s: %w", p, addErr)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runWatchScan(ctx, req, useColor)
	fmt.Fprintln(os.Stderr, "failkit: watching for changes (interrupt to stop)")

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if !watchSkipDir(filepath.Base(ev.Name)) {
						_ = addWatchTree(watcher, ev.Name)
						settle = time.After(watchSettle)
					}
					continue
				}
			}
			if source.IsPythonPath(ev.Name) || isManifestPath(ev.Name) {
				settle = time.After(watchSettle)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "failkit: watch error: %v\n", watchErr)
		case <-settle:
			settle = nil
			if fresh, loadErr := project.LoadFromDir(baseDir); loadErr != nil {
				fmt.Fprintf(os.Stderr, "failkit: config reload failed: %v\n", loadErr)
			} else {
				applyWatchConfig(&req, fresh, maxDiagnostics)
			}
			runWatchScan(ctx, req, useColor)
		}
	}
}

func applyWatchConfig(req *driver.CheckRequest, cfg *project.Config, maxDiagnostics int) {
	req.Exclude = cfg.Check.Exclude
	req.SkipTests = !cfg.Check.IncludeTests
	req.Options = driver.Options{
		Windows:    cfg.RuleWindows(),
		Disabled:   cfg.DisabledCodes(),
		Severities: cfg.SeverityOverrides(),
		MaxIssues:  maxDiagnostics,
	}
}

func runWatchScan(ctx context.Context, req driver.CheckRequest, useColor bool) {
	res, err := driver.Check(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failkit: check failed: %v\n", err)
		return
	}
	for _, fr := range res.Files {
		if fr.Err != nil {
			fmt.Fprintf(os.Stderr, "failkit: %s: %v\n", fr.Path, fr.Err)
		}
	}
	fmt.Fprintf(os.Stdout, "[%s] %d finding(s) in %d file(s)\n",
		time.Now().Format("15:04:05"), res.Bag.Len(), len(res.Files))
	diagfmt.Pretty(os.Stdout, res.Bag, res.Units, diagfmt.PrettyOpts{
		Color:    useColor,
		Context:  2,
		PathMode: diagfmt.PathModeAuto,
	})
}

// addWatchTree registers root and every non-hidden subdirectory, mirroring
// the conventions of the scan walker.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && watchSkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func watchSkipDir(name string) bool {
	return name == "__pycache__" || name == "node_modules" || strings.HasPrefix(name, ".")
}

func isManifestPath(path string) bool {
	return filepath.Base(path) == "failkit.toml"
}
