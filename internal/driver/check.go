package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"failkit/internal/diag"
	"failkit/internal/observ"
	"failkit/internal/scan"
	"failkit/internal/source"
)

// CheckRequest describes one analysis run over files and directories.
type CheckRequest struct {
	// Paths lists files and directories to check. Directories are walked
	// recursively; explicitly named files are checked as given.
	Paths []string
	// BaseDir anchors relative display paths and exclude globs. Empty
	// means the current working directory.
	BaseDir string
	// Jobs caps worker parallelism; <=0 means GOMAXPROCS.
	Jobs int
	// Exclude holds doublestar globs matched against slash-separated
	// paths relative to BaseDir.
	Exclude []string
	// SkipTests drops files following test-file conventions from directory
	// walks. Explicitly named files are never skipped.
	SkipTests bool

	Options  Options
	Cache    *Cache
	Progress ProgressSink
	Timer    *observ.Timer
}

// FileResult is the outcome for one walked file. Issues is nil when Err is
// set; a file that fails to load does not abort the run.
type FileResult struct {
	Path   string
	Unit   source.UnitID
	Issues []*diag.Issue
	Err    error
}

// CheckResult is the merged outcome of a run.
type CheckResult struct {
	Units *source.UnitSet
	// Files holds per-file outcomes in walk order.
	Files []FileResult
	// Bag holds every surviving issue across all files, sorted.
	Bag *diag.Bag
}

// Check walks the requested paths, loads every Python unit and scans them in
// parallel. Results come back in deterministic walk order regardless of
// worker scheduling. Per-file IO failures ride FileResult.Err; Check itself
// fails only on invalid requests, walk errors or cancellation.
func Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	for _, pat := range req.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pat)
		}
	}
	baseDir := req.BaseDir
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}

	done := req.Timer.Phase("walk")
	files, err := listPythonFiles(req.Paths, baseDir, req.Exclude, req.SkipTests)
	if err != nil {
		return nil, err
	}
	done(fmt.Sprintf("%d files", len(files)))

	units := source.NewUnitSetWithBase(baseDir)
	res := &CheckResult{
		Units: units,
		Files: make([]FileResult, len(files)),
		Bag:   diag.NewBag(req.Options.bagCap()),
	}
	if len(files) == 0 {
		emit(req.Progress, Event{Stage: StageScan, Status: StatusDone})
		return res, nil
	}
	for _, path := range files {
		emit(req.Progress, Event{File: path, Stage: StageLoad, Status: StatusQueued})
	}

	// Preload every unit up front. UnitSet is not safe for concurrent
	// mutation; workers only read from it.
	done = req.Timer.Phase("load")
	ids := make(map[string]source.UnitID, len(files))
	loadErrors := make(map[string]error, len(files))
	for _, path := range files {
		id, loadErr := units.Load(path)
		if loadErr != nil {
			loadErrors[path] = loadErr
			continue
		}
		ids[path] = id
	}
	done(fmt.Sprintf("%d units", units.Len()))

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	w := req.Options.windows()
	scanners := scan.All()

	done = req.Timer.Phase("scan")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			if loadErr, failed := loadErrors[path]; failed {
				res.Files[i] = FileResult{Path: path, Err: loadErr}
				emit(req.Progress, Event{File: path, Stage: StageLoad, Status: StatusError, Err: loadErr})
				return nil
			}

			emit(req.Progress, Event{File: path, Stage: StageScan, Status: StatusWorking})
			start := time.Now()

			u := units.Get(ids[path])
			raw, hit, cacheErr := req.Cache.Get(u, w)
			if cacheErr != nil || !hit {
				raw = scan.Run(u, scanners, w)
				// Best effort: a failed write costs one rescan next run,
				// and a corrupt record is overwritten here.
				_ = req.Cache.Put(u, w, raw)
			}
			issues := finish(raw, req.Options)

			// One slot per file, no mutex needed.
			res.Files[i] = FileResult{Path: path, Unit: u.ID, Issues: issues}
			emit(req.Progress, Event{
				File:    path,
				Stage:   StageScan,
				Status:  StatusDone,
				Issues:  len(issues),
				Elapsed: time.Since(start),
			})
			return nil
		})
	}

	err = g.Wait()
	done(fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return res, err
	}

	// Merge in walk order so unit ids ascend monotonically; Sort then keeps
	// the report stable run to run.
	for _, fr := range res.Files {
		for _, iss := range fr.Issues {
			res.Bag.Add(iss)
		}
	}
	res.Bag.Sort()
	emit(req.Progress, Event{Stage: StageScan, Status: StatusDone, Issues: res.Bag.Len()})
	return res, nil
}

// listPythonFiles resolves the requested paths into a sorted, deduplicated
// list of Python files. Directory walks skip hidden directories,
// __pycache__ and anything matching the exclude globs; explicitly named
// files bypass all filters.
func listPythonFiles(roots []string, baseDir string, exclude []string, skipTests bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	addFile := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			addFile(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path == root {
					return nil
				}
				if skipDirName(d.Name()) || excluded(exclude, relSlash(baseDir, path)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !source.IsPythonPath(path) {
				return nil
			}
			if skipTests && source.IsTestPath(path) {
				return nil
			}
			if excluded(exclude, relSlash(baseDir, path)) {
				return nil
			}
			addFile(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// skipDirName filters directories whose contents never feed analysis.
func skipDirName(name string) bool {
	return name == "__pycache__" || name == "node_modules" || strings.HasPrefix(name, ".")
}

func excluded(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if doublestar.MatchUnvalidated(pat, rel) {
			return true
		}
	}
	return false
}

// relSlash rebases path onto baseDir with forward slashes, for glob
// matching. Paths outside baseDir stay as given.
func relSlash(baseDir, path string) string {
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
