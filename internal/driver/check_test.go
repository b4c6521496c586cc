package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"failkit/internal/diag"
	"failkit/internal/observ"
	"failkit/internal/rules"
	"failkit/internal/source"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, text := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCheckWalksTree(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"clean.py":            "x = 1\n",
		"sub/agent.py":        agentFixture,
		"README.md":           "# docs\n",
		"__pycache__/junk.py": agentFixture,
		".hidden/skip.py":     agentFixture,
	})

	res, err := Check(context.Background(), CheckRequest{Paths: []string{dir}, BaseDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("got %d files %v, want 2", len(res.Files), filePaths(res))
	}
	if res.Files[0].Path != filepath.Join(dir, "clean.py") {
		t.Errorf("first file %q, want clean.py", res.Files[0].Path)
	}
	if res.Files[1].Path != filepath.Join(dir, "sub", "agent.py") {
		t.Errorf("second file %q, want sub/agent.py", res.Files[1].Path)
	}
	if len(res.Files[0].Issues) != 0 {
		t.Errorf("clean.py got %d issues, want 0", len(res.Files[0].Issues))
	}
	if len(res.Files[1].Issues) != 2 {
		t.Errorf("agent.py got %d issues, want 2", len(res.Files[1].Issues))
	}
	if res.Bag.Len() != 2 {
		t.Errorf("merged bag holds %d issues, want 2", res.Bag.Len())
	}
	if res.Units.Len() != 2 {
		t.Errorf("unit set holds %d units, want 2", res.Units.Len())
	}
}

func filePaths(res *CheckResult) []string {
	out := make([]string, len(res.Files))
	for i, fr := range res.Files {
		out[i] = fr.Path
	}
	return out
}

func TestCheckExcludeGlobs(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"app.py":        agentFixture,
		"vendor/dep.py": agentFixture,
	})

	res, err := Check(context.Background(), CheckRequest{
		Paths:   []string{dir},
		BaseDir: dir,
		Exclude: []string{"vendor/**"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 || res.Files[0].Path != filepath.Join(dir, "app.py") {
		t.Fatalf("got files %v, want app.py only", filePaths(res))
	}
}

func TestCheckRejectsBadExcludePattern(t *testing.T) {
	if _, err := Check(context.Background(), CheckRequest{
		Paths:   []string{t.TempDir()},
		Exclude: []string{"[unclosed"},
	}); err == nil {
		t.Fatal("bad pattern accepted")
	}
}

func TestCheckSkipTests(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"agent.py":        agentFixture,
		"test_agent.py":   agentFixture,
		"tests/helper.py": agentFixture,
	})

	res, err := Check(context.Background(), CheckRequest{Paths: []string{dir}, BaseDir: dir, SkipTests: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 || res.Files[0].Path != filepath.Join(dir, "agent.py") {
		t.Fatalf("got files %v, want agent.py only", filePaths(res))
	}

	res, err = Check(context.Background(), CheckRequest{Paths: []string{dir}, BaseDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 3 {
		t.Fatalf("got %d files without SkipTests, want 3", len(res.Files))
	}
}

func TestCheckExplicitFileBypassesFilters(t *testing.T) {
	dir := writeTree(t, map[string]string{"test_agent.py": agentFixture})

	res, err := Check(context.Background(), CheckRequest{
		Paths:     []string{filepath.Join(dir, "test_agent.py")},
		BaseDir:   dir,
		SkipTests: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 || len(res.Files[0].Issues) != 2 {
		t.Fatalf("explicit file not checked: %v", filePaths(res))
	}
}

func TestCheckMissingPathErrors(t *testing.T) {
	if _, err := Check(context.Background(), CheckRequest{
		Paths: []string{filepath.Join(t.TempDir(), "gone.py")},
	}); err == nil {
		t.Fatal("missing path accepted")
	}
}

func TestCheckCancellation(t *testing.T) {
	dir := writeTree(t, map[string]string{"agent.py": agentFixture})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Check(ctx, CheckRequest{Paths: []string{dir}, BaseDir: dir})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestCheckServesCachedRecords(t *testing.T) {
	dir := writeTree(t, map[string]string{"agent.py": agentFixture})
	c, err := OpenCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	req := CheckRequest{Paths: []string{dir}, BaseDir: dir, Cache: c}

	res1, err := Check(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res1.Bag.Len() != 2 {
		t.Fatalf("first run got %d issues, want 2", res1.Bag.Len())
	}

	// Plant a distinctive record for the same content; a second run must
	// surface it instead of rescanning.
	u := res1.Units.Get(res1.Files[0].Unit)
	planted := []*diag.Issue{
		diag.New(diag.SevError, diag.MissingReceipt, source.NewSpan(u.ID, 0, 4), "planted marker"),
	}
	if err := c.Put(u, rules.DefaultWindows(), planted); err != nil {
		t.Fatal(err)
	}

	res2, err := Check(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Bag.Len() != 1 || res2.Bag.Items()[0].Message != "planted marker" {
		t.Fatalf("cached record not served: %d issues", res2.Bag.Len())
	}

	// Without the cache the real scan output comes back.
	res3, err := Check(context.Background(), CheckRequest{Paths: []string{dir}, BaseDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if res3.Bag.Len() != 2 {
		t.Fatalf("uncached run got %d issues, want 2", res3.Bag.Len())
	}
}

func TestCheckProgressEvents(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"clean.py": "x = 1\n",
		"agent.py": agentFixture,
	})
	ch := make(chan Event, 64)

	res, err := Check(context.Background(), CheckRequest{
		Paths:    []string{dir},
		BaseDir:  dir,
		Progress: ChannelSink{Ch: ch},
	})
	if err != nil {
		t.Fatal(err)
	}

	var evts []Event
	for {
		select {
		case e := <-ch:
			evts = append(evts, e)
			continue
		default:
		}
		break
	}

	queued, scanned := 0, 0
	for _, e := range evts {
		if e.Status == StatusQueued {
			queued++
		}
		if e.File != "" && e.Stage == StageScan && e.Status == StatusDone {
			scanned++
		}
	}
	if queued != 2 || scanned != 2 {
		t.Errorf("queued=%d scanned=%d, want 2/2", queued, scanned)
	}
	last := evts[len(evts)-1]
	if last.File != "" || last.Status != StatusDone || last.Issues != res.Bag.Len() {
		t.Errorf("final event %+v, want overall done with %d issues", last, res.Bag.Len())
	}
}

func TestCheckDeterministicAcrossJobs(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.py":     agentFixture,
		"b/x.py":   agentFixture,
		"c.py":     agentFixture,
		"d/y/z.py": agentFixture,
	})

	signature := func(jobs int) []string {
		t.Helper()
		res, err := Check(context.Background(), CheckRequest{Paths: []string{dir}, BaseDir: dir, Jobs: jobs})
		if err != nil {
			t.Fatal(err)
		}
		var sig []string
		for _, iss := range res.Bag.Items() {
			sig = append(sig, res.Units.Get(iss.Primary.Unit).Path+":"+iss.Code.ID())
		}
		return sig
	}

	serial := signature(1)
	parallel := signature(8)
	if len(serial) == 0 {
		t.Fatal("no issues produced")
	}
	if !slices.Equal(serial, parallel) {
		t.Fatalf("order diverged:\n  jobs=1: %v\n  jobs=8: %v", serial, parallel)
	}
}

func TestCheckRecordsTimings(t *testing.T) {
	dir := writeTree(t, map[string]string{"agent.py": agentFixture})
	tm := observ.NewTimer()

	if _, err := Check(context.Background(), CheckRequest{Paths: []string{dir}, BaseDir: dir, Timer: tm}); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range tm.Report().Phases {
		names = append(names, p.Name)
	}
	for _, want := range []string{"walk", "load", "scan"} {
		if !slices.Contains(names, want) {
			t.Errorf("phase %q missing from %v", want, names)
		}
	}
}
