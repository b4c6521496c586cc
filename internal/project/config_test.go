package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"failkit/internal/diag"
	"failkit/internal/gate"
	"failkit/internal/rules"
)

func writeManifest(t *testing.T, dir, text string) string {
	t.Helper()
	p := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFullManifest(t *testing.T) {
	p := writeManifest(t, t.TempDir(), `
[rules]
disabled = ["FK005", "fk006"]

[rules.severity]
FK001 = "warning"
FK003 = "error"

[windows]
receipt = 5
error = 3
resilience = 8

[check]
exclude = ["vendor/**", "examples/*.py"]
include-tests = false

[gates]
enforce-receipts = false
extra-verbs = ["launched"]
`)

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != p {
		t.Errorf("path %q, want %q", cfg.Path(), p)
	}
	disabled := cfg.DisabledCodes()
	if !disabled[diag.MissingResilience] || !disabled[diag.MissingProvenance] {
		t.Errorf("disabled set %v, want FK005 and FK006", disabled)
	}
	sev := cfg.SeverityOverrides()
	if sev[diag.MissingReceipt] != diag.SevWarning || sev[diag.SecretExposure] != diag.SevError {
		t.Errorf("severity overrides %v", sev)
	}
	if w := cfg.RuleWindows(); w != (rules.Windows{Receipt: 5, Error: 3, Resilience: 8}) {
		t.Errorf("windows %+v", w)
	}
	if cfg.Check.IncludeTests {
		t.Error("include-tests not honored")
	}
	if len(cfg.Check.Exclude) != 2 {
		t.Errorf("exclude %v", cfg.Check.Exclude)
	}
	gc := cfg.GateConfig()
	if gc.EnforceReceipts {
		t.Error("enforce-receipts not honored")
	}
	if !gc.EnforceToolFailures || !gc.EnforceEscalation {
		t.Error("absent gate toggles lost their defaults")
	}
	if len(gc.ExtraVerbs) != 1 || gc.ExtraVerbs[0] != "launched" {
		t.Errorf("extra verbs %v", gc.ExtraVerbs)
	}
	if _, err := gate.New(gc); err != nil {
		t.Fatalf("manifest gate config rejected: %v", err)
	}
}

func TestLoadKeepsDefaultsForAbsentSections(t *testing.T) {
	cfg, err := Load(writeManifest(t, t.TempDir(), "[rules]\ndisabled = [\"FK009\"]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if w := cfg.RuleWindows(); w != rules.DefaultWindows() {
		t.Errorf("windows %+v, want defaults", w)
	}
	if !cfg.Check.IncludeTests {
		t.Error("include-tests default lost")
	}
	if !cfg.Gates.EnforceReceipts || !cfg.Gates.EnforceToolFailures || !cfg.Gates.EnforceEscalation {
		t.Error("gate defaults lost")
	}
}

func TestLoadRejectsBadManifests(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"unknown key", "[rules]\nfrobnicate = 1\n", "unknown key"},
		{"unknown rule", "[rules]\ndisabled = [\"FK999\"]\n", "unknown rule"},
		{"unknown severity rule", "[rules.severity]\nFK999 = \"error\"\n", "unknown rule"},
		{"bad severity", "[rules.severity]\nFK001 = \"loud\"\n", "unknown severity"},
		{"negative window", "[windows]\nreceipt = -1\n", "non-negative"},
		{"bad glob", "[check]\nexclude = [\"[oops\"]\n", "invalid pattern"},
		{"bad toml", "rules = \n", "failed to parse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, t.TempDir(), tc.text))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadFromDirFindsNearestManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[windows]\nreceipt = 7\n")
	child := filepath.Join(root, "src", "agents")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(child)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Windows.Receipt != 7 {
		t.Errorf("receipt window %d, want 7 from parent manifest", cfg.Windows.Receipt)
	}
	if cfg.Path() == "" {
		t.Error("path empty for discovered manifest")
	}
}

func TestLoadFromDirFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != "" {
		t.Errorf("default config claims path %q", cfg.Path())
	}
	if w := cfg.RuleWindows(); w != rules.DefaultWindows() {
		t.Errorf("windows %+v, want defaults", w)
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "")
	child := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok, err := FindProjectRoot(child)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	// TempDir may sit behind a symlink; compare resolved paths.
	wantReal, _ := filepath.EvalSymlinks(root)
	gotReal, _ := filepath.EvalSymlinks(got)
	if gotReal != wantReal {
		t.Errorf("root %q, want %q", got, root)
	}

	_, ok, err = FindProjectRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("found a manifest where none exists")
	}
}
