package directive

import (
	"testing"

	"failkit/internal/diag"
	"failkit/internal/source"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ok    bool
		all   bool
		codes []diag.Code
	}{
		{name: "none", line: "crew.kickoff()", ok: false},
		{name: "bare disable", line: "x()  # fail-kit-disable", ok: true, all: true},
		{name: "scoped disable", line: "x()  # fail-kit-disable: FK001", ok: true, codes: []diag.Code{diag.MissingReceipt}},
		{name: "scoped list", line: "# fail-kit-disable: FK001, FK002", ok: true, codes: []diag.Code{diag.MissingReceipt, diag.MissingErrorHandling}},
		{name: "no hyphen spelling", line: "# failkit-disable: fk007", ok: true, codes: []diag.Code{diag.HardcodedCredential}},
		{name: "uppercase", line: "# FAIL-KIT-DISABLE", ok: true, all: true},
		{name: "ignore", line: "y()  # failkit-ignore", ok: true, all: true},
		{name: "ignore colon", line: "y()  # failkit: ignore", ok: true, all: true},
		{name: "bare noqa", line: "z()  # noqa", ok: true, all: true},
		{name: "scoped noqa", line: "z()  # noqa: FK009", ok: true, codes: []diag.Code{diag.MissingTerminationBound}},
		{name: "foreign noqa", line: "z()  # noqa: E501", ok: false},
		{name: "type ignore", line: "w()  # type: ignore[failkit]", ok: true, all: true},
		{name: "unknown scoped disable", line: "# fail-kit-disable: ZZ001", ok: false},
		{name: "not a comment", line: "fail-kit-disable = True", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ParseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if d.All != tt.all {
				t.Errorf("All = %v, want %v", d.All, tt.all)
			}
			if len(d.Codes) != len(tt.codes) {
				t.Fatalf("codes = %v, want %v", d.Codes, tt.codes)
			}
			for i, c := range tt.codes {
				if d.Codes[i] != c {
					t.Errorf("codes[%d] = %v, want %v", i, d.Codes[i], c)
				}
			}
		})
	}
}

func TestMatches(t *testing.T) {
	all := Directive{All: true}
	if !all.Matches(diag.MissingReceipt) || !all.Matches(diag.HardcodedCredential) {
		t.Error("All directive should match every code")
	}
	scoped := Directive{Codes: []diag.Code{diag.MissingReceipt}}
	if !scoped.Matches(diag.MissingReceipt) {
		t.Error("scoped directive should match its own code")
	}
	if scoped.Matches(diag.MissingErrorHandling) {
		t.Error("scoped directive must not match other codes")
	}
}

func TestSuppressedAt(t *testing.T) {
	units := source.NewUnitSet()
	id := units.AddVirtual("bot.py", []byte(
		"crew.kickoff()\n"+
			"# fail-kit-disable: FK001\n"+
			"crew.kickoff()\n"+
			"agent.run()  # noqa\n"+
			"plain()\n"))
	u := units.Get(id)

	if SuppressedAt(u, 1, diag.MissingReceipt) {
		t.Error("line 1 has no directive anywhere near it")
	}
	if !SuppressedAt(u, 3, diag.MissingReceipt) {
		t.Error("line 3 should inherit the directive from line 2")
	}
	if SuppressedAt(u, 3, diag.MissingErrorHandling) {
		t.Error("scoped directive must not silence other rules")
	}
	if !SuppressedAt(u, 4, diag.UnconfirmedSideEffect) {
		t.Error("trailing bare noqa silences the line")
	}
	if !SuppressedAt(u, 5, diag.MissingReceipt) {
		t.Error("line 5 follows a bare noqa line, which counts as preceding")
	}
}
