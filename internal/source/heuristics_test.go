package source

import "testing"

func TestCommentStart(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"x = 1", -1},
		{"# whole line", 0},
		{"x = 1  # trailing", 7},
		{`url = "http://x#y"`, -1},
		{`tag = '#nope'  # real`, 15},
		{`s = "esc\"#still"`, -1},
	}
	for _, tt := range tests {
		if got := CommentStart(tt.line); got != tt.want {
			t.Errorf("CommentStart(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestInString(t *testing.T) {
	tests := []struct {
		line string
		col  int
		want bool
	}{
		{`x = "hello"`, 7, true},
		{`x = "hello"`, 2, false},
		{`x = 'a' + 'b'`, 5, true},
		{`x = 'a' + 'b'`, 8, false},
		{`x = "he said \"hi\""`, 15, true},
		{`plain line`, 4, false},
	}
	for _, tt := range tests {
		if got := InString(tt.line, tt.col); got != tt.want {
			t.Errorf("InString(%q, %d) = %v, want %v", tt.line, tt.col, got, tt.want)
		}
	}
}

func TestInComment(t *testing.T) {
	line := "run()  # fail-kit-disable"
	if InComment(line, 2) {
		t.Error("code before the hash flagged as comment")
	}
	if !InComment(line, 9) {
		t.Error("text after the hash not flagged as comment")
	}
}

func TestIsTestPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"agents/runner.py", false},
		{"agents/test_runner.py", true},
		{"agents/runner_test.py", true},
		{"agents/runner.spec.py", true},
		{"tests/helper.py", true},
		{"pkg/tests/helper.py", true},
		{"pkg/__tests__/helper.py", true},
		{"attestations/helper.py", false},
	}
	for _, tt := range tests {
		if got := IsTestPath(tt.path); got != tt.want {
			t.Errorf("IsTestPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsPythonPath(t *testing.T) {
	if !IsPythonPath("a/b.py") || IsPythonPath("a/b.go") || IsPythonPath("a/pyproject.toml") {
		t.Error("extension gate misbehaves")
	}
}
