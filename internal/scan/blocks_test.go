package scan

import (
	"testing"

	"failkit/internal/source"
)

func unitOf(t *testing.T, path, text string) *source.Unit {
	t.Helper()
	set := source.NewUnitSet()
	id := set.AddVirtual(path, []byte(text))
	return set.Get(id)
}

func TestBlockIndexBasic(t *testing.T) {
	u := unitOf(t, "agent.py", `def main():
    try:
        result = agent.invoke(q)
    except Exception as e:
        log(e)
    done = True

def other():
    agent.invoke(q)
`)
	idx := NewBlockIndex(u)
	cases := []struct {
		line uint32
		want bool
	}{
		{1, false}, // def header
		{2, false}, // the try: line itself
		{3, true},  // try body
		{4, true},  // except clause
		{5, true},  // except body
		{6, false}, // dedent to try indent closes the statement
		{8, false},
		{9, false}, // separate function, no try
	}
	for _, tc := range cases {
		if got := idx.Protected(tc.line); got != tc.want {
			t.Errorf("line %d: protected=%v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestBlockIndexNested(t *testing.T) {
	u := unitOf(t, "agent.py", `try:
    try:
        x()
    except E:
        pass
    y()
z()
`)
	idx := NewBlockIndex(u)
	for line, want := range map[uint32]bool{
		2: true,  // inner try header sits in outer body
		3: true,
		4: true,
		5: true,
		6: true,  // inner closed, outer still open
		7: false, // dedent to outer indent closes everything
	} {
		if got := idx.Protected(line); got != want {
			t.Errorf("line %d: protected=%v, want %v", line, got, want)
		}
	}
}

func TestBlockIndexBlankAndCommentLines(t *testing.T) {
	u := unitOf(t, "agent.py", `try:
    a()

    # still inside
    b()
c()
`)
	idx := NewBlockIndex(u)
	for line, want := range map[uint32]bool{2: true, 3: true, 4: true, 5: true, 6: false} {
		if got := idx.Protected(line); got != want {
			t.Errorf("line %d: protected=%v, want %v", line, got, want)
		}
	}
}

func TestBlockIndexOutOfRange(t *testing.T) {
	idx := NewBlockIndex(unitOf(t, "agent.py", "x = 1\n"))
	if idx.Protected(0) || idx.Protected(99) {
		t.Fatal("out-of-range lines must report unprotected")
	}
	var nilIdx *BlockIndex
	if nilIdx.Protected(1) {
		t.Fatal("nil index must report unprotected")
	}
}
