package source

// UnitID identifies a source unit inside a UnitSet.
// IDs start at 1; 0 means "no unit".
type UnitID uint32

// NoUnit is the zero UnitID.
const NoUnit UnitID = 0

// UnitFlags records normalization applied while loading a unit.
type UnitFlags uint8

const (
	// UnitVirtual marks units that were supplied by a caller (editor buffer,
	// test fixture) rather than read from disk. Virtual units are never
	// written back by the fix engine.
	UnitVirtual UnitFlags = 1 << iota
	// UnitHadBOM is set when a byte order mark was stripped.
	UnitHadBOM
	// UnitNormalizedCRLF is set when CRLF line endings were rewritten to LF.
	UnitNormalizedCRLF
	// UnitDecodedUTF16 is set when the raw bytes were UTF-16 and were
	// transcoded to UTF-8.
	UnitDecodedUTF16
)

// Unit is an immutable snapshot of one file's text at one revision.
// It is constructed fresh on every analysis request and never mutated;
// a newer revision supersedes it wholesale.
type Unit struct {
	ID      UnitID
	Path    string
	Content []byte
	// LineIdx holds byte offsets of every '\n' in Content, in order.
	// It gives O(log n) offset->position resolution and O(1) line slicing.
	LineIdx []uint32
	// Hash is the sha256 of Content after normalization.
	Hash  [32]byte
	Flags UnitFlags
}

// LineCol is a 1-based line/column position. Columns count bytes from the
// start of the line; the projection layer converts to the 0-based UTF-16
// convention external consumers expect.
type LineCol struct {
	Line uint32
	Col  uint32
}

// LineCount reports the number of lines in the unit. Empty content counts
// as zero lines; content without a trailing newline still counts its last
// line.
func (u *Unit) LineCount() int {
	if u == nil || len(u.Content) == 0 {
		return 0
	}
	n := len(u.LineIdx)
	if int(last(u.LineIdx)) == len(u.Content)-1 {
		return n
	}
	return n + 1
}

// Line returns the 1-based line n without its trailing newline.
// Out-of-range lines return the empty string.
func (u *Unit) Line(n uint32) string {
	if u == nil || n == 0 || int(n) > u.LineCount() {
		return ""
	}
	start := u.LineStart(n)
	end := u.LineEnd(n)
	if start > end {
		return ""
	}
	return string(u.Content[start:end])
}

// LineStart returns the byte offset where the 1-based line n begins.
func (u *Unit) LineStart(n uint32) uint32 {
	if u == nil || n <= 1 {
		return 0
	}
	idx := n - 2
	if int(idx) < len(u.LineIdx) {
		return u.LineIdx[idx] + 1
	}
	return uint32(len(u.Content))
}

// LineEnd returns the byte offset just past the 1-based line n, excluding
// its newline.
func (u *Unit) LineEnd(n uint32) uint32 {
	if u == nil || n == 0 {
		return 0
	}
	if int(n)-1 < len(u.LineIdx) {
		return u.LineIdx[n-1]
	}
	return uint32(len(u.Content))
}

// Resolve maps a byte offset inside the unit to a 1-based LineCol.
func (u *Unit) Resolve(offset uint32) LineCol {
	return toLineCol(u.LineIdx, offset)
}

// Virtual reports whether the unit came from a caller-supplied buffer.
func (u *Unit) Virtual() bool {
	return u != nil && u.Flags&UnitVirtual != 0
}

func last(idx []uint32) uint32 {
	return idx[len(idx)-1]
}
