package lsp

import (
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"

	"failkit/internal/source"
)

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

// offsetForPositionInUnit converts a 0-based UTF-16 position into a byte
// offset. Positions past the end of a line clamp to the line end.
func offsetForPositionInUnit(u *source.Unit, pos position) uint32 {
	if u == nil || pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	content := u.Content
	if len(content) == 0 {
		return 0
	}
	lineCount := len(u.LineIdx) + 1
	contentLen := safeUint32(len(content))
	if pos.Line >= lineCount {
		return contentLen
	}
	var lineStart uint32
	if pos.Line == 0 {
		lineStart = 0
	} else {
		lineStart = u.LineIdx[pos.Line-1] + 1
	}
	lineEnd := contentLen
	if pos.Line < len(u.LineIdx) {
		lineEnd = u.LineIdx[pos.Line]
	}
	if lineStart > lineEnd {
		return lineEnd
	}
	units := 0
	off := lineStart
	for off < lineEnd {
		r, size := utf8.DecodeRune(content[off:lineEnd])
		if r == utf8.RuneError && size == 1 {
			size = 1
		}
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		off += safeUint32(size)
		if units == pos.Character {
			break
		}
	}
	return off
}

// positionForOffsetInUnit converts a byte offset into a 0-based UTF-16
// position.
func positionForOffsetInUnit(u *source.Unit, offset uint32) position {
	if u == nil {
		return position{}
	}
	contentLen := safeUint32(len(u.Content))
	if offset > contentLen {
		offset = contentLen
	}
	lineIdx := u.LineIdx
	idx := sort.Search(len(lineIdx), func(i int) bool { return lineIdx[i] >= offset })
	line := idx
	var lineStart uint32
	if idx == 0 {
		lineStart = 0
	} else {
		lineStart = lineIdx[idx-1] + 1
	}
	if lineStart > offset {
		lineStart = offset
	}
	units := 0
	for off := lineStart; off < offset; {
		r, size := utf8.DecodeRune(u.Content[off:offset])
		if r == utf8.RuneError && size == 1 {
			size = 1
		}
		if off+safeUint32(size) > offset {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += safeUint32(size)
	}
	return position{Line: line, Character: units}
}

func rangeForSpan(u *source.Unit, span source.Span) lspRange {
	if u == nil {
		return lspRange{}
	}
	return lspRange{
		Start: positionForOffsetInUnit(u, span.Start),
		End:   positionForOffsetInUnit(u, span.End),
	}
}
