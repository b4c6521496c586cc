package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Normalize prepares raw file bytes for indexing: UTF-16 content (detected
// by BOM) is transcoded to UTF-8, a UTF-8 BOM is stripped, and CRLF line
// endings are rewritten to LF. The returned flags record what happened.
func Normalize(raw []byte) ([]byte, UnitFlags, error) {
	var flags UnitFlags
	content := raw

	switch {
	case len(content) >= 2 && content[0] == 0xFF && content[1] == 0xFE,
		len(content) >= 2 && content[0] == 0xFE && content[1] == 0xFF:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(dec, content)
		if err != nil {
			return nil, 0, fmt.Errorf("utf-16 decode: %w", err)
		}
		content = decoded
		flags |= UnitDecodedUTF16 | UnitHadBOM
	case bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}):
		content = content[3:]
		flags |= UnitHadBOM
	}

	if bytes.Contains(content, []byte("\r\n")) {
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
		flags |= UnitNormalizedCRLF
	}
	return content, flags, nil
}

// buildLineIndex returns the offsets of every '\n' in content.
func buildLineIndex(content []byte) []uint32 {
	idx := make([]uint32, 0, 64)
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, uint32(i))
		}
	}
	return idx
}

// toLineCol resolves a byte offset against a line index. Both line and
// column are 1-based; the column counts bytes from the line start.
func toLineCol(lineIdx []uint32, offset uint32) LineCol {
	line := sort.Search(len(lineIdx), func(i int) bool {
		return lineIdx[i] >= offset
	})
	var lineStart uint32
	if line > 0 {
		lineStart = lineIdx[line-1] + 1
	}
	return LineCol{
		Line: uint32(line) + 1,
		Col:  offset - lineStart + 1,
	}
}

// normalizePath cleans a path and forces forward slashes so units are keyed
// consistently across platforms.
func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(path))
}
