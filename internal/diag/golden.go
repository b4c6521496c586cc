package diag

import (
	"fmt"
	"sort"
	"strings"

	"failkit/internal/source"
)

// FormatGoldenIssues renders issues one per line in a stable order, for
// golden-file comparisons in tests:
//
//	SEVERITY FK001 path:line:col message
//
// Ordering: path, line, col, severity (errors first), code, message.
func FormatGoldenIssues(bag *Bag, units *source.UnitSet) string {
	type row struct {
		path string
		line uint32
		col  uint32
		sev  Severity
		code Code
		msg  string
	}
	rows := make([]row, 0, bag.Len())
	for _, it := range bag.Items() {
		path := "<unknown>"
		var pos source.LineCol
		if u := units.Get(it.Primary.Unit); u != nil {
			path = u.Path
			pos = u.Resolve(it.Primary.Start)
		}
		rows = append(rows, row{
			path: path,
			line: pos.Line,
			col:  pos.Col,
			sev:  it.Severity,
			code: it.Code,
			msg:  it.Message,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.path != b.path {
			return a.path < b.path
		}
		if a.line != b.line {
			return a.line < b.line
		}
		if a.col != b.col {
			return a.col < b.col
		}
		if a.sev != b.sev {
			return a.sev > b.sev
		}
		if a.code != b.code {
			return a.code < b.code
		}
		return a.msg < b.msg
	})

	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s %s %s:%d:%d %s\n", r.sev, r.code.ID(), r.path, r.line, r.col, r.msg)
	}
	return sb.String()
}
