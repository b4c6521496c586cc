package diagfmt

import "failkit/internal/source"

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of issues.
type PrettyOpts struct {
	Color bool
	// Context is the number of source lines shown around the flagged line.
	// Zero shows just the flagged line; negative hides the snippet.
	Context  int8
	PathMode PathMode
	// Width caps snippet line width, 0 means unlimited.
	Width       uint8
	ShowNotes   bool
	ShowFixes   bool
	ShowPreview bool
}

// JSONOpts configures JSON output of issues.
type JSONOpts struct {
	IncludePositions bool // add line/col next to byte offsets
	PathMode         PathMode
	Max              int // output cap, does not touch the bag
	IncludeNotes     bool
	IncludeFixes     bool
	IncludePreviews  bool
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}

// renderPath formats a unit path according to mode. Unknown units render a
// placeholder so stale spans still produce output.
func renderPath(u *source.Unit, units *source.UnitSet, mode PathMode) string {
	if u == nil {
		return "<unknown>"
	}
	switch mode {
	case PathModeAbsolute:
		return u.FormatPath(source.PathAbsolute, "")
	case PathModeRelative:
		return u.FormatPath(source.PathRelative, units.BaseDir())
	case PathModeBasename:
		return u.FormatPath(source.PathBasename, "")
	default:
		return u.FormatPath(source.PathAuto, "")
	}
}
