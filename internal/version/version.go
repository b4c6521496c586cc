package version

import "github.com/fatih/color"

// Version is the semantic version the CLI reports. The digits pick up
// terminal colors at startup when stdout is a terminal; renderers that
// need the plain string strip the escapes.
var Version = paint("0", color.FgYellow) + "." + paint("1", color.FgGreen) + "." + paint("0", color.FgBlue) + "-dev"

// Release builds stamp these with -ldflags "-X failkit/internal/version.GitCommit=...".
var (
	// GitCommit is the hash of the commit the binary was built from.
	GitCommit = ""

	// GitMessage is the subject line of that commit.
	GitMessage = ""

	// BuildDate is the build timestamp in ISO-8601.
	BuildDate = ""
)

func paint(s string, attr color.Attribute) string {
	return color.New(attr, color.Bold).Sprint(s)
}
