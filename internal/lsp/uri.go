package lsp

import (
	"net/url"
	"path/filepath"
)

// uriToPath converts a file URI to an absolute filesystem path. Bare paths
// pass through unchanged; URIs with a scheme other than file return "".
func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	path := parsed.Path
	switch parsed.Scheme {
	case "file":
	case "":
		path = uri
	default:
		return ""
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// pathToURI converts a filesystem path to a file URI. The path is made
// absolute first so the result round-trips through uriToPath.
func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
