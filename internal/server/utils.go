package server

import (
	"errors"
	"path"
	"strings"
)

var errTraversal = errors.New("path traversal attempt detected")

// cleanRequestPath turns a URL path into a slash-rooted path inside the
// serving root. Any ".." segment is rejected outright rather than resolved,
// so a request can never name a file above the root.
func cleanRequestPath(rawPath string) (string, error) {
	if strings.Contains(rawPath, "\x00") {
		return "", errTraversal
	}

	// Treat backslashes as separators so "..\\" is caught on every platform
	normalized := strings.ReplaceAll(rawPath, "\\", "/")
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return "", errTraversal
		}
	}

	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return path.Clean(normalized), nil
}
