package server

import (
	"mime"
	"path/filepath"
	"strings"
)

const fallbackContentType = "application/octet-stream"

// MIMETable resolves a file name to a Content-Type. Overrides win over the
// platform table. The zero value only consults the platform table.
type MIMETable struct {
	overrides map[string]string
}

// NewMIMETable copies overrides so later changes by the caller are not observed.
func NewMIMETable(overrides map[string]string) MIMETable {
	m := make(map[string]string, len(overrides))
	for ext, ctype := range overrides {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m[ext] = ctype
	}
	return MIMETable{overrides: m}
}

// DefaultMIMETable maps .wasm to application/wasm so browsers accept
// streaming compilation of served modules.
func DefaultMIMETable() MIMETable {
	return NewMIMETable(map[string]string{
		".wasm": "application/wasm",
	})
}

// Lookup never returns an empty string.
func (t MIMETable) Lookup(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return fallbackContentType
	}
	if ctype, ok := t.overrides[ext]; ok {
		return ctype
	}
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype
	}
	return fallbackContentType
}
