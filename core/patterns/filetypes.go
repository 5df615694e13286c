package patterns

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// textExtensions whitelists extensions that are always treated as text,
// skipping the content sniff.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true,
	".env": true, ".ini": true, ".cfg": true, ".conf": true,
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".sh": true, ".ps1": true, ".html": true, ".css": true, ".xml": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".go": true,
	".rs": true, ".php": true, ".rb": true,
}

// IsTextFile reports whether a path is eligible for pattern scanning: either
// its extension is whitelisted, or the first 1 KiB of content contains no NUL
// byte. Unreadable files are not eligible.
func IsTextFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if textExtensions[ext] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	chunk := make([]byte, 1024)
	n, err := f.Read(chunk)
	if err != nil && err != io.EOF {
		return false
	}
	return !bytes.ContainsRune(chunk[:n], 0)
}
