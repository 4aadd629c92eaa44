package vfs

import (
	"strings"
)

// ValidatePath normalizes a virtual path and rejects anything that could
// escape the session scope. It is the sole gate against path traversal and
// runs on every public entry point that accepts a path.
//
// Normalization converts backslashes to forward slashes, collapses redundant
// separators and "." segments and ensures a leading "/". The result is
// idempotent: ValidatePath(ValidatePath(p)) == ValidatePath(p).
func ValidatePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		return "", &InvalidPathError{Path: path, Reason: "home directory references are not allowed"}
	}
	if isDriveLetterPath(path) {
		return "", &InvalidPathError{Path: path, Reason: "drive-letter paths are not allowed"}
	}

	normalized := strings.ReplaceAll(path, "\\", "/")

	segments := strings.Split(normalized, "/")
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch segment {
		case "", ".":
			continue
		case "..":
			return "", &InvalidPathError{Path: path, Reason: "parent directory traversal is not allowed"}
		}
		cleaned = append(cleaned, segment)
	}

	return "/" + strings.Join(cleaned, "/"), nil
}

func isDriveLetterPath(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
