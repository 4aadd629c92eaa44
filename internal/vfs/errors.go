package vfs

import (
	"errors"
	"fmt"
)

// Operation-level failures are sentinel values so callers can branch on them
// with errors.Is. They are expected outcomes of an agent tool loop, not bugs.
var (
	ErrNotFound  = errors.New("file not found")
	ErrExists    = errors.New("file already exists")
	ErrNoMatch   = errors.New("old_string not found in file")
	ErrAmbiguous = errors.New("old_string is not unique in file")
)

// InvalidPathError reports a path rejected by validation. Unlike the sentinel
// errors above it indicates a malicious or buggy caller and must never be
// swallowed as a normal operation result.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}
