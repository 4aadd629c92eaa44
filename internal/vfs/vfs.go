// Package vfs implements an in-memory, path-addressed virtual filesystem
// giving an LLM agent Linux-like file primitives (ls, read, write, edit, rm,
// grep, glob). Files live for the duration of a session; directories are
// derived from path prefixes and never stored.
package vfs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultReadLimit is the number of lines Read returns when the caller
	// does not ask for a specific page size.
	DefaultReadLimit = 500

	// maxLineLength bounds a single rendered line in Read output.
	maxLineLength = 2000

	emptyFileMessage = "System reminder: file exists but has empty contents"
)

// fileRecord holds one virtual file. Content is kept as lines; the file is
// always recomposed by joining with "\n", so an empty file is a single empty
// line.
type fileRecord struct {
	lines      []string
	createdAt  time.Time
	modifiedAt time.Time
}

// Entry is one result row of Ls. Directory entries are synthetic: they carry
// a trailing slash, no size and no timestamp.
type Entry struct {
	Path       string    `json:"path"`
	IsDir      bool      `json:"is_dir"`
	Size       int       `json:"size,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`
}

// EditResult reports a completed Edit.
type EditResult struct {
	Path        string `json:"path"`
	Occurrences int    `json:"occurrences"`
}

// Filesystem is a single session's private file mapping. All operations are
// guarded by one mutex: the surrounding HTTP layer may deliver concurrent
// requests for the same session and none of the algorithms below are safe
// under concurrent mutation.
type Filesystem struct {
	mu        sync.Mutex
	files     map[string]*fileRecord
	sessionID string

	// now is swappable in tests.
	now func() time.Time
}

// New creates an empty filesystem owned by the given session.
func New(sessionID string) *Filesystem {
	return &Filesystem{
		files:     make(map[string]*fileRecord),
		sessionID: sessionID,
		now:       time.Now,
	}
}

// SessionID returns the session identifier this filesystem is scoped to.
func (fs *Filesystem) SessionID() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.sessionID
}

// Len returns the number of stored files.
func (fs *Filesystem) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.files)
}

// Ls lists the immediate children of path. Subdirectories are derived from
// stored paths sharing the prefix; there is no entry for path itself.
func (fs *Filesystem) Ls(path string) ([]Entry, error) {
	if path == "" {
		path = "/"
	}
	prefix, err := ValidatePath(path)
	if err != nil {
		return nil, err
	}
	if prefix != "/" {
		prefix += "/"
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dirs := make(map[string]struct{})
	entries := make([]Entry, 0)
	for p, rec := range fs.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			dirs[prefix+rest[:i]+"/"] = struct{}{}
			continue
		}
		entries = append(entries, Entry{
			Path:       p,
			Size:       len(strings.Join(rec.lines, "\n")),
			ModifiedAt: rec.modifiedAt,
		})
	}

	for dir := range dirs {
		entries = append(entries, Entry{Path: dir, IsDir: true})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

// Read returns a page of the file rendered cat -n style: every line carries a
// 1-indexed, fixed-width line number so the consumer can cite exact lines
// when requesting edits. Lines longer than 2000 characters are truncated with
// an ellipsis. limit <= 0 selects DefaultReadLimit.
func (fs *Filesystem) Read(path string, offset, limit int) (string, error) {
	normalized, err := ValidatePath(path)
	if err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.files[normalized]
	if !ok {
		return "", fmt.Errorf("read %s: %w", normalized, ErrNotFound)
	}

	if len(rec.lines) == 0 || (len(rec.lines) == 1 && rec.lines[0] == "") {
		return emptyFileMessage, nil
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if offset >= len(rec.lines) {
		return "", fmt.Errorf("read %s: line offset %d exceeds file length (%d lines)", normalized, offset, len(rec.lines))
	}

	end := offset + limit
	if end > len(rec.lines) {
		end = len(rec.lines)
	}

	return FormatLines(rec.lines[offset:end], offset), nil
}

// FormatLines renders lines with 1-indexed line numbers starting at
// offset+1. The offload preview reuses this so paginating through an
// offloaded result and reading it directly produce identical output.
func FormatLines(lines []string, offset int) string {
	var b strings.Builder
	for i, line := range lines {
		if cut, ok := truncateRunes(line, maxLineLength); ok {
			line = cut + "..."
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", offset+i+1, line)
	}
	return b.String()
}

// truncateRunes cuts s after limit runes, never inside a multi-byte
// character. The rune conversion runs only when the byte length already
// exceeds the limit.
func truncateRunes(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}

// Write creates a new file and returns its normalized path. Writing to an
// existing path fails with ErrExists: callers must Edit or Rm first.
func (fs *Filesystem) Write(path, content string) (string, error) {
	normalized, err := ValidatePath(path)
	if err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.files[normalized]; exists {
		return "", fmt.Errorf("write %s: %w", normalized, ErrExists)
	}

	now := fs.now().UTC()
	fs.files[normalized] = &fileRecord{
		lines:      strings.Split(content, "\n"),
		createdAt:  now,
		modifiedAt: now,
	}

	return normalized, nil
}

// Edit replaces a literal substring in the file. With replaceAll unset the
// old string must occur exactly once; multiple occurrences fail with
// ErrAmbiguous so the caller either supplies more context or opts into a bulk
// replace explicitly. The returned result reports how many occurrences were
// replaced.
func (fs *Filesystem) Edit(path, oldString, newString string, replaceAll bool) (EditResult, error) {
	normalized, err := ValidatePath(path)
	if err != nil {
		return EditResult{}, err
	}
	if oldString == "" {
		return EditResult{}, fmt.Errorf("edit %s: old_string must not be empty", normalized)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	rec, ok := fs.files[normalized]
	if !ok {
		return EditResult{}, fmt.Errorf("edit %s: %w", normalized, ErrNotFound)
	}

	content := strings.Join(rec.lines, "\n")
	count := strings.Count(content, oldString)
	if count == 0 {
		return EditResult{}, fmt.Errorf("edit %s: %w", normalized, ErrNoMatch)
	}

	occurrences := count
	if replaceAll {
		content = strings.ReplaceAll(content, oldString, newString)
	} else {
		if count > 1 {
			return EditResult{}, fmt.Errorf("edit %s: found %d occurrences: %w", normalized, count, ErrAmbiguous)
		}
		content = strings.Replace(content, oldString, newString, 1)
		occurrences = 1
	}

	rec.lines = strings.Split(content, "\n")
	rec.modifiedAt = fs.now().UTC()

	return EditResult{Path: normalized, Occurrences: occurrences}, nil
}

// Rm deletes a file and returns its normalized path. Synthetic directories
// disappear on their own once the last file beneath them is removed.
func (fs *Filesystem) Rm(path string) (string, error) {
	normalized, err := ValidatePath(path)
	if err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.files[normalized]; !ok {
		return "", fmt.Errorf("rm %s: %w", normalized, ErrNotFound)
	}
	delete(fs.files, normalized)

	return normalized, nil
}

// sortedPaths returns every stored path in lexicographic order. Callers must
// hold fs.mu.
func (fs *Filesystem) sortedPaths() []string {
	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
