package vfs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Grep output modes.
const (
	GrepFilesWithMatches = "files_with_matches"
	GrepCount            = "count"
	GrepContent          = "content"
)

const (
	grepNoMatches = "No matches found"

	// grepLineLength bounds a matched line in content mode output.
	grepLineLength = 200
)

// Grep searches every stored file under path for a literal substring (not a
// pattern). An optional glob filters which file paths are searched. The mode
// selects the output shape; an empty mode means files_with_matches.
func (fs *Filesystem) Grep(pattern, path, globPattern, mode string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("grep: pattern must not be empty")
	}
	if path == "" {
		path = "/"
	}
	base, err := ValidatePath(path)
	if err != nil {
		return "", err
	}
	if mode == "" {
		mode = GrepFilesWithMatches
	}
	switch mode {
	case GrepFilesWithMatches, GrepCount, GrepContent:
	default:
		return "", fmt.Errorf("grep: unknown output mode %q", mode)
	}
	// A relative glob is also tried joined with the base, same as Glob:
	// "*" alone never crosses "/", so "*.txt" would otherwise match no
	// absolute stored path at all.
	joinedGlob := globPattern
	if globPattern != "" {
		if !doublestar.ValidatePattern(globPattern) {
			return "", fmt.Errorf("grep: invalid glob pattern %q", globPattern)
		}
		joinedGlob = joinPattern(globPattern, base)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	type match struct {
		path string
		line int
		text string
	}

	var matches []match
	for _, p := range fs.sortedPaths() {
		if !strings.HasPrefix(p, base) {
			continue
		}
		if globPattern != "" {
			direct, _ := doublestar.Match(globPattern, p)
			relative, _ := doublestar.Match(joinedGlob, p)
			if !direct && !relative {
				continue
			}
		}
		for i, line := range fs.files[p].lines {
			if !strings.Contains(line, pattern) {
				continue
			}
			text, _ := truncateRunes(line, grepLineLength)
			matches = append(matches, match{path: p, line: i + 1, text: text})
		}
	}

	if len(matches) == 0 {
		return grepNoMatches, nil
	}

	var out []string
	switch mode {
	case GrepFilesWithMatches:
		seen := make(map[string]struct{})
		for _, m := range matches {
			if _, ok := seen[m.path]; ok {
				continue
			}
			seen[m.path] = struct{}{}
			out = append(out, m.path)
		}
	case GrepCount:
		counts := make(map[string]int)
		order := make([]string, 0)
		for _, m := range matches {
			if _, ok := counts[m.path]; !ok {
				order = append(order, m.path)
			}
			counts[m.path]++
		}
		for _, p := range order {
			out = append(out, p+": "+strconv.Itoa(counts[p]))
		}
	case GrepContent:
		for _, m := range matches {
			out = append(out, fmt.Sprintf("%s:%d:%s", m.path, m.line, m.text))
		}
	}

	return strings.Join(out, "\n"), nil
}

// Glob returns every stored path under path matching a shell glob pattern
// ("*", "?", "**"). A path matches when it matches pattern directly or
// path/pattern, so relative patterns like "*.txt" work against any base.
func (fs *Filesystem) Glob(pattern, path string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("glob: pattern must not be empty")
	}
	if path == "" {
		path = "/"
	}
	base, err := ValidatePath(path)
	if err != nil {
		return nil, err
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob: invalid pattern %q", pattern)
	}

	joined := joinPattern(pattern, base)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	var paths []string
	for _, p := range fs.sortedPaths() {
		if !strings.HasPrefix(p, base) {
			continue
		}
		direct, _ := doublestar.Match(pattern, p)
		relative, _ := doublestar.Match(joined, p)
		if direct || relative {
			paths = append(paths, p)
		}
	}

	return paths, nil
}

// joinPattern anchors a relative glob under a normalized base path. An
// absolute pattern is returned unchanged.
func joinPattern(pattern, base string) string {
	if strings.HasPrefix(pattern, "/") {
		return pattern
	}
	if base == "/" {
		return "/" + pattern
	}
	return base + "/" + pattern
}
