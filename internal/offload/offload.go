// Package offload bounds the size of tool results fed back into an LLM
// context. Oversized content is evicted into the session's virtual
// filesystem and replaced by a short preview plus a file reference the agent
// can page through on demand.
package offload

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/scratchfs/internal/logger"
	"github.com/spigell/scratchfs/internal/vfs"
)

const (
	// DefaultTokenLimit is the approximate token budget a tool result may
	// occupy before it is offloaded.
	DefaultTokenLimit = 20000

	// DefaultCharsPerToken is the character-per-token proxy used to turn the
	// token budget into a byte threshold.
	DefaultCharsPerToken = 4

	// ResultDir is where offloaded tool results live inside the filesystem.
	ResultDir = "/large_tool_results"

	previewLines     = 10
	truncationMarker = "\n\n[result truncated: exceeded the size limit]"
)

const offloadTemplate = `Tool result was too large and has been saved to %s.

First %d lines:

%s

Use the read operation on %s with increasing offset values to page through the full result.`

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Policy decides when a tool result is too large to keep inline.
type Policy struct {
	TokenLimit    int
	CharsPerToken int

	logger *zap.Logger
}

// NewPolicy creates a policy. Non-positive limits fall back to the defaults;
// a nil logger is replaced with a no-op one.
func NewPolicy(tokenLimit, charsPerToken int, logger *zap.Logger) *Policy {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		TokenLimit:    tokenLimit,
		CharsPerToken: charsPerToken,
		logger:        logger,
	}
}

// Threshold returns the character length above which content is offloaded.
// Content of exactly this length still passes through inline.
func (p *Policy) Threshold() int {
	return p.TokenLimit * p.CharsPerToken
}

// SanitizeID rewrites a tool-call identifier into a safe filename segment:
// every character outside [A-Za-z0-9_-] becomes an underscore. Distinct ids
// can collide after sanitization; the write conflict below handles that.
func SanitizeID(id string) string {
	return unsafeFilenameChars.ReplaceAllString(id, "_")
}

// ResultPath returns the synthetic path an offloaded result is stored at.
func ResultPath(id string) string {
	return ResultDir + "/" + SanitizeID(id)
}

// ProcessToolResult passes small content through unchanged. Large content is
// written to the filesystem and replaced by a preview of its first lines plus
// the file reference. When the write fails (two ids sanitizing to the same
// filename) the content is hard-truncated instead, so the caller always gets
// a usable result.
func (p *Policy) ProcessToolResult(fs *vfs.Filesystem, id, content string) (string, bool) {
	threshold := p.Threshold()
	if len(content) <= threshold {
		return content, false
	}

	path := ResultPath(id)
	if _, err := fs.Write(path, content); err != nil {
		p.logger.Warn("offloading a tool result failed, truncating instead",
			zap.String("tool_call_id", id),
			zap.String("path", path),
			zap.Error(err),
		)
		return content[:threshold] + truncationMarker, false
	}

	lines := strings.Split(content, "\n")
	shown := len(lines)
	if shown > previewLines {
		shown = previewLines
	}
	preview := vfs.FormatLines(lines[:shown], 0)

	p.logger.Debug("offloaded a large tool result",
		zap.String("tool_call_id", id),
		zap.String("path", path),
		zap.Int("size", len(content)),
		zap.String("head", logger.Truncate(content, 120)),
	)

	return fmt.Sprintf(offloadTemplate, path, shown, preview, path), true
}

// Retrieve pages through a previously offloaded result by recomputing its
// synthetic path and delegating to Read.
func (p *Policy) Retrieve(fs *vfs.Filesystem, id string, offset, limit int) (string, error) {
	return fs.Read(ResultPath(id), offset, limit)
}
