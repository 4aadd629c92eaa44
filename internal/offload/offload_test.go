package offload

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spigell/scratchfs/internal/vfs"
)

func TestSanitizeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "already safe",
			input:  "call_abc-123",
			expect: "call_abc-123",
		},
		{
			name:   "slashes and spaces",
			input:  "tool/call 1",
			expect: "tool_call_1",
		},
		{
			name:   "punctuation",
			input:  "a.b:c!d",
			expect: "a_b_c_d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeID(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestProcessToolResultThresholdBoundary(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(10, 4, nil)
	if policy.Threshold() != 40 {
		t.Fatalf("expected a threshold of 40 chars, got %d", policy.Threshold())
	}

	fs := vfs.New("test")

	atLimit := strings.Repeat("a", 40)
	processed, offloaded := policy.ProcessToolResult(fs, "call-1", atLimit)
	if offloaded {
		t.Fatal("content of exactly the threshold length must pass through")
	}
	if processed != atLimit {
		t.Fatal("pass-through content must be unchanged")
	}
	if fs.Len() != 0 {
		t.Fatalf("no file should be created for small content, got %d", fs.Len())
	}

	overLimit := strings.Repeat("a", 41)
	processed, offloaded = policy.ProcessToolResult(fs, "call-1", overLimit)
	if !offloaded {
		t.Fatal("content past the threshold must be offloaded")
	}
	if !strings.Contains(processed, ResultDir+"/call-1") {
		t.Fatalf("the preview must reference the synthetic path, got %q", processed)
	}

	// The stored file holds the original content in full.
	snapshot := fs.Export()
	state, ok := snapshot.Files[ResultDir+"/call-1"]
	if !ok {
		t.Fatalf("expected a file at %s/call-1", ResultDir)
	}
	if strings.Join(state.Content, "\n") != overLimit {
		t.Fatal("the offloaded file must hold the original content verbatim")
	}
}

func TestProcessToolResultPreview(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(10, 4, nil)
	fs := vfs.New("test")

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d padded out to make it long enough", i+1)
	}
	content := strings.Join(lines, "\n")

	processed, offloaded := policy.ProcessToolResult(fs, "big", content)
	if !offloaded {
		t.Fatal("expected the content to be offloaded")
	}

	if !strings.Contains(processed, "     1\tline 1") {
		t.Fatalf("expected the first numbered line in the preview, got %q", processed)
	}
	if !strings.Contains(processed, "    10\tline 10") {
		t.Fatalf("expected the tenth numbered line in the preview, got %q", processed)
	}
	if strings.Contains(processed, "line 11") {
		t.Fatal("the preview must stop after 10 lines")
	}
}

func TestProcessToolResultCollisionFallsBackToTruncation(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(10, 4, nil)
	fs := vfs.New("test")

	content := strings.Repeat("b", 100)
	if _, offloaded := policy.ProcessToolResult(fs, "dup id", content); !offloaded {
		t.Fatal("first offload must succeed")
	}

	// "dup id" and "dup.id" sanitize to the same filename.
	second := strings.Repeat("c", 100)
	processed, offloaded := policy.ProcessToolResult(fs, "dup.id", second)
	if offloaded {
		t.Fatal("a colliding id must fall back to truncation")
	}
	if !strings.HasPrefix(processed, strings.Repeat("c", 40)) {
		t.Fatalf("expected the content cut at the threshold, got %q", processed)
	}
	if !strings.HasSuffix(processed, truncationMarker) {
		t.Fatalf("expected the truncation marker, got %q", processed)
	}

	// The first payload is untouched.
	state := fs.Export().Files[ResultDir+"/dup_id"]
	if strings.Join(state.Content, "\n") != content {
		t.Fatal("the colliding offload must not overwrite the first payload")
	}
}

func TestRetrieve(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(10, 4, nil)
	fs := vfs.New("test")

	content := "first\nsecond\n" + strings.Repeat("x", 50)
	if _, offloaded := policy.ProcessToolResult(fs, "tool/call 1", content); !offloaded {
		t.Fatal("expected the content to be offloaded")
	}

	page, err := policy.Retrieve(fs, "tool/call 1", 1, 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if page != "     2\tsecond" {
		t.Fatalf("expected the second line, got %q", page)
	}

	if _, err := policy.Retrieve(fs, "never-offloaded", 0, 0); !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(0, 0, nil)
	if policy.Threshold() != DefaultTokenLimit*DefaultCharsPerToken {
		t.Fatalf("expected the default threshold, got %d", policy.Threshold())
	}
}
