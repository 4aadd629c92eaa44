package vfs

import (
	"fmt"
	"time"
)

// FileState is the serialized form of one file inside a Snapshot. Timestamps
// are RFC3339 UTC strings so the snapshot survives a trip through whatever
// encoding the external checkpointer uses.
type FileState struct {
	Content    []string `json:"content"`
	CreatedAt  string   `json:"created_at"`
	ModifiedAt string   `json:"modified_at"`
}

// Snapshot is a wholesale copy of the file mapping, suitable for durable
// checkpointing alongside the rest of the agent's state.
type Snapshot struct {
	Files     map[string]FileState `json:"files"`
	SessionID string               `json:"session_id,omitempty"`
}

// Export snapshots every record. The snapshot shares no state with the
// filesystem; mutating one does not affect the other.
func (fs *Filesystem) Export() *Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	files := make(map[string]FileState, len(fs.files))
	for p, rec := range fs.files {
		lines := make([]string, len(rec.lines))
		copy(lines, rec.lines)
		files[p] = FileState{
			Content:    lines,
			CreatedAt:  rec.createdAt.Format(time.RFC3339Nano),
			ModifiedAt: rec.modifiedAt.Format(time.RFC3339Nano),
		}
	}

	return &Snapshot{Files: files, SessionID: fs.sessionID}
}

// Restore discards all current records and rebuilds the mapping verbatim
// from the snapshot. A malformed entry fails the whole restore and leaves
// the filesystem empty: a checkpoint that cannot be decoded in full is not
// worth trusting in part.
func (fs *Filesystem) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("restore: snapshot is required")
	}

	files := make(map[string]*fileRecord, len(s.Files))
	for p, state := range s.Files {
		normalized, err := ValidatePath(p)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, state.CreatedAt)
		if err != nil {
			return fmt.Errorf("restore %s: parsing created_at: %w", normalized, err)
		}
		modifiedAt, err := time.Parse(time.RFC3339Nano, state.ModifiedAt)
		if err != nil {
			return fmt.Errorf("restore %s: parsing modified_at: %w", normalized, err)
		}
		lines := make([]string, len(state.Content))
		copy(lines, state.Content)
		if len(lines) == 0 {
			lines = []string{""}
		}
		files[normalized] = &fileRecord{
			lines:      lines,
			createdAt:  createdAt,
			modifiedAt: modifiedAt,
		}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.files = files
	if s.SessionID != "" {
		fs.sessionID = s.SessionID
	}

	return nil
}

// Reset drops every record. Session scoping stays intact.
func (fs *Filesystem) Reset() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files = make(map[string]*fileRecord)
}
