package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/scratchfs/internal/offload"
	"github.com/spigell/scratchfs/internal/vfs"
)

// requestBodyLimit bounds request bodies. Offloaded tool results can be
// large, so the cap is generous.
const requestBodyLimit = 64 << 20

type writeRequest struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
	ThreadID string `json:"thread_id,omitempty"`
}

type editRequest struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
	ThreadID   string `json:"thread_id,omitempty"`
}

type grepRequest struct {
	Pattern     string `json:"pattern"`
	Path        string `json:"path,omitempty"`
	GlobPattern string `json:"glob_pattern,omitempty"`
	OutputMode  string `json:"output_mode,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
}

type restoreRequest struct {
	ThreadID string        `json:"thread_id,omitempty"`
	State    *vfs.Snapshot `json:"state"`
}

func (s *Server) handleLs(w http.ResponseWriter, r *http.Request) {
	fs := s.registry.Get(r.URL.Query().Get("thread_id"))

	entries, err := fs.Ls(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fs := s.registry.Get(q.Get("thread_id"))

	content, err := fs.Read(q.Get("file_path"), intParam(q.Get("offset"), 0), intParam(q.Get("limit"), 0))
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	fs := s.registry.Get(req.ThreadID)

	path, err := fs.Write(req.FilePath, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	fs := s.registry.Get(req.ThreadID)

	result, err := fs.Edit(req.FilePath, req.OldString, req.NewString, req.ReplaceAll)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fs := s.registry.Get(q.Get("thread_id"))

	path, err := fs.Rm(q.Get("file_path"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleGrep(w http.ResponseWriter, r *http.Request) {
	var req grepRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	fs := s.registry.Get(req.ThreadID)

	result, err := fs.Grep(req.Pattern, req.Path, req.GlobPattern, req.OutputMode)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleGlob(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fs := s.registry.Get(q.Get("thread_id"))

	paths, err := fs.Glob(q.Get("pattern"), q.Get("path"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if paths == nil {
		paths = []string{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

// handleOffload takes the raw tool result as the request body: offload
// candidates are by definition too large to sit comfortably in a query
// string or a JSON field.
func (s *Server) handleOffload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	toolCallID := q.Get("tool_call_id")
	if toolCallID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tool_call_id is required"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, requestBodyLimit))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("reading request body: %s", err)})
		return
	}

	fs := s.registry.Get(q.Get("thread_id"))
	content, offloaded := s.policy.ProcessToolResult(fs, toolCallID, string(body))

	s.writeJSON(w, http.StatusOK, map[string]any{"content": content, "offloaded": offloaded})
}

func (s *Server) handleGetOffloaded(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fs := s.registry.Get(q.Get("thread_id"))

	content, err := s.policy.Retrieve(fs, r.PathValue("tool_call_id"), intParam(q.Get("offset"), 0), intParam(q.Get("limit"), 0))
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"content": content, "path": offload.ResultPath(r.PathValue("tool_call_id"))})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	fs := s.registry.Get(r.URL.Query().Get("thread_id"))

	s.writeJSON(w, http.StatusOK, fs.Export())
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	fs := s.registry.Get(req.ThreadID)

	if err := fs.Restore(req.State); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": fs.SessionID()})
}

// writeError maps the two error channels onto HTTP: path validation failures
// are 400s, every operation-level failure is a 200 whose body carries an
// error field the agent is expected to branch on. Only the read endpoints
// treat a missing file as a 404; see writeReadError.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var invalidPath *vfs.InvalidPathError
	if errors.As(err, &invalidPath) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"error": err.Error()})
}

// writeReadError is writeError with a 404 for a missing file. Used by the
// read and offloaded endpoints only: for them the path is the resource being
// fetched, while for rm and edit a missing file is a recoverable outcome the
// agent branches on.
func (s *Server) writeReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, vfs.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	s.writeError(w, err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response failed", zap.Error(err))
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, requestBodyLimit)).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("decoding request body: %s", err)})
		return false
	}
	return true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
