// Package session scopes virtual filesystems to caller-supplied thread
// identifiers. The registry replaces a process-wide singleton: the hosting
// application owns it explicitly and injects it where needed.
package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/scratchfs/internal/vfs"
)

// Registry owns one filesystem per session. Instances are created lazily on
// first access and live until Reset; expiry is the hosting application's
// concern.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*vfs.Filesystem
	defaultID string
	logger    *zap.Logger
}

// NewRegistry creates an empty registry. Requests without a thread id share
// one default session with a generated identifier.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		instances: make(map[string]*vfs.Filesystem),
		defaultID: uuid.NewString(),
		logger:    logger,
	}
}

// Get returns the filesystem for a thread id, creating it on first access.
// An empty id resolves to the registry's default session.
func (r *Registry) Get(threadID string) *vfs.Filesystem {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := threadID
	if id == "" {
		id = r.defaultID
	}

	fs, ok := r.instances[id]
	if !ok {
		fs = vfs.New(id)
		r.instances[id] = fs
		r.logger.Debug("created session filesystem", zap.String("session_id", id))
	}

	return fs
}

// Reset tears down a session's filesystem. The next Get for the same id
// starts from an empty mapping.
func (r *Registry) Reset(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := threadID
	if id == "" {
		id = r.defaultID
	}

	if _, ok := r.instances[id]; ok {
		delete(r.instances, id)
		r.logger.Debug("reset session filesystem", zap.String("session_id", id))
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
