package identity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks the outstanding request of each kind. Registering a kind
// again supersedes the previous request; a late response for it no longer
// matches anything.
type Registry struct {
	mu    sync.Mutex
	slots map[Kind]PendingRequest
	newID func() string
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		slots: make(map[Kind]PendingRequest),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Register records a new request and returns its fresh correlation id.
func (r *Registry) Register(kind Kind, reqContext string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for r.pendingLocked(id) {
		id = r.newID()
	}
	r.slots[kind] = PendingRequest{
		CorrelationID: id,
		Kind:          kind,
		CreatedAt:     r.now(),
		Context:       reqContext,
	}
	return id
}

// Consume removes and returns the request with the given id. The second
// call for the same id reports false.
func (r *Registry) Consume(id string) (PendingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		return PendingRequest{}, false
	}
	for kind, req := range r.slots {
		if req.CorrelationID == id {
			delete(r.slots, kind)
			return req, true
		}
	}
	return PendingRequest{}, false
}

// Matches reports whether id belongs to an outstanding request.
func (r *Registry) Matches(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return id != "" && r.pendingLocked(id)
}

// Pending returns the outstanding request of a kind.
func (r *Registry) Pending(kind Kind) (PendingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.slots[kind]
	return req, ok
}

// Abandon drops a request its caller gave up on. It reports whether the id
// was still outstanding.
func (r *Registry) Abandon(id string) bool {
	_, ok := r.Consume(id)
	return ok
}

// Len returns the number of outstanding requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func (r *Registry) pendingLocked(id string) bool {
	for _, req := range r.slots {
		if req.CorrelationID == id {
			return true
		}
	}
	return false
}
