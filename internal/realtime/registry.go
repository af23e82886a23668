// internal/realtime/registry.go
package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which connection currently represents which user. One
// connection per user: a reconnect replaces the previous mapping. It is
// injected into the router so a distributed registry can replace it later
// without touching the event handling.
type Registry interface {
	Register(userID uuid.UUID, connID string)
	// Unregister drops the mapping only when connID is still the one on
	// record; a stale disconnect arriving after a reconnect is a no-op.
	// The returned flag reports whether the user actually went off record.
	Unregister(connID string) (uuid.UUID, bool)
	Lookup(userID uuid.UUID) (string, bool)
	OnlineCount() int
}

type memoryRegistry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]string
	byConn map[string]uuid.UUID
}

func NewRegistry() Registry {
	return &memoryRegistry{
		byUser: make(map[uuid.UUID]string),
		byConn: make(map[string]uuid.UUID),
	}
}

func (r *memoryRegistry) Register(userID uuid.UUID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// the replaced connection stays in byConn so its late unregister can
	// still be recognized (and ignored)
	r.byUser[userID] = connID
	r.byConn[connID] = userID
}

func (r *memoryRegistry) Unregister(connID string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.byConn, connID)

	if r.byUser[userID] != connID {
		// a newer connection already took over
		return userID, false
	}
	delete(r.byUser, userID)
	return userID, true
}

func (r *memoryRegistry) Lookup(userID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

func (r *memoryRegistry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
