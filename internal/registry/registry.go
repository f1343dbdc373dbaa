// Package registry tracks which user is reachable on which live connection.
package registry

import "sync"

// Conn is a live connection handle. Send must never block; implementations
// drop the payload when the peer cannot keep up.
type Conn interface {
	Send(v any)
}

// Registry is the process-wide table mapping a user ID to the single
// connection currently representing that user. A newer registration
// overwrites an older one, so at most one handle is live per user.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register binds userID to c, replacing any previous handle for that user.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = c
}

// UnregisterConn removes every entry whose handle is c. The handle is the
// removal key because the user ID arrives after the physical connection
// opens; a connection that closes before registering matches nothing and
// that is fine.
func (r *Registry) UnregisterConn(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, conn := range r.conns {
		if conn == c {
			delete(r.conns, userID)
		}
	}
}

// Lookup returns the current handle for userID. Absence means the user is
// not reachable right now; it is not an error.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// UserOf returns the user ID currently registered on handle c, or ""
// when c never registered or was overwritten by a newer connection.
func (r *Registry) UserOf(c Conn) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for userID, conn := range r.conns {
		if conn == c {
			return userID
		}
	}
	return ""
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
