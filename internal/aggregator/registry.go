package aggregator

import (
	"slices"
	"sort"
	"sync"
)

// ServerRegistry maps server names to their current connection and keeps the
// owner index used for per-user cleanup.
//
// The registry maintains a thread-safe mapping of server names to connections.
// Its critical sections never perform I/O: spawning, handshakes and closes all
// happen in the ConnectionManager outside the lock. When both the registry
// lock and a connection lock are needed, the registry lock is taken first.
//
// Key responsibilities:
//   - One entry per server name
//   - Identity-checked updates so a stale connect cannot replace a newer entry
//   - Tracking which user owns which server names
type ServerRegistry struct {
	mu      sync.RWMutex
	servers map[string]*Connection         // Map of server name to its current connection
	owners  map[string]map[string]struct{} // Map of user ID to the server names it owns
}

// NewServerRegistry creates an empty registry.
func NewServerRegistry() *ServerRegistry {
	return &ServerRegistry{
		servers: make(map[string]*Connection),
		owners:  make(map[string]map[string]struct{}),
	}
}

// Get returns the connection registered under name, or nil.
func (r *ServerRegistry) Get(name string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.servers[name]
}

// put registers conn under its name, replacing any previous entry, and
// records its owner.
func (r *ServerRegistry) put(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[conn.Name()] = conn
	if conn.OwnerUserID != "" {
		r.trackLocked(conn.OwnerUserID, conn.Name())
	}
}

// remove deletes the entry for name and forgets every owner of it.
// It returns the removed connection, or nil if there was none.
func (r *ServerRegistry) remove(name string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.servers[name]
	if !ok {
		return nil
	}
	delete(r.servers, name)
	r.untrackAllLocked(name)
	return conn
}

// removeIf deletes the entry for conn's name only if it is still conn.
func (r *ServerRegistry) removeIf(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.servers[conn.Name()] != conn {
		return false
	}
	delete(r.servers, conn.Name())
	return true
}

// promote marks conn ready if it is still the registered entry for its name.
// A connect that lost a race with a disconnect gets false and must close its
// own client.
func (r *ServerRegistry) promote(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.servers[conn.Name()] != conn {
		return false
	}
	return conn.promote()
}

// Snapshot returns all connections sorted by name.
func (r *ServerRegistry) Snapshot() []*Connection {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.servers))
	for _, conn := range r.servers {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].Name() < conns[j].Name()
	})
	return conns
}

// Len returns the number of registered entries.
func (r *ServerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}

// Track records that userID owns the server called name.
func (r *ServerRegistry) Track(userID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackLocked(userID, name)
}

// Untrack forgets that userID owns name.
func (r *ServerRegistry) Untrack(userID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if names, ok := r.owners[userID]; ok {
		delete(names, name)
		if len(names) == 0 {
			delete(r.owners, userID)
		}
	}
}

// Owned returns the server names tracked for userID, sorted.
func (r *ServerRegistry) Owned(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.owners[userID]))
	for name := range r.owners[userID] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Owns reports whether userID owns name.
func (r *ServerRegistry) Owns(userID, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owners[userID][name]
	return ok
}

func (r *ServerRegistry) trackLocked(userID, name string) {
	names, ok := r.owners[userID]
	if !ok {
		names = make(map[string]struct{})
		r.owners[userID] = names
	}
	names[name] = struct{}{}
}

func (r *ServerRegistry) untrackAllLocked(name string) {
	for userID, names := range r.owners {
		delete(names, name)
		if len(names) == 0 {
			delete(r.owners, userID)
		}
	}
}
