package runtime

import (
	"chat-relay/contract"
	"sort"
	"sync"
)

// Registry is the single source of truth for "is X online, and through which connection".
// It keeps both directions of the identity <-> connection mapping under one lock,
// so a handle swap is never observed half done.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]contract.Connection // map identity -> live connection
	byConn     map[contract.Connection]string // map connection -> identity
}

func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]contract.Connection),
		byConn:     make(map[contract.Connection]string),
	}
}

// Register binds conn to identityID, replacing any previous handle.
// fresh is true only when the identity was absent, i.e. on an OFFLINE -> ONLINE transition.
// The superseded handle is returned but never closed here, it is expected to disconnect on its own.
func (r *Registry) Register(identityID string, conn contract.Connection) (bool, contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.byIdentity[identityID]
	if exists && previous != conn {
		delete(r.byConn, previous)
	}
	r.byIdentity[identityID] = conn
	r.byConn[conn] = identityID
	return !exists, previous
}

func (r *Registry) Resolve(identityID string) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byIdentity[identityID]
	return conn, ok
}

// Unregister removes the entry owned by conn, and only if conn is still the current
// handle for that identity. A late disconnect of a superseded handle is a no-op.
func (r *Registry) Unregister(conn contract.Connection) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identityID, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	if r.byIdentity[identityID] != conn {
		return "", false
	}
	delete(r.byIdentity, identityID)
	return identityID, true
}

func (r *Registry) IdentityOf(conn contract.Connection) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identityID, ok := r.byConn[conn]
	return identityID, ok
}

// Online returns a sorted snapshot of the registered identities.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byIdentity))
	for id := range r.byIdentity {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Connections returns a snapshot copy, safe to iterate while handlers unregister.
func (r *Registry) Connections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]contract.Connection, 0, len(r.byIdentity))
	for _, conn := range r.byIdentity {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}
