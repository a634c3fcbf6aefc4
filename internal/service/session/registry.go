package session

import (
	"errors"
	"sort"
	"sync"
)

var ErrAlreadyConnected = errors.New("identity already connected")

// Registry maps identity to live session. It is the only structure written by the accept
// path, the connection handlers and the sweeper; every mutation holds mu.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Insert registers sess; an identity may hold one live session at a time.
func (r *Registry) Insert(sess *Session) error {
	if sess == nil || sess.ID() == "" {
		return errors.New("session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID()]; exists {
		return ErrAlreadyConnected
	}
	r.sessions[sess.ID()] = sess
	return nil
}

// Remove deletes the session for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return sess, ok
}

// RemoveSession deletes sess only if it is still the registered session for its identity,
// so a late eviction never drops a newer connection of the same user.
func (r *Registry) RemoveSession(sess *Session) bool {
	if sess == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[sess.ID()]; ok && cur == sess {
		delete(r.sessions, sess.ID())
		return true
	}
	return false
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// ByName finds a live session by display name.
func (r *Registry) ByName(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.sessions {
		if sess.Name() == name {
			return sess, true
		}
	}
	return nil, false
}

func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Snapshot copies the current sessions, sorted by identity. Callers iterate the copy
// without holding the registry lock.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll empties the registry and closes every connection. It returns the removed sessions.
func (r *Registry) CloseAll() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		out = append(out, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range out {
		_ = sess.Close()
	}
	return out
}
