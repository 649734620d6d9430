// Package session tracks the single currently active phone call.
package session

import "sync"

// Session identifies one live call and its media stream.
type Session struct {
	CallSID   string
	StreamSID string
}

// Registry is a mutex-guarded slot holding at most one active Session.
// The system handles one live call at a time; a newer start always wins.
type Registry struct {
	mu     sync.Mutex
	active *Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetActive unconditionally replaces the active session.
func (r *Registry) SetActive(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = &s
}

// ClearIf clears the slot only when the stored session's call id matches,
// so a stale stop for a superseded call cannot clear a newer session.
// It reports whether the slot was cleared.
func (r *Registry) ClearIf(callSID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.CallSID != callSID {
		return false
	}
	r.active = nil
	return true
}

// Active returns a snapshot of the active session, if any.
func (r *Registry) Active() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return Session{}, false
	}
	return *r.active, true
}
