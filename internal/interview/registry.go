package interview

import (
	"errors"
	"sync"
)

// ErrAttemptBusy is returned when another session already owns the attempt.
var ErrAttemptBusy = errors.New("interview attempt already has an active session")

// Registry tracks which attempts have a live session in this process.
type Registry struct {
	mu     sync.Mutex
	active map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]string)}
}

// Acquire claims attemptID for sessionID.
func (r *Registry) Acquire(attemptID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[attemptID]; ok {
		return ErrAttemptBusy
	}
	r.active[attemptID] = sessionID
	return nil
}

// Release drops the claim if sessionID still holds it.
func (r *Registry) Release(attemptID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[attemptID] == sessionID {
		delete(r.active, attemptID)
	}
}

// Active returns the number of claimed attempts.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
