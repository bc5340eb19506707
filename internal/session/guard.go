package session

import (
	"sync"
	"time"
)

// ActiveGuard enforces the single-active-session rule in-process: each
// learner has exactly one mutable current-session slot, acquired
// atomically at start and released on any terminal transition.
type ActiveGuard struct {
	mu    sync.Mutex
	slots map[string]slot // learner id -> active session
}

type slot struct {
	sessionID string
	kind      Kind
	startedAt time.Time
}

// NewActiveGuard creates an empty guard.
func NewActiveGuard() *ActiveGuard {
	return &ActiveGuard{slots: make(map[string]slot)}
}

// Acquire claims the learner's slot for the given session. Under
// concurrent start attempts exactly one caller succeeds; the rest receive
// a ConflictError describing the winner.
func (g *ActiveGuard) Acquire(learnerID, sessionID string, kind Kind, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if held, ok := g.slots[learnerID]; ok {
		return &ConflictError{
			LearnerID: learnerID,
			SessionID: held.sessionID,
			Kind:      held.kind,
			StartedAt: held.startedAt,
			Age:       now.Sub(held.startedAt),
		}
	}
	g.slots[learnerID] = slot{sessionID: sessionID, kind: kind, startedAt: now}
	return nil
}

// Release frees the learner's slot if it is held by the given session.
// Releasing a slot another session now holds is a no-op.
func (g *ActiveGuard) Release(learnerID, sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if held, ok := g.slots[learnerID]; ok && held.sessionID == sessionID {
		delete(g.slots, learnerID)
	}
}

// Current returns the learner's active session id, if any.
func (g *ActiveGuard) Current(learnerID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held, ok := g.slots[learnerID]
	return held.sessionID, ok
}
