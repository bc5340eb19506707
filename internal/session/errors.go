package session

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for session lifecycle violations.
var (
	// ErrSessionNotFound means the session id is unknown to this process.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAlreadyCompleted rejects operations against a session
	// that reached a completed or abandoned state.
	ErrSessionAlreadyCompleted = errors.New("session already completed")

	// ErrSessionExpired rejects operations against a session that sat
	// idle past the inactivity TTL.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidAnswer rejects a submission that cannot be scored, such
	// as a blank answer. The session state is untouched.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrQuestionNotServed rejects an answer for a question this session
	// never served.
	ErrQuestionNotServed = errors.New("question not served in this session")
)

// ConflictError reports a start attempt against a learner who already
// holds an active session.
type ConflictError struct {
	LearnerID string
	SessionID string
	Kind      Kind
	StartedAt time.Time
	Age       time.Duration
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("learner %s already has an active %s session %s (started %s ago)",
		e.LearnerID, e.Kind, e.SessionID, e.Age.Round(time.Second))
}
