package session

import (
	"context"
	"time"

	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
)

// ActiveInfo describes an active session row held in durable storage,
// possibly left behind by an earlier process.
type ActiveInfo struct {
	SessionID string
	Kind      Kind
	StartedAt time.Time
	UpdatedAt time.Time
}

// Store is the persistence boundary the coordinator writes through.
// Implementations must apply Credit as an additive delta, not an
// overwrite, so concurrent reward events never lose updates.
type Store interface {
	// Profile loads a learner profile.
	Profile(ctx context.Context, learnerID string) (*learner.Profile, error)

	// SaveProfile persists profile fields other than the token balance
	// (grade, lifetime counters, learning style).
	SaveProfile(ctx context.Context, p *learner.Profile) error

	// Credit applies an additive token delta and returns the new balance.
	Credit(ctx context.Context, learnerID string, amount int, reason string) (int, error)

	// CreateSession persists a new session row with status active.
	CreateSession(ctx context.Context, s *Session) error

	// SetSessionStatus records a terminal transition.
	SetSessionStatus(ctx context.Context, sessionID string, status Status, at time.Time) error

	// TouchSession bumps the session's last-activity timestamp.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// AppendAnswer appends one answer record. Duplicate
	// (session, question) pairs must be rejected or ignored, never
	// double-inserted.
	AppendAnswer(ctx context.Context, rec AnswerRecord) error

	// SaveMastery upserts one concept mastery record.
	SaveMastery(ctx context.Context, learnerID string, m mastery.ConceptMastery) error

	// MasteryRecords loads every concept mastery record for a learner.
	MasteryRecords(ctx context.Context, learnerID string) ([]mastery.ConceptMastery, error)

	// ActiveSession returns the learner's active session row, or nil.
	ActiveSession(ctx context.Context, learnerID string) (*ActiveInfo, error)

	// RecentQuestionIDs returns the learner's most recently answered
	// question ids, newest first, for the duplicate-exclusion tail.
	RecentQuestionIDs(ctx context.Context, learnerID string, n int) ([]string, error)
}
