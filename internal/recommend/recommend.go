package recommend

import (
	"time"

	"github.com/sarthakj/practiq/internal/grade"
)

// Type classifies why a question is being recommended.
type Type string

const (
	TypeRemediate Type = "remediate" // mastery critically low
	TypeReview    Type = "review"    // mastery shaky, keep practicing
	TypeReinforce Type = "reinforce" // adequate but going stale
	TypeAdvance   Type = "advance"   // ready for harder material
	TypeChallenge Type = "challenge" // stretch well past current level
)

// Priority buckets recommendations for presentation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is one ranked candidate question. Ephemeral: computed on
// demand and never persisted.
type Recommendation struct {
	QuestionID string
	Score      float64
	Type       Type
	Priority   Priority
	Concepts   []string
}

// Config holds the ranking thresholds and weights. All tunable; defaults
// come from the engine configuration.
type Config struct {
	// RemediateThreshold: mastery below this is remediated (high priority).
	RemediateThreshold float64

	// ReviewThreshold: mastery below this (but above remediate) is reviewed.
	ReviewThreshold float64

	// AdvanceThreshold: mastery at or above this is ready to advance.
	AdvanceThreshold float64

	// SpacedRepetitionInterval is the minimum staleness before an
	// adequately mastered concept becomes eligible for reinforcement.
	SpacedRepetitionInterval time.Duration

	// ChallengeGap is the difficulty delta above the learner's level that
	// separates a challenge from a plain advance.
	ChallengeGap int
}

// DefaultConfig returns the standard ranking thresholds.
func DefaultConfig() Config {
	return Config{
		RemediateThreshold:       40,
		ReviewThreshold:          70,
		AdvanceThreshold:         90,
		SpacedRepetitionInterval: 72 * time.Hour,
		ChallengeGap:             2,
	}
}

// Score weights. Urgency dominates so that a remediate recommendation
// always outranks anything else regardless of recency or difficulty fit.
const (
	urgencyWeight = 0.7
	recencyWeight = 0.2
	fitWeight     = 0.1
)

// urgency maps a classification to its contribution to the score.
// The ordering guarantees remediate > everything: even a maximal
// recency+fit contribution (0.3) cannot lift another type past 0.7.
func urgency(t Type) float64 {
	switch t {
	case TypeRemediate:
		return 1.0
	case TypeReinforce:
		return 0.55
	case TypeReview:
		return 0.5
	case TypeChallenge:
		return 0.35
	case TypeAdvance:
		return 0.25
	default:
		return 0
	}
}

// learnerDifficulty maps a working grade to the difficulty band the
// learner is expected to handle comfortably.
func learnerDifficulty(g grade.Grade) int {
	return int(g) + 2
}
