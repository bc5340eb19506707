package learner

import (
	"time"

	"github.com/sarthakj/practiq/internal/grade"
)

// LearningStyle is a derived tag describing how a learner tends to work.
// It is advisory only and recomputed from observed behavior; it never
// gates any engine decision.
type LearningStyle string

const (
	StyleBalanced   LearningStyle = "balanced"
	StyleQuick      LearningStyle = "quick"      // fast and accurate
	StyleDeliberate LearningStyle = "deliberate" // slow and accurate
	StyleRushing    LearningStyle = "rushing"    // fast and error-prone
)

// Profile is the engine-owned record for one learner. It is mutated only
// through Session Coordinator and Reward Calculator operations and never
// deleted by the engine.
type Profile struct {
	ID                string
	Name              string
	Grade             grade.Grade
	TokenBalance      int
	LearningStyle     LearningStyle
	LifetimeQuestions int
	LifetimeCorrect   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Accuracy returns the lifetime fraction of correct answers.
func (p *Profile) Accuracy() float64 {
	if p.LifetimeQuestions == 0 {
		return 0
	}
	return float64(p.LifetimeCorrect) / float64(p.LifetimeQuestions)
}

// fast/slow and accurate/inaccurate cut points for style derivation
const (
	quickLatencyMs    = 8000
	accurateThreshold = 0.75
)

// DeriveStyle classifies a learner's working style from average answer
// latency and lifetime accuracy. Returns StyleBalanced until enough
// questions have been answered to say anything.
func DeriveStyle(avgLatencyMs float64, accuracy float64, lifetimeQuestions int) LearningStyle {
	if lifetimeQuestions < 10 {
		return StyleBalanced
	}
	fast := avgLatencyMs > 0 && avgLatencyMs < quickLatencyMs
	accurate := accuracy >= accurateThreshold

	switch {
	case fast && accurate:
		return StyleQuick
	case fast && !accurate:
		return StyleRushing
	case !fast && accurate:
		return StyleDeliberate
	default:
		return StyleBalanced
	}
}
