package session

import (
	"sync"
	"time"

	"github.com/sarthakj/practiq/internal/grade"
	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
	"github.com/sarthakj/practiq/internal/questionbank"
)

// Kind distinguishes practice sessions from placement assessments. Both
// occupy the learner's single active-session slot.
type Kind string

const (
	KindPractice   Kind = "practice"
	KindAssessment Kind = "assessment"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// TargetType selects how a practice session ends.
type TargetType string

const (
	TargetQuestions TargetType = "questions"
	TargetDuration  TargetType = "duration"
)

// Config describes the shape of one practice session.
type Config struct {
	// TargetType selects a question-count or elapsed-time target.
	TargetType TargetType

	// TargetValue is a question count or a duration in seconds,
	// depending on TargetType.
	TargetValue int

	// Concept optionally pins the whole session to one concept.
	Concept string
}

// AnswerRecord is one scored submission. Append-only: records are never
// mutated after creation and form the input stream to the Mastery
// Aggregator.
type AnswerRecord struct {
	SessionID  string
	QuestionID string
	Submitted  string
	Correct    bool
	LatencyMs  int
	Timestamp  time.Time
}

// Session is the runtime state of one practice or assessment session.
type Session struct {
	ID             string
	LearnerID      string
	Kind           Kind
	Status         Status
	Grade          grade.Grade
	Target         Config
	Served         []string // question IDs in serving order
	Answers        []AnswerRecord
	Streak         int
	BestStreak     int
	StartedAt      time.Time
	LastActivityAt time.Time

	// mu serializes all submissions against this session. Two concurrent
	// answers for one session are never meaningful.
	mu sync.Mutex

	// questions holds served questions by id so answers can be checked.
	questions map[string]questionbank.Question

	// servedAt records when each question was first served, for latency.
	servedAt map[string]time.Time

	// outcomes stores the result per answered question id. A duplicate
	// submission replays the stored outcome instead of re-scoring.
	outcomes map[string]*AnswerOutcome

	// maxStreakMilestone is the largest streak milestone already awarded
	// in this session; milestones never fire twice per session.
	maxStreakMilestone int

	// maxTimeMilestone is the largest elapsed-minutes milestone already
	// awarded in this session.
	maxTimeMilestone int

	// profile is the owning learner's profile, cached at session start
	// and written through on mutation.
	profile *learner.Profile

	// gradeAdvanced is set when a reward event promoted the learner
	// during this session.
	gradeAdvanced bool

	// bonusAwarded accumulates streak and time milestone credits issued
	// over the session, for the final summary.
	bonusAwarded int
}

// New constructs an active session with initialized bookkeeping. Used by
// the coordinator and by the assessment flow, which shares the session
// lifecycle but drives its own probe sequencing.
func New(id, learnerID string, kind Kind, g grade.Grade, target Config, profile *learner.Profile, now time.Time) *Session {
	return &Session{
		ID:             id,
		LearnerID:      learnerID,
		Kind:           kind,
		Status:         StatusActive,
		Grade:          g,
		Target:         target,
		StartedAt:      now,
		LastActivityAt: now,
		questions:      make(map[string]questionbank.Question),
		servedAt:       make(map[string]time.Time),
		outcomes:       make(map[string]*AnswerOutcome),
		profile:        profile,
	}
}

// Serve records that a question was served, for answer checking and
// latency measurement. Serving the same question twice is a no-op.
func (s *Session) Serve(q questionbank.Question, now time.Time) {
	if _, seen := s.servedAt[q.ID]; seen {
		return
	}
	s.Served = append(s.Served, q.ID)
	s.questions[q.ID] = q
	s.servedAt[q.ID] = now
	s.LastActivityAt = now
}

// Question returns a previously served question by id.
func (s *Session) Question(id string) (questionbank.Question, bool) {
	q, ok := s.questions[id]
	return q, ok
}

// ServedAt returns when a question was first served.
func (s *Session) ServedAt(id string) time.Time {
	return s.servedAt[id]
}

// Profile returns the cached owning profile.
func (s *Session) Profile() *learner.Profile {
	return s.profile
}

// Correct counts the correct answers recorded so far.
func (s *Session) Correct() int {
	n := 0
	for _, a := range s.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// AnswerOutcome is returned from SubmitAnswer. When the answer completed
// the session, Summary is populated.
type AnswerOutcome struct {
	Correct       bool
	CorrectAnswer string
	Streak        int
	BonusTokens   int // streak and time milestone credits from this answer
	Mastery       mastery.ConceptMastery
	Completed     bool
	Summary       *Summary
}

// Summary is the final accounting for a finished session, handed to the
// Reward Calculator and then to the caller.
type Summary struct {
	SessionID     string
	LearnerID     string
	Kind          Kind
	Correct       int
	Total         int
	Accuracy      float64
	Elapsed       time.Duration
	BestStreak    int
	TokensAwarded int
	GradeAdvanced bool
	NewGrade      grade.Grade
}
