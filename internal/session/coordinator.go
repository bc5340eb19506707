package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
	"github.com/sarthakj/practiq/internal/questionbank"
	"github.com/sarthakj/practiq/internal/rewards"
)

// Defaults for coordinator options.
const (
	DefaultInactivityTTL     = 30 * time.Minute
	DefaultRecentHistoryTail = 20
)

// Options tunes coordinator behavior. Zero values fall back to defaults.
type Options struct {
	// InactivityTTL is how long a session may sit idle before lazy expiry.
	InactivityTTL time.Duration

	// RecentHistoryTail is how many recently answered question ids from
	// prior sessions join the duplicate-exclusion set.
	RecentHistoryTail int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Coordinator owns the lifecycle of practice sessions: sequencing,
// duplicate avoidance, streaks, timing, and single-active-session
// enforcement. All operations are synchronous; expiry is checked lazily
// on access rather than by a background timer.
type Coordinator struct {
	bank       questionbank.Adapter
	agg        *mastery.Aggregator
	store      Store
	guard      *ActiveGuard
	rules      rewards.Rules
	ttl        time.Duration
	recentTail int
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCoordinator wires a coordinator over its collaborators.
func NewCoordinator(bank questionbank.Adapter, agg *mastery.Aggregator, store Store, rules rewards.Rules, opts Options) *Coordinator {
	if opts.InactivityTTL <= 0 {
		opts.InactivityTTL = DefaultInactivityTTL
	}
	if opts.RecentHistoryTail <= 0 {
		opts.RecentHistoryTail = DefaultRecentHistoryTail
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		bank:       bank,
		agg:        agg,
		store:      store,
		guard:      NewActiveGuard(),
		rules:      rules,
		ttl:        opts.InactivityTTL,
		recentTail: opts.RecentHistoryTail,
		now:        opts.Now,
		sessions:   make(map[string]*Session),
	}
}

// Guard exposes the active-slot guard so the assessment flow can share
// the same single-active-session discipline.
func (c *Coordinator) Guard() *ActiveGuard {
	return c.guard
}

// StartPractice acquires the learner's active slot and opens a new
// practice session. Fails with *ConflictError when the learner already
// holds an active session that has not passed the inactivity TTL.
func (c *Coordinator) StartPractice(ctx context.Context, learnerID string, cfg Config) (*Session, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	now := c.now()

	profile, err := c.store.Profile(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	// Lazily expire an idle in-memory session before the conflict check.
	c.expireIdle(ctx, learnerID, now)

	id := uuid.NewString()
	if err := c.guard.Acquire(learnerID, id, KindPractice, now); err != nil {
		return nil, err
	}

	if err := ReconcileStoredActive(ctx, c.store, learnerID, c.ttl, now); err != nil {
		c.guard.Release(learnerID, id)
		return nil, err
	}

	if records, err := c.store.MasteryRecords(ctx, learnerID); err == nil && len(records) > 0 {
		c.agg.Load(learnerID, records)
	}

	s := New(id, learnerID, KindPractice, profile.Grade, cfg, profile, now)

	if err := c.store.CreateSession(ctx, s); err != nil {
		c.guard.Release(learnerID, id)
		return nil, fmt.Errorf("persist session: %w", err)
	}

	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()
	return s, nil
}

// NextQuestion serves the next question for the session, excluding
// everything already served this session plus the learner's recent
// history tail. When the bank cannot satisfy the constraints the
// exclusion window is relaxed stepwise before giving up.
func (c *Coordinator) NextQuestion(ctx context.Context, sessionID string) (*questionbank.Question, error) {
	s, err := c.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.now()
	if err := c.checkActiveLocked(ctx, s, now); err != nil {
		return nil, err
	}

	tail, err := c.store.RecentQuestionIDs(ctx, s.LearnerID, c.recentTail)
	if err != nil {
		tail = nil // history tail is best-effort
	}

	// Exclusion windows, widest first: session + tail, session only, none.
	exclusions := [][]string{
		append(append([]string{}, s.Served...), tail...),
		s.Served,
		nil,
	}

	var qs []questionbank.Question
	for _, exclude := range exclusions {
		qs, err = c.bank.NextQuestions(ctx, s.Grade, s.Target.Concept, exclude, 1)
		if err == nil {
			break
		}
		if !errors.Is(err, questionbank.ErrPoolExhausted) {
			return nil, fmt.Errorf("fetch question: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch question: %w", err)
	}

	q := qs[0]
	s.Serve(q, now)
	_ = c.store.TouchSession(ctx, s.ID, now)
	return &q, nil
}

// SubmitAnswer scores one submission. Submissions are serialized per
// session; a duplicate (session, question) pair replays the recorded
// outcome without touching mastery, streaks, or tokens.
func (c *Coordinator) SubmitAnswer(ctx context.Context, sessionID, questionID, submitted string) (*AnswerOutcome, error) {
	s, err := c.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.now()
	if err := c.checkActiveLocked(ctx, s, now); err != nil {
		return nil, err
	}

	if prior, ok := s.outcomes[questionID]; ok {
		return prior, nil
	}

	q, served := s.questions[questionID]
	if !served {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotServed, questionID)
	}
	if strings.TrimSpace(submitted) == "" {
		return nil, ErrInvalidAnswer
	}

	correct := q.Check(submitted)
	latency := int(now.Sub(s.servedAt[questionID]).Milliseconds())

	rec := AnswerRecord{
		SessionID:  s.ID,
		QuestionID: questionID,
		Submitted:  submitted,
		Correct:    correct,
		LatencyMs:  latency,
		Timestamp:  now,
	}
	if err := c.store.AppendAnswer(ctx, rec); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	s.Answers = append(s.Answers, rec)

	if correct {
		s.Streak++
		if s.Streak > s.BestStreak {
			s.BestStreak = s.Streak
		}
	} else {
		s.Streak = 0
	}

	bonus := 0
	crossed := rewards.CrossedMilestones(s.maxStreakMilestone, s.Streak, c.rules.StreakMilestones)
	for range crossed {
		bonus += c.rules.StreakBonusTokens
	}
	if len(crossed) > 0 {
		s.maxStreakMilestone = crossed[len(crossed)-1]
		if err := c.credit(ctx, s, bonus, "streak-milestone"); err != nil {
			return nil, err
		}
		s.bonusAwarded += bonus
	}

	timeBonus, err := c.awardTimeMilestones(ctx, s, now)
	if err != nil {
		return nil, err
	}
	bonus += timeBonus

	m := c.agg.RecordAnswer(s.LearnerID, q.Concept, correct, latency, now)
	if err := c.store.SaveMastery(ctx, s.LearnerID, m); err != nil {
		return nil, fmt.Errorf("save mastery: %w", err)
	}

	s.profile.LifetimeQuestions++
	if correct {
		s.profile.LifetimeCorrect++
	}
	s.profile.LearningStyle = learner.DeriveStyle(avgLatencyMs(s.Answers), s.profile.Accuracy(), s.profile.LifetimeQuestions)
	if err := c.store.SaveProfile(ctx, s.profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	s.LastActivityAt = now
	_ = c.store.TouchSession(ctx, s.ID, now)

	outcome := &AnswerOutcome{
		Correct:       correct,
		CorrectAnswer: q.Answer,
		Streak:        s.Streak,
		BonusTokens:   bonus,
		Mastery:       m,
	}

	if c.targetMet(s, now) {
		summary, err := c.completeLocked(ctx, s, now)
		if err != nil {
			return nil, err
		}
		outcome.Completed = true
		outcome.Summary = summary
	}

	s.outcomes[questionID] = outcome
	return outcome, nil
}

// Complete finishes an active session early and settles rewards.
func (c *Coordinator) Complete(ctx context.Context, sessionID string) (*Summary, error) {
	s, err := c.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.now()
	if err := c.checkActiveLocked(ctx, s, now); err != nil {
		return nil, err
	}
	return c.completeLocked(ctx, s, now)
}

// Abandon ends an active session without rewards and releases the
// learner's active slot.
func (c *Coordinator) Abandon(ctx context.Context, sessionID string) error {
	s, err := c.get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.now()
	if err := c.checkActiveLocked(ctx, s, now); err != nil {
		return err
	}

	s.Status = StatusAbandoned
	c.guard.Release(s.LearnerID, s.ID)
	if err := c.store.SetSessionStatus(ctx, s.ID, StatusAbandoned, now); err != nil {
		return fmt.Errorf("persist abandon: %w", err)
	}
	return nil
}

// completeLocked settles a session: summary, base reward, final time
// milestones, and the token-threshold grade advancement check.
// Caller holds s.mu.
func (c *Coordinator) completeLocked(ctx context.Context, s *Session, now time.Time) (*Summary, error) {
	if _, err := c.awardTimeMilestones(ctx, s, now); err != nil {
		return nil, err
	}

	correct := s.Correct()
	total := len(s.Answers)
	base := rewards.ComputeTokens(rewards.Summary{Correct: correct, Total: total}, c.rules)
	if err := c.credit(ctx, s, base, "practice-completion"); err != nil {
		return nil, err
	}

	s.Status = StatusCompleted
	c.guard.Release(s.LearnerID, s.ID)
	if err := c.store.SetSessionStatus(ctx, s.ID, StatusCompleted, now); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}
	return &Summary{
		SessionID:     s.ID,
		LearnerID:     s.LearnerID,
		Kind:          s.Kind,
		Correct:       correct,
		Total:         total,
		Accuracy:      accuracy,
		Elapsed:       now.Sub(s.StartedAt),
		BestStreak:    s.BestStreak,
		TokensAwarded: base + s.bonusAwarded,
		GradeAdvanced: s.gradeAdvanced,
		NewGrade:      s.profile.Grade,
	}, nil
}

// awardTimeMilestones credits newly crossed time-on-task milestones.
// Each threshold fires exactly once per session.
func (c *Coordinator) awardTimeMilestones(ctx context.Context, s *Session, now time.Time) (int, error) {
	elapsedMin := int(now.Sub(s.StartedAt).Minutes())
	crossed := rewards.CrossedMilestones(s.maxTimeMilestone, elapsedMin, c.rules.TimeMilestonesMinutes)
	if len(crossed) == 0 {
		return 0, nil
	}
	s.maxTimeMilestone = crossed[len(crossed)-1]
	bonus := len(crossed) * c.rules.TimeBonusTokens
	if err := c.credit(ctx, s, bonus, "time-milestone"); err != nil {
		return 0, err
	}
	s.bonusAwarded += bonus
	return bonus, nil
}

// credit applies an additive token delta and runs the grade advancement
// check against the resulting balance. At most one grade per event.
func (c *Coordinator) credit(ctx context.Context, s *Session, amount int, reason string) error {
	if amount <= 0 {
		return nil
	}
	balance, err := c.store.Credit(ctx, s.LearnerID, amount, reason)
	if err != nil {
		return fmt.Errorf("credit %s: %w", reason, err)
	}
	s.profile.TokenBalance = balance

	if next, ok := rewards.AdvanceByTokens(s.profile.Grade, balance, c.rules); ok {
		s.profile.Grade = next
		s.gradeAdvanced = true
		if err := c.store.SaveProfile(ctx, s.profile); err != nil {
			return fmt.Errorf("save advanced grade: %w", err)
		}
	}
	return nil
}

// targetMet reports whether the session's configured target is satisfied.
func (c *Coordinator) targetMet(s *Session, now time.Time) bool {
	switch s.Target.TargetType {
	case TargetQuestions:
		return len(s.Answers) >= s.Target.TargetValue
	case TargetDuration:
		return now.Sub(s.StartedAt) >= time.Duration(s.Target.TargetValue)*time.Second
	default:
		return false
	}
}

// checkActiveLocked rejects operations against finished sessions and
// performs the lazy TTL expiry check. Caller holds s.mu.
func (c *Coordinator) checkActiveLocked(ctx context.Context, s *Session, now time.Time) error {
	switch s.Status {
	case StatusActive:
	case StatusExpired:
		return fmt.Errorf("%w: %s", ErrSessionExpired, s.ID)
	default:
		return fmt.Errorf("%w: %s", ErrSessionAlreadyCompleted, s.ID)
	}

	if c.ttl > 0 && now.Sub(s.LastActivityAt) >= c.ttl {
		s.Status = StatusExpired
		c.guard.Release(s.LearnerID, s.ID)
		_ = c.store.SetSessionStatus(ctx, s.ID, StatusExpired, now)
		return fmt.Errorf("%w: %s", ErrSessionExpired, s.ID)
	}
	return nil
}

// expireIdle lazily expires the learner's active session if it has
// passed the TTL, releasing the slot for a new start. The slot may be
// held by a session of a different kind that this coordinator has no
// in-memory state for; that case falls back to the stored row's
// last-activity time.
func (c *Coordinator) expireIdle(ctx context.Context, learnerID string, now time.Time) {
	sessionID, ok := c.guard.Current(learnerID)
	if !ok {
		return
	}
	if s, err := c.get(sessionID); err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = c.checkActiveLocked(ctx, s, now)
		return
	}

	info, err := c.store.ActiveSession(ctx, learnerID)
	if err != nil || info == nil || info.SessionID != sessionID {
		return
	}
	if c.ttl > 0 && now.Sub(info.UpdatedAt) >= c.ttl {
		c.guard.Release(learnerID, sessionID)
		_ = c.store.SetSessionStatus(ctx, sessionID, StatusExpired, now)
	}
}

// ReconcileStoredActive handles an active session row left in the store
// by an earlier process: a row past the TTL is swept to expired, a fresh
// one returns a *ConflictError. Both the practice and assessment start
// paths run this so a restart cannot produce two active sessions for one
// learner.
func ReconcileStoredActive(ctx context.Context, store Store, learnerID string, ttl time.Duration, now time.Time) error {
	info, err := store.ActiveSession(ctx, learnerID)
	if err != nil || info == nil {
		return nil
	}
	if ttl > 0 && now.Sub(info.UpdatedAt) >= ttl {
		_ = store.SetSessionStatus(ctx, info.SessionID, StatusExpired, now)
		return nil
	}
	return &ConflictError{
		LearnerID: learnerID,
		SessionID: info.SessionID,
		Kind:      info.Kind,
		StartedAt: info.StartedAt,
		Age:       now.Sub(info.StartedAt),
	}
}

// get returns the in-memory session by id.
func (c *Coordinator) get(sessionID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func validateConfig(cfg Config) error {
	switch cfg.TargetType {
	case TargetQuestions, TargetDuration:
	default:
		return fmt.Errorf("unknown target type %q", cfg.TargetType)
	}
	if cfg.TargetValue <= 0 {
		return fmt.Errorf("target value must be positive, got %d", cfg.TargetValue)
	}
	return nil
}

// avgLatencyMs averages answer latencies for learning-style derivation.
func avgLatencyMs(answers []AnswerRecord) float64 {
	if len(answers) == 0 {
		return 0
	}
	sum := 0
	for _, a := range answers {
		sum += a.LatencyMs
	}
	return float64(sum) / float64(len(answers))
}
