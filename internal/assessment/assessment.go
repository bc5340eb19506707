// Package assessment implements grade placement: a bottom-up probe
// ladder that walks grade levels until the learner fails one, then
// places them at the highest level they fully passed.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sarthakj/practiq/internal/grade"
	"github.com/sarthakj/practiq/internal/questionbank"
	"github.com/sarthakj/practiq/internal/rewards"
	"github.com/sarthakj/practiq/internal/session"
)

// DefaultProbesPerGrade is how many probes a grade level must pass.
const DefaultProbesPerGrade = 2

// Options tunes assessor behavior. Zero values fall back to defaults.
type Options struct {
	ProbesPerGrade int

	// Ceiling caps how high the ladder climbs. Defaults to the highest
	// supported grade.
	Ceiling grade.Grade

	// InactivityTTL is how long an assessment may sit idle before lazy
	// expiry. Defaults to the session coordinator's TTL.
	InactivityTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Probe is one placement question plus where it sits on the ladder.
type Probe struct {
	Question questionbank.Question
	Grade    grade.Grade

	// Index is the probe's position within its grade, starting at 1.
	Index int
}

// Result is the final placement for a finished assessment.
type Result struct {
	SessionID     string
	LearnerID     string
	Placement     grade.Grade
	PreviousGrade grade.Grade
	ProbesAsked   int
	ProbesCorrect int
	BonusTokens   int
	Elapsed       time.Duration
}

// Outcome is returned from SubmitProbe: the verdict on the submitted
// probe, then either the next probe or the final result.
type Outcome struct {
	Correct       bool
	CorrectAnswer string
	NextProbe     *Probe
	Result        *Result
}

// run is the in-memory state of one assessment ladder.
type run struct {
	s          *session.Session
	startGrade grade.Grade
	current    grade.Grade
	passed     grade.Grade // highest grade with all probes correct
	anyPassed  bool
	probeIndex int // probes served at the current grade
	asked      int
	right      int
	pending    string // outstanding probe question id
	outcomes   map[string]*Outcome
	result     *Result
}

// Assessor drives placement assessments. It shares the coordinator's
// active-slot guard so a learner cannot run an assessment and a practice
// session at the same time.
type Assessor struct {
	bank   questionbank.Adapter
	store  session.Store
	guard  *session.ActiveGuard
	rules  rewards.Rules
	probes int
	ceil   grade.Grade
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	runs map[string]*run
}

// NewAssessor wires an assessor over the shared guard and store.
func NewAssessor(bank questionbank.Adapter, store session.Store, guard *session.ActiveGuard, rules rewards.Rules, opts Options) *Assessor {
	if opts.ProbesPerGrade <= 0 {
		opts.ProbesPerGrade = DefaultProbesPerGrade
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = grade.Max
	}
	if opts.InactivityTTL <= 0 {
		opts.InactivityTTL = session.DefaultInactivityTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assessor{
		bank:   bank,
		store:  store,
		guard:  guard,
		rules:  rules,
		probes: opts.ProbesPerGrade,
		ceil:   opts.Ceiling,
		ttl:    opts.InactivityTTL,
		now:    opts.Now,
		runs:   make(map[string]*run),
	}
}

// Start opens an assessment for the learner and serves the first probe.
// The ladder begins at the learner's current grade, capped at the
// ceiling.
func (a *Assessor) Start(ctx context.Context, learnerID string) (*session.Session, *Probe, error) {
	now := a.now()

	profile, err := a.store.Profile(ctx, learnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile: %w", err)
	}

	start := profile.Grade.Clamp()
	if start > a.ceil {
		start = a.ceil
	}

	id := uuid.NewString()
	if err := a.guard.Acquire(learnerID, id, session.KindAssessment, now); err != nil {
		return nil, nil, err
	}

	// A restart loses the guard but not the store. Sweep or reject any
	// active row an earlier process left behind.
	if err := session.ReconcileStoredActive(ctx, a.store, learnerID, a.ttl, now); err != nil {
		a.guard.Release(learnerID, id)
		return nil, nil, err
	}

	s := session.New(id, learnerID, session.KindAssessment, start, session.Config{}, profile, now)
	if err := a.store.CreateSession(ctx, s); err != nil {
		a.guard.Release(learnerID, id)
		return nil, nil, fmt.Errorf("persist session: %w", err)
	}

	r := &run{
		s:          s,
		startGrade: start,
		current:    start,
		outcomes:   make(map[string]*Outcome),
	}

	probe, err := a.nextProbe(ctx, r, now)
	if err != nil {
		a.guard.Release(learnerID, id)
		_ = a.store.SetSessionStatus(ctx, id, session.StatusAbandoned, now)
		return nil, nil, err
	}

	a.mu.Lock()
	a.runs[id] = r
	a.mu.Unlock()
	return s, probe, nil
}

// SubmitProbe scores one probe answer and advances the ladder. A replay
// of an already answered probe returns the recorded outcome.
func (a *Assessor) SubmitProbe(ctx context.Context, sessionID, questionID, submitted string) (*Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.runs[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}

	now := a.now()
	if r.result != nil {
		if prior, ok := r.outcomes[questionID]; ok {
			return prior, nil
		}
		return nil, fmt.Errorf("%w: %s", session.ErrSessionAlreadyCompleted, sessionID)
	}
	if a.ttl > 0 && now.Sub(r.s.LastActivityAt) >= a.ttl {
		r.s.Status = session.StatusExpired
		a.guard.Release(r.s.LearnerID, r.s.ID)
		_ = a.store.SetSessionStatus(ctx, r.s.ID, session.StatusExpired, now)
		return nil, fmt.Errorf("%w: %s", session.ErrSessionExpired, sessionID)
	}

	if prior, ok := r.outcomes[questionID]; ok {
		return prior, nil
	}
	if questionID != r.pending {
		return nil, fmt.Errorf("%w: %s", session.ErrQuestionNotServed, questionID)
	}
	if strings.TrimSpace(submitted) == "" {
		return nil, session.ErrInvalidAnswer
	}

	q, _ := r.s.Question(questionID)
	correct := q.Check(submitted)
	latency := int(now.Sub(r.s.ServedAt(questionID)).Milliseconds())

	rec := session.AnswerRecord{
		SessionID:  r.s.ID,
		QuestionID: questionID,
		Submitted:  submitted,
		Correct:    correct,
		LatencyMs:  latency,
		Timestamp:  now,
	}
	if err := a.store.AppendAnswer(ctx, rec); err != nil {
		return nil, fmt.Errorf("record probe: %w", err)
	}
	r.s.Answers = append(r.s.Answers, rec)
	r.s.LastActivityAt = now
	r.pending = ""
	r.asked++
	if correct {
		r.right++
	}

	outcome := &Outcome{Correct: correct, CorrectAnswer: q.Answer}

	switch {
	case !correct:
		// Any miss ends the ladder at the last fully passed grade.
		result, err := a.finish(ctx, r, now)
		if err != nil {
			return nil, err
		}
		outcome.Result = result

	case r.probeIndex < a.probes:
		probe, err := a.nextProbe(ctx, r, now)
		if err != nil {
			return nil, err
		}
		outcome.NextProbe = probe

	default:
		// Grade passed.
		r.passed = r.current
		r.anyPassed = true
		if r.current >= a.ceil {
			result, err := a.finish(ctx, r, now)
			if err != nil {
				return nil, err
			}
			outcome.Result = result
			break
		}
		next, _ := r.current.Next()
		r.current = next
		r.probeIndex = 0
		probe, err := a.nextProbe(ctx, r, now)
		if err != nil {
			return nil, err
		}
		outcome.NextProbe = probe
	}

	r.outcomes[questionID] = outcome
	return outcome, nil
}

// Abandon ends an assessment without placement or bonus.
func (a *Assessor) Abandon(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.runs[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	if r.result != nil {
		return fmt.Errorf("%w: %s", session.ErrSessionAlreadyCompleted, sessionID)
	}

	now := a.now()
	r.s.Status = session.StatusAbandoned
	a.guard.Release(r.s.LearnerID, r.s.ID)
	if err := a.store.SetSessionStatus(ctx, r.s.ID, session.StatusAbandoned, now); err != nil {
		return fmt.Errorf("persist abandon: %w", err)
	}
	return nil
}

// nextProbe serves one more probe at the run's current grade, excluding
// everything already served this assessment.
func (a *Assessor) nextProbe(ctx context.Context, r *run, now time.Time) (*Probe, error) {
	qs, err := a.bank.NextQuestions(ctx, r.current, "", r.s.Served, 1)
	if errors.Is(err, questionbank.ErrPoolExhausted) {
		qs, err = a.bank.NextQuestions(ctx, r.current, "", nil, 1)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch probe: %w", err)
	}
	q := qs[0]
	r.s.Serve(q, now)
	_ = a.store.TouchSession(ctx, r.s.ID, now)
	r.pending = q.ID
	r.probeIndex++
	return &Probe{Question: q, Grade: r.current, Index: r.probeIndex}, nil
}

// finish settles the placement, updates the profile, and credits the
// completion bonus. The bonus is a flat credit; grade movement here
// comes from the placement itself, not the token threshold check.
func (a *Assessor) finish(ctx context.Context, r *run, now time.Time) (*Result, error) {
	placement := a.placement(r)
	profile := r.s.Profile()
	prev := profile.Grade

	profile.Grade = placement
	if err := a.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save placement: %w", err)
	}

	bonus := a.rules.AssessmentBonus
	if bonus > 0 {
		balance, err := a.store.Credit(ctx, r.s.LearnerID, bonus, "assessment-completion")
		if err != nil {
			return nil, fmt.Errorf("credit bonus: %w", err)
		}
		profile.TokenBalance = balance
		if err := a.store.SaveProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("save balance: %w", err)
		}
	}

	r.s.Status = session.StatusCompleted
	a.guard.Release(r.s.LearnerID, r.s.ID)
	if err := a.store.SetSessionStatus(ctx, r.s.ID, session.StatusCompleted, now); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}

	r.result = &Result{
		SessionID:     r.s.ID,
		LearnerID:     r.s.LearnerID,
		Placement:     placement,
		PreviousGrade: prev,
		ProbesAsked:   r.asked,
		ProbesCorrect: r.right,
		BonusTokens:   bonus,
		Elapsed:       now.Sub(r.s.StartedAt),
	}
	return r.result, nil
}

// placement resolves the final grade for a finished ladder.
func (a *Assessor) placement(r *run) grade.Grade {
	if r.anyPassed {
		return r.passed
	}
	// Nothing passed: place one grade below the starting level.
	if prev, ok := r.startGrade.Prev(); ok {
		return prev
	}
	return grade.Min
}
