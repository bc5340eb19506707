package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sarthakj/practiq/internal/grade"
	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
	"github.com/sarthakj/practiq/internal/questionbank"
	"github.com/sarthakj/practiq/internal/rewards"
)

// memStore is an in-memory Store for coordinator tests.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]*learner.Profile
	balances map[string]int
	credits  []string // "learner:amount:reason"
	answers  map[string]bool
	statuses map[string]Status
	active   map[string]*ActiveInfo
	masteryN int
	recent   map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]*learner.Profile),
		balances: make(map[string]int),
		answers:  make(map[string]bool),
		statuses: make(map[string]Status),
		active:   make(map[string]*ActiveInfo),
		recent:   make(map[string][]string),
	}
}

func (m *memStore) Profile(_ context.Context, learnerID string) (*learner.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[learnerID]
	if !ok {
		return nil, fmt.Errorf("learner %s not found", learnerID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SaveProfile(_ context.Context, p *learner.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) Credit(_ context.Context, learnerID string, amount int, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[learnerID] += amount
	m.credits = append(m.credits, fmt.Sprintf("%s:%d:%s", learnerID, amount, reason))
	return m.balances[learnerID], nil
}

func (m *memStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s.ID] = StatusActive
	m.active[s.LearnerID] = &ActiveInfo{SessionID: s.ID, Kind: s.Kind, StartedAt: s.StartedAt, UpdatedAt: s.StartedAt}
	return nil
}

func (m *memStore) SetSessionStatus(_ context.Context, sessionID string, status Status, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[sessionID] = status
	for lid, info := range m.active {
		if info.SessionID == sessionID {
			delete(m.active, lid)
		}
	}
	return nil
}

func (m *memStore) TouchSession(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.active {
		if info.SessionID == sessionID {
			info.UpdatedAt = at
		}
	}
	return nil
}

func (m *memStore) AppendAnswer(_ context.Context, rec AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.SessionID + "/" + rec.QuestionID
	if m.answers[key] {
		return fmt.Errorf("duplicate answer %s", key)
	}
	m.answers[key] = true
	return nil
}

func (m *memStore) SaveMastery(_ context.Context, _ string, _ mastery.ConceptMastery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masteryN++
	return nil
}

func (m *memStore) MasteryRecords(_ context.Context, _ string) ([]mastery.ConceptMastery, error) {
	return nil, nil
}

func (m *memStore) ActiveSession(_ context.Context, learnerID string) (*ActiveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.active[learnerID]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

func (m *memStore) RecentQuestionIDs(_ context.Context, learnerID string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.recent[learnerID]
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

func (m *memStore) creditCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.credits {
		if strings.HasSuffix(c, ":"+reason) {
			n++
		}
	}
	return n
}

// stubBank serves a fixed catalog, honoring exclusions.
type stubBank struct {
	questions []questionbank.Question
}

func newStubBank(n int) *stubBank {
	b := &stubBank{}
	for i := 0; i < n; i++ {
		b.questions = append(b.questions, questionbank.Question{
			ID:         fmt.Sprintf("q%d", i),
			Grade:      grade.Third,
			Concept:    "addition",
			Difficulty: 5,
			Prompt:     "What is 2 + 2?",
			Answer:     "4",
			AnswerType: questionbank.AnswerTypeInteger,
		})
	}
	return b
}

func (b *stubBank) NextQuestions(_ context.Context, _ grade.Grade, _ string, exclude []string, count int) ([]questionbank.Question, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []questionbank.Question
	for _, q := range b.questions {
		if excluded[q.ID] {
			continue
		}
		out = append(out, q)
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, questionbank.ErrPoolExhausted
	}
	return out, nil
}

// testClock is a settable clock for TTL tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testRules() rewards.Rules {
	return rewards.Rules{
		GroupSize:             5,
		TokensPerGroup:        3,
		PerfectBonus:          20,
		ExpectedQuestionCount: 20,
		AssessmentBonus:       15,
		StreakMilestones:      []int{3, 5, 10, 20},
		StreakBonusTokens:     2,
		TimeMilestonesMinutes: []int{10, 20, 30},
		TimeBonusTokens:       5,
		GradeTokenThresholds:  map[grade.Grade]int{},
	}
}

func newTestCoordinator(bankSize int) (*Coordinator, *memStore, *testClock) {
	store := newMemStore()
	store.profiles["l1"] = &learner.Profile{ID: "l1", Name: "Asha", Grade: grade.Third}
	clock := newTestClock()
	c := NewCoordinator(newStubBank(bankSize), mastery.NewAggregator(), store, testRules(), Options{
		InactivityTTL:     30 * time.Minute,
		RecentHistoryTail: 5,
		Now:               clock.Now,
	})
	return c, store, clock
}

// answerN serves and correctly answers n questions.
func answerN(t *testing.T, c *Coordinator, sessionID string, n int) *AnswerOutcome {
	t.Helper()
	ctx := context.Background()
	var last *AnswerOutcome
	for i := 0; i < n; i++ {
		q, err := c.NextQuestion(ctx, sessionID)
		if err != nil {
			t.Fatalf("NextQuestion %d: %v", i, err)
		}
		last, err = c.SubmitAnswer(ctx, sessionID, q.ID, q.Answer)
		if err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
	}
	return last
}

func TestStartPractice_SingleActiveSession(t *testing.T) {
	c, _, _ := newTestCoordinator(50)
	ctx := context.Background()
	cfg := Config{TargetType: TargetQuestions, TargetValue: 10}

	first, err := c.StartPractice(ctx, "l1", cfg)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err = c.StartPractice(ctx, "l1", cfg)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second start err = %v, want ConflictError", err)
	}
	if conflict.SessionID != first.ID {
		t.Errorf("conflict names session %s, want %s", conflict.SessionID, first.ID)
	}

	if err := c.Abandon(ctx, first.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := c.StartPractice(ctx, "l1", cfg); err != nil {
		t.Fatalf("start after abandon: %v", err)
	}
}

func TestStartPractice_ConcurrentStartsExactlyOneWins(t *testing.T) {
	c, _, _ := newTestCoordinator(50)
	cfg := Config{TargetType: TargetQuestions, TargetValue: 10}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.StartPractice(context.Background(), "l1", cfg)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("concurrent starts: %d winners, want exactly 1", wins)
	}
}

func TestSubmitAnswer_FlowAndStreaks(t *testing.T) {
	c, store, _ := newTestCoordinator(50)
	ctx := context.Background()

	s, err := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 20})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Five correct answers cross streak milestones 3 and 5: two bonuses.
	out := answerN(t, c, s.ID, 5)
	if out.Streak != 5 {
		t.Errorf("streak = %d, want 5", out.Streak)
	}
	if got := store.creditCount("streak-milestone"); got != 2 {
		t.Errorf("streak milestone credits = %d, want 2", got)
	}

	// A wrong answer resets the streak but not the milestone high-water mark.
	q, err := c.NextQuestion(ctx, s.ID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	out, err = c.SubmitAnswer(ctx, s.ID, q.ID, "999")
	if err != nil {
		t.Fatalf("SubmitAnswer wrong: %v", err)
	}
	if out.Correct || out.Streak != 0 {
		t.Errorf("wrong answer outcome = correct %v streak %d", out.Correct, out.Streak)
	}

	// Climbing back over 3 must not re-fire the milestone this session.
	answerN(t, c, s.ID, 4)
	if got := store.creditCount("streak-milestone"); got != 2 {
		t.Errorf("streak milestone credits after oscillation = %d, want 2", got)
	}

	// Lifetime counters tracked on the profile.
	p, _ := store.Profile(ctx, "l1")
	if p.LifetimeQuestions != 10 || p.LifetimeCorrect != 9 {
		t.Errorf("lifetime = %d/%d, want 9/10", p.LifetimeCorrect, p.LifetimeQuestions)
	}
}

func TestSubmitAnswer_DuplicateIsNoOp(t *testing.T) {
	c, store, _ := newTestCoordinator(50)
	ctx := context.Background()

	s, _ := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 20})
	q, err := c.NextQuestion(ctx, s.ID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}

	first, err := c.SubmitAnswer(ctx, s.ID, q.ID, q.Answer)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	masteryWrites := store.masteryN

	replay, err := c.SubmitAnswer(ctx, s.ID, q.ID, q.Answer)
	if err != nil {
		t.Fatalf("replay submit: %v", err)
	}
	if replay != first {
		t.Errorf("replay returned a new outcome, want the recorded one")
	}
	if store.masteryN != masteryWrites {
		t.Errorf("replay wrote mastery %d times", store.masteryN-masteryWrites)
	}
	if len(s.Answers) != 1 {
		t.Errorf("answers = %d, want 1", len(s.Answers))
	}
}

func TestSubmitAnswer_InvalidFormatNoMutation(t *testing.T) {
	c, _, _ := newTestCoordinator(50)
	ctx := context.Background()

	s, _ := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 20})
	q, _ := c.NextQuestion(ctx, s.ID)

	_, err := c.SubmitAnswer(ctx, s.ID, q.ID, "   ")
	if !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("err = %v, want ErrInvalidAnswer", err)
	}
	if len(s.Answers) != 0 {
		t.Errorf("invalid answer mutated state: %d answers", len(s.Answers))
	}

	_, err = c.SubmitAnswer(ctx, s.ID, "never-served", "4")
	if !errors.Is(err, ErrQuestionNotServed) {
		t.Errorf("err = %v, want ErrQuestionNotServed", err)
	}
}

func TestSession_CompletesAtQuestionTarget(t *testing.T) {
	c, store, _ := newTestCoordinator(50)
	ctx := context.Background()

	s, _ := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 20})
	out := answerN(t, c, s.ID, 20)

	if !out.Completed || out.Summary == nil {
		t.Fatal("target met but session not completed")
	}
	sum := out.Summary
	if sum.Correct != 20 || sum.Total != 20 {
		t.Errorf("summary = %d/%d, want 20/20", sum.Correct, sum.Total)
	}
	// floor(20/5)*3 + 20 perfect = 32 base, plus streak milestones
	// 3, 5, 10, 20 at 2 tokens each = 8.
	if sum.TokensAwarded != 40 {
		t.Errorf("TokensAwarded = %d, want 40", sum.TokensAwarded)
	}
	if got := store.balances["l1"]; got != 40 {
		t.Errorf("balance = %d, want 40", got)
	}

	_, err := c.SubmitAnswer(ctx, s.ID, "q0", "4")
	if !errors.Is(err, ErrSessionAlreadyCompleted) {
		t.Errorf("submit after completion err = %v, want ErrSessionAlreadyCompleted", err)
	}
}

func TestSession_DurationTargetCompletes(t *testing.T) {
	c, _, clock := newTestCoordinator(50)
	ctx := context.Background()

	s, _ := c.StartPractice(ctx, "l1", Config{TargetType: TargetDuration, TargetValue: 300})
	answerN(t, c, s.ID, 2)

	clock.Advance(6 * time.Minute)
	q, err := c.NextQuestion(ctx, s.ID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	out, err := c.SubmitAnswer(ctx, s.ID, q.ID, q.Answer)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !out.Completed {
		t.Error("elapsed time past target but session still active")
	}
}

func TestSession_LazyTTLExpiry(t *testing.T) {
	c, store, clock := newTestCoordinator(50)
	ctx := context.Background()

	s, _ := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 20})
	q, _ := c.NextQuestion(ctx, s.ID)

	clock.Advance(31 * time.Minute)

	_, err := c.SubmitAnswer(ctx, s.ID, q.ID, q.Answer)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("submit after idle err = %v, want ErrSessionExpired", err)
	}
	if store.balances["l1"] != 0 {
		t.Errorf("expired session credited %d tokens", store.balances["l1"])
	}

	// Expiry released the slot: a fresh start succeeds.
	if _, err := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 20}); err != nil {
		t.Fatalf("start after expiry: %v", err)
	}
}

func TestNextQuestion_DedupAndRelaxation(t *testing.T) {
	c, store, _ := newTestCoordinator(3)
	ctx := context.Background()

	// Recent history already contains one of the three bank questions.
	store.recent["l1"] = []string{"q0"}

	s, _ := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 10})

	seen := make(map[string]bool)
	// First two serves honor the full exclusion window (q0 excluded).
	for i := 0; i < 2; i++ {
		q, err := c.NextQuestion(ctx, s.ID)
		if err != nil {
			t.Fatalf("NextQuestion %d: %v", i, err)
		}
		if q.ID == "q0" {
			t.Errorf("serve %d returned recently seen q0 while alternatives remain", i)
		}
		if seen[q.ID] {
			t.Errorf("serve %d repeated %s within session", i, q.ID)
		}
		seen[q.ID] = true
		if _, err := c.SubmitAnswer(ctx, s.ID, q.ID, q.Answer); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	// Pool now exhausted under the full window: the tail is relaxed and
	// q0 becomes servable rather than failing the session.
	q, err := c.NextQuestion(ctx, s.ID)
	if err != nil {
		t.Fatalf("NextQuestion after exhaustion: %v", err)
	}
	if q.ID != "q0" {
		t.Errorf("relaxed serve = %s, want q0", q.ID)
	}
}

func TestStartPractice_ExpiresIdleForeignSlot(t *testing.T) {
	c, store, clock := newTestCoordinator(30)
	ctx := context.Background()

	// Another flow (an assessment) holds the learner's slot and has a
	// stored active row; the coordinator has no in-memory session for it.
	started := clock.Now()
	if err := c.Guard().Acquire("l1", "assess-1", KindAssessment, started); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	store.mu.Lock()
	store.statuses["assess-1"] = StatusActive
	store.active["l1"] = &ActiveInfo{SessionID: "assess-1", Kind: KindAssessment, StartedAt: started, UpdatedAt: started}
	store.mu.Unlock()

	// Within the TTL the slot stays held.
	clock.Advance(10 * time.Minute)
	_, err := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 5})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Kind != KindAssessment {
		t.Errorf("conflict kind = %s, want assessment", conflict.Kind)
	}

	// Past the TTL the stale slot is expired and the start succeeds.
	clock.Advance(25 * time.Minute)
	s, err := c.StartPractice(ctx, "l1", Config{TargetType: TargetQuestions, TargetValue: 5})
	if err != nil {
		t.Fatalf("StartPractice after idle TTL: %v", err)
	}
	if s.Kind != KindPractice {
		t.Errorf("kind = %s, want practice", s.Kind)
	}
	store.mu.Lock()
	status := store.statuses["assess-1"]
	store.mu.Unlock()
	if status != StatusExpired {
		t.Errorf("stale session status = %s, want expired", status)
	}
}

func TestCoordinator_PerfectScoreScenario(t *testing.T) {
	// Scenario from the reward design: groupSize=5, tokensPerGroup=3,
	// perfectBonus=20, 20/20 correct → base tokens 32.
	sum := rewards.ComputeTokens(rewards.Summary{Correct: 20, Total: 20}, testRules())
	if sum != 32 {
		t.Errorf("ComputeTokens = %d, want 32", sum)
	}
}
