package mastery

import (
	"math"
	"sync"
	"time"
)

// GeneralConcept is the reserved pseudo-concept for answers that carry no
// specific concept tag. It is tracked but never surfaced in strength or
// weakness lists.
const GeneralConcept = "general"

// SeedLevel is the mastery estimate assigned on the first observation of a
// concept, before any evidence has accumulated.
const SeedLevel = 50.0

// Smoothing parameters for the per-answer update. The gain shrinks as
// attempts accumulate so early answers swing the estimate hard and later
// answers nudge a stable estimate.
const (
	maxGain      = 0.35
	minGain      = 0.05
	gainSoftness = 4.0
)

// latencyWindowSize caps the rolling latency window kept per concept.
const latencyWindowSize = 10

// ConceptMastery is the engine's confidence estimate for one learner on
// one concept.
type ConceptMastery struct {
	Concept         string
	Level           float64 // 0-100
	TotalAttempts   int
	CorrectAttempts int
	LastPracticedAt time.Time

	// LatencyWindow holds the most recent answer latencies in ms,
	// newest last. Feeds the fluency signal used by ranking.
	LatencyWindow []int
}

// Accuracy returns the raw fraction of correct attempts.
func (m *ConceptMastery) Accuracy() float64 {
	if m.TotalAttempts == 0 {
		return 0
	}
	return float64(m.CorrectAttempts) / float64(m.TotalAttempts)
}

// AvgLatencyMs returns the mean latency over the rolling window, or 0 if
// no latencies have been recorded.
func (m *ConceptMastery) AvgLatencyMs() float64 {
	if len(m.LatencyWindow) == 0 {
		return 0
	}
	sum := 0
	for _, l := range m.LatencyWindow {
		sum += l
	}
	return float64(sum) / float64(len(m.LatencyWindow))
}

// Aggregator converts the answer stream into mastery estimates.
// Safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	learners map[string]map[string]*ConceptMastery
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		learners: make(map[string]map[string]*ConceptMastery),
	}
}

// Load hydrates a learner's mastery records, replacing any in-memory state
// for the concepts present. Called when state is read back from the store.
func (a *Aggregator) Load(learnerID string, records []ConceptMastery) {
	a.mu.Lock()
	defer a.mu.Unlock()

	concepts := a.concepts(learnerID)
	for i := range records {
		r := records[i]
		concepts[r.Concept] = &r
	}
}

// RecordAnswer folds one observation into the learner's estimate for the
// concept and returns the updated record. The record is created lazily,
// seeded at SeedLevel, on the first attempt.
func (a *Aggregator) RecordAnswer(learnerID, concept string, correct bool, latencyMs int, now time.Time) ConceptMastery {
	if concept == "" {
		concept = GeneralConcept
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	concepts := a.concepts(learnerID)
	m, ok := concepts[concept]
	if !ok {
		m = &ConceptMastery{Concept: concept, Level: SeedLevel}
		concepts[concept] = m
	}

	outcome := 0.0
	if correct {
		outcome = 100.0
	}
	k := gain(m.TotalAttempts)
	m.Level = clamp(m.Level+k*(outcome-m.Level), 0, 100)

	m.TotalAttempts++
	if correct {
		m.CorrectAttempts++
	}
	m.LastPracticedAt = now

	if latencyMs > 0 {
		m.LatencyWindow = append(m.LatencyWindow, latencyMs)
		if len(m.LatencyWindow) > latencyWindowSize {
			m.LatencyWindow = m.LatencyWindow[len(m.LatencyWindow)-latencyWindowSize:]
		}
	}

	return *m
}

// Mastery returns the learner's record for one concept and whether any
// record exists. The returned value is a copy.
func (a *Aggregator) Mastery(learnerID, concept string) (ConceptMastery, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.concepts(learnerID)[concept]
	if !ok {
		return ConceptMastery{}, false
	}
	return *m, true
}

// All returns copies of every mastery record for a learner.
func (a *Aggregator) All(learnerID string) []ConceptMastery {
	a.mu.Lock()
	defer a.mu.Unlock()

	concepts := a.concepts(learnerID)
	out := make([]ConceptMastery, 0, len(concepts))
	for _, m := range concepts {
		out = append(out, *m)
	}
	return out
}

// concepts returns the per-learner map, creating it if needed.
// Callers must hold a.mu.
func (a *Aggregator) concepts(learnerID string) map[string]*ConceptMastery {
	concepts, ok := a.learners[learnerID]
	if !ok {
		concepts = make(map[string]*ConceptMastery)
		a.learners[learnerID] = concepts
	}
	return concepts
}

// gain returns the per-answer smoothing factor for a concept with the
// given prior attempt count. Asymptotic: maxGain at zero attempts,
// shrinking toward minGain as evidence accumulates.
func gain(attempts int) float64 {
	k := maxGain / (1.0 + float64(attempts)/gainSoftness)
	return math.Max(k, minGain)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
