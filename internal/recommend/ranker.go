package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
	"github.com/sarthakj/practiq/internal/questionbank"
)

// Ranker turns mastery estimates and a candidate pool into an ordered
// recommendation list.
type Ranker struct {
	cfg Config
	agg *mastery.Aggregator
}

// NewRanker creates a ranker over the given aggregator.
func NewRanker(cfg Config, agg *mastery.Aggregator) *Ranker {
	return &Ranker{cfg: cfg, agg: agg}
}

// Rank scores and orders the candidate pool for one learner. Output is
// sorted descending by score, then passed through a diversity pass so no
// two adjacent recommendations share a concept when alternatives exist.
func (r *Ranker) Rank(p *learner.Profile, pool []questionbank.Question, now time.Time) []Recommendation {
	recs := make([]Recommendation, 0, len(pool))
	for _, q := range pool {
		recs = append(recs, r.score(p, q, now))
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].Concepts[0] != recs[j].Concepts[0] {
			return recs[i].Concepts[0] < recs[j].Concepts[0]
		}
		return recs[i].QuestionID < recs[j].QuestionID
	})

	diversify(recs)
	return recs
}

// score classifies one candidate and computes its weighted score.
func (r *Ranker) score(p *learner.Profile, q questionbank.Question, now time.Time) Recommendation {
	m, known := r.agg.Mastery(p.ID, q.Concept)

	typ, prio := r.classify(p, q, m, known, now)

	rec := Recommendation{
		QuestionID: q.ID,
		Type:       typ,
		Priority:   prio,
		Concepts:   []string{q.Concept},
	}

	recency := 1.0 // never practiced is maximally stale
	if known && m.TotalAttempts > 0 && !m.LastPracticedAt.IsZero() {
		staleness := now.Sub(m.LastPracticedAt).Hours() / r.cfg.SpacedRepetitionInterval.Hours()
		recency = math.Min(staleness, 1.0)
		if recency < 0 {
			recency = 0
		}
	}

	delta := float64(q.Difficulty - learnerDifficulty(p.Grade))
	fit := 1.0 - math.Min(math.Abs(delta), 5)/5

	rec.Score = urgencyWeight*urgency(typ) + recencyWeight*recency + fitWeight*fit
	return rec
}

// classify applies the priority taxonomy to one candidate.
func (r *Ranker) classify(p *learner.Profile, q questionbank.Question, m mastery.ConceptMastery, known bool, now time.Time) (Type, Priority) {
	if !known || m.TotalAttempts == 0 {
		// Unattempted concept: frontier material.
		return TypeAdvance, PriorityMedium
	}

	switch {
	case m.Level < r.cfg.RemediateThreshold:
		return TypeRemediate, PriorityHigh

	case m.Level < r.cfg.ReviewThreshold:
		return TypeReview, PriorityMedium

	case m.Level < r.cfg.AdvanceThreshold:
		if now.Sub(m.LastPracticedAt) >= r.cfg.SpacedRepetitionInterval {
			return TypeReinforce, PriorityMedium
		}
		return TypeReview, PriorityLow

	default:
		delta := q.Difficulty - learnerDifficulty(p.Grade)
		if delta > r.cfg.ChallengeGap {
			return TypeChallenge, PriorityMedium
		}
		if delta > 0 {
			return TypeAdvance, PriorityLow
		}
		// Mastered and the question is at or below level.
		return TypeReview, PriorityLow
	}
}

// diversify reorders in place so adjacent recommendations differ in
// concept when an alternative exists further down the list. Swaps pull
// the nearest differing candidate forward, preserving relative order
// within concepts as much as possible.
func diversify(recs []Recommendation) {
	for i := 1; i < len(recs); i++ {
		if recs[i].Concepts[0] != recs[i-1].Concepts[0] {
			continue
		}
		for j := i + 1; j < len(recs); j++ {
			if recs[j].Concepts[0] != recs[i-1].Concepts[0] {
				recs[i], recs[j] = recs[j], recs[i]
				break
			}
		}
	}
}
