package mastery

import "sort"

// Strengths returns the learner's top-n concepts by mastery level among
// concepts with at least one attempt, excluding the general pseudo-concept.
func (a *Aggregator) Strengths(learnerID string, n int) []ConceptMastery {
	ranked := a.attempted(learnerID)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Level != ranked[j].Level {
			return ranked[i].Level > ranked[j].Level
		}
		return ranked[i].Concept < ranked[j].Concept
	})
	return truncate(ranked, n)
}

// Weaknesses returns the learner's bottom-n concepts by mastery level.
// A concept that also qualifies as a strength (possible only when fewer
// concepts exist than 2n) is kept in the strength list and dropped here,
// so the two lists never give contradictory guidance.
func (a *Aggregator) Weaknesses(learnerID string, n int) []ConceptMastery {
	strengths := a.Strengths(learnerID, n)
	inStrengths := make(map[string]bool, len(strengths))
	for _, s := range strengths {
		inStrengths[s.Concept] = true
	}

	ranked := a.attempted(learnerID)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Level != ranked[j].Level {
			return ranked[i].Level < ranked[j].Level
		}
		return ranked[i].Concept < ranked[j].Concept
	})

	var out []ConceptMastery
	for _, m := range ranked {
		if inStrengths[m.Concept] {
			continue
		}
		out = append(out, m)
		if len(out) == n {
			break
		}
	}
	return out
}

// attempted returns copies of records with attempts > 0, general excluded.
func (a *Aggregator) attempted(learnerID string) []ConceptMastery {
	all := a.All(learnerID)
	out := make([]ConceptMastery, 0, len(all))
	for _, m := range all {
		if m.TotalAttempts == 0 || m.Concept == GeneralConcept {
			continue
		}
		out = append(out, m)
	}
	return out
}

func truncate(list []ConceptMastery, n int) []ConceptMastery {
	if n >= 0 && len(list) > n {
		return list[:n]
	}
	return list
}
