package rewards

import (
	"github.com/sarthakj/practiq/internal/grade"
)

// Rules is the externally configured reward policy. Different practice
// modules ship different constants, so nothing in here is hard-coded at
// the call sites.
type Rules struct {
	// GroupSize is the number of correct answers per token group.
	GroupSize int

	// TokensPerGroup is the base credit per full group of correct answers.
	TokensPerGroup int

	// PerfectBonus is the extra credit for a flawless full-length session.
	PerfectBonus int

	// ExpectedQuestionCount is the session length a perfect bonus requires.
	ExpectedQuestionCount int

	// AssessmentBonus is the one-time credit for completing a placement
	// assessment.
	AssessmentBonus int

	// StreakMilestones are the consecutive-correct counts that each award
	// StreakBonusTokens once per session.
	StreakMilestones []int

	// StreakBonusTokens is the credit per streak milestone crossed.
	StreakBonusTokens int

	// TimeMilestonesMinutes are the elapsed-minute thresholds that each
	// award TimeBonusTokens once per session.
	TimeMilestonesMinutes []int

	// TimeBonusTokens is the credit per time milestone crossed.
	TimeBonusTokens int

	// GradeTokenThresholds maps a target grade to the cumulative token
	// balance that unlocks promotion into it.
	GradeTokenThresholds map[grade.Grade]int
}

// Summary is the slice of a session outcome the calculator needs.
type Summary struct {
	Correct int
	Total   int
}

// ComputeTokens converts a session outcome into a token amount.
// Pure: base credit per full group of correct answers, plus the perfect
// bonus when every answer in a full-length session was correct.
// Never negative, and monotonically non-decreasing in Correct.
func ComputeTokens(sum Summary, rules Rules) int {
	if sum.Correct < 0 || rules.GroupSize <= 0 {
		return 0
	}

	base := (sum.Correct / rules.GroupSize) * rules.TokensPerGroup

	bonus := 0
	if sum.Total > 0 && sum.Correct == sum.Total && sum.Total == rules.ExpectedQuestionCount {
		bonus = rules.PerfectBonus
	}

	total := base + bonus
	if total < 0 {
		return 0
	}
	return total
}

// CrossedMilestones returns the milestones in thresholds that lie in
// (prev, current]. Used for both streak and time-on-task bonuses; each
// crossing is awarded exactly once because callers advance prev.
func CrossedMilestones(prev, current int, thresholds []int) []int {
	var crossed []int
	for _, t := range thresholds {
		if t > prev && t <= current {
			crossed = append(crossed, t)
		}
	}
	return crossed
}

// AdvanceByTokens decides whether a learner's balance promotes them out of
// their current grade. At most one grade per reward event, never past the
// ceiling. Returns the (possibly unchanged) grade and whether it changed.
func AdvanceByTokens(current grade.Grade, balance int, rules Rules) (grade.Grade, bool) {
	next, ok := current.Next()
	if !ok {
		return current, false
	}
	threshold, ok := rules.GradeTokenThresholds[next]
	if !ok || balance < threshold {
		return current, false
	}
	return next, true
}
