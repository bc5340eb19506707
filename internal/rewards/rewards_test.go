package rewards

import (
	"testing"

	"github.com/sarthakj/practiq/internal/grade"
)

func testRules() Rules {
	return Rules{
		GroupSize:             5,
		TokensPerGroup:        3,
		PerfectBonus:          20,
		ExpectedQuestionCount: 20,
		StreakMilestones:      []int{3, 5, 10, 20},
		StreakBonusTokens:     2,
		TimeMilestonesMinutes: []int{10, 20, 30},
		TimeBonusTokens:       5,
		GradeTokenThresholds: map[grade.Grade]int{
			grade.First:  50,
			grade.Fourth: 300,
			grade.Sixth:  600,
		},
	}
}

func TestComputeTokens_PerfectSession(t *testing.T) {
	// 20/20 with groupSize=5, tokensPerGroup=3, perfectBonus=20 → 32.
	got := ComputeTokens(Summary{Correct: 20, Total: 20}, testRules())
	if got != 32 {
		t.Errorf("ComputeTokens(20/20) = %d, want 32", got)
	}
}

func TestComputeTokens_Table(t *testing.T) {
	rules := testRules()
	tests := []struct {
		name    string
		correct int
		total   int
		want    int
	}{
		{"zero", 0, 20, 0},
		{"below group", 4, 20, 0},
		{"one group", 5, 20, 3},
		{"partial group discarded", 9, 20, 3},
		{"three groups", 15, 20, 9},
		{"perfect but short session", 10, 10, 6}, // total != expected, no bonus
		{"all correct but not all answered", 15, 15, 9},
		{"negative correct", -1, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTokens(Summary{Correct: tt.correct, Total: tt.total}, rules)
			if got != tt.want {
				t.Errorf("ComputeTokens(%d/%d) = %d, want %d", tt.correct, tt.total, got, tt.want)
			}
		})
	}
}

func TestComputeTokens_MonotoneInCorrect(t *testing.T) {
	rules := testRules()
	prev := 0
	for correct := 0; correct <= 20; correct++ {
		got := ComputeTokens(Summary{Correct: correct, Total: 20}, rules)
		if got < prev {
			t.Fatalf("ComputeTokens(%d/20) = %d < previous %d", correct, got, prev)
		}
		prev = got
	}
}

func TestCrossedMilestones(t *testing.T) {
	thresholds := []int{3, 5, 10, 20}
	tests := []struct {
		prev, current int
		want          []int
	}{
		{0, 2, nil},
		{2, 3, []int{3}},
		{0, 5, []int{3, 5}}, // streak of 5 crosses 3 then 5: two bonuses
		{5, 5, nil},         // already awarded, not re-triggered
		{4, 6, []int{5}},
		{9, 25, []int{10, 20}},
	}

	for _, tt := range tests {
		got := CrossedMilestones(tt.prev, tt.current, thresholds)
		if len(got) != len(tt.want) {
			t.Errorf("CrossedMilestones(%d, %d) = %v, want %v", tt.prev, tt.current, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("CrossedMilestones(%d, %d) = %v, want %v", tt.prev, tt.current, got, tt.want)
				break
			}
		}
	}
}

func TestAdvanceByTokens(t *testing.T) {
	rules := testRules()

	g, advanced := AdvanceByTokens(grade.Third, 300, rules)
	if !advanced || g != grade.Fourth {
		t.Errorf("AdvanceByTokens(3, 300) = %s, %v, want 4, true", g, advanced)
	}

	g, advanced = AdvanceByTokens(grade.Third, 299, rules)
	if advanced || g != grade.Third {
		t.Errorf("AdvanceByTokens(3, 299) = %s, %v, want 3, false", g, advanced)
	}

	// No threshold configured for the next grade: no advancement.
	g, advanced = AdvanceByTokens(grade.First, 100000, rules)
	if advanced {
		t.Errorf("AdvanceByTokens(1, huge) advanced without a threshold")
	}

	// Never more than one grade per event even with a huge balance.
	g, advanced = AdvanceByTokens(grade.Third, 100000, rules)
	if g != grade.Fourth {
		t.Errorf("AdvanceByTokens(3, huge) = %s, want exactly one step to 4", g)
	}
}

func TestAdvanceByTokens_CeilingHolds(t *testing.T) {
	rules := testRules()

	g, advanced := AdvanceByTokens(grade.Sixth, 10000, rules)
	if advanced || g != grade.Sixth {
		t.Errorf("AdvanceByTokens(ceiling) = %s, %v, want 6, false", g, advanced)
	}
}
