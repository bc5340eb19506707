package learner

import "testing"

func TestAccuracy(t *testing.T) {
	p := &Profile{}
	if got := p.Accuracy(); got != 0 {
		t.Errorf("Accuracy with no history = %v, want 0", got)
	}
	p.LifetimeQuestions = 8
	p.LifetimeCorrect = 6
	if got := p.Accuracy(); got != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", got)
	}
}

func TestDeriveStyle(t *testing.T) {
	tests := []struct {
		name      string
		latencyMs float64
		accuracy  float64
		questions int
		want      LearningStyle
	}{
		{"too little history", 3000, 0.9, 5, StyleBalanced},
		{"fast and accurate", 3000, 0.9, 50, StyleQuick},
		{"fast and sloppy", 3000, 0.5, 50, StyleRushing},
		{"slow and accurate", 15000, 0.9, 50, StyleDeliberate},
		{"slow and sloppy", 15000, 0.5, 50, StyleBalanced},
		{"no latency data", 0, 0.9, 50, StyleDeliberate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStyle(tt.latencyMs, tt.accuracy, tt.questions)
			if got != tt.want {
				t.Errorf("DeriveStyle(%v, %v, %d) = %s, want %s",
					tt.latencyMs, tt.accuracy, tt.questions, got, tt.want)
			}
		})
	}
}
