package grade

import "testing"

func TestNext_StopsAtCeiling(t *testing.T) {
	g := Fifth
	next, ok := g.Next()
	if !ok || next != Sixth {
		t.Errorf("Next(5) = %s, %v, want 6, true", next, ok)
	}

	next, ok = Sixth.Next()
	if ok {
		t.Errorf("Next(6) ok = true, want false")
	}
	if next != Sixth {
		t.Errorf("Next(6) = %s, want 6", next)
	}
}

func TestPrev_StopsAtFloor(t *testing.T) {
	prev, ok := First.Prev()
	if !ok || prev != K {
		t.Errorf("Prev(1) = %s, %v, want K, true", prev, ok)
	}

	prev, ok = K.Prev()
	if ok {
		t.Errorf("Prev(K) ok = true, want false")
	}
	if prev != K {
		t.Errorf("Prev(K) = %s, want K", prev)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Grade
		wantErr bool
	}{
		{"K", K, false},
		{"k", K, false},
		{"1", First, false},
		{"6", Sixth, false},
		{"7", K, true},
		{"-1", K, true},
		{"abc", K, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, g := range All() {
		parsed, err := Parse(g.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", g.String(), err)
		}
		if parsed != g {
			t.Errorf("round trip %s = %s", g, parsed)
		}
	}
}
