package grade

import (
	"fmt"
	"strconv"
)

// Grade is a school grade level. Kindergarten is the floor; Max is the
// ceiling past which no learner is advanced.
type Grade int

const (
	K Grade = iota
	First
	Second
	Third
	Fourth
	Fifth
	Sixth
)

// Min and Max bound the grade ladder.
const (
	Min = K
	Max = Sixth
)

// All returns every grade in ascending order.
func All() []Grade {
	grades := make([]Grade, 0, int(Max)+1)
	for g := Min; g <= Max; g++ {
		grades = append(grades, g)
	}
	return grades
}

// Next returns the grade one level up. ok is false at the ceiling.
func (g Grade) Next() (Grade, bool) {
	if g >= Max {
		return Max, false
	}
	return g + 1, true
}

// Prev returns the grade one level down. ok is false at the floor.
func (g Grade) Prev() (Grade, bool) {
	if g <= Min {
		return Min, false
	}
	return g - 1, true
}

// Clamp restricts g to the valid [Min, Max] range.
func (g Grade) Clamp() Grade {
	if g < Min {
		return Min
	}
	if g > Max {
		return Max
	}
	return g
}

// String returns "K" for kindergarten, otherwise the grade number.
func (g Grade) String() string {
	if g == K {
		return "K"
	}
	return strconv.Itoa(int(g))
}

// Label returns a human-readable name, e.g. "Grade 3".
func (g Grade) Label() string {
	if g == K {
		return "Kindergarten"
	}
	return "Grade " + strconv.Itoa(int(g))
}

// Parse converts "K" or a grade number back to a Grade.
func Parse(s string) (Grade, error) {
	if s == "K" || s == "k" {
		return K, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return K, fmt.Errorf("invalid grade %q", s)
	}
	g := Grade(n)
	if g < Min || g > Max {
		return K, fmt.Errorf("grade %d out of range [%s, %s]", n, Min, Max)
	}
	return g, nil
}
