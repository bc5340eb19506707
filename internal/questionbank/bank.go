package questionbank

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sarthakj/practiq/internal/grade"
)

// Bank is an in-memory Adapter backed by a fixed question catalog.
// It is the default collaborator for the CLI and for tests; a production
// deployment would swap in a remote content service behind the same
// Adapter interface.
type Bank struct {
	mu        sync.Mutex
	questions []Question
	rng       *rand.Rand
}

// NewBank creates a bank over an explicit question catalog.
func NewBank(questions []Question) *Bank {
	return &Bank{
		questions: questions,
		rng:       rand.New(rand.NewSource(int64(len(questions)))),
	}
}

// NextQuestions returns up to count questions at the given grade, optionally
// filtered to one concept, excluding the given IDs. Candidates are served in
// random order so repeated sessions do not replay the catalog verbatim.
func (b *Bank) NextQuestions(ctx context.Context, g grade.Grade, concept string, excludeIDs []string, count int) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var candidates []Question
	for _, q := range b.questions {
		if q.Grade != g {
			continue
		}
		if concept != "" && q.Concept != concept {
			continue
		}
		if excluded[q.ID] {
			continue
		}
		candidates = append(candidates, q)
	}

	if len(candidates) == 0 {
		return nil, ErrPoolExhausted
	}

	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates, nil
}

// gradeConcepts lists which concepts have catalog coverage at each grade.
func gradeConcepts(g grade.Grade) []string {
	switch g {
	case grade.K:
		return []string{"counting", "addition"}
	case grade.First:
		return []string{"addition", "subtraction"}
	case grade.Second:
		return []string{"addition", "subtraction", "place-value"}
	case grade.Third:
		return []string{"addition", "subtraction", "multiplication", "division"}
	case grade.Fourth:
		return []string{"multiplication", "division", "fractions"}
	case grade.Fifth:
		return []string{"multiplication", "fractions", "decimals"}
	default:
		return []string{"fractions", "decimals", "ratios"}
	}
}

// SeedBank builds a deterministic arithmetic catalog covering every grade
// and concept, sized questionsPerConcept deep. Prompts and answers are
// generated from a fixed seed so test runs are reproducible.
func SeedBank(questionsPerConcept int) *Bank {
	rng := rand.New(rand.NewSource(42))
	var questions []Question

	for _, g := range grade.All() {
		for _, concept := range gradeConcepts(g) {
			for i := 0; i < questionsPerConcept; i++ {
				questions = append(questions, generate(rng, g, concept, i))
			}
		}
	}
	return NewBank(questions)
}

// generate builds one catalog question for a grade/concept pair.
func generate(rng *rand.Rand, g grade.Grade, concept string, ordinal int) Question {
	// Operand magnitude scales with grade.
	limit := 10
	for lvl := grade.Min; lvl < g; lvl++ {
		limit *= 2
	}
	a := rng.Intn(limit) + 1
	b := rng.Intn(limit) + 1

	q := Question{
		ID:         fmt.Sprintf("%s-%s-%03d", g, concept, ordinal),
		Grade:      g,
		Concept:    concept,
		Difficulty: baseDifficulty(g) + rng.Intn(3) - 1,
		AnswerType: AnswerTypeInteger,
	}
	if q.Difficulty < 1 {
		q.Difficulty = 1
	}
	if q.Difficulty > 10 {
		q.Difficulty = 10
	}

	switch concept {
	case "counting":
		q.Prompt = fmt.Sprintf("What number comes after %d?", a)
		q.Answer = fmt.Sprint(a + 1)
	case "addition":
		q.Prompt = fmt.Sprintf("What is %d + %d?", a, b)
		q.Answer = fmt.Sprint(a + b)
	case "subtraction":
		if b > a {
			a, b = b, a
		}
		q.Prompt = fmt.Sprintf("What is %d - %d?", a, b)
		q.Answer = fmt.Sprint(a - b)
	case "place-value":
		n := a*100 + b
		q.Prompt = fmt.Sprintf("What digit is in the tens place of %d?", n)
		q.Answer = fmt.Sprint((n / 10) % 10)
	case "multiplication":
		a = a%12 + 1
		b = b%12 + 1
		q.Prompt = fmt.Sprintf("What is %d x %d?", a, b)
		q.Answer = fmt.Sprint(a * b)
	case "division":
		a = a%12 + 1
		b = b%12 + 1
		q.Prompt = fmt.Sprintf("What is %d / %d?", a*b, b)
		q.Answer = fmt.Sprint(a)
	case "fractions":
		den := b%8 + 2
		num := a % den
		if num == 0 {
			num = 1
		}
		// The displayed answer must itself be in lowest terms.
		d := int(gcd(int64(num), int64(den)))
		q.Prompt = fmt.Sprintf("Simplify %d/%d to lowest terms.", num*2, den*2)
		q.Answer = fmt.Sprintf("%d/%d", num/d, den/d)
		q.AnswerType = AnswerTypeFraction
	case "decimals":
		whole := a%10 + b%10
		frac := b%10 + a%10
		q.Prompt = fmt.Sprintf("What is %d.%d + %d.%d?", a%10, b%10, b%10, a%10)
		q.Answer = fmt.Sprintf("%d.%d", whole+frac/10, frac%10)
		q.AnswerType = AnswerTypeDecimal
	case "ratios":
		k := b%5 + 2
		q.Prompt = fmt.Sprintf("If the ratio is %d:%d, how many in the second group when the first has %d?", a, a*k, a)
		q.Answer = fmt.Sprint(a * k)
	}
	return q
}

// baseDifficulty maps a grade to the midpoint of its difficulty band.
func baseDifficulty(g grade.Grade) int {
	return int(g) + 2
}
