package questionbank

import (
	"context"
	"errors"

	"github.com/sarthakj/practiq/internal/grade"
)

// ErrPoolExhausted is returned when the bank cannot serve any question
// satisfying the grade, concept, and exclusion constraints. Callers are
// expected to relax the exclusion set and retry rather than fail.
var ErrPoolExhausted = errors.New("question pool exhausted")

// AnswerType describes the numeric representation of the correct answer.
type AnswerType string

const (
	AnswerTypeInteger  AnswerType = "integer"  // e.g. "623", "-15"
	AnswerTypeDecimal  AnswerType = "decimal"  // e.g. "3.75", "0.5"
	AnswerTypeFraction AnswerType = "fraction" // e.g. "3/4", "7/2"
)

// Question is a single practice problem as supplied by the bank.
type Question struct {
	// ID uniquely identifies the question within the bank.
	ID string

	// Grade is the grade level the question is pitched at.
	Grade grade.Grade

	// Concept names the skill the question exercises, e.g. "addition".
	Concept string

	// Difficulty is the bank's difficulty rating (1-10).
	Difficulty int

	// Prompt is the question text displayed to the learner.
	Prompt string

	// Answer is the canonical correct answer as a string.
	Answer string

	// AnswerType describes the numeric type of the answer for checking.
	AnswerType AnswerType
}

// Adapter supplies problems tagged with grade, concept, and difficulty.
// The engine never generates content itself.
type Adapter interface {
	// NextQuestions returns up to count questions at the given grade,
	// optionally filtered to one concept, excluding the given IDs.
	// Returns ErrPoolExhausted when nothing satisfies the constraints.
	NextQuestions(ctx context.Context, g grade.Grade, concept string, excludeIDs []string, count int) ([]Question, error)
}
