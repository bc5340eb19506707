package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarthakj/practiq/internal/session"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Start a practice session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		profile, err := e.learnerProfile(ctx, cmd)
		if err != nil {
			return err
		}

		cfg, err := sessionConfig(cmd)
		if err != nil {
			return err
		}

		s, err := e.coord.StartPractice(ctx, profile.ID, cfg)
		if err != nil {
			var conflict *session.ConflictError
			if errors.As(err, &conflict) {
				return fmt.Errorf("another %s session is already active (started %s ago)",
					conflict.Kind, conflict.Age.Round(time.Second))
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Practice session for %s (grade %s). Type an answer, or 'quit' to finish early.\n\n",
			profile.Name, profile.Grade.String())

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			q, err := e.coord.NextQuestion(ctx, s.ID)
			if err != nil {
				return finishOnError(e, s.ID, err)
			}
			fmt.Fprintf(out, "[%s] %s\n> ", q.Concept, q.Prompt)

			answer, quit := readAnswer(scanner)
			if quit {
				summary, err := e.coord.Complete(ctx, s.ID)
				if err != nil {
					return err
				}
				printSummary(cmd, summary)
				return nil
			}

			outcome, err := e.coord.SubmitAnswer(ctx, s.ID, q.ID, answer)
			if errors.Is(err, session.ErrInvalidAnswer) {
				fmt.Fprintln(out, "Please type an answer.")
				continue
			}
			if err != nil {
				return finishOnError(e, s.ID, err)
			}

			if outcome.Correct {
				fmt.Fprintf(out, "Correct! Streak: %d", outcome.Streak)
			} else {
				fmt.Fprintf(out, "Not quite. The answer is %s.", outcome.CorrectAnswer)
			}
			if outcome.BonusTokens > 0 {
				fmt.Fprintf(out, "  +%d bonus tokens!", outcome.BonusTokens)
			}
			fmt.Fprintln(out)

			if outcome.Completed {
				printSummary(cmd, outcome.Summary)
				return nil
			}
			fmt.Fprintln(out)
		}
	},
}

func init() {
	practiceCmd.Flags().Int("questions", 10, "Number of questions in the session")
	practiceCmd.Flags().Int("minutes", 0, "Session length in minutes (overrides --questions)")
	practiceCmd.Flags().String("concept", "", "Pin the session to one concept")
}

func sessionConfig(cmd *cobra.Command) (session.Config, error) {
	concept, _ := cmd.Flags().GetString("concept")
	if minutes, _ := cmd.Flags().GetInt("minutes"); minutes > 0 {
		return session.Config{
			TargetType:  session.TargetDuration,
			TargetValue: minutes * 60,
			Concept:     concept,
		}, nil
	}
	questions, _ := cmd.Flags().GetInt("questions")
	if questions <= 0 {
		return session.Config{}, fmt.Errorf("--questions must be positive, got %d", questions)
	}
	return session.Config{
		TargetType:  session.TargetQuestions,
		TargetValue: questions,
		Concept:     concept,
	}, nil
}

// readAnswer reads one line, reporting quit on EOF or an explicit quit.
func readAnswer(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", true
	}
	line := strings.TrimSpace(scanner.Text())
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return "", true
	}
	return line, false
}

// finishOnError maps session lifecycle errors to user-facing messages.
func finishOnError(e *engine, sessionID string, err error) error {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		return errors.New("session expired after inactivity; start a new one")
	case errors.Is(err, session.ErrSessionAlreadyCompleted):
		return errors.New("session already finished")
	default:
		e.log.Error("session failed", "session", sessionID, "error", err)
		return err
	}
}

func printSummary(cmd *cobra.Command, s *session.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Session complete: %d/%d correct (%.0f%%) in %s\n",
		s.Correct, s.Total, s.Accuracy*100, s.Elapsed.Round(time.Second))
	fmt.Fprintf(out, "Best streak: %d   Tokens earned: %d\n", s.BestStreak, s.TokensAwarded)
	if s.GradeAdvanced {
		fmt.Fprintf(out, "Advanced to grade %s!\n", s.NewGrade.String())
	}
}
