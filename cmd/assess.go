package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarthakj/practiq/internal/session"
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run a grade placement assessment",
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

		s, probe, err := e.assessor.Start(ctx, profile.ID)
		if err != nil {
			var conflict *session.ConflictError
			if errors.As(err, &conflict) {
				return fmt.Errorf("another %s session is already active (started %s ago)",
					conflict.Kind, conflict.Age.Round(time.Second))
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Placement assessment for %s, starting at grade %s.\n\n",
			profile.Name, probe.Grade.String())

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprintf(out, "[grade %s, probe %d] %s\n> ",
				probe.Grade.String(), probe.Index, probe.Question.Prompt)

			answer, quit := readAnswer(scanner)
			if quit {
				if err := e.assessor.Abandon(ctx, s.ID); err != nil {
					return err
				}
				fmt.Fprintln(out, "Assessment abandoned; no placement recorded.")
				return nil
			}

			outcome, err := e.assessor.SubmitProbe(ctx, s.ID, probe.Question.ID, answer)
			if errors.Is(err, session.ErrInvalidAnswer) {
				fmt.Fprintln(out, "Please type an answer.")
				continue
			}
			if err != nil {
				return finishOnError(e, s.ID, err)
			}

			if outcome.Correct {
				fmt.Fprintln(out, "Correct!")
			} else {
				fmt.Fprintf(out, "Not quite. The answer is %s.\n", outcome.CorrectAnswer)
			}

			if outcome.Result != nil {
				r := outcome.Result
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Placement: grade %s (%d/%d probes correct)\n",
					r.Placement.String(), r.ProbesCorrect, r.ProbesAsked)
				if r.BonusTokens > 0 {
					fmt.Fprintf(out, "+%d tokens for completing the assessment.\n", r.BonusTokens)
				}
				return nil
			}
			fmt.Fprintln(out)
			probe = outcome.NextProbe
		}
	},
}
