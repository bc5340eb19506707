package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
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
		stats, err := e.store.Stats(ctx, profile.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Learner:            %s\n", profile.Name)
		fmt.Fprintf(out, "Grade:              %s\n", profile.Grade.String())
		fmt.Fprintf(out, "Token balance:      %d\n", profile.TokenBalance)
		fmt.Fprintf(out, "Learning style:     %s\n", profile.LearningStyle)
		fmt.Fprintf(out, "Sessions completed: %d\n", stats.SessionsCompleted)
		fmt.Fprintf(out, "Questions answered: %d\n", stats.QuestionsAnswered)
		fmt.Fprintf(out, "Lifetime accuracy:  %.0f%%\n", profile.Accuracy()*100)
		fmt.Fprintf(out, "Tokens earned:      %d\n", stats.TokensEarned)
		return nil
	},
}
