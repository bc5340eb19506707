package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Show ranked practice recommendations",
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
		if err := e.hydrateMastery(ctx, profile.ID); err != nil {
			return err
		}

		poolSize, _ := cmd.Flags().GetInt("pool")
		pool, err := e.bank.NextQuestions(ctx, profile.Grade, "", nil, poolSize)
		if err != nil {
			return fmt.Errorf("build candidate pool: %w", err)
		}

		recs := e.ranker.Rank(profile, pool, time.Now())
		count, _ := cmd.Flags().GetInt("count")
		if len(recs) > count {
			recs = recs[:count]
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tTYPE\tPRIORITY\tCONCEPT\tQUESTION")
		for _, r := range recs {
			fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n",
				r.Score, r.Type, r.Priority, strings.Join(r.Concepts, ","), r.QuestionID)
		}
		return w.Flush()
	},
}

func init() {
	recommendCmd.Flags().Int("count", 10, "Number of recommendations to show")
	recommendCmd.Flags().Int("pool", 40, "Candidate pool size drawn from the question bank")
}
