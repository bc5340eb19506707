package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarthakj/practiq/internal/mastery"
)

var masteryCmd = &cobra.Command{
	Use:   "mastery",
	Short: "Show per-concept mastery",
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

		all := e.agg.All(profile.ID)
		sort.Slice(all, func(i, j int) bool { return all[i].Concept < all[j].Concept })
		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintf(out, "%s has no practice history yet.\n", profile.Name)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONCEPT\tLEVEL\tACCURACY\tATTEMPTS\tLAST PRACTICED")
		for _, m := range all {
			last := "never"
			if !m.LastPracticedAt.IsZero() {
				last = m.LastPracticedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%.0f\t%.0f%%\t%d\t%s\n",
				m.Concept, m.Level, m.Accuracy()*100, m.TotalAttempts, last)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		n, _ := cmd.Flags().GetInt("top")
		printConceptList(cmd, "Strengths", e.agg.Strengths(profile.ID, n))
		printConceptList(cmd, "Needs work", e.agg.Weaknesses(profile.ID, n))
		return nil
	},
}

func init() {
	masteryCmd.Flags().Int("top", 3, "How many strengths and weaknesses to list")
}

func printConceptList(cmd *cobra.Command, label string, items []mastery.ConceptMastery) {
	if len(items) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s:", label)
	for _, m := range items {
		fmt.Fprintf(out, " %s (%.0f)", m.Concept, m.Level)
	}
	fmt.Fprintln(out)
}
