package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarthakj/practiq/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "practiq",
	Short: "Adaptive math practice for kids",
	Long:  "Practiq — terminal practice engine that places learners at the right grade level, adapts question selection to concept mastery, and rewards progress with tokens.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PRACTIQ_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().String("learner", "", "Learner name")
	rootCmd.PersistentFlags().String("grade", "3", "Starting grade for a new learner (K-6)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(masteryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then PRACTIQ_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
