package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarthakj/practiq/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a learner and all their history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		name, _ := cmd.Flags().GetString("learner")
		if name == "" {
			return errors.New("--learner is required")
		}
		profile, err := e.store.ProfileByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no learner named %q", name)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Fprintf(out, "Delete all data for %s? Type 'yes' to confirm: ", name)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "yes" {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := e.store.Reset(ctx, profile.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s.\n", name)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}
