package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear the saved session",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the saved session contains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := session.NewStore(cfg.SessionFile, log.Default())
		state, err := store.Load()
		switch {
		case errors.Is(err, session.ErrMissing):
			fmt.Println("No saved session.")
			return nil
		case err != nil:
			return err
		}

		fmt.Printf("Session file: %s\n", store.Path())
		fmt.Printf("Last updated: %s\n", state.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Patterns:     %d completed, %d skipped\n",
			len(state.CompletedPatternIDs), len(state.SkippedPatternIDs))
		fmt.Printf("Created:      %d units, %d foods, %d aliases\n",
			state.Stats.UnitsCreated, state.Stats.FoodsCreated, state.Stats.AliasesAdded)
		fmt.Printf("Updated:      %d ingredients in %d recipes\n",
			state.Stats.IngredientsUpdated, len(state.ProcessedRecipeIDs))
		if n := len(state.RecentOperations); n > 0 {
			fmt.Printf("\nLast %d operations:\n", n)
			for _, op := range state.RecentOperations {
				fmt.Printf("  %s  %-16s %-16s %4d  %s\n",
					op.Timestamp.Local().Format("15:04:05"),
					op.Op, op.PatternID, op.Count, op.Status)
			}
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := session.NewStore(cfg.SessionFile, log.Default())
		if err := store.Discard(); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
