package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hoplink/internal/history"
	"hoplink/internal/ui"
)

var (
	flagHistoryList   bool
	flagHistoryRemove bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Re-resolve a previously resolved key",
	Long: `Pick a previously resolved title and resolve it again. Only keys are
stored, so links are always fetched fresh.`,
	Args: cobra.NoArgs,
	RunE: historyRun,
}

func init() {
	historyCmd.Flags().BoolVarP(&flagHistoryList, "list", "l", false, "Print history instead of picking")
	historyCmd.Flags().BoolVar(&flagHistoryRemove, "rm", false, "Remove the picked entry instead of resolving it")
}

func historyRun(cmd *cobra.Command, args []string) error {
	store, err := history.Open()
	if err != nil {
		return err
	}
	entries, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No history entries found.")
		return nil
	}

	if flagHistoryList || flagJSON {
		if flagJSON {
			return printJSON(os.Stdout, entries)
		}
		for _, line := range history.FormatForDisplay(entries) {
			fmt.Println(line)
		}
		return nil
	}

	// Show history in fzf, newest first
	items := history.FormatForDisplay(entries)
	idx, err := ui.Select("History", items)
	if err != nil {
		return err
	}
	selected := entries[len(entries)-1-idx]

	if flagHistoryRemove {
		return store.Remove(selected.Key)
	}

	cliLog().WithField("title", selected.Title).Debug("re-resolving from history")

	r, err := newResolver()
	if err != nil {
		return err
	}
	return resolveInteractive(cmd.Context(), r, selected.Key, selected.Title)
}
