package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hoplink/internal/media"
)

var flagBrowse bool

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show the latest items of every configured category",
	Args:  cobra.NoArgs,
	RunE:  homeRun,
}

func init() {
	homeCmd.Flags().BoolVarP(&flagBrowse, "browse", "b", false, "Pick an item and resolve it")
}

func homeRun(cmd *cobra.Command, args []string) error {
	svc, err := newSearchService()
	if err != nil {
		return err
	}
	sections := svc.Home(cmd.Context())

	if !flagBrowse {
		return printSections(os.Stdout, sections)
	}

	var items []media.SearchItem
	for _, s := range sections {
		items = append(items, s.Items...)
	}
	if len(items) == 0 {
		fmt.Println("No content found.")
		return nil
	}

	selected, err := pickItem("Home", items)
	if err != nil {
		return err
	}
	return resolveItem(cmd, selected)
}
