package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hoplink/internal/keycodec"
	"hoplink/internal/media"
	"hoplink/internal/provider"
	"hoplink/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search both catalogues and print merged results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newSearchService()
		if err != nil {
			return err
		}
		items := svc.Search(cmd.Context(), strings.Join(args, " "))
		return printItems(os.Stdout, items)
	},
}

// searchRun is the default command: hoplink <query>
func searchRun(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if query == "" {
		// Prompt for query via fzf
		var err error
		query, err = ui.Input("Search")
		if err != nil {
			return fmt.Errorf("no search query provided")
		}
	}

	cliLog().WithField("query", query).Debug("searching")

	svc, err := newSearchService()
	if err != nil {
		return err
	}
	items := svc.Search(cmd.Context(), query)
	if len(items) == 0 {
		return fmt.Errorf("no results found for %q", query)
	}

	selected, err := pickItem("Select", items)
	if err != nil {
		return err
	}
	return resolveItem(cmd, selected)
}

func pickItem(prompt string, items []media.SearchItem) (media.SearchItem, error) {
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = provider.FormatDisplayTitle(it)
	}
	idx, err := ui.Select(prompt, labels)
	if err != nil {
		return media.SearchItem{}, err
	}
	return items[idx], nil
}

// resolveItem encodes a search item as a key and resolves it.
func resolveItem(cmd *cobra.Command, item media.SearchItem) error {
	key, err := keycodec.Encode(keycodec.Payload{
		URL:    item.Link,
		Title:  item.Title,
		Poster: item.Image,
		Source: item.Source,
	})
	if err != nil {
		return err
	}

	cliLog().WithField("title", item.Title).Debug("selected")

	r, err := newResolver()
	if err != nil {
		return err
	}
	return resolveInteractive(cmd.Context(), r, key, item.Title)
}
