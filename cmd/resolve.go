package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hoplink/internal/history"
	"hoplink/internal/keycodec"
	"hoplink/internal/media"
	"hoplink/internal/resolver"
	"hoplink/internal/ui"
)

var flagPick bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <key|url>",
	Short: "Resolve a key or hosting URL into stream links",
	Args:  cobra.ExactArgs(1),
	RunE:  resolveRun,
}

func init() {
	resolveCmd.Flags().BoolVarP(&flagPick, "pick", "p", false, "Pick from listings interactively and resolve the choice")
}

func resolveRun(cmd *cobra.Command, args []string) error {
	r, err := newResolver()
	if err != nil {
		return err
	}
	if flagPick {
		return resolveInteractive(cmd.Context(), r, args[0], "")
	}
	res := resolveAndRecord(cmd.Context(), r, args[0], "")
	return printResult(os.Stdout, res)
}

// resolveAndRecord resolves input and, on success, records its key in the
// history. Raw URLs are stored as freshly encoded keys.
func resolveAndRecord(ctx context.Context, r *resolver.Resolver, input, title string) media.Result {
	res := r.Resolve(ctx, media.Request{Input: input, AllServers: flagAll})
	if res.Kind == media.KindFailure || !cfg.History {
		return res
	}

	p, err := keycodec.Parse(input)
	if err != nil {
		return res
	}
	if title == "" {
		title = p.Title
	}
	if title == "" {
		title = res.Filename
	}
	key, err := keycodec.Encode(keycodec.Payload{URL: p.URL, Title: title, Poster: p.Poster, Source: p.Source, Quality: p.Quality})
	if err != nil {
		return res
	}

	store, err := history.Open()
	if err == nil {
		err = store.Save(media.HistoryEntry{
			Key:        key,
			Title:      title,
			Family:     r.Classify(p.URL),
			ResolvedAt: time.Now().Unix(),
		})
	}
	if err != nil {
		cliLog().WithError(err).Debug("saving history failed")
	}
	return res
}

// resolveInteractive resolves input and keeps descending into listings
// until a link result is reached.
func resolveInteractive(ctx context.Context, r *resolver.Resolver, input, title string) error {
	for {
		res := resolveAndRecord(ctx, r, input, title)
		if res.Kind != media.KindListing || flagJSON {
			return printResult(os.Stdout, res)
		}
		if len(res.Items) == 0 {
			return fmt.Errorf("listing is empty")
		}

		labels := make([]string, len(res.Items))
		for i, it := range res.Items {
			labels[i] = it.Title
		}
		idx, err := ui.Select("Select", labels)
		if err != nil {
			return err
		}
		input, title = res.Items[idx].Key, res.Items[idx].Title
	}
}
