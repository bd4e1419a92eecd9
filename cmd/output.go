package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"hoplink/internal/media"
	"hoplink/internal/provider"
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	styleLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleURL    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleError  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1)
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)

// styled reports whether stdout is a terminal and styling should be applied.
func styled() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func render(s lipgloss.Style, text string) string {
	if !styled() {
		return text
	}
	return s.Render(text)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes a resolution result. A failure result is printed and
// also returned as an error so the process exits non-zero.
func printResult(w io.Writer, res media.Result) error {
	if flagJSON {
		if err := printJSON(w, res); err != nil {
			return err
		}
		if res.Kind == media.KindFailure {
			return fmt.Errorf("%s", res.Failure.Message)
		}
		return nil
	}

	switch res.Kind {
	case media.KindSingle:
		if res.Filename != "" {
			fmt.Fprintln(w, render(styleTitle, res.Filename))
		}
		fmt.Fprintln(w, render(styleURL, res.URL))
	case media.KindMultiServer:
		if res.Filename != "" {
			fmt.Fprintln(w, render(styleTitle, res.Filename))
		}
		if len(res.Streams) == 0 {
			fmt.Fprintln(w, render(styleLabel, "No usable servers after filtering."))
		}
		for _, s := range res.Streams {
			label := s.ServerName
			if s.IsArchive {
				label += " (archive)"
			}
			fmt.Fprintf(w, "%s %s\n  %s\n", render(styleBadge, s.Quality.String()), label, render(styleURL, s.URL))
		}
	case media.KindListing:
		for i, it := range res.Items {
			fmt.Fprintf(w, "%s %s\n", render(styleLabel, fmt.Sprintf("%2d.", i+1)), it.Title)
			fmt.Fprintf(w, "    %s\n", render(styleLabel, it.Key))
		}
	default:
		fmt.Fprintf(w, "%s %s\n", render(styleError, res.Failure.Kind.String()+":"), res.Failure.Message)
		return fmt.Errorf("%s", res.Failure.Message)
	}
	return nil
}

func printItems(w io.Writer, items []media.SearchItem) error {
	if flagJSON {
		return printJSON(w, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	for _, it := range items {
		fmt.Fprintln(w, provider.FormatDisplayTitle(it))
		fmt.Fprintf(w, "  %s\n", render(styleURL, it.Link))
	}
	return nil
}

func printSections(w io.Writer, sections []media.Section) error {
	if flagJSON {
		return printJSON(w, sections)
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, render(styleHeader, s.Name))
		if len(s.Items) == 0 {
			fmt.Fprintln(w, render(styleLabel, "  (nothing available)"))
			continue
		}
		for _, it := range s.Items {
			fmt.Fprintf(w, "  %s\n", provider.FormatDisplayTitle(it))
		}
	}
	return nil
}

func printKV(w io.Writer, pairs ...string) {
	width := 0
	for i := 0; i < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		key := pairs[i] + ":" + strings.Repeat(" ", width-len(pairs[i]))
		fmt.Fprintf(w, "%s %s\n", render(styleLabel, key), pairs[i+1])
	}
}
