// Package search merges results from the local scraper and the official
// catalogue and aggregates the home page.
package search

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"

	"hoplink/internal/media"
)

// Source tags stamped on merged items.
const (
	SourceLocal    = "local"
	SourceOfficial = "official"
)

var (
	downloadPrefix = regexp.MustCompile(`(?i)^\s*download\s+`)
	yearToken      = regexp.MustCompile(`[(\[]\s*\d{4}\s*[)\]]`)
	seasonMarkers  = regexp.MustCompile(`(?i)\b(season\s*\d+|s\d{1,2}(e\d{1,3})?|vol(ume)?\.?\s*\d+|complete)\b`)
	separators     = strings.NewReplacer(":", " ", "-", " ")
)

// NormalizeTitle reduces a title to its base key for series deduplication.
// e.g., "Show Name (2023) Season 1" -> "show name"
func NormalizeTitle(title string) string {
	s := downloadPrefix.ReplaceAllString(title, "")
	s = yearToken.ReplaceAllString(s, " ")
	s = seasonMarkers.ReplaceAllString(s, " ")
	s = separators.Replace(s)
	s = unidecode.Unidecode(s)
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if s == "" {
		return strings.ToLower(strings.TrimSpace(title))
	}
	return s
}

// Merge returns local items followed by official items, each tagged with its
// origin. Movies are always kept; a series is kept only the first time its
// normalized title is seen.
func Merge(local, official []media.SearchItem) []media.SearchItem {
	out := make([]media.SearchItem, 0, len(local)+len(official))
	seen := make(map[string]bool)

	add := func(items []media.SearchItem, source string) {
		for _, it := range items {
			it.Source = source
			if it.Kind == media.Series {
				key := NormalizeTitle(it.Title)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, it)
		}
	}

	add(local, SourceLocal)
	add(official, SourceOfficial)
	return out
}
