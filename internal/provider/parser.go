package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"hoplink/internal/filter"
	"hoplink/internal/httputil"
	"hoplink/internal/media"
)

// parseCards extracts the card grid of a listing or search page. Titles are
// read as plain text from the DOM, never interpreted.
func parseCards(doc *goquery.Document, base *url.URL) []media.SearchItem {
	var items []media.SearchItem

	doc.Find("a.movie-card").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(".movie-card-title").Text())
		if title == "" {
			title = strings.TrimSpace(s.AttrOr("title", ""))
		}
		if title == "" {
			return
		}

		href, _ := s.Attr("href")
		link, ok := httputil.Absolute(base, href)
		if !ok {
			return
		}

		img := s.Find("img").First()
		src := img.AttrOr("data-src", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		image, _ := httputil.Absolute(base, src)

		var formats []string
		s.Find(".movie-card-format").Each(func(_ int, f *goquery.Selection) {
			if t := strings.TrimSpace(f.Text()); t != "" {
				formats = append(formats, t)
			}
		})
		meta := strings.Join(formats, " ")

		items = append(items, media.SearchItem{
			Title:       title,
			Image:       image,
			Link:        link,
			Kind:        inferKind(title, meta, link),
			QualityTags: filter.QualityTags(title + " " + meta),
		})
	})

	return items
}

var seriesPattern = regexp.MustCompile(`(?i)\b(season\s*\d+|s\d{1,2}(e\d{1,3})?|episodes?|series|tv[ -]?show)\b`)

// inferKind guesses whether an item is a series from its title, format
// labels and link path.
func inferKind(title, meta, link string) media.MediaKind {
	if seriesPattern.MatchString(title) || seriesPattern.MatchString(meta) {
		return media.Series
	}
	if strings.Contains(link, "/series/") || strings.Contains(link, "-series-") {
		return media.Series
	}
	return media.Movie
}

// parseLastPage reads the highest page number from the pagination block.
// Pages without pagination report 1.
func parseLastPage(doc *goquery.Document) int {
	last := 1
	doc.Find(".pagination a, .page-numbers").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > last {
			last = n
		}
	})
	return last
}

// FormatDisplayTitle creates a display string for fzf selection.
func FormatDisplayTitle(item media.SearchItem) string {
	parts := []string{item.Title}
	if item.Kind == media.Series {
		parts = append(parts, "[Series]")
	} else {
		parts = append(parts, "[Movie]")
	}
	tags := lo.Filter(item.QualityTags, func(t string, _ int) bool {
		return !strings.Contains(strings.ToLower(item.Title), strings.ToLower(t))
	})
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, "/"))
	}
	if item.Source != "" {
		parts = append(parts, fmt.Sprintf("(%s)", item.Source))
	}
	return strings.Join(parts, " ")
}
