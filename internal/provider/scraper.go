package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"hoplink/internal/extract"
	"hoplink/internal/httputil"
	"hoplink/internal/media"
)

// Scraper reads the card grid of a WordPress-style hosting site.
type Scraper struct {
	base  string // e.g., "https://4khdhub.fans"
	fetch extract.Fetcher
	log   *logrus.Entry
}

// NewScraper creates a Scraper for the site at base.
func NewScraper(base string, f extract.Fetcher, log *logrus.Entry) *Scraper {
	return &Scraper{base: strings.TrimRight(base, "/"), fetch: f, log: log}
}

func (s *Scraper) Name() string { return "site" }

// maxSearchPages limits how many pages of search results to fetch.
const maxSearchPages = 3

// Search returns matching results for a query, fetching multiple pages.
func (s *Scraper) Search(ctx context.Context, query string) ([]media.SearchItem, error) {
	encoded := httputil.EncodeQuery(query)
	firstURL := fmt.Sprintf("%s/?s=%s", s.base, encoded)

	doc, base, err := s.fetchDocument(ctx, firstURL)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}

	items := parseCards(doc, base)
	pages := min(parseLastPage(doc), maxSearchPages)

	for page := 2; page <= pages; page++ {
		pageURL := fmt.Sprintf("%s/page/%d/?s=%s", s.base, page, encoded)
		pageDoc, pageBase, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			// Stop on error but return what we have
			if s.log != nil {
				s.log.WithError(err).WithField("page", page).Debug("search page failed")
			}
			break
		}
		items = append(items, parseCards(pageDoc, pageBase)...)
	}

	return items, nil
}

// Category returns the items of a category page such as "/category/movies".
func (s *Scraper) Category(ctx context.Context, path string) ([]media.SearchItem, error) {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	pageURL := httputil.BuildURL(s.base, segments...)

	doc, base, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("getting category %s: %w", path, err)
	}
	return parseCards(doc, base), nil
}

// fetchDocument fetches a URL and parses it into a goquery Document.
func (s *Scraper) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	resp, err := s.fetch.Fetch(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, err := url.Parse(resp.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing final URL: %w", err)
	}
	return doc, base, nil
}
