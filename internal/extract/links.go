package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"hoplink/internal/failure"
	"hoplink/internal/httputil"
	"hoplink/internal/media"
)

// Rules pulls server links and a filename out of a final-hop page. Upstream
// markup changes independently per family, so each family gets its own.
type Rules interface {
	Candidates(doc Document, base *url.URL) []media.StreamCandidate
	Filename(doc Document) string
}

// SelectorRules extracts anchors matching Anchors and reads the filename from
// FilenameSelector. A comma group is tried part by part, so earlier parts
// win regardless of where their nodes sit in the document.
type SelectorRules struct {
	Anchors          string
	FilenameSelector string
}

func (r SelectorRules) Candidates(doc Document, base *url.URL) []media.StreamCandidate {
	var out []media.StreamCandidate
	seen := make(map[string]bool)

	for _, n := range doc.Find(r.Anchors) {
		href, ok := n.Attr("href")
		if !ok {
			continue
		}
		c, ok := NewCandidate(base, href, n.Text())
		if !ok || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}

// NewCandidate builds a well-formed candidate from a raw reference and label:
// the URL is made absolute against base, the label is cleaned and falls back
// to the link's host. It reports false when href is not a usable http(s) link.
func NewCandidate(base *url.URL, href, label string) (media.StreamCandidate, bool) {
	abs, ok := httputil.Absolute(base, href)
	if !ok {
		return media.StreamCandidate{}, false
	}
	label = cleanLabel(label)
	if label == "" {
		label = hostOf(abs)
	}
	return media.StreamCandidate{
		ServerName: label,
		URL:        abs,
		IsArchive:  isArchive(abs, label),
	}, true
}

func (r SelectorRules) Filename(doc Document) string {
	for _, sel := range strings.Split(r.FilenameSelector, ",") {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		for _, n := range doc.Find(sel) {
			if t := strings.TrimSpace(n.Text()); t != "" {
				return httputil.SanitizeFilename(t)
			}
		}
	}
	return ""
}

// DefaultRules returns the built-in extraction rules per family.
func DefaultRules() map[media.Family]Rules {
	hub := SelectorRules{
		Anchors:          "a.btn[href], a.button[href], #download-btn a[href]",
		FilenameSelector: "div.card-header, .file-name, title",
	}
	return map[media.Family]Rules{
		media.HubCloudLike: hub,
		media.VCloudLike:   hub,
		media.MDriveLike: SelectorRules{
			Anchors:          "a.btn[href], .download-links a[href]",
			FilenameSelector: "h1, .entry-title, title",
		},
		media.Unknown: SelectorRules{
			Anchors:          "a.btn[href], a.button[href], a[download]",
			FilenameSelector: "h1, title",
		},
	}
}

// Extraction is the raw, well-formed output of the final link extractor.
type Extraction struct {
	Candidates []media.StreamCandidate
	Filename   string
}

// Extractor fetches a last-hop page and extracts its server links.
type Extractor struct {
	fetch Fetcher
	rules map[media.Family]Rules
	log   *logrus.Entry
}

// NewExtractor builds an Extractor. Families without rules use the Unknown rules.
func NewExtractor(f Fetcher, rules map[media.Family]Rules, log *logrus.Entry) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{fetch: f, rules: rules, log: log}
}

func (e *Extractor) rulesFor(family media.Family) Rules {
	if r, ok := e.rules[family]; ok {
		return r
	}
	if r, ok := e.rules[media.Unknown]; ok {
		return r
	}
	return DefaultRules()[media.Unknown]
}

// Extract fetches pageURL and returns every candidate in document order.
// No candidates at all yields an ExtractionEmpty failure.
func (e *Extractor) Extract(ctx context.Context, pageURL string, family media.Family) (Extraction, error) {
	page, err := FetchPage(ctx, e.fetch, pageURL)
	if err != nil {
		return Extraction{}, err
	}
	return e.FromPage(page, family)
}

// FromPage runs the family's rules over an already fetched page.
func (e *Extractor) FromPage(page *Page, family media.Family) (Extraction, error) {
	rules := e.rulesFor(family)
	ex := Extraction{
		Candidates: rules.Candidates(page.Doc, page.URL),
		Filename:   rules.Filename(page.Doc),
	}
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"url":        page.URL.String(),
			"family":     family.String(),
			"candidates": len(ex.Candidates),
		}).Debug("extracted links")
	}
	if len(ex.Candidates) == 0 {
		return ex, failure.New(failure.ExtractionEmpty, "no server links found on %s", page.URL)
	}
	return ex, nil
}

// Policy selects which extracted links make up the result.
type Policy int

const (
	// PolicySingle keeps only the first usable link.
	PolicySingle Policy = iota
	// PolicyMulti keeps every usable link in document order.
	PolicyMulti
)

// Apply returns the candidates kept by the policy.
func (p Policy) Apply(cands []media.StreamCandidate) []media.StreamCandidate {
	if p == PolicySingle && len(cands) > 1 {
		return cands[:1]
	}
	return cands
}

func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimPrefix(s, "Download ")
	s = strings.Trim(s, "[]() ")
	return s
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

var archiveMarkers = []string{".zip", ".rar", ".7z", "zip", "archive"}

func isArchive(rawURL, label string) bool {
	u := strings.ToLower(rawURL)
	l := strings.ToLower(label)
	for _, ext := range archiveMarkers[:3] {
		if strings.Contains(u, ext) {
			return true
		}
	}
	for _, m := range archiveMarkers[3:] {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}
