package resolver

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"hoplink/internal/extract"
	"hoplink/internal/failure"
	"hoplink/internal/fallback"
	"hoplink/internal/handshake"
	"hoplink/internal/httputil"
	"hoplink/internal/keycodec"
	"hoplink/internal/media"
)

// job is the request-scoped state of one resolution.
type job struct {
	r       *Resolver
	payload keycodec.Payload
	family  media.Family
	policy  extract.Policy
	log     *logrus.Entry
}

func (j *job) strategies() []fallback.Strategy[media.Result] {
	tokenChain := fallback.Strategy[media.Result]{Name: "token-chain", Run: j.tokenChain}
	proxyAPI := fallback.Strategy[media.Result]{Name: "proxy-api", Run: j.proxyAPI}
	archive := fallback.Strategy[media.Result]{Name: "archive-scraper", Run: j.archiveScraper}
	direct := fallback.Strategy[media.Result]{Name: "direct-scrape", Run: j.directScrape}

	hasProxy := j.r.opts.ProxyBaseURL != ""

	switch j.family {
	case media.HubCloudLike:
		return []fallback.Strategy[media.Result]{tokenChain}
	case media.VCloudLike:
		if !hasProxy {
			return []fallback.Strategy[media.Result]{direct}
		}
		return []fallback.Strategy[media.Result]{proxyAPI}
	case media.MDriveLike:
		return []fallback.Strategy[media.Result]{archive}
	default:
		if !hasProxy {
			return []fallback.Strategy[media.Result]{direct}
		}
		return []fallback.Strategy[media.Result]{proxyAPI, direct}
	}
}

// tokenChain runs token -> first hop -> verified hop -> final page.
func (j *job) tokenChain(ctx context.Context) (media.Result, error) {
	state := media.NewHandshakeState(j.family, j.payload.URL)

	token, err := j.r.tokens.Fetch(ctx)
	if err != nil {
		return media.Result{}, err
	}
	if err := state.WithToken(token); err != nil {
		return media.Result{}, err
	}

	id := httputil.LastSegment(state.SourceURL)
	if id == "" {
		return media.Result{}, failure.New(failure.InvalidKey, "no file id in %s", state.SourceURL)
	}
	base := handshake.HopBase(j.r.opts.HopBaseURL, j.r.tokens.SourceURL())
	if err := state.WithHop1(handshake.HopURL(base, id, token)); err != nil {
		return media.Result{}, err
	}

	hop2, err := j.r.verifier.Verify(ctx, state.Hop1URL.MustGet())
	if err != nil {
		return media.Result{}, err
	}
	if err := state.WithHop2(hop2); err != nil {
		return media.Result{}, err
	}

	j.log.WithField("hop", hop2).Debug("handshake complete")

	ex, err := j.r.extractor.Extract(ctx, state.Hop2URL.MustGet(), j.family)
	if err != nil {
		return media.Result{}, err
	}
	return j.finish(ex)
}

// proxyResponse is what the proxy API returns. Older deployments answer with
// a bare list of links instead of named streams.
type proxyResponse struct {
	Filename string `json:"filename"`
	Streams  []struct {
		Server string `json:"server"`
		Link   string `json:"link"`
	} `json:"streams"`
	Links []string `json:"links"`
	Error string   `json:"error"`
}

// proxyAPI asks the alternate proxy service to resolve the target.
func (j *job) proxyAPI(ctx context.Context) (media.Result, error) {
	endpoint := j.r.opts.ProxyBaseURL + "?url=" + url.QueryEscape(j.payload.URL)

	resp, err := j.r.fetch.Fetch(ctx, endpoint, httputil.AcceptJSON())
	if err != nil {
		return media.Result{}, err
	}

	var pr proxyResponse
	if err := json.Unmarshal(resp.Body, &pr); err != nil {
		return media.Result{}, failure.Wrap(failure.UpstreamHTTPError, err, "parsing proxy response")
	}
	if pr.Error != "" {
		return media.Result{}, failure.New(failure.UpstreamHTTPError, "proxy: %s", pr.Error)
	}

	var ex extract.Extraction
	for _, s := range pr.Streams {
		if c, ok := extract.NewCandidate(nil, s.Link, s.Server); ok {
			ex.Candidates = append(ex.Candidates, c)
		}
	}
	for _, l := range pr.Links {
		if c, ok := extract.NewCandidate(nil, l, ""); ok {
			ex.Candidates = append(ex.Candidates, c)
		}
	}
	if len(ex.Candidates) == 0 {
		return media.Result{}, failure.New(failure.ExtractionEmpty, "proxy returned no links for %s", j.payload.URL)
	}
	if pr.Filename != "" {
		ex.Filename = httputil.SanitizeFilename(pr.Filename)
	}
	return j.finish(ex)
}

// archiveScraper handles directory-like pages. A page with listing entries
// becomes a Listing; otherwise it is treated as a final-link page.
func (j *job) archiveScraper(ctx context.Context) (media.Result, error) {
	page, err := extract.FetchPage(ctx, j.r.fetch, j.payload.URL)
	if err != nil {
		return media.Result{}, err
	}

	if items := j.listing(page); len(items) > 0 {
		j.log.WithField("items", len(items)).Debug("page is a listing")
		return media.Listing(items), nil
	}

	ex, err := j.r.extractor.FromPage(page, j.family)
	if err != nil {
		return media.Result{}, err
	}
	return j.finish(ex)
}

func (j *job) listing(page *extract.Page) []media.ListingItem {
	source := j.payload.Source
	if source == "" {
		source = j.family.String()
	}

	var items []media.ListingItem
	seen := make(map[string]bool)
	for _, n := range page.Doc.Find(j.r.opts.ListingSelector) {
		href, _ := n.Attr("href")
		c, ok := extract.NewCandidate(page.URL, href, n.Text())
		if !ok || seen[c.URL] || j.r.filter.Blocked(c) {
			continue
		}
		seen[c.URL] = true

		key, err := keycodec.Encode(keycodec.Payload{URL: c.URL, Title: c.ServerName, Source: source})
		if err != nil {
			continue
		}
		items = append(items, media.ListingItem{Title: c.ServerName, Link: c.URL, Key: key})
	}
	return items
}

// directScrape extracts links straight from the target page.
func (j *job) directScrape(ctx context.Context) (media.Result, error) {
	ex, err := j.r.extractor.Extract(ctx, j.payload.URL, j.family)
	if err != nil {
		return media.Result{}, err
	}
	return j.finish(ex)
}

// finish filters, tags and applies the extraction policy. Filtering happens
// before the policy so a blocklisted first link never wins.
func (j *job) finish(ex extract.Extraction) (media.Result, error) {
	title := strings.TrimSpace(j.payload.Title + " " + ex.Filename)
	cands := j.r.filter.Apply(ex.Candidates, title)

	filename := ex.Filename
	if filename == "" && j.payload.Title != "" {
		filename = httputil.SanitizeFilename(j.payload.Title)
	}

	if j.policy == extract.PolicyMulti {
		return media.MultiServer(cands, filename), nil
	}

	kept := j.policy.Apply(cands)
	if len(kept) == 0 {
		return media.Result{}, failure.New(failure.ExtractionEmpty, "all %d links were filtered out", len(ex.Candidates))
	}
	return media.Single(kept[0].URL, filename), nil
}
