package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"hoplink/internal/extract"
	"hoplink/internal/failure"
	"hoplink/internal/fallback"
	"hoplink/internal/filter"
	"hoplink/internal/httputil"
	"hoplink/internal/media"
)

// API is the JSON catalogue service. It is deployed on a primary and a
// secondary endpoint; the secondary is only asked when the primary fails.
type API struct {
	endpoints []string
	fetch     extract.Fetcher
	timeout   time.Duration
	log       *logrus.Entry
}

// NewAPI creates an API source. Empty endpoints are skipped.
func NewAPI(endpoints []string, f extract.Fetcher, timeout time.Duration, log *logrus.Entry) *API {
	eps := lo.Filter(endpoints, func(e string, _ int) bool { return strings.TrimSpace(e) != "" })
	return &API{endpoints: eps, fetch: f, timeout: timeout, log: log}
}

func (a *API) Name() string { return "catalog" }

type apiResponse struct {
	Results []apiItem `json:"results"`
}

type apiItem struct {
	Title   string `json:"title"`
	Poster  string `json:"poster"`
	Link    string `json:"link"`
	Type    string `json:"type"`
	Quality string `json:"quality"`
}

// Search queries each endpoint in order until one answers.
func (a *API) Search(ctx context.Context, query string) ([]media.SearchItem, error) {
	strategies := lo.Map(a.endpoints, func(ep string, i int) fallback.Strategy[[]media.SearchItem] {
		return fallback.Strategy[[]media.SearchItem]{
			Name: fmt.Sprintf("catalog-%d", i),
			Run: func(ctx context.Context) ([]media.SearchItem, error) {
				return a.search(ctx, ep, query)
			},
		}
	})

	orch := &fallback.Orchestrator{Timeout: a.timeout, Log: a.log}
	return fallback.Run(ctx, orch, strategies)
}

func (a *API) search(ctx context.Context, endpoint, query string) ([]media.SearchItem, error) {
	rawURL := strings.TrimRight(endpoint, "/") + "/search?q=" + httputil.EncodeQuery(query)

	resp, err := a.fetch.Fetch(ctx, rawURL, httputil.AcceptJSON())
	if err != nil {
		return nil, err
	}

	var ar apiResponse
	if err := json.Unmarshal(resp.Body, &ar); err != nil {
		return nil, failure.Wrap(failure.UpstreamHTTPError, err, "parsing catalogue response")
	}

	return lo.FilterMap(ar.Results, func(it apiItem, _ int) (media.SearchItem, bool) {
		if it.Title == "" || httputil.ValidateURL(it.Link) != nil {
			return media.SearchItem{}, false
		}
		kind := inferKind(it.Title, it.Quality, it.Link)
		switch strings.ToLower(it.Type) {
		case "series", "tv", "show":
			kind = media.Series
		case "movie", "film":
			kind = media.Movie
		}
		return media.SearchItem{
			Title:       it.Title,
			Image:       it.Poster,
			Link:        it.Link,
			Kind:        kind,
			QualityTags: filter.QualityTags(it.Title + " " + it.Quality),
		}, true
	}), nil
}
