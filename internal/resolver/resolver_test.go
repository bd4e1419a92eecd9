package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoplink/internal/extract"
	"hoplink/internal/failure"
	"hoplink/internal/httputil"
	"hoplink/internal/keycodec"
	"hoplink/internal/logging"
	"hoplink/internal/media"
)

// upstream fakes the token page, the verification hop and the final page of
// a hubcloud-style chain.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><a href="/hubcloud.php?token=TOK1&x=1">go</a></html>`)
	})
	mux.HandleFunc("/hubcloud.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("host") != "hubcloud" || q.Get("id") != "abc123" || q.Get("token") != "TOK1" {
			http.Error(w, "bad hop", http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, `<script>var url = '%s/h2';</script>`, srv.URL)
	})
	mux.HandleFunc("/h2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="card-header">Movie.2024.1080p.mkv</div>
<a class="btn" href="https://gdtot.example/file/1">[GDToT]</a>
<a class="btn" href="https://fsl.example/dl/2">[FSL Server]</a>
</body></html>`)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newResolver(t *testing.T, f extract.Fetcher, opts Options) *Resolver {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Blocklist == nil {
		opts.Blocklist = []string{"gdtot", "login"}
	}
	return New(f, opts, logging.Discard())
}

func httpClient(t *testing.T) *httputil.Client {
	t.Helper()
	c, err := httputil.NewClient(httputil.Options{UserAgent: "test", Timeout: 5 * time.Second}, logging.Discard())
	require.NoError(t, err)
	return c
}

func TestResolveHubCloudChain(t *testing.T) {
	srv := upstream(t)
	r := newResolver(t, httpClient(t), Options{TokenSourceURL: srv.URL + "/token"})

	key := keycodec.MustEncode(keycodec.Payload{URL: "https://hubcloud.example/abc123"})
	res := r.Resolve(context.Background(), media.Request{Input: key})

	require.Equal(t, media.KindSingle, res.Kind, "%+v", res.Failure)
	assert.Equal(t, "https://fsl.example/dl/2", res.URL)
	assert.Equal(t, "Movie.2024.1080p.mkv", res.Filename)
}

func TestResolveHubCloudAllServers(t *testing.T) {
	srv := upstream(t)
	r := newResolver(t, httpClient(t), Options{TokenSourceURL: srv.URL + "/token"})

	res := r.Resolve(context.Background(), media.Request{Input: "https://hubcloud.example/drive/abc123", AllServers: true})

	require.Equal(t, media.KindMultiServer, res.Kind)
	require.Len(t, res.Streams, 1)
	assert.Equal(t, "FSL Server", res.Streams[0].ServerName)
	assert.Equal(t, media.Quality1080p, res.Streams[0].Quality)
}

func TestResolveTokenUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>maintenance</p>")
	}))
	defer srv.Close()

	r := newResolver(t, httpClient(t), Options{TokenSourceURL: srv.URL})
	res := r.Resolve(context.Background(), media.Request{Input: "https://hubcloud.example/abc123"})

	require.Equal(t, media.KindFailure, res.Kind)
	assert.Equal(t, failure.TokenUnavailable, res.Failure.Kind)
}

func TestResolveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := newResolver(t, httpClient(t), Options{TokenSourceURL: srv.URL, Timeout: 50 * time.Millisecond})
	res := r.Resolve(context.Background(), media.Request{Input: srv.URL + "/page"})

	require.Equal(t, media.KindFailure, res.Kind)
	assert.Equal(t, failure.UpstreamTimeout, res.Failure.Kind)
}

func TestResolveInvalidKey(t *testing.T) {
	r := newResolver(t, fakeFetcher{}, Options{})
	for _, in := range []string{"", "%%%", "bm90IGpzb24", keycodec.MustEncode(keycodec.Payload{URL: "x"})[:3]} {
		res := r.Resolve(context.Background(), media.Request{Input: in})
		require.Equal(t, media.KindFailure, res.Kind, in)
		assert.Equal(t, failure.InvalidKey, res.Failure.Kind, in)
	}
}

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, rawURL string, _ ...httputil.RequestOption) (*httputil.Response, error) {
	body, ok := f[rawURL]
	if !ok {
		return nil, failure.New(failure.UpstreamHTTPError, "unexpected status 404 for %s", rawURL)
	}
	return &httputil.Response{URL: rawURL, Status: 200, Body: []byte(body)}, nil
}

func TestResolveVCloudProxy(t *testing.T) {
	target := "https://vcloud.example/file/7"
	f := fakeFetcher{
		"https://proxy.example/api?url=" + strings.ReplaceAll(strings.ReplaceAll(target, ":", "%3A"), "/", "%2F"): `{
			"filename": "Show.S01E02.720p.mkv",
			"streams": [
				{"server": "Login first", "link": "https://wall.example/login"},
				{"server": "Server 1", "link": "https://s1.example/v.mkv"},
				{"server": "Server 2", "link": "https://s2.example/v.mkv"}
			]
		}`,
	}
	r := newResolver(t, f, Options{ProxyBaseURL: "https://proxy.example/api"})

	res := r.Resolve(context.Background(), media.Request{Input: target, AllServers: true})
	require.Equal(t, media.KindMultiServer, res.Kind, "%+v", res.Failure)
	require.Len(t, res.Streams, 2)
	assert.Equal(t, "Server 1", res.Streams[0].ServerName)
	assert.Equal(t, media.Quality720p, res.Streams[1].Quality)
	assert.Equal(t, "Show.S01E02.720p.mkv", res.Filename)

	res = r.Resolve(context.Background(), media.Request{Input: target})
	require.Equal(t, media.KindSingle, res.Kind)
	assert.Equal(t, "https://s1.example/v.mkv", res.URL)
}

func TestResolveUnknownFallsBackToDirectScrape(t *testing.T) {
	target := "https://other.example/p/1"
	f := fakeFetcher{
		target: `<a class="btn" href="/dl/1">Download [Direct]</a>`,
	}
	r := newResolver(t, f, Options{ProxyBaseURL: "https://proxy.example/api"})

	res := r.Resolve(context.Background(), media.Request{Input: target})
	require.Equal(t, media.KindSingle, res.Kind, "%+v", res.Failure)
	assert.Equal(t, "https://other.example/dl/1", res.URL)
}

func TestResolveUnknownExhaustedReportsLastStrategy(t *testing.T) {
	target := "https://other.example/empty"
	f := fakeFetcher{target: `<p>nothing</p>`}
	r := newResolver(t, f, Options{ProxyBaseURL: "https://proxy.example/api"})

	res := r.Resolve(context.Background(), media.Request{Input: target})
	require.Equal(t, media.KindFailure, res.Kind)
	assert.Equal(t, failure.ExtractionEmpty, res.Failure.Kind)
}

func TestResolveMDriveListing(t *testing.T) {
	target := "https://mdrive.example/archives/42"
	f := fakeFetcher{
		target: `<div class="entry-content">
<h5><a href="/ep/1">Episode 1</a></h5>
<h5><a href="https://mdrive.example/ep/2">Episode 2</a></h5>
<h5><a href="https://t.me/join">Join Telegram</a></h5>
</div>`,
	}
	r := newResolver(t, f, Options{Blocklist: []string{"t.me/"}})

	key := keycodec.MustEncode(keycodec.Payload{URL: target, Title: "Show", Source: "4khdhub"})
	res := r.Resolve(context.Background(), media.Request{Input: key})

	require.Equal(t, media.KindListing, res.Kind, "%+v", res.Failure)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Episode 1", res.Items[0].Title)
	assert.Equal(t, "https://mdrive.example/ep/1", res.Items[0].Link)

	p, err := keycodec.Decode(res.Items[1].Key)
	require.NoError(t, err)
	assert.Equal(t, keycodec.Payload{URL: "https://mdrive.example/ep/2", Title: "Episode 2", Source: "4khdhub"}, p)
}

func TestResolveMDriveFinalPage(t *testing.T) {
	target := "https://mdrive.example/file/9"
	f := fakeFetcher{
		target: `<h1>Movie 2160p</h1><a class="btn" href="https://dl.example/m.mkv">Instant</a>`,
	}
	r := newResolver(t, f, Options{})

	res := r.Resolve(context.Background(), media.Request{Input: target, AllServers: true})
	require.Equal(t, media.KindMultiServer, res.Kind, "%+v", res.Failure)
	require.Len(t, res.Streams, 1)
	assert.Equal(t, media.Quality4K, res.Streams[0].Quality)
}

func TestResolveMultiServerEmptyIsPartialSuccess(t *testing.T) {
	target := "https://other.example/walls"
	f := fakeFetcher{target: `<a class="btn" href="https://x.example/login">Login</a>`}
	r := newResolver(t, f, Options{})

	res := r.Resolve(context.Background(), media.Request{Input: target, AllServers: true})
	require.Equal(t, media.KindMultiServer, res.Kind)
	assert.Empty(t, res.Streams)

	res = r.Resolve(context.Background(), media.Request{Input: target})
	require.Equal(t, media.KindFailure, res.Kind)
	assert.Equal(t, failure.ExtractionEmpty, res.Failure.Kind)
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, string, ...httputil.RequestOption) (*httputil.Response, error) {
	panic("boom")
}

func TestResolveNeverPanics(t *testing.T) {
	r := newResolver(t, panicFetcher{}, Options{})
	res := r.Resolve(context.Background(), media.Request{Input: "https://other.example/x"})
	require.Equal(t, media.KindFailure, res.Kind)
	assert.Contains(t, res.Failure.Message, "boom")
}
