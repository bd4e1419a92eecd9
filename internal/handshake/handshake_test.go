package handshake

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoplink/internal/failure"
	"hoplink/internal/httputil"
)

type fakeFetcher struct {
	pages map[string]string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ ...httputil.RequestOption) (*httputil.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, failure.New(failure.UpstreamHTTPError, "unexpected status 404 for %s", rawURL)
	}
	return &httputil.Response{URL: rawURL, Status: 200, Body: []byte(body)}, nil
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"ampersand", `<a href="/x?token=TOK1&id=2">go</a>`, "TOK1", true},
		{"double quote", `<a href="/x?token=abc-123">go</a>`, "abc-123", true},
		{"single quote", `location='/p?token=zz9'`, "zz9", true},
		{"whitespace", "token=first second token=other", "first", true},
		{"first wins", "token=one&token=two", "one", true},
		{"missing", "<p>nothing here</p>", "", false},
		{"empty value", `token=&x=1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractToken(tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokensFetch(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://tokens.example/hubcloud.php": `<script>var u = "/go?token=TOK1&x=1";</script>`,
	}}
	tok, err := NewTokens(f, "https://tokens.example/hubcloud.php", nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TOK1", tok)

	// Not cached: every call fetches again.
	_, _ = NewTokens(f, "https://tokens.example/hubcloud.php", nil).Fetch(context.Background())
	assert.Equal(t, 2, f.calls)
}

func TestTokensFetchFailuresAreTokenUnavailable(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeFetcher
	}{
		{"no match", &fakeFetcher{pages: map[string]string{"https://t.example/": "<p>no</p>"}}},
		{"http error", &fakeFetcher{pages: map[string]string{}}},
		{"timeout", &fakeFetcher{err: failure.New(failure.UpstreamTimeout, "timed out")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokens(tt.f, "https://t.example/", nil).Fetch(context.Background())
			require.Error(t, err)
			assert.Equal(t, failure.TokenUnavailable, failure.KindOf(err))
			assert.Equal(t, 1, tt.f.calls)
		})
	}
}

func TestHopURL(t *testing.T) {
	assert.Equal(t,
		"https://gamerxyt.com/hubcloud.php?host=hubcloud&id=abc123&token=TOK1",
		HopURL("https://gamerxyt.com/", "abc123", "TOK1"))
}

func TestHopURLKeepsEscapedToken(t *testing.T) {
	token, ok := ExtractToken(`<a href="/go?token=ab%2Bcd%3D%3D&next=1">`)
	require.True(t, ok)
	assert.Equal(t, "ab%2Bcd%3D%3D", token)

	hop := HopURL("https://hop.example", "id 7", token)
	assert.Equal(t, "https://hop.example/hubcloud.php?host=hubcloud&id=id+7&token=ab%2Bcd%3D%3D", hop)

	u, err := url.Parse(hop)
	require.NoError(t, err)
	assert.Equal(t, "ab+cd==", u.Query().Get("token"))
}

func TestHopBase(t *testing.T) {
	assert.Equal(t, "https://hop.example", HopBase("https://hop.example", "https://t.example/a.php"))
	assert.Equal(t, "https://t.example", HopBase("", "https://t.example/a.php"))
}

func TestVerifyLocators(t *testing.T) {
	const hop1 = "https://hop.example/hubcloud.php?host=hubcloud&id=abc123&token=TOK1"

	tests := []struct {
		name string
		body string
		want string
	}{
		{"script var", `<script>var url = 'https://final.example/f/9';</script>`, "https://final.example/f/9"},
		{"meta refresh", `<meta http-equiv="Refresh" content="0; URL='/drive/9'">`, "https://hop.example/drive/9"},
		{"anchor", `<a id="download" href="https://final.example/a">Download</a>`, "https://final.example/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{pages: map[string]string{hop1: tt.body}}
			got, err := NewVerifier(f, nil, nil).Verify(context.Background(), hop1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyFailures(t *testing.T) {
	const hop1 = "https://hop.example/v"

	f := &fakeFetcher{pages: map[string]string{hop1: "<p>expired</p>"}}
	_, err := NewVerifier(f, nil, nil).Verify(context.Background(), hop1)
	assert.Equal(t, failure.VerificationFailed, failure.KindOf(err))

	f = &fakeFetcher{pages: map[string]string{hop1: `<script>var url = 'javascript:alert(1)';</script>`}}
	_, err = NewVerifier(f, nil, nil).Verify(context.Background(), hop1)
	assert.Equal(t, failure.VerificationFailed, failure.KindOf(err))

	f = &fakeFetcher{err: failure.New(failure.UpstreamTimeout, "timed out")}
	_, err = NewVerifier(f, nil, nil).Verify(context.Background(), hop1)
	assert.Equal(t, failure.UpstreamTimeout, failure.KindOf(err))
}

func TestVerifyCustomLocator(t *testing.T) {
	const hop1 = "https://hop.example/v"
	f := &fakeFetcher{pages: map[string]string{hop1: `<div class="next"><a href="/n">next</a></div><script>var url = 'https://x.example';</script>`}}

	got, err := NewVerifier(f, AnchorLocator{Selector: ".next a"}, nil).Verify(context.Background(), hop1)
	require.NoError(t, err)
	assert.Equal(t, "https://hop.example/n", got)
}
