package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoplink/internal/failure"
	"hoplink/internal/httputil"
	"hoplink/internal/media"
)

// fakeFetcher serves canned bodies by URL.
type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, rawURL string, _ ...httputil.RequestOption) (*httputil.Response, error) {
	body, ok := f[rawURL]
	if !ok {
		return nil, failure.New(failure.UpstreamHTTPError, "unexpected status 404 for %s", rawURL)
	}
	return &httputil.Response{URL: rawURL, Status: 200, Body: []byte(body)}, nil
}

const finalPage = `<html><head><title>ignored title</title></head><body>
<div class="card-header"> Show.S01E01.1080p.WEB-DL.mkv </div>
<a class="btn btn-success" href="https://fsl.example/dl/1">Download [FSL Server]</a>
<a class="btn" href="/relative/2">  Download   [Server : 10Gbps] </a>
<a class="btn" href="https://fsl.example/dl/1">duplicate</a>
<a class="btn" href="javascript:void(0)">broken</a>
<a class="btn" href="https://zip.example/pack.zip"></a>
<a href="https://not-a-button.example/x">ignored</a>
</body></html>`

func TestExtractMultiPreservesOrder(t *testing.T) {
	f := fakeFetcher{"https://h2.example/file/9": finalPage}
	ex := NewExtractor(f, nil, nil)

	got, err := ex.Extract(context.Background(), "https://h2.example/file/9", media.HubCloudLike)
	require.NoError(t, err)

	require.Len(t, got.Candidates, 3)
	assert.Equal(t, media.StreamCandidate{ServerName: "FSL Server", URL: "https://fsl.example/dl/1"}, got.Candidates[0])
	assert.Equal(t, "Server : 10Gbps", got.Candidates[1].ServerName)
	assert.Equal(t, "https://h2.example/relative/2", got.Candidates[1].URL)
	assert.Equal(t, "zip.example", got.Candidates[2].ServerName)
	assert.True(t, got.Candidates[2].IsArchive)
	assert.Equal(t, "Show.S01E01.1080p.WEB-DL.mkv", got.Filename)
}

func TestExtractEmpty(t *testing.T) {
	f := fakeFetcher{"https://h2.example/empty": `<html><body><p>Nothing</p></body></html>`}
	ex := NewExtractor(f, nil, nil)

	_, err := ex.Extract(context.Background(), "https://h2.example/empty", media.HubCloudLike)
	require.Error(t, err)
	assert.Equal(t, failure.ExtractionEmpty, failure.KindOf(err))
}

func TestExtractFetchErrorKeepsKind(t *testing.T) {
	ex := NewExtractor(fakeFetcher{}, nil, nil)
	_, err := ex.Extract(context.Background(), "https://h2.example/missing", media.HubCloudLike)
	assert.Equal(t, failure.UpstreamHTTPError, failure.KindOf(err))
}

func TestExtractCustomRules(t *testing.T) {
	f := fakeFetcher{"https://x.example/p": `<ul class="mirrors"><li><a href="https://m1.example/a">Mirror 1</a></li></ul><h2>file.mp4</h2>`}
	rules := map[media.Family]Rules{
		media.VCloudLike: SelectorRules{Anchors: ".mirrors a", FilenameSelector: "h2"},
	}
	ex := NewExtractor(f, rules, nil)

	got, err := ex.Extract(context.Background(), "https://x.example/p", media.VCloudLike)
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "Mirror 1", got.Candidates[0].ServerName)
	assert.Equal(t, "file.mp4", got.Filename)
}

func TestSelectorRulesFilenamePriority(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<html><head><title>Site | Download</title></head><body>
<h1>  </h1><span class="file-name">Movie.2024.720p.mkv</span><div class="card-header">Movie.2024.1080p.mkv</div>
</body></html>`))
	require.NoError(t, err)

	tests := []struct {
		selector string
		want     string
	}{
		{"div.card-header, .file-name, title", "Movie.2024.1080p.mkv"},
		{".file-name, div.card-header", "Movie.2024.720p.mkv"},
		{"h1, title", "Site _ Download"},
		{".missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectorRules{FilenameSelector: tt.selector}.Filename(doc))
		})
	}
}

func TestPolicyApply(t *testing.T) {
	cands := []media.StreamCandidate{{URL: "a"}, {URL: "b"}, {URL: "c"}}

	assert.Equal(t, cands[:1], PolicySingle.Apply(cands))
	assert.Equal(t, cands, PolicyMulti.Apply(cands))
	assert.Empty(t, PolicySingle.Apply(nil))
}

func TestParseDocument(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<div id="a" data-x="1"> hi </div><script>var url = 'x';</script>`))
	require.NoError(t, err)

	nodes := doc.Find("#a")
	require.Len(t, nodes, 1)
	v, ok := nodes[0].Attr("data-x")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, "hi", nodes[0].Text())
	assert.Contains(t, doc.Raw(), "var url")
	assert.Empty(t, doc.Find(".missing"))
}
