package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoplink/internal/failure"
	"hoplink/internal/keycodec"
	"hoplink/internal/logging"
	"hoplink/internal/media"
)

type fakeResolver struct {
	got media.Request
	res media.Result
}

func (f *fakeResolver) Resolve(_ context.Context, req media.Request) media.Result {
	f.got = req
	return f.res
}

type fakeSearch struct {
	query string
}

func (f *fakeSearch) Search(_ context.Context, q string) []media.SearchItem {
	f.query = q
	return []media.SearchItem{{Title: "Dune", Link: "https://s.example/dune", Source: "local"}}
}

func (f *fakeSearch) Home(context.Context) []media.Section {
	return []media.Section{{Name: "Latest", Items: []media.SearchItem{}}}
}

func serve(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestResolveSingle(t *testing.T) {
	r := &fakeResolver{res: media.Single("https://cdn.example/v.mkv", "v.mkv")}
	h := NewHandler(r, &fakeSearch{}, logging.Discard())

	rec := serve(t, h, http.MethodGet, "/api/resolve?key=abc&all=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, media.Request{Input: "abc", AllServers: true}, r.got)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "single", body["kind"])
	assert.Equal(t, "https://cdn.example/v.mkv", body["url"])
}

func TestResolveFailureIsOK(t *testing.T) {
	r := &fakeResolver{res: media.Fail(failure.New(failure.InvalidKey, "bad key"))}
	h := NewHandler(r, &fakeSearch{}, logging.Discard())

	rec := serve(t, h, http.MethodGet, "/api/resolve?key=zzz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"failure"`)
	assert.Contains(t, rec.Body.String(), `"invalid_key"`)
}

func TestResolveMissingKey(t *testing.T) {
	h := NewHandler(&fakeResolver{}, &fakeSearch{}, logging.Discard())
	rec := serve(t, h, http.MethodGet, "/api/resolve", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := NewHandler(&fakeResolver{}, &fakeSearch{}, logging.Discard())
	req := httptest.NewRequest(http.MethodGet, "/api/home", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"Latest"`)
}

func TestSearch(t *testing.T) {
	s := &fakeSearch{}
	h := NewHandler(&fakeResolver{}, s, logging.Discard())

	rec := serve(t, h, http.MethodGet, "/api/search?q=dune+part", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dune part", s.query)
	assert.Contains(t, rec.Body.String(), `"mediaKind":"movie"`)

	rec = serve(t, h, http.MethodGet, "/api/search?q=%20", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEncodeKey(t *testing.T) {
	h := NewHandler(&fakeResolver{}, &fakeSearch{}, logging.Discard())

	rec := serve(t, h, http.MethodPost, "/api/keys", `{"url":"https://hubcloud.example/abc123","title":"Dune"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	p, err := keycodec.Decode(body["key"])
	require.NoError(t, err)
	assert.Equal(t, keycodec.Payload{URL: "https://hubcloud.example/abc123", Title: "Dune"}, p)

	rec = serve(t, h, http.MethodPost, "/api/keys", `{"title":"no url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPost, "/api/keys", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler(&fakeResolver{}, &fakeSearch{}, logging.Discard())
	rec := serve(t, h, http.MethodGet, "/api/keys", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
