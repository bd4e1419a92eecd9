package keycodec

import (
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoplink/internal/failure"
)

func TestRoundTrip(t *testing.T) {
	payloads := []Payload{
		{URL: "https://hubcloud.example/abc123"},
		{URL: "https://vcloud.example/x?y=1&z=2", Title: "Movie (2024) 1080p", Poster: "https://img.example/p.jpg", Source: "local"},
		{URL: "https://mdrive.example/archives/55", Title: "Série – Épisode ½ <b>", Quality: "4K"},
		{URL: "https://a.example/" + strings.Repeat("long/", 50)},
	}

	for _, p := range payloads {
		key, err := Encode(p)
		require.NoError(t, err)
		assert.NotContains(t, key, "=")
		assert.NotContains(t, key, "+")
		assert.NotContains(t, key, "/")

		got, err := Decode(key)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEncodeRequiresURL(t *testing.T) {
	_, err := Encode(Payload{Title: "no url"})
	assert.True(t, failure.Is(err, failure.InvalidKey))
}

func TestDecodeAcceptsLinkAndStdAlphabet(t *testing.T) {
	raw := `{"link":"https://hubcloud.example/x?a=>>>","title":"T"}`
	std := base64.StdEncoding.EncodeToString([]byte(raw))

	got, err := Decode(std)
	require.NoError(t, err)
	assert.Equal(t, "https://hubcloud.example/x?a=>>>", got.URL)
	assert.Equal(t, "T", got.Title)

	got, err = Decode(strings.TrimRight(std, "="))
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "!!!***"},
		{"single char", "a"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello world"))},
		{"json array", base64.RawURLEncoding.EncodeToString([]byte(`["https://a.example"]`))},
		{"json null", base64.RawURLEncoding.EncodeToString([]byte(`null`))},
		{"no url fields", base64.RawURLEncoding.EncodeToString([]byte(`{"title":"x"}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.key)
			require.Error(t, err)
			assert.Equal(t, failure.InvalidKey, failure.KindOf(err))
		})
	}
}

func TestDecodeArbitraryBytesNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		buf := make([]byte, rng.Intn(64))
		rng.Read(buf)
		assert.NotPanics(t, func() {
			if _, err := Decode(string(buf)); err != nil {
				assert.Equal(t, failure.InvalidKey, failure.KindOf(err))
			}
		})
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("  https://vcloud.example/file  ")
	require.NoError(t, err)
	assert.Equal(t, "https://vcloud.example/file", p.URL)

	key := MustEncode(Payload{URL: "https://hubcloud.example/abc", Title: "A"})
	p, err = Parse(key)
	require.NoError(t, err)
	assert.Equal(t, "A", p.Title)

	assert.True(t, IsURL("HTTP://x.example"))
	assert.False(t, IsURL("eyJ1cmwiOiJ4In0"))
}
