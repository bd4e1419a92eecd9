// Package keycodec encodes resolution context into URL-safe opaque keys.
//
// A key is the standard base64 encoding of a small UTF-8 JSON payload with
// '+' and '/' replaced by '-' and '_' and the '=' padding stripped.
package keycodec

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"hoplink/internal/failure"
)

// Payload is the context carried by a key. Only URL is required.
type Payload struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Poster  string `json:"poster,omitempty"`
	Source  string `json:"source,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// wirePayload accepts the legacy "link" field alongside "url".
type wirePayload struct {
	URL     string `json:"url"`
	Link    string `json:"link"`
	Title   string `json:"title"`
	Poster  string `json:"poster"`
	Source  string `json:"source"`
	Quality string `json:"quality"`
}

var (
	toURLSafe   = strings.NewReplacer("+", "-", "/", "_")
	fromURLSafe = strings.NewReplacer("-", "+", "_", "/")
)

// Encode returns the opaque key for p.
func Encode(p Payload) (string, error) {
	if p.URL == "" {
		return "", failure.New(failure.InvalidKey, "payload has no url")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", failure.Wrap(failure.InvalidKey, err, "encoding payload")
	}
	enc := base64.StdEncoding.EncodeToString(data)
	return strings.TrimRight(toURLSafe.Replace(enc), "="), nil
}

// MustEncode is Encode for payloads known to carry a URL.
func MustEncode(p Payload) string {
	key, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return key
}

// Decode parses a key produced by Encode. Missing padding and the standard
// base64 alphabet are both tolerated. Any malformed input returns an
// InvalidKey failure.
func Decode(key string) (Payload, error) {
	s := fromURLSafe.Replace(strings.TrimSpace(key))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return Payload{}, failure.New(failure.InvalidKey, "empty key")
	}
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Payload{}, failure.Wrap(failure.InvalidKey, err, "decoding key")
	}

	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return Payload{}, failure.Wrap(failure.InvalidKey, err, "parsing key payload")
	}

	url := w.URL
	if url == "" {
		url = w.Link
	}
	if url == "" {
		return Payload{}, failure.New(failure.InvalidKey, "key payload has neither url nor link")
	}

	return Payload{
		URL:     url,
		Title:   w.Title,
		Poster:  w.Poster,
		Source:  w.Source,
		Quality: w.Quality,
	}, nil
}

// IsURL reports whether input is already a raw http(s) URL rather than a key.
func IsURL(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// Parse turns resolver input into a payload, decoding keys and wrapping raw
// URLs as-is.
func Parse(input string) (Payload, error) {
	if IsURL(input) {
		return Payload{URL: strings.TrimSpace(input)}, nil
	}
	return Decode(input)
}
