// Package handshake implements the token-gated hop chain: fetch a short-lived
// token, build the first hop, then verify it into the next hop.
package handshake

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"hoplink/internal/extract"
	"hoplink/internal/failure"
	"hoplink/internal/httputil"
)

var tokenPattern = regexp.MustCompile(`token=([^&"'\s]+)`)

// Tokens fetches authorization tokens from a token-issuing page. Tokens are
// short-lived and never cached; every call performs a fresh fetch.
type Tokens struct {
	fetch     extract.Fetcher
	sourceURL string
	log       *logrus.Entry
}

func NewTokens(f extract.Fetcher, sourceURL string, log *logrus.Entry) *Tokens {
	return &Tokens{fetch: f, sourceURL: sourceURL, log: log}
}

// SourceURL returns the configured token page.
func (t *Tokens) SourceURL() string { return t.sourceURL }

// Fetch returns the first token found on the source page. Every failure,
// including timeouts, is reported as TokenUnavailable. There is no retry here.
func (t *Tokens) Fetch(ctx context.Context) (string, error) {
	resp, err := t.fetch.Fetch(ctx, t.sourceURL)
	if err != nil {
		return "", failure.Wrap(failure.TokenUnavailable, err, "fetching token page")
	}

	token, ok := ExtractToken(string(resp.Body))
	if !ok {
		return "", failure.New(failure.TokenUnavailable, "no token on %s", t.sourceURL)
	}
	if t.log != nil {
		t.log.WithField("source", t.sourceURL).Debug("token acquired")
	}
	return token, nil
}

// ExtractToken finds the first token=<value> in body, terminated by '&', a
// quote or whitespace.
func ExtractToken(body string) (string, bool) {
	m := tokenPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HopURL builds the tokenized first hop for the file id. The token is
// appended exactly as it appeared upstream; it is often already escaped.
// e.g., HopURL("https://gamerxyt.com", "abc123", "TOK1") ->
// "https://gamerxyt.com/hubcloud.php?host=hubcloud&id=abc123&token=TOK1"
func HopURL(base, id, token string) string {
	return fmt.Sprintf("%s/hubcloud.php?host=hubcloud&id=%s&token=%s",
		strings.TrimRight(base, "/"), url.QueryEscape(id), token)
}

// HopBase picks the base for HopURL: the explicit hop base when set,
// otherwise the origin of the token page.
func HopBase(hopBase, tokenSource string) string {
	if hopBase != "" {
		return hopBase
	}
	return httputil.Origin(tokenSource)
}
