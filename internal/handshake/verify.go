package handshake

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"hoplink/internal/extract"
	"hoplink/internal/failure"
	"hoplink/internal/httputil"
)

// errNotFound is returned by locators that found nothing.
var errNotFound = errors.New("no next hop in page")

// Locator finds the next hop reference in a fetched page. The result may be
// relative; the Verifier resolves it.
type Locator interface {
	Locate(page *extract.Page) (string, error)
}

// ScriptVarLocator reads `var url = '...'` assignments from inline scripts.
type ScriptVarLocator struct{}

var scriptVarPattern = regexp.MustCompile(`var\s+url\s*=\s*['"]([^'"]+)['"]`)

func (ScriptVarLocator) Locate(page *extract.Page) (string, error) {
	m := scriptVarPattern.FindStringSubmatch(page.Doc.Raw())
	if m == nil {
		return "", errNotFound
	}
	return m[1], nil
}

// MetaRefreshLocator reads <meta http-equiv="refresh" content="0; url=...">.
type MetaRefreshLocator struct{}

func (MetaRefreshLocator) Locate(page *extract.Page) (string, error) {
	for _, n := range page.Doc.Find("meta[http-equiv]") {
		equiv, _ := n.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			continue
		}
		content, _ := n.Attr("content")
		if target := refreshTarget(content); target != "" {
			return target, nil
		}
	}
	return "", errNotFound
}

func refreshTarget(content string) string {
	_, rest, ok := strings.Cut(content, ";")
	if !ok {
		return ""
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 4 || !strings.EqualFold(rest[:4], "url=") {
		return ""
	}
	return strings.Trim(strings.TrimSpace(rest[4:]), `'"`)
}

// AnchorLocator takes the href of the first node matching Selector.
type AnchorLocator struct {
	Selector string
}

func (l AnchorLocator) Locate(page *extract.Page) (string, error) {
	for _, n := range page.Doc.Find(l.Selector) {
		if href, ok := n.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return href, nil
		}
	}
	return "", errNotFound
}

// ChainLocator returns the first successful locator's result.
type ChainLocator []Locator

func (c ChainLocator) Locate(page *extract.Page) (string, error) {
	for _, l := range c {
		if ref, err := l.Locate(page); err == nil {
			return ref, nil
		}
	}
	return "", errNotFound
}

// DefaultLocator matches the markup of the hubcloud-style verification page.
func DefaultLocator() Locator {
	return ChainLocator{
		ScriptVarLocator{},
		MetaRefreshLocator{},
		AnchorLocator{Selector: "a#download[href], a.btn-success[href]"},
	}
}

// Verifier turns a tokenized first hop into the verified second hop.
type Verifier struct {
	fetch   extract.Fetcher
	locator Locator
	log     *logrus.Entry
}

func NewVerifier(f extract.Fetcher, l Locator, log *logrus.Entry) *Verifier {
	if l == nil {
		l = DefaultLocator()
	}
	return &Verifier{fetch: f, locator: l, log: log}
}

// Verify fetches hop1 and returns the absolute http(s) URL it points to.
// Fetch errors keep their upstream kind; anything else is VerificationFailed.
func (v *Verifier) Verify(ctx context.Context, hop1 string) (string, error) {
	page, err := extract.FetchPage(ctx, v.fetch, hop1)
	if err != nil {
		return "", err
	}

	ref, err := v.locator.Locate(page)
	if err != nil {
		return "", failure.Wrap(failure.VerificationFailed, err, "verifying "+hop1)
	}

	hop2, ok := httputil.Absolute(page.URL, ref)
	if !ok {
		return "", failure.New(failure.VerificationFailed, "next hop %q is not an http(s) URL", ref)
	}

	if v.log != nil {
		v.log.WithField("hop", hop2).Debug("hop verified")
	}
	return hop2, nil
}
