// Package extract holds the narrow HTML selection capability the resolver
// depends on and the final-link extractor built on top of it.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hoplink/internal/httputil"
)

// Node is a matched element: read an attribute or its text.
type Node interface {
	Attr(name string) (string, bool)
	Text() string
}

// Document finds nodes by CSS selector. Raw exposes the markup for
// pattern-based extraction of values hidden in scripts.
type Document interface {
	Find(selector string) []Node
	Raw() string
}

// Page is a fetched and parsed upstream page.
type Page struct {
	URL *url.URL // final URL, used to resolve relative references
	Doc Document
}

type gqNode struct{ s *goquery.Selection }

func (n gqNode) Attr(name string) (string, bool) { return n.s.Attr(name) }
func (n gqNode) Text() string                    { return strings.TrimSpace(n.s.Text()) }

type gqDocument struct {
	doc *goquery.Document
	raw string
}

func (d *gqDocument) Find(selector string) []Node {
	var nodes []Node
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, gqNode{s: s})
	})
	return nodes
}

func (d *gqDocument) Raw() string { return d.raw }

// Parse reads HTML from r into a Document.
func Parse(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading HTML: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &gqDocument{doc: doc, raw: string(data)}, nil
}

// Fetcher is the outbound HTTP capability the extraction stages use.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts ...httputil.RequestOption) (*httputil.Response, error)
}

// FetchPage fetches rawURL and parses it into a Page.
func FetchPage(ctx context.Context, f Fetcher, rawURL string, opts ...httputil.RequestOption) (*Page, error) {
	resp, err := f.Fetch(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(resp.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing final URL: %w", err)
	}
	return &Page{URL: u, Doc: doc}, nil
}
