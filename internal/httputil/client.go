// Package httputil provides the hardened outbound HTTP client shared by every
// resolver stage, plus input sanitization utilities.
package httputil

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"hoplink/internal/failure"
)

// maxBodySize caps how much of an upstream page is read.
const maxBodySize = 10 * 1024 * 1024

// Options is the read-only outbound identity and transport configuration.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	Proxies           []string // http, https, socks5 or socks5h URLs; one is picked per request
	ImpersonateTLS    bool     // Chrome TLS fingerprint on direct connections
	RequestsPerSecond float64  // 0 disables throttling
}

// Client performs GET requests with browser-like headers and an explicit
// per-request timeout.
type Client struct {
	opts    Options
	direct  *http.Client
	proxied []*http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

// Response is a fully read upstream response.
type Response struct {
	URL    string // final URL after redirects
	Status int
	Body   []byte
}

// NewClient creates a hardened HTTP client with secure defaults.
func NewClient(opts Options, log *logrus.Entry) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	c := &Client{opts: opts, log: log}

	if opts.ImpersonateTLS {
		c.direct = &http.Client{Transport: newUTLSRoundTripper()}
	} else {
		c.direct = &http.Client{Transport: newTransport()}
	}

	for _, p := range opts.Proxies {
		pc, err := newProxyClient(p)
		if err != nil {
			return nil, err
		}
		c.proxied = append(c.proxied, pc)
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 5,
	}
}

func newProxyClient(raw string) (*http.Client, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy %q: %w", raw, err)
	}

	transport := newTransport()
	switch u.Scheme {
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %q does not support contexts", u.Host)
		}
		transport.DialContext = cd.DialContext
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	return &http.Client{Transport: transport}, nil
}

// pick returns the client for one request. Proxies are chosen at random so
// no rotation state is shared between concurrent resolutions.
func (c *Client) pick() *http.Client {
	if len(c.proxied) == 0 {
		return c.direct
	}
	return c.proxied[rand.IntN(len(c.proxied))]
}

// RequestOption adjusts a single outbound request.
type RequestOption func(*http.Request)

// Referer sets the Referer header.
func Referer(ref string) RequestOption {
	return func(r *http.Request) {
		if ref != "" {
			r.Header.Set("Referer", ref)
		}
	}
}

// AcceptJSON asks for a JSON response.
func AcceptJSON() RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Accept", "application/json")
		r.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
}

// Fetch GETs rawURL and reads the body. The request is bounded by the
// configured timeout. Timeouts become UpstreamTimeout failures; transport
// errors and non-2xx responses become UpstreamHTTPError failures.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, failure.Wrap(failure.UpstreamHTTPError, err, "invalid URL")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classify(err, rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, failure.Wrap(failure.UpstreamHTTPError, err, "creating request")
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for _, o := range opts {
		o(req)
	}

	start := time.Now()
	resp, err := c.pick().Do(req)
	if err != nil {
		return nil, classify(err, rawURL)
	}
	defer resp.Body.Close()

	if c.log != nil {
		c.log.WithFields(logrus.Fields{
			"url":         rawURL,
			"status":      resp.StatusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("fetched")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure.New(failure.UpstreamHTTPError, "unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classify(err, rawURL)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return &Response{URL: final, Status: resp.StatusCode, Body: body}, nil
}

// FetchJSON GETs rawURL and decodes the JSON body into v.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any, opts ...RequestOption) error {
	resp, err := c.Fetch(ctx, rawURL, append([]RequestOption{AcceptJSON()}, opts...)...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return failure.Wrap(failure.UpstreamHTTPError, err, "parsing JSON from "+rawURL)
	}
	return nil
}

func classify(err error, rawURL string) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return failure.Wrap(failure.UpstreamTimeout, err, "timed out fetching "+rawURL)
	}
	return failure.Wrap(failure.UpstreamHTTPError, err, "fetching "+rawURL)
}
