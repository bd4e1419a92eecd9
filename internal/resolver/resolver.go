// Package resolver turns an opaque key or raw hosting URL into a playable
// link, a multi-server list or a listing of sub-items.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"hoplink/internal/classify"
	"hoplink/internal/config"
	"hoplink/internal/extract"
	"hoplink/internal/failure"
	"hoplink/internal/fallback"
	"hoplink/internal/filter"
	"hoplink/internal/handshake"
	"hoplink/internal/httputil"
	"hoplink/internal/keycodec"
	"hoplink/internal/media"
)

// Options is the immutable resolver configuration.
type Options struct {
	TokenSourceURL  string
	HopBaseURL      string // defaults to the token source's origin
	ProxyBaseURL    string // empty disables the proxy API strategy
	Blocklist       []string
	Timeout         time.Duration // per strategy attempt
	Attempts        uint
	Race            bool
	ListingSelector string
	Rules           []classify.Rule
}

// OptionsFromConfig maps the resolver and classifier config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	rules := lo.FilterMap(cfg.Classifier.Rules, func(r config.ClassifierRule, _ int) (classify.Rule, bool) {
		fam, ok := media.ParseFamily(r.Family)
		return classify.Rule{Marker: r.Marker, Family: fam}, ok
	})

	return Options{
		TokenSourceURL:  cfg.Resolver.TokenSourceURL,
		HopBaseURL:      cfg.Resolver.HopBaseURL,
		ProxyBaseURL:    cfg.Resolver.ProxyBaseURL,
		Blocklist:       cfg.Resolver.Blocklist,
		Timeout:         cfg.Resolver.RequestTimeout.Duration,
		Attempts:        uint(max(cfg.Resolver.Attempts, 1)),
		Race:            cfg.Resolver.Race,
		ListingSelector: cfg.Resolver.ListingSelector,
		Rules:           rules,
	}
}

// Resolver runs one resolution per call. It holds only read-only
// collaborators, so a single Resolver is safe for concurrent use.
type Resolver struct {
	opts       Options
	fetch      extract.Fetcher
	classifier *classify.Classifier
	tokens     *handshake.Tokens
	verifier   *handshake.Verifier
	extractor  *extract.Extractor
	filter     *filter.Filter
	log        *logrus.Entry
}

// New builds a Resolver on top of the given fetcher.
func New(f extract.Fetcher, opts Options, log *logrus.Entry) *Resolver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.ListingSelector == "" {
		opts.ListingSelector = config.Default().Resolver.ListingSelector
	}
	return &Resolver{
		opts:       opts,
		fetch:      f,
		classifier: classify.New(opts.Rules),
		tokens:     handshake.NewTokens(f, opts.TokenSourceURL, log),
		verifier:   handshake.NewVerifier(f, nil, log),
		extractor:  extract.NewExtractor(f, nil, log),
		filter:     filter.New(opts.Blocklist),
		log:        log,
	}
}

// NewFromConfig builds the outbound client and a Resolver from cfg.
func NewFromConfig(cfg *config.Config, log *logrus.Entry) (*Resolver, error) {
	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return New(client, OptionsFromConfig(cfg), log), nil
}

// NewClient builds the shared outbound HTTP client from cfg.
func NewClient(cfg *config.Config, log *logrus.Entry) (*httputil.Client, error) {
	client, err := httputil.NewClient(httputil.Options{
		UserAgent:         cfg.Resolver.UserAgent,
		Timeout:           cfg.Resolver.RequestTimeout.Duration,
		Proxies:           cfg.Resolver.Proxies,
		ImpersonateTLS:    cfg.Resolver.ImpersonateTLS,
		RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	return client, nil
}

// Classify exposes the family the resolver would pick for rawURL.
func (r *Resolver) Classify(rawURL string) media.Family {
	return r.classifier.Classify(rawURL)
}

// Resolve runs the full chain for req. It never panics and never returns an
// error: every failure is reported as a failure Result.
func (r *Resolver) Resolve(ctx context.Context, req media.Request) (res media.Result) {
	log := r.log.WithField("trace", uuid.NewString())

	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("resolver panicked")
			res = media.Fail(failure.New(failure.UpstreamHTTPError, "internal error: %v", p))
		}
	}()

	payload, err := keycodec.Parse(req.Input)
	if err != nil {
		log.WithError(err).Debug("rejected input")
		return media.Fail(err)
	}

	family := r.classifier.Classify(payload.URL)
	policy := extract.PolicySingle
	if req.AllServers {
		policy = extract.PolicyMulti
	}

	log = log.WithFields(logrus.Fields{
		"family": family.String(),
		"url":    payload.URL,
	})
	log.Info("resolving")

	orch := &fallback.Orchestrator{
		Timeout:  r.opts.Timeout,
		Attempts: r.opts.Attempts,
		Log:      log,
		OnTransition: func(s fallback.State, i int) {
			log.WithFields(logrus.Fields{"state": s.String(), "strategy": i}).Trace("orchestrator")
		},
	}
	if r.opts.Race {
		orch.Mode = fallback.Race
	}

	job := &job{r: r, payload: payload, family: family, policy: policy, log: log}
	res, err = fallback.Run(ctx, orch, job.strategies())
	if err != nil {
		log.WithError(err).WithField("kind", failure.KindOf(err).String()).Warn("resolution failed")
		return media.Fail(err)
	}

	log.WithField("kind", res.Kind.String()).Info("resolved")
	return res
}
