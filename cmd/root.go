// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hoplink/internal/config"
	"hoplink/internal/logging"
	"hoplink/internal/provider"
	"hoplink/internal/resolver"
	"hoplink/internal/search"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagJSON        bool
	flagDebug       bool
	flagAll         bool
	flagRace        bool
	flagImpersonate bool
	flagNoHistory   bool
	flagTimeout     time.Duration
	flagProxies     []string
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hoplink [query]",
	Short: "Resolve hosting-site download pages into stream links",
	Long: `hoplink follows the redirect chains of movie and series hosting sites
and returns playable stream URLs, server lists or episode listings.
Run with a query to search, pick a result and resolve it.`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: loadConfig,
	RunE:              searchRun,
	SilenceUsage:      true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel in-flight work.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().BoolVarP(&flagAll, "all", "a", false, "Return every server instead of the first usable link")
	rootCmd.PersistentFlags().BoolVar(&flagRace, "race", false, "Run fallback strategies concurrently")
	rootCmd.PersistentFlags().BoolVar(&flagImpersonate, "impersonate", false, "Use a Chrome TLS fingerprint for upstream requests")
	rootCmd.PersistentFlags().BoolVar(&flagNoHistory, "no-history", false, "Do not record resolved keys")
	rootCmd.PersistentFlags().DurationVarP(&flagTimeout, "timeout", "t", 0, "Per-request timeout (e.g. 10s)")
	rootCmd.PersistentFlags().StringSliceVar(&flagProxies, "proxy", nil, "Upstream proxy URL (http, https, socks5); repeatable")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(homeCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyFlags(cfg)

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Setup(cfg.Log, cfg.Debug); err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	return nil
}

// applyFlags copies explicitly set CLI flags over c.
func applyFlags(c *config.Config) {
	if flagTimeout > 0 {
		c.Resolver.RequestTimeout = config.Duration{Duration: flagTimeout}
	}
	if len(flagProxies) > 0 {
		c.Resolver.Proxies = flagProxies
	}
	if flagRace {
		c.Resolver.Race = true
	}
	if flagImpersonate {
		c.Resolver.ImpersonateTLS = true
	}
	if flagNoHistory {
		c.History = false
	}
	if flagDebug {
		c.Debug = true
	}
}

func cliLog() *logrus.Entry {
	return logging.For("cli")
}

func newResolver() (*resolver.Resolver, error) {
	return resolver.NewFromConfig(cfg, logging.For("resolver"))
}

func newSearchService() (*search.Service, error) {
	client, err := resolver.NewClient(cfg, logging.For("http"))
	if err != nil {
		return nil, err
	}
	scraper := provider.NewScraper(cfg.Search.SiteBase, client, logging.For("scraper"))
	api := provider.NewAPI(
		[]string{cfg.Search.APIPrimary, cfg.Search.APISecondary},
		client,
		cfg.Resolver.RequestTimeout.Duration,
		logging.For("catalog"),
	)
	return search.NewService(scraper, api, scraper, cfg.Search.Categories, logging.For("search")), nil
}
