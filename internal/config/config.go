// Package config handles TOML-based configuration loading and validation.
// Upstream hosts, blocklist terms and family markers drift with the sites
// they describe, so all of them live here as data rather than code.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"hoplink/internal/media"
)

// Config holds all application configuration.
type Config struct {
	Resolver   Resolver   `toml:"resolver"`
	Classifier Classifier `toml:"classifier"`
	Search     Search     `toml:"search"`
	Log        Log        `toml:"log"`
	Server     Server     `toml:"server"`
	History    bool       `toml:"history"`
	Debug      bool       `toml:"debug"`
}

// Resolver configures the redirect-chain resolver.
type Resolver struct {
	TokenSourceURL    string   `toml:"token_source_url"`
	HopBaseURL        string   `toml:"hop_base_url"`
	ProxyBaseURL      string   `toml:"proxy_base_url"`
	Proxies           []string `toml:"proxies"`
	Blocklist         []string `toml:"blocklist"`
	RequestTimeout    Duration `toml:"request_timeout"`
	UserAgent         string   `toml:"user_agent"`
	Attempts          int      `toml:"attempts"`
	Race              bool     `toml:"race"`
	ImpersonateTLS    bool     `toml:"impersonate_tls"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	ListingSelector   string   `toml:"listing_selector"`
}

// Classifier holds the ordered family marker rules.
type Classifier struct {
	Rules []ClassifierRule `toml:"rules"`
}

type ClassifierRule struct {
	Marker string `toml:"marker"`
	Family string `toml:"family"`
}

// Search configures the two upstream catalogues and home categories.
type Search struct {
	SiteBase     string     `toml:"site_base"`
	APIPrimary   string     `toml:"api_primary"`
	APISecondary string     `toml:"api_secondary"`
	Categories   []Category `toml:"categories"`
}

type Category struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Log configures logrus output and lumberjack rotation.
type Log struct {
	Level      string `toml:"level"`
	JSON       bool   `toml:"json"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type Server struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration read from a TOML string such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultUserAgent is the browser identity sent with every upstream request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Resolver: Resolver{
			TokenSourceURL: "https://gamerxyt.com/hubcloud.php",
			ProxyBaseURL:   "https://vcloud-proxy.hoplink.workers.dev/api",
			Blocklist: []string{
				"login", "signup", "sign-up", "register",
				"t.me/", "telegram",
				"gdtot", "filepress", "howtodownload", "bit.ly",
			},
			RequestTimeout:  Duration{15 * time.Second},
			UserAgent:       DefaultUserAgent,
			Attempts:        1,
			ListingSelector: "h5 > a, h4 > a, .entry-content p > a",
		},
		Search: Search{
			SiteBase:     "https://4khdhub.fans",
			APIPrimary:   "https://catalog.hoplink.workers.dev",
			APISecondary: "https://catalog-backup.hoplink.workers.dev",
			Categories: []Category{
				{Name: "Latest", Path: "/"},
				{Name: "Movies", Path: "/category/movies"},
				{Name: "Series", Path: "/category/series"},
			},
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Server:  Server{Addr: "127.0.0.1:8787"},
		History: true,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hoplink"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hoplink"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file from the OS filesystem and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads path from fs and merges it over the defaults.
func LoadFS(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if err := validateHTTPURL("resolver.token_source_url", c.Resolver.TokenSourceURL, false); err != nil {
		return err
	}
	if err := validateHTTPURL("resolver.hop_base_url", c.Resolver.HopBaseURL, true); err != nil {
		return err
	}
	if err := validateHTTPURL("resolver.proxy_base_url", c.Resolver.ProxyBaseURL, true); err != nil {
		return err
	}

	for _, p := range c.Resolver.Proxies {
		u, err := url.Parse(p)
		if err != nil {
			return fmt.Errorf("resolver.proxies: malformed proxy %q: %w", p, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return fmt.Errorf("resolver.proxies: unsupported proxy scheme %q (valid: http, https, socks5, socks5h)", u.Scheme)
		}
	}

	if c.Resolver.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("resolver.request_timeout must be positive")
	}
	if c.Resolver.Attempts < 1 || c.Resolver.Attempts > 5 {
		return fmt.Errorf("resolver.attempts must be between 1 and 5, got %d", c.Resolver.Attempts)
	}
	if c.Resolver.RequestsPerSecond < 0 {
		return fmt.Errorf("resolver.requests_per_second cannot be negative")
	}
	if strings.TrimSpace(c.Resolver.UserAgent) == "" {
		return fmt.Errorf("resolver.user_agent cannot be empty")
	}

	for _, r := range c.Classifier.Rules {
		if strings.TrimSpace(r.Marker) == "" {
			return fmt.Errorf("classifier rule has empty marker")
		}
		if _, ok := media.ParseFamily(r.Family); !ok {
			return fmt.Errorf("classifier rule %q: unknown family %q (valid: hubcloud, vcloud, mdrive, unknown)", r.Marker, r.Family)
		}
	}

	if err := validateHTTPURL("search.site_base", c.Search.SiteBase, true); err != nil {
		return err
	}
	for _, cat := range c.Search.Categories {
		if cat.Name == "" {
			return fmt.Errorf("search category with path %q has no name", cat.Path)
		}
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("unsupported log level %q (valid: trace, debug, info, warn, error)", c.Log.Level)
	}

	return nil
}

func validateHTTPURL(field, raw string, optional bool) error {
	if raw == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s cannot be empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: malformed URL: %w", field, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%s: expected an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}

// HistoryPath returns the path to the history file.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "hoplink", "history.tsv"), nil
}
