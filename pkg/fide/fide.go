// Package fide searches the FIDE ratings registry.
package fide

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/fidematch/pkg/auth"
	"github.com/codeGROOVE-dev/fidematch/pkg/httpcache"
	"github.com/codeGROOVE-dev/fidematch/pkg/player"
)

// DefaultBaseURL is the registry's player search endpoint.
const DefaultBaseURL = "https://ratings.fide.com/incl_search_l.php"

// Client handles registry search requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	baseURL    string
	home       string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache   httpcache.Cacher
	logger  *slog.Logger
	cookies map[string]string
	baseURL string
	home    string
	timeout time.Duration
}

// WithHTTPCache sets the markup cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithBaseURL overrides the search endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithHomeFederation sets the federation sorted first in search results.
func WithHomeFederation(code string) Option {
	return func(c *config) { c.home = code }
}

// WithCookies sends the given registry session cookies with every request.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New creates a registry client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		logger:  slog.Default(),
		baseURL: DefaultBaseURL,
		home:    player.DefaultHomeFederation,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if _, err := url.Parse(cfg.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.baseURL, err)
	}

	httpClient := &http.Client{Timeout: cfg.timeout}
	if len(cfg.cookies) > 0 {
		jar, err := auth.NewCookieJar(auth.Domain, cfg.cookies)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient.Jar = jar
		cfg.logger.Debug("using registry session cookies", "count", len(cfg.cookies))
	}

	return &Client{
		httpClient: httpClient,
		cache:      cfg.cache,
		logger:     cfg.logger,
		baseURL:    cfg.baseURL,
		home:       cfg.home,
	}, nil
}

// SearchURL returns the registry URL queried for term.
func (c *Client) SearchURL(term string) string {
	return c.baseURL + "?search=" + url.QueryEscape(term) + "&simple=1"
}

// Search looks up term in the registry and returns the candidates in canonical order.
// The term is sent exactly as given.
func (c *Client) Search(ctx context.Context, term string) ([]player.Player, error) {
	searchURL := c.SearchURL(term)
	c.logger.DebugContext(ctx, "searching registry", "term", term, "url", searchURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	body, err := httpcache.FetchURLWithValidator(ctx, c.cache, c.httpClient, req, c.logger, hasResultsTable)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	players := Parse(body, c.home)
	c.logger.DebugContext(ctx, "registry search complete", "term", term, "candidates", len(players))
	return players, nil
}

// hasResultsTable only lets well-formed result pages into the markup cache, so
// challenge and maintenance pages are fetched again next time.
func hasResultsTable(body []byte) bool {
	return bytes.Contains(body, []byte("table_results"))
}

// HomeFederation returns the federation the client sorts first.
func (c *Client) HomeFederation() string {
	return c.home
}
