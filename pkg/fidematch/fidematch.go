// Package fidematch wires the registry client, match store, resolver and batch
// orchestrator into one service.
//
// Basic usage:
//
//	cfg, _ := config.Load("")
//	svc, err := fidematch.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//	headers, rows := svc.Parse(roster)
//	resolved, _ := svc.Run(ctx, rows, false, nil)
//	fmt.Println(svc.Format(resolved, headers))
package fidematch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/fidematch/pkg/auth"
	"github.com/codeGROOVE-dev/fidematch/pkg/batch"
	"github.com/codeGROOVE-dev/fidematch/pkg/config"
	"github.com/codeGROOVE-dev/fidematch/pkg/fide"
	"github.com/codeGROOVE-dev/fidematch/pkg/httpcache"
	"github.com/codeGROOVE-dev/fidematch/pkg/metrics"
	"github.com/codeGROOVE-dev/fidematch/pkg/player"
	"github.com/codeGROOVE-dev/fidematch/pkg/resolve"
	"github.com/codeGROOVE-dev/fidematch/pkg/roster"
	"github.com/codeGROOVE-dev/fidematch/pkg/store"
	"github.com/codeGROOVE-dev/fidematch/pkg/store/sqlkv"
)

type (
	// Player re-exports player.Player for convenience.
	Player = player.Player
	// Result re-exports player.Result for convenience.
	Result = player.Result
	// Row re-exports roster.Row for convenience.
	Row = roster.Row
	// Progress re-exports batch.Progress for convenience.
	Progress = batch.Progress
)

// Service resolves rosters against the ratings registry.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	store    *store.Store
	resolver *resolve.Resolver
	batch    *batch.Orchestrator
	closers  []io.Closer
}

// Option configures a Service.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	metrics  *metrics.Recorder
	kv       store.KV
	searcher resolve.Searcher
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records resolution metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithKV replaces the configured store backend.
func WithKV(kv store.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithSearcher replaces the registry client.
func WithSearcher(s resolve.Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// New builds a Service from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, logger: o.logger, metrics: o.metrics}

	searcher := o.searcher
	if searcher == nil {
		client, err := s.newClient(ctx)
		if err != nil {
			_ = s.Close() //nolint:errcheck // already failing
			return nil, err
		}
		searcher = client
	}

	kv := o.kv
	if kv == nil {
		var err error
		kv, err = s.openKV(ctx)
		if err != nil {
			_ = s.Close() //nolint:errcheck // already failing
			return nil, err
		}
	}
	s.store = store.New(kv, store.WithLogger(o.logger))

	s.resolver = resolve.New(searcher,
		resolve.WithStore(s.store),
		resolve.WithHomeFederation(cfg.HomeFederation),
		resolve.WithLogger(o.logger),
		resolve.WithMetrics(o.metrics),
	)
	s.batch = batch.New(s.resolver,
		batch.WithLimit(cfg.Concurrency),
		batch.WithLogger(o.logger),
		batch.WithMetrics(o.metrics),
	)
	return s, nil
}

func (s *Service) newClient(ctx context.Context) (*fide.Client, error) {
	cfg := s.cfg
	httpcache.SetMinDelay(cfg.HTTP.MinDelay)

	clientOpts := []fide.Option{
		fide.WithLogger(s.logger),
		fide.WithHomeFederation(cfg.HomeFederation),
		fide.WithTimeout(cfg.HTTP.Timeout),
	}
	if cfg.HTTP.BaseURL != "" {
		clientOpts = append(clientOpts, fide.WithBaseURL(cfg.HTTP.BaseURL))
	}

	if !cfg.HTTP.NoCache {
		var (
			c   *httpcache.Cache
			err error
		)
		if cfg.HTTP.CacheDir != "" {
			c, err = httpcache.NewWithPath(cfg.HTTP.CacheTTL, cfg.HTTP.CacheDir)
		} else {
			c, err = httpcache.New(cfg.HTTP.CacheTTL)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to initialize markup cache, continuing without cache", "error", err)
		} else {
			s.closers = append(s.closers, c)
			clientOpts = append(clientOpts, fide.WithHTTPCache(c))
		}
	}

	cookies, err := s.cookies(ctx)
	if err != nil {
		return nil, err
	}
	if len(cookies) > 0 {
		clientOpts = append(clientOpts, fide.WithCookies(cookies))
	}

	return fide.New(ctx, clientOpts...)
}

func (s *Service) cookies(ctx context.Context) (map[string]string, error) {
	sources := []auth.Source{}
	if s.cfg.HTTP.Cookies != "" {
		static, err := auth.ParseCookieHeader(s.cfg.HTTP.Cookies)
		if err != nil {
			return nil, fmt.Errorf("http.cookies: %w", err)
		}
		sources = append(sources, auth.NewStaticSource(static))
	}
	sources = append(sources, auth.EnvSource{})
	if s.cfg.HTTP.BrowserCookies {
		sources = append(sources, auth.NewBrowserSource(s.logger))
	}
	return auth.ChainSources(ctx, sources...)
}

func (s *Service) openKV(ctx context.Context) (store.KV, error) {
	switch s.cfg.Store.Driver {
	case "memory":
		return store.NewMemory(0), nil
	case "postgres", "pgx":
		db, err := sqlkv.Open(ctx, sqlkv.Postgres, s.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open match store: %w", err)
		}
		s.closers = append(s.closers, db)
		return db, nil
	default:
		db, err := sqlkv.Open(ctx, sqlkv.SQLite, s.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open match store: %w", err)
		}
		s.closers = append(s.closers, db)
		return db, nil
	}
}

// Close releases the markup cache and the store backend.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Parse splits roster text into headers and rows using the configured policy.
func (s *Service) Parse(text string) ([]string, []*roster.Row) {
	return roster.Parse(text, s.cfg.SplitPolicy())
}

// Format renders resolved rows with the configured rating kind and alignment.
func (s *Service) Format(rows []*roster.Row, headers []string) string {
	return roster.Format(rows, headers, s.cfg.RatingKind(), s.cfg.Align)
}

// Resolve looks up a single name pair.
func (s *Service) Resolve(ctx context.Context, last, first string, force bool) player.Result {
	return s.resolver.Resolve(ctx, last, first, force)
}

// Run resolves rows. See batch.Orchestrator.Run.
func (s *Service) Run(ctx context.Context, rows []*roster.Row, force bool, progress chan<- batch.Progress) ([]*roster.Row, error) {
	return s.batch.Run(ctx, rows, force, progress)
}

// Deny permanently rejects candidate id for term.
func (s *Service) Deny(ctx context.Context, term, id string) error {
	if err := s.store.DenylistAdd(ctx, term, id); err != nil {
		return fmt.Errorf("deny %s for %q: %w", id, term, err)
	}
	s.logger.InfoContext(ctx, "candidate denied", "term", term, "id", id)
	return nil
}

// Undeny lifts a rejection.
func (s *Service) Undeny(ctx context.Context, term, id string) error {
	if err := s.store.DenylistRemove(ctx, term, id); err != nil {
		return fmt.Errorf("undeny %s for %q: %w", id, term, err)
	}
	s.logger.InfoContext(ctx, "candidate restored", "term", term, "id", id)
	return nil
}

// Denied lists the rejected candidate ids for term.
func (s *Service) Denied(ctx context.Context, term string) ([]string, error) {
	return s.store.DenylistList(ctx, term)
}

// Purge removes match cache entries from previous months.
func (s *Service) Purge(ctx context.Context) (int, error) {
	return s.store.PurgeStale(ctx, time.Now())
}

// WriteMetrics exports metrics to the configured textfile, if any.
func (s *Service) WriteMetrics() error {
	if s.metrics == nil || s.cfg.Metrics.File == "" {
		return nil
	}
	stats := httpcache.CacheStats()
	s.metrics.MarkupCache(stats.Hits, stats.Misses)
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.File); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
