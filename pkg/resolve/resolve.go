// Package resolve matches a name pair against the ratings registry, falling back to
// the swapped name order and remembering accurate matches.
package resolve

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/fidematch/pkg/httpcache"
	"github.com/codeGROOVE-dev/fidematch/pkg/metrics"
	"github.com/codeGROOVE-dev/fidematch/pkg/player"
	"github.com/codeGROOVE-dev/fidematch/pkg/store"
)

// Searcher looks a term up in the registry. An error means the lookup itself failed;
// an empty list means the registry had nothing.
type Searcher interface {
	Search(ctx context.Context, term string) ([]player.Player, error)
}

// SearchFunc adapts a function to a Searcher.
type SearchFunc func(ctx context.Context, term string) ([]player.Player, error)

// Search implements Searcher.
func (f SearchFunc) Search(ctx context.Context, term string) ([]player.Player, error) {
	return f(ctx, term)
}

// Resolver resolves name pairs to registry candidates.
type Resolver struct {
	searcher Searcher
	store    *store.Store
	logger   *slog.Logger
	metrics  *metrics.Recorder
	home     string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore enables the match cache and denylist.
func WithStore(s *store.Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithHomeFederation sets the federation prioritized in sorting and accuracy.
func WithHomeFederation(code string) Option {
	return func(r *Resolver) { r.home = code }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics records lookup metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver over searcher.
func New(searcher Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		searcher: searcher,
		logger:   slog.Default(),
		home:     player.DefaultHomeFederation,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PrimaryTerm is the registry's native "Last, First" search form.
func PrimaryTerm(last, first string) string {
	return last + ", " + first
}

// ReversedTerm swaps the name order, for rosters that mix up first and last names.
func ReversedTerm(last, first string) string {
	return first + ", " + last
}

type attempt struct {
	term       string
	strategy   string
	provenance player.Provenance
}

// Resolve finds the registry candidates for a name pair. It never fails: transport
// problems surface only through the result's provenance. A pair missing either name
// is not looked up and yields an empty skipped result.
func (r *Resolver) Resolve(ctx context.Context, last, first string, forceRefresh bool) player.Result {
	last, first = strings.TrimSpace(last), strings.TrimSpace(first)
	if last == "" || first == "" {
		return player.Empty(player.Skipped)
	}

	start := time.Now()
	defer func() { r.metrics.ResolveDuration(time.Since(start)) }()

	primary := PrimaryTerm(last, first)
	reversed := ReversedTerm(last, first)

	if !forceRefresh {
		if res, ok := r.cached(ctx, primary, reversed); ok {
			return res
		}
	} else {
		ctx = httpcache.Bypass(ctx)
	}

	attempts := []attempt{{term: primary, strategy: "primary", provenance: player.Primary}}
	if reversed != primary {
		attempts = append(attempts, attempt{term: reversed, strategy: "reversed", provenance: player.Reversed})
	}

	failures := 0
	for _, a := range attempts {
		players, err := r.searcher.Search(ctx, a.term)
		if err != nil {
			failures++
			r.metrics.Lookup(a.strategy, metrics.OutcomeError)
			r.logger.WarnContext(ctx, "registry lookup failed", "term", a.term, "strategy", a.strategy, "error", err)
			continue
		}
		if len(players) == 0 {
			r.metrics.Lookup(a.strategy, metrics.OutcomeEmpty)
			r.logger.DebugContext(ctx, "no candidates", "term", a.term, "strategy", a.strategy)
			continue
		}
		r.metrics.Lookup(a.strategy, metrics.OutcomeFound)

		res := r.classify(ctx, players, a.provenance, primary, reversed)
		r.logger.DebugContext(ctx, "resolved",
			"term", primary, "strategy", a.strategy,
			"candidates", len(players), "survivors", len(res.Players), "accurate", res.Accurate)
		if res.Accurate && r.store != nil {
			r.store.Put(ctx, primary, res)
		}
		return res
	}

	if failures == len(attempts) {
		return player.Empty(player.Failed)
	}
	return player.Empty(player.NoResult)
}

// cached returns the stored result for primary, re-filtered against the current denylist.
// A stored result that is no longer accurate after filtering counts as a miss.
func (r *Resolver) cached(ctx context.Context, primary, reversed string) (player.Result, bool) {
	if r.store == nil {
		return player.Result{}, false
	}
	stored, ok := r.store.Get(ctx, primary)
	if !ok {
		r.metrics.MatchCache(false)
		return player.Result{}, false
	}

	res := r.classify(ctx, stored.Players, stored.Provenance, primary, reversed)
	if !res.Accurate {
		r.metrics.MatchCache(false)
		r.logger.DebugContext(ctx, "cached match no longer accurate", "term", primary, "survivors", len(res.Players))
		return player.Result{}, false
	}
	r.metrics.MatchCache(true)
	res.Provenance = res.Provenance.Cached()
	r.logger.DebugContext(ctx, "match cache hit", "term", primary, "provenance", res.Provenance)
	return res, true
}

// classify drops denylisted candidates, sorts the survivors and decides accuracy.
// Candidates found through the reversed term are also checked against its denylist.
func (r *Resolver) classify(
	ctx context.Context,
	players []player.Player,
	provenance player.Provenance,
	primary, reversed string,
) player.Result {
	survivors := player.Exclude(players, r.denied(ctx, primary, reversed, provenance.Uncached() == player.Reversed))
	player.Sort(survivors, r.home)
	return player.Result{
		Players:    survivors,
		Accurate:   player.IsAccurate(survivors, r.home),
		Provenance: provenance,
	}
}

func (r *Resolver) denied(ctx context.Context, primary, reversed string, withReversed bool) map[string]bool {
	if r.store == nil {
		return nil
	}
	set := r.store.Denied(ctx, primary)
	if withReversed {
		maps.Copy(set, r.store.Denied(ctx, reversed))
	}
	return set
}
