// Package batch resolves roster rows concurrently in fixed-size chunks.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/fidematch/pkg/metrics"
	"github.com/codeGROOVE-dev/fidematch/pkg/player"
	"github.com/codeGROOVE-dev/fidematch/pkg/roster"
)

// DefaultLimit is the number of rows resolved at once.
const DefaultLimit = 4

// Resolver resolves one name pair. See resolve.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, last, first string, forceRefresh bool) player.Result
}

// Progress reports that one row has been resolved.
type Progress struct {
	Row    *roster.Row
	Result player.Result
	Index  int // position of Row in the input
}

// Orchestrator drives a Resolver over many rows.
type Orchestrator struct {
	resolver Resolver
	logger   *slog.Logger
	metrics  *metrics.Recorder
	limit    int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimit sets how many rows are resolved at once. Values below 1 are ignored.
func WithLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics records per-row metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator.
func New(resolver Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{resolver: resolver, logger: slog.Default(), limit: DefaultLimit}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Limit returns the chunk size.
func (o *Orchestrator) Limit() int { return o.limit }

// Run resolves rows in chunks of Limit and returns resolved copies in input order.
// The input rows are not modified.
//
// Each row produces exactly one event on progress, in completion order, as soon as it
// is resolved. Run blocks while progress is full and closes it before returning; a nil
// channel disables events. A chunk always runs to completion: cancelling ctx stops Run
// at the next chunk boundary, returning the rows resolved so far and ctx's error.
func (o *Orchestrator) Run(ctx context.Context, rows []*roster.Row, force bool, progress chan<- Progress) ([]*roster.Row, error) {
	if progress != nil {
		defer close(progress)
	}

	runID := uuid.NewString()
	logger := o.logger.With("run", runID)
	start := time.Now()

	out := make([]*roster.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	logger.InfoContext(ctx, "resolving roster", "rows", len(out), "limit", o.limit, "force", force)

	for lo := 0; lo < len(out); lo += o.limit {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "roster resolution cancelled", "done", lo, "rows", len(out))
			return out[:lo], fmt.Errorf("cancelled after %d of %d rows: %w", lo, len(out), err)
		}
		hi := min(lo+o.limit, len(out))

		// In-flight lookups finish even if ctx is cancelled mid-chunk.
		chunkCtx := context.WithoutCancel(ctx)
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				res := o.resolveRow(chunkCtx, logger, out[i], force)
				out[i].Result = &res
				o.metrics.Row(string(res.Provenance), res.Accurate)
				if progress != nil {
					progress <- Progress{Index: i, Row: out[i], Result: res}
				}
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // row failures are carried in results
		logger.DebugContext(ctx, "chunk complete", "from", lo, "to", hi)
	}

	logger.InfoContext(ctx, "roster resolved", "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// resolveRow resolves one row, turning a panic below it into an error result.
func (o *Orchestrator) resolveRow(ctx context.Context, logger *slog.Logger, row *roster.Row, force bool) (res player.Result) {
	if !row.Resolvable() {
		logger.DebugContext(ctx, "skipping row without names", "row", row.ID)
		return player.Empty(player.Skipped)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "row resolution panicked", "row", row.ID, "panic", r)
			res = player.Empty(player.Failed)
		}
	}()

	first, last := row.Names()
	return o.resolver.Resolve(ctx, last, first, force)
}
