// Package store persists resolved matches in a monthly cache and keeps a permanent
// per-term denylist of rejected candidates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/codeGROOVE-dev/fidematch/pkg/player"
)

// Key prefixes. Cache keys are "fide-cache-YYYY-MM-<term>", denylist keys "fide-invalid-<term>".
const (
	CachePrefix    = "fide-cache-"
	DenylistPrefix = "fide-invalid-"

	bucketLayout = "2006-01"
)

// entry is the stored form of a cached result.
type entry struct {
	Timestamp int64         `json:"timestamp"` // milliseconds since epoch
	Data      player.Result `json:"data"`
}

// Store is the match cache and denylist. It never fails its callers on a storage error:
// reads degrade to misses and writes are skipped.
type Store struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex // serializes denylist read-modify-write
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for bucketing.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over kv.
func New(kv KV, opts ...Option) *Store {
	s := &Store{kv: kv, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeTerm removes all whitespace and case folds term. It is idempotent.
func NormalizeTerm(term string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, term)
	return cases.Fold().String(stripped)
}

// Bucket returns the cache time bucket (UTC calendar month) containing t.
func Bucket(t time.Time) string {
	return t.UTC().Format(bucketLayout)
}

// CacheKey returns the cache key for term in bucket.
func CacheKey(bucket, term string) string {
	return CachePrefix + bucket + "-" + NormalizeTerm(term)
}

// DenylistKey returns the denylist key for term.
func DenylistKey(term string) string {
	return DenylistPrefix + NormalizeTerm(term)
}

// keyBucket extracts the bucket from a cache key.
func keyBucket(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, CachePrefix)
	if !ok || len(rest) < len(bucketLayout) {
		return "", false
	}
	return rest[:len(bucketLayout)], true
}

// Get returns the cached result for term from the current bucket. The result's provenance
// is returned as stored, without the cached annotation.
func (s *Store) Get(ctx context.Context, term string) (player.Result, bool) {
	now := s.now()
	bucket := Bucket(now)
	key := CacheKey(bucket, term)

	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		return player.Result{}, false
	}
	if !ok {
		return player.Result{}, false
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable cache entry", "key", key, "error", err)
		return player.Result{}, false
	}
	if e.Timestamp > 0 && Bucket(time.UnixMilli(e.Timestamp)) != bucket {
		s.logger.DebugContext(ctx, "ignoring stale cache entry", "key", key)
		return player.Result{}, false
	}
	if e.Data.Players == nil {
		e.Data.Players = []player.Player{}
	}
	e.Data.Provenance = e.Data.Provenance.Uncached()
	return e.Data, true
}

// Put caches result under term in the current bucket. Inaccurate results are ignored.
// A failed write purges stale entries and is retried once, then dropped.
func (s *Store) Put(ctx context.Context, term string, result player.Result) {
	if !result.Accurate {
		return
	}
	now := s.now()
	key := CacheKey(Bucket(now), term)

	result.Provenance = result.Provenance.Uncached()
	b, err := json.Marshal(entry{Timestamp: now.UnixMilli(), Data: result})
	if err != nil {
		s.logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}

	err = s.kv.Set(ctx, key, string(b))
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "cache write failed, purging stale entries", "key", key, "error", err)
	if _, perr := s.PurgeStale(ctx, now); perr != nil {
		s.logger.WarnContext(ctx, "stale purge failed", "error", perr)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		s.logger.WarnContext(ctx, "cache write skipped", "key", key, "error", err)
	}
}

// Invalidate drops term's entry from the current bucket.
func (s *Store) Invalidate(ctx context.Context, term string) error {
	key := CacheKey(Bucket(s.now()), term)
	_, err := s.kv.RemoveAll(ctx, func(k string) bool { return k == key })
	return err
}

// PurgeStale removes every cache entry outside now's bucket. Denylist keys are never touched.
func (s *Store) PurgeStale(ctx context.Context, now time.Time) (int, error) {
	current := Bucket(now)
	n, err := s.kv.RemoveAll(ctx, func(key string) bool {
		b, ok := keyBucket(key)
		return ok && b != current
	})
	if n > 0 {
		s.logger.InfoContext(ctx, "purged stale cache entries", "count", n, "bucket", current)
	}
	return n, err
}

// DenylistList returns the candidate IDs rejected for term, sorted.
func (s *Store) DenylistList(ctx context.Context, term string) ([]string, error) {
	raw, ok, err := s.kv.Get(ctx, DenylistKey(term))
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Denied returns term's denylist as a set. Read failures yield an empty set.
func (s *Store) Denied(ctx context.Context, term string) map[string]bool {
	ids, err := s.DenylistList(ctx, term)
	if err != nil {
		s.logger.WarnContext(ctx, "denylist read failed", "term", term, "error", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// DenylistAdd permanently rejects candidate id for term and drops term's cached result
// so the next resolution runs against the registry. Adding an existing id is a no-op.
func (s *Store) DenylistAdd(ctx context.Context, term, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("empty candidate id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.DenylistList(ctx, term)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, id) {
		if err := s.writeDenylist(ctx, term, append(ids, id)); err != nil {
			return err
		}
	}
	return s.Invalidate(ctx, term)
}

// DenylistRemove lifts the rejection of id for term. Removing an absent id is a no-op.
func (s *Store) DenylistRemove(ctx context.Context, term, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.DenylistList(ctx, term)
	if err != nil {
		return err
	}
	i := slices.Index(ids, id)
	if i < 0 {
		return nil
	}
	return s.writeDenylist(ctx, term, slices.Delete(ids, i, i+1))
}

func (s *Store) writeDenylist(ctx context.Context, term string, ids []string) error {
	key := DenylistKey(term)
	if len(ids) == 0 {
		_, err := s.kv.RemoveAll(ctx, func(k string) bool { return k == key })
		return err
	}
	slices.Sort(ids)
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(b))
}
