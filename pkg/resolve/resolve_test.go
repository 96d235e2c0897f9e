package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/fidematch/pkg/httpcache"
	"github.com/codeGROOVE-dev/fidematch/pkg/player"
	"github.com/codeGROOVE-dev/fidematch/pkg/store"
)

// fakeRegistry answers searches from a fixed table and records every term it sees.
type fakeRegistry struct {
	results  map[string][]player.Player
	failures map[string]error

	mu       sync.Mutex
	terms    []string
	bypassed []bool
}

func (f *fakeRegistry) Search(ctx context.Context, term string) ([]player.Player, error) {
	f.mu.Lock()
	f.terms = append(f.terms, term)
	f.bypassed = append(f.bypassed, httpcache.Bypassed(ctx))
	f.mu.Unlock()
	if err := f.failures[term]; err != nil {
		return nil, err
	}
	return f.results[term], nil
}

func (f *fakeRegistry) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.terms...)
}

var (
	lanaAUS = player.Player{FIDEID: "3261352", Name: "Ram, Lana", Federation: "AUS", Standard: "1432"}
	lanaIND = player.Player{FIDEID: "3209652", Name: "Ram, Lana", Federation: "IND", Standard: "1510"}
	johnENG = player.Player{FIDEID: "400001", Name: "Smith, John", Federation: "ENG"}
	johnUSA = player.Player{FIDEID: "200002", Name: "Smith, John", Federation: "USA"}
	johnAUS = player.Player{FIDEID: "3200003", Name: "smith, john", Federation: "AUS"}
)

func newStore() *store.Store {
	return store.New(store.NewMemory(0))
}

func TestResolveReversedFallback(t *testing.T) {
	reg := &fakeRegistry{results: map[string][]player.Player{
		"Lana, Ram": {lanaAUS},
	}}
	s := newStore()
	r := New(reg, WithStore(s), WithHomeFederation("AUS"))

	got := r.Resolve(context.Background(), "Ram", "Lana", false)
	want := player.Result{Players: []player.Player{lanaAUS}, Accurate: true, Provenance: player.Reversed}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Ram, Lana", "Lana, Ram"}, reg.calls()); diff != "" {
		t.Errorf("search order mismatch (-want +got):\n%s", diff)
	}

	// Written under the primary term.
	if cached, ok := s.Get(context.Background(), "Ram, Lana"); !ok || cached.Provenance != player.Reversed {
		t.Errorf("cache entry = %+v, %v; want reversed result under primary term", cached, ok)
	}

	again := r.Resolve(context.Background(), "Ram", "Lana", false)
	if again.Provenance != player.Reversed.Cached() {
		t.Errorf("second Resolve() provenance = %q, want %q", again.Provenance, player.Reversed.Cached())
	}
	if n := len(reg.calls()); n != 2 {
		t.Errorf("cache hit still searched the registry (%d calls)", n)
	}
}

func TestResolveAccuracy(t *testing.T) {
	tests := []struct {
		name         string
		players      []player.Player
		wantAccurate bool
		wantFirst    string
	}{
		{"single foreign candidate", []player.Player{johnENG}, true, johnENG.FIDEID},
		{"one home among many", []player.Player{johnENG, johnAUS, johnUSA}, true, johnAUS.FIDEID},
		{"no home among many", []player.Player{johnENG, johnUSA}, false, johnUSA.FIDEID}, // equal names fall back to ID order
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistry{results: map[string][]player.Player{"Smith, John": tt.players}}
			s := newStore()
			r := New(reg, WithStore(s))

			got := r.Resolve(context.Background(), "Smith", "John", false)
			if got.Accurate != tt.wantAccurate {
				t.Errorf("Accurate = %v, want %v", got.Accurate, tt.wantAccurate)
			}
			if got.Provenance != player.Primary {
				t.Errorf("Provenance = %q, want primary", got.Provenance)
			}
			if got.Players[0].FIDEID != tt.wantFirst {
				t.Errorf("first candidate = %s, want %s", got.Players[0].FIDEID, tt.wantFirst)
			}
			_, cached := s.Get(context.Background(), "Smith, John")
			if cached != tt.wantAccurate {
				t.Errorf("cached = %v, want %v (only accurate results are cached)", cached, tt.wantAccurate)
			}
		})
	}
}

func TestResolveNoResult(t *testing.T) {
	reg := &fakeRegistry{}
	got := New(reg, WithStore(newStore())).Resolve(context.Background(), "Nobody", "Known", false)
	if diff := cmp.Diff(player.Empty(player.NoResult), got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTransportFailures(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("all attempts fail", func(t *testing.T) {
		reg := &fakeRegistry{failures: map[string]error{"Ram, Lana": boom, "Lana, Ram": boom}}
		got := New(reg).Resolve(context.Background(), "Ram", "Lana", false)
		if diff := cmp.Diff(player.Empty(player.Failed), got); diff != "" {
			t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("primary fails, reversed finds", func(t *testing.T) {
		reg := &fakeRegistry{
			failures: map[string]error{"Ram, Lana": boom},
			results:  map[string][]player.Player{"Lana, Ram": {lanaAUS}},
		}
		got := New(reg).Resolve(context.Background(), "Ram", "Lana", false)
		if got.Provenance != player.Reversed || !got.Accurate {
			t.Errorf("Resolve() = %+v, want accurate reversed result", got)
		}
	})

	t.Run("one failure and one empty is no result", func(t *testing.T) {
		reg := &fakeRegistry{failures: map[string]error{"Lana, Ram": boom}}
		got := New(reg).Resolve(context.Background(), "Ram", "Lana", false)
		if got.Provenance != player.NoResult {
			t.Errorf("Provenance = %q, want none", got.Provenance)
		}
	})
}

func TestResolveMissingName(t *testing.T) {
	reg := &fakeRegistry{}
	r := New(reg)
	for _, pair := range [][2]string{{"", "Lana"}, {"Ram", " "}} {
		got := r.Resolve(context.Background(), pair[0], pair[1], false)
		if got.Provenance != player.Skipped || len(got.Players) != 0 {
			t.Errorf("Resolve(%q, %q) = %+v, want skipped", pair[0], pair[1], got)
		}
	}
	if len(reg.calls()) != 0 {
		t.Errorf("registry searched for incomplete names: %v", reg.calls())
	}
}

func TestResolveSameNameTriesOnce(t *testing.T) {
	reg := &fakeRegistry{}
	New(reg).Resolve(context.Background(), "Lee", "Lee", false)
	if diff := cmp.Diff([]string{"Lee, Lee"}, reg.calls()); diff != "" {
		t.Errorf("search calls mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSendsTermVerbatim(t *testing.T) {
	reg := &fakeRegistry{}
	New(reg, WithStore(newStore())).Resolve(context.Background(), "Van  Der Berg", "Anna-Lise", false)
	if diff := cmp.Diff([]string{"Van  Der Berg, Anna-Lise", "Anna-Lise, Van  Der Berg"}, reg.calls()); diff != "" {
		t.Errorf("search terms mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDenylist(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{results: map[string][]player.Player{"Ram, Lana": {lanaAUS, lanaIND}}}
	s := newStore()
	r := New(reg, WithStore(s))

	first := r.Resolve(ctx, "Ram", "Lana", false)
	if !first.Accurate || first.Players[0].FIDEID != lanaAUS.FIDEID {
		t.Fatalf("Resolve() = %+v, want AUS candidate first", first)
	}

	// The home federation match was wrong: reject it.
	if err := s.DenylistAdd(ctx, "Ram, Lana", lanaAUS.FIDEID); err != nil {
		t.Fatal(err)
	}
	second := r.Resolve(ctx, "Ram", "Lana", false)
	want := player.Result{Players: []player.Player{lanaIND}, Accurate: true, Provenance: player.Primary}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Errorf("Resolve() after denylist mismatch (-want +got):\n%s", diff)
	}

	if err := s.DenylistAdd(ctx, "Ram, Lana", lanaIND.FIDEID); err != nil {
		t.Fatal(err)
	}
	third := r.Resolve(ctx, "Ram", "Lana", false)
	if len(third.Players) != 0 || third.Accurate || third.Provenance != player.Primary {
		t.Errorf("Resolve() with every candidate denied = %+v, want empty inaccurate primary", third)
	}
}

func TestResolveDenylistFiltersCacheHits(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	s.Put(ctx, "Ram, Lana", player.Result{Players: []player.Player{lanaAUS, lanaIND}, Accurate: true, Provenance: player.Primary})

	// Another process denied a candidate without touching our cache entry.
	reg := &fakeRegistry{}
	r := New(reg, WithStore(s))
	denyWithoutInvalidate(t, s, "Ram, Lana", lanaAUS.FIDEID)

	got := r.Resolve(ctx, "Ram", "Lana", false)
	want := player.Result{Players: []player.Player{lanaIND}, Accurate: true, Provenance: player.Primary.Cached()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
	if len(reg.calls()) != 0 {
		t.Errorf("cache hit searched the registry: %v", reg.calls())
	}
}

// denyWithoutInvalidate adds id to term's denylist and restores the cache entry that
// DenylistAdd drops, leaving a stale cached result behind.
func denyWithoutInvalidate(t *testing.T, s *store.Store, term, id string) {
	t.Helper()
	ctx := context.Background()
	cached, ok := s.Get(ctx, term)
	if !ok {
		t.Fatal("expected a cache entry")
	}
	if err := s.DenylistAdd(ctx, term, id); err != nil {
		t.Fatal(err)
	}
	s.Put(ctx, term, cached)
}

func TestResolveReversedDenylist(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{results: map[string][]player.Player{"Lana, Ram": {lanaAUS, lanaIND}}}
	s := newStore()
	if err := s.DenylistAdd(ctx, "Lana, Ram", lanaAUS.FIDEID); err != nil {
		t.Fatal(err)
	}

	got := New(reg, WithStore(s)).Resolve(ctx, "Ram", "Lana", false)
	if len(got.Players) != 1 || got.Players[0].FIDEID != lanaIND.FIDEID {
		t.Errorf("Resolve() = %+v, want only the IND candidate", got)
	}
}

func TestResolveReversedDenylistAfterCacheHit(t *testing.T) {
	ctx := context.Background()
	lanaENG := player.Player{FIDEID: "400777", Name: "Ram, Lana", Federation: "ENG"}
	reg := &fakeRegistry{results: map[string][]player.Player{"Lana, Ram": {lanaAUS, lanaIND, lanaENG}}}
	s := newStore()
	r := New(reg, WithStore(s), WithHomeFederation("AUS"))

	first := r.Resolve(ctx, "Ram", "Lana", false)
	if !first.Accurate || first.Provenance != player.Reversed {
		t.Fatalf("Resolve() = %+v, want accurate reversed result", first)
	}
	if hit := r.Resolve(ctx, "Ram", "Lana", false); hit.Provenance != player.Reversed.Cached() {
		t.Fatalf("second Resolve() provenance = %q, want cached reversed", hit.Provenance)
	}

	// Rejecting the home candidate under the reversed term leaves the primary entry in place.
	if err := s.DenylistAdd(ctx, "Lana, Ram", lanaAUS.FIDEID); err != nil {
		t.Fatal(err)
	}
	got := r.Resolve(ctx, "Ram", "Lana", false)
	if got.Provenance.IsCached() {
		t.Errorf("Resolve() served an inaccurate result from the cache: %+v", got)
	}
	if got.Accurate || len(got.Players) != 2 {
		t.Errorf("Resolve() = %+v, want two inaccurate survivors", got)
	}
	if n := len(reg.calls()); n != 4 {
		t.Errorf("registry searched %d times, want 4 (re-queried after the denial)", n)
	}
}

func TestResolveCacheHitLosingAccuracyIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	s.Put(ctx, "Smith, John", player.Result{
		Players:    []player.Player{johnAUS, johnENG, johnUSA},
		Accurate:   true,
		Provenance: player.Primary,
	})
	denyWithoutInvalidate(t, s, "Smith, John", johnAUS.FIDEID)

	reg := &fakeRegistry{results: map[string][]player.Player{"Smith, John": {johnAUS, johnENG, johnUSA}}}
	got := New(reg, WithStore(s), WithHomeFederation("AUS")).Resolve(ctx, "Smith", "John", false)
	if got.Provenance != player.Primary || got.Accurate {
		t.Errorf("Resolve() = %+v, want a fresh inaccurate primary result", got)
	}
	if diff := cmp.Diff([]string{"Smith, John"}, reg.calls()); diff != "" {
		t.Errorf("search terms mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveForceRefresh(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{results: map[string][]player.Player{"Ram, Lana": {lanaAUS}}}
	r := New(reg, WithStore(newStore()))

	r.Resolve(ctx, "Ram", "Lana", false)
	got := r.Resolve(ctx, "Ram", "Lana", true)
	if got.Provenance != player.Primary {
		t.Errorf("forced Resolve() provenance = %q, want uncached primary", got.Provenance)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if diff := cmp.Diff([]bool{false, true}, reg.bypassed); diff != "" {
		t.Errorf("markup cache bypass per search mismatch (-want +got):\n%s", diff)
	}
}
