package player

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRatingKind(t *testing.T) {
	tests := []struct {
		in      string
		want    RatingKind
		wantErr bool
	}{
		{"standard", Standard, false},
		{"Rapid", Rapid, false},
		{" BLITZ ", Blitz, false},
		{"", Standard, false},
		{"classical", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRatingKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRatingKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRatingKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRating(t *testing.T) {
	p := Player{Standard: "1850", Rapid: "1790", Blitz: ""}
	if got := p.Rating(Standard); got != "1850" {
		t.Errorf("Rating(Standard) = %q, want 1850", got)
	}
	if got := p.Rating(Rapid); got != "1790" {
		t.Errorf("Rating(Rapid) = %q, want 1790", got)
	}
	if got := p.Rating(Blitz); got != "" {
		t.Errorf("Rating(Blitz) = %q, want empty", got)
	}
}

func TestProvenanceCached(t *testing.T) {
	p := Reversed.Cached()
	if !p.IsCached() {
		t.Fatalf("%q should be cached", p)
	}
	if p.Cached() != p {
		t.Errorf("Cached() should be idempotent, got %q", p.Cached())
	}
	if p != "firstName lastName (reversed) (cached)" {
		t.Errorf("Reversed.Cached() = %q", p)
	}
	if p.Uncached() != Reversed {
		t.Errorf("Uncached() = %q, want %q", p.Uncached(), Reversed)
	}
	if Primary.IsCached() {
		t.Error("Primary should not be cached")
	}
}

func TestIsAccurate(t *testing.T) {
	tests := []struct {
		name    string
		players []Player
		want    bool
	}{
		{"none", nil, false},
		{"single foreign", []Player{{Federation: "NZL"}}, true},
		{"two foreign", []Player{{Federation: "NZL"}, {Federation: "ENG"}}, false},
		{"one home among many", []Player{{Federation: "NZL"}, {Federation: "AUS"}, {Federation: "ENG"}}, true},
		{"two home", []Player{{Federation: "AUS"}, {Federation: "AUS"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAccurate(tt.players, "AUS"); got != tt.want {
				t.Errorf("IsAccurate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	players := []Player{
		{FIDEID: "1", Name: "zhang, Wei", Federation: "CHN"},
		{FIDEID: "2", Name: "Zhang, Kaylin", Federation: "AUS"},
		{FIDEID: "3", Name: "Adams, Zoe", Federation: "ENG"},
		{FIDEID: "4", Name: "adams, Amy", Federation: "AUS"},
		{FIDEID: "5", Name: "Brown, Li", Federation: "NZL"},
	}
	Sort(players, "AUS")

	var got []string
	for _, p := range players {
		got = append(got, p.FIDEID)
	}
	want := []string{"4", "2", "3", "5", "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sort() order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortSingleHomeFirst(t *testing.T) {
	players := []Player{
		{FIDEID: "10", Name: "Ram, Anya", Federation: "IND"},
		{FIDEID: "11", Name: "Ram, Lana", Federation: "AUS"},
	}
	Sort(players, "AUS")
	if players[0].FIDEID != "11" {
		t.Errorf("home federation player should sort first, got %+v", players[0])
	}
	if !IsAccurate(players, "AUS") {
		t.Error("list with a home federation player should be accurate")
	}
}

func TestExclude(t *testing.T) {
	players := []Player{{FIDEID: "1"}, {FIDEID: "2"}, {FIDEID: ""}, {FIDEID: "3"}}
	got := Exclude(players, map[string]bool{"2": true, "": true})

	want := []Player{{FIDEID: "1"}, {FIDEID: ""}, {FIDEID: "3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Exclude() mismatch (-want +got):\n%s", diff)
	}
	if len(players) != 4 {
		t.Error("Exclude() must not modify its input")
	}
}

func TestBest(t *testing.T) {
	if _, ok := Empty(NoResult).Best(); ok {
		t.Error("Best() on empty result should report false")
	}
	r := Result{Players: []Player{{Name: "A"}, {Name: "B"}}}
	if p, ok := r.Best(); !ok || p.Name != "A" {
		t.Errorf("Best() = %+v, %v; want A, true", p, ok)
	}
}
