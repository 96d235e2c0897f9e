// Package player defines the common types shared by the registry client, the resolver and the roster codec.
package player

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultHomeFederation is the federation prioritized when sorting and classifying results.
const DefaultHomeFederation = "AUS"

// Player is one registry entry returned for a search term.
//
//nolint:govet // fieldalignment: intentional layout matching the registry table columns
type Player struct {
	FIDEID       string `json:"fide_id,omitempty"`
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	TrainerTitle string `json:"trainer_title,omitempty"`
	Federation   string `json:"federation,omitempty"`
	Standard     string `json:"standard,omitempty"` // empty means unrated
	Rapid        string `json:"rapid,omitempty"`
	Blitz        string `json:"blitz,omitempty"`
	BirthYear    string `json:"birth_year,omitempty"`
}

// RatingKind selects one of the three rating lists.
type RatingKind string

// Rating kinds.
const (
	Standard RatingKind = "standard"
	Rapid    RatingKind = "rapid"
	Blitz    RatingKind = "blitz"
)

// ParseRatingKind parses a rating kind name (case-insensitive).
func ParseRatingKind(s string) (RatingKind, error) {
	switch k := RatingKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Standard, Rapid, Blitz:
		return k, nil
	case "":
		return Standard, nil
	default:
		return "", fmt.Errorf("unknown rating kind %q (want standard, rapid or blitz)", s)
	}
}

// Abbrev returns the column header used when merging ratings back into a roster.
func (k RatingKind) Abbrev() string {
	switch k {
	case Rapid:
		return "FRpd"
	case Blitz:
		return "FBlz"
	default:
		return "FRtg"
	}
}

// Rating returns the player's rating for kind, or "" when unrated.
func (p Player) Rating(kind RatingKind) string {
	switch kind {
	case Rapid:
		return p.Rapid
	case Blitz:
		return p.Blitz
	default:
		return p.Standard
	}
}

// Provenance describes which search strategy or cache state produced a Result.
type Provenance string

// Provenance values.
const (
	Primary  Provenance = "lastName, firstName"
	Reversed Provenance = "firstName lastName (reversed)"
	NoResult Provenance = "none"
	Failed   Provenance = "error"
	Skipped  Provenance = "skipped"

	cachedSuffix = " (cached)"
)

// Cached returns p annotated as a cache hit.
func (p Provenance) Cached() Provenance {
	if p.IsCached() {
		return p
	}
	return p + cachedSuffix
}

// IsCached reports whether p was annotated as a cache hit.
func (p Provenance) IsCached() bool {
	return strings.HasSuffix(string(p), cachedSuffix)
}

// Uncached strips the cache annotation.
func (p Provenance) Uncached() Provenance {
	return Provenance(strings.TrimSuffix(string(p), cachedSuffix))
}

// Result is the outcome of resolving one name pair.
type Result struct {
	Players    []Player   `json:"players"`
	Accurate   bool       `json:"accurate"`
	Provenance Provenance `json:"search_order"`
}

// Best returns the first (highest priority) candidate.
func (r Result) Best() (Player, bool) {
	if len(r.Players) == 0 {
		return Player{}, false
	}
	return r.Players[0], true
}

// Empty returns an inaccurate result with no candidates.
func Empty(p Provenance) Result {
	return Result{Players: []Player{}, Provenance: p}
}

// IsAccurate reports whether a candidate list identifies the person with confidence:
// exactly one candidate, or at least one from the home federation.
func IsAccurate(players []Player, home string) bool {
	if len(players) == 1 {
		return true
	}
	for _, p := range players {
		if p.Federation == home {
			return true
		}
	}
	return false
}

// Sort orders players in place: home federation first, then by name ignoring case.
func Sort(players []Player, home string) {
	// Collators keep internal buffers, so each call gets its own.
	col := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreWidth)
	slices.SortStableFunc(players, func(a, b Player) int {
		aHome, bHome := a.Federation == home, b.Federation == home
		switch {
		case aHome && !bHome:
			return -1
		case !aHome && bHome:
			return 1
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.FIDEID, b.FIDEID)
	})
}

// Exclude returns players whose FIDE ID is not in denied. The input is not modified.
func Exclude(players []Player, denied map[string]bool) []Player {
	out := make([]Player, 0, len(players))
	for _, p := range players {
		if p.FIDEID != "" && denied[p.FIDEID] {
			continue
		}
		out = append(out, p)
	}
	return out
}
