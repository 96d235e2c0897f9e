package roster

import (
	"strings"
	"unicode"
)

// Header aliases, compared after folding case and dropping whitespace.
var (
	firstNameAliases = aliasSet("firstName", "First Name", "firstname", "first_name", "First", "FirstName")
	lastNameAliases  = aliasSet("lastName", "Last Name", "lastname", "last_name", "Last", "LastName")
)

// nameOnlyColumn is treated as a last-name column when no first/last columns exist.
const nameOnlyColumn = "Name"

func aliasSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[headerKey(n)] = true
	}
	return set
}

func headerKey(s string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

// NameColumns locates the first- and last-name columns among headers.
// Either result may be empty when no matching column exists.
func NameColumns(headers []string) (first, last string) {
	for _, h := range headers {
		k := headerKey(h)
		if first == "" && firstNameAliases[k] {
			first = h
		}
		if last == "" && lastNameAliases[k] {
			last = h
		}
	}
	if first == "" && last == "" {
		for _, h := range headers {
			if h == nameOnlyColumn {
				return "", h
			}
		}
	}
	return first, last
}

// Names returns the row's first and last name via the header alias lookup.
func (r *Row) Names() (first, last string) {
	fc, lc := NameColumns(r.columns)
	if fc != "" {
		first = strings.TrimSpace(r.values[fc])
	}
	if lc != "" {
		last = strings.TrimSpace(r.values[lc])
	}
	return first, last
}

// Resolvable reports whether the row carries both names.
func (r *Row) Resolvable() bool {
	first, last := r.Names()
	return first != "" && last != ""
}
