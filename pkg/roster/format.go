package roster

import (
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/codeGROOVE-dev/fidematch/pkg/player"
)

// alignSeparator joins padded cells when aligned output is requested.
const alignSeparator = "  "

// Format renders rows as tab-delimited text with the best candidate's rating for kind
// in a trailing rating column. When align is set, cells are padded to a common display
// width per column instead of being tab separated. Nil rows are skipped.
func Format(rows []*Row, headers []string, kind player.RatingKind, align bool) string {
	ratingCol := kind.Abbrev()
	cols := slices.Clone(headers)
	if !slices.Contains(cols, ratingCol) {
		cols = append(cols, ratingCol)
	}

	table := make([][]string, 0, len(rows)+1)
	table = append(table, cols)
	for _, r := range rows {
		if r == nil {
			continue
		}
		line := make([]string, len(cols))
		for i, c := range cols {
			if c == ratingCol {
				line[i] = rating(r, kind)
				continue
			}
			line[i] = r.Value(c)
		}
		table = append(table, line)
	}

	if align {
		padColumns(table)
	}

	sep := "\t"
	if align {
		sep = alignSeparator
	}
	out := make([]string, len(table))
	for i, line := range table {
		out[i] = strings.Join(line, sep)
	}
	return strings.Join(out, "\n")
}

func rating(r *Row, kind player.RatingKind) string {
	if r.Result == nil {
		return ""
	}
	best, ok := r.Result.Best()
	if !ok {
		return ""
	}
	return strings.TrimSpace(best.Rating(kind))
}

func padColumns(table [][]string) {
	if len(table) == 0 {
		return
	}
	widths := make([]int, len(table[0]))
	for _, line := range table {
		for i, cell := range line {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, line := range table {
		for i, cell := range line {
			line[i] = runewidth.FillRight(cell, widths[i])
		}
	}
}
