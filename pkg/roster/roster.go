// Package roster converts tab-delimited roster text into rows and merges resolved ratings back into text.
//
// Two column slicing policies are supported. They agree on well-formed input and
// diverge when a row contains more tabs than its header:
//
//   - Anchored slices each row between the tab positions at which header names start,
//     joining the cells in between with a space. A free-text cell with an embedded tab
//     stays in its column, but the header's tab layout must be representative.
//   - Naive takes the single cell at each header's tab position and drops the rest.
package roster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/fidematch/pkg/player"
)

// Policy selects how row cells are assigned to header columns.
type Policy string

// Slicing policies.
const (
	Anchored Policy = "anchored"
	Naive    Policy = "naive"
)

// ParsePolicy parses a policy name; the empty string selects Anchored.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Anchored, Naive:
		return p, nil
	case "":
		return Anchored, nil
	default:
		return "", fmt.Errorf("unknown slicing policy %q (want anchored or naive)", s)
	}
}

// Row is one roster line: an ordered column -> value mapping plus the resolution outcome.
type Row struct {
	ID     string
	Result *player.Result // nil until resolved

	columns []string
	values  map[string]string
}

// NewRow creates an empty row with the given ID.
func NewRow(id string) *Row {
	return &Row{ID: id, values: make(map[string]string)}
}

// Set assigns a column value, appending the column if it is new.
func (r *Row) Set(column, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns a column value.
func (r *Row) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns a column value, or "" when the column is absent.
func (r *Row) Value(column string) string {
	return r.values[column]
}

// Columns returns the row's columns in insertion order.
func (r *Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Clone returns a copy of r sharing no mutable state.
func (r *Row) Clone() *Row {
	c := &Row{
		ID:      r.ID,
		columns: append([]string(nil), r.columns...),
		values:  make(map[string]string, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	if r.Result != nil {
		res := *r.Result
		res.Players = append([]player.Player(nil), r.Result.Players...)
		c.Result = &res
	}
	return c
}

type column struct {
	name  string
	index int // tab index in the header line
}

// Parse splits roster text into header names and rows.
// The first line is the header; every other non-empty line is a row.
func Parse(text string, policy Policy) (headers []string, rows []*Row) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, nil
	}

	var cols []column
	for i, cell := range strings.Split(lines[0], "\t") {
		if name := strings.TrimSpace(cell); name != "" {
			cols = append(cols, column{name: name, index: i})
			headers = append(headers, name)
		}
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		row := NewRow(strconv.Itoa(len(rows) + 1))
		for i, c := range cols {
			var value string
			if policy == Naive {
				value = cellAt(cells, c.index)
			} else {
				end := len(cells)
				if i+1 < len(cols) {
					end = cols[i+1].index
				}
				value = joinCells(cells, c.index, end)
			}
			row.Set(c.name, value)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

func joinCells(cells []string, start, end int) string {
	if start >= len(cells) {
		return ""
	}
	end = min(end, len(cells))
	return strings.TrimSpace(strings.Join(cells[start:end], " "))
}
