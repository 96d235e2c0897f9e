package fide

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/codeGROOVE-dev/fidematch/pkg/player"
)

// resultsTableID is the id of the registry's search results table.
const resultsTableID = "table_results"

// federationPattern picks the 3-letter code out of a federation cell, which also
// carries a flag image and the federation name.
var federationPattern = regexp.MustCompile(`([A-Z]{3})$`)

// Parse extracts candidates from registry search markup and sorts them with the home
// federation first. Markup without a results table yields an empty list.
func Parse(markup []byte, home string) []player.Player {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return []player.Player{}
	}

	table := findByID(doc, resultsTableID)
	if table == nil {
		return []player.Player{}
	}

	players := []player.Player{}
	for _, tr := range bodyRows(table) {
		players = append(players, parseRow(cells(tr)))
	}
	player.Sort(players, home)
	return players
}

func parseRow(tds []string) player.Player {
	cell := func(i int) string {
		if i < len(tds) {
			return tds[i]
		}
		return ""
	}
	return player.Player{
		FIDEID:       cell(0),
		Name:         cell(1),
		Title:        cell(2),
		TrainerTitle: cell(3),
		Federation:   federation(cell(4)),
		Standard:     cell(5),
		Rapid:        cell(6),
		Blitz:        cell(7),
		BirthYear:    cell(8),
	}
}

func federation(raw string) string {
	s := strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(raw))
	if m := federationPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// bodyRows returns every tr below a tbody of table, in document order.
func bodyRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tbody":
				inBody = true
			case "tr":
				if inBody {
					rows = append(rows, n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
	}
	walk(table, false)
	return rows
}

// cells returns the trimmed text of every td below tr.
func cells(tr *html.Node) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" {
			out = append(out, getTextContent(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(tr)
	return out
}

func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(sb.String())
}
