package scraper

import (
	"errors"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Checker-Finance/capitol-watch/internal/normalize"
)

// ErrNoTableBody is returned when the page has no table body to read.
var ErrNoTableBody = errors.New("no table body found")

// ParseTable reads the first tbody of the document and returns one Row per tr.
// Each cell holds the trimmed, non-empty text nodes of its td in document order.
func ParseTable(r io.Reader) ([]normalize.Row, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, ErrNoTableBody
	}

	var rows []normalize.Row
	tbody.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row normalize.Row
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, normalize.NewCell(textNodes(td)...))
		})
		rows = append(rows, row)
	})
	return rows, nil
}

func textNodes(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}
