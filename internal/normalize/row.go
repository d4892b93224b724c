package normalize

import "strings"

// Cell is one table cell reduced to its visible text fragments: every text node
// below the cell, whitespace-trimmed, empty ones dropped, in document order.
type Cell struct {
	Parts []string
}

// NewCell builds a Cell from raw fragments, trimming them and dropping empties.
func NewCell(fragments ...string) Cell {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return Cell{Parts: parts}
}

// Text returns the cell's flat text: all fragments concatenated without a separator.
func (c Cell) Text() string {
	return strings.Join(c.Parts, "")
}

// Part returns the i-th fragment, or def when the cell has fewer fragments.
func (c Cell) Part(i int, def string) string {
	if i < len(c.Parts) {
		return c.Parts[i]
	}
	return def
}

// Row is an ordered sequence of cells from one table row.
type Row []Cell
