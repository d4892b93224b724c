// Package normalize turns scraped table rows into typed trade records.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// MinCells is the number of cells a row must have to describe a trade.
const MinCells = 9

// DefaultLimit is the row limit applied when the caller does not pass one.
const DefaultLimit = 12

// ErrTooFewCells is returned for rows that cannot hold a trade.
var ErrTooFewCells = errors.New("row has too few cells")

// Skipped records a row that was dropped from a batch.
type Skipped struct {
	Index int
	Err   error
}

// Batch is the outcome of normalizing a run of rows: the parsed trades in row
// order and every row that was dropped.
type Batch struct {
	Trades  []model.Trade
	Skipped []Skipped
}

// Normalize parses at most limit rows. A row that fails is recorded in
// Batch.Skipped and never aborts the batch. A non-positive limit means DefaultLimit.
func Normalize(rows []Row, limit int) Batch {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	batch := Batch{Trades: make([]model.Trade, 0, len(rows))}
	for i, row := range rows {
		trade, err := ParseRow(row)
		if err != nil {
			batch.Skipped = append(batch.Skipped, Skipped{Index: i, Err: err})
			continue
		}
		batch.Trades = append(batch.Trades, trade)
	}
	return batch
}

// ParseRow maps one table row to a Trade.
//
// Cell layout: 0 politician/party/chamber/state, 1 issuer/ticker, 2 published,
// 3 traded, 4 filed after, 5 owner, 6 type, 7 size, 8 price.
func ParseRow(row Row) (model.Trade, error) {
	if len(row) < MinCells {
		return model.Trade{}, fmt.Errorf("%w: got %d, need %d", ErrTooFewCells, len(row), MinCells)
	}

	who := row[0]
	issuer := row[1]
	size := row[7].Text()

	return model.Trade{
		Politician:   who.Part(0, model.NotAvailable),
		Party:        optional(who, 1, capitalize),
		Chamber:      optional(who, 2, capitalize),
		State:        optional(who, 3, strings.ToUpper),
		TradedIssuer: issuer.Part(0, model.NotAvailable),
		Ticker:       stripExchange(issuer.Part(1, model.NotAvailable)),
		Sector:       model.NotAvailable,
		Published:    row[2].Text(),
		Traded:       row[3].Text(),
		FiledAfter:   filedAfter(row[4]),
		Owner:        row[5].Text(),
		Type:         capitalize(row[6].Text()),
		Size:         size,
		Value:        EstimateValue(size),
		Price:        row[8].Text(),
	}, nil
}

func optional(c Cell, i int, transform func(string) string) string {
	if i >= len(c.Parts) {
		return model.NotAvailable
	}
	return transform(c.Parts[i])
}

// stripExchange drops everything from the first ':' ("NVDA:US" -> "NVDA").
func stripExchange(ticker string) string {
	if i := strings.IndexByte(ticker, ':'); i >= 0 {
		return ticker[:i]
	}
	return ticker
}

// filedAfter renders the reporting gap. The source lays it out as a "days"
// label followed by the count; anything else is kept verbatim.
func filedAfter(c Cell) string {
	if len(c.Parts) == 2 && c.Parts[0] == "days" {
		return c.Parts[1] + " days"
	}
	return c.Text()
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
