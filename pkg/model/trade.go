package model

import "time"

// NotAvailable is the placeholder used for any trade field the source did not provide.
const NotAvailable = "N/A"

// Trade is one normalized disclosure of a securities transaction filed by a politician.
// Fields hold display strings exactly as scraped; only Value is derived.
type Trade struct {
	Politician   string `json:"politician"`
	Party        string `json:"party"`
	Chamber      string `json:"chamber"`
	State        string `json:"state"`
	TradedIssuer string `json:"traded_issuer"`
	Ticker       string `json:"ticker"`
	Sector       string `json:"sector"`
	Published    string `json:"published"`
	Traded       string `json:"traded"`
	FiledAfter   string `json:"filed_after"`
	Owner        string `json:"owner"`
	Type         string `json:"type"`
	Size         string `json:"size"`
	Value        int64  `json:"value"`
	Price        string `json:"price"`
}

// HasTicker reports whether the trade carries a usable ticker symbol.
func (t Trade) HasTicker() bool {
	return t.Ticker != "" && t.Ticker != NotAvailable
}

// HasPrice reports whether the trade carries a usable price.
func (t Trade) HasPrice() bool {
	return t.Price != "" && t.Price != NotAvailable
}

// Snapshot is the full set of trades captured by one run.
type Snapshot struct {
	ID         string
	CreatedAt  time.Time
	TotalCount int
	Trades     []Trade
}
