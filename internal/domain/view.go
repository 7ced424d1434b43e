package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one aggregated level of a book view: the total remaining
// quantity resting at a price.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BookView is a point-in-time aggregated view of one symbol's book, bids and
// asks sorted best-first. Spread is nil when either side is empty.
type BookView struct {
	Symbol    string           `json:"symbol"`
	Bids      []PriceLevel     `json:"bids"`
	Asks      []PriceLevel     `json:"asks"`
	Spread    *decimal.Decimal `json:"spread"`
	Timestamp time.Time        `json:"timestamp"`
}

// BestBid returns the top bid price, or nil when there are no bids.
func (v *BookView) BestBid() *decimal.Decimal {
	if len(v.Bids) == 0 {
		return nil
	}
	return &v.Bids[0].Price
}

// BestAsk returns the top ask price, or nil when there are no asks.
func (v *BookView) BestAsk() *decimal.Decimal {
	if len(v.Asks) == 0 {
		return nil
	}
	return &v.Asks[0].Price
}

// Ticker is the condensed market-data view served alongside the book:
// best bid, best ask and their midpoint (one-sided when only one exists).
type Ticker struct {
	Symbol    string           `json:"symbol"`
	LastPrice *decimal.Decimal `json:"last_price"`
	Bid       *decimal.Decimal `json:"bid"`
	Ask       *decimal.Decimal `json:"ask"`
}
