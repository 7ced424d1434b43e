package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the write-once record of a single match. Price is always the
// maker's limit price; the taker's limit only gated eligibility.
type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	TakerSide    Side            `json:"taker_side"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// BuyOrderID returns the id of the buying side of the trade.
func (t *Trade) BuyOrderID() string {
	if t.TakerSide == Buy {
		return t.TakerOrderID
	}
	return t.MakerOrderID
}

// SellOrderID returns the id of the selling side of the trade.
func (t *Trade) SellOrderID() string {
	if t.TakerSide == Sell {
		return t.TakerOrderID
	}
	return t.MakerOrderID
}
