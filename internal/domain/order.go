package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type OrderStatus string

const (
	Buy             Side        = "BUY"
	Sell            Side        = "SELL"
	Limit           OrderType   = "LIMIT"
	Market          OrderType   = "MARKET"
	Open            OrderStatus = "OPEN"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Filled          OrderStatus = "FILLED"
	Cancelled       OrderStatus = "CANCELLED"
)

// Opposite returns the side an order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == Filled || s == Cancelled
}

// Order is a resting or historical intent to buy or sell a quantity of one
// symbol at a limit price, or unconditionally at market. Price is the zero
// decimal for market orders. Seq is assigned by the engine in arrival order
// and is the FIFO tie-break at equal price.
type Order struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Type           OrderType       `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Status         OrderStatus     `json:"status"`
	Seq            uint64          `json:"seq"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Remaining is the unexecuted quantity. It is derived, not stored, so it can
// never disagree with FilledQuantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Fill records an execution of qty against the order and advances the status
// machine: remaining 0 means FILLED, anything else PARTIALLY_FILLED.
func (o *Order) Fill(qty decimal.Decimal, at time.Time) {
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	if o.Remaining().Sign() <= 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
	o.UpdatedAt = at
}

func (o *Order) Clone() *Order {
	cpy := *o
	return &cpy
}
