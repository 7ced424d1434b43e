package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubmitOrderRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Side     string          `json:"side" binding:"required"`
	Type     string          `json:"type" binding:"required"`
	Price    decimal.Decimal `json:"price,omitempty"` // limit orders only
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

type SubmitOrderResponse struct {
	Order  Order   `json:"order"`
	Trades []Trade `json:"trades"`
}

type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type GetTradesResponse struct {
	Trades []Trade `json:"trades"`
}

type OrderbookResponse struct {
	Symbol    string           `json:"symbol"`
	Bids      []PriceLevel     `json:"bids"`
	Asks      []PriceLevel     `json:"asks"`
	Spread    *decimal.Decimal `json:"spread"`
	Timestamp time.Time        `json:"timestamp"`
}

type TickerResponse struct {
	Symbol    string           `json:"symbol"`
	LastPrice *decimal.Decimal `json:"last_price"`
	Bid       *decimal.Decimal `json:"bid"`
	Ask       *decimal.Decimal `json:"ask"`
}

type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type Order struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Type           string          `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Remaining      decimal.Decimal `json:"remaining"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	TakerSide    string          `json:"taker_side"`
	ExecutedAt   time.Time       `json:"executed_at"`
}
