package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/truecex/exchange/internal/domain"
)

// priceLevel is one price point on a side of the book. Orders queue in
// arrival order, which is the FIFO component of price-time priority.
type priceLevel struct {
	price  decimal.Decimal
	orders []*domain.Order
}

func (l *priceLevel) totalRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.orders {
		total = total.Add(o.Remaining())
	}
	return total
}

// OrderBook holds the resting orders of one symbol: bids sorted best-first
// descending, asks best-first ascending, each level a FIFO queue. Every
// order present has remaining quantity > 0 and a non-terminal status.
// The book is not goroutine safe; callers serialize access per symbol.
type OrderBook struct {
	symbol  string
	bids    []*priceLevel
	asks    []*priceLevel
	resting map[string]*domain.Order
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol:  symbol,
		resting: make(map[string]*domain.Order),
	}
}

func (b *OrderBook) Symbol() string { return b.symbol }

// sideLevels returns the level slice holding orders of the given side.
func (b *OrderBook) sideLevels(side domain.Side) *[]*priceLevel {
	if side == domain.Buy {
		return &b.bids
	}
	return &b.asks
}

// levelIndex locates the insertion point for price on a side: the index of
// the level with an equal price, or where a new level belongs. Bids are kept
// descending, asks ascending, so lookup is a binary search.
func levelIndex(levels []*priceLevel, side domain.Side, price decimal.Decimal) (int, bool) {
	i := sort.Search(len(levels), func(i int) bool {
		if side == domain.Buy {
			return levels[i].price.LessThanOrEqual(price)
		}
		return levels[i].price.GreaterThanOrEqual(price)
	})
	if i < len(levels) && levels[i].price.Equal(price) {
		return i, true
	}
	return i, false
}

// Insert adds a resting order to its side of the book. Terminal orders and
// orders with no remaining quantity are an internal invariant breach.
func (b *OrderBook) Insert(o *domain.Order) error {
	if o.Status.Terminal() || o.Remaining().Sign() <= 0 {
		return domain.ErrInvalidOrderState
	}
	levels := b.sideLevels(o.Side)
	i, found := levelIndex(*levels, o.Side, o.Price)
	if found {
		(*levels)[i].orders = append((*levels)[i].orders, o)
	} else {
		lvl := &priceLevel{price: o.Price, orders: []*domain.Order{o}}
		*levels = append(*levels, nil)
		copy((*levels)[i+1:], (*levels)[i:])
		(*levels)[i] = lvl
	}
	b.resting[o.ID] = o
	return nil
}

// Remove takes an order out of the book. Removing an absent id is a no-op.
func (b *OrderBook) Remove(orderID string) {
	o, ok := b.resting[orderID]
	if !ok {
		return
	}
	delete(b.resting, orderID)
	levels := b.sideLevels(o.Side)
	i, found := levelIndex(*levels, o.Side, o.Price)
	if !found {
		return
	}
	lvl := (*levels)[i]
	for j, cand := range lvl.orders {
		if cand.ID == orderID {
			lvl.orders = append(lvl.orders[:j], lvl.orders[j+1:]...)
			break
		}
	}
	if len(lvl.orders) == 0 {
		*levels = append((*levels)[:i], (*levels)[i+1:]...)
	}
}

// BestOpposite returns the highest-priority resting order on the side
// opposite to the given one, or nil when that side is empty.
func (b *OrderBook) BestOpposite(side domain.Side) *domain.Order {
	levels := *b.sideLevels(side.Opposite())
	if len(levels) == 0 {
		return nil
	}
	return levels[0].orders[0]
}

// Spread is best ask minus best bid, nil when either side is empty.
func (b *OrderBook) Spread() *decimal.Decimal {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return nil
	}
	s := b.asks[0].price.Sub(b.bids[0].price)
	return &s
}

// Snapshot aggregates remaining quantity per price level, best-first,
// truncated to depth levels per side. depth <= 0 means every level.
// The book is not mutated.
func (b *OrderBook) Snapshot(depth int) *domain.BookView {
	view := &domain.BookView{
		Symbol:    b.symbol,
		Bids:      aggregate(b.bids, depth),
		Asks:      aggregate(b.asks, depth),
		Spread:    b.Spread(),
		Timestamp: time.Now(),
	}
	return view
}

func aggregate(levels []*priceLevel, depth int) []domain.PriceLevel {
	if depth <= 0 || depth > len(levels) {
		depth = len(levels)
	}
	out := make([]domain.PriceLevel, 0, depth)
	for _, lvl := range levels[:depth] {
		out = append(out, domain.PriceLevel{
			Price:    lvl.price,
			Quantity: lvl.totalRemaining(),
		})
	}
	return out
}

// BidCount reports the number of resting bid orders.
func (b *OrderBook) BidCount() int { return b.sideCount(b.bids) }

// AskCount reports the number of resting ask orders.
func (b *OrderBook) AskCount() int { return b.sideCount(b.asks) }

func (b *OrderBook) sideCount(levels []*priceLevel) int {
	n := 0
	for _, lvl := range levels {
		n += len(lvl.orders)
	}
	return n
}
