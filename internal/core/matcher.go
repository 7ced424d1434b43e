package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/truecex/exchange/internal/domain"
)

// SelfTradePolicy decides what happens when an incoming order would cross a
// resting order with the same owner.
type SelfTradePolicy string

const (
	// SelfTradeSkip treats the same-owner maker as temporarily unavailable
	// and continues to the next order in priority. The default.
	SelfTradeSkip SelfTradePolicy = "SKIP"
	// SelfTradeReject aborts the incoming order with ErrSelfTrade. Trades
	// executed before the collision stand; the remainder is cancelled.
	SelfTradeReject SelfTradePolicy = "REJECT"
)

// Matcher runs the continuous double auction over one symbol's book:
// best price first, FIFO within a price, execution at the maker's price.
type Matcher struct {
	policy SelfTradePolicy
}

func NewMatcher(policy SelfTradePolicy) *Matcher {
	if policy != SelfTradeReject {
		policy = SelfTradeSkip
	}
	return &Matcher{policy: policy}
}

// MatchResult carries everything one matching call produced: the trades in
// execution order and the makers touched, for write-through persistence.
type MatchResult struct {
	Trades []*domain.Trade
	Makers []*domain.Order
}

// Match executes taker against book until the taker is filled, the opposite
// side is exhausted, or prices stop crossing. Both the taker and every maker
// touched are mutated in place; filled makers leave the book. A limit
// remainder is inserted to rest; a market remainder is discarded and the
// order goes terminal.
func (m *Matcher) Match(book *OrderBook, taker *domain.Order) (*MatchResult, error) {
	if taker.Status.Terminal() || taker.Remaining().Sign() <= 0 {
		return nil, domain.ErrInvalidOrderState
	}

	res := &MatchResult{}
	touched := make(map[string]bool)
	levels := book.sideLevels(taker.Side.Opposite())

	li := 0
	for taker.Remaining().Sign() > 0 && li < len(*levels) {
		lvl := (*levels)[li]
		if !priceEligible(taker, lvl.price) {
			break
		}

		oi := 0
		for taker.Remaining().Sign() > 0 && oi < len(lvl.orders) {
			maker := lvl.orders[oi]
			if maker.OwnerID == taker.OwnerID {
				if m.policy == SelfTradeReject {
					m.discard(taker)
					return res, domain.ErrSelfTrade
				}
				oi++
				continue
			}

			qty := decimal.Min(taker.Remaining(), maker.Remaining())
			now := time.Now()
			res.Trades = append(res.Trades, &domain.Trade{
				ID:           uuid.NewString(),
				Symbol:       taker.Symbol,
				Price:        maker.Price,
				Quantity:     qty,
				MakerOrderID: maker.ID,
				TakerOrderID: taker.ID,
				TakerSide:    taker.Side,
				ExecutedAt:   now,
			})
			if !touched[maker.ID] {
				touched[maker.ID] = true
				res.Makers = append(res.Makers, maker)
			}
			maker.Fill(qty, now)
			taker.Fill(qty, now)

			if maker.Status == domain.Filled {
				lvl.orders = append(lvl.orders[:oi], lvl.orders[oi+1:]...)
				delete(book.resting, maker.ID)
			}
		}

		if len(lvl.orders) == 0 {
			*levels = append((*levels)[:li], (*levels)[li+1:]...)
		} else {
			// only same-owner or partially matched orders remain here
			li++
		}
	}

	if taker.Remaining().Sign() > 0 {
		switch taker.Type {
		case domain.Limit:
			if err := book.Insert(taker); err != nil {
				return res, err
			}
		case domain.Market:
			// market orders never rest
			m.discard(taker)
		}
	}
	return res, nil
}

// discard terminates an order whose remainder will not rest. Executed fills
// are preserved; a fully executed order is already FILLED and untouched.
func (m *Matcher) discard(o *domain.Order) {
	if o.Status.Terminal() {
		return
	}
	o.Status = domain.Cancelled
	o.UpdatedAt = time.Now()
}

// priceEligible applies the crossing test: market orders always cross; a
// limit buy crosses asks at or below its price, a limit sell crosses bids
// at or above its price.
func priceEligible(taker *domain.Order, makerPrice decimal.Decimal) bool {
	if taker.Type == domain.Market {
		return true
	}
	if taker.Side == domain.Buy {
		return makerPrice.LessThanOrEqual(taker.Price)
	}
	return makerPrice.GreaterThanOrEqual(taker.Price)
}
