package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truecex/exchange/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMatchRestsOnEmptyBook(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	taker := limitOrder("alice", domain.Buy, "45000", "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, domain.Open, taker.Status)
	assert.Equal(t, 1, b.BidCount())
	assert.Equal(t, taker.ID, b.BestOpposite(domain.Sell).ID)
}

func TestMatchExactCross(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	maker := limitOrder("alice", domain.Buy, "45000", "1.0")
	_, err := m.Match(b, maker)
	require.NoError(t, err)

	taker := limitOrder("bob", domain.Sell, "45000", "1.0")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.True(t, tr.Price.Equal(d("45000")))
	assert.True(t, tr.Quantity.Equal(d("1.0")))
	assert.Equal(t, maker.ID, tr.MakerOrderID)
	assert.Equal(t, taker.ID, tr.TakerOrderID)
	assert.Equal(t, domain.Sell, tr.TakerSide)

	assert.Equal(t, domain.Filled, maker.Status)
	assert.Equal(t, domain.Filled, taker.Status)
	assert.Equal(t, 0, b.BidCount())
	assert.Equal(t, 0, b.AskCount())
}

func TestMatchPartialFillRestsRemainder(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	maker := limitOrder("alice", domain.Buy, "45000", "0.4")
	_, err := m.Match(b, maker)
	require.NoError(t, err)

	taker := limitOrder("bob", domain.Sell, "45000", "1.0")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Quantity.Equal(d("0.4")))
	assert.Equal(t, domain.Filled, maker.Status)
	assert.Equal(t, domain.PartiallyFilled, taker.Status)
	assert.True(t, taker.Remaining().Equal(d("0.6")))
	assert.Equal(t, 0, b.BidCount())
	assert.Equal(t, 1, b.AskCount())
	assert.Equal(t, taker.ID, b.BestOpposite(domain.Buy).ID)
}

func TestMatchPriceIneligibleRests(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	_, err := m.Match(b, limitOrder("alice", domain.Sell, "45100", "1"))
	require.NoError(t, err)

	taker := limitOrder("bob", domain.Buy, "45000", "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, domain.Open, taker.Status)
	assert.Equal(t, 1, b.BidCount())
	assert.Equal(t, 1, b.AskCount())
}

func TestMatchExecutesAtMakerPrice(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	_, err := m.Match(b, limitOrder("alice", domain.Sell, "44900", "1"))
	require.NoError(t, err)

	// buyer willing to pay more still fills at the resting price
	taker := limitOrder("bob", domain.Buy, "45200", "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Price.Equal(d("44900")))
}

func TestMatchWalksLevelsBestFirstFIFO(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	first := limitOrder("alice", domain.Sell, "45000", "0.3")
	second := limitOrder("carol", domain.Sell, "45000", "0.3")
	worse := limitOrder("dave", domain.Sell, "45100", "1")
	for _, o := range []*domain.Order{first, second, worse} {
		_, err := m.Match(b, o)
		require.NoError(t, err)
	}

	taker := limitOrder("bob", domain.Buy, "45100", "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 3)
	assert.Equal(t, first.ID, res.Trades[0].MakerOrderID)
	assert.Equal(t, second.ID, res.Trades[1].MakerOrderID)
	assert.Equal(t, worse.ID, res.Trades[2].MakerOrderID)
	assert.True(t, res.Trades[2].Quantity.Equal(d("0.4")))

	assert.Equal(t, domain.Filled, taker.Status)
	assert.Equal(t, domain.PartiallyFilled, worse.Status)
	require.Len(t, res.Makers, 3)
}

func TestMatchMarketOrderNeverRests(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	_, err := m.Match(b, limitOrder("alice", domain.Sell, "45000", "0.4"))
	require.NoError(t, err)

	taker := marketOrder("bob", domain.Buy, "1.0")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Quantity.Equal(d("0.4")))
	assert.Equal(t, domain.Cancelled, taker.Status)
	assert.True(t, taker.FilledQuantity.Equal(d("0.4")))
	assert.Equal(t, 0, b.AskCount())
	assert.Equal(t, 0, b.BidCount())
}

func TestMatchMarketOrderOnEmptyBookCancels(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	taker := marketOrder("bob", domain.Sell, "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, domain.Cancelled, taker.Status)
	assert.True(t, taker.FilledQuantity.IsZero())
}

func TestMatchMarketOrderFullyFilled(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	_, err := m.Match(b, limitOrder("alice", domain.Sell, "45000", "2"))
	require.NoError(t, err)

	taker := marketOrder("bob", domain.Buy, "2")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.Filled, taker.Status)
}

func TestMatchSelfTradeSkip(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	own := limitOrder("alice", domain.Sell, "45000", "1")
	other := limitOrder("bob", domain.Sell, "45000", "1")
	for _, o := range []*domain.Order{own, other} {
		_, err := m.Match(b, o)
		require.NoError(t, err)
	}

	taker := limitOrder("alice", domain.Buy, "45000", "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, other.ID, res.Trades[0].MakerOrderID)
	assert.Equal(t, domain.Filled, taker.Status)

	// alice's own ask is untouched and still resting
	assert.Equal(t, domain.Open, own.Status)
	assert.Equal(t, 1, b.AskCount())
}

func TestMatchSelfTradeSkipRemainderRests(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	own := limitOrder("alice", domain.Sell, "45000", "1")
	_, err := m.Match(b, own)
	require.NoError(t, err)

	taker := limitOrder("alice", domain.Buy, "45000", "1")
	res, err := m.Match(b, taker)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, domain.Open, taker.Status)
	assert.Equal(t, 1, b.BidCount())
	assert.Equal(t, 1, b.AskCount())
}

func TestMatchSelfTradeReject(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeReject)

	other := limitOrder("bob", domain.Sell, "45000", "0.4")
	own := limitOrder("alice", domain.Sell, "45000", "1")
	for _, o := range []*domain.Order{other, own} {
		_, err := m.Match(b, o)
		require.NoError(t, err)
	}

	taker := limitOrder("alice", domain.Buy, "45000", "1")
	res, err := m.Match(b, taker)
	require.ErrorIs(t, err, domain.ErrSelfTrade)

	// the trade against bob executed before the collision and stands
	require.Len(t, res.Trades, 1)
	assert.Equal(t, other.ID, res.Trades[0].MakerOrderID)
	assert.Equal(t, domain.Cancelled, taker.Status)
	assert.True(t, taker.FilledQuantity.Equal(d("0.4")))

	// alice's resting ask survives
	assert.Equal(t, domain.Open, own.Status)
	assert.Equal(t, 1, b.AskCount())
	assert.Equal(t, 0, b.BidCount())
}

func TestMatchRejectsTerminalTaker(t *testing.T) {
	b := NewOrderBook("BTC-USDT")
	m := NewMatcher(SelfTradeSkip)

	taker := limitOrder("alice", domain.Buy, "45000", "1")
	taker.Status = domain.Cancelled
	_, err := m.Match(b, taker)
	assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
}
