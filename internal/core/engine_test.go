package core

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truecex/exchange/internal/adapter/in_memory"
	"github.com/truecex/exchange/internal/domain"
)

func newTestEngine(t *testing.T, policy SelfTradePolicy) (*Engine, *in_memory.MemoryRepo) {
	t.Helper()
	repo := in_memory.NewMemoryRepo()
	eng := NewEngine(EngineConfig{
		Symbols:         []string{"BTC-USDT", "ETH-USDT"},
		SelfTradePolicy: policy,
	}, repo, nil, nil, nil)
	return eng, repo
}

func intent(owner string, side domain.Side, typ domain.OrderType, price, qty string) *domain.Order {
	o := &domain.Order{
		OwnerID:  owner,
		Symbol:   "BTC-USDT",
		Side:     side,
		Type:     typ,
		Quantity: decimal.RequireFromString(qty),
	}
	if typ == domain.Limit {
		o.Price = decimal.RequireFromString(price)
	}
	return o
}

func TestEngineSubmitValidation(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	cases := []struct {
		name  string
		order *domain.Order
	}{
		{"nil order", nil},
		{"bad side", &domain.Order{OwnerID: "a", Symbol: "BTC-USDT", Side: "HOLD", Type: domain.Limit, Price: decimal.New(1, 0), Quantity: decimal.New(1, 0)}},
		{"bad type", &domain.Order{OwnerID: "a", Symbol: "BTC-USDT", Side: domain.Buy, Type: "STOP", Price: decimal.New(1, 0), Quantity: decimal.New(1, 0)}},
		{"missing symbol", intentWith(func(o *domain.Order) { o.Symbol = "" })},
		{"unknown symbol", intentWith(func(o *domain.Order) { o.Symbol = "DOGE-USDT" })},
		{"missing owner", intentWith(func(o *domain.Order) { o.OwnerID = "" })},
		{"zero quantity", intentWith(func(o *domain.Order) { o.Quantity = decimal.Zero })},
		{"negative quantity", intentWith(func(o *domain.Order) { o.Quantity = decimal.New(-1, 0) })},
		{"limit without price", intentWith(func(o *domain.Order) { o.Price = decimal.Zero })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.Submit(ctx, tc.order)
			assert.True(t, domain.IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func intentWith(mutate func(*domain.Order)) *domain.Order {
	o := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	mutate(o)
	return o
}

func TestEngineSubmitMatchesAndPersists(t *testing.T) {
	eng, repo := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	maker := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	_, err := eng.Submit(ctx, maker)
	require.NoError(t, err)

	taker := intent("bob", domain.Sell, domain.Limit, "45000", "1")
	trades, err := eng.Submit(ctx, taker)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	// taker, maker and trade all reach the repository
	assert.Equal(t, 1, repo.TradeCount())
	for _, id := range []string{maker.ID, taker.ID} {
		saved := repo.Order(id)
		require.NotNil(t, saved, "order %s not persisted", id)
		assert.Equal(t, domain.Filled, saved.Status)
	}
}

func TestEngineSubmitAssignsMonotonicSeq(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	a := intent("alice", domain.Buy, domain.Limit, "44000", "1")
	b := intent("bob", domain.Buy, domain.Limit, "44000", "1")
	_, err := eng.Submit(ctx, a)
	require.NoError(t, err)
	_, err = eng.Submit(ctx, b)
	require.NoError(t, err)
	assert.Less(t, a.Seq, b.Seq)
}

func TestEngineCancel(t *testing.T) {
	eng, repo := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	o := intent("alice", domain.Buy, domain.Limit, "44000", "1")
	_, err := eng.Submit(ctx, o)
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(ctx, o.ID, "alice"))

	got, err := eng.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, got.Status)
	assert.Equal(t, domain.Cancelled, repo.Order(o.ID).Status)

	view, err := eng.BookView(ctx, "BTC-USDT", 0)
	require.NoError(t, err)
	assert.Empty(t, view.Bids)
}

func TestEngineCancelErrors(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	o := intent("alice", domain.Buy, domain.Limit, "44000", "1")
	_, err := eng.Submit(ctx, o)
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Cancel(ctx, "no-such-order", "alice"), domain.ErrOrderNotFound)
	assert.ErrorIs(t, eng.Cancel(ctx, o.ID, "mallory"), domain.ErrNotOwner)

	require.NoError(t, eng.Cancel(ctx, o.ID, "alice"))
	// second cancel finds the order already terminal
	assert.ErrorIs(t, eng.Cancel(ctx, o.ID, "alice"), domain.ErrAlreadyTerminal)
}

func TestEngineCancelFilledOrder(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	maker := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	_, err := eng.Submit(ctx, maker)
	require.NoError(t, err)
	_, err = eng.Submit(ctx, intent("bob", domain.Sell, domain.Limit, "45000", "1"))
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Cancel(ctx, maker.ID, "alice"), domain.ErrAlreadyTerminal)
}

func TestEngineSelfTradeRejectReturnsPriorTrades(t *testing.T) {
	eng, repo := newTestEngine(t, SelfTradeReject)
	ctx := context.Background()

	_, err := eng.Submit(ctx, intent("bob", domain.Sell, domain.Limit, "45000", "0.4"))
	require.NoError(t, err)
	own := intent("alice", domain.Sell, domain.Limit, "45000", "1")
	_, err = eng.Submit(ctx, own)
	require.NoError(t, err)

	taker := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	trades, err := eng.Submit(ctx, taker)
	require.ErrorIs(t, err, domain.ErrSelfTrade)
	require.Len(t, trades, 1)

	// the pre-collision trade persists and is queryable
	assert.Equal(t, 1, repo.TradeCount())
	got, err := eng.TradesForOrder(ctx, taker.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, domain.Cancelled, repo.Order(taker.ID).Status)
}

func TestEngineBookView(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	_, err := eng.BookView(ctx, "DOGE-USDT", 0)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)

	for _, price := range []string{"44800", "44900", "45000"} {
		_, err := eng.Submit(ctx, intent("alice", domain.Buy, domain.Limit, price, "1"))
		require.NoError(t, err)
	}
	_, err = eng.Submit(ctx, intent("bob", domain.Sell, domain.Limit, "45100", "1"))
	require.NoError(t, err)

	view, err := eng.BookView(ctx, "BTC-USDT", 2)
	require.NoError(t, err)
	require.Len(t, view.Bids, 2)
	require.Len(t, view.Asks, 1)
	assert.True(t, view.Bids[0].Price.Equal(decimal.RequireFromString("45000")))
	require.NotNil(t, view.Spread)
	assert.True(t, view.Spread.Equal(decimal.RequireFromString("100")))
}

func TestEngineTicker(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	// empty book: no prices at all
	tk, err := eng.Ticker(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.Nil(t, tk.Bid)
	assert.Nil(t, tk.Ask)
	assert.Nil(t, tk.LastPrice)

	_, err = eng.Submit(ctx, intent("alice", domain.Buy, domain.Limit, "44000", "1"))
	require.NoError(t, err)
	_, err = eng.Submit(ctx, intent("bob", domain.Sell, domain.Limit, "46000", "1"))
	require.NoError(t, err)

	tk, err = eng.Ticker(ctx, "BTC-USDT")
	require.NoError(t, err)
	require.NotNil(t, tk.LastPrice)
	assert.True(t, tk.LastPrice.Equal(decimal.RequireFromString("45000")))
}

func TestEngineGetOrderAndTrades(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	_, err := eng.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = eng.TradesForOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	maker := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	_, err = eng.Submit(ctx, maker)
	require.NoError(t, err)
	taker := intent("bob", domain.Sell, domain.Limit, "45000", "0.4")
	_, err = eng.Submit(ctx, taker)
	require.NoError(t, err)

	got, err := eng.GetOrder(ctx, maker.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PartiallyFilled, got.Status)
	assert.True(t, got.Remaining().Equal(decimal.RequireFromString("0.6")))

	// the same trade is reachable from both sides
	for _, id := range []string{maker.ID, taker.ID} {
		trades, err := eng.TradesForOrder(ctx, id)
		require.NoError(t, err)
		assert.Len(t, trades, 1)
	}
}

func TestEngineGetOrderReturnsCopy(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	o := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	_, err := eng.Submit(ctx, o)
	require.NoError(t, err)

	got, err := eng.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	got.Status = domain.Filled

	again, err := eng.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Open, again.Status)
}

func TestEngineListOrders(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	first := intent("alice", domain.Buy, domain.Limit, "44000", "1")
	_, err := eng.Submit(ctx, first)
	require.NoError(t, err)
	second := intent("alice", domain.Sell, domain.Limit, "46000", "1")
	_, err = eng.Submit(ctx, second)
	require.NoError(t, err)
	eth := intent("alice", domain.Buy, domain.Limit, "3000", "1")
	eth.Symbol = "ETH-USDT"
	_, err = eng.Submit(ctx, eth)
	require.NoError(t, err)
	_, err = eng.Submit(ctx, intent("bob", domain.Buy, domain.Limit, "43000", "1"))
	require.NoError(t, err)

	all, err := eng.ListOrders(ctx, "alice", "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, eth.ID, all[0].ID)
	assert.Equal(t, first.ID, all[2].ID)

	btc, err := eng.ListOrders(ctx, "alice", "BTC-USDT", "")
	require.NoError(t, err)
	assert.Len(t, btc, 2)

	require.NoError(t, eng.Cancel(ctx, first.ID, "alice"))
	cancelled, err := eng.ListOrders(ctx, "alice", "", domain.Cancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, first.ID, cancelled[0].ID)
}

func TestEngineLoadOpenOrdersRebuildsBook(t *testing.T) {
	eng, repo := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	resting := intent("alice", domain.Buy, domain.Limit, "44000", "1")
	_, err := eng.Submit(ctx, resting)
	require.NoError(t, err)
	filled := intent("alice", domain.Buy, domain.Limit, "45000", "1")
	_, err = eng.Submit(ctx, filled)
	require.NoError(t, err)
	_, err = eng.Submit(ctx, intent("bob", domain.Sell, domain.Limit, "45000", "1"))
	require.NoError(t, err)

	// a fresh engine over the same repository
	restarted := NewEngine(EngineConfig{Symbols: []string{"BTC-USDT"}}, repo, nil, nil, nil)
	require.NoError(t, restarted.LoadOpenOrders(ctx, []string{"BTC-USDT"}))

	view, err := restarted.BookView(ctx, "BTC-USDT", 0)
	require.NoError(t, err)
	require.Len(t, view.Bids, 1)
	assert.True(t, view.Bids[0].Price.Equal(decimal.RequireFromString("44000")))

	got, err := restarted.GetOrder(ctx, resting.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Open, got.Status)

	// sequence resumes past the restored orders
	next := intent("carol", domain.Buy, domain.Limit, "43000", "1")
	_, err = restarted.Submit(ctx, next)
	require.NoError(t, err)
	assert.Greater(t, next.Seq, got.Seq)
}

func TestEngineSymbolsMatchIndependently(t *testing.T) {
	eng, _ := newTestEngine(t, SelfTradeSkip)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, sym := range []string{"BTC-USDT", "ETH-USDT"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				buy := intent("alice", domain.Buy, domain.Limit, "100", "1")
				buy.Symbol = sym
				if _, err := eng.Submit(ctx, buy); err != nil {
					t.Errorf("submit buy on %s: %v", sym, err)
					return
				}
				sell := intent("bob", domain.Sell, domain.Limit, "100", "1")
				sell.Symbol = sym
				if _, err := eng.Submit(ctx, sell); err != nil {
					t.Errorf("submit sell on %s: %v", sym, err)
					return
				}
			}
		}(sym)
	}
	wg.Wait()

	for _, sym := range []string{"BTC-USDT", "ETH-USDT"} {
		view, err := eng.BookView(ctx, sym, 0)
		require.NoError(t, err)
		assert.Empty(t, view.Bids, "%s bids should be fully crossed", sym)
		assert.Empty(t, view.Asks, "%s asks should be fully crossed", sym)
	}
}
