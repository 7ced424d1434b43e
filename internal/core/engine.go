package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
	"go.uber.org/zap"
)

// EngineConfig carries the matching-relevant settings. An empty Symbols list
// disables the symbol whitelist.
type EngineConfig struct {
	Symbols         []string
	SelfTradePolicy SelfTradePolicy
}

// bookShard is the exclusive-access domain of one symbol: its book plus the
// mutex serializing matching and cancellation. Arrival order at the mutex is
// the time component of price-time priority.
type bookShard struct {
	mu   sync.Mutex
	book *OrderBook
}

// Engine is the external interface of the matching core: submit, cancel and
// the market-data reads. Different symbols match fully in parallel; within a
// symbol every mutation serializes on its shard.
type Engine struct {
	repo     port.Repository
	cache    port.Cache
	notifier port.Notifier
	log      *zap.Logger
	matcher  *Matcher
	symbols  map[string]struct{}

	seq atomic.Uint64

	mu     sync.RWMutex
	shards map[string]*bookShard
	orders map[string]*domain.Order
	trades map[string][]*domain.Trade
}

// NewEngine wires the core to its collaborators. repo, cache and notifier
// may each be nil; the engine then runs purely in memory for that concern.
func NewEngine(cfg EngineConfig, repo port.Repository, cache port.Cache, notifier port.Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}
	return &Engine{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		log:      log,
		matcher:  NewMatcher(cfg.SelfTradePolicy),
		symbols:  symbols,
		shards:   make(map[string]*bookShard),
		orders:   make(map[string]*domain.Order),
		trades:   make(map[string][]*domain.Trade),
	}
}

// LoadOpenOrders rebuilds the books from the repository on startup. Orders
// arrive in Seq order, so FIFO priority survives a restart.
func (e *Engine) LoadOpenOrders(ctx context.Context, symbols []string) error {
	if e.repo == nil {
		return nil
	}
	for _, sym := range symbols {
		orders, err := e.repo.LoadOpenOrders(ctx, sym)
		if err != nil {
			return fmt.Errorf("load open orders for %s: %w", sym, err)
		}
		e.mu.Lock()
		for _, o := range orders {
			e.orders[o.ID] = o
		}
		e.mu.Unlock()

		sh := e.shard(sym)
		sh.mu.Lock()
		for _, o := range orders {
			e.bumpSeq(o.Seq)
			if err := sh.book.Insert(o); err != nil {
				sh.mu.Unlock()
				return fmt.Errorf("rebuild book for %s: %w", sym, err)
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

// Submit validates an order intent, matches it against its symbol's book and
// returns the executed trades. The order is mutated in place and carries its
// final status on return. Validation happens before any book mutation; once
// it passes, partial execution with a resting remainder is the normal
// outcome, not a failure.
func (e *Engine) Submit(ctx context.Context, o *domain.Order) ([]*domain.Trade, error) {
	if o == nil {
		return nil, domain.Validationf("nil order")
	}
	if err := e.validate(o); err != nil {
		return nil, err
	}

	if o.Type == domain.Market {
		o.Price = decimal.Zero
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now()
	o.Status = domain.Open
	o.FilledQuantity = decimal.Zero
	o.Seq = e.seq.Add(1)
	o.CreatedAt = now
	o.UpdatedAt = now

	sh := e.shard(o.Symbol)
	e.mu.Lock()
	e.orders[o.ID] = o
	e.mu.Unlock()

	sh.mu.Lock()
	res, matchErr := e.matcher.Match(sh.book, o)
	if res == nil {
		sh.mu.Unlock()
		return nil, matchErr
	}
	e.persistMatch(ctx, o, res)
	e.refreshCache(ctx, o.Symbol, sh.book.Snapshot(0))
	takerCpy := o.Clone()
	makerCpys := make([]*domain.Order, len(res.Makers))
	for i, m := range res.Makers {
		makerCpys[i] = m.Clone()
	}
	sh.mu.Unlock()

	e.recordTrades(res)
	e.publish(ctx, takerCpy, makerCpys, res.Trades)

	if matchErr != nil {
		return res.Trades, matchErr
	}
	e.log.Info("order matched",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("status", string(o.Status)),
		zap.Int("trades", len(res.Trades)))
	return res.Trades, nil
}

// Cancel transitions an open order to CANCELLED and removes it from the
// book. It shares the symbol's serialization domain with matching, so a
// cancel is strictly ordered relative to any in-flight match.
func (e *Engine) Cancel(ctx context.Context, orderID, ownerID string) error {
	e.mu.RLock()
	o := e.orders[orderID]
	var sh *bookShard
	if o != nil {
		sh = e.shards[o.Symbol]
	}
	e.mu.RUnlock()

	if o == nil || sh == nil {
		return domain.ErrOrderNotFound
	}
	if o.OwnerID != ownerID {
		return domain.ErrNotOwner
	}

	sh.mu.Lock()
	if o.Status.Terminal() {
		sh.mu.Unlock()
		return domain.ErrAlreadyTerminal
	}
	o.Status = domain.Cancelled
	o.UpdatedAt = time.Now()
	sh.book.Remove(o.ID)
	if e.repo != nil {
		if err := e.repo.SaveOrder(ctx, o); err != nil {
			e.log.Warn("persist cancel", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	e.refreshCache(ctx, o.Symbol, sh.book.Snapshot(0))
	cpy := o.Clone()
	sh.mu.Unlock()

	e.notifyOrder(ctx, cpy)
	e.log.Info("order cancelled", zap.String("order_id", orderID), zap.String("symbol", cpy.Symbol))
	return nil
}

// BookView returns the aggregated view of one symbol's book, cache-first,
// truncated to depth levels per side.
func (e *Engine) BookView(ctx context.Context, symbol string, depth int) (*domain.BookView, error) {
	if !e.knownSymbol(symbol) {
		return nil, domain.ErrUnknownSymbol
	}
	if e.cache != nil {
		if v, err := e.cache.GetBookView(ctx, symbol); err == nil && v != nil {
			return truncateView(v, depth), nil
		}
	}
	sh := e.shard(symbol)
	sh.mu.Lock()
	view := sh.book.Snapshot(0)
	sh.mu.Unlock()
	if e.cache != nil {
		if err := e.cache.SetBookView(ctx, symbol, view); err != nil {
			e.log.Warn("cache book view", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return truncateView(view, depth), nil
}

// Ticker condenses the book into best bid, best ask and their midpoint.
func (e *Engine) Ticker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	view, err := e.BookView(ctx, symbol, 1)
	if err != nil {
		return nil, err
	}
	t := &domain.Ticker{Symbol: symbol, Bid: view.BestBid(), Ask: view.BestAsk()}
	switch {
	case t.Bid != nil && t.Ask != nil:
		mid := t.Bid.Add(*t.Ask).Div(decimal.NewFromInt(2))
		t.LastPrice = &mid
	case t.Bid != nil:
		t.LastPrice = t.Bid
	case t.Ask != nil:
		t.LastPrice = t.Ask
	}
	return t, nil
}

// GetOrder returns a copy of the order's current state.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	e.mu.RLock()
	o := e.orders[orderID]
	var sh *bookShard
	if o != nil {
		sh = e.shards[o.Symbol]
	}
	e.mu.RUnlock()
	if o == nil || sh == nil {
		return nil, domain.ErrOrderNotFound
	}
	sh.mu.Lock()
	cpy := o.Clone()
	sh.mu.Unlock()
	return cpy, nil
}

// TradesForOrder returns every trade the order participated in, maker or
// taker side, in execution order.
func (e *Engine) TradesForOrder(ctx context.Context, orderID string) ([]*domain.Trade, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.orders[orderID]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	trades := e.trades[orderID]
	out := make([]*domain.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

// ListOrders returns an owner's order history, newest first, optionally
// filtered by symbol and status.
func (e *Engine) ListOrders(ctx context.Context, ownerID, symbol string, status domain.OrderStatus) ([]*domain.Order, error) {
	e.mu.RLock()
	candidates := make([]*domain.Order, 0)
	shards := make([]*bookShard, 0)
	for _, o := range e.orders {
		if o.OwnerID != ownerID {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		candidates = append(candidates, o)
		shards = append(shards, e.shards[o.Symbol])
	}
	e.mu.RUnlock()

	out := make([]*domain.Order, 0, len(candidates))
	for i, o := range candidates {
		sh := shards[i]
		sh.mu.Lock()
		cpy := o.Clone()
		sh.mu.Unlock()
		if status != "" && cpy.Status != status {
			continue
		}
		out = append(out, cpy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (e *Engine) validate(o *domain.Order) error {
	switch o.Side {
	case domain.Buy, domain.Sell:
	default:
		return domain.Validationf("invalid side %q", o.Side)
	}
	switch o.Type {
	case domain.Limit, domain.Market:
	default:
		return domain.Validationf("invalid order type %q", o.Type)
	}
	if o.Symbol == "" {
		return domain.Validationf("symbol is required")
	}
	if !e.knownSymbol(o.Symbol) {
		return domain.Validationf("unknown symbol %q", o.Symbol)
	}
	if o.OwnerID == "" {
		return domain.Validationf("owner is required")
	}
	if o.Quantity.Sign() <= 0 {
		return domain.Validationf("quantity must be positive")
	}
	if o.Type == domain.Limit && o.Price.Sign() <= 0 {
		return domain.Validationf("price must be positive for limit orders")
	}
	return nil
}

func (e *Engine) knownSymbol(symbol string) bool {
	if len(e.symbols) == 0 {
		return symbol != ""
	}
	_, ok := e.symbols[symbol]
	return ok
}

// shard returns the symbol's exclusive-access domain, creating it on first
// use. Must not be called with a shard lock held.
func (e *Engine) shard(symbol string) *bookShard {
	e.mu.RLock()
	sh, ok := e.shards[symbol]
	e.mu.RUnlock()
	if ok {
		return sh
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if sh, ok = e.shards[symbol]; ok {
		return sh
	}
	sh = &bookShard{book: NewOrderBook(symbol)}
	e.shards[symbol] = sh
	return sh
}

func (e *Engine) bumpSeq(seq uint64) {
	for {
		cur := e.seq.Load()
		if seq <= cur || e.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

func (e *Engine) recordTrades(res *MatchResult) {
	if len(res.Trades) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range res.Trades {
		e.trades[t.TakerOrderID] = append(e.trades[t.TakerOrderID], t)
		e.trades[t.MakerOrderID] = append(e.trades[t.MakerOrderID], t)
	}
}

func (e *Engine) refreshCache(ctx context.Context, symbol string, view *domain.BookView) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetBookView(ctx, symbol, view); err != nil {
		e.log.Warn("cache book view", zap.String("symbol", symbol), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, taker *domain.Order, makers []*domain.Order, trades []*domain.Trade) {
	if e.notifier == nil {
		return
	}
	for _, t := range trades {
		if err := e.notifier.PublishTrade(ctx, t); err != nil {
			e.log.Warn("publish trade", zap.String("trade_id", t.ID), zap.Error(err))
		}
	}
	e.notifyOrder(ctx, taker)
	for _, m := range makers {
		e.notifyOrder(ctx, m)
	}
}

func (e *Engine) notifyOrder(ctx context.Context, o *domain.Order) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.PublishOrderUpdate(ctx, o); err != nil {
		e.log.Warn("publish order update", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func truncateView(v *domain.BookView, depth int) *domain.BookView {
	if depth <= 0 {
		return v
	}
	out := *v
	if depth < len(out.Bids) {
		out.Bids = out.Bids[:depth]
	}
	if depth < len(out.Asks) {
		out.Asks = out.Asks[:depth]
	}
	return &out
}
