package in_memory

import (
	"context"
	"sort"
	"sync"

	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

// MemoryRepo keeps orders and trades in process memory. It backs tests and
// cacheless local runs where no Postgres DSN is configured.
type MemoryRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	trades map[string]*domain.Trade
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders: make(map[string]*domain.Order),
		trades: make(map[string]*domain.Trade),
	}
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *MemoryRepo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trades[t.ID]; ok {
		return nil // trades are write-once
	}
	cpy := *t
	r.trades[t.ID] = &cpy
	return nil
}

func (r *MemoryRepo) LoadOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Order
	for _, o := range r.orders {
		if o.Symbol == symbol && !o.Status.Terminal() && o.Remaining().Sign() > 0 {
			res = append(res, o.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq < res[j].Seq })
	return res, nil
}

// BeginTx returns a transaction that buffers writes and applies them on
// commit, mirroring the atomicity of the Postgres adapter.
func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	return &memTx{repo: r}, nil
}

// TradeCount reports the number of persisted trades. Test helper.
func (r *MemoryRepo) TradeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

// Order returns the persisted state of an order, or nil. Test helper.
func (r *MemoryRepo) Order(id string) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil
	}
	return o.Clone()
}

type memTx struct {
	repo   *MemoryRepo
	orders []*domain.Order
	trades []*domain.Trade
	done   bool
}

func (t *memTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	t.orders = append(t.orders, o.Clone())
	return nil
}

func (t *memTx) SaveTrade(ctx context.Context, tr *domain.Trade) error {
	cpy := *tr
	t.trades = append(t.trades, &cpy)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, o := range t.orders {
		t.repo.orders[o.ID] = o
	}
	for _, tr := range t.trades {
		if _, ok := t.repo.trades[tr.ID]; !ok {
			t.repo.trades[tr.ID] = tr
		}
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	t.orders = nil
	t.trades = nil
	return nil
}
