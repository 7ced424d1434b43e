package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
)

var _ port.Repository = (*Repo)(nil)

// execer is the subset of pgx shared by pools and transactions.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repo is the pgx-backed write-through store for orders and trades.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Connect builds a pool from a DSN. Call Close when done.
func Connect(ctx context.Context, dsn string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

const upsertOrderSQL = `
INSERT INTO orders(id, owner_id, symbol, side, type, price, quantity, filled_quantity, status, seq, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  filled_quantity = EXCLUDED.filled_quantity,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`

const insertTradeSQL = `
INSERT INTO trades(id, symbol, price, quantity, maker_order_id, taker_order_id, taker_side, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`

func saveOrder(ctx context.Context, x execer, o *domain.Order) error {
	if o == nil {
		return errors.New("pg: nil order")
	}
	_, err := x.Exec(ctx, upsertOrderSQL,
		o.ID, o.OwnerID, o.Symbol, string(o.Side), string(o.Type),
		o.Price, o.Quantity, o.FilledQuantity, string(o.Status), o.Seq,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: save order %s: %w", o.ID, err)
	}
	return nil
}

func saveTrade(ctx context.Context, x execer, t *domain.Trade) error {
	if t == nil {
		return errors.New("pg: nil trade")
	}
	_, err := x.Exec(ctx, insertTradeSQL,
		t.ID, t.Symbol, t.Price, t.Quantity,
		t.MakerOrderID, t.TakerOrderID, string(t.TakerSide), t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("pg: save trade %s: %w", t.ID, err)
	}
	return nil
}

func (r *Repo) SaveOrder(ctx context.Context, o *domain.Order) error {
	return saveOrder(ctx, r.pool, o)
}

func (r *Repo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	return saveTrade(ctx, r.pool, t)
}

// LoadOpenOrders returns resting orders for a symbol in Seq order, the FIFO
// order the book must be rebuilt in.
func (r *Repo) LoadOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, owner_id, symbol, side, type, price, quantity, filled_quantity, status, seq, created_at, updated_at
FROM orders
WHERE symbol = $1 AND status IN ('OPEN','PARTIALLY_FILLED')
ORDER BY seq ASC
`, symbol)
	if err != nil {
		return nil, fmt.Errorf("pg: load open orders: %w", err)
	}
	defer rows.Close()

	var res []*domain.Order
	for rows.Next() {
		var o domain.Order
		var side, typ, status string
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Symbol, &side, &typ,
			&o.Price, &o.Quantity, &o.FilledQuantity, &status, &o.Seq,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan order: %w", err)
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(typ)
		o.Status = domain.OrderStatus(status)
		res = append(res, &o)
	}
	return res, rows.Err()
}

func (r *Repo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	return saveOrder(ctx, t.tx, o)
}

func (t *pgTx) SaveTrade(ctx context.Context, tr *domain.Trade) error {
	return saveTrade(ctx, t.tx, tr)
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
