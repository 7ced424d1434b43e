package port

import (
	"context"

	"github.com/truecex/exchange/internal/domain"
)

// Repository is the durable store the engine writes through after every
// mutation. Implementations must upsert orders by id; trades are insert-only.
type Repository interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveTrade(ctx context.Context, t *domain.Trade) error
	// LoadOpenOrders returns resting orders for a symbol in Seq order, used
	// to rebuild the book on startup.
	LoadOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error)
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx persists the whole result of one matching call atomically.
type Tx interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveTrade(ctx context.Context, t *domain.Trade) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
