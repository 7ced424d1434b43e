package port

import (
	"context"

	"github.com/truecex/exchange/internal/domain"
)

// Notifier receives trade and order-status events after they are committed.
// The engine is agnostic to the delivery mechanism; failures are logged,
// never propagated into the matching path.
type Notifier interface {
	PublishTrade(ctx context.Context, t *domain.Trade) error
	PublishOrderUpdate(ctx context.Context, o *domain.Order) error
}
