package port

import (
	"context"

	"github.com/truecex/exchange/internal/domain"
)

// Cache serves aggregated book views on the market-data read path without
// touching the matching locks. A miss is (nil, nil).
type Cache interface {
	SetBookView(ctx context.Context, symbol string, view *domain.BookView) error
	GetBookView(ctx context.Context, symbol string) (*domain.BookView, error)
	Invalidate(ctx context.Context, symbol string) error
}
