package notify

import (
	"context"
	"errors"

	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
)

// Fanout delivers every event to each sink and joins the failures.
type Fanout []port.Notifier

var _ port.Notifier = Fanout(nil)

func (f Fanout) PublishTrade(ctx context.Context, t *domain.Trade) error {
	var errs []error
	for _, n := range f {
		if err := n.PublishTrade(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishOrderUpdate(ctx context.Context, o *domain.Order) error {
	var errs []error
	for _, n := range f {
		if err := n.PublishOrderUpdate(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
