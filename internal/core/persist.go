package core

import (
	"context"

	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
	"go.uber.org/zap"
)

// withTx runs fn inside a repository transaction, rolling back unless the
// commit succeeds.
func withTx(ctx context.Context, repo port.Repository, fn func(port.Tx) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// persistMatch writes through the full result of one matching call: the
// taker, every maker touched and every trade, in a single transaction.
// Persistence failures are logged, never surfaced into the matching path.
func (e *Engine) persistMatch(ctx context.Context, taker *domain.Order, res *MatchResult) {
	if e.repo == nil {
		return
	}
	err := withTx(ctx, e.repo, func(tx port.Tx) error {
		if err := tx.SaveOrder(ctx, taker); err != nil {
			return err
		}
		for _, m := range res.Makers {
			if err := tx.SaveOrder(ctx, m); err != nil {
				return err
			}
		}
		for _, t := range res.Trades {
			if err := tx.SaveTrade(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.log.Warn("persist match",
			zap.String("order_id", taker.ID),
			zap.Int("trades", len(res.Trades)),
			zap.Error(err))
	}
}
