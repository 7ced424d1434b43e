package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

// RedisCache stores serialized book views with a short TTL so market-data
// reads stay off the matching locks.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb, ttl: ttl}
}

func (c *RedisCache) Close() error { return c.client.Close() }

func key(symbol string) string { return "book:" + symbol }

func (c *RedisCache) SetBookView(ctx context.Context, symbol string, view *domain.BookView) error {
	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("cache: marshal view: %w", err)
	}
	return c.client.Set(ctx, key(symbol), b, c.ttl).Err()
}

func (c *RedisCache) GetBookView(ctx context.Context, symbol string) (*domain.BookView, error) {
	b, err := c.client.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view domain.BookView
	if err := json.Unmarshal(b, &view); err != nil {
		return nil, fmt.Errorf("cache: unmarshal view: %w", err)
	}
	return &view, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, symbol string) error {
	return c.client.Del(ctx, key(symbol)).Err()
}
