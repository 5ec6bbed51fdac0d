package project

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedStore is a Redis read-through cache in front of another Store.
// Misses (ErrNotFound) are not cached.
type CachedStore struct {
	Next   Store
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

// NewCachedStore wraps next with a cache. A nil client or non-positive ttl
// returns next unchanged.
func NewCachedStore(next Store, client *redis.Client, ttl time.Duration) Store {
	if client == nil || ttl <= 0 {
		return next
	}
	return &CachedStore{Next: next, Client: client, TTL: ttl, Prefix: "project:"}
}

// Get serves from Redis when possible and falls back to the wrapped store.
// Cache errors are logged and never fail the lookup.
func (c *CachedStore) Get(ctx context.Context, id string) (Project, error) {
	key := c.Prefix + id
	var cached Project
	ok, err := c.getJSON(ctx, key, &cached)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("project_id", id).Msg("project cache read failed")
	}
	if ok {
		return cached, nil
	}

	p, err := c.Next.Get(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err := c.setJSON(ctx, key, p); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("project_id", id).Msg("project cache write failed")
	}
	return p, nil
}

func (c *CachedStore) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CachedStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, data, c.TTL).Err()
}
