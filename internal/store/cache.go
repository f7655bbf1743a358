package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userCacheKeyPrefix = "lobby:user:"

// UserFinder is satisfied by Store and by CachedDirectory.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

// CachedDirectory is a read-through redis cache in front of another
// UserFinder. Redis failures fall back to the wrapped finder; misses are not
// cached.
type CachedDirectory struct {
	next   UserFinder
	client *redis.Client
	ttl    time.Duration
}

func NewCachedDirectory(next UserFinder, client *redis.Client, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl}
}

// OpenRedis parses url and verifies the server answers.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *CachedDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	key := userCacheKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u User
		if jsonErr := json.Unmarshal(raw, &u); jsonErr == nil {
			return &u, nil
		}
		log.Warn().Str("user_id", id).Msg("user_cache_corrupt_entry")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("user_id", id).Msg("user_cache_get_failed")
	}

	u, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(u); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("user_id", id).Msg("user_cache_set_failed")
		}
	}
	return u, nil
}
