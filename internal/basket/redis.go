package basket

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore hands out baskets backed by a Redis list per session.
// The list keeps insertion order so the basket view is stable across
// requests.  Keys expire after the configured TTL so abandoned
// baskets clean themselves up.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a store bound to the given client.  A
// non-positive ttl falls back to 24 hours.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// ForSession returns the basket for one session identifier.
func (s *RedisStore) ForSession(sessionID string) Basket {
	return &redisBasket{rdb: s.rdb, key: "basket:" + sessionID, ttl: s.ttl}
}

type redisBasket struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func (b *redisBasket) Add(ctx context.Context, itemID uint64) error {
	member := strconv.FormatUint(itemID, 10)
	// LPos reports membership; baskets are single-writer per session
	// so check-then-push does not race with itself.
	if _, err := b.rdb.LPos(ctx, b.key, member, redis.LPosArgs{}).Result(); err == nil {
		return ErrAlreadyInBasket
	} else if err != redis.Nil {
		return err
	}
	if err := b.rdb.RPush(ctx, b.key, member).Err(); err != nil {
		return err
	}
	return b.rdb.Expire(ctx, b.key, b.ttl).Err()
}

func (b *redisBasket) Remove(ctx context.Context, itemID uint64) error {
	return b.rdb.LRem(ctx, b.key, 0, strconv.FormatUint(itemID, 10)).Err()
}

func (b *redisBasket) List(ctx context.Context) ([]uint64, error) {
	members, err := b.rdb.LRange(ctx, b.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *redisBasket) Clear(ctx context.Context) error {
	return b.rdb.Del(ctx, b.key).Err()
}
