package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"

	errx "github.com/saleswire/server/internal/core/error"
)

// Deduper remembers delivered message IDs so webhook retries do not run a
// turn twice.
type Deduper interface {
	// Seen records the message and reports whether it was already delivered.
	Seen(ctx context.Context, conversationID, messageID string) (bool, error)
}

type MemoryDeduper struct {
	cache *ttlcache.Cache[string, struct{}]
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](ttl),
	)
	go cache.Start()
	return &MemoryDeduper{cache: cache}
}

func (d *MemoryDeduper) Seen(_ context.Context, conversationID, messageID string) (bool, error) {
	key := conversationID + "|" + messageID
	if d.cache.Has(key) {
		return true, nil
	}
	d.cache.Set(key, struct{}{}, ttlcache.DefaultTTL)
	return false, nil
}

// Stop shuts down the expiration loop.
func (d *MemoryDeduper) Stop() {
	d.cache.Stop()
}

// RedisDeduper shares delivery tracking across replicas with one SETNX per
// message.
type RedisDeduper struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisDeduper(rdb redis.Cmdable, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, conversationID, messageID string) (bool, error) {
	key := fmt.Sprintf("dialogue:%s:seen:%s", conversationID, messageID)
	fresh, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	return !fresh, nil
}

var (
	_ Deduper = (*MemoryDeduper)(nil)
	_ Deduper = (*RedisDeduper)(nil)
)
