package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	logx "github.com/saleswire/server/pkg/logger"
)

// CachedEmbedder caches embedding vectors in Redis so restarts and repeat
// questions skip the embedding API. Cache failures fall through to the inner
// embedder; the cache must never break retrieval.
type CachedEmbedder struct {
	inner     Embedder
	rdb       redis.Cmdable
	namespace string
	ttl       time.Duration
}

// NewCachedEmbedder wraps an embedder with a Redis cache. The namespace
// should identify the embedding model so a model change invalidates the
// cache.
func NewCachedEmbedder(inner Embedder, rdb redis.Cmdable, namespace string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, rdb: rdb, namespace: namespace, ttl: ttl}
}

// EmbedDocument embeds catalog question text, cached.
func (c *CachedEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.cached(ctx, text, taskRetrievalDocument, c.inner.EmbedDocument)
}

// EmbedQuery embeds a user question, cached.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.cached(ctx, text, taskRetrievalQuery, c.inner.EmbedQuery)
}

func (c *CachedEmbedder) cached(ctx context.Context, text, taskType string, embed func(context.Context, string) ([]float32, error)) ([]float32, error) {
	key := c.key(text, taskType)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var values []float32
		if err := json.Unmarshal([]byte(raw), &values); err == nil && len(values) > 0 {
			return values, nil
		}
		logx.Warn().Str("key", key).Msg("Discarding corrupt cached embedding")
	} else if err != redis.Nil {
		logx.Warn().Err(err).Str("key", key).Msg("Embedding cache read failed")
	}

	values, err := embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(values); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("Embedding cache write failed")
		}
	}
	return values, nil
}

func (c *CachedEmbedder) key(text, taskType string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s:%x", c.namespace, taskType, sum[:16])
}

var _ Embedder = (*CachedEmbedder)(nil)
