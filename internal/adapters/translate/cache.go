package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
)

// CachedTranslator decorates a Translator with a Redis cache. Produce
// descriptions repeat constantly across listings, so identical
// (text, source, target) triples are served from cache. Cache failures
// degrade to a direct call, never to an error.
type CachedTranslator struct {
	inner  bids.Translator
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedTranslator wraps inner with a Redis cache
func NewCachedTranslator(inner bids.Translator, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedTranslator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedTranslator{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

var _ bids.Translator = (*CachedTranslator)(nil)

// Translate serves from cache when possible, falling back to the inner
// translator and caching its result best-effort.
func (c *CachedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (json.RawMessage, error) {
	key := cacheKey(text, sourceLang, targetLang)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		c.logger.Warn("translation cache read failed", "error", err)
	}

	payload, err := c.inner.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return nil, err
	}

	if setErr := c.rdb.Set(ctx, key, []byte(payload), c.ttl).Err(); setErr != nil {
		c.logger.Warn("translation cache write failed", "error", setErr)
	}
	return payload, nil
}

func cacheKey(text, sourceLang, targetLang string) string {
	h := sha256.New()
	h.Write([]byte(sourceLang))
	h.Write([]byte{0})
	h.Write([]byte(targetLang))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "translate:" + hex.EncodeToString(h.Sum(nil))
}
