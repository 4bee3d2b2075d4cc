package pricefeed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	redisKeyPrefix      = "price"
	defaultFetchTimeout = 10 * time.Second
)

// Source is any upstream that can quote a symbol.
type Source interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

// Cached keeps recent quotes in Redis, or in process memory when no Redis
// client is configured, and collapses concurrent misses for a symbol into one
// upstream call.
type Cached struct {
	next         Source
	redis        redis.Cmdable
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group

	mu    sync.Mutex
	local map[string]cachedQuote
	now   func() time.Time
}

type cachedQuote struct {
	quote     domain.Quote
	expiresAt time.Time
}

type quoteEnvelope struct {
	Symbol    string          `json:"symbol"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AsOf      time.Time       `json:"as_of"`
	Source    string          `json:"source"`
}

func NewCached(next Source, rdb redis.Cmdable, ttl time.Duration) *Cached {
	return &Cached{
		next:         next,
		redis:        rdb,
		ttl:          ttl,
		fetchTimeout: defaultFetchTimeout,
		local:        make(map[string]cachedQuote),
		now:          time.Now,
	}
}

func (c *Cached) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if q, ok := c.lookup(ctx, symbol); ok {
		return q, nil
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := c.group.DoChan(symbol, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		q, err := c.next.Quote(fetchCtx, symbol)
		if err != nil {
			return domain.Quote{}, err
		}
		c.store(fetchCtx, symbol, q)
		return q, nil
	})
	select {
	case <-ctx.Done():
		return domain.Quote{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Quote{}, res.Err
		}
		return res.Val.(domain.Quote), nil
	}
}

// Refresh fetches symbol upstream and replaces the cached quote.
func (c *Cached) Refresh(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	q, err := c.next.Quote(ctx, symbol)
	if err != nil {
		return err
	}
	c.store(ctx, symbol, q)
	return nil
}

func (c *Cached) lookup(ctx context.Context, symbol string) (domain.Quote, bool) {
	if c.ttl <= 0 {
		return domain.Quote{}, false
	}
	if c.redis != nil {
		val, err := c.redis.Get(ctx, redisKey(symbol)).Result()
		if err == nil {
			var env quoteEnvelope
			if json.Unmarshal([]byte(val), &env) == nil {
				return domain.Quote{Symbol: env.Symbol, UnitPrice: env.UnitPrice, AsOf: env.AsOf, Source: env.Source}, true
			}
		} else if err != redis.Nil {
			zap.L().Warn("redis price lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return domain.Quote{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.local[symbol]
	if !ok || c.now().After(entry.expiresAt) {
		return domain.Quote{}, false
	}
	return entry.quote, true
}

func (c *Cached) store(ctx context.Context, symbol string, q domain.Quote) {
	if c.ttl <= 0 {
		return
	}
	if c.redis != nil {
		payload, err := json.Marshal(quoteEnvelope{Symbol: q.Symbol, UnitPrice: q.UnitPrice, AsOf: q.AsOf, Source: q.Source})
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, redisKey(symbol), payload, c.ttl).Err(); err != nil {
			zap.L().Warn("redis price store failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return
	}

	c.mu.Lock()
	c.local[symbol] = cachedQuote{quote: q, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func redisKey(symbol string) string {
	return redisKeyPrefix + ":" + symbol
}
