package marketdata

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"soltrend/internal/model"
)

// CandleCache persists candles between refreshes.
type CandleCache interface {
	Upsert(ctx context.Context, s model.Series) error
	Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error)
	Prune(ctx context.Context, symbol, interval string, keep int) (int64, error)
}

// CachedSource writes every upstream fetch through a cache and serves the
// cached window when the upstream fails.
type CachedSource struct {
	upstream Source
	cache    CandleCache

	// OnRead is called with "hit" when a fetch was served from the cache
	// after an upstream failure and "miss" when it came from upstream.
	OnRead func(result string)

	// Retain is the number of candles kept per symbol and interval after
	// each write. Zero keeps twice the requested limit.
	Retain int
}

// NewCachedSource wraps upstream with cache.
func NewCachedSource(upstream Source, cache CandleCache) *CachedSource {
	return &CachedSource{upstream: upstream, cache: cache}
}

// Candles fetches from upstream, stores the result and returns the newest
// limit cached candles. On upstream failure the cached window is returned;
// if the cache is empty the upstream error is.
func (c *CachedSource) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	fresh, err := c.upstream.Candles(ctx, symbol, interval, limit)
	if err == nil {
		c.record("miss")
		if upErr := c.cache.Upsert(ctx, fresh); upErr != nil {
			log.Error().Str("component", "marketdata").Err(upErr).Msg("cache upsert failed")
			return fresh, nil
		}
		c.prune(ctx, symbol, interval, limit)
		if fresh.Len() >= limit {
			return fresh, nil
		}
		// Short upstream answer; top up from history.
		cached, readErr := c.cache.Candles(ctx, symbol, interval, limit)
		if readErr != nil || cached.Len() < fresh.Len() {
			return fresh, nil
		}
		return cached, nil
	}

	cached, readErr := c.cache.Candles(ctx, symbol, interval, limit)
	if readErr != nil {
		return model.Series{}, fmt.Errorf("%w (cache: %v)", err, readErr)
	}
	if cached.Len() == 0 {
		return model.Series{}, fmt.Errorf("%s %s: %w: %v", symbol, interval, ErrNoData, err)
	}
	c.record("hit")
	log.Warn().Str("component", "marketdata").Err(err).Int("cached", cached.Len()).
		Msg("upstream failed, serving cached candles")
	return cached, nil
}

func (c *CachedSource) prune(ctx context.Context, symbol, interval string, limit int) {
	keep := c.Retain
	if keep <= 0 {
		keep = 2 * limit
	}
	removed, err := c.cache.Prune(ctx, symbol, interval, keep)
	if err != nil {
		log.Warn().Str("component", "marketdata").Err(err).Msg("cache prune failed")
		return
	}
	if removed > 0 {
		log.Debug().Str("component", "marketdata").Int64("removed", removed).Int("kept", keep).Msg("cache pruned")
	}
}

func (c *CachedSource) record(result string) {
	if c.OnRead != nil {
		c.OnRead(result)
	}
}
