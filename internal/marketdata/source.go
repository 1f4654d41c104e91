// Package marketdata fetches candle series for the trend engine.
package marketdata

import (
	"context"
	"errors"

	"soltrend/internal/model"
)

// ErrNoData is returned when neither the upstream nor the cache has candles.
var ErrNoData = errors.New("no candle data")

// Source supplies the most recent limit candles for symbol and interval,
// ascending by time.
type Source interface {
	Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbol, interval string, limit int) (model.Series, error)

// Candles calls f.
func (f SourceFunc) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	return f(ctx, symbol, interval, limit)
}
