package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"soltrend/internal/model"
)

// BinanceConfig configures BinanceSource.
type BinanceConfig struct {
	BaseURL           string // e.g. https://api.binance.us
	APIKey            string // optional, klines are public
	SecretKey         string
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int           // default 3
	Backoff           time.Duration // first retry delay, doubled per attempt; default 200ms
}

// BinanceSource reads spot klines from a Binance-compatible REST API.
type BinanceSource struct {
	client      *binance.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	backoff     time.Duration
}

// NewBinanceSource creates a rate-limited kline client.
func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	client.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &BinanceSource{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
	}
}

// Candles fetches the latest limit klines, retrying with exponential backoff.
func (b *BinanceSource) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	var (
		klines []*binance.Kline
		err    error
	)
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if err = b.rateLimiter.Wait(ctx); err != nil {
			return model.Series{}, err
		}

		klines, err = b.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		if err == nil {
			break
		}
		if attempt == b.maxRetries {
			return model.Series{}, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * b.backoff
		log.Warn().Str("component", "marketdata").Err(err).Int("attempt", attempt+1).
			Dur("retry_in", wait).Msg("kline fetch failed")
		select {
		case <-ctx.Done():
			return model.Series{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	return toSeries(symbol, interval, klines)
}

func toSeries(symbol, interval string, klines []*binance.Kline) (model.Series, error) {
	s := model.Series{Symbol: symbol, Interval: interval, Candles: make([]model.Candle, 0, len(klines))}
	for i, k := range klines {
		var vals [5]float64
		for j, raw := range [5]string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return model.Series{}, fmt.Errorf("kline %d: parse %q: %w", i, raw, err)
			}
			vals[j] = d.InexactFloat64()
		}
		s.Candles = append(s.Candles, model.Candle{
			TS:     k.OpenTime,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return s, nil
}
