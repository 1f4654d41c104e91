package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCandle is returned by Series.Validate for malformed input.
var ErrInvalidCandle = errors.New("invalid candle")

// Candle is one fixed-interval OHLCV bar.
// TS is the bar open time in milliseconds since the Unix epoch.
type Candle struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Series is an ordered run of candles for one symbol and interval.
// Candles are ascending by TS; gap handling belongs to the data source.
type Series struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// Len returns the number of candles in the series.
func (s Series) Len() int { return len(s.Candles) }

// Key returns "symbol:interval".
func (s Series) Key() string {
	return s.Symbol + ":" + s.Interval
}

// Validate checks ordering and OHLC consistency of every candle.
func (s Series) Validate() error {
	for i := range s.Candles {
		c := &s.Candles[i]
		if i > 0 && c.TS <= s.Candles[i-1].TS {
			return fmt.Errorf("%w: index %d: timestamp %d not after %d", ErrInvalidCandle, i, c.TS, s.Candles[i-1].TS)
		}
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: index %d: value %v out of range", ErrInvalidCandle, i, v)
			}
		}
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close || c.Low > c.High {
			return fmt.Errorf("%w: index %d: low/high do not bound open/close", ErrInvalidCandle, i)
		}
	}
	return nil
}

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i := range s.Candles {
		out[i] = s.Candles[i].Close
	}
	return out
}
