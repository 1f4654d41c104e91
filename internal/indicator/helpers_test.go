package indicator

import (
	"math"
	"math/rand"
	"testing"

	"soltrend/internal/model"
)

const hourMs = int64(3_600_000)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// randomWalk builds n candles around 100 with a fixed seed.
func randomWalk(n int, seed int64) model.Series {
	rng := rand.New(rand.NewSource(seed))
	s := model.Series{Symbol: "TEST", Interval: "1h", Candles: make([]model.Candle, n)}
	price := 100.0
	for i := range s.Candles {
		open := price
		price += rng.NormFloat64()
		if price < 1 {
			price = 1
		}
		hi := math.Max(open, price) + rng.Float64()
		lo := math.Min(open, price) - rng.Float64()
		s.Candles[i] = model.Candle{
			TS:     int64(i) * hourMs,
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: 500 + rng.Float64()*1000,
		}
	}
	return s
}

// flatSeries builds n identical candles at price v.
func flatSeries(n int, v, volume float64) model.Series {
	s := model.Series{Symbol: "FLAT", Interval: "1h", Candles: make([]model.Candle, n)}
	for i := range s.Candles {
		s.Candles[i] = model.Candle{TS: int64(i) * hourMs, Open: v, High: v, Low: v, Close: v, Volume: volume}
	}
	return s
}

func highs(s model.Series) []float64 {
	out := make([]float64, s.Len())
	for i, c := range s.Candles {
		out[i] = c.High
	}
	return out
}

func lows(s model.Series) []float64 {
	out := make([]float64, s.Len())
	for i, c := range s.Candles {
		out[i] = c.Low
	}
	return out
}
