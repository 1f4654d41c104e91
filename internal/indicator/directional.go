package indicator

import (
	"math"

	"soltrend/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		c := &candles[i]
		tr := c.High - c.Low
		if i > 0 {
			pc := candles[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(c.High-pc), math.Abs(c.Low-pc)))
		}
		out[i] = tr
	}
	return out
}

// DMI returns +DI, -DI and ADX over period.
//
// Directional movement follows the usual rule: an up move counts as +DM only
// when it exceeds the down move (and vice versa). Both DIs are 100 * SMA(DM) /
// SMA(TR); a zero average true range reads 0. ADX is the period SMA of
// |+DI - -DI|.
func DMI(candles []model.Candle, period int) (plusDI, minusDI, adx []float64) {
	n := len(candles)
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := SMA(TrueRange(candles), period)
	avgPlus := SMA(plusDM, period)
	avgMinus := SMA(minusDM, period)

	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(avgPlus[i]) || math.IsNaN(avgMinus[i]) {
			plusDI[i], minusDI[i], spread[i] = nan, nan, nan
			continue
		}
		plusDI[i] = 100 * ratio(avgPlus[i], atr[i], 0)
		minusDI[i] = 100 * ratio(avgMinus[i], atr[i], 0)
		spread[i] = math.Abs(plusDI[i] - minusDI[i])
	}
	return plusDI, minusDI, SMA(spread, period)
}
