package indicator

import (
	"math"

	"soltrend/internal/model"
)

// ROC returns the percent change of closes versus period bars earlier.
// A zero reference close reads 0.
func ROC(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period; i < len(closes); i++ {
		out[i] = (ratio(closes[i], closes[i-period], 1) - 1) * 100
	}
	return out
}

// TypicalPrice returns (high+low+close)/3 per candle.
func TypicalPrice(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		c := &candles[i]
		out[i] = (c.High + c.Low + c.Close) / 3
	}
	return out
}

// CCI returns the commodity channel index of the typical price.
// A window whose mean absolute deviation is zero (flat prices) reads 0.
func CCI(candles []model.Candle, period int) []float64 {
	tp := TypicalPrice(candles)
	out := make([]float64, len(tp))
	w := NewWindow(period)
	for i, p := range tp {
		w.Push(p)
		if !w.Ready() {
			out[i] = nan
			continue
		}
		mean := w.Mean()
		md := w.MeanAbsDev()
		if md <= flatTolerance*math.Max(1, math.Abs(mean)) {
			out[i] = 0
			continue
		}
		out[i] = (p - mean) / (cciConstant * md)
	}
	return out
}

// UltimateOscillator blends buying pressure over true range across three
// windows: 100 * (4*avg7 + 2*avg14 + avg28) / 7. A window with zero true
// range contributes a ratio of 0.
func UltimateOscillator(candles []model.Candle, short, mid, long int) []float64 {
	n := len(candles)
	bp := make([]float64, n)
	tr := TrueRange(candles)
	for i := range candles {
		low := candles[i].Low
		if i > 0 {
			low = math.Min(low, candles[i-1].Close)
		}
		bp[i] = candles[i].Close - low
	}

	avg := func(period int) []float64 {
		bpSum := RollingSum(bp, period)
		trSum := RollingSum(tr, period)
		out := make([]float64, n)
		for i := range out {
			if math.IsNaN(bpSum[i]) || math.IsNaN(trSum[i]) {
				out[i] = nan
				continue
			}
			out[i] = ratio(bpSum[i], trSum[i], 0)
		}
		return out
	}
	a1, a2, a3 := avg(short), avg(mid), avg(long)

	out := make([]float64, n)
	for i := range out {
		out[i] = 100 * (4*a1[i] + 2*a2[i] + a3[i]) / 7
	}
	return out
}

// Stochastic returns %K over period and %D as the dPeriod SMA of %K.
// A window where the highest high equals the lowest low reads %K = 0.
func Stochastic(candles []model.Candle, period, dPeriod int) (k, d []float64) {
	hh, ll := highestHigh(candles, period), lowestLow(candles, period)
	k = make([]float64, len(candles))
	for i := range candles {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			k[i] = nan
			continue
		}
		k[i] = 100 * ratio(candles[i].Close-ll[i], hh[i]-ll[i], 0)
	}
	return k, SMA(k, dPeriod)
}

// WilliamsR returns -100 * (hh - close) / (hh - ll) over period.
// A zero range reads 0.
func WilliamsR(candles []model.Candle, period int) []float64 {
	hh, ll := highestHigh(candles, period), lowestLow(candles, period)
	out := make([]float64, len(candles))
	for i := range candles {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			out[i] = nan
			continue
		}
		out[i] = -100 * ratio(hh[i]-candles[i].Close, hh[i]-ll[i], 0)
	}
	return out
}

func highestHigh(candles []model.Candle, period int) []float64 {
	highs := make([]float64, len(candles))
	for i := range candles {
		highs[i] = candles[i].High
	}
	return rolling(highs, period, (*Window).Max)
}

func lowestLow(candles []model.Candle, period int) []float64 {
	lows := make([]float64, len(candles))
	for i := range candles {
		lows[i] = candles[i].Low
	}
	return rolling(lows, period, (*Window).Min)
}
