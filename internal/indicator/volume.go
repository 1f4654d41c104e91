package indicator

import "soltrend/internal/model"

// MoneyFlowMultiplier returns ((close-low) - (high-close)) / (high-low),
// or 0 for a bar with high == low.
func MoneyFlowMultiplier(c *model.Candle) float64 {
	return ratio((c.Close-c.Low)-(c.High-c.Close), c.High-c.Low, 0)
}

// OBV returns on-balance volume: the running sum of volume signed by the
// direction of the close. The first bar and unchanged closes add nothing.
func OBV(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	total := 0.0
	for i := 1; i < len(candles); i++ {
		switch diff := candles[i].Close - candles[i-1].Close; {
		case diff > 0:
			total += candles[i].Volume
		case diff < 0:
			total -= candles[i].Volume
		}
		out[i] = total
	}
	return out
}

// CMF returns Chaikin money flow: the period sum of money-flow volume over the
// period sum of volume. A window with no volume reads 0.
func CMF(candles []model.Candle, period int) []float64 {
	mfv := make([]float64, len(candles))
	vol := make([]float64, len(candles))
	for i := range candles {
		mfv[i] = MoneyFlowMultiplier(&candles[i]) * candles[i].Volume
		vol[i] = candles[i].Volume
	}
	mfvSum := RollingSum(mfv, period)
	volSum := RollingSum(vol, period)

	out := make([]float64, len(candles))
	for i := range out {
		if i < period-1 {
			out[i] = nan
			continue
		}
		out[i] = ratio(mfvSum[i], volSum[i], 0)
	}
	return out
}

// AD returns the accumulation/distribution line: the running sum of
// money-flow volume.
func AD(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	total := 0.0
	for i := range candles {
		total += MoneyFlowMultiplier(&candles[i]) * candles[i].Volume
		out[i] = total
	}
	return out
}
