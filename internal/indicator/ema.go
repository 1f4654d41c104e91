package indicator

// EMA calculates an exponential moving average with smoothing 2/(period+1).
// The first observed value seeds the average; there is no warm-up bias
// correction. O(1) per update.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next value and returns the new average.
func (e *EMA) Update(v float64) float64 {
	e.count++
	if e.count == 1 {
		e.current = v
		return e.current
	}
	// EMA = (v * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
	return e.current
}

// EMASeries returns the EMA of xs. Defined from the first element.
func EMASeries(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	e := NewEMA(period)
	for i, x := range xs {
		out[i] = e.Update(x)
	}
	return out
}

// MACD returns EMA(fast) - EMA(slow) and its signal line EMA(signal).
func MACD(closes []float64, fast, slow, signal int) (macd, sig []float64) {
	f := EMASeries(closes, fast)
	s := EMASeries(closes, slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = f[i] - s[i]
	}
	return macd, EMASeries(macd, signal)
}
