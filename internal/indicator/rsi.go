package indicator

// RSI returns the relative strength index of closes over period using simple
// rolling averages of gains and losses. The first delta is treated as zero
// movement, so values are defined from index period-1.
//
// A window with zero average loss reads 100, including a completely flat window.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	gains := NewWindow(period)
	losses := NewWindow(period)

	for i, c := range closes {
		gain, loss := 0.0, 0.0
		if i > 0 {
			delta := c - closes[i-1]
			if delta > 0 {
				gain = delta
			} else {
				loss = -delta
			}
		}
		gains.Push(gain)
		losses.Push(loss)

		if !gains.Ready() {
			out[i] = nan
			continue
		}
		avgGain := gains.Mean()
		avgLoss := losses.Mean()
		if avgLoss == 0 {
			out[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - (100.0 / (1.0 + rs))
	}
	return out
}
