// Package indicator computes technical indicators over a candle series.
//
// Compute is a pure function: it takes a model.Series and returns a Frame in
// which every row carries the full indicator set. Each value at row i depends
// only on candles 0..i. Rows still inside any indicator's warm-up window are
// dropped, so callers only ever see fully defined rows.
package indicator

import "errors"

// MinCandles is the longest lookback among all indicators (SMA 200).
const MinCandles = 200

var (
	// ErrInsufficientHistory is returned when the input is shorter than MinCandles.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrEmptyFrame is returned when no fully defined row survives trimming.
	ErrEmptyFrame = errors.New("empty indicator frame")
)

// Lookback periods.
const (
	periodSMAFast  = 20
	periodSMAMid   = 50
	periodSMASlow  = 200
	periodEMA      = 20
	periodMACDFast = 12
	periodMACDSlow = 26
	periodMACDSig  = 9
	periodRSI      = 14
	periodROC      = 12
	periodCCI      = 20
	periodStoch    = 14
	periodStochD   = 3
	periodDMI      = 14
	periodCMF      = 20
	uoShort        = 7
	uoMid          = 14
	uoLong         = 28
)

const (
	cciConstant = 0.015

	// flatTolerance is the relative deviation below which a CCI window is
	// treated as flat.
	flatTolerance = 1e-12
)

// ratio returns num/den, or fallback when den is zero.
func ratio(num, den, fallback float64) float64 {
	if den == 0 {
		return fallback
	}
	return num / den
}

// nanSeries returns a slice of n NaN values.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}
